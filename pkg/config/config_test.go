package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "fs", c.Data.Backend)
	assert.Equal(t, "public/data", c.Data.Dir)
	assert.Equal(t, 60*time.Second, c.Pipeline.CacheTTL)
	assert.Equal(t, 0.2, c.Pipeline.Quality.MetaGood)
	assert.Equal(t, 0.3, c.Pipeline.Quality.VerdictGood)
	assert.Equal(t, 0.5, c.Pipeline.Quality.VerdictLow)
	assert.True(t, c.Server.CORS)
	assert.False(t, c.Kafka.Enabled)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
environment: production
server:
  port: 8081
  cors: false
data:
  dir: /srv/data
pipeline:
  cache_ttl: 30s
  quality:
    meta_good: 0.1
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 8081, c.Server.Port)
	assert.False(t, c.Server.CORS)
	assert.Equal(t, "/srv/data", c.Data.Dir)
	assert.Equal(t, 30*time.Second, c.Pipeline.CacheTTL)
	assert.Equal(t, 0.1, c.Pipeline.Quality.MetaGood)
	assert.Equal(t, 0.3, c.Pipeline.Quality.VerdictGood)
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	env := map[string]string{
		"DATA_DIR":      "/tmp/x",
		"PORT":          "9090",
		"KAFKA_BROKERS": "a:9092,b:9092",
		"REDIS_ADDR":    "cache:6380",
	}
	c.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "/tmp/x", c.Data.Dir)
	assert.Equal(t, 9090, c.Server.Port)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "cache", c.Redis.Host)
	assert.Equal(t, 6380, c.Redis.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad backend", mutate: func(c *Config) { c.Data.Backend = "ftp" }, wantErr: true},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Data.Backend = "s3" }, wantErr: true},
		{name: "s3 with bucket", mutate: func(c *Config) { c.Data.Backend = "s3"; c.S3.Bucket = "data" }},
		{name: "threshold out of range", mutate: func(c *Config) { c.Pipeline.Quality.VerdictLow = 1.5 }, wantErr: true},
		{name: "kafka without brokers", mutate: func(c *Config) { c.Kafka.Enabled = true }, wantErr: true},
		{name: "unknown cache", mutate: func(c *Config) { c.Cache.Backend = "disk" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
