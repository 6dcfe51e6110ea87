package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Log         struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"5000"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors" default:"true"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"500ms"`
	} `yaml:"server"`
	Data struct {
		Backend  string `yaml:"backend" default:"fs"`
		Dir      string `yaml:"dir" default:"public/data"`
		LivePath string `yaml:"live_path" default:"live/spot_prices.json"`
	} `yaml:"data"`
	S3 struct {
		Endpoint       string `yaml:"endpoint"`
		Region         string `yaml:"region" default:"us-east-1"`
		Bucket         string `yaml:"bucket"`
		AccessKey      string `yaml:"access_key"`
		SecretKey      string `yaml:"secret_key"`
		Prefix         string `yaml:"prefix"`
		UseSSL         bool   `yaml:"use_ssl" default:"true"`
		ForcePathStyle bool   `yaml:"force_path_style"`
	} `yaml:"s3"`
	Live struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout" default:"2s"`
	} `yaml:"live"`
	Pipeline struct {
		CacheTTL    time.Duration `yaml:"cache_ttl" default:"60s"`
		ReadTimeout time.Duration `yaml:"read_timeout" default:"3s"`
		Quality     struct {
			MetaGood    float64 `yaml:"meta_good" default:"0.2"`
			VerdictGood float64 `yaml:"verdict_good" default:"0.3"`
			VerdictLow  float64 `yaml:"verdict_low" default:"0.5"`
		} `yaml:"quality"`
	} `yaml:"pipeline"`
	Cache struct {
		Backend       string `yaml:"backend" default:"memory"`
		MemoryMaxSize int    `yaml:"memory_max_size" default:"1000"`
	} `yaml:"cache"`
	Redis struct {
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"tradyxa"`
	} `yaml:"redis"`
	Queue struct {
		Backend    string        `yaml:"backend" default:"memory"`
		Workers    int           `yaml:"workers" default:"2"`
		QueueSize  int           `yaml:"queue_size" default:"100"`
		RetryLimit int           `yaml:"retry_limit" default:"2"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"5s"`
	} `yaml:"queue"`
	Simulation struct {
		StepDelay     time.Duration `yaml:"step_delay" default:"2s"`
		Retention     time.Duration `yaml:"retention" default:"1h"`
		PruneSchedule string        `yaml:"prune_schedule" default:"0 */5 * * * *"`
		PerMinute     int           `yaml:"per_minute" default:"6"`
	} `yaml:"simulation"`
	Stream struct {
		Interval time.Duration `yaml:"interval" default:"5s"`
	} `yaml:"stream"`
	History struct {
		BufferSize    int           `yaml:"buffer_size" default:"1000"`
		BatchSize     int           `yaml:"batch_size" default:"100"`
		FlushInterval time.Duration `yaml:"flush_interval" default:"2s"`
		MinInterval   time.Duration `yaml:"min_interval" default:"10s"`
	} `yaml:"history"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		SpotTopic    string   `yaml:"spot_topic" default:"tradyxa.spot"`
		EventsTopic  string   `yaml:"events_topic" default:"tradyxa.events"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"tradyxa-live"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"tradyxa.spot.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database" default:"tradyxa"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
}

// Default returns a configuration populated only from default tags.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file. An empty path yields defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, c.Validate()
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("DATA_DIR"); v != "" {
		c.Data.Dir = v
	}
	if v := getenv("DATA_BACKEND"); v != "" {
		c.Data.Backend = v
	}
	if v := getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if ok {
			if p, err := strconv.Atoi(port); err == nil {
				c.Redis.Port = p
			}
		}
	}
	if v := getenv("S3_BUCKET"); v != "" {
		c.S3.Bucket = v
	}
	if v := getenv("S3_ACCESS_KEY"); v != "" {
		c.S3.AccessKey = v
	}
	if v := getenv("S3_SECRET_KEY"); v != "" {
		c.S3.SecretKey = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("LIVE_URL"); v != "" {
		c.Live.URL = v
	}
}

// RedisRequired reports whether any component is configured to use Redis.
func (c *Config) RedisRequired() bool {
	return c.Cache.Backend == "redis" || c.Cache.Backend == "layered" || c.Queue.Backend == "redis"
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Data.Backend {
	case "fs":
		if c.Data.Dir == "" {
			return fmt.Errorf("data.dir is required for fs backend")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required for s3 backend")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("s3.region is required for s3 backend")
		}
	default:
		return fmt.Errorf("data.backend must be 'fs' or 's3', got '%s'", c.Data.Backend)
	}
	switch c.Cache.Backend {
	case "memory", "redis", "layered", "none":
	default:
		return fmt.Errorf("cache.backend must be one of memory, redis, layered, none; got '%s'", c.Cache.Backend)
	}
	switch c.Queue.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("queue.backend must be 'memory' or 'redis', got '%s'", c.Queue.Backend)
	}
	q := c.Pipeline.Quality
	for name, v := range map[string]float64{"meta_good": q.MetaGood, "verdict_good": q.VerdictGood, "verdict_low": q.VerdictLow} {
		if v < 0 || v > 1 {
			return fmt.Errorf("pipeline.quality.%s must be within [0,1], got %v", name, v)
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
