package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tradyxa/internal/domain/models"
	pkgcache "Tradyxa/pkg/cache"
)

func TestSnapshotCache(t *testing.T) {
	ctx := context.Background()
	mem := pkgcache.NewMemoryCache()
	defer mem.Close()
	c := NewSnapshotCache(mem, nil)

	_, ok := c.Get(ctx, "basic:TCS")
	assert.False(t, ok)

	in := &models.TickerSnapshot{
		Meta:    &models.Meta{Ticker: "TCS"},
		Metrics: &models.Metrics{SpotPrice: models.Ptr(4125.8), Verdict: models.PlaceholderVerdict("t")},
	}
	c.Set(ctx, "basic:TCS", in, time.Minute)

	got, ok := c.Get(ctx, "basic:TCS")
	require.True(t, ok)
	assert.Equal(t, "TCS", got.Meta.Ticker)
	assert.Equal(t, 4125.8, *got.Metrics.SpotPrice)
	assert.Equal(t, models.Neutral, got.Metrics.Verdict.Direction)

	c.Delete(ctx, "basic:TCS", "full:TCS")
	_, ok = c.Get(ctx, "basic:TCS")
	assert.False(t, ok)
}

func TestSnapshotCacheNopBackend(t *testing.T) {
	c := NewSnapshotCache(pkgcache.Nop{}, nil)
	c.Set(context.Background(), "k", &models.TickerSnapshot{}, time.Minute)
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}
