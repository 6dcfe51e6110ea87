// Package cache adapts a pkg/cache backend to the snapshot cache used by
// the resolver.
package cache

import (
	"context"
	"errors"
	"time"

	"Tradyxa/internal/domain/models"
	"Tradyxa/internal/domain/repository"
	pkgcache "Tradyxa/pkg/cache"
	applogger "Tradyxa/pkg/logger"
)

// SnapshotCache stores snapshots under "snapshot:<key>". Backend failures
// are logged and behave like misses so a cache outage never fails a request.
type SnapshotCache struct {
	backend pkgcache.Service
	l       *applogger.Logger
}

var _ repository.SnapshotCache = (*SnapshotCache)(nil)

func NewSnapshotCache(backend pkgcache.Service, l *applogger.Logger) *SnapshotCache {
	if l == nil {
		l = applogger.Nop()
	}
	return &SnapshotCache{backend: backend, l: l}
}

func (c *SnapshotCache) Get(ctx context.Context, key string) (*models.TickerSnapshot, bool) {
	var s models.TickerSnapshot
	if err := c.backend.Get(ctx, pkgcache.GenerateKey("snapshot", key), &s); err != nil {
		if !errors.Is(err, pkgcache.ErrCacheMiss) {
			c.l.Warn("snapshot cache get failed", applogger.String("key", key), applogger.Error(err))
		}
		return nil, false
	}
	return &s, true
}

func (c *SnapshotCache) Set(ctx context.Context, key string, s *models.TickerSnapshot, ttl time.Duration) {
	if s == nil {
		return
	}
	if err := c.backend.Set(ctx, pkgcache.GenerateKey("snapshot", key), s, ttl); err != nil {
		c.l.Warn("snapshot cache set failed", applogger.String("key", key), applogger.Error(err))
	}
}

func (c *SnapshotCache) Delete(ctx context.Context, keys ...string) {
	wrapped := make([]string, len(keys))
	for i, k := range keys {
		wrapped[i] = pkgcache.GenerateKey("snapshot", k)
	}
	if err := c.backend.Delete(ctx, wrapped...); err != nil {
		c.l.Warn("snapshot cache delete failed", applogger.Strings("keys", keys), applogger.Error(err))
	}
}
