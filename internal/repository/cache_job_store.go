package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Tradyxa/internal/domain/models"
	domrepo "Tradyxa/internal/domain/repository"
	pkgcache "Tradyxa/pkg/cache"
)

// CacheJobStore keeps simulation jobs in a cache backend, so jobs are
// shared between instances when the backend is Redis.
type CacheJobStore struct {
	backend pkgcache.Service
}

var _ domrepo.JobStore = (*CacheJobStore)(nil)

func NewCacheJobStore(backend pkgcache.Service) *CacheJobStore {
	return &CacheJobStore{backend: backend}
}

func jobKey(id string) string { return pkgcache.GenerateKey("simulation:job", id) }

func lockKey(key string) string { return pkgcache.GenerateKey("simulation:lock", key) }

func (s *CacheJobStore) SaveJob(ctx context.Context, job *models.SimulationJob, ttl time.Duration) error {
	if err := s.backend.Set(ctx, jobKey(job.JobID), job, ttl); err != nil {
		return fmt.Errorf("save job %s: %w", job.JobID, err)
	}
	return nil
}

func (s *CacheJobStore) Job(ctx context.Context, id string) (*models.SimulationJob, error) {
	var job models.SimulationJob
	if err := s.backend.Get(ctx, jobKey(id), &job); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	return &job, nil
}

func (s *CacheJobStore) DeleteJob(ctx context.Context, id string) error {
	return s.backend.Delete(ctx, jobKey(id))
}

func (s *CacheJobStore) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.backend.TryLock(ctx, lockKey(key), ttl)
}

func (s *CacheJobStore) Unlock(ctx context.Context, key string) error {
	return s.backend.Unlock(ctx, lockKey(key))
}
