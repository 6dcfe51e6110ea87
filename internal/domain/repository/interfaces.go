package repository

import (
	"context"
	"time"

	"Tradyxa/internal/domain/models"
)

// DocumentStore reads the persisted per-ticker documents and the shared live
// document. A missing or unreadable document is reported as (nil, nil); an
// error means the store itself is unusable.
type DocumentStore interface {
	ReadTicker(ctx context.Context, symbol string) (*models.TickerSnapshot, error)
	ReadSlippage(ctx context.Context, symbol string) (models.SlippageDistribution, error)
	ReadLive(ctx context.Context) (*models.LiveDocument, error)
	UpdateLive(ctx context.Context, fn func(doc *models.LiveDocument)) error
	Ready(ctx context.Context) error
}

// LiveSource yields the current live-prices document, or nil when none is
// available.
type LiveSource interface {
	ReadLive(ctx context.Context) (*models.LiveDocument, error)
}

type SnapshotCache interface {
	Get(ctx context.Context, key string) (*models.TickerSnapshot, bool)
	Set(ctx context.Context, key string, s *models.TickerSnapshot, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
}

type HistoryStore interface {
	Init(ctx context.Context) error // ensure tables
	StoreBatch(ctx context.Context, recs []models.SnapshotRecord) error
	Recent(ctx context.Context, ticker string, limit int) ([]models.SnapshotRecord, error)
	Health(ctx context.Context) error
	Close() error
}

// HistorySink accepts resolved snapshots for asynchronous persistence.
type HistorySink interface {
	Record(rec models.SnapshotRecord)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev models.Event) error
	Close() error
}

// JobStore keeps simulation jobs and the per-ticker run locks.
type JobStore interface {
	SaveJob(ctx context.Context, job *models.SimulationJob, ttl time.Duration) error
	Job(ctx context.Context, id string) (*models.SimulationJob, error) // models.ErrNotFound when absent
	DeleteJob(ctx context.Context, id string) error
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type Metrics interface {
	RecordResolve(source models.Source, full bool)
	RecordCache(hit bool)
	RecordOverlay(field string)
	RecordMalformed(kind string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordResolve(models.Source, bool) {}
func (NopMetrics) RecordCache(bool)                  {}
func (NopMetrics) RecordOverlay(string)              {}
func (NopMetrics) RecordMalformed(string)            {}
func (NopMetrics) RecordError(string)                {}
func (NopMetrics) RecordLatency(string, float64)     {}
