package usecase

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"Tradyxa/internal/domain/models"
	domrepo "Tradyxa/internal/domain/repository"
	"Tradyxa/internal/services/symbols"
	applogger "Tradyxa/pkg/logger"
)

const publishTimeout = 2 * time.Second

// TickerService fronts the pipeline with a short-lived cache, collapses
// concurrent misses for the same key, and reports every fresh resolution
// to history and the event stream.
type TickerService struct {
	pipeline *TickerPipeline
	cache    domrepo.SnapshotCache
	ttl      time.Duration
	history  domrepo.HistorySink
	events   domrepo.EventPublisher
	metrics  domrepo.Metrics
	l        *applogger.Logger
	group    singleflight.Group
}

type ServiceOption func(*TickerService)

func WithCache(c domrepo.SnapshotCache, ttl time.Duration) ServiceOption {
	return func(s *TickerService) {
		s.cache = c
		s.ttl = ttl
	}
}

func WithHistory(h domrepo.HistorySink) ServiceOption {
	return func(s *TickerService) { s.history = h }
}

func WithEvents(p domrepo.EventPublisher) ServiceOption {
	return func(s *TickerService) { s.events = p }
}

func WithServiceMetrics(m domrepo.Metrics) ServiceOption {
	return func(s *TickerService) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithServiceLogger(l *applogger.Logger) ServiceOption {
	return func(s *TickerService) {
		if l != nil {
			s.l = l
		}
	}
}

func NewTickerService(p *TickerPipeline, opts ...ServiceOption) *TickerService {
	s := &TickerService{
		pipeline: p,
		ttl:      60 * time.Second,
		metrics:  domrepo.NopMetrics{},
		l:        applogger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CacheKeys returns the basic and full cache keys of a ticker.
func CacheKeys(ticker string) (basic, full string) {
	t := symbols.Canonical(ticker)
	return "basic:" + t, "full:" + t
}

// Snapshot returns the basic or full snapshot of ticker. The result is the
// caller's to modify.
func (s *TickerService) Snapshot(ctx context.Context, ticker string, full bool) (*models.TickerSnapshot, error) {
	basicKey, fullKey := CacheKeys(ticker)
	key := basicKey
	if full {
		key = fullKey
	}

	if s.cache != nil {
		if snap, ok := s.cache.Get(ctx, key); ok {
			s.metrics.RecordCache(true)
			return snap, nil
		}
		s.metrics.RecordCache(false)
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		// detached so one caller giving up does not fail the others
		rctx := context.WithoutCancel(ctx)
		res, err := s.pipeline.Resolve(rctx, ticker, full)
		if err != nil {
			return nil, err
		}
		if s.cache != nil && s.ttl > 0 {
			s.cache.Set(rctx, key, res.Snapshot, s.ttl)
		}
		s.report(rctx, res)
		return res.Snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.TickerSnapshot).Clone(), nil
}

// Document returns the persisted document behind a data file name.
func (s *TickerService) Document(ctx context.Context, filename string) (*models.TickerSnapshot, error) {
	res, err := s.pipeline.ResolveDocument(ctx, filename)
	if err != nil {
		return nil, err
	}
	return res.Snapshot, nil
}

// Invalidate drops both cached variants of ticker.
func (s *TickerService) Invalidate(ctx context.Context, ticker string) {
	if s.cache == nil {
		return
	}
	basicKey, fullKey := CacheKeys(ticker)
	s.cache.Delete(ctx, basicKey, fullKey)
}

func (s *TickerService) report(ctx context.Context, res *Resolution) {
	now := time.Now().UTC()
	if s.history != nil {
		s.history.Record(models.NewSnapshotRecord(res.Ticker, res.Source, now, res.Snapshot))
	}
	if s.events == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	ev := models.Event{
		Type:      models.EventSnapshotResolved,
		Ticker:    res.Ticker,
		Source:    res.Source,
		Timestamp: now,
	}
	if err := s.events.Publish(pctx, ev); err != nil {
		s.l.Warn("publish event failed", applogger.String("ticker", res.Ticker), applogger.Error(err))
		s.metrics.RecordError("event_publish")
	}
}
