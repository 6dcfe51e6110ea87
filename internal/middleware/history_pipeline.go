// Package middleware sits between the resolver and slower downstream
// stores.
package middleware

import (
	"context"
	"sync"
	"time"

	"Tradyxa/internal/domain/models"
	domrepo "Tradyxa/internal/domain/repository"
	applogger "Tradyxa/pkg/logger"
)

// HistoryPipeline buffers resolved snapshots and writes them to a
// HistoryStore in batches. Record never blocks the caller: records beyond
// the buffer are dropped and counted, and at most one record per ticker is
// accepted every MinInterval.
type HistoryPipeline struct {
	store   domrepo.HistoryStore
	metrics domrepo.Metrics
	l       *applogger.Logger

	minInterval   time.Duration
	batchSize     int
	flushInterval time.Duration
	maxBackoff    time.Duration

	in       chan models.SnapshotRecord
	mu       sync.Mutex
	lastSeen map[string]time.Time
	started  bool
	stopCh   chan struct{}
	done     chan struct{}
}

type PipelineOption func(*HistoryPipeline)

// WithMinInterval sets the per-ticker throttle.
func WithMinInterval(d time.Duration) PipelineOption {
	return func(p *HistoryPipeline) {
		if d >= 0 {
			p.minInterval = d
		}
	}
}

// WithBatch sets the batch size and the longest time a partial batch waits.
func WithBatch(size int, flushEvery time.Duration) PipelineOption {
	return func(p *HistoryPipeline) {
		if size > 0 {
			p.batchSize = size
		}
		if flushEvery > 0 {
			p.flushInterval = flushEvery
		}
	}
}

// WithBufferSize sets the number of records held while downstream is slow.
func WithBufferSize(n int) PipelineOption {
	return func(p *HistoryPipeline) {
		if n > 0 {
			p.in = make(chan models.SnapshotRecord, n)
		}
	}
}

func WithPipelineMetrics(m domrepo.Metrics) PipelineOption {
	return func(p *HistoryPipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *HistoryPipeline) {
		if l != nil {
			p.l = l
		}
	}
}

func NewHistoryPipeline(store domrepo.HistoryStore, opts ...PipelineOption) *HistoryPipeline {
	p := &HistoryPipeline{
		store:         store,
		metrics:       domrepo.NopMetrics{},
		l:             applogger.Nop(),
		minInterval:   5 * time.Second,
		batchSize:     100,
		flushInterval: 2 * time.Second,
		maxBackoff:    5 * time.Second,
		in:            make(chan models.SnapshotRecord, 1000),
		lastSeen:      make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ domrepo.HistorySink = (*HistoryPipeline)(nil)

// Record enqueues rec for persistence.
func (p *HistoryPipeline) Record(rec models.SnapshotRecord) {
	if rec.Ticker == "" {
		return
	}
	if rec.ResolvedAt.IsZero() {
		rec.ResolvedAt = time.Now().UTC()
	}
	if !p.allow(rec.Ticker, rec.ResolvedAt) {
		p.metrics.RecordError("history_throttle")
		return
	}
	select {
	case p.in <- rec:
	default:
		p.metrics.RecordError("history_buffer_full")
	}
}

// Start launches the background writer. It is a no-op when already running.
func (p *HistoryPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	p.mu.Unlock()

	go p.run(ctx)
}

// Stop flushes whatever is buffered and waits for the writer to exit or
// ctx to expire.
func (p *HistoryPipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	close(p.stopCh)
	done := p.done
	p.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *HistoryPipeline) run(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	batch := make([]models.SnapshotRecord, 0, p.batchSize)
	backoff := 50 * time.Millisecond
	flush := func(final bool) {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		err := p.store.StoreBatch(context.WithoutCancel(ctx), batch)
		if err == nil {
			p.metrics.RecordLatency("history_flush", time.Since(start).Seconds())
			batch = batch[:0]
			backoff = 50 * time.Millisecond
			return
		}
		p.metrics.RecordError("history_flush")
		p.l.Warn("history flush failed",
			applogger.Int("records", len(batch)),
			applogger.Duration("backoff", backoff),
			applogger.Error(err))
		if final {
			batch = batch[:0]
			return
		}
		// keep the batch for the next tick, capped so a dead store cannot
		// grow it without bound
		if len(batch) >= p.batchSize*10 {
			p.metrics.RecordError("history_buffer_drop")
			batch = batch[:0]
		}
		select {
		case <-time.After(backoff):
		case <-p.stopCh:
		}
		if backoff < p.maxBackoff {
			backoff *= 2
		}
	}

	for {
		select {
		case rec := <-p.in:
			batch = append(batch, rec)
			if len(batch) >= p.batchSize {
				flush(false)
			}
		case now := <-ticker.C:
			flush(false)
			p.forget(now)
		case <-p.stopCh:
			p.drain(&batch)
			flush(true)
			return
		case <-ctx.Done():
			p.drain(&batch)
			flush(true)
			return
		}
	}
}

func (p *HistoryPipeline) drain(batch *[]models.SnapshotRecord) {
	for {
		select {
		case rec := <-p.in:
			*batch = append(*batch, rec)
		default:
			return
		}
	}
}

func (p *HistoryPipeline) allow(ticker string, now time.Time) bool {
	if p.minInterval <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[ticker]
	if ok && now.Sub(last) < p.minInterval {
		return false
	}
	p.lastSeen[ticker] = now
	return true
}

// forget drops throttle entries that can no longer hold a record back.
func (p *HistoryPipeline) forget(now time.Time) {
	if p.minInterval <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for ticker, last := range p.lastSeen {
		if now.Sub(last) >= p.minInterval {
			delete(p.lastSeen, ticker)
		}
	}
}

func (p *HistoryPipeline) tracked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lastSeen)
}
