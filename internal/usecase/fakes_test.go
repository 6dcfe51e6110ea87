package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"Tradyxa/internal/domain/models"
	domrepo "Tradyxa/internal/domain/repository"
)

// memDocs keeps documents as JSON so every read decodes a fresh copy.
type memDocs struct {
	mu        sync.Mutex
	tickers   map[string]string
	slippage  map[string]string
	live      string
	failRead  map[string]error
	liveErr   error
	tickReads int
}

func newMemDocs() *memDocs {
	return &memDocs{
		tickers:  make(map[string]string),
		slippage: make(map[string]string),
		failRead: make(map[string]error),
	}
}

func (d *memDocs) ReadTicker(_ context.Context, symbol string) (*models.TickerSnapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tickReads++
	if err := d.failRead[symbol]; err != nil {
		return nil, err
	}
	raw, ok := d.tickers[symbol]
	if !ok {
		return nil, nil
	}
	var s models.TickerSnapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, nil
	}
	return &s, nil
}

func (d *memDocs) ReadSlippage(_ context.Context, symbol string) (models.SlippageDistribution, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	raw, ok := d.slippage[symbol]
	if !ok {
		return nil, nil
	}
	var dist models.SlippageDistribution
	if err := json.Unmarshal([]byte(raw), &dist); err != nil {
		return nil, nil
	}
	return dist, nil
}

func (d *memDocs) ReadLive(context.Context) (*models.LiveDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.liveErr != nil {
		return nil, d.liveErr
	}
	if d.live == "" {
		return nil, nil
	}
	var doc models.LiveDocument
	if err := json.Unmarshal([]byte(d.live), &doc); err != nil {
		return nil, nil
	}
	return &doc, nil
}

func (d *memDocs) UpdateLive(ctx context.Context, fn func(*models.LiveDocument)) error {
	doc, _ := d.ReadLive(ctx)
	if doc == nil {
		doc = &models.LiveDocument{}
	}
	fn(doc)
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.live = string(b)
	d.mu.Unlock()
	return nil
}

func (d *memDocs) Ready(context.Context) error { return nil }

func (d *memDocs) reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tickReads
}

func (d *memDocs) liveDoc(t *testing.T) *models.LiveDocument {
	t.Helper()
	doc, err := d.ReadLive(context.Background())
	require.NoError(t, err)
	require.NotNil(t, doc)
	return doc
}

// memCache stores clones, like the JSON-backed caches do.
type memCache struct {
	mu      sync.Mutex
	entries map[string]*models.TickerSnapshot
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*models.TickerSnapshot)}
}

func (c *memCache) Get(_ context.Context, key string) (*models.TickerSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

func (c *memCache) Set(_ context.Context, key string, s *models.TickerSnapshot, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = s.Clone()
}

func (c *memCache) Delete(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

type memEvents struct {
	mu     sync.Mutex
	events []models.Event
}

func (p *memEvents) Publish(_ context.Context, ev models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *memEvents) Close() error { return nil }

func (p *memEvents) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type memHistory struct {
	mu   sync.Mutex
	recs []models.SnapshotRecord
}

func (h *memHistory) Record(rec models.SnapshotRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recs = append(h.recs, rec)
}

type countingMetrics struct {
	domrepo.NopMetrics
	mu        sync.Mutex
	resolves  map[models.Source]int
	hits      int
	misses    int
	overlays  []string
	malformed []string
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{resolves: make(map[models.Source]int)}
}

func (m *countingMetrics) RecordResolve(source models.Source, _ bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolves[source]++
}

func (m *countingMetrics) RecordCache(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func (m *countingMetrics) RecordOverlay(field string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlays = append(m.overlays, field)
}

func (m *countingMetrics) RecordMalformed(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.malformed = append(m.malformed, kind)
}

var fixedNow = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }
