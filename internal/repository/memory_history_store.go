package repository

import (
	"context"
	"sync"

	"Tradyxa/internal/domain/models"
	domrepo "Tradyxa/internal/domain/repository"
)

// MemoryHistoryStore keeps the most recent records per ticker in process.
// It backs the history route when ClickHouse is disabled.
type MemoryHistoryStore struct {
	mu      sync.RWMutex
	perKey  int
	records map[string][]models.SnapshotRecord
}

var _ domrepo.HistoryStore = (*MemoryHistoryStore)(nil)

func NewMemoryHistoryStore(perTicker int) *MemoryHistoryStore {
	if perTicker <= 0 {
		perTicker = 1000
	}
	return &MemoryHistoryStore{perKey: perTicker, records: make(map[string][]models.SnapshotRecord)}
}

func (s *MemoryHistoryStore) Init(ctx context.Context) error { return nil }

func (s *MemoryHistoryStore) StoreBatch(ctx context.Context, recs []models.SnapshotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		if r.Ticker == "" {
			continue
		}
		list := append(s.records[r.Ticker], r)
		if over := len(list) - s.perKey; over > 0 {
			list = append(list[:0:0], list[over:]...)
		}
		s.records[r.Ticker] = list
	}
	return nil
}

// Recent returns newest first.
func (s *MemoryHistoryStore) Recent(ctx context.Context, ticker string, limit int) ([]models.SnapshotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.records[ticker]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]models.SnapshotRecord, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

func (s *MemoryHistoryStore) Health(ctx context.Context) error { return nil }
func (s *MemoryHistoryStore) Close() error                     { return nil }
