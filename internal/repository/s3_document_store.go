package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"Tradyxa/internal/domain/models"
	domrepo "Tradyxa/internal/domain/repository"
	"Tradyxa/internal/services/symbols"
	pkgs3 "Tradyxa/pkg/s3"
)

// ObjectStore is the subset of the S3 client the document store needs.
type ObjectStore interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte, contentType string) error
	Health(ctx context.Context) error
}

// S3DocumentStore serves the same layout as FSDocumentStore from a bucket.
// Missing objects are soft misses; any other store failure is returned.
type S3DocumentStore struct {
	decoder
	store    ObjectStore
	livePath string
	mu       sync.Mutex
}

var _ domrepo.DocumentStore = (*S3DocumentStore)(nil)

func NewS3DocumentStore(store ObjectStore, livePath string, opts ...Option) *S3DocumentStore {
	return &S3DocumentStore{
		decoder:  newDecoder(opts),
		store:    store,
		livePath: strings.TrimLeft(livePath, "/"),
	}
}

func (s *S3DocumentStore) ReadTicker(ctx context.Context, symbol string) (*models.TickerSnapshot, error) {
	if !symbols.Valid(symbol) {
		return nil, nil
	}
	data, err := s.get(ctx, tickerKey(symbol))
	if err != nil || data == nil {
		return nil, err
	}
	var snap models.TickerSnapshot
	if !s.decode(data, kindTicker, symbol, &snap) {
		return nil, nil
	}
	return &snap, nil
}

func (s *S3DocumentStore) ReadSlippage(ctx context.Context, symbol string) (models.SlippageDistribution, error) {
	if !symbols.Valid(symbol) {
		return nil, nil
	}
	data, err := s.get(ctx, slippageKey(symbol))
	if err != nil || data == nil {
		return nil, err
	}
	var dist models.SlippageDistribution
	if !s.decode(data, kindSlippage, symbol, &dist) {
		return nil, nil
	}
	return dist, nil
}

func (s *S3DocumentStore) ReadLive(ctx context.Context) (*models.LiveDocument, error) {
	data, err := s.get(ctx, s.livePath)
	if err != nil || data == nil {
		return nil, err
	}
	var doc models.LiveDocument
	if !s.decode(data, kindLive, s.livePath, &doc) {
		return nil, nil
	}
	return &doc, nil
}

// UpdateLive is a read-modify-write of the live object. Writers in this
// process are serialised; concurrent writers elsewhere are not.
func (s *S3DocumentStore) UpdateLive(ctx context.Context, fn func(doc *models.LiveDocument)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.ReadLive(ctx)
	if err != nil {
		return err
	}
	if doc == nil {
		doc = &models.LiveDocument{}
	}
	fn(doc)

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode live document: %w", err)
	}
	return s.store.Put(ctx, s.livePath, data, "application/json")
}

func (s *S3DocumentStore) Ready(ctx context.Context) error {
	return s.store.Health(ctx)
}

func (s *S3DocumentStore) get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, pkgs3.ErrNotFound) {
			return nil, nil
		}
		s.metrics.RecordError("document_store")
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}
