package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"Tradyxa/internal/domain/models"
	domrepo "Tradyxa/internal/domain/repository"
	"Tradyxa/internal/services/symbols"
	applogger "Tradyxa/pkg/logger"
)

// FSDocumentStore serves documents from a local data directory laid out as
// ticker/<SYMBOL>.json, ticker/<SYMBOL>_slippage.json and the live document
// at livePath.
type FSDocumentStore struct {
	decoder
	root     string
	livePath string
	mu       sync.Mutex // serialises live document writers
}

var _ domrepo.DocumentStore = (*FSDocumentStore)(nil)

func NewFSDocumentStore(root, livePath string, opts ...Option) *FSDocumentStore {
	return &FSDocumentStore{
		decoder:  newDecoder(opts),
		root:     root,
		livePath: filepath.FromSlash(livePath),
	}
}

func (s *FSDocumentStore) ReadTicker(ctx context.Context, symbol string) (*models.TickerSnapshot, error) {
	if !symbols.Valid(symbol) {
		return nil, nil
	}
	data, err := s.read(kindTicker, tickerKey(symbol))
	if err != nil || data == nil {
		return nil, err
	}
	var snap models.TickerSnapshot
	if !s.decode(data, kindTicker, symbol, &snap) {
		return nil, nil
	}
	return &snap, nil
}

func (s *FSDocumentStore) ReadSlippage(ctx context.Context, symbol string) (models.SlippageDistribution, error) {
	if !symbols.Valid(symbol) {
		return nil, nil
	}
	data, err := s.read(kindSlippage, slippageKey(symbol))
	if err != nil || data == nil {
		return nil, err
	}
	var dist models.SlippageDistribution
	if !s.decode(data, kindSlippage, symbol, &dist) {
		return nil, nil
	}
	return dist, nil
}

func (s *FSDocumentStore) ReadLive(ctx context.Context) (*models.LiveDocument, error) {
	data, err := s.read(kindLive, filepath.ToSlash(s.livePath))
	if err != nil || data == nil {
		return nil, err
	}
	var doc models.LiveDocument
	if !s.decode(data, kindLive, s.livePath, &doc) {
		return nil, nil
	}
	return &doc, nil
}

// UpdateLive applies fn to the current live document and writes the result
// back atomically. A missing or malformed document starts empty.
func (s *FSDocumentStore) UpdateLive(ctx context.Context, fn func(doc *models.LiveDocument)) error {
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

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode live document: %w", err)
	}
	target := filepath.Join(s.root, s.livePath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create live dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".live-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write live document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close live document: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("replace live document: %w", err)
	}
	return nil
}

// Ready reports whether the data root exists and is a directory.
func (s *FSDocumentStore) Ready(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("data root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data root %s is not a directory", s.root)
	}
	return nil
}

// read returns (nil, nil) for a missing or unreadable file and an error
// only when access is denied.
func (s *FSDocumentStore) read(kind, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(key)))
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	case errors.Is(err, fs.ErrPermission):
		s.l.Error("document access denied", applogger.String("kind", kind), applogger.String("name", key), applogger.Error(err))
		s.metrics.RecordError("document_permission")
		return nil, fmt.Errorf("read %s: %w", key, err)
	default:
		s.unreadable(kind, key, err)
		return nil, nil
	}
}
