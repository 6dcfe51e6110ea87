package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tradyxa/internal/domain/models"
)

func record(ticker string, at time.Time, spot float64) models.SnapshotRecord {
	return models.SnapshotRecord{Ticker: ticker, Source: models.SourcePersisted, ResolvedAt: at, SpotPrice: spot}
}

func TestInsertHistory(t *testing.T) {
	at := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	q, args := insertHistory("tradyxa.snapshot_history", []models.SnapshotRecord{
		record("TCS", at, 4100),
		{},
		record("INFY", at, 1500),
	})
	assert.True(t, strings.HasPrefix(q, "INSERT INTO tradyxa.snapshot_history (resolved_at, ticker"))
	assert.Equal(t, 2, strings.Count(q, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"))
	require.Len(t, args, 2*historyColumns)
	assert.Equal(t, "TCS", args[1])
	assert.Equal(t, "persisted", args[2])
	assert.Equal(t, 1500.0, args[historyColumns+3])

	q, args = insertHistory("t", []models.SnapshotRecord{{}})
	assert.Empty(t, q)
	assert.Nil(t, args)
}

func TestHistorySchema(t *testing.T) {
	stmts := historySchema("tradyxa", "tradyxa.snapshot_history")
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE DATABASE IF NOT EXISTS tradyxa")
	assert.Contains(t, stmts[1], "CREATE TABLE IF NOT EXISTS tradyxa.snapshot_history")
	assert.Contains(t, stmts[1], "ORDER BY (ticker, resolved_at)")
}

func TestMemoryHistoryStore(t *testing.T) {
	s := NewMemoryHistoryStore(3)
	ctx := context.Background()
	at := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	var batch []models.SnapshotRecord
	for i := 0; i < 5; i++ {
		batch = append(batch, record("TCS", at.Add(time.Duration(i)*time.Minute), float64(i)))
	}
	require.NoError(t, s.StoreBatch(ctx, batch))

	got, err := s.Recent(ctx, "TCS", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 4.0, got[0].SpotPrice)
	assert.Equal(t, 2.0, got[2].SpotPrice)

	got, err = s.Recent(ctx, "TCS", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = s.Recent(ctx, "NONE", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
