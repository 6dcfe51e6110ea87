package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"Tradyxa/internal/domain/models"
	domrepo "Tradyxa/internal/domain/repository"
	pkgch "Tradyxa/pkg/clickhouse"
	applogger "Tradyxa/pkg/logger"
)

const historyChunkSize = 2000

// CHHistoryStore keeps resolved snapshot headlines in ClickHouse.
type CHHistoryStore struct {
	db       *sql.DB
	database string
	table    string
	l        *applogger.Logger
}

var _ domrepo.HistoryStore = (*CHHistoryStore)(nil)

func NewCHHistoryStore(ch *pkgch.Client, database string) *CHHistoryStore {
	if database == "" {
		database = "tradyxa"
	}
	return &CHHistoryStore{
		db:       ch.DB(),
		database: database,
		table:    database + ".snapshot_history",
		l:        applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (s *CHHistoryStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

// SchemaStatements returns the idempotent DDL for the history table.
func (s *CHHistoryStore) SchemaStatements() []string {
	return historySchema(s.database, s.table)
}

func historySchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            resolved_at DateTime64(3),
            ticker LowCardinality(String),
            source LowCardinality(String),
            spot_price Float64,
            spot_change_percent Float64,
            vix Float64,
            slippage_expectation Float64,
            direction LowCardinality(String),
            confidence Float64,
            data_quality LowCardinality(String)
        )
        ENGINE = MergeTree
        PARTITION BY toYYYYMM(resolved_at)
        ORDER BY (ticker, resolved_at)
        TTL toDateTime(resolved_at) + INTERVAL 90 DAY`, table),
	}
}

func (s *CHHistoryStore) Init(ctx context.Context) error {
	for _, stmt := range s.SchemaStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init history schema: %w", err)
		}
	}
	return nil
}

func (s *CHHistoryStore) StoreBatch(ctx context.Context, recs []models.SnapshotRecord) error {
	start := time.Now()
	stored := 0
	for lo := 0; lo < len(recs); lo += historyChunkSize {
		hi := lo + historyChunkSize
		if hi > len(recs) {
			hi = len(recs)
		}
		q, args := insertHistory(s.table, recs[lo:hi])
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse history insert error",
				applogger.String("table", s.table),
				applogger.Int("rows", hi-lo),
				applogger.Error(err),
			)
			return fmt.Errorf("store history: %w", err)
		}
		stored += len(args) / historyColumns
	}
	s.l.Debug("clickhouse history insert ok",
		applogger.String("table", s.table),
		applogger.Int("rows", stored),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

const historyColumns = 10

// insertHistory builds one multi-row INSERT. Records without a ticker are
// skipped; an empty query means nothing to write.
func insertHistory(table string, recs []models.SnapshotRecord) (string, []interface{}) {
	values := make([]string, 0, len(recs))
	args := make([]interface{}, 0, len(recs)*historyColumns)
	for _, r := range recs {
		if r.Ticker == "" {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			r.ResolvedAt.UTC(),
			r.Ticker,
			string(r.Source),
			r.SpotPrice,
			r.SpotChangePercent,
			r.VIX,
			r.SlippageExpectation,
			r.Direction,
			r.Confidence,
			r.DataQuality,
		)
	}
	if len(values) == 0 {
		return "", nil
	}
	q := fmt.Sprintf("INSERT INTO %s (resolved_at, ticker, source, spot_price, spot_change_percent, vix, slippage_expectation, direction, confidence, data_quality) VALUES %s",
		table, strings.Join(values, ","))
	return q, args
}

// Recent returns up to limit records for ticker, newest first.
func (s *CHHistoryStore) Recent(ctx context.Context, ticker string, limit int) ([]models.SnapshotRecord, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT resolved_at, ticker, source, spot_price, spot_change_percent, vix,
               slippage_expectation, direction, confidence, data_quality
        FROM %s
        WHERE ticker = ?
        ORDER BY resolved_at DESC
        LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, ticker, limit)
	if err != nil {
		s.l.Error("clickhouse history query error",
			applogger.String("table", s.table),
			applogger.String("ticker", ticker),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]models.SnapshotRecord, 0, limit)
	for rows.Next() {
		var (
			r      models.SnapshotRecord
			source string
		)
		if err := rows.Scan(&r.ResolvedAt, &r.Ticker, &source, &r.SpotPrice, &r.SpotChangePercent, &r.VIX,
			&r.SlippageExpectation, &r.Direction, &r.Confidence, &r.DataQuality); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		r.Source = models.Source(source)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse history query ok",
		applogger.String("ticker", ticker),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHHistoryStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHHistoryStore) Close() error {
	return nil // pool owned by pkg/clickhouse
}
