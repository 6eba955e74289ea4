package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"Sentinel/internal/domain/models"
	"Sentinel/internal/domain/repository"
	pkgch "Sentinel/pkg/clickhouse"
)

// clickhouseSchema keeps the date as a String key so lexicographic
// range scans match the SQLite backend exactly.
var clickhouseSchema = []string{
	`CREATE TABLE IF NOT EXISTS daily_records (
		date       String,
		mode       LowCardinality(String),
		run_seq    UInt32,
		created_at DateTime,
		payload    String
	) ENGINE = ReplacingMergeTree(created_at)
	ORDER BY (mode, date, run_seq)`,

	`CREATE TABLE IF NOT EXISTS hit_rate_entries (
		date         String,
		mode         LowCardinality(String),
		code         String,
		evaluated_at DateTime,
		payload      String
	) ENGINE = ReplacingMergeTree(evaluated_at)
	ORDER BY (mode, date, code)`,
}

// ClickHouseStore is the warehouse RecordStore backend for deployments
// that already run ClickHouse for market data.
type ClickHouseStore struct {
	client *pkgch.Client
	db     *sql.DB
}

// NewClickHouseStore ensures the schema and wraps the shared client.
func NewClickHouseStore(ctx context.Context, client *pkgch.Client) (*ClickHouseStore, error) {
	if err := client.InitSchema(ctx, clickhouseSchema); err != nil {
		return nil, err
	}
	return &ClickHouseStore{client: client, db: client.DB()}, nil
}

func (s *ClickHouseStore) SaveRecord(ctx context.Context, rec *models.DailyRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO daily_records (date, mode, run_seq, created_at, payload) VALUES (?, ?, ?, ?, ?)`,
		rec.Date, rec.Mode, uint32(rec.RunSeq), time.Now().UTC(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

func (s *ClickHouseStore) LatestRecord(ctx context.Context, mode string) (*models.DailyRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM daily_records WHERE mode = ? ORDER BY date DESC, run_seq DESC LIMIT 1`, mode)
	return scanCHRecord(row)
}

func (s *ClickHouseStore) RecordByDate(ctx context.Context, date, mode string) (*models.DailyRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM daily_records WHERE date = ? AND mode = ? ORDER BY run_seq DESC LIMIT 1`, date, mode)
	return scanCHRecord(row)
}

func (s *ClickHouseStore) RecordsInRange(ctx context.Context, from, to, mode string) ([]*models.DailyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM daily_records WHERE mode = ? AND date >= ? AND date <= ? ORDER BY date ASC, run_seq ASC`,
		mode, from, to)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []*models.DailyRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec models.DailyRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *ClickHouseStore) SaveEvaluations(ctx context.Context, entries []models.HitRateEntry) error {
	if len(entries) == 0 {
		return nil
	}
	values := make([]string, 0, len(entries))
	args := make([]interface{}, 0, len(entries)*5)
	for _, e := range entries {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		values = append(values, "(?, ?, ?, ?, ?)")
		args = append(args, e.Date, e.Mode, e.Code, e.EvaluatedAt.UTC(), string(payload))
	}
	q := fmt.Sprintf(`INSERT INTO hit_rate_entries (date, mode, code, evaluated_at, payload) VALUES %s`,
		strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("save entries: %w", err)
	}
	return nil
}

func (s *ClickHouseStore) EvaluationsInRange(ctx context.Context, from, to, mode string) ([]models.HitRateEntry, error) {
	// FINAL collapses replaced rows so a re-evaluated pair counts once
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM hit_rate_entries FINAL WHERE mode = ? AND date >= ? AND date <= ? ORDER BY date ASC, code ASC`,
		mode, from, to)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	var out []models.HitRateEntry
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var e models.HitRateEntry
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("unmarshal entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *ClickHouseStore) Close() error {
	return s.client.Close()
}

func scanCHRecord(row *sql.Row) (*models.DailyRecord, error) {
	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	var rec models.DailyRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}
