package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"Sentinel/internal/domain/models"
	"Sentinel/internal/domain/repository"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS daily_records (
	date       TEXT NOT NULL,
	mode       TEXT NOT NULL,
	run_seq    INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	payload    TEXT NOT NULL,
	PRIMARY KEY (date, mode, run_seq)
);
CREATE INDEX IF NOT EXISTS idx_records_mode_date ON daily_records (mode, date);

CREATE TABLE IF NOT EXISTS hit_rate_entries (
	date         TEXT NOT NULL,
	mode         TEXT NOT NULL,
	code         TEXT NOT NULL,
	evaluated_at TEXT NOT NULL,
	payload      TEXT NOT NULL,
	PRIMARY KEY (date, mode, code)
);
CREATE INDEX IF NOT EXISTS idx_evals_mode_date ON hit_rate_entries (mode, date);
`

// SQLiteStore is the embedded RecordStore backend. Records are stored
// as JSON payloads keyed by (date, mode, run_seq) so reruns append
// instead of overwriting.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database file and ensures the
// schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// the store is written by one runner at a time; a single connection
	// sidesteps SQLITE_BUSY under the pool
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite pragma: %w", err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveRecord(ctx context.Context, rec *models.DailyRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO daily_records (date, mode, run_seq, created_at, payload) VALUES (?, ?, ?, ?, ?)`,
		rec.Date, rec.Mode, rec.RunSeq, time.Now().UTC().Format(time.RFC3339), string(payload),
	)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LatestRecord(ctx context.Context, mode string) (*models.DailyRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM daily_records WHERE mode = ? ORDER BY date DESC, run_seq DESC LIMIT 1`, mode)
	return scanRecord(row)
}

func (s *SQLiteStore) RecordByDate(ctx context.Context, date, mode string) (*models.DailyRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM daily_records WHERE date = ? AND mode = ? ORDER BY run_seq DESC LIMIT 1`, date, mode)
	return scanRecord(row)
}

func (s *SQLiteStore) RecordsInRange(ctx context.Context, from, to, mode string) ([]*models.DailyRecord, error) {
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

func (s *SQLiteStore) SaveEvaluations(ctx context.Context, entries []models.HitRateEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO hit_rate_entries (date, mode, code, evaluated_at, payload) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, e.Date, e.Mode, e.Code,
			e.EvaluatedAt.UTC().Format(time.RFC3339), string(payload)); err != nil {
			return fmt.Errorf("save entry: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) EvaluationsInRange(ctx context.Context, from, to, mode string) ([]models.HitRateEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM hit_rate_entries WHERE mode = ? AND date >= ? AND date <= ? ORDER BY date ASC, code ASC`,
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanRecord(row *sql.Row) (*models.DailyRecord, error) {
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
