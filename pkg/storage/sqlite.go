package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLite implements Store and HistoryStore using an SQLite database. The
// state row carries a revision counter used for compare-and-swap.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) Load(ctx context.Context) (model.AlertState, uint64, error) {
	var (
		body     string
		revision uint64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT state, revision FROM alert_state WHERE id = 1`,
	).Scan(&body, &revision)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewAlertState(), 0, nil
	}
	if err != nil {
		return model.NewAlertState(), 0, fmt.Errorf("%w: load state: %w", ErrUnreadable, err)
	}

	st, err := decodeState([]byte(body))
	if err != nil {
		return model.NewAlertState(), revision, err
	}
	return st, revision, nil
}

func (s *SQLite) Save(ctx context.Context, state model.AlertState, revision uint64) (uint64, error) {
	data, err := encodeState(state)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()

	var result sql.Result
	if revision == 0 {
		result, err = s.db.ExecContext(ctx,
			`INSERT INTO alert_state (id, state, revision, updated_at) VALUES (1, ?, 1, ?)
			 ON CONFLICT(id) DO NOTHING`,
			string(data), now,
		)
	} else {
		result, err = s.db.ExecContext(ctx,
			`UPDATE alert_state SET state = ?, revision = revision + 1, updated_at = ?
			 WHERE id = 1 AND revision = ?`,
			string(data), now, revision,
		)
	}
	if err != nil {
		return 0, fmt.Errorf("save state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return 0, ErrConflict
	}
	return revision + 1, nil
}

func (s *SQLite) RecordCheck(ctx context.Context, record model.CheckRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CheckedAt.IsZero() {
		record.CheckedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO check_history (id, checked_at, outcome, five_hour_percent, weekly_percent,
		   thresholds_crossed, notifications_sent, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.CheckedAt.UTC(), string(record.Outcome),
		record.FiveHourPercent, record.WeeklyPercent,
		record.ThresholdsCrossed, record.NotificationsSent, record.Error,
	)
	if err != nil {
		return fmt.Errorf("insert check record: %w", err)
	}
	return nil
}

func (s *SQLite) ListChecks(ctx context.Context, limit int) ([]model.CheckRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, checked_at, outcome, five_hour_percent, weekly_percent,
		   thresholds_crossed, notifications_sent, error
		 FROM check_history ORDER BY checked_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	defer rows.Close()

	var records []model.CheckRecord
	for rows.Next() {
		var (
			r       model.CheckRecord
			outcome string
		)
		if err := rows.Scan(&r.ID, &r.CheckedAt, &outcome, &r.FiveHourPercent, &r.WeeklyPercent,
			&r.ThresholdsCrossed, &r.NotificationsSent, &r.Error); err != nil {
			return nil, fmt.Errorf("scan check row: %w", err)
		}
		r.Outcome = model.Outcome(outcome)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
