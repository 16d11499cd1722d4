package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mr1hm/go-weather-alerts/internal/models"
)

const defaultLimit = 100

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// Each connection to ":memory:" is its own database, and SQLite allows a
	// single writer anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS alert_history (
			feed_id TEXT NOT NULL,
			id TEXT NOT NULL,
			event TEXT NOT NULL,
			severity TEXT NOT NULL,
			title TEXT NOT NULL,
			area TEXT NOT NULL,
			sent TEXT NOT NULL,
			ends_expires TEXT NOT NULL,
			first_seen DATETIME NOT NULL,
			last_seen DATETIME NOT NULL,
			PRIMARY KEY (feed_id, id)
		);

		CREATE INDEX IF NOT EXISTS idx_alert_history_last_seen ON alert_history(last_seen);
		CREATE INDEX IF NOT EXISTS idx_alert_history_severity ON alert_history(severity);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordAlerts archives every alert in the snapshot. Alerts already on file
// for the feed keep their first_seen; only last_seen advances.
func (s *SQLiteDB) RecordAlerts(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil || len(snap.Alerts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO alert_history
			(feed_id, id, event, severity, title, area, sent, ends_expires, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (feed_id, id) DO UPDATE SET last_seen = excluded.last_seen
	`)
	if err != nil {
		return fmt.Errorf("error preparing insert: %w", err)
	}
	defer stmt.Close()

	seen := snap.UpdatedAt.UTC()
	for _, a := range snap.Alerts {
		if _, err := stmt.ExecContext(ctx,
			snap.FeedID, a.ID, a.Event, a.Severity, a.Title, a.Area, a.Sent, a.EndsExpires, seen, seen,
		); err != nil {
			return fmt.Errorf("error recording alert %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteDB) GetByID(ctx context.Context, feedID, id string) (*HistoryRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT feed_id, id, event, severity, title, area, sent, ends_expires, first_seen, last_seen
		FROM alert_history WHERE feed_id = ? AND id = ?
	`, feedID, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting alert %s: %w", id, err)
	}
	return rec, nil
}

func (s *SQLiteDB) ListAlerts(ctx context.Context, opts Filter) ([]HistoryRecord, error) {
	var (
		where []string
		args  []any
	)
	if opts.FeedID != "" {
		where = append(where, "feed_id = ?")
		args = append(args, opts.FeedID)
	}
	if opts.Severity != "" {
		where = append(where, "severity = ? COLLATE NOCASE")
		args = append(args, opts.Severity)
	}
	if opts.Since != nil {
		where = append(where, "last_seen >= ?")
		args = append(args, opts.Since.UTC())
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	query := `SELECT feed_id, id, event, severity, title, area, sent, ends_expires, first_seen, last_seen
		FROM alert_history`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY last_seen DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing alerts: %w", err)
	}
	defer rows.Close()

	results := make([]HistoryRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning alert: %w", err)
		}
		results = append(results, *rec)
	}
	return results, rows.Err()
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*HistoryRecord, error) {
	var (
		rec                 HistoryRecord
		firstSeen, lastSeen time.Time
	)
	if err := sc.Scan(&rec.FeedID, &rec.ID, &rec.Event, &rec.Severity, &rec.Title, &rec.Area,
		&rec.Sent, &rec.EndsExpires, &firstSeen, &lastSeen); err != nil {
		return nil, err
	}
	rec.FirstSeen = firstSeen.UTC()
	rec.LastSeen = lastSeen.UTC()
	return &rec, nil
}
