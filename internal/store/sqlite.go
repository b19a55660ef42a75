package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"gobengali/internal/quota"
)

// SQLiteStore persists quota counters in a SQLite database. Finished days are
// archived to quota_history when a save moves a user to a new reset date.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and runs migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Load implements quota.Store.
func (s *SQLiteStore) Load(ctx context.Context, user string) (quota.State, bool, error) {
	var st quota.State
	err := s.db.QueryRowContext(ctx, `
		SELECT words_used_today, accepts_used_today, last_reset_date
		FROM quota_usage WHERE user_id = ?`, user,
	).Scan(&st.WordsUsedToday, &st.AcceptsUsedToday, &st.LastResetDate)
	if errors.Is(err, sql.ErrNoRows) {
		return quota.State{}, false, nil
	}
	if err != nil {
		return quota.State{}, false, fmt.Errorf("load quota for %s: %w", user, err)
	}
	return st, true, nil
}

// Save implements quota.Store. The upsert and any history row are written in
// one transaction.
func (s *SQLiteStore) Save(ctx context.Context, user string, st quota.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var prev quota.State
	err = tx.QueryRowContext(ctx, `
		SELECT words_used_today, accepts_used_today, last_reset_date
		FROM quota_usage WHERE user_id = ?`, user,
	).Scan(&prev.WordsUsedToday, &prev.AcceptsUsedToday, &prev.LastResetDate)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("read previous quota: %w", err)
	case prev.LastResetDate != st.LastResetDate:
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO quota_history (user_id, day, words_used, accepts_used)
			VALUES (?, ?, ?, ?)`,
			user, prev.LastResetDate, prev.WordsUsedToday, prev.AcceptsUsedToday,
		); err != nil {
			return fmt.Errorf("archive quota day: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO quota_usage (user_id, words_used_today, accepts_used_today, last_reset_date, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			words_used_today = excluded.words_used_today,
			accepts_used_today = excluded.accepts_used_today,
			last_reset_date = excluded.last_reset_date,
			updated_at = excluded.updated_at`,
		user, st.WordsUsedToday, st.AcceptsUsedToday, st.LastResetDate, time.Now().UnixNano(),
	); err != nil {
		return fmt.Errorf("save quota for %s: %w", user, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit quota: %w", err)
	}
	return nil
}

// Day is one archived quota day.
type Day struct {
	Date        string `json:"date"`
	WordsUsed   int    `json:"words_used"`
	AcceptsUsed int    `json:"accepts_used"`
}

// History returns up to limit archived days for user, newest first.
func (s *SQLiteStore) History(ctx context.Context, user string, limit int) ([]Day, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, words_used, accepts_used FROM quota_history
		WHERE user_id = ? ORDER BY day DESC LIMIT ?`, user, limit)
	if err != nil {
		return nil, fmt.Errorf("query quota history: %w", err)
	}
	defer rows.Close()

	var days []Day
	for rows.Next() {
		var d Day
		if err := rows.Scan(&d.Date, &d.WordsUsed, &d.AcceptsUsed); err != nil {
			return nil, fmt.Errorf("scan quota history: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// SchemaVersion returns the applied migration version.
func (s *SQLiteStore) SchemaVersion() (int, error) {
	return schemaVersion(s.db)
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
