package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/liftlog/internal/types"
	_ "modernc.org/sqlite"
)

// timeLayout has a fixed fractional width so that stored timestamps compare
// lexicographically in temporal order.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// SQLiteStore is the SQLite-backed local store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection serializes writers and keeps :memory: databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetStats returns local store counters.
func (s *SQLiteStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	var stats types.StoreStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM exercises),
			(SELECT COUNT(*) FROM sessions),
			(SELECT COUNT(*) FROM entries),
			(SELECT COUNT(*) FROM sessions WHERE synced = 0),
			(SELECT COUNT(*) FROM entries WHERE synced = 0),
			(SELECT COUNT(*) FROM ingestion_queue WHERE status = 'pending'),
			(SELECT COUNT(*) FROM ingestion_queue WHERE status = 'failed'),
			(SELECT COUNT(*) FROM pending_deletes)
	`).Scan(
		&stats.Exercises,
		&stats.Sessions,
		&stats.Entries,
		&stats.DirtySessions,
		&stats.DirtyEntries,
		&stats.PendingQueue,
		&stats.FailedQueue,
		&stats.PendingDeletes,
	)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return &stats, nil
}

// GetMeta retrieves a sync metadata value by key.
func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM sync_meta WHERE key = ?
	`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("sync meta key %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get sync meta: %w", err)
	}
	return value, nil
}

// SetMeta sets a sync metadata value.
func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_meta (key, value) VALUES (?, ?)
	`, key, value)
	if err != nil {
		return fmt.Errorf("set sync meta: %w", err)
	}
	return nil
}

// DeleteMeta removes a sync metadata key. Missing keys are not an error.
func (s *SQLiteStore) DeleteMeta(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_meta WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete sync meta: %w", err)
	}
	return nil
}

// execContext is satisfied by both *sql.DB and *sql.Tx.
type execContext interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// queryExecer is satisfied by both *sql.DB and *sql.Tx.
type queryExecer interface {
	execContext
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// withTx runs fn in a transaction, committing on success.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nextStamp returns the updated_at for a write at the given time. Stamps
// never move backwards for a record, even if the wall clock does.
func nextStamp(current, at time.Time) time.Time {
	at = at.UTC().Truncate(time.Microsecond)
	if !at.After(current) {
		return current.Add(time.Microsecond)
	}
	return at
}

// markSynced clears the dirty flag for each version whose updated_at still
// matches. Records edited after they were read stay dirty.
func markSynced(ctx context.Context, tx *sql.Tx, table string, versions []types.Version) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, `UPDATE `+table+` SET synced = 1 WHERE id = ? AND updated_at = ?`)
	if err != nil {
		return 0, fmt.Errorf("prepare mark synced: %w", err)
	}
	defer stmt.Close()

	var total int64
	for _, v := range versions {
		res, err := stmt.ExecContext(ctx, v.ID, formatTime(v.UpdatedAt))
		if err != nil {
			return 0, fmt.Errorf("mark %s %s synced: %w", table, v.ID, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// claimUnowned sets user_id on every row of table that has none.
func claimUnowned(ctx context.Context, tx *sql.Tx, table, userID string, at time.Time) (int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, updated_at FROM `+table+` WHERE user_id IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("select unowned %s: %w", table, err)
	}
	var versions []types.Version
	for rows.Next() {
		var id, updatedAt string
		if err := rows.Scan(&id, &updatedAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan unowned %s: %w", table, err)
		}
		t, err := parseTime(updatedAt)
		if err != nil {
			rows.Close()
			return 0, err
		}
		versions = append(versions, types.Version{ID: id, UpdatedAt: t})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("iterate unowned %s: %w", table, err)
	}
	rows.Close()

	for _, v := range versions {
		_, err := tx.ExecContext(ctx, `
			UPDATE `+table+` SET user_id = ?, updated_at = ?, synced = 0 WHERE id = ?
		`, userID, formatTime(nextStamp(v.UpdatedAt, at)), v.ID)
		if err != nil {
			return 0, fmt.Errorf("claim %s %s: %w", table, v.ID, err)
		}
	}
	return int64(len(versions)), nil
}

// currentStamp reads the updated_at of a row inside tx.
func currentStamp(ctx context.Context, tx *sql.Tx, table, id string) (time.Time, error) {
	var updatedAt string
	err := tx.QueryRowContext(ctx, `SELECT updated_at FROM `+table+` WHERE id = ?`, id).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read %s updated_at: %w", table, err)
	}
	return parseTime(updatedAt)
}

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)
