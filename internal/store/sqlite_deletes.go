package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hyperengineering/liftlog/internal/types"
)

// ListPendingDeletes returns deletes awaiting the remote store. Entries come
// before sessions, each oldest first.
func (s *SQLiteStore) ListPendingDeletes(ctx context.Context) ([]types.PendingDelete, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, record_id, attempts, last_error, created_at
		FROM pending_deletes
		ORDER BY CASE collection WHEN 'entries' THEN 0 ELSE 1 END, created_at, record_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list pending deletes: %w", err)
	}
	defer rows.Close()

	var out []types.PendingDelete
	for rows.Next() {
		var d types.PendingDelete
		var lastError sql.NullString
		var createdAt string
		if err := rows.Scan(&d.Collection, &d.RecordID, &d.Attempts, &lastError, &createdAt); err != nil {
			return nil, fmt.Errorf("scan pending delete: %w", err)
		}
		d.LastError = lastError.String
		if d.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending deletes: %w", err)
	}
	return out, nil
}

// ClearPendingDelete forgets a delete the remote store has applied.
func (s *SQLiteStore) ClearPendingDelete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM pending_deletes WHERE collection = ? AND record_id = ?
	`, collection, id)
	if err != nil {
		return fmt.Errorf("clear pending delete: %w", err)
	}
	return nil
}

// FailPendingDelete records a failed remote delete attempt. The row stays
// for the next push.
func (s *SQLiteStore) FailPendingDelete(ctx context.Context, collection, id, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pending_deletes
		SET attempts = attempts + 1, last_error = ?
		WHERE collection = ? AND record_id = ?
	`, nullString(errMsg), collection, id)
	if err != nil {
		return fmt.Errorf("fail pending delete: %w", err)
	}
	return nil
}

// recordPendingDeletes queues a remote delete for each owned row of
// collection matching where. Unowned rows have never been pushed.
func recordPendingDeletes(ctx context.Context, tx *sql.Tx, collection, where string, at time.Time, args ...any) error {
	query := `
		INSERT OR IGNORE INTO pending_deletes (collection, record_id, created_at)
		SELECT ?, id, ? FROM ` + collection + `
		WHERE user_id IS NOT NULL AND ` + where
	params := append([]any{collection, formatTime(at)}, args...)
	if _, err := tx.ExecContext(ctx, query, params...); err != nil {
		return fmt.Errorf("record pending %s deletes: %w", collection, err)
	}
	return nil
}
