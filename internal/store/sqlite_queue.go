package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/liftlog/internal/types"
)

const queueColumns = `id, raw_input, status, created_at, processed_at, error`

// InsertQueueItem records a raw submission.
func (s *SQLiteStore) InsertQueueItem(ctx context.Context, item types.QueueItem) error {
	status := item.Status
	if status == "" {
		status = types.QueueStatusPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingestion_queue (`+queueColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, item.ID, item.RawInput, string(status), formatTime(item.CreatedAt), nullTime(item.ProcessedAt), nullString(item.Error))
	if err != nil {
		return fmt.Errorf("insert queue item: %w", err)
	}
	return nil
}

// GetQueueItem returns the queue item with the given id.
func (s *SQLiteStore) GetQueueItem(ctx context.Context, id string) (*types.QueueItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM ingestion_queue WHERE id = ?`, id)
	item, err := scanQueueItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return item, err
}

// ListQueueItems returns items with the given status, oldest first. An empty
// status lists every item.
func (s *SQLiteStore) ListQueueItems(ctx context.Context, status types.QueueStatus) ([]types.QueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM ingestion_queue`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var out []types.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue items: %w", err)
	}
	return out, nil
}

// MarkQueueItem moves a pending item to a terminal status. Items already in a
// terminal status return ErrInvalidTransition.
func (s *SQLiteStore) MarkQueueItem(ctx context.Context, id string, status types.QueueStatus, errMsg string, at time.Time) error {
	return markQueueItem(ctx, s.db, id, status, errMsg, at)
}

// CompleteQueueItem stores the entries interpreted from a pending item and
// marks it parsed in one transaction. Either both happen or neither does.
func (s *SQLiteStore) CompleteQueueItem(ctx context.Context, id string, entries []types.Entry, at time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range entries {
			if err := insertEntry(ctx, tx, e); err != nil {
				return err
			}
		}
		return markQueueItem(ctx, tx, id, types.QueueStatusParsed, "", at)
	})
}

func markQueueItem(ctx context.Context, q queryExecer, id string, status types.QueueStatus, errMsg string, at time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("mark queue item %s as %q: %w", id, status, ErrInvalidTransition)
	}
	res, err := q.ExecContext(ctx, `
		UPDATE ingestion_queue
		SET status = ?, processed_at = ?, error = ?
		WHERE id = ? AND status = 'pending'
	`, string(status), formatTime(at), nullString(errMsg), id)
	if err != nil {
		return fmt.Errorf("mark queue item: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists int
	err = q.QueryRowContext(ctx, `SELECT 1 FROM ingestion_queue WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("look up queue item: %w", err)
	}
	return fmt.Errorf("mark queue item %s: %w", id, ErrInvalidTransition)
}

func scanQueueItem(scanner rowScanner) (*types.QueueItem, error) {
	var item types.QueueItem
	var status, createdAt string
	var processedAt, errMsg sql.NullString

	err := scanner.Scan(&item.ID, &item.RawInput, &status, &createdAt, &processedAt, &errMsg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan queue item: %w", err)
	}
	item.Status = types.QueueStatus(status)
	item.Error = errMsg.String
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if item.ProcessedAt, err = parseNullTime(processedAt); err != nil {
		return nil, err
	}
	return &item, nil
}
