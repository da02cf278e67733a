package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/liftlog/internal/types"
)

const sessionColumns = `id, name, date, started_at, ended_at, notes, created_at, updated_at, synced, user_id`

// GetSession returns the session with the given id.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*types.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sess, err
}

// InsertSession stores a new session as given, including its sync flag.
func (s *SQLiteStore) InsertSession(ctx context.Context, sess types.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sess.ID, sess.Name, sess.Date,
		formatTime(sess.StartedAt), nullTime(sess.EndedAt),
		sess.Notes,
		formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt),
		boolToInt(sess.Synced), nullString(sess.UserID),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateSession applies patch, bumps updated_at and marks the session dirty
// in one statement. Returns the updated session.
func (s *SQLiteStore) UpdateSession(ctx context.Context, id string, patch types.SessionPatch, at time.Time) (*types.Session, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := currentStamp(ctx, tx, "sessions", id)
		if err != nil {
			return err
		}

		var sets []string
		var args []any
		if patch.Name != nil {
			sets = append(sets, "name = ?")
			args = append(args, *patch.Name)
		}
		if patch.Date != nil {
			sets = append(sets, "date = ?")
			args = append(args, *patch.Date)
		}
		if patch.Notes != nil {
			sets = append(sets, "notes = ?")
			args = append(args, *patch.Notes)
		}
		if patch.EndedAt != nil {
			sets = append(sets, "ended_at = ?")
			args = append(args, formatTime(*patch.EndedAt))
		}
		if patch.UserID != nil {
			sets = append(sets, "user_id = ?")
			args = append(args, nullString(*patch.UserID))
		}
		sets = append(sets, "updated_at = ?", "synced = 0")
		args = append(args, formatTime(nextStamp(current, at)), id)

		_, err = tx.ExecContext(ctx, `UPDATE sessions SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetSession(ctx, id)
}

// ActiveSessionForDate returns the most recently started session on date that
// has not been ended.
func (s *SQLiteStore) ActiveSessionForDate(ctx context.Context, date string) (*types.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE date = ? AND ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`, date)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sess, err
}

// ListSessions returns sessions ordered by start time, newest first. An empty
// date lists every session.
func (s *SQLiteStore) ListSessions(ctx context.Context, date string) ([]types.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []any
	if date != "" {
		query += ` WHERE date = ?`
		args = append(args, date)
	}
	query += ` ORDER BY started_at DESC`
	return s.querySessions(ctx, query, args...)
}

// ListUnsyncedSessions returns every dirty session.
func (s *SQLiteStore) ListUnsyncedSessions(ctx context.Context) ([]types.Session, error) {
	return s.querySessions(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE synced = 0
		ORDER BY updated_at
	`)
}

// MarkSessionsSynced clears the dirty flag on the given versions.
func (s *SQLiteStore) MarkSessionsSynced(ctx context.Context, versions []types.Version) (int64, error) {
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		n, err = markSynced(ctx, tx, "sessions", versions)
		return err
	})
	return n, err
}

// MergeSession writes a remote session when it is absent locally or strictly
// newer than the local copy. Merged rows are clean. A session deleted here
// and not yet removed remotely is skipped. Reports whether a row was written.
func (s *SQLiteStore) MergeSession(ctx context.Context, sess types.Session) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, 1, ?
		WHERE NOT EXISTS (SELECT 1 FROM pending_deletes WHERE collection = 'sessions' AND record_id = ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			date = excluded.date,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			notes = excluded.notes,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			synced = 1,
			user_id = excluded.user_id
		WHERE excluded.updated_at > sessions.updated_at
	`,
		sess.ID, sess.Name, sess.Date,
		formatTime(sess.StartedAt), nullTime(sess.EndedAt),
		sess.Notes,
		formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt),
		nullString(sess.UserID),
		sess.ID,
	)
	if err != nil {
		return false, fmt.Errorf("merge session %s: %w", sess.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("merge session rows affected: %w", err)
	}
	return n > 0, nil
}

// ClaimUnownedSessions assigns userID to every session without an owner and
// marks them dirty.
func (s *SQLiteStore) ClaimUnownedSessions(ctx context.Context, userID string, at time.Time) (int64, error) {
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		n, err = claimUnowned(ctx, tx, "sessions", userID, at)
		return err
	})
	return n, err
}

// DeleteSessionCascade removes a session and all of its entries atomically.
// Owned rows are recorded in pending_deletes so the remote copies are removed
// by the next push. Returns the number of entries removed.
func (s *SQLiteStore) DeleteSessionCascade(ctx context.Context, id string, at time.Time) (int64, error) {
	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := recordPendingDeletes(ctx, tx, types.CollectionEntries, `session_id = ?`, at, id); err != nil {
			return err
		}
		if err := recordPendingDeletes(ctx, tx, types.CollectionSessions, `id = ?`, at, id); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE session_id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete session entries: %w", err)
		}
		removed, _ = res.RowsAffected()

		res, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *SQLiteStore) querySessions(ctx context.Context, query string, args ...any) ([]types.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []types.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

func scanSession(scanner rowScanner) (*types.Session, error) {
	var sess types.Session
	var startedAt, createdAt, updatedAt string
	var endedAt, userID sql.NullString
	var synced int

	err := scanner.Scan(
		&sess.ID,
		&sess.Name,
		&sess.Date,
		&startedAt,
		&endedAt,
		&sess.Notes,
		&createdAt,
		&updatedAt,
		&synced,
		&userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if sess.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sess.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if sess.EndedAt, err = parseNullTime(endedAt); err != nil {
		return nil, err
	}
	sess.Synced = synced != 0
	sess.UserID = userID.String
	return &sess, nil
}
