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

const entryColumns = `id, exercise_id, session_id, weight, unit, reps, sets, notes, created_at, updated_at, synced, user_id`

// GetEntry returns the entry with the given id.
func (s *SQLiteStore) GetEntry(ctx context.Context, id string) (*types.Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// InsertEntry stores a new entry as given, including its sync flag.
func (s *SQLiteStore) InsertEntry(ctx context.Context, e types.Entry) error {
	return insertEntry(ctx, s.db, e)
}

// InsertEntries stores a batch of entries in one transaction.
func (s *SQLiteStore) InsertEntries(ctx context.Context, entries []types.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range entries {
			if err := insertEntry(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateEntry applies patch, bumps updated_at and marks the entry dirty.
// Returns the updated entry.
func (s *SQLiteStore) UpdateEntry(ctx context.Context, id string, patch types.EntryPatch, at time.Time) (*types.Entry, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := currentStamp(ctx, tx, "entries", id)
		if err != nil {
			return err
		}

		var sets []string
		var args []any
		if patch.Weight.Set {
			sets = append(sets, "weight = ?")
			args = append(args, nullFloat(patch.Weight.Value))
		}
		if patch.Unit.Set {
			var unit types.Unit
			if patch.Unit.Value != nil {
				unit = *patch.Unit.Value
			}
			sets = append(sets, "unit = ?")
			args = append(args, nullString(string(unit)))
		}
		if patch.Reps.Set {
			sets = append(sets, "reps = ?")
			args = append(args, nullInt(patch.Reps.Value))
		}
		if patch.Sets.Set {
			sets = append(sets, "sets = ?")
			args = append(args, nullInt(patch.Sets.Value))
		}
		if patch.Notes != nil {
			sets = append(sets, "notes = ?")
			args = append(args, *patch.Notes)
		}
		if patch.UserID != nil {
			sets = append(sets, "user_id = ?")
			args = append(args, nullString(*patch.UserID))
		}
		sets = append(sets, "updated_at = ?", "synced = 0")
		args = append(args, formatTime(nextStamp(current, at)), id)

		_, err = tx.ExecContext(ctx, `UPDATE entries SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return fmt.Errorf("update entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetEntry(ctx, id)
}

// DeleteEntry removes an entry locally. An owned entry may exist on the remote
// store, so its delete is recorded in pending_deletes in the same transaction.
func (s *SQLiteStore) DeleteEntry(ctx context.Context, id string, at time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := recordPendingDeletes(ctx, tx, types.CollectionEntries, `id = ?`, at, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete entry: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListEntriesBySession returns a session's entries in creation order.
func (s *SQLiteStore) ListEntriesBySession(ctx context.Context, sessionID string) ([]types.Entry, error) {
	return s.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE session_id = ?
		ORDER BY created_at, id
	`, sessionID)
}

// LatestEntryForSession returns the most recently created entry of a session.
func (s *SQLiteStore) LatestEntryForSession(ctx context.Context, sessionID string) (*types.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE session_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, sessionID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// ListUnsyncedEntries returns every dirty entry.
func (s *SQLiteStore) ListUnsyncedEntries(ctx context.Context) ([]types.Entry, error) {
	return s.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE synced = 0
		ORDER BY updated_at
	`)
}

// MarkEntriesSynced clears the dirty flag on the given versions.
func (s *SQLiteStore) MarkEntriesSynced(ctx context.Context, versions []types.Version) (int64, error) {
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		n, err = markSynced(ctx, tx, "entries", versions)
		return err
	})
	return n, err
}

// MergeEntry writes a remote entry when it is absent locally or strictly
// newer than the local copy. Merged rows are clean. An entry whose session is
// not present locally, or that was deleted here and not yet removed remotely,
// is skipped. Reports whether a row was written.
func (s *SQLiteStore) MergeEntry(ctx context.Context, e types.Entry) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (`+entryColumns+`)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?
		WHERE EXISTS (SELECT 1 FROM sessions WHERE id = ?)
			AND NOT EXISTS (SELECT 1 FROM pending_deletes WHERE collection = 'entries' AND record_id = ?)
		ON CONFLICT(id) DO UPDATE SET
			exercise_id = excluded.exercise_id,
			session_id = excluded.session_id,
			weight = excluded.weight,
			unit = excluded.unit,
			reps = excluded.reps,
			sets = excluded.sets,
			notes = excluded.notes,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			synced = 1,
			user_id = excluded.user_id
		WHERE excluded.updated_at > entries.updated_at
	`,
		e.ID, e.ExerciseID, e.SessionID,
		nullFloat(e.Weight), nullString(string(e.Unit)), nullInt(e.Reps), nullInt(e.Sets),
		e.Notes,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
		nullString(e.UserID),
		e.SessionID, e.ID,
	)
	if err != nil {
		return false, fmt.Errorf("merge entry %s: %w", e.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("merge entry rows affected: %w", err)
	}
	return n > 0, nil
}

// ClaimUnownedEntries assigns userID to every entry without an owner and
// marks them dirty.
func (s *SQLiteStore) ClaimUnownedEntries(ctx context.Context, userID string, at time.Time) (int64, error) {
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		n, err = claimUnowned(ctx, tx, "entries", userID, at)
		return err
	})
	return n, err
}

func insertEntry(ctx context.Context, execer execContext, e types.Entry) error {
	_, err := execer.ExecContext(ctx, `
		INSERT INTO entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.ExerciseID, e.SessionID,
		nullFloat(e.Weight), nullString(string(e.Unit)), nullInt(e.Reps), nullInt(e.Sets),
		e.Notes,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
		boolToInt(e.Synced), nullString(e.UserID),
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) queryEntries(ctx context.Context, query string, args ...any) ([]types.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []types.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

func scanEntry(scanner rowScanner) (*types.Entry, error) {
	var e types.Entry
	var weight sql.NullFloat64
	var unit, userID sql.NullString
	var reps, sets sql.NullInt64
	var createdAt, updatedAt string
	var synced int

	err := scanner.Scan(
		&e.ID,
		&e.ExerciseID,
		&e.SessionID,
		&weight,
		&unit,
		&reps,
		&sets,
		&e.Notes,
		&createdAt,
		&updatedAt,
		&synced,
		&userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan entry: %w", err)
	}

	if weight.Valid {
		w := weight.Float64
		e.Weight = &w
	}
	e.Unit = types.Unit(unit.String)
	if reps.Valid {
		n := int(reps.Int64)
		e.Reps = &n
	}
	if sets.Valid {
		n := int(sets.Int64)
		e.Sets = &n
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	e.Synced = synced != 0
	e.UserID = userID.String
	return &e, nil
}

// ListHistory returns the most recent entries, newest first, with the date of
// their session and the display name of their exercise. An entry whose
// exercise is unknown locally carries its exercise id as the name.
func (s *SQLiteStore) ListHistory(ctx context.Context, limit int) ([]types.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, s.date, COALESCE(x.display_name, e.exercise_id),
			e.weight, e.unit, e.reps, e.sets
		FROM entries e
		JOIN sessions s ON s.id = e.session_id
		LEFT JOIN exercises x ON x.id = e.exercise_id
		ORDER BY e.created_at DESC, e.id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []types.HistoryEntry
	for rows.Next() {
		var h types.HistoryEntry
		var weight sql.NullFloat64
		var unit sql.NullString
		var reps, sets sql.NullInt64
		if err := rows.Scan(&h.ID, &h.Date, &h.ExerciseName, &weight, &unit, &reps, &sets); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if weight.Valid {
			w := weight.Float64
			h.Weight = &w
		}
		h.Unit = types.Unit(unit.String)
		if reps.Valid {
			n := int(reps.Int64)
			h.Reps = &n
		}
		if sets.Valid {
			n := int(sets.Int64)
			h.Sets = &n
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}
