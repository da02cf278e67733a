package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperengineering/liftlog/internal/types"
)

const exerciseColumns = `id, name, display_name, type, created_at`

// GetExercise returns the exercise with the given id.
func (s *SQLiteStore) GetExercise(ctx context.Context, id string) (*types.Exercise, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE id = ?`, id)
	return scanExerciseRow(row)
}

// GetExerciseByName returns the exercise with the given normalized name.
func (s *SQLiteStore) GetExerciseByName(ctx context.Context, name string) (*types.Exercise, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE name = ?`, name)
	return scanExerciseRow(row)
}

// InsertExercise stores a new exercise. A name collision returns
// ErrDuplicateExercise.
func (s *SQLiteStore) InsertExercise(ctx context.Context, e types.Exercise) error {
	if err := insertExercise(ctx, s.db, e); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("exercise %q: %w", e.Name, ErrDuplicateExercise)
		}
		return err
	}
	return nil
}

// ListExercises returns the catalog ordered by name.
func (s *SQLiteStore) ListExercises(ctx context.Context) ([]types.Exercise, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+exerciseColumns+` FROM exercises ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	defer rows.Close()

	var out []types.Exercise
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// MergeExercise inserts a remote exercise unless its id or name is already
// known locally. Exercises are immutable, so existing rows are never
// overwritten. Reports whether a row was written.
func (s *SQLiteStore) MergeExercise(ctx context.Context, e types.Exercise) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO exercises (`+exerciseColumns+`)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, e.ID, e.Name, e.DisplayName, exerciseType(e.Type), formatTime(e.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("merge exercise %s: %w", e.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("merge exercise rows affected: %w", err)
	}
	return n > 0, nil
}

func insertExercise(ctx context.Context, execer execContext, e types.Exercise) error {
	_, err := execer.ExecContext(ctx, `
		INSERT INTO exercises (`+exerciseColumns+`)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, e.Name, e.DisplayName, exerciseType(e.Type), formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert exercise: %w", err)
	}
	return nil
}

func exerciseType(t string) string {
	if t == "" {
		return types.ExerciseTypeStrength
	}
	return t
}

func scanExerciseRow(row *sql.Row) (*types.Exercise, error) {
	e, err := scanExercise(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func scanExercise(scanner rowScanner) (*types.Exercise, error) {
	var e types.Exercise
	var createdAt string
	if err := scanner.Scan(&e.ID, &e.Name, &e.DisplayName, &e.Type, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan exercise: %w", err)
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	e.CreatedAt = t
	return &e, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
