package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperengineering/liftlog/internal/types"
)

// exerciseNamespace scopes the name-derived exercise ids.
var exerciseNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://liftlog.app/exercises"))

// ExerciseID returns the id for the exercise with the given normalized name.
// Every device derives the same id for the same name.
func ExerciseID(name string) string {
	return uuid.NewSHA1(exerciseNamespace, []byte(name)).String()
}

// starterCatalog is inserted into an empty exercise table.
var starterCatalog = []struct {
	name        string
	displayName string
}{
	// chest
	{"bench_press", "Bench Press"},
	{"incline_bench_press", "Incline Bench Press"},
	{"dumbbell_fly", "Dumbbell Fly"},
	{"push_up", "Push Up"},
	{"dips", "Dips"},
	// back
	{"deadlift", "Deadlift"},
	{"barbell_row", "Barbell Row"},
	{"pull_up", "Pull Up"},
	{"lat_pulldown", "Lat Pulldown"},
	{"seated_cable_row", "Seated Cable Row"},
	// shoulders
	{"overhead_press", "Overhead Press"},
	{"lateral_raise", "Lateral Raise"},
	{"front_raise", "Front Raise"},
	{"face_pull", "Face Pull"},
	{"shrug", "Shrug"},
	// arms
	{"bicep_curl", "Bicep Curl"},
	{"hammer_curl", "Hammer Curl"},
	{"tricep_pushdown", "Tricep Pushdown"},
	{"skull_crusher", "Skull Crusher"},
	{"tricep_extension", "Tricep Extension"},
	// legs
	{"squat", "Squat"},
	{"front_squat", "Front Squat"},
	{"leg_press", "Leg Press"},
	{"romanian_deadlift", "Romanian Deadlift"},
	{"leg_curl", "Leg Curl"},
	{"leg_extension", "Leg Extension"},
	{"calf_raise", "Calf Raise"},
	{"lunge", "Lunge"},
	// core
	{"plank", "Plank"},
	{"crunch", "Crunch"},
}

// SeedExercises inserts the starter catalog when the exercise table is empty.
// Returns the number of exercises inserted.
func (s *SQLiteStore) SeedExercises(ctx context.Context, at time.Time) (int, error) {
	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM exercises`).Scan(&count); err != nil {
			return fmt.Errorf("count exercises: %w", err)
		}
		if count > 0 {
			return nil
		}
		for _, c := range starterCatalog {
			err := insertExercise(ctx, tx, types.Exercise{
				ID:          ExerciseID(c.name),
				Name:        c.name,
				DisplayName: c.displayName,
				Type:        types.ExerciseTypeStrength,
				CreatedAt:   at,
			})
			if err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("seed exercises: %w", err)
	}
	return inserted, nil
}
