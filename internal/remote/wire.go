package remote

import (
	"time"

	"github.com/hyperengineering/liftlog/internal/types"
)

// ExerciseRow is the remote shape of an exercise.
type ExerciseRow struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name"`
	Type        string     `json:"type"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// SessionRow is the remote shape of a session.
type SessionRow struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Date      string     `json:"date"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	Notes     *string    `json:"notes"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	UserID    *string    `json:"user_id"`
}

// EntryRow is the remote shape of an entry.
type EntryRow struct {
	ID         string    `json:"id"`
	ExerciseID string    `json:"exercise_id"`
	SessionID  string    `json:"session_id"`
	Weight     *float64  `json:"weight"`
	Unit       *string   `json:"unit"`
	Reps       *int      `json:"reps"`
	Sets       *int      `json:"sets"`
	Notes      *string   `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	UserID     *string   `json:"user_id"`
}

// ExerciseToRow maps a local exercise to its remote shape. The remote
// catalog only knows strength exercises.
func ExerciseToRow(e types.Exercise) ExerciseRow {
	row := ExerciseRow{
		ID:          e.ID,
		Name:        e.Name,
		DisplayName: e.DisplayName,
		Type:        types.ExerciseTypeStrength,
	}
	if !e.CreatedAt.IsZero() {
		t := e.CreatedAt.UTC()
		row.CreatedAt = &t
	}
	return row
}

// ExerciseFromRow maps a remote exercise to the local type.
func ExerciseFromRow(r ExerciseRow) types.Exercise {
	e := types.Exercise{
		ID:          r.ID,
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Type:        r.Type,
	}
	if e.Type == "" {
		e.Type = types.ExerciseTypeStrength
	}
	if r.CreatedAt != nil {
		e.CreatedAt = r.CreatedAt.UTC()
	}
	return e
}

// SessionToRow maps a local session to its remote shape.
func SessionToRow(s types.Session) SessionRow {
	row := SessionRow{
		ID:        s.ID,
		Name:      s.Name,
		Date:      s.Date,
		StartedAt: s.StartedAt.UTC(),
		Notes:     optional(s.Notes),
		CreatedAt: s.CreatedAt.UTC(),
		UpdatedAt: s.UpdatedAt.UTC(),
		UserID:    optional(s.UserID),
	}
	if s.EndedAt != nil {
		t := s.EndedAt.UTC()
		row.EndedAt = &t
	}
	return row
}

// SessionFromRow maps a remote session to the local type. Pulled sessions
// are clean.
func SessionFromRow(r SessionRow) types.Session {
	s := types.Session{
		ID:        r.ID,
		Name:      r.Name,
		Date:      r.Date,
		StartedAt: r.StartedAt.UTC(),
		Notes:     deref(r.Notes),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
		Synced:    true,
		UserID:    deref(r.UserID),
	}
	if r.EndedAt != nil {
		t := r.EndedAt.UTC()
		s.EndedAt = &t
	}
	return s
}

// EntryToRow maps a local entry to its remote shape.
func EntryToRow(e types.Entry) EntryRow {
	return EntryRow{
		ID:         e.ID,
		ExerciseID: e.ExerciseID,
		SessionID:  e.SessionID,
		Weight:     e.Weight,
		Unit:       optional(string(e.Unit)),
		Reps:       e.Reps,
		Sets:       e.Sets,
		Notes:      optional(e.Notes),
		CreatedAt:  e.CreatedAt.UTC(),
		UpdatedAt:  e.UpdatedAt.UTC(),
		UserID:     optional(e.UserID),
	}
}

// EntryFromRow maps a remote entry to the local type. Pulled entries are
// clean.
func EntryFromRow(r EntryRow) types.Entry {
	return types.Entry{
		ID:         r.ID,
		ExerciseID: r.ExerciseID,
		SessionID:  r.SessionID,
		Weight:     r.Weight,
		Unit:       types.Unit(deref(r.Unit)),
		Reps:       r.Reps,
		Sets:       r.Sets,
		Notes:      deref(r.Notes),
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
		Synced:     true,
		UserID:     deref(r.UserID),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
