package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Unit is the weight unit of an entry. The zero value means no unit
// (bodyweight movements) and encodes as JSON null.
type Unit string

const (
	UnitNone Unit = ""
	UnitKg   Unit = "kg"
	UnitLbs  Unit = "lbs"
)

// Valid reports whether u is one of the known units or UnitNone.
func (u Unit) Valid() bool {
	return u == UnitNone || u == UnitKg || u == UnitLbs
}

// MarshalJSON encodes UnitNone as null.
func (u Unit) MarshalJSON() ([]byte, error) {
	if u == UnitNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(u))
}

// UnmarshalJSON decodes null as UnitNone.
func (u *Unit) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*u = UnitNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unit: %w", err)
	}
	*u = Unit(s)
	return nil
}

// ExerciseTypeStrength is the default exercise type.
const ExerciseTypeStrength = "strength"

// Exercise is a named movement. Name is the normalized business key.
type Exercise struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"created_at"`
}

// Entry is one logged observation of an exercise inside a session.
// Weight and Unit are either both set or both empty.
type Entry struct {
	ID         string    `json:"id"`
	ExerciseID string    `json:"exercise_id"`
	SessionID  string    `json:"session_id"`
	Weight     *float64  `json:"weight"`
	Unit       Unit      `json:"unit"`
	Reps       *int      `json:"reps"`
	Sets       *int      `json:"sets"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Synced     bool      `json:"synced"`
	UserID     string    `json:"user_id,omitempty"`
}

// Session groups entries logged during one bout of activity on a calendar day.
// A session with a nil EndedAt is active.
type Session struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Date      string     `json:"date"` // YYYY-MM-DD, local calendar day
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Synced    bool       `json:"synced"`
	UserID    string     `json:"user_id,omitempty"`
}

// HistoryEntry is one logged entry flattened for questions about the workout
// history.
type HistoryEntry struct {
	ID           string   `json:"id"`
	Date         string   `json:"date"`
	ExerciseName string   `json:"exercise_name"`
	Weight       *float64 `json:"weight"`
	Unit         Unit     `json:"unit"`
	Reps         *int     `json:"reps"`
	Sets         *int     `json:"sets"`
}

// Active reports whether the session has not been ended.
func (s Session) Active() bool {
	return s.EndedAt == nil
}

// DateLayout is the calendar-day format used by Session.Date.
const DateLayout = "2006-01-02"

// QueueStatus is the processing status of an ingestion queue item.
type QueueStatus string

const (
	QueueStatusPending QueueStatus = "pending"
	QueueStatusParsed  QueueStatus = "parsed"
	QueueStatusFailed  QueueStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s QueueStatus) Terminal() bool {
	return s == QueueStatusParsed || s == QueueStatusFailed
}

// QueueItem is a raw free-text submission awaiting interpretation.
type QueueItem struct {
	ID          string      `json:"id"`
	RawInput    string      `json:"raw_input"`
	Status      QueueStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	ProcessedAt *time.Time  `json:"processed_at,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// Observation is one structured exercise record produced by the interpreter.
type Observation struct {
	Exercise string   `json:"exercise"`
	Weight   *float64 `json:"weight"`
	Unit     Unit     `json:"unit"`
	Reps     *int     `json:"reps"`
	Sets     *int     `json:"sets"`
}

// Field is an optional patch value. Set distinguishes "leave unchanged" from an
// explicit null, which is Set with a nil Value.
type Field[T any] struct {
	Set   bool
	Value *T
}

// Value returns a Field that sets v.
func Value[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: &v}
}

// Null returns a Field that clears the column.
func Null[T any]() Field[T] {
	return Field[T]{Set: true}
}

// UnmarshalJSON marks the field as set. JSON null clears the value; an absent
// key never reaches this method and leaves the field unset.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	f.Value = nil
	if string(data) == "null" {
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f.Value = &v
	return nil
}

// SessionPatch lists the session fields to change. Nil pointers are left alone.
type SessionPatch struct {
	Name    *string
	Date    *string
	Notes   *string
	EndedAt *time.Time
	UserID  *string
}

// Empty reports whether the patch changes nothing.
func (p SessionPatch) Empty() bool {
	return p.Name == nil && p.Date == nil && p.Notes == nil && p.EndedAt == nil && p.UserID == nil
}

// EntryPatch lists the entry fields to change.
type EntryPatch struct {
	Weight Field[float64]
	Unit   Field[Unit]
	Reps   Field[int]
	Sets   Field[int]
	Notes  *string
	UserID *string
}

// Empty reports whether the patch changes nothing.
func (p EntryPatch) Empty() bool {
	return !p.Weight.Set && !p.Unit.Set && !p.Reps.Set && !p.Sets.Set && p.Notes == nil && p.UserID == nil
}

// Apply returns a copy of e with the patch applied. Timestamps and sync state
// are left to the store.
func (p EntryPatch) Apply(e Entry) Entry {
	if p.Weight.Set {
		e.Weight = p.Weight.Value
	}
	if p.Unit.Set {
		e.Unit = UnitNone
		if p.Unit.Value != nil {
			e.Unit = *p.Unit.Value
		}
	}
	if p.Reps.Set {
		e.Reps = p.Reps.Value
	}
	if p.Sets.Set {
		e.Sets = p.Sets.Value
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	if p.UserID != nil {
		e.UserID = *p.UserID
	}
	return e
}

// Version identifies one version of a record by id and updated_at.
type Version struct {
	ID        string
	UpdatedAt time.Time
}

// PushResult lists the ids confirmed by the remote store in one push.
type PushResult struct {
	Exercises []string `json:"exercises"`
	Sessions  []string `json:"sessions"`
	Entries   []string `json:"entries"`
	Deleted   []string `json:"deleted"`
}

// Empty reports whether nothing was pushed.
func (r PushResult) Empty() bool {
	return len(r.Exercises) == 0 && len(r.Sessions) == 0 && len(r.Entries) == 0 && len(r.Deleted) == 0
}

// MarshalJSON ensures nil slices serialize as empty arrays.
func (r PushResult) MarshalJSON() ([]byte, error) {
	if r.Exercises == nil {
		r.Exercises = []string{}
	}
	if r.Sessions == nil {
		r.Sessions = []string{}
	}
	if r.Entries == nil {
		r.Entries = []string{}
	}
	if r.Deleted == nil {
		r.Deleted = []string{}
	}
	type Alias PushResult
	return json.Marshal(Alias(r))
}

// PullResult counts the records merged from the remote store in one pull.
type PullResult struct {
	Exercises int        `json:"exercises"`
	Sessions  int        `json:"sessions"`
	Entries   int        `json:"entries"`
	Skipped   int        `json:"skipped"`
	Cursor    *time.Time `json:"cursor,omitempty"`
}

// Merged returns the total number of records written locally.
func (r PullResult) Merged() int {
	return r.Exercises + r.Sessions + r.Entries
}

// Collections that can carry a pending remote delete.
const (
	CollectionSessions = "sessions"
	CollectionEntries  = "entries"
)

// PendingDelete is a local delete that has not yet reached the remote store.
type PendingDelete struct {
	Collection string    `json:"collection"`
	RecordID   string    `json:"record_id"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// DrainResult summarizes one ingestion queue drain.
type DrainResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// AssociationResult counts the records claimed for a user after sign-in.
type AssociationResult struct {
	Sessions int64 `json:"sessions"`
	Entries  int64 `json:"entries"`
}

// StoreStats holds local store counters.
type StoreStats struct {
	Exercises      int64 `json:"exercises"`
	Sessions       int64 `json:"sessions"`
	Entries        int64 `json:"entries"`
	DirtySessions  int64 `json:"dirty_sessions"`
	DirtyEntries   int64 `json:"dirty_entries"`
	PendingQueue   int64 `json:"pending_queue"`
	FailedQueue    int64 `json:"failed_queue"`
	PendingDeletes int64 `json:"pending_deletes"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status        string     `json:"status"`
	Version       string     `json:"version"`
	Authenticated bool       `json:"authenticated"`
	Interpreter   string     `json:"interpreter"`
	Stats         StoreStats `json:"stats"`
	LastPull      *time.Time `json:"last_pull,omitempty"`
}
