// Package session decides which session new entries attach to, and owns the
// session lifecycle: create, staleness rotation, end, update and delete.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperengineering/liftlog/internal/store"
	"github.com/hyperengineering/liftlog/internal/types"
	"github.com/hyperengineering/liftlog/internal/validation"
)

// DefaultStaleAfter is how long an active session may go without activity
// before it is closed and replaced.
const DefaultStaleAfter = 2 * time.Hour

// ErrInvalidDate is returned when a date is not in YYYY-MM-DD form.
var ErrInvalidDate = errors.New("date must be YYYY-MM-DD")

// Store is the subset of the local store used by the manager.
type Store interface {
	GetSession(ctx context.Context, id string) (*types.Session, error)
	InsertSession(ctx context.Context, s types.Session) error
	UpdateSession(ctx context.Context, id string, patch types.SessionPatch, at time.Time) (*types.Session, error)
	ActiveSessionForDate(ctx context.Context, date string) (*types.Session, error)
	ListSessions(ctx context.Context, date string) ([]types.Session, error)
	LatestEntryForSession(ctx context.Context, sessionID string) (*types.Entry, error)
	DeleteSessionCascade(ctx context.Context, id string, at time.Time) (int64, error)
}

// Scheduler is notified after every change that should reach the remote store.
type Scheduler interface {
	Schedule()
}

// Manager implements the session lifecycle.
type Manager struct {
	store      Store
	scheduler  Scheduler
	owner      func() string
	clock      func() time.Time
	location   *time.Location
	staleAfter time.Duration

	// mu serializes get-or-create so one process never opens two active
	// sessions for the same day.
	mu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithLocation sets the time zone used for calendar days and session names.
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) { m.location = loc }
}

// WithStaleAfter overrides the inactivity window.
func WithStaleAfter(d time.Duration) Option {
	return func(m *Manager) { m.staleAfter = d }
}

// WithScheduler sets the sync scheduler.
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) { m.scheduler = s }
}

// WithOwner sets the function returning the current user id, or "" when
// signed out. New sessions carry this owner.
func WithOwner(owner func() string) Option {
	return func(m *Manager) { m.owner = owner }
}

// NewManager creates a session manager.
func NewManager(s Store, opts ...Option) *Manager {
	m := &Manager{
		store:      s,
		owner:      func() string { return "" },
		clock:      time.Now,
		location:   time.Local,
		staleAfter: DefaultStaleAfter,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SessionName returns the automatic label for a session started at t, by
// local hour.
func SessionName(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return "Morning Workout"
	case h >= 12 && h < 17:
		return "Afternoon Workout"
	case h >= 17 && h < 21:
		return "Evening Workout"
	default:
		return "Night Workout"
	}
}

// Today returns the current local calendar day.
func (m *Manager) Today() string {
	return m.now().In(m.location).Format(types.DateLayout)
}

// CreateSession starts a new active session on date.
func (m *Manager) CreateSession(ctx context.Context, date string) (*types.Session, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	now := m.now()
	sess := types.Session{
		ID:        uuid.NewString(),
		Name:      SessionName(now.In(m.location)),
		Date:      date,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    m.owner(),
	}
	if err := m.store.InsertSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	slog.Debug("session created",
		"component", "session",
		"session_id", sess.ID,
		"date", date,
		"name", sess.Name,
	)
	m.schedule()
	return &sess, nil
}

// GetOrCreateActiveSession returns the active session for date. A session
// whose last activity is older than the stale window is ended and replaced.
// Last activity is the creation time of its newest entry, or its start time
// when it has none.
func (m *Manager) GetOrCreateActiveSession(ctx context.Context, date string) (*types.Session, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	active, err := m.store.ActiveSessionForDate(ctx, date)
	if errors.Is(err, store.ErrNotFound) {
		return m.CreateSession(ctx, date)
	}
	if err != nil {
		return nil, fmt.Errorf("find active session: %w", err)
	}

	lastActivity := active.StartedAt
	latest, err := m.store.LatestEntryForSession(ctx, active.ID)
	switch {
	case err == nil:
		lastActivity = latest.CreatedAt
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("find latest entry: %w", err)
	}

	if m.now().Sub(lastActivity) <= m.staleAfter {
		return active, nil
	}

	slog.Info("closing stale session",
		"component", "session",
		"session_id", active.ID,
		"last_activity", lastActivity,
	)
	if _, err := m.EndSession(ctx, active.ID); err != nil {
		return nil, err
	}
	return m.CreateSession(ctx, date)
}

// EndSession sets the session's end time to now.
func (m *Manager) EndSession(ctx context.Context, id string) (*types.Session, error) {
	now := m.now()
	sess, err := m.store.UpdateSession(ctx, id, types.SessionPatch{EndedAt: &now}, now)
	if err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}
	m.schedule()
	return sess, nil
}

// UpdateSession patches name, date or notes. The session is always marked
// dirty.
func (m *Manager) UpdateSession(ctx context.Context, id string, patch types.SessionPatch) (*types.Session, error) {
	if err := validation.ValidateSessionPatch(patch); err != nil {
		return nil, err
	}
	if patch.Date != nil {
		if err := validateDate(*patch.Date); err != nil {
			return nil, err
		}
	}
	sess, err := m.store.UpdateSession(ctx, id, patch, m.now())
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	m.schedule()
	return sess, nil
}

// DeleteSession removes a session and its entries as one unit, and schedules
// the push that removes their remote copies. Returns the number of entries
// removed.
func (m *Manager) DeleteSession(ctx context.Context, id string) (int64, error) {
	removed, err := m.store.DeleteSessionCascade(ctx, id, m.now())
	if err != nil {
		return 0, fmt.Errorf("delete session: %w", err)
	}
	slog.Info("session deleted",
		"component", "session",
		"session_id", id,
		"entries_removed", removed,
	)
	m.schedule()
	return removed, nil
}

// GetSession returns one session.
func (m *Manager) GetSession(ctx context.Context, id string) (*types.Session, error) {
	return m.store.GetSession(ctx, id)
}

// ListSessions returns the sessions of date, or all sessions when date is empty.
func (m *Manager) ListSessions(ctx context.Context, date string) ([]types.Session, error) {
	if date != "" {
		if err := validateDate(date); err != nil {
			return nil, err
		}
	}
	return m.store.ListSessions(ctx, date)
}

func (m *Manager) now() time.Time {
	return m.clock().UTC().Truncate(time.Microsecond)
}

func (m *Manager) schedule() {
	if m.scheduler != nil {
		m.scheduler.Schedule()
	}
}

func validateDate(date string) error {
	if _, err := time.Parse(types.DateLayout, date); err != nil {
		return fmt.Errorf("%q: %w", date, ErrInvalidDate)
	}
	return nil
}
