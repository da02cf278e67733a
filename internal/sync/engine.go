// Package sync reconciles the local store with the remote replica: push of
// dirty rows, cursor-based pull with last-writer-wins merge, a debounced push
// scheduler, and ownership association after sign-in.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/hyperengineering/liftlog/internal/remote"
	"github.com/hyperengineering/liftlog/internal/store"
	"github.com/hyperengineering/liftlog/internal/types"
)

// scheduledPushTimeout bounds a push started by the debounce timer.
const scheduledPushTimeout = 2 * time.Minute

// Engine runs push and pull. Each is single-flight against itself; a push and
// a pull may overlap.
type Engine struct {
	store    Store
	remote   remote.Store
	auth     AuthState
	clock    func() time.Time
	debounce time.Duration

	pushing atomic.Bool
	pulling atomic.Bool

	mu     stdsync.Mutex
	timer  *time.Timer
	gen    uint64
	closed bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithDebounce overrides the scheduled push delay.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) { e.debounce = d }
}

// NewEngine creates a sync engine. A nil remote disables syncing.
func NewEngine(s Store, r remote.Store, auth AuthState, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		remote:   r,
		auth:     auth,
		clock:    time.Now,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Push upserts all exercises, then dirty sessions, then dirty entries, and
// marks each pushed version synced. Recorded local deletes are sent last. It
// returns an empty result when not authenticated or when another push is
// running. Remote errors are returned with the dirty flags of the failing
// phase untouched.
func (e *Engine) Push(ctx context.Context) (types.PushResult, error) {
	var result types.PushResult
	if !e.ready() {
		return result, nil
	}
	if !e.pushing.CompareAndSwap(false, true) {
		slog.Debug("push already in progress",
			"component", "sync",
			"action", "push",
		)
		return result, nil
	}
	defer e.pushing.Store(false)

	exercises, err := e.store.ListExercises(ctx)
	if err != nil {
		return result, fmt.Errorf("list exercises: %w", err)
	}
	if len(exercises) > 0 {
		if err := e.remote.UpsertExercises(ctx, exercises); err != nil {
			return result, fmt.Errorf("push exercises: %w", err)
		}
		for _, ex := range exercises {
			result.Exercises = append(result.Exercises, ex.ID)
		}
	}

	sessions, err := e.store.ListUnsyncedSessions(ctx)
	if err != nil {
		return result, fmt.Errorf("list dirty sessions: %w", err)
	}
	if len(sessions) > 0 {
		if err := e.remote.UpsertSessions(ctx, sessions); err != nil {
			return result, fmt.Errorf("push sessions: %w", err)
		}
		versions := make([]types.Version, len(sessions))
		for i, s := range sessions {
			versions[i] = types.Version{ID: s.ID, UpdatedAt: s.UpdatedAt}
			result.Sessions = append(result.Sessions, s.ID)
		}
		if _, err := e.store.MarkSessionsSynced(ctx, versions); err != nil {
			return result, fmt.Errorf("mark sessions synced: %w", err)
		}
	}

	entries, err := e.store.ListUnsyncedEntries(ctx)
	if err != nil {
		return result, fmt.Errorf("list dirty entries: %w", err)
	}
	if len(entries) > 0 {
		if err := e.remote.UpsertEntries(ctx, entries); err != nil {
			return result, fmt.Errorf("push entries: %w", err)
		}
		versions := make([]types.Version, len(entries))
		for i, en := range entries {
			versions[i] = types.Version{ID: en.ID, UpdatedAt: en.UpdatedAt}
			result.Entries = append(result.Entries, en.ID)
		}
		if _, err := e.store.MarkEntriesSynced(ctx, versions); err != nil {
			return result, fmt.Errorf("mark entries synced: %w", err)
		}
	}

	result.Deleted, err = e.pushDeletes(ctx)
	if err != nil {
		return result, err
	}

	slog.Info("push completed",
		"component", "sync",
		"action", "push",
		"exercises", len(result.Exercises),
		"sessions", len(result.Sessions),
		"entries", len(result.Entries),
		"deleted", len(result.Deleted),
	)
	return result, nil
}

// Pull fetches records changed since the stored cursor and merges them. The
// cursor advances to the time the pull started, and only when every
// collection was fetched and merged.
func (e *Engine) Pull(ctx context.Context) (types.PullResult, error) {
	var result types.PullResult
	if !e.ready() {
		return result, nil
	}
	if !e.pulling.CompareAndSwap(false, true) {
		slog.Debug("pull already in progress",
			"component", "sync",
			"action", "pull",
		)
		return result, nil
	}
	defer e.pulling.Store(false)

	start := e.now()
	user := e.auth.UserID()
	if err := e.bindCursor(ctx, user); err != nil {
		return result, err
	}
	cursor, err := e.cursor(ctx, user)
	if err != nil {
		return result, err
	}

	exercises, err := e.remote.ExercisesSince(ctx, cursor)
	if err != nil {
		return result, fmt.Errorf("pull exercises: %w", err)
	}
	for _, ex := range exercises {
		applied, err := e.store.MergeExercise(ctx, ex)
		if err != nil {
			return result, err
		}
		tally(&result, applied, &result.Exercises)
	}

	sessions, err := e.remote.SessionsSince(ctx, cursor)
	if err != nil {
		return result, fmt.Errorf("pull sessions: %w", err)
	}
	for _, s := range sessions {
		applied, err := e.store.MergeSession(ctx, s)
		if err != nil {
			return result, err
		}
		tally(&result, applied, &result.Sessions)
	}

	entries, err := e.remote.EntriesSince(ctx, cursor)
	if err != nil {
		return result, fmt.Errorf("pull entries: %w", err)
	}
	for _, en := range entries {
		applied, err := e.store.MergeEntry(ctx, en)
		if err != nil {
			return result, err
		}
		tally(&result, applied, &result.Entries)
	}

	if err := e.store.SetMeta(ctx, SyncMetaLastPull, start.Format(time.RFC3339Nano)); err != nil {
		return result, fmt.Errorf("save pull cursor: %w", err)
	}
	result.Cursor = &start

	slog.Info("pull completed",
		"component", "sync",
		"action", "pull",
		"exercises", result.Exercises,
		"sessions", result.Sessions,
		"entries", result.Entries,
		"skipped", result.Skipped,
	)
	return result, nil
}

// LastPull returns the pull cursor of the signed-in user, or nil if no pull
// has completed for them.
func (e *Engine) LastPull(ctx context.Context) (*time.Time, error) {
	if e.auth == nil {
		return nil, nil
	}
	cursor, err := e.cursor(ctx, e.auth.UserID())
	if err != nil || cursor.IsZero() {
		return nil, err
	}
	return &cursor, nil
}

// AssociateOwner assigns userID to every unowned session and entry and
// schedules a push when anything changed. Running it again is a no-op.
func (e *Engine) AssociateOwner(ctx context.Context, userID string) (types.AssociationResult, error) {
	var result types.AssociationResult
	now := e.now()

	n, err := e.store.ClaimUnownedSessions(ctx, userID, now)
	if err != nil {
		return result, fmt.Errorf("claim sessions: %w", err)
	}
	result.Sessions = n

	n, err = e.store.ClaimUnownedEntries(ctx, userID, now)
	if err != nil {
		return result, fmt.Errorf("claim entries: %w", err)
	}
	result.Entries = n

	if result.Sessions > 0 || result.Entries > 0 {
		slog.Info("associated local records with user",
			"component", "sync",
			"action", "associate",
			"user_id", userID,
			"sessions", result.Sessions,
			"entries", result.Entries,
		)
		e.Schedule()
	}
	return result, nil
}

// HandleSignIn runs association for a newly signed-in user. It matches
// auth.SignInFunc.
func (e *Engine) HandleSignIn(ctx context.Context, userID string) {
	if _, err := e.AssociateOwner(ctx, userID); err != nil {
		slog.Error("association after sign-in failed",
			"component", "sync",
			"action", "associate",
			"user_id", userID,
			"error", err,
		)
	}
}

// PushDeletes sends recorded local deletes to the remote store without
// waiting for the next push. It is a no-op when not authenticated. Returns
// the ids deleted remotely.
func (e *Engine) PushDeletes(ctx context.Context) ([]string, error) {
	if !e.ready() {
		return nil, nil
	}
	return e.pushDeletes(ctx)
}

// pushDeletes sends pending deletes, entries before sessions. The first
// failure is recorded on its row and stops the flush; the row stays for the
// next push.
func (e *Engine) pushDeletes(ctx context.Context) ([]string, error) {
	pending, err := e.store.ListPendingDeletes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending deletes: %w", err)
	}

	var deleted []string
	for _, d := range pending {
		if err := e.deleteRemote(ctx, d); err != nil {
			if ferr := e.store.FailPendingDelete(ctx, d.Collection, d.RecordID, err.Error()); ferr != nil {
				slog.Warn("recording failed delete",
					"component", "sync",
					"action", "delete",
					"record_id", d.RecordID,
					"error", ferr,
				)
			}
			return deleted, fmt.Errorf("push delete: %w", err)
		}
		if err := e.store.ClearPendingDelete(ctx, d.Collection, d.RecordID); err != nil {
			return deleted, err
		}
		deleted = append(deleted, d.RecordID)
	}
	return deleted, nil
}

func (e *Engine) deleteRemote(ctx context.Context, d types.PendingDelete) error {
	switch d.Collection {
	case types.CollectionEntries:
		return e.remote.DeleteEntry(ctx, d.RecordID)
	case types.CollectionSessions:
		return e.remote.DeleteSession(ctx, d.RecordID)
	default:
		return fmt.Errorf("unknown collection %q", d.Collection)
	}
}

func tally(result *types.PullResult, applied bool, counter *int) {
	if applied {
		*counter++
		return
	}
	result.Skipped++
}

func (e *Engine) ready() bool {
	return e.remote != nil && e.auth != nil && e.auth.IsAuthenticated()
}

// cursor returns the pull cursor saved for user. A cursor saved while a
// different user was signed in reads as zero.
func (e *Engine) cursor(ctx context.Context, user string) (time.Time, error) {
	owner, err := e.meta(ctx, SyncMetaPullUser)
	if err != nil {
		return time.Time{}, err
	}
	if owner != user {
		return time.Time{}, nil
	}
	raw, err := e.meta(ctx, SyncMetaLastPull)
	if err != nil || raw == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse pull cursor %q: %w", raw, err)
	}
	return t, nil
}

// bindCursor drops a cursor saved for another user before this user's first
// pull, so the new user's records older than it are still fetched.
func (e *Engine) bindCursor(ctx context.Context, user string) error {
	owner, err := e.meta(ctx, SyncMetaPullUser)
	if err != nil || owner == user {
		return err
	}
	if err := e.store.DeleteMeta(ctx, SyncMetaLastPull); err != nil {
		return fmt.Errorf("reset pull cursor: %w", err)
	}
	if err := e.store.SetMeta(ctx, SyncMetaPullUser, user); err != nil {
		return fmt.Errorf("save pull user: %w", err)
	}
	slog.Info("pull cursor reset for new user",
		"component", "sync",
		"action", "pull",
		"user_id", user,
	)
	return nil
}

func (e *Engine) meta(ctx context.Context, key string) (string, error) {
	v, err := e.store.GetMeta(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}

func (e *Engine) now() time.Time {
	return e.clock().UTC().Truncate(time.Microsecond)
}
