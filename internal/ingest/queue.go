// Package ingest holds the ingestion queue: free-text submissions are stored
// immediately and interpreted later into exercises and entries.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/liftlog/internal/interpreter"
	"github.com/hyperengineering/liftlog/internal/store"
	"github.com/hyperengineering/liftlog/internal/types"
)

// ErrNoInterpreter is returned by Drain when no interpreter is configured.
var ErrNoInterpreter = errors.New("no interpreter configured")

// ErrNotRetryable is returned by Retry for items that have not failed.
var ErrNotRetryable = errors.New("only failed items can be retried")

// Store is the subset of the local store used by the queue.
type Store interface {
	InsertQueueItem(ctx context.Context, item types.QueueItem) error
	GetQueueItem(ctx context.Context, id string) (*types.QueueItem, error)
	ListQueueItems(ctx context.Context, status types.QueueStatus) ([]types.QueueItem, error)
	MarkQueueItem(ctx context.Context, id string, status types.QueueStatus, errMsg string, at time.Time) error
	CompleteQueueItem(ctx context.Context, id string, entries []types.Entry, at time.Time) error

	GetExerciseByName(ctx context.Context, name string) (*types.Exercise, error)
	InsertExercise(ctx context.Context, e types.Exercise) error
}

// Sessions resolves the active session entries are logged into.
type Sessions interface {
	Today() string
	GetOrCreateActiveSession(ctx context.Context, date string) (*types.Session, error)
}

// Scheduler arms a debounced push.
type Scheduler interface {
	Schedule()
}

// Queue persists submissions and drains them through an interpreter.
type Queue struct {
	store       Store
	sessions    Sessions
	interpreter interpreter.Interpreter
	scheduler   Scheduler
	owner       func() string
	clock       func() time.Time

	draining atomic.Bool
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(q *Queue) { q.clock = clock }
}

// WithScheduler sets the push scheduler notified after an item is parsed.
func WithScheduler(s Scheduler) Option {
	return func(q *Queue) { q.scheduler = s }
}

// WithOwner sets the function reporting the signed-in user id stamped on new
// entries. An empty id leaves entries unowned.
func WithOwner(owner func() string) Option {
	return func(q *Queue) { q.owner = owner }
}

// NewQueue creates a queue. A nil interpreter still accepts submissions; Drain
// returns ErrNoInterpreter until one is configured.
func NewQueue(s Store, sessions Sessions, interp interpreter.Interpreter, opts ...Option) *Queue {
	q := &Queue{
		store:       s,
		sessions:    sessions,
		interpreter: interp,
		owner:       func() string { return "" },
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue stores rawInput as a pending item and returns it without waiting for
// interpretation.
func (q *Queue) Enqueue(ctx context.Context, rawInput string) (*types.QueueItem, error) {
	item := types.QueueItem{
		ID:        ulid.Make().String(),
		RawInput:  rawInput,
		Status:    types.QueueStatusPending,
		CreatedAt: q.now(),
	}
	if err := q.store.InsertQueueItem(ctx, item); err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}
	slog.Debug("queue item enqueued",
		"component", "ingest",
		"queue_id", item.ID,
	)
	return &item, nil
}

// List returns queue items with the given status, or all items when status is
// empty, oldest first.
func (q *Queue) List(ctx context.Context, status types.QueueStatus) ([]types.QueueItem, error) {
	return q.store.ListQueueItems(ctx, status)
}

// Retry enqueues the raw input of a failed item as a new pending item. The
// failed item is left as it is.
func (q *Queue) Retry(ctx context.Context, id string) (*types.QueueItem, error) {
	item, err := q.store.GetQueueItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status != types.QueueStatusFailed {
		return nil, fmt.Errorf("retry %s (%s): %w", id, item.Status, ErrNotRetryable)
	}
	return q.Enqueue(ctx, item.RawInput)
}

// Draining reports whether a drain is running.
func (q *Queue) Draining() bool {
	return q.draining.Load()
}

// Drain processes every pending item in enqueue order. An item that cannot be
// interpreted or stored is marked failed and the loop moves on. A drain that
// overlaps a running one returns an empty result. Only errors listing or
// marking items abort the drain; an aborted item stays pending with none of
// its entries stored.
func (q *Queue) Drain(ctx context.Context) (types.DrainResult, error) {
	var result types.DrainResult
	if q.interpreter == nil {
		return result, ErrNoInterpreter
	}
	if !q.draining.CompareAndSwap(false, true) {
		slog.Debug("drain already in progress",
			"component", "ingest",
			"action", "drain",
		)
		return result, nil
	}
	defer q.draining.Store(false)

	items, err := q.store.ListQueueItems(ctx, types.QueueStatusPending)
	if err != nil {
		return result, fmt.Errorf("list pending items: %w", err)
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		entries, perr := q.processItem(ctx, item)
		if perr == nil {
			err := q.store.CompleteQueueItem(ctx, item.ID, entries, q.now())
			if err == nil {
				result.Processed++
				if q.scheduler != nil {
					q.scheduler.Schedule()
				}
				continue
			}
			if ctx.Err() != nil || errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrNotFound) {
				return result, fmt.Errorf("mark %s parsed: %w", item.ID, err)
			}
			perr = fmt.Errorf("store entries: %w", err)
		}

		slog.Warn("queue item failed",
			"component", "ingest",
			"action", "drain",
			"queue_id", item.ID,
			"error", perr,
		)
		if err := q.store.MarkQueueItem(ctx, item.ID, types.QueueStatusFailed, perr.Error(), q.now()); err != nil {
			return result, fmt.Errorf("mark %s failed: %w", item.ID, err)
		}
		result.Failed++
	}

	if result.Processed > 0 || result.Failed > 0 {
		slog.Info("queue drained",
			"component", "ingest",
			"action", "drain",
			"processed", result.Processed,
			"failed", result.Failed,
		)
	}
	return result, nil
}

// processItem runs process, recording a panic as the item's failure.
func (q *Queue) processItem(ctx context.Context, item types.QueueItem) (entries []types.Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			entries, err = nil, fmt.Errorf("unexpected failure: %v", r)
		}
	}()
	return q.process(ctx, item)
}

// process interprets one item and builds its entries. The returned error is
// the failure detail recorded on the item.
func (q *Queue) process(ctx context.Context, item types.QueueItem) ([]types.Entry, error) {
	res, err := q.interpreter.Interpret(ctx, item.RawInput)
	if err != nil {
		return nil, err
	}
	if res == nil || !res.Success {
		msg := "Failed to parse"
		if res != nil && res.Error != "" {
			msg = res.Error
		}
		return nil, errors.New(msg)
	}
	if len(res.Data) == 0 {
		return nil, errors.New("No exercises parsed from input")
	}

	sess, err := q.sessions.GetOrCreateActiveSession(ctx, q.sessions.Today())
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	now := q.now()
	owner := q.owner()
	entries := make([]types.Entry, 0, len(res.Data))
	for i, obs := range res.Data {
		ex, err := q.resolveExercise(ctx, obs.Exercise, now)
		if err != nil {
			return nil, err
		}
		entry := EntryFromObservation(obs)
		entry.ID = uuid.NewString()
		entry.ExerciseID = ex.ID
		entry.SessionID = sess.ID
		// Entries of one item share a drain time; the offset keeps their
		// creation order stable.
		entry.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		entry.UpdatedAt = entry.CreatedAt
		entry.UserID = owner
		entries = append(entries, entry)
	}
	return entries, nil
}

// resolveExercise finds an exercise by normalized name, creating it when
// missing. Created exercises take the id derived from the name, so devices
// that create the same exercise agree on its id.
func (q *Queue) resolveExercise(ctx context.Context, raw string, at time.Time) (*types.Exercise, error) {
	name := NormalizeName(raw)
	if name == "" {
		return nil, errors.New("Exercise name is required")
	}

	ex, err := q.store.GetExerciseByName(ctx, name)
	if err == nil {
		return ex, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("find exercise %q: %w", name, err)
	}

	created := types.Exercise{
		ID:          store.ExerciseID(name),
		Name:        name,
		DisplayName: DisplayName(raw),
		Type:        types.ExerciseTypeStrength,
		CreatedAt:   at,
	}
	err = q.store.InsertExercise(ctx, created)
	if errors.Is(err, store.ErrDuplicateExercise) {
		// Created concurrently, e.g. by a pull.
		return q.store.GetExerciseByName(ctx, name)
	}
	if err != nil {
		return nil, fmt.Errorf("create exercise %q: %w", name, err)
	}
	slog.Debug("exercise created",
		"component", "ingest",
		"exercise_id", created.ID,
		"name", name,
	)
	return &created, nil
}

func (q *Queue) now() time.Time {
	return q.clock().UTC().Truncate(time.Microsecond)
}

// EntryFromObservation maps an observation onto entry fields. Sets default to
// 1 when reps are given without sets. A weight without a unit is taken as kg,
// and a unit without a weight is dropped.
func EntryFromObservation(obs types.Observation) types.Entry {
	entry := types.Entry{
		Weight: obs.Weight,
		Unit:   obs.Unit,
		Reps:   obs.Reps,
		Sets:   obs.Sets,
	}
	switch {
	case entry.Weight == nil:
		entry.Unit = types.UnitNone
	case entry.Unit == types.UnitNone:
		entry.Unit = types.UnitKg
	}
	if entry.Reps != nil && entry.Sets == nil {
		one := 1
		entry.Sets = &one
	}
	return entry
}

// NormalizeName lowercases name and joins its words with underscores.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}
