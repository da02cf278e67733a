package store

import (
	"context"
	"time"

	"github.com/hyperengineering/liftlog/internal/types"
)

// Store defines the contract for local persistence of exercises, sessions,
// entries, ingestion queue items and sync metadata.
type Store interface {
	ExerciseStore
	SessionStore
	EntryStore
	QueueStore
	DeleteStore
	MetaStore
	GetStats(ctx context.Context) (*types.StoreStats, error)
	Close() error
}

// ExerciseStore persists the exercise catalog. Exercises are never edited.
type ExerciseStore interface {
	GetExercise(ctx context.Context, id string) (*types.Exercise, error)
	GetExerciseByName(ctx context.Context, name string) (*types.Exercise, error)
	InsertExercise(ctx context.Context, e types.Exercise) error
	ListExercises(ctx context.Context) ([]types.Exercise, error)
	MergeExercise(ctx context.Context, e types.Exercise) (bool, error)
	SeedExercises(ctx context.Context, at time.Time) (int, error)
}

// SessionStore persists sessions.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (*types.Session, error)
	InsertSession(ctx context.Context, s types.Session) error
	UpdateSession(ctx context.Context, id string, patch types.SessionPatch, at time.Time) (*types.Session, error)
	ActiveSessionForDate(ctx context.Context, date string) (*types.Session, error)
	ListSessions(ctx context.Context, date string) ([]types.Session, error)
	ListUnsyncedSessions(ctx context.Context) ([]types.Session, error)
	MarkSessionsSynced(ctx context.Context, versions []types.Version) (int64, error)
	MergeSession(ctx context.Context, s types.Session) (bool, error)
	ClaimUnownedSessions(ctx context.Context, userID string, at time.Time) (int64, error)
	DeleteSessionCascade(ctx context.Context, id string, at time.Time) (int64, error)
}

// EntryStore persists entries.
type EntryStore interface {
	GetEntry(ctx context.Context, id string) (*types.Entry, error)
	InsertEntry(ctx context.Context, e types.Entry) error
	InsertEntries(ctx context.Context, entries []types.Entry) error
	UpdateEntry(ctx context.Context, id string, patch types.EntryPatch, at time.Time) (*types.Entry, error)
	DeleteEntry(ctx context.Context, id string, at time.Time) error
	ListEntriesBySession(ctx context.Context, sessionID string) ([]types.Entry, error)
	LatestEntryForSession(ctx context.Context, sessionID string) (*types.Entry, error)
	ListUnsyncedEntries(ctx context.Context) ([]types.Entry, error)
	MarkEntriesSynced(ctx context.Context, versions []types.Version) (int64, error)
	MergeEntry(ctx context.Context, e types.Entry) (bool, error)
	ClaimUnownedEntries(ctx context.Context, userID string, at time.Time) (int64, error)
	ListHistory(ctx context.Context, limit int) ([]types.HistoryEntry, error)
}

// QueueStore persists ingestion queue items.
type QueueStore interface {
	InsertQueueItem(ctx context.Context, item types.QueueItem) error
	GetQueueItem(ctx context.Context, id string) (*types.QueueItem, error)
	ListQueueItems(ctx context.Context, status types.QueueStatus) ([]types.QueueItem, error)
	MarkQueueItem(ctx context.Context, id string, status types.QueueStatus, errMsg string, at time.Time) error
	CompleteQueueItem(ctx context.Context, id string, entries []types.Entry, at time.Time) error
}

// DeleteStore tracks local deletes that still have to reach the remote store.
type DeleteStore interface {
	ListPendingDeletes(ctx context.Context) ([]types.PendingDelete, error)
	ClearPendingDelete(ctx context.Context, collection, id string) error
	FailPendingDelete(ctx context.Context, collection, id, errMsg string) error
}

// MetaStore is a small key/value table for sync cursors and credentials.
type MetaStore interface {
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
	DeleteMeta(ctx context.Context, key string) error
}
