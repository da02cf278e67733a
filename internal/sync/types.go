package sync

import (
	"context"
	"time"

	"github.com/hyperengineering/liftlog/internal/types"
)

// SyncMeta keys
const (
	SyncMetaLastPull  = "last_pull"
	SyncMetaPullUser  = "last_pull_user"
	SyncMetaAuthToken = "auth_token"
)

// DefaultDebounce is the quiet period before a scheduled push runs.
const DefaultDebounce = 2 * time.Second

// Store is the subset of the local store used by the engine.
type Store interface {
	ListExercises(ctx context.Context) ([]types.Exercise, error)
	ListUnsyncedSessions(ctx context.Context) ([]types.Session, error)
	ListUnsyncedEntries(ctx context.Context) ([]types.Entry, error)
	MarkSessionsSynced(ctx context.Context, versions []types.Version) (int64, error)
	MarkEntriesSynced(ctx context.Context, versions []types.Version) (int64, error)

	MergeExercise(ctx context.Context, e types.Exercise) (bool, error)
	MergeSession(ctx context.Context, s types.Session) (bool, error)
	MergeEntry(ctx context.Context, e types.Entry) (bool, error)

	ClaimUnownedSessions(ctx context.Context, userID string, at time.Time) (int64, error)
	ClaimUnownedEntries(ctx context.Context, userID string, at time.Time) (int64, error)

	ListPendingDeletes(ctx context.Context) ([]types.PendingDelete, error)
	ClearPendingDelete(ctx context.Context, collection, id string) error
	FailPendingDelete(ctx context.Context, collection, id, errMsg string) error

	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
	DeleteMeta(ctx context.Context, key string) error
}

// AuthState reports whether remote calls may be made.
type AuthState interface {
	IsAuthenticated() bool
	UserID() string
}
