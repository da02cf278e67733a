// Package liftlog embeds the offline-first workout log: a local store, the
// ingestion queue, session management and sync with the remote replica.
package liftlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	stdsync "sync"
	"time"

	"github.com/hyperengineering/liftlog/internal/api"
	"github.com/hyperengineering/liftlog/internal/auth"
	"github.com/hyperengineering/liftlog/internal/config"
	"github.com/hyperengineering/liftlog/internal/entry"
	"github.com/hyperengineering/liftlog/internal/ingest"
	"github.com/hyperengineering/liftlog/internal/interpreter"
	"github.com/hyperengineering/liftlog/internal/query"
	"github.com/hyperengineering/liftlog/internal/remote"
	"github.com/hyperengineering/liftlog/internal/session"
	"github.com/hyperengineering/liftlog/internal/store"
	"github.com/hyperengineering/liftlog/internal/sync"
	"github.com/hyperengineering/liftlog/internal/types"
	"github.com/hyperengineering/liftlog/internal/validation"
	"github.com/hyperengineering/liftlog/internal/worker"
)

// ErrClosed is returned by every method after Shutdown.
var ErrClosed = errors.New("client is closed")

// ErrSyncDisabled is returned by sync operations when no remote is configured.
var ErrSyncDisabled = errors.New("sync is not configured")

// Client wires the local store, services and background workers together.
type Client struct {
	cfg         *config.Config
	clock       func() time.Time
	store       *store.SQLiteStore
	auth        *auth.State
	engine      *sync.Engine
	remote      remote.Store
	sessions    *session.Manager
	entries     *entry.Service
	queue       *ingest.Queue
	query       *query.Service
	interpreter interpreter.Interpreter
	queueWorker *worker.QueueCoordinator
	syncWorker  *worker.SyncCoordinator

	mu      stdsync.RWMutex
	closed  bool
	started bool
	cancel  context.CancelFunc
	wg      stdsync.WaitGroup
}

// Option configures a Client.
type Option func(*options)

type options struct {
	clock          func() time.Time
	interpreter    interpreter.Interpreter
	hasInterpreter bool
	remote         remote.Store
}

// WithClock overrides the time source of every component.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithInterpreter replaces the configured interpreter. nil disables
// interpretation.
func WithInterpreter(i interpreter.Interpreter) Option {
	return func(o *options) {
		o.interpreter = i
		o.hasInterpreter = true
	}
}

// WithRemote replaces the configured remote store.
func WithRemote(r remote.Store) Option {
	return func(o *options) { o.remote = r }
}

// New opens the local store and builds every component. Background workers
// are not started until Start.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	loc, err := cfg.Sync.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	interp := o.interpreter
	if !o.hasInterpreter {
		interp, err = interpreter.New(interpreter.Config{
			Provider: cfg.Interpreter.Provider,
			Model:    cfg.Interpreter.Model,
			APIKey:   cfg.Interpreter.APIKey,
			Endpoint: cfg.Interpreter.Endpoint,
			Timeout:  cfg.Interpreter.Timeout.Std(),
		})
		if err != nil {
			return nil, fmt.Errorf("create interpreter: %w", err)
		}
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	authState := auth.NewState(o.clock)

	// A typed nil must not reach the engine as a non-nil interface.
	var rs remote.Store
	switch {
	case o.remote != nil:
		rs = o.remote
	case cfg.Remote.Enabled():
		rs = remote.NewClient(cfg.Remote.URL, cfg.Remote.APIKey, authState,
			remote.WithTimeout(cfg.Remote.Timeout.Std()),
			remote.WithPageSize(cfg.Remote.PageSize),
		)
	}

	engine := sync.NewEngine(st, rs, authState,
		sync.WithClock(o.clock),
		sync.WithDebounce(cfg.Sync.Debounce.Std()),
	)
	authState.OnSignIn(engine.HandleSignIn)

	sessions := session.NewManager(st,
		session.WithClock(o.clock),
		session.WithLocation(loc),
		session.WithStaleAfter(cfg.Sync.StaleAfter.Std()),
		session.WithScheduler(engine),
		session.WithOwner(authState.UserID),
	)
	queue := ingest.NewQueue(st, sessions, interp,
		ingest.WithClock(o.clock),
		ingest.WithScheduler(engine),
		ingest.WithOwner(authState.UserID),
	)

	// The HTTP interpreter only parses, so questions need a model provider.
	answerer, _ := interp.(interpreter.Answerer)

	c := &Client{
		cfg:         cfg,
		clock:       o.clock,
		store:       st,
		auth:        authState,
		engine:      engine,
		remote:      rs,
		sessions:    sessions,
		entries:     entry.NewService(st, engine, entry.WithClock(o.clock)),
		queue:       queue,
		query:       query.NewService(st, answerer),
		interpreter: interp,
		queueWorker: worker.NewQueueCoordinator(queue, cfg.Worker.QueueInterval.Std()),
	}
	if rs != nil {
		c.syncWorker = worker.NewSyncCoordinator(engine, cfg.Sync.Interval.Std())
	}
	return c, nil
}

// Initialize seeds the exercise catalog and restores the saved access token.
// A token from the configuration replaces the saved one.
func (c *Client) Initialize(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	n, err := c.store.SeedExercises(ctx, c.now())
	if err != nil {
		return fmt.Errorf("seed exercises: %w", err)
	}
	if n > 0 {
		slog.Info("seeded exercise catalog",
			"component", "liftlog",
			"exercises", n,
		)
	}

	if token := c.cfg.Auth.AccessToken; token != "" {
		if err := c.SignIn(ctx, token); err != nil {
			return fmt.Errorf("sign in with configured token: %w", err)
		}
		return nil
	}
	return c.restoreToken(ctx)
}

func (c *Client) restoreToken(ctx context.Context) error {
	token, err := c.store.GetMeta(ctx, sync.SyncMetaAuthToken)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read saved token: %w", err)
	}
	if err := c.auth.SetToken(ctx, token); err != nil {
		slog.Warn("discarding saved access token",
			"component", "liftlog",
			"error", err,
		)
		return c.store.DeleteMeta(ctx, sync.SyncMetaAuthToken)
	}
	return nil
}

// Start launches the background workers. With a remote configured, one pull
// runs first. Workers stop on Shutdown.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.started {
		return nil
	}
	c.started = true

	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.queueWorker.Run(ctx)
	}()
	if c.syncWorker != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if _, err := c.engine.Pull(ctx); err != nil {
				slog.Warn("startup pull failed",
					"component", "liftlog",
					"error", err,
				)
			}
			c.syncWorker.Run(ctx)
		}()
	}
	return nil
}

// Shutdown stops the workers, pushes any scheduled changes and closes the
// store. Calling it twice is a no-op.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	if c.engine.Pending() {
		if _, err := c.engine.Flush(ctx); err != nil {
			slog.Warn("final push failed",
				"component", "liftlog",
				"error", err,
			)
		}
	}
	c.engine.Close()
	return c.store.Close()
}

// Log validates rawInput and queues it for interpretation. The queue worker
// is woken when running.
func (c *Client) Log(ctx context.Context, rawInput string) (*types.QueueItem, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if verr := validation.ValidateInput(rawInput); verr != nil {
		return nil, verr
	}
	item, err := c.queue.Enqueue(ctx, rawInput)
	if err != nil {
		return nil, err
	}
	c.queueWorker.Wake()
	return item, nil
}

// Drain interprets every pending queue item now.
func (c *Client) Drain(ctx context.Context) (types.DrainResult, error) {
	if err := c.checkOpen(); err != nil {
		return types.DrainResult{}, err
	}
	return c.queue.Drain(ctx)
}

// Ask answers a question about the workout history.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	if err := c.checkOpen(); err != nil {
		return "", err
	}
	return c.query.Ask(ctx, question)
}

// Exercises lists the exercise catalog.
func (c *Client) Exercises(ctx context.Context) ([]types.Exercise, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.store.ListExercises(ctx)
}

// Push sends local changes to the remote store.
func (c *Client) Push(ctx context.Context) (types.PushResult, error) {
	if err := c.checkSync(); err != nil {
		return types.PushResult{}, err
	}
	return c.engine.Push(ctx)
}

// Pull merges remote changes into the local store.
func (c *Client) Pull(ctx context.Context) (types.PullResult, error) {
	if err := c.checkSync(); err != nil {
		return types.PullResult{}, err
	}
	return c.engine.Pull(ctx)
}

// SignIn installs an access token and saves it for the next start. Local
// records without an owner are claimed for the token's user.
func (c *Client) SignIn(ctx context.Context, token string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.auth.SetToken(ctx, token); err != nil {
		return err
	}
	if err := c.store.SetMeta(ctx, sync.SyncMetaAuthToken, token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// SignOut forgets the access token. Local data is kept.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	c.auth.Clear()
	if err := c.store.DeleteMeta(ctx, sync.SyncMetaAuthToken); err != nil {
		return fmt.Errorf("forget token: %w", err)
	}
	return nil
}

// Status reports store counters, sign-in state and the pull cursor.
func (c *Client) Status(ctx context.Context, version string) (*types.HealthResponse, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	stats, err := c.store.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	last, err := c.engine.LastPull(ctx)
	if err != nil {
		return nil, err
	}
	resp := &types.HealthResponse{
		Status:        "healthy",
		Version:       version,
		Authenticated: c.auth.IsAuthenticated(),
		Interpreter:   "none",
		Stats:         *stats,
		LastPull:      last,
	}
	if c.interpreter != nil {
		resp.Interpreter = c.interpreter.Name()
	}
	return resp, nil
}

// Handler returns the local HTTP API.
func (c *Client) Handler(version string) http.Handler {
	deps := api.Deps{
		Stats:       c.store,
		Sessions:    c.sessions,
		Entries:     c.entries,
		Queue:       c.queue,
		Interpreter: c.interpreter,
		Query:       c.query,
		Auth:        c.auth,
		Wake:        c.queueWorker.Wake,
	}
	if c.remote != nil {
		deps.Sync = c.engine
	}
	return api.NewRouter(api.NewHandler(deps, c.cfg.Auth.APIKey, version))
}

// Sessions returns the session manager.
func (c *Client) Sessions() *session.Manager { return c.sessions }

// Entries returns the entry service.
func (c *Client) Entries() *entry.Service { return c.entries }

// Queue returns the ingestion queue.
func (c *Client) Queue() *ingest.Queue { return c.queue }

// UserID returns the signed-in user, or "".
func (c *Client) UserID() string { return c.auth.UserID() }

// SyncEnabled reports whether a remote store is configured.
func (c *Client) SyncEnabled() bool { return c.remote != nil }

func (c *Client) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

func (c *Client) checkSync() error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if c.remote == nil {
		return ErrSyncDisabled
	}
	return nil
}

func (c *Client) now() time.Time {
	return c.clock().UTC().Truncate(time.Microsecond)
}
