package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hyperengineering/liftlog/internal/interpreter"
	"github.com/hyperengineering/liftlog/internal/query"
	"github.com/hyperengineering/liftlog/internal/types"
	"github.com/hyperengineering/liftlog/internal/validation"
)

// StatsStore reports local store counters.
type StatsStore interface {
	GetStats(ctx context.Context) (*types.StoreStats, error)
}

// SessionService is the session lifecycle used by the handlers.
type SessionService interface {
	Today() string
	GetSession(ctx context.Context, id string) (*types.Session, error)
	ListSessions(ctx context.Context, date string) ([]types.Session, error)
	UpdateSession(ctx context.Context, id string, patch types.SessionPatch) (*types.Session, error)
	EndSession(ctx context.Context, id string) (*types.Session, error)
	DeleteSession(ctx context.Context, id string) (int64, error)
}

// EntryService edits entries.
type EntryService interface {
	List(ctx context.Context, sessionID string) ([]types.Entry, error)
	Update(ctx context.Context, id string, patch types.EntryPatch) (*types.Entry, error)
	Delete(ctx context.Context, id string) error
}

// QueueService accepts submissions for later interpretation.
type QueueService interface {
	Enqueue(ctx context.Context, rawInput string) (*types.QueueItem, error)
	List(ctx context.Context, status types.QueueStatus) ([]types.QueueItem, error)
	Retry(ctx context.Context, id string) (*types.QueueItem, error)
}

// SyncService triggers push and pull.
type SyncService interface {
	Push(ctx context.Context) (types.PushResult, error)
	Pull(ctx context.Context) (types.PullResult, error)
	LastPull(ctx context.Context) (*time.Time, error)
}

// QueryService answers questions about the workout history.
type QueryService interface {
	Ask(ctx context.Context, question string) (string, error)
}

// AuthState reports whether a user is signed in.
type AuthState interface {
	IsAuthenticated() bool
}

// Deps are the services behind the API. Interpreter, Query, Sync, Auth and
// Wake may be nil.
type Deps struct {
	Stats       StatsStore
	Sessions    SessionService
	Entries     EntryService
	Queue       QueueService
	Interpreter interpreter.Interpreter
	Query       QueryService
	Sync        SyncService
	Auth        AuthState
	// Wake is called after a submission is queued.
	Wake func()
}

// Handler implements the API handlers
type Handler struct {
	stats       StatsStore
	sessions    SessionService
	entries     EntryService
	queue       QueueService
	interpreter interpreter.Interpreter
	query       QueryService
	sync        SyncService
	auth        AuthState
	wake        func()

	validate *validator.Validate
	apiKey   string
	version  string
}

// NewHandler creates a Handler. An empty apiKey leaves the API open.
func NewHandler(deps Deps, apiKey, version string) *Handler {
	return &Handler{
		stats:       deps.Stats,
		sessions:    deps.Sessions,
		entries:     deps.Entries,
		queue:       deps.Queue,
		interpreter: deps.Interpreter,
		query:       deps.Query,
		sync:        deps.Sync,
		auth:        deps.Auth,
		wake:        deps.Wake,
		validate:    validator.New(),
		apiKey:      apiKey,
		version:     version,
	}
}

// InputRequest carries free text for /parse and /log.
type InputRequest struct {
	Input string `json:"input" validate:"required"`
}

// QueryRequest carries a question for /query.
type QueryRequest struct {
	Query string `json:"query" validate:"required"`
}

// QueryResponse is the answer to a QueryRequest.
type QueryResponse struct {
	Answer string `json:"answer"`
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.GetStats(r.Context())
	if err != nil {
		slog.Error("health stats failed", "component", "api", "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	resp := types.HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		Authenticated: h.auth != nil && h.auth.IsAuthenticated(),
		Interpreter:   "none",
		Stats:         *stats,
	}
	if h.interpreter != nil {
		resp.Interpreter = h.interpreter.Name()
	}
	if h.sync != nil {
		if last, err := h.sync.LastPull(r.Context()); err == nil {
			resp.LastPull = last
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Parse handles POST /api/v1/parse. It answers with the interpreter contract
// so another device can use this server as its interpreter.
func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	if h.interpreter == nil {
		WriteProblem(w, r, http.StatusServiceUnavailable, "No interpreter configured")
		return
	}

	var req InputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, interpreter.Failure("Invalid request body"))
		return
	}
	if res := interpreter.CheckInput(req.Input); res != nil {
		writeJSON(w, http.StatusBadRequest, res)
		return
	}

	res, err := h.interpreter.Interpret(r.Context(), req.Input)
	if err != nil {
		slog.Error("interpret failed",
			"component", "api",
			"action", "parse",
			"interpreter", h.interpreter.Name(),
			"error", err,
		)
		writeJSON(w, http.StatusBadGateway, interpreter.Failure("Interpreter unavailable"))
		return
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

// Log handles POST /api/v1/log: the input is queued and 202 returned without
// waiting for interpretation.
func (h *Handler) Log(w http.ResponseWriter, r *http.Request) {
	var req InputRequest
	if !h.decode(w, r, &req) {
		return
	}
	if verr := validation.ValidateInput(req.Input); verr != nil {
		WriteProblemWithErrors(w, r, verr.Message, []validation.ValidationError{*verr})
		return
	}

	item, err := h.queue.Enqueue(r.Context(), req.Input)
	if err != nil {
		slog.Error("enqueue failed", "component", "api", "action", "log", "error", err)
		MapError(w, r, err)
		return
	}
	if h.wake != nil {
		h.wake()
	}
	writeJSON(w, http.StatusAccepted, item)
}

// Query handles POST /api/v1/query.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	if h.query == nil {
		WriteProblem(w, r, http.StatusServiceUnavailable, "No question answering provider configured")
		return
	}
	var req QueryRequest
	if !h.decode(w, r, &req) {
		return
	}

	answer, err := h.query.Ask(r.Context(), req.Query)
	if err != nil {
		var verr *validation.ValidationError
		if !errors.As(err, &verr) && !errors.Is(err, query.ErrUnavailable) {
			slog.Error("query failed", "component", "api", "action", "query", "error", err)
			WriteProblem(w, r, http.StatusBadGateway, "Question answering provider unavailable")
			return
		}
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Answer: answer})
}

// ListQueue handles GET /api/v1/queue?status=
func (h *Handler) ListQueue(w http.ResponseWriter, r *http.Request) {
	status := types.QueueStatus(r.URL.Query().Get("status"))
	if status != "" {
		allowed := []string{
			string(types.QueueStatusPending),
			string(types.QueueStatusParsed),
			string(types.QueueStatusFailed),
		}
		if verr := validation.ValidateEnum("status", string(status), allowed); verr != nil {
			WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Unknown status %q: %s", status, verr.Message))
			return
		}
	}

	items, err := h.queue.List(r.Context(), status)
	if err != nil {
		MapError(w, r, err)
		return
	}
	if items == nil {
		items = []types.QueueItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// RetryQueueItem handles POST /api/v1/queue/{id}/retry
func (h *Handler) RetryQueueItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if verr := validation.ValidateULID("id", id); verr != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid queue item id: %s", verr.Message))
		return
	}
	item, err := h.queue.Retry(r.Context(), id)
	if err != nil {
		MapError(w, r, err)
		return
	}
	if h.wake != nil {
		h.wake()
	}
	writeJSON(w, http.StatusAccepted, item)
}

// decode reads a JSON body into dst and runs struct validation, writing the
// problem response itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			WriteProblem(w, r, http.StatusBadRequest, err.Error())
			return false
		}
		errs := make([]validation.ValidationError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			errs = append(errs, validation.ValidationError{
				Field:   fe.Field(),
				Message: fmt.Sprintf("failed %q validation", fe.Tag()),
			})
		}
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "component", "api", "error", err)
	}
}
