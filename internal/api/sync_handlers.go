package api

import (
	"log/slog"
	"net/http"
)

// SyncPush handles POST /api/v1/sync/push
func (h *Handler) SyncPush(w http.ResponseWriter, r *http.Request) {
	if !h.syncReady(w, r) {
		return
	}
	res, err := h.sync.Push(r.Context())
	if err != nil {
		slog.Error("push failed",
			"component", "api",
			"action", "sync_push",
			"request_id", requestID(r.Context()),
			"error", err,
		)
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SyncPull handles POST /api/v1/sync/pull
func (h *Handler) SyncPull(w http.ResponseWriter, r *http.Request) {
	if !h.syncReady(w, r) {
		return
	}
	res, err := h.sync.Pull(r.Context())
	if err != nil {
		slog.Error("pull failed",
			"component", "api",
			"action", "sync_pull",
			"request_id", requestID(r.Context()),
			"error", err,
		)
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// syncReady rejects sync requests when no remote store is configured. Signed
// out clients get the engine's empty result, not an error.
func (h *Handler) syncReady(w http.ResponseWriter, r *http.Request) bool {
	if h.sync == nil {
		WriteProblem(w, r, http.StatusServiceUnavailable, "Sync is not configured")
		return false
	}
	return true
}
