package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// apiKeyHeader is the alternative to a bearer token for scripts that cannot
// set Authorization.
const apiKeyHeader = "X-API-Key"

// presentedKey returns the API key carried by r: a bearer token (the scheme
// is case-insensitive) or the X-API-Key header. "" when neither is set.
func presentedKey(r *http.Request) string {
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.Header.Get(apiKeyHeader))
}

// RequireAPIKey rejects requests that do not present apiKey with a 401
// problem. Keys are compared as SHA-256 digests so the comparison time does
// not depend on the key length. The key is never logged or echoed.
func RequireAPIKey(apiKey string) func(http.Handler) http.Handler {
	want := sha256.Sum256([]byte(apiKey))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := presentedKey(r)
			got := sha256.Sum256([]byte(key))
			if key == "" || subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
				slog.Warn("api key rejected",
					"component", "api",
					"request_id", requestID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"key_present", key != "",
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="liftlog"`)
				WriteProblem(w, r, http.StatusUnauthorized, "Missing or invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestID returns the chi request ID from ctx, or "" when absent.
func requestID(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// RequestLogger writes one line per request, at error level for 5xx and warn
// for 4xx.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		slog.Log(r.Context(), levelFor(status), "request completed",
			"request_id", requestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// Recoverer turns a handler panic into a generic 500 problem. The panic value
// and stack are logged only. http.ErrAbortHandler is re-raised so the server
// can abort the connection.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}
			slog.Error("handler panic",
				"component", "api",
				"request_id", requestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"panic", rvr,
				"stack", string(debug.Stack()),
			)
			WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		}()
		next.ServeHTTP(w, r)
	})
}
