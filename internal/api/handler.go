package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/vsbuildlogger/vsbuildlogger/internal/alerts"
	"github.com/vsbuildlogger/vsbuildlogger/internal/buildinfo"
	"github.com/vsbuildlogger/vsbuildlogger/internal/cache"
	"github.com/vsbuildlogger/vsbuildlogger/internal/config"
	"github.com/vsbuildlogger/vsbuildlogger/internal/status"
)

// Handler serves the local observation endpoints under /api/v1/.
// It reads pipeline state from the tracker and the retry cache and
// returns JSON responses.
type Handler struct {
	tracker  *status.Tracker
	store    *cache.Cache
	engine   *alerts.Engine
	provider *config.Provider
	started  time.Time
	mux      *http.ServeMux
}

// New creates a Handler wired to the given pipeline state and registers
// all routes.
func New(tracker *status.Tracker, store *cache.Cache, engine *alerts.Engine,
	provider *config.Provider, started time.Time) http.Handler {
	h := &Handler{
		tracker:  tracker,
		store:    store,
		engine:   engine,
		provider: provider,
		started:  started,
		mux:      http.NewServeMux(),
	}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/status", h.status)
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// health returns GET /api/v1/health: liveness, version, uptime.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	jsonResp(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       buildinfo.String(),
		UptimeSeconds: time.Since(h.started).Seconds(),
	})
}

// status returns GET /api/v1/status: the pipeline summary plus retry
// cache location, depth, and derived diagnostics.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := StatusResponse{
		Summary:   h.tracker.Summary(),
		CachePath: h.store.Path(),
		Version:   buildinfo.String(),
	}
	// The tracker's cache depth is sampled after each dispatch; the
	// live count is fresher when the file is readable.
	if n, err := h.store.Lines(); err == nil {
		resp.CacheLines = n
	}
	resp.Diagnostics = computeDiagnostics(
		resp.Summary,
		h.provider.Current().Influx.Variant,
		resp.CacheLines,
		h.store.MaxLines(),
	)
	jsonResp(w, http.StatusOK, resp)
}

// alerts returns GET /api/v1/alerts: firing and recently resolved
// alerts.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.engine.Active())
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
