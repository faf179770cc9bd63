package ingest

import (
	"encoding/json"
	"net/http"

	"github.com/vsbuildlogger/vsbuildlogger/pkg/buildevent"
)

// maxEventBytes bounds a single event body. Real events are a few
// hundred bytes.
const maxEventBytes = 64 * 1024

// Handler accepts lifecycle events on POST /api/v1/events, one JSON
// event per request.
type Handler struct {
	loop *Loop
}

// NewHandler returns the intake handler feeding loop.
func NewHandler(loop *Loop) *Handler {
	return &Handler{loop: loop}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var ev buildevent.Event
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err := dec.Decode(&ev); err != nil {
		jsonErr(w, http.StatusBadRequest, "malformed event: "+err.Error())
		return
	}
	if err := ev.Validate(); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.loop.Submit(r.Context(), ev); err != nil {
		jsonErr(w, http.StatusServiceUnavailable, "event queue unavailable")
		return
	}
	jsonResp(w, http.StatusAccepted, acceptedResponse{Accepted: true})
}

type acceptedResponse struct {
	Accepted bool `json:"accepted"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
