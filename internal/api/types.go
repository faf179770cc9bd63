package api

import "github.com/vsbuildlogger/vsbuildlogger/internal/status"

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// StatusResponse is the body of GET /api/v1/status: the pipeline
// summary flattened alongside daemon identity, cache location, and
// derived diagnostic hints.
type StatusResponse struct {
	status.Summary
	CachePath   string           `json:"cache_path"`
	Version     string           `json:"version"`
	Diagnostics []DiagnosticHint `json:"diagnostics"`
}

type errorResponse struct {
	Error string `json:"error"`
}
