package api

import (
	"fmt"

	"github.com/vsbuildlogger/vsbuildlogger/internal/status"
)

// DiagnosticHint is one human-readable insight about the delivery
// pipeline's health, written in plain English so an operator can act on
// it without reading logs.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label (≤ 5 words).
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint
	// (e.g. cache fill %).
	Value *float64 `json:"value,omitempty"`
}

// computeDiagnostics derives diagnostic hints from the pipeline summary
// and the retry cache state. Hints for blocking problems come first.
func computeDiagnostics(s status.Summary, variant string, cacheLines, maxLines int) []DiagnosticHint {
	var hints []DiagnosticHint

	// ── No backend ───────────────────────────────────────────────────────────
	if variant == "" {
		hints = append(hints, DiagnosticHint{
			Key:   "no_backend",
			Level: "warning",
			Title: "No backend configured",
			Detail: "Build events are being received and correlated, but no InfluxDB " +
				"write variant is configured, so completed builds are dropped at " +
				"dispatch time. Set influx.variant to v1 or v2 in the config file " +
				"(or the VSBL_INFLUX_VARIANT environment variable) along with the " +
				"matching credentials. Until then nothing reaches the database.",
		})
		hints = append(hints, cacheHints(cacheLines, maxLines)...)
		return hints
	}

	// ── Delivery failures ────────────────────────────────────────────────────
	if s.ConsecutiveFailures > 0 {
		v := float64(s.ConsecutiveFailures)
		var level, title, detail string

		switch {
		case s.Delivery == status.StateFailing:
			level = "critical"
			title = fmt.Sprintf("%d failed deliveries", s.ConsecutiveFailures)
			detail = fmt.Sprintf(
				"The last %d delivery attempts all failed. The most recent error was: "+
					"\"%s\". Completed builds are parked in the retry cache and go out "+
					"with the next successful send, so nothing is lost yet, but the "+
					"cache is bounded and discards its oldest lines once full. Check "+
					"that the InfluxDB URL is reachable and the credentials are still "+
					"valid.",
				s.ConsecutiveFailures, s.LastError,
			)
		default:
			level = "warning"
			title = "Delivery degraded"
			detail = fmt.Sprintf(
				"The most recent delivery attempt failed (\"%s\"). The affected "+
					"records are in the retry cache and will be retried with the next "+
					"completed build. A single failure is often a transient network "+
					"blip; watch whether the failure count keeps growing.",
				s.LastError,
			)
		}
		hints = append(hints, DiagnosticHint{Key: "delivery_failing", Level: level, Title: title, Detail: detail, Value: &v})
	}

	hints = append(hints, cacheHints(cacheLines, maxLines)...)

	// ── Nothing to report ────────────────────────────────────────────────────
	if len(hints) == 0 {
		if s.PassesSeen == 0 && !s.ActivePass {
			hints = append(hints, DiagnosticHint{
				Key:   "waiting",
				Level: "info",
				Title: "Waiting for first build",
				Detail: "The daemon is up and the backend is configured, but no build " +
					"pass has been observed yet. Records appear after the IDE finishes " +
					"its first build with the logger plugin enabled. No action needed.",
			})
			return hints
		}

		delivered := float64(s.RecordsDelivered)
		hints = append(hints, DiagnosticHint{
			Key:   "healthy",
			Level: "ok",
			Title: "All clear",
			Detail: fmt.Sprintf(
				"The pipeline is fully operational: %d build record(s) delivered, no "+
					"recent failures, and the retry cache is empty.",
				s.RecordsDelivered,
			),
			Value: &delivered,
		})
	}

	return hints
}

// cacheHints grades the retry cache backlog against its capacity.
func cacheHints(lines, maxLines int) []DiagnosticHint {
	if lines <= 0 || maxLines <= 0 {
		return nil
	}

	fill := float64(lines) / float64(maxLines) * 100
	v := fill
	var level, title, detail string

	switch {
	case fill >= 90:
		level = "critical"
		title = "Retry cache almost full"
		detail = fmt.Sprintf(
			"The retry cache holds %d of %d line(s) (%.0f%% full). Once it reaches "+
				"capacity the oldest cached records are discarded to make room for "+
				"new ones, which means permanent data loss. Restore connectivity to "+
				"the backend, or raise cache.max_lines if the outage is expected to "+
				"last.",
			lines, maxLines, fill,
		)
	case fill >= 50:
		level = "warning"
		title = fmt.Sprintf("%d cached records", lines)
		detail = fmt.Sprintf(
			"The retry cache is %.0f%% full (%d of %d line(s)). Cached records are "+
				"delivered ahead of new ones on the next successful send. If this "+
				"number keeps climbing, deliveries are not getting through; check "+
				"the delivery status above.",
			fill, lines, maxLines,
		)
	default:
		level = "info"
		title = "Delivery backlog"
		detail = fmt.Sprintf(
			"%d record line(s) are waiting in the retry cache from earlier failed "+
				"deliveries. They are prepended to the next send and cleared once "+
				"the backend accepts them. This resolves itself while deliveries "+
				"succeed.",
			lines,
		)
	}

	return []DiagnosticHint{{Key: "cache_backlog", Level: level, Title: title, Detail: detail, Value: &v}}
}
