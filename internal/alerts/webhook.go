package alerts

import (
	"bytes"
	"encoding/json"
	"log/slog"
)

// deliver posts a to every configured webhook. Failures are logged and
// skipped; alerting is advisory and must never stall the pipeline.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			slog.Warn("alert webhook url not set", "type", wh.Type, "env", wh.URLEnv)
			continue
		}

		var payload any
		switch wh.Type {
		case "slack":
			payload = map[string]string{"text": a.Message}
		default:
			payload = a
		}

		body, err := json.Marshal(payload)
		if err != nil {
			slog.Warn("alert payload marshal failed", "rule", a.RuleName, "error", err)
			continue
		}

		resp, err := e.client.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			slog.Warn("alert webhook delivery failed", "type", wh.Type, "error", err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			slog.Warn("alert webhook rejected", "type", wh.Type, "status", resp.StatusCode)
		}
	}
}
