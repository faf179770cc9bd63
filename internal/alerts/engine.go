// Package alerts watches delivery health and posts webhook
// notifications when the pipeline stays broken long enough to matter.
package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vsbuildlogger/vsbuildlogger/internal/config"
	"github.com/vsbuildlogger/vsbuildlogger/internal/status"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 50
	recentWindow    = time.Hour
)

// Alert is a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

// Engine evaluates alert rules against pipeline summaries after every
// dispatch attempt and delivers webhook notifications when rules fire
// or resolve.
//
// Engine is safe for concurrent use. An Engine with no rules is valid;
// Observe becomes a no-op.
type Engine struct {
	rules    []config.AlertRule
	webhooks []config.WebhookConfig

	mu       sync.Mutex
	active   map[string]*Alert
	lastFire map[string]time.Time
	history  []*Alert
	client   *http.Client
	now      func() time.Time
}

// New creates an Engine from the alerts configuration.
func New(cfg config.AlertsConfig) *Engine {
	return &Engine{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// Observe tests all rules against s. Alerts that fire are stored and
// webhook delivery is triggered asynchronously; alerts whose condition
// has cleared are resolved.
func (e *Engine) Observe(s status.Summary) {
	if len(e.rules) == 0 {
		return
	}

	now := e.now()
	for _, rule := range e.rules {
		fires, value, what := evalRule(rule, s)

		e.mu.Lock()

		if fires {
			cooldown := rule.Cooldown
			if cooldown <= 0 {
				cooldown = defaultCooldown
			}
			if now.Sub(e.lastFire[rule.Name]) > cooldown {
				sev := rule.Severity
				if sev == "" {
					sev = "warning"
				}
				a := &Alert{
					ID:       fmt.Sprintf("%s:%d", rule.Name, now.UnixNano()),
					RuleName: rule.Name,
					Severity: sev,
					Value:    value,
					Message:  fmt.Sprintf("[%s] %s: %s reached %.0f", sev, rule.Name, what, value),
					FiredAt:  now,
					State:    "firing",
				}
				e.active[rule.Name] = a
				e.lastFire[rule.Name] = now
				alertCopy := *a
				e.mu.Unlock()

				slog.Warn("alert fired",
					"rule", rule.Name,
					"value", value,
					"severity", sev,
				)
				go e.deliver(&alertCopy)
			} else {
				e.mu.Unlock()
			}
		} else {
			if a, ok := e.active[rule.Name]; ok && a.State == "firing" {
				resolved := now
				a.State = "resolved"
				a.ResolvedAt = &resolved
				delete(e.active, rule.Name)

				e.history = append(e.history, a)
				if len(e.history) > maxHistoryLen {
					e.history = e.history[len(e.history)-maxHistoryLen:]
				}
				alertCopy := *a
				e.mu.Unlock()

				slog.Info("alert resolved", "rule", rule.Name)
				go e.deliver(&alertCopy)
			} else {
				e.mu.Unlock()
			}
		}
	}
}

// Active returns copies of all firing alerts plus alerts resolved
// within the past hour, for the alerts API endpoint.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}

// evalRule reports whether rule fires on s, with the offending value
// and a human name for it. A condition expression wins over the
// structured thresholds.
func evalRule(r config.AlertRule, s status.Summary) (bool, float64, string) {
	if r.Condition != "" {
		fires, value := evalCondition(r.Condition, s)
		return fires, value, r.Condition
	}
	if r.MaxConsecutiveFailures > 0 && s.ConsecutiveFailures >= r.MaxConsecutiveFailures {
		return true, float64(s.ConsecutiveFailures), "consecutive delivery failures"
	}
	if r.MaxCacheLines > 0 && s.CacheLines >= r.MaxCacheLines {
		return true, float64(s.CacheLines), "retry cache depth"
	}
	return false, 0, ""
}
