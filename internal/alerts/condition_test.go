package alerts

import (
	"encoding/json"
	"testing"

	"github.com/vsbuildlogger/vsbuildlogger/internal/config"
	"github.com/vsbuildlogger/vsbuildlogger/internal/status"
)

func TestEvalCondition(t *testing.T) {
	s := status.Summary{
		ConsecutiveFailures: 4,
		CacheLines:          512,
		RecordsQueued:       20,
		PassesCancelled:     2,
		Delivery:            status.StateFailing,
	}

	tests := []struct {
		cond      string
		wantFires bool
		wantValue float64
	}{
		{"consecutive_failures >= 3", true, 4},
		{"consecutive_failures > 4", false, 4},
		{"cache_lines > 500", true, 512},
		{"cache_lines <= 100", false, 512},
		{"records_queued == 20", true, 20},
		{"passes_cancelled < 5", true, 2},
		{"delivery == failing", true, 0},
		{"delivery != failing", false, 0},
		{"delivery == ok", false, 0},
		{"delivery > failing", false, 0},

		// Unparseable or unknown expressions never fire.
		{"cache_lines >", false, 0},
		{"cache_lines > abc", false, 0},
		{"drop_pct > 10", false, 0},
		{"cache_lines ~ 10", false, 0},
		{"", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			fires, value := evalCondition(tt.cond, s)
			if fires != tt.wantFires {
				t.Errorf("fires = %v, want %v", fires, tt.wantFires)
			}
			if fires && value != tt.wantValue {
				t.Errorf("value = %v, want %v", value, tt.wantValue)
			}
		})
	}
}

func TestConditionRuleFires(t *testing.T) {
	srv, received := webhookCapture(t)
	t.Setenv("TEST_HOOK_URL", srv.URL)

	e := newTestEngine(t, []config.AlertRule{
		{Name: "stuck-pipeline", Condition: "delivery == failing", Severity: "critical"},
	}, "generic", "TEST_HOOK_URL")

	e.Observe(status.Summary{Delivery: status.StateDegraded, ConsecutiveFailures: 1})
	if len(e.Active()) != 0 {
		t.Fatal("fired while only degraded")
	}

	e.Observe(status.Summary{Delivery: status.StateFailing, ConsecutiveFailures: 3})

	var a Alert
	if err := json.Unmarshal(waitForBody(t, received), &a); err != nil {
		t.Fatalf("unmarshal webhook payload: %v", err)
	}
	if a.RuleName != "stuck-pipeline" || a.State != "firing" || a.Severity != "critical" {
		t.Errorf("alert = %+v", a)
	}

	// Recovery resolves the alert.
	e.Observe(status.Summary{Delivery: status.StateOK})
	var resolved Alert
	if err := json.Unmarshal(waitForBody(t, received), &resolved); err != nil {
		t.Fatalf("unmarshal resolve payload: %v", err)
	}
	if resolved.State != "resolved" {
		t.Errorf("state = %q, want resolved", resolved.State)
	}
}

func TestConditionWinsOverThresholds(t *testing.T) {
	srv, received := webhookCapture(t)
	t.Setenv("TEST_HOOK_URL", srv.URL)

	// The structured threshold would fire, but the condition does not.
	e := newTestEngine(t, []config.AlertRule{
		{Name: "mixed", Condition: "cache_lines > 900", MaxConsecutiveFailures: 1},
	}, "generic", "TEST_HOOK_URL")

	e.Observe(status.Summary{ConsecutiveFailures: 5, CacheLines: 10})
	if len(e.Active()) != 0 {
		t.Fatal("threshold evaluated despite condition being set")
	}

	e.Observe(status.Summary{ConsecutiveFailures: 5, CacheLines: 950})
	var a Alert
	if err := json.Unmarshal(waitForBody(t, received), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a.Value != 950 {
		t.Errorf("value = %v, want 950", a.Value)
	}
}
