package influx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vsbuildlogger/vsbuildlogger/internal/config"
)

type capturedRequest struct {
	method string
	path   string
	query  map[string]string
	auth   string
	ctype  string
	body   string
}

// captureServer records every request and answers with status.
func captureServer(t *testing.T, status int, respBody string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()

	var reqs []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		q := map[string]string{}
		for k := range r.URL.Query() {
			q[k] = r.URL.Query().Get(k)
		}
		reqs = append(reqs, capturedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  q,
			auth:   r.Header.Get("Authorization"),
			ctype:  r.Header.Get("Content-Type"),
			body:   string(body),
		})
		w.WriteHeader(status)
		io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func TestSendV1(t *testing.T) {
	srv, reqs := captureServer(t, http.StatusNoContent, "")

	cfg := config.InfluxConfig{
		Variant:  config.VariantV1,
		URL:      srv.URL + "/", // trailing slash must not double up
		Database: "builds",
		Username: "writer",
		Password: "hunter2",
	}

	if err := New(nil).Send(context.Background(), "build_event x=1 1", cfg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(*reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(*reqs))
	}
	r := (*reqs)[0]
	if r.method != http.MethodPost || r.path != "/write" {
		t.Errorf("request = %s %s, want POST /write", r.method, r.path)
	}
	want := map[string]string{"db": "builds", "u": "writer", "p": "hunter2", "precision": "s"}
	for k, v := range want {
		if r.query[k] != v {
			t.Errorf("query[%s] = %q, want %q", k, r.query[k], v)
		}
	}
	if r.ctype != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q", r.ctype)
	}
	if r.body != "build_event x=1 1" {
		t.Errorf("body = %q", r.body)
	}
	if r.auth != "" {
		t.Errorf("v1 must not send an Authorization header, got %q", r.auth)
	}
}

func TestSendV2(t *testing.T) {
	srv, reqs := captureServer(t, http.StatusOK, "")

	cfg := config.InfluxConfig{
		Variant: config.VariantV2,
		URL:     srv.URL,
		Org:     "eng",
		Bucket:  "builds",
		Token:   "tok-123",
	}

	if err := New(nil).Send(context.Background(), "line", cfg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	r := (*reqs)[0]
	if r.path != "/api/v2/write" {
		t.Errorf("path = %q, want /api/v2/write", r.path)
	}
	want := map[string]string{"bucket": "builds", "org": "eng", "precision": "s"}
	for k, v := range want {
		if r.query[k] != v {
			t.Errorf("query[%s] = %q, want %q", k, r.query[k], v)
		}
	}
	if r.auth != "Token tok-123" {
		t.Errorf("Authorization = %q, want Token tok-123", r.auth)
	}
}

func TestSendResolvesSecretsFromEnv(t *testing.T) {
	srv, reqs := captureServer(t, http.StatusNoContent, "")
	t.Setenv("TEST_VSBL_PASS", "env-secret")

	cfg := config.InfluxConfig{
		Variant:     config.VariantV1,
		URL:         srv.URL,
		Database:    "builds",
		Username:    "writer",
		Password:    "ignored",
		PasswordEnv: "TEST_VSBL_PASS",
	}

	if err := New(nil).Send(context.Background(), "line", cfg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := (*reqs)[0].query["p"]; got != "env-secret" {
		t.Errorf("p = %q, want env-secret", got)
	}
}

func TestSendFailsFastOnIncompleteConfig(t *testing.T) {
	srv, reqs := captureServer(t, http.StatusNoContent, "")

	tests := []struct {
		name    string
		cfg     config.InfluxConfig
		missing string
	}{
		{"no variant", config.InfluxConfig{URL: srv.URL}, ""},
		{"v1 missing username", config.InfluxConfig{Variant: "v1", URL: srv.URL, Database: "d", Password: "p"}, "username"},
		{"v1 missing everything", config.InfluxConfig{Variant: "v1"}, "url"},
		{"v2 missing token", config.InfluxConfig{Variant: "v2", URL: srv.URL, Org: "o", Bucket: "b"}, "token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(nil).Send(context.Background(), "line", tt.cfg)

			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want *ConfigError", err)
			}
			if tt.missing != "" {
				found := false
				for _, m := range ce.Missing {
					if m == tt.missing {
						found = true
					}
				}
				if !found {
					t.Errorf("Missing = %v, want %q listed", ce.Missing, tt.missing)
				}
			}
		})
	}

	if len(*reqs) != 0 {
		t.Errorf("server saw %d requests, want none on config errors", len(*reqs))
	}
}

func TestSendRejectedStatus(t *testing.T) {
	srv, _ := captureServer(t, http.StatusBadRequest, `{"error":"unable to parse points"}`)

	cfg := config.InfluxConfig{
		Variant: config.VariantV2, URL: srv.URL, Org: "o", Bucket: "b", Token: "t",
	}
	err := New(nil).Send(context.Background(), "garbage", cfg)

	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DeliveryError", err)
	}
	if de.Status != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", de.Status)
	}
	if de.Body == "" {
		t.Error("Body excerpt is empty")
	}
}

// Only 200 and 204 count as delivered; other 2xx statuses do not.
func TestSendRejectsOther2xx(t *testing.T) {
	srv, _ := captureServer(t, http.StatusAccepted, "")

	cfg := config.InfluxConfig{
		Variant: config.VariantV2, URL: srv.URL, Org: "o", Bucket: "b", Token: "t",
	}
	err := New(nil).Send(context.Background(), "line", cfg)

	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DeliveryError", err)
	}
	if de.Status != http.StatusAccepted {
		t.Errorf("Status = %d, want 202", de.Status)
	}
}

func TestSendTransportFailure(t *testing.T) {
	srv, _ := captureServer(t, http.StatusNoContent, "")
	url := srv.URL
	srv.Close()

	cfg := config.InfluxConfig{
		Variant: config.VariantV2, URL: url, Org: "o", Bucket: "b", Token: "t",
	}
	err := New(nil).Send(context.Background(), "line", cfg)

	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DeliveryError", err)
	}
	if de.Err == nil || de.Status != 0 {
		t.Errorf("transport failure should carry Err and no status, got %+v", de)
	}
}

func TestCheckConnection(t *testing.T) {
	srv, reqs := captureServer(t, http.StatusNoContent, "")

	cfg := config.InfluxConfig{URL: srv.URL}
	if err := New(nil).CheckConnection(context.Background(), cfg); err != nil {
		t.Fatalf("CheckConnection: %v", err)
	}
	if r := (*reqs)[0]; r.method != http.MethodGet || r.path != "/ping" {
		t.Errorf("request = %s %s, want GET /ping", r.method, r.path)
	}

	var ce *ConfigError
	if err := New(nil).CheckConnection(context.Background(), config.InfluxConfig{}); !errors.As(err, &ce) {
		t.Errorf("missing url: err = %v, want *ConfigError", err)
	}
}

func TestCheckConnectionFailure(t *testing.T) {
	srv, _ := captureServer(t, http.StatusInternalServerError, "boom")

	err := New(nil).CheckConnection(context.Background(), config.InfluxConfig{URL: srv.URL})

	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DeliveryError", err)
	}
	if de.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", de.Status)
	}
}

func TestInspectTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(srv.Close)

	cs := InspectTLS(context.Background(), srv.URL)
	if cs == nil {
		t.Fatal("InspectTLS returned nil for an https endpoint")
	}
	if cs.Status != "valid" {
		t.Errorf("Status = %q, want valid (test cert is long-lived)", cs.Status)
	}
	if cs.DaysLeft <= expiringDays {
		t.Errorf("DaysLeft = %d, want > %d", cs.DaysLeft, expiringDays)
	}

	if got := InspectTLS(context.Background(), "http://plain.example.com"); got != nil {
		t.Errorf("plain http should return nil, got %+v", got)
	}

	cs = InspectTLS(context.Background(), "https://127.0.0.1:1")
	if cs == nil || cs.Status != "unreachable" {
		t.Errorf("closed port = %+v, want status unreachable", cs)
	}
}
