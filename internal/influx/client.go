package influx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vsbuildlogger/vsbuildlogger/internal/config"
)

// defaultTimeout bounds every request end to end. Delivery runs on a
// background worker, so a stuck backend costs queue latency, never a
// blocked build.
const defaultTimeout = 30 * time.Second

// writePrecision tells the backend our timestamps are Unix seconds.
const writePrecision = "s"

// Client posts line-formatted payloads to an InfluxDB write endpoint.
// It holds no per-batch state and is safe for concurrent use.
type Client struct {
	http *http.Client
}

// New returns a Client using h, or a default client with a 30 second
// timeout when h is nil.
func New(h *http.Client) *Client {
	if h == nil {
		h = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{http: h}
}

// Send posts payload to the write endpoint selected by cfg.Variant.
// Incomplete settings return a *ConfigError without touching the
// network; failures on the wire return a *DeliveryError. Only statuses
// 200 and 204 count as delivered.
func (c *Client) Send(ctx context.Context, payload string, cfg config.InfluxConfig) error {
	endpoint, header, err := writeRequest(cfg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload))
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("build write request: %w", err)}
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("post write: %w", err)}
	}
	defer resp.Body.Close()

	if !accepted(resp.StatusCode) {
		return &DeliveryError{Status: resp.StatusCode, Body: bodyExcerpt(resp.Body)}
	}
	return nil
}

// CheckConnection probes the backend's ping endpoint with the same
// acceptance rules as Send. It needs only the URL, so it works before
// credentials are configured.
func (c *Client) CheckConnection(ctx context.Context, cfg config.InfluxConfig) error {
	if cfg.URL == "" {
		return &ConfigError{Variant: cfg.Variant, Missing: []string{"url"}}
	}

	endpoint := strings.TrimRight(cfg.URL, "/") + "/ping"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("build ping request: %w", err)}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("ping: %w", err)}
	}
	defer resp.Body.Close()

	if !accepted(resp.StatusCode) {
		return &DeliveryError{Status: resp.StatusCode, Body: bodyExcerpt(resp.Body)}
	}
	return nil
}

// writeRequest validates cfg and builds the endpoint URL and extra
// headers for its variant. Secrets resolve through the config's
// environment indirection here, immediately before use.
func writeRequest(cfg config.InfluxConfig) (string, map[string]string, error) {
	base := strings.TrimRight(cfg.URL, "/")

	switch cfg.Variant {
	case config.VariantV1:
		password := cfg.EffectivePassword()

		var missing []string
		if cfg.URL == "" {
			missing = append(missing, "url")
		}
		if cfg.Database == "" {
			missing = append(missing, "database")
		}
		if cfg.Username == "" {
			missing = append(missing, "username")
		}
		if password == "" {
			missing = append(missing, "password")
		}
		if len(missing) > 0 {
			return "", nil, &ConfigError{Variant: config.VariantV1, Missing: missing}
		}

		q := url.Values{}
		q.Set("db", cfg.Database)
		q.Set("u", cfg.Username)
		q.Set("p", password)
		q.Set("precision", writePrecision)
		return base + "/write?" + q.Encode(), nil, nil

	case config.VariantV2:
		token := cfg.EffectiveToken()

		var missing []string
		if cfg.URL == "" {
			missing = append(missing, "url")
		}
		if cfg.Org == "" {
			missing = append(missing, "org")
		}
		if cfg.Bucket == "" {
			missing = append(missing, "bucket")
		}
		if token == "" {
			missing = append(missing, "token")
		}
		if len(missing) > 0 {
			return "", nil, &ConfigError{Variant: config.VariantV2, Missing: missing}
		}

		q := url.Values{}
		q.Set("bucket", cfg.Bucket)
		q.Set("org", cfg.Org)
		q.Set("precision", writePrecision)
		header := map[string]string{"Authorization": "Token " + token}
		return base + "/api/v2/write?" + q.Encode(), header, nil

	case "":
		return "", nil, &ConfigError{}

	default:
		return "", nil, &ConfigError{Variant: cfg.Variant}
	}
}

func accepted(code int) bool {
	return code == http.StatusOK || code == http.StatusNoContent
}

// bodyExcerpt reads a bounded prefix of the response body for the
// error message.
func bodyExcerpt(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	return strings.TrimSpace(string(data))
}
