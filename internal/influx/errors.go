package influx

import (
	"fmt"
	"strings"
)

// ConfigError reports write settings too incomplete to attempt a
// delivery. The client fails fast on these: no network traffic, nothing
// worth caching for retry, since retrying cannot fix configuration.
type ConfigError struct {
	Variant string
	Missing []string
}

func (e *ConfigError) Error() string {
	if e.Variant == "" {
		return "influx: no write variant configured"
	}
	if len(e.Missing) == 0 {
		return fmt.Sprintf("influx: write variant %q not supported", e.Variant)
	}
	return fmt.Sprintf("influx: incomplete %s configuration: missing %s",
		e.Variant, strings.Join(e.Missing, ", "))
}

// DeliveryError reports a delivery attempt that failed on the wire:
// either the transport itself (Err set, Status zero) or a response
// status outside the accepted set (Status set, Body carrying an excerpt
// of the server's complaint).
type DeliveryError struct {
	Status int
	Body   string
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("influx: delivery failed: %v", e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("influx: write rejected with status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("influx: write rejected with status %d", e.Status)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
