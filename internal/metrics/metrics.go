// Package metrics counts pipeline activity for the /metrics endpoint.
//
// The pipeline records through the Recorder interface so tests and the
// replay command can run with Nop instead of a live registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch outcome labels.
const (
	OutcomeOK            = "ok"
	OutcomeDeliveryError = "delivery_error"
	OutcomeConfigError   = "config_error"
	OutcomeCacheError    = "cache_error"
	OutcomeDropped       = "dropped"
)

// Recorder receives pipeline measurements. Implementations must be safe
// for concurrent use: the ingest loop and the dispatch worker both
// record.
type Recorder interface {
	// EventIngested counts one accepted lifecycle event by type.
	EventIngested(eventType string)
	// PassCompleted counts one finished build pass and the records it
	// queued.
	PassCompleted(records int)
	// DispatchAttempt counts one delivery attempt by outcome.
	DispatchAttempt(outcome string)
	// RecordsDelivered counts records confirmed delivered.
	RecordsDelivered(n int)
	// SetCacheLines tracks the current retry cache depth.
	SetCacheLines(n int)
}

// Nop is a Recorder that discards everything.
type Nop struct{}

func (Nop) EventIngested(string)   {}
func (Nop) PassCompleted(int)      {}
func (Nop) DispatchAttempt(string) {}
func (Nop) RecordsDelivered(int)   {}
func (Nop) SetCacheLines(int)      {}

// Prom is the Prometheus-backed Recorder.
type Prom struct {
	events     *prometheus.CounterVec
	passes     prometheus.Counter
	queued     prometheus.Counter
	attempts   *prometheus.CounterVec
	delivered  prometheus.Counter
	cacheLines prometheus.Gauge
}

// NewProm registers the pipeline metrics with reg and returns the
// Recorder feeding them.
func NewProm(reg prometheus.Registerer) *Prom {
	f := promauto.With(reg)
	return &Prom{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vsbuildlogger",
			Name:      "events_ingested_total",
			Help:      "Build lifecycle events accepted by the ingest loop.",
		}, []string{"type"}),
		passes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "vsbuildlogger",
			Name:      "build_passes_total",
			Help:      "Build passes completed.",
		}),
		queued: f.NewCounter(prometheus.CounterOpts{
			Namespace: "vsbuildlogger",
			Name:      "records_queued_total",
			Help:      "Build records handed to the dispatcher.",
		}),
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vsbuildlogger",
			Name:      "dispatch_attempts_total",
			Help:      "Delivery attempts by outcome.",
		}, []string{"outcome"}),
		delivered: f.NewCounter(prometheus.CounterOpts{
			Namespace: "vsbuildlogger",
			Name:      "records_delivered_total",
			Help:      "Build records confirmed delivered.",
		}),
		cacheLines: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "vsbuildlogger",
			Name:      "retry_cache_lines",
			Help:      "Lines currently parked in the retry cache.",
		}),
	}
}

func (p *Prom) EventIngested(eventType string) {
	p.events.WithLabelValues(eventType).Inc()
}

func (p *Prom) PassCompleted(records int) {
	p.passes.Inc()
	p.queued.Add(float64(records))
}

func (p *Prom) DispatchAttempt(outcome string) {
	p.attempts.WithLabelValues(outcome).Inc()
}

func (p *Prom) RecordsDelivered(n int) {
	p.delivered.Add(float64(n))
}

func (p *Prom) SetCacheLines(n int) {
	p.cacheLines.Set(float64(n))
}
