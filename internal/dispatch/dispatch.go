// Package dispatch owns delivery: it takes finished batches from the
// correlator, prepends any cached backlog, sends, and settles the retry
// cache according to the outcome.
//
// One goroutine runs the worker, and only that goroutine touches the
// cache. That single-mutator rule is what makes the read-send-clear
// sequence a transaction without any cross-package locking.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/vsbuildlogger/vsbuildlogger/internal/alerts"
	"github.com/vsbuildlogger/vsbuildlogger/internal/cache"
	"github.com/vsbuildlogger/vsbuildlogger/internal/config"
	"github.com/vsbuildlogger/vsbuildlogger/internal/correlate"
	"github.com/vsbuildlogger/vsbuildlogger/internal/influx"
	"github.com/vsbuildlogger/vsbuildlogger/internal/lineproto"
	"github.com/vsbuildlogger/vsbuildlogger/internal/metrics"
	"github.com/vsbuildlogger/vsbuildlogger/internal/status"
)

// defaultQueueSize bounds batches waiting for the worker. A pass
// produces one batch, so even a slow backend leaves plenty of headroom;
// beyond it, new batches are dropped rather than stalling ingest.
const defaultQueueSize = 128

// Sender delivers one payload with the given settings. *influx.Client
// is the production implementation.
type Sender interface {
	Send(ctx context.Context, payload string, cfg config.InfluxConfig) error
}

// Dispatcher queues finished batches and delivers them on a single
// background worker. It implements correlate.Batcher.
type Dispatcher struct {
	sender   Sender
	store    *cache.Cache
	provider *config.Provider
	sink     status.Sink
	tracker  *status.Tracker
	rec      metrics.Recorder
	alerts   *alerts.Engine

	queue chan []*correlate.Record
}

// New creates a Dispatcher. queueSize <= 0 selects the default.
func New(sender Sender, store *cache.Cache, provider *config.Provider, sink status.Sink,
	tracker *status.Tracker, rec metrics.Recorder, engine *alerts.Engine, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		sender:   sender,
		store:    store,
		provider: provider,
		sink:     sink,
		tracker:  tracker,
		rec:      rec,
		alerts:   engine,
		queue:    make(chan []*correlate.Record, queueSize),
	}
}

// Enqueue hands a finished batch to the worker without blocking. When
// the queue is full the batch is dropped and reported; the correlator
// must never wait on delivery.
func (d *Dispatcher) Enqueue(records []*correlate.Record) {
	if len(records) == 0 {
		return
	}
	d.rec.PassCompleted(len(records))

	select {
	case d.queue <- records:
	default:
		d.rec.DispatchAttempt(metrics.OutcomeDropped)
		d.sink.Printf("dispatch queue full: %d record(s) dropped", len(records))
		slog.Warn("dispatch queue full, dropping batch", "records", len(records))
	}
}

// Run consumes batches until ctx is cancelled, then spills anything
// still queued into the retry cache and returns. Run must be the only
// goroutine calling into the cache; see the package comment.
func (d *Dispatcher) Run(ctx context.Context) {
	slog.Info("dispatch worker started")
	for {
		// Cancellation wins over pending batches so shutdown spills
		// them instead of racing new delivery attempts.
		select {
		case <-ctx.Done():
			d.spill()
			slog.Info("dispatch worker stopped")
			return
		default:
		}

		select {
		case <-ctx.Done():
			d.spill()
			slog.Info("dispatch worker stopped")
			return
		case batch := <-d.queue:
			d.attempt(ctx, batch)
		}
	}
}

// DispatchNow performs one synchronous delivery attempt with the same
// cache transaction the worker uses. It exists for offline use (the
// replay command) and must not run concurrently with Run.
func (d *Dispatcher) DispatchNow(ctx context.Context, batch []*correlate.Record) {
	d.attempt(ctx, batch)
}

// attempt is one complete delivery transaction: encode, prepend
// backlog, send, settle the cache, publish status.
func (d *Dispatcher) attempt(ctx context.Context, batch []*correlate.Record) {
	cfg := d.provider.Current().Influx
	payload := lineproto.EncodeBatch(batch)

	backlog := ""
	if d.store.HasData() {
		var err error
		backlog, err = d.store.Get()
		if err != nil {
			d.tracker.DispatchFailed(err.Error())
			d.rec.DispatchAttempt(metrics.OutcomeCacheError)
			d.sink.Printf("retry cache unreadable: %v; %d record(s) dropped", err, len(batch))
			slog.Error("retry cache read failed, dropping batch", "records", len(batch), "error", err)
			d.finish()
			return
		}
	}

	// The backlog is newline-terminated by construction; cached lines
	// go first so older records keep their place in line.
	full := payload
	if backlog != "" {
		full = backlog + payload
	}
	backlogLines := strings.Count(backlog, "\n")

	err := d.sender.Send(ctx, full, cfg)

	var cfgErr *influx.ConfigError
	switch {
	case err == nil:
		if backlog != "" {
			if cerr := d.store.Clear(); cerr != nil {
				// Worst case the cached lines deliver again; the
				// backend treats identical points as duplicates worth
				// keeping over losing them.
				slog.Error("retry cache clear failed after delivery", "error", cerr)
				d.sink.Printf("warning: retry cache could not be cleared: %v", cerr)
			}
		}
		delivered := len(batch) + backlogLines
		d.tracker.DispatchSucceeded(delivered)
		d.rec.DispatchAttempt(metrics.OutcomeOK)
		d.rec.RecordsDelivered(delivered)
		if backlogLines > 0 {
			d.sink.Printf("delivered %d build record(s), including %d from the retry cache", delivered, backlogLines)
		} else {
			d.sink.Printf("delivered %d build record(s)", delivered)
		}

	case errors.As(err, &cfgErr):
		// Nothing was attempted and retrying cannot help until the
		// operator fixes the settings, so the batch is dropped.
		d.tracker.DispatchFailed(err.Error())
		d.rec.DispatchAttempt(metrics.OutcomeConfigError)
		d.sink.Printf("delivery skipped: %v; %d record(s) dropped", err, len(batch))
		slog.Warn("dispatch skipped on incomplete configuration", "error", err, "records", len(batch))

	default:
		d.tracker.DispatchFailed(err.Error())
		d.rec.DispatchAttempt(metrics.OutcomeDeliveryError)
		// Only the new lines are appended: the backlog is already in
		// the cache, and appending it again would duplicate records
		// across retries.
		if aerr := d.store.Append(payload); aerr != nil {
			d.sink.Printf("delivery failed and the retry cache is unwritable: %d record(s) lost: %v", len(batch), aerr)
			slog.Error("retry cache append failed, records lost", "records", len(batch), "error", aerr)
		} else {
			d.sink.Printf("delivery failed: %v; %d record(s) cached for retry", err, len(batch))
		}
	}

	d.finish()
}

// finish publishes the post-attempt cache depth and lets the alert
// engine look at the updated summary.
func (d *Dispatcher) finish() {
	if n, err := d.store.Lines(); err == nil {
		d.tracker.SetCacheLines(n)
		d.rec.SetCacheLines(n)
	}
	d.alerts.Observe(d.tracker.Summary())
}

// spill parks still-queued batches in the retry cache so shutdown does
// not lose them.
func (d *Dispatcher) spill() {
	for {
		select {
		case batch := <-d.queue:
			if err := d.store.Append(lineproto.EncodeBatch(batch)); err != nil {
				slog.Error("spill to retry cache failed, records lost", "records", len(batch), "error", err)
			}
		default:
			return
		}
	}
}
