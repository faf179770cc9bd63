// Package ingest accepts build lifecycle events over HTTP and feeds
// them to the correlator strictly in arrival order.
package ingest

import (
	"context"
	"log/slog"

	"github.com/vsbuildlogger/vsbuildlogger/internal/correlate"
	"github.com/vsbuildlogger/vsbuildlogger/internal/metrics"
	"github.com/vsbuildlogger/vsbuildlogger/pkg/buildevent"
)

// defaultQueueSize bounds events waiting for the loop. Build passes
// emit a handful of events each; the queue only ever fills if the
// correlator is somehow wedged.
const defaultQueueSize = 1024

// Loop owns the correlator: exactly one goroutine applies events, which
// is the reason the correlator carries no locks.
type Loop struct {
	events chan buildevent.Event
	corr   *correlate.Correlator
	rec    metrics.Recorder
}

// NewLoop creates a Loop around corr. queueSize <= 0 selects the
// default.
func NewLoop(corr *correlate.Correlator, rec metrics.Recorder, queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Loop{
		events: make(chan buildevent.Event, queueSize),
		corr:   corr,
		rec:    rec,
	}
}

// Submit queues ev for the loop. It blocks while the queue is full
// rather than reordering or dropping; ctx bounds the wait.
func (l *Loop) Submit(ctx context.Context, ev buildevent.Event) error {
	select {
	case l.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run applies queued events until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	slog.Info("ingest loop started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("ingest loop stopped")
			return
		case ev := <-l.events:
			l.Apply(ev)
		}
	}
}

// Apply translates one event into correlator calls. Like the correlator
// itself it must only ever run on one goroutine: Run in the daemon, the
// caller's in offline replay.
func (l *Loop) Apply(ev buildevent.Event) {
	typ := string(ev.Type)
	if !ev.Type.Known() {
		// Unknown types share one label so a chatty new plugin cannot
		// mint unbounded metric series.
		typ = "unknown"
	}
	l.rec.EventIngested(typ)

	switch ev.Type {
	case buildevent.TypePassBegin:
		l.corr.BeginPass(ev.Solution)
	case buildevent.TypeProjectBegin:
		l.corr.BeginProject(ev.Project, ev.Configuration, ev.Kind)
	case buildevent.TypeProjectEnd:
		success := ev.Success != nil && *ev.Success
		l.corr.EndProject(ev.Project, ev.Configuration, success)
	case buildevent.TypePassEnd:
		l.corr.EndPass()
	case buildevent.TypePassCancel:
		l.corr.CancelPass()
	default:
		slog.Debug("unknown event type ignored", "type", ev.Type)
	}
}
