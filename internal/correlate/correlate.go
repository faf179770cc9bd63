package correlate

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vsbuildlogger/vsbuildlogger/internal/hostinfo"
	"github.com/vsbuildlogger/vsbuildlogger/internal/status"
	"github.com/vsbuildlogger/vsbuildlogger/pkg/buildevent"
)

// Key identifies one project build within a pass. The same project can
// build under different configurations in a single pass.
type Key struct {
	Project       string
	Configuration string
}

// Record is one project build, timed from its begin event to its end
// event and stamped with the machine facts in effect at startup.
type Record struct {
	// PassID groups all records of one build pass. It never reaches
	// the wire; it exists for logs and tests.
	PassID string

	Project       string
	Configuration string
	Solution      string
	Kind          string

	Start    time.Time
	Finish   time.Time
	Duration time.Duration
	Success  bool

	Facts *hostinfo.Snapshot
}

// Batcher receives the finished records of a build pass for delivery.
// Enqueue must not block: the correlator hands the batch off and returns
// to consuming events immediately.
type Batcher interface {
	Enqueue(records []*Record)
}

// Correlator folds the host's lifecycle events into timed Records.
//
// It is deliberately lock-free: all methods must be called from a single
// goroutine (the ingest loop owns it). Events arriving outside an open
// pass are ignored, as are end events with no matching begin; IDE event
// streams lose callbacks often enough that this is normal operation, not
// an error.
type Correlator struct {
	facts   *hostinfo.Snapshot
	batcher Batcher
	sink    status.Sink
	tracker *status.Tracker

	now   func() time.Time
	newID func() string

	active   bool
	passID   string
	solution string
	inflight map[Key]*Record
	finished []*Record
}

// New creates a Correlator. All four dependencies are required.
func New(facts *hostinfo.Snapshot, batcher Batcher, sink status.Sink, tracker *status.Tracker) *Correlator {
	return &Correlator{
		facts:   facts,
		batcher: batcher,
		sink:    sink,
		tracker: tracker,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// BeginPass opens a build pass for the named solution. Any pass still
// open is abandoned: its in-flight and finished records are discarded,
// since the host evidently moved on without closing it.
func (c *Correlator) BeginPass(solution string) {
	if c.active {
		slog.Warn("build pass restarted with previous pass still open",
			"previous_pass", c.passID,
			"discarded_records", len(c.inflight)+len(c.finished),
		)
	}

	c.active = true
	c.passID = c.newID()
	c.solution = solution
	c.inflight = make(map[Key]*Record)
	c.finished = nil

	c.tracker.PassStarted(solution)
	c.sink.Printf("build pass started: solution %q", solution)
}

// BeginProject opens the timer for one project build. Kinds other than
// build and rebuild (clean, deploy, ...) are ignored. A second begin for
// the same project and configuration restarts its timer.
func (c *Correlator) BeginProject(project, configuration, kind string) {
	if !c.active {
		slog.Debug("project begin outside a build pass, ignoring", "project", project)
		return
	}
	if !buildevent.RecognizedKind(kind) {
		slog.Debug("project begin with unrecorded kind, ignoring",
			"project", project, "kind", kind)
		return
	}

	key := Key{Project: project, Configuration: configuration}
	c.inflight[key] = &Record{
		PassID:        c.passID,
		Project:       project,
		Configuration: configuration,
		Solution:      c.solution,
		Kind:          kind,
		Start:         c.now(),
		Facts:         c.facts,
	}
}

// EndProject closes the timer for one project build and files the record
// for dispatch at pass end. An end with no matching begin is a no-op:
// the begin may have carried an unrecorded kind, or the host may have
// skipped an up-to-date project.
func (c *Correlator) EndProject(project, configuration string, success bool) {
	if !c.active {
		slog.Debug("project end outside a build pass, ignoring", "project", project)
		return
	}

	key := Key{Project: project, Configuration: configuration}
	rec, ok := c.inflight[key]
	if !ok {
		slog.Debug("project end with no open record, ignoring",
			"project", project, "configuration", configuration)
		return
	}

	rec.Finish = c.now()
	rec.Duration = rec.Finish.Sub(rec.Start)
	rec.Success = success

	delete(c.inflight, key)
	c.finished = append(c.finished, rec)
}

// EndPass closes the pass and hands its finished records to the batcher.
// Projects still in flight are dropped: without an end event there is no
// duration to report. The correlator returns to idle regardless of
// whether delivery later succeeds.
func (c *Correlator) EndPass() {
	if !c.active {
		slog.Debug("pass end while idle, ignoring")
		return
	}

	records := c.finished
	dropped := len(c.inflight)
	c.reset()

	c.tracker.PassEnded(len(records))
	switch {
	case len(records) == 0:
		c.sink.Printf("build pass finished: nothing to record")
	case dropped > 0:
		c.sink.Printf("build pass finished: %d record(s) queued, %d project(s) never finished", len(records), dropped)
	default:
		c.sink.Printf("build pass finished: %d record(s) queued for delivery", len(records))
	}

	if len(records) > 0 {
		c.batcher.Enqueue(records)
	}
}

// CancelPass aborts the pass and discards everything it accumulated.
func (c *Correlator) CancelPass() {
	if !c.active {
		slog.Debug("pass cancel while idle, ignoring")
		return
	}

	discarded := len(c.inflight) + len(c.finished)
	c.reset()

	c.tracker.PassCancelled()
	c.sink.Printf("build pass cancelled: %d record(s) discarded", discarded)
}

func (c *Correlator) reset() {
	c.active = false
	c.passID = ""
	c.solution = ""
	c.inflight = nil
	c.finished = nil
}
