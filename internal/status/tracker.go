package status

import (
	"sync"
	"time"
)

// Delivery states derived from the recent dispatch history.
const (
	StateIdle     = "idle"     // no dispatch attempted yet
	StateOK       = "ok"       // last attempt succeeded
	StateDegraded = "degraded" // failing, below the failing threshold
	StateFailing  = "failing"
)

// failingThreshold is the consecutive-failure count at which the
// delivery state turns from degraded to failing.
const failingThreshold = 3

// Summary is a point-in-time view of pipeline activity, shaped for the
// status API and the websocket stream.
type Summary struct {
	ActivePass bool   `json:"active_pass"`
	Solution   string `json:"solution,omitempty"`

	PassesSeen      int `json:"passes_seen"`
	PassesCancelled int `json:"passes_cancelled"`
	RecordsQueued   int `json:"records_queued"`

	DispatchAttempts    int    `json:"dispatch_attempts"`
	RecordsDelivered    int    `json:"records_delivered"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastDispatchAt      string `json:"last_dispatch_at,omitempty"`
	LastError           string `json:"last_error,omitempty"`
	Delivery            string `json:"delivery"`

	CacheLines int `json:"cache_lines"`
}

// Tracker aggregates correlator and dispatcher activity. The correlator
// and the dispatch worker write from their own goroutines; the API and
// websocket handlers read concurrently, so all state sits behind a
// mutex.
type Tracker struct {
	mu  sync.RWMutex
	now func() time.Time

	activePass bool
	solution   string

	passesSeen      int
	passesCancelled int
	recordsQueued   int

	dispatchAttempts    int
	recordsDelivered    int
	consecutiveFailures int
	lastDispatchAt      time.Time
	lastError           string

	cacheLines int
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// PassStarted records an opened build pass.
func (t *Tracker) PassStarted(solution string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activePass = true
	t.solution = solution
}

// PassEnded records a completed build pass and how many records it
// queued for delivery.
func (t *Tracker) PassEnded(records int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activePass = false
	t.solution = ""
	t.passesSeen++
	t.recordsQueued += records
}

// PassCancelled records an aborted build pass.
func (t *Tracker) PassCancelled() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activePass = false
	t.solution = ""
	t.passesCancelled++
}

// DispatchSucceeded records a delivered batch.
func (t *Tracker) DispatchSucceeded(records int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dispatchAttempts++
	t.recordsDelivered += records
	t.consecutiveFailures = 0
	t.lastDispatchAt = t.now()
	t.lastError = ""
}

// DispatchFailed records a failed delivery attempt with its reason.
func (t *Tracker) DispatchFailed(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dispatchAttempts++
	t.consecutiveFailures++
	t.lastDispatchAt = t.now()
	t.lastError = reason
}

// SetCacheLines records the retry cache depth observed after a dispatch.
func (t *Tracker) SetCacheLines(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cacheLines = n
}

// Summary returns the current aggregate view.
func (t *Tracker) Summary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Summary{
		ActivePass:          t.activePass,
		Solution:            t.solution,
		PassesSeen:          t.passesSeen,
		PassesCancelled:     t.passesCancelled,
		RecordsQueued:       t.recordsQueued,
		DispatchAttempts:    t.dispatchAttempts,
		RecordsDelivered:    t.recordsDelivered,
		ConsecutiveFailures: t.consecutiveFailures,
		LastError:           t.lastError,
		Delivery:            t.deliveryState(),
		CacheLines:          t.cacheLines,
	}
	if !t.lastDispatchAt.IsZero() {
		s.LastDispatchAt = t.lastDispatchAt.UTC().Format(time.RFC3339)
	}
	return s
}

// deliveryState derives the coarse delivery health from the failure run
// length. Callers hold at least a read lock.
func (t *Tracker) deliveryState() string {
	switch {
	case t.dispatchAttempts == 0:
		return StateIdle
	case t.consecutiveFailures == 0:
		return StateOK
	case t.consecutiveFailures < failingThreshold:
		return StateDegraded
	default:
		return StateFailing
	}
}
