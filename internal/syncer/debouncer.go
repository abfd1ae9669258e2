package syncer

import (
	"sync"
	"time"
)

// DefaultDebounceWindow collapses editor-generated write bursts
// (save-then-touch-then-rewrite sequences) into a single propagation.
const DefaultDebounceWindow = 50 * time.Millisecond

// Debouncer gates how often sync work may run for one handler. It is
// per watched directory: concurrent syncs in different directories never
// block each other.
type Debouncer struct {
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	syncing  bool
	lastSync time.Time
}

// NewDebouncer creates a debouncer with the given window.
// A non-positive window falls back to DefaultDebounceWindow.
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{
		window: window,
		now:    time.Now,
	}
}

// TryStart atomically checks the gate and marks a sync in flight.
// Returns false when a sync is already running or the last completed
// sync is still within the debounce window.
func (d *Debouncer) TryStart() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.syncing {
		return false
	}
	if !d.lastSync.IsZero() && d.now().Sub(d.lastSync) < d.window {
		return false
	}

	d.syncing = true
	return true
}

// Finish releases the gate. Must be called exactly once per successful
// TryStart, on every exit path, or the handler would debounce forever.
// The completion timestamp is only stamped when propagation work was
// actually done, so zero-match events do not extend the window.
func (d *Debouncer) Finish(propagated bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.syncing = false
	if propagated {
		d.lastSync = d.now()
	}
}
