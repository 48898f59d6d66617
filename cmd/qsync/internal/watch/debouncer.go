// Package watch rebuilds artifacts for source files as they are saved.
package watch

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// MaxPending is the number of pending paths that forces an immediate
// flush, bounding memory during bulk file creation.
const MaxPending = 1000

// Debouncer coalesces bursts of file events into one batch. A batch is
// delivered once no new path has arrived for the window.
type Debouncer struct {
	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	window  time.Duration
	onFlush func(paths []string)
	stopped bool
}

// NewDebouncer creates a debouncer. onFlush receives each batch sorted and
// runs without the debouncer's lock held.
func NewDebouncer(window time.Duration, onFlush func(paths []string)) *Debouncer {
	return &Debouncer{
		pending: make(map[string]struct{}),
		window:  window,
		onFlush: onFlush,
	}
}

// Add records a changed path and restarts the window.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.pending[path] = struct{}{}

	if len(d.pending) >= MaxPending {
		batch := d.drainLocked()
		d.mu.Unlock()
		d.deliver(batch)
		return
	}

	// A timer that already fired finds nothing pending after a drain.
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
	d.mu.Unlock()
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	batch := d.drainLocked()
	d.mu.Unlock()
	d.deliver(batch)
}

// drainLocked stops the timer and takes the pending set. Caller holds d.mu.
func (d *Debouncer) drainLocked() []string {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if len(d.pending) == 0 {
		return nil
	}
	batch := slices.Sorted(maps.Keys(d.pending))
	d.pending = make(map[string]struct{})
	return batch
}

func (d *Debouncer) deliver(batch []string) {
	if len(batch) > 0 && d.onFlush != nil {
		d.onFlush(batch)
	}
}

// FlushNow delivers pending paths without waiting for the window.
func (d *Debouncer) FlushNow() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	batch := d.drainLocked()
	d.mu.Unlock()
	d.deliver(batch)
}

// Stop flushes what is pending and ignores later paths.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	batch := d.drainLocked()
	d.mu.Unlock()
	d.deliver(batch)
}

// PendingCount returns how many paths wait for the next flush.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
