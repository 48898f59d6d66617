package snapshot

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"
)

// ErrHolderClosed is returned when installing into a closed holder.
var ErrHolderClosed = errors.New("snapshot holder is closed")

// Holder owns the current snapshot. Current never blocks; Install swaps
// the whole snapshot in one step.
type Holder struct {
	current atomic.Pointer[Snapshot]

	mu        sync.Mutex
	closed    bool
	nextID    int
	listeners map[int]func(*Snapshot)
}

// NewHolder creates an empty holder.
func NewHolder() *Holder {
	return &Holder{listeners: map[int]func(*Snapshot){}}
}

// Current returns the installed snapshot, if any.
func (h *Holder) Current() (*Snapshot, bool) {
	s := h.current.Load()
	return s, s != nil
}

// Install replaces the current snapshot and then notifies subscribers.
// Listeners run on the caller's goroutine, outside the holder's lock.
func (h *Holder) Install(s *Snapshot) error {
	if s == nil {
		return errors.New("install nil snapshot")
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHolderClosed
	}
	h.current.Store(s)
	ids := make([]int, 0, len(h.listeners))
	for id := range h.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(*Snapshot), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.listeners[id])
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
	return nil
}

// Subscribe registers fn to run after each Install, in subscription order.
// The returned function removes it.
func (h *Holder) Subscribe(fn func(*Snapshot)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners, id)
	}
}

// Close ends the holder's lifecycle: the snapshot is dropped, listeners
// are removed and later installs fail.
func (h *Holder) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.current.Store(nil)
	clear(h.listeners)
}
