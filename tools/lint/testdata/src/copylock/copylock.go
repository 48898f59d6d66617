package copylock

import "sync"

type tracker struct {
	mu      sync.Mutex
	entries map[string]string
}

func snapshot(t tracker) map[string]string { // want "snapshot passes lock by value: copylock.tracker contains sync.Mutex"
	return t.entries
}

func clone(t *tracker) *tracker {
	c := *t // want "assignment copies lock value to c: copylock.tracker contains sync.Mutex"
	return &c
}

func get(t *tracker, key string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[key]
}
