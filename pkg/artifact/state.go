package artifact

import (
	"maps"
	"slices"

	"github.com/bazelbuild/bazel-gazelle/label"

	"github.com/albertocavalcante/qsync/pkg/util"
)

// State is an immutable view of the cache.
type State struct {
	entries map[Key]Entry
}

var emptyState = &State{entries: map[Key]Entry{}}

func newState(entries []Entry) *State {
	m := make(map[Key]Entry, len(entries))
	for _, e := range entries {
		m[e.Key] = e
	}
	return &State{entries: m}
}

// Len returns the number of cached artifacts.
func (s *State) Len() int { return len(s.entries) }

// Get returns the entry for k.
func (s *State) Get(k Key) (Entry, bool) {
	e, ok := s.entries[k]
	return e, ok
}

// Entries returns every entry in key order.
func (s *State) Entries() []Entry {
	out := slices.Collect(maps.Values(s.entries))
	slices.SortFunc(out, func(a, b Entry) int { return compareKeys(a.Key, b.Key) })
	return out
}

// ForTarget returns the entries of one target in key order.
func (s *State) ForTarget(l label.Label) []Entry {
	var out []Entry
	for k, e := range s.entries {
		if k.Target == l {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b Entry) int { return compareKeys(a.Key, b.Key) })
	return out
}

// Targets returns every target with at least one entry, sorted.
func (s *State) Targets() []label.Label {
	seen := map[label.Label]bool{}
	for k := range s.entries {
		seen[k.Target] = true
	}
	return util.SortedLabels(seen)
}
