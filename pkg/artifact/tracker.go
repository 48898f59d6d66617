package artifact

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bazelbuild/bazel-gazelle/label"

	"github.com/albertocavalcante/qsync/internal/log"
	"github.com/albertocavalcante/qsync/pkg/util"
)

// Tracker owns the artifact cache. Reads never block; updates are
// serialized by a single lock and become visible in one pointer swap
// after the new state has been persisted.
type Tracker struct {
	mu    sync.Mutex
	state atomic.Pointer[State]
	store Store
	hash  func(string) (string, error)
	now   func() time.Time
}

// Open loads the persisted cache from store. A missing or unreadable cache
// starts empty: the next build repopulates it.
func Open(store Store) *Tracker {
	t := &Tracker{store: store, hash: HashFile, now: time.Now}
	entries, err := store.Load()
	if err != nil {
		log.Component("artifact").Warnw("discarding artifact cache", "error", err)
		entries = nil
	}
	t.state.Store(newState(entries))
	return t
}

// State returns the current cache view.
func (t *Tracker) State() *State { return t.state.Load() }

// Get returns the cached entry for k.
func (t *Tracker) Get(k Key) (Entry, bool) { return t.State().Get(k) }

// Entries returns every cached entry in key order.
func (t *Tracker) Entries() []Entry { return t.State().Entries() }

// Targets returns the targets with cached artifacts.
func (t *Tracker) Targets() []label.Label { return t.State().Targets() }

// Update reconciles the cache with a build of requested. Only artifacts of
// requested targets are considered; other targets' entries are never
// touched. An artifact with an unchanged digest is left alone, a changed
// one is replaced and reported as updated, and a previously cached one
// the build no longer produced is removed.
//
// If produced holds nothing usable for a non-empty requested set, Update
// returns *NoArtifactsProducedError and the cache is unchanged. The cache
// is also unchanged when ctx ends or persisting fails.
func (t *Tracker) Update(ctx context.Context, requested []label.Label, produced []Artifact) (*UpdateResult, error) {
	if len(requested) == 0 {
		return &UpdateResult{}, nil
	}
	want := make(map[label.Label]bool, len(requested))
	for _, l := range requested {
		want[l] = true
	}

	now := t.now()
	desired := make(map[Key]Entry)
	for _, a := range produced {
		if !want[a.Target] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		digest := a.Digest
		if digest == "" {
			var err error
			if digest, err = t.hash(a.Path); err != nil {
				return nil, err
			}
		}
		desired[a.Key()] = Entry{Key: a.Key(), Path: a.Path, Digest: digest, BuildTime: now}
	}
	if len(desired) == 0 {
		targets := slices.Clone(requested)
		slices.SortFunc(targets, util.CompareLabels)
		return nil, &NoArtifactsProducedError{Targets: slices.CompactFunc(targets, func(a, b label.Label) bool { return a == b })}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.state.Load()
	next := maps.Clone(cur.entries)
	result := &UpdateResult{}
	for k, e := range desired {
		if old, ok := cur.entries[k]; ok && old.Digest == e.Digest {
			continue
		}
		next[k] = e
		result.Updated = append(result.Updated, k)
	}
	for k := range cur.entries {
		if _, ok := desired[k]; !ok && want[k.Target] {
			delete(next, k)
			result.Removed = append(result.Removed, k)
		}
	}
	slices.SortFunc(result.Updated, compareKeys)
	slices.SortFunc(result.Removed, compareKeys)
	if result.Empty() {
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nextState := &State{entries: next}
	if err := t.store.Save(nextState.Entries()); err != nil {
		return nil, fmt.Errorf("persist artifact cache: %w", err)
	}
	t.state.Store(nextState)
	return result, nil
}

// Clear drops every cached artifact.
func (t *Tracker) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.store.Clear(); err != nil {
		return fmt.Errorf("clear artifact cache: %w", err)
	}
	t.state.Store(emptyState)
	return nil
}

// Close releases the store.
func (t *Tracker) Close() error { return t.store.Close() }
