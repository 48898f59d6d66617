package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bazelbuild/bazel-gazelle/label"

	"github.com/albertocavalcante/qsync/pkg/config"
)

const (
	jsonFile   = "artifacts.json"
	sqliteFile = "artifacts.db"

	// StateVersion is the persisted format version.
	StateVersion = 1
)

// ErrCorruptState reports a persisted cache that cannot be decoded.
var ErrCorruptState = errors.New("corrupt artifact cache")

// Store persists the artifact cache.
type Store interface {
	// Load returns the persisted entries; nothing persisted yet is not an error.
	Load() ([]Entry, error)
	// Save replaces the persisted entries atomically.
	Save(entries []Entry) error
	Clear() error
	Close() error
}

// OpenStore opens the store kind selected by configuration inside dir.
func OpenStore(kind, dir string) (Store, error) {
	switch kind {
	case "", config.StoreJSON:
		return NewJSONStore(dir), nil
	case config.StoreSQLite:
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(dir, sqliteFile))
	}
	return nil, fmt.Errorf("unknown artifact store %q", kind)
}

// record is the persisted form of an Entry.
type record struct {
	Target    string    `json:"target"`
	Role      Role      `json:"role"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Digest    string    `json:"digest"`
	BuildTime time.Time `json:"build_time"`
}

func toRecord(e Entry) record {
	return record{
		Target:    e.Key.Target.String(),
		Role:      e.Key.Role,
		Name:      e.Key.Name,
		Path:      e.Path,
		Digest:    e.Digest,
		BuildTime: e.BuildTime,
	}
}

func (r record) entry() (Entry, error) {
	l, err := label.Parse(r.Target)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: target %q: %v", ErrCorruptState, r.Target, err)
	}
	return Entry{
		Key:       Key{Target: l, Role: r.Role, Name: r.Name},
		Path:      r.Path,
		Digest:    r.Digest,
		BuildTime: r.BuildTime,
	}, nil
}

// jsonState is the on-disk layout of JSONStore.
type jsonState struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	Entries   []record  `json:"entries"`
}

// JSONStore keeps the cache in one JSON file, replaced by rename.
type JSONStore struct {
	dir  string
	path string
}

// NewJSONStore creates a store writing dir/artifacts.json.
func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{dir: dir, path: filepath.Join(dir, jsonFile)}
}

func (s *JSONStore) Load() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact cache: %w", err)
	}

	var st jsonState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if st.Version > StateVersion {
		return nil, fmt.Errorf("%w: version %d is newer than supported version %d", ErrCorruptState, st.Version, StateVersion)
	}
	out := make([]Entry, 0, len(st.Entries))
	for _, r := range st.Entries {
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *JSONStore) Save(entries []Entry) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	st := jsonState{Version: StateVersion, UpdatedAt: time.Now(), Entries: make([]record, 0, len(entries))}
	for _, e := range entries {
		st.Entries = append(st.Entries, toRecord(e))
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact cache: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write artifact cache: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace artifact cache: %w", err)
	}
	return nil
}

// Clear removes the cache file.
func (s *JSONStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *JSONStore) Close() error { return nil }
