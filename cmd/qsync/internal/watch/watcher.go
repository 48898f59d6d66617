package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bazelbuild/bazel-gazelle/label"
	"github.com/fsnotify/fsnotify"

	"github.com/albertocavalcante/qsync/cmd/qsync/internal/langs"
	"github.com/albertocavalcante/qsync/pkg/artifactbuild"
	"github.com/albertocavalcante/qsync/pkg/progress"
	"github.com/albertocavalcante/qsync/pkg/snapshot"
)

// Session is the part of the sync session the watcher drives.
type Session interface {
	Owner(path string) (label.Label, bool, error)
	BuildFiles(ctx context.Context, sink progress.Sink, paths []string) (*artifactbuild.Outcome, error)
	Sync(ctx context.Context, sink progress.Sink) (*snapshot.Snapshot, error)
}

// Config configures the watcher.
type Config struct {
	Root      string
	Languages []string // nil watches every known language
	Debounce  int      // milliseconds
	// AutoSync re-syncs when a BUILD file changes. Without it the change
	// is only reported.
	AutoSync bool
	Verbose  bool
	NoColor  bool
	JSON     bool
	Writer   io.Writer
	// Sink receives sync and build progress. Nil logs it.
	Sink progress.Sink
}

// DefaultDebounce is used when Config.Debounce is not positive.
const DefaultDebounce = 500 * time.Millisecond

// ErrWatchLimitReached is returned when the OS watch limit is exceeded.
var ErrWatchLimitReached = errors.New("filesystem watch limit reached")

// Watcher rebuilds the targets owning saved source files.
type Watcher struct {
	config     Config
	session    Session
	fsWatcher  *fsnotify.Watcher
	debouncer  *Debouncer
	logger     *Logger
	extensions map[string]bool
	targets    func() int

	// buildMu serializes batches; a slow build delays the next one.
	buildMu sync.Mutex
	running atomic.Bool
}

// New creates a watcher for cfg.Root driving s.
func New(cfg Config, s Session) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		config:     cfg,
		session:    s,
		fsWatcher:  fsWatcher,
		extensions: langs.ExtensionSet(cfg.Languages),
		logger: NewLogger(LoggerConfig{
			Writer:  cfg.Writer,
			Verbose: cfg.Verbose,
			NoColor: cfg.NoColor,
			JSON:    cfg.JSON,
		}),
	}, nil
}

// OnReady sets how the ready message counts synced targets.
func (w *Watcher) OnReady(targets func() int) { w.targets = targets }

// Running reports whether Run is in its event loop.
func (w *Watcher) Running() bool { return w.running.Load() }

// Stats returns what the watcher has done so far.
func (w *Watcher) Stats() Stats { return w.logger.Stats() }

// Run watches until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	window := time.Duration(w.config.Debounce) * time.Millisecond
	if window <= 0 {
		window = DefaultDebounce
	}
	w.debouncer = NewDebouncer(window, func(paths []string) { w.handleBatch(ctx, paths) })

	if err := w.addRecursive(w.config.Root); err != nil {
		w.debouncer.Stop()
		return fmt.Errorf("failed to watch workspace: %w", err)
	}

	targets := 0
	if w.targets != nil {
		targets = w.targets()
	}
	w.logger.Ready(targets, w.config.Languages, w.config.Root)
	w.running.Store(true)
	defer w.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			// Pending paths reach handleBatch with ctx done and are dropped.
			w.debouncer.Stop()
			w.logger.Shutdown()
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				w.debouncer.Stop()
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				w.debouncer.Stop()
				return nil
			}
			w.logger.Error(err)
		}
	}
}

// addRecursive watches root and every directory below it that is not
// ignored.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if !os.IsPermission(err) || w.config.Verbose {
				w.logger.Error(fmt.Errorf("walk error at %s: %w", path, err))
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && langs.IsIgnoredDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			if isWatchLimitError(err) {
				return fmt.Errorf("%w at %s: %v\n"+
					"Increase limit with: sudo sysctl fs.inotify.max_user_watches=524288", ErrWatchLimitReached, path, err)
			}
			if w.config.Verbose {
				w.logger.Error(fmt.Errorf("failed to watch %s: %w", path, err))
			}
		}
		return nil
	})
}

func isWatchLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no space left on device") ||
		strings.Contains(msg, "too many open files")
}

// isBuildFile reports whether name is a BUILD file; editing one changes
// the graph and needs a sync rather than a build.
func isBuildFile(name string) bool {
	switch filepath.Base(name) {
	case "BUILD", "BUILD.bazel":
		return true
	}
	return false
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if langs.IsIgnoredDir(filepath.Base(path)) {
				return
			}
			if err := w.addRecursive(path); err != nil {
				w.logger.Error(fmt.Errorf("failed to watch new directory %s: %w", path, err))
			}
			return
		}
	}

	if !w.extensions[filepath.Ext(path)] && !isBuildFile(path) {
		return
	}

	var change ChangeType
	switch {
	case event.Has(fsnotify.Create):
		change = ChangeAdded
	case event.Has(fsnotify.Write):
		change = ChangeModified
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		change = ChangeDeleted
	default:
		return
	}

	rel, err := filepath.Rel(w.config.Root, path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	w.logger.FileChanged(rel, change)
	w.debouncer.Add(rel)
}

// handleBatch syncs if BUILD files changed, then builds the owned sources.
func (w *Watcher) handleBatch(ctx context.Context, paths []string) {
	if ctx.Err() != nil {
		return
	}
	w.buildMu.Lock()
	defer w.buildMu.Unlock()

	var sink progress.Sink = progress.LogSink{Component: "watch"}
	if w.config.Sink != nil {
		sink = w.config.Sink
	}
	var sources []string
	resync := false
	for _, p := range paths {
		if isBuildFile(p) {
			resync = true
			continue
		}
		sources = append(sources, p)
	}

	if resync {
		if !w.config.AutoSync {
			w.logger.Error(errors.New("BUILD files changed; run `qsync sync` to pick up new targets"))
		} else if snap, err := w.session.Sync(ctx, sink); err != nil {
			w.logger.Error(fmt.Errorf("sync failed: %w", err))
		} else {
			w.logger.Synced(snap.Graph().Len())
		}
	}

	var owned []string
	for _, p := range sources {
		if _, ok, err := w.session.Owner(p); err != nil {
			w.logger.Error(err)
			return
		} else if !ok {
			w.logger.Skipped(p)
			continue
		}
		owned = append(owned, p)
	}
	if len(owned) == 0 {
		return
	}

	w.logger.Building(owned)
	start := time.Now()
	out, err := w.session.BuildFiles(ctx, sink, owned)
	if out != nil {
		targets := make([]string, len(out.Targets))
		for i, t := range out.Targets {
			targets[i] = t.String()
		}
		w.logger.Built(targets, len(out.Update.Updated), len(out.Update.Removed), time.Since(start))
	}
	if err != nil {
		w.logger.Error(err)
	}
}

// Close releases the OS watches.
func (w *Watcher) Close() error {
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}
