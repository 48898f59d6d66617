// Package session ties the sync engine to one workspace: it queries,
// builds snapshots, persists sync state and builds artifacts for files.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bazelbuild/bazel-gazelle/label"

	"github.com/albertocavalcante/qsync/cmd/qsync/internal/runner"
	"github.com/albertocavalcante/qsync/internal/log"
	"github.com/albertocavalcante/qsync/pkg/artifact"
	"github.com/albertocavalcante/qsync/pkg/artifactbuild"
	"github.com/albertocavalcante/qsync/pkg/config"
	"github.com/albertocavalcante/qsync/pkg/graph"
	"github.com/albertocavalcante/qsync/pkg/pkgreader"
	"github.com/albertocavalcante/qsync/pkg/progress"
	"github.com/albertocavalcante/qsync/pkg/project"
	"github.com/albertocavalcante/qsync/pkg/projectview"
	"github.com/albertocavalcante/qsync/pkg/query"
	"github.com/albertocavalcante/qsync/pkg/snapshot"
)

// QuerySource produces the query summary for the included directories.
type QuerySource interface {
	Query(ctx context.Context, include, exclude []string) (*query.Summary, error)
}

// Options configure Open. Query and Build default to bazel via the runner.
type Options struct {
	Root   string
	Config *config.Config
	Query  QuerySource
	Build  artifactbuild.BuildSystem
}

// Session is the sync engine for one workspace. It is safe for concurrent
// use; syncs are serialized.
type Session struct {
	root     string
	cfg      *config.Config
	stateDir string

	query   QuerySource
	reader  pkgreader.Reader
	tracker *artifact.Tracker
	holder  *snapshot.Holder
	builder *snapshot.Builder
	orch    *artifactbuild.Orchestrator

	syncMu sync.Mutex
	// base is the current snapshot's project before artifacts were attached.
	baseMu sync.Mutex
	base   *project.Project
}

// Open prepares a session and restores the last sync, if any.
func Open(ctx context.Context, opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}

	if opts.Query == nil || opts.Build == nil {
		r := runner.New(root,
			runner.WithBinary(cfg.Bazel.Binary),
			runner.WithQueryFlags(cfg.Bazel.QueryFlags...),
			runner.WithBuildFlags(cfg.Bazel.BuildFlags...),
			runner.WithOutputGroups(cfg.Bazel.OutputGroups...))
		if opts.Query == nil {
			opts.Query = r
		}
		if opts.Build == nil {
			opts.Build = r
		}
	}

	s := &Session{
		root:     root,
		cfg:      cfg,
		stateDir: filepath.Join(root, cfg.Artifacts.Dir),
		query:    opts.Query,
		holder:   snapshot.NewHolder(),
	}
	store, err := artifact.OpenStore(cfg.Artifacts.Store, s.stateDir)
	if err != nil {
		return nil, err
	}
	s.tracker = artifact.Open(store)
	if s.reader, err = pkgreader.New(cfg.Packages.Reader); err != nil {
		_ = s.tracker.Close()
		return nil, err
	}
	graphOpts := graph.Options{
		HandledKinds:   graph.HandledKinds(cfg.GetEnabledLanguages()),
		CCEnabled:      cfg.CCEnabled(),
		RequireAcyclic: cfg.RequireAcyclic(),
	}
	s.builder = snapshot.NewBuilder(root, s.reader, graphOpts, cfg.Packages.Parallelism)
	s.orch = artifactbuild.New(root, s.holder, opts.Build, s.tracker)

	s.restore(ctx)
	return s, nil
}

// restore rebuilds the snapshot from the last saved sync data. A failure
// leaves the session unsynced.
func (s *Session) restore(ctx context.Context) {
	logger := log.Component("session")
	data, err := snapshot.LoadSyncData(s.stateDir)
	if errors.Is(err, snapshot.ErrNoSyncData) {
		return
	}
	if err == nil {
		_, err = s.install(ctx, data)
	}
	if err != nil {
		logger.Warnw("could not restore last sync", "error", err)
	}
}

// Root returns the absolute workspace root.
func (s *Session) Root() string { return s.root }

// Config returns the effective configuration.
func (s *Session) Config() *config.Config { return s.cfg }

// Holder exposes the snapshot holder for subscriptions.
func (s *Session) Holder() *snapshot.Holder { return s.holder }

// ProjectViewPath returns the absolute project view path.
func (s *Session) ProjectViewPath() string {
	return filepath.Join(s.root, s.cfg.Sync.ProjectView)
}

// Definition reads the project definition from the project view. Without
// a project view the whole workspace is included.
func (s *Session) Definition() (project.Definition, error) {
	v, err := projectview.Load(s.ProjectViewPath())
	if errors.Is(err, os.ErrNotExist) {
		return project.NewDefinition([]string{"."}, nil), nil
	}
	if err != nil {
		return project.Definition{}, err
	}
	return v.ToDefinition(), nil
}

// Sync queries the workspace, builds a new snapshot and installs it. The
// installed snapshot is untouched if any step fails.
func (s *Session) Sync(ctx context.Context, sink progress.Sink) (*snapshot.Snapshot, error) {
	if sink == nil {
		sink = progress.Discard
	}
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	start := time.Now()

	def, err := s.Definition()
	if err != nil {
		progress.Errorf(sink, "Reading project view: %v", err)
		return nil, err
	}
	progress.Infof(sink, "Querying %s", query.Expression(def.Include, def.Exclude))

	var summary *query.Summary
	if s.cfg.Offline() {
		summary, err = query.LoadBuildFiles(ctx, s.root, def.Include, def.Exclude)
	} else {
		summary, err = s.query.Query(ctx, def.Include, def.Exclude)
	}
	if err != nil {
		progress.Errorf(sink, "Query failed: %v", err)
		return nil, err
	}

	data := snapshot.PostQuerySyncData{
		Definition: def,
		Summary:    summary,
		VCSState:   readVCSState(s.root),
		SyncTime:   time.Now(),
	}
	snap, err := s.install(ctx, data)
	if err != nil {
		progress.Errorf(sink, "Sync failed: %v", err)
		return nil, err
	}
	if err := snapshot.SaveSyncData(s.stateDir, data); err != nil {
		progress.Warnf(sink, "Could not save sync state: %v", err)
	}

	g := snap.Graph()
	diag := g.Diagnostics()
	if len(diag.ConflictingOwners) > 0 {
		progress.Warnf(sink, "%d files are claimed by more than one target", len(diag.ConflictingOwners))
	}
	if len(diag.Cycles) > 0 {
		progress.Warnf(sink, "%d dependency cycles found", len(diag.Cycles))
	}
	progress.Infof(sink, "Synced %d targets in %s", g.Len(), time.Since(start).Round(time.Millisecond))
	return snap, nil
}

// install creates a snapshot from data with current artifacts attached and
// returns the snapshot it installed.
func (s *Session) install(ctx context.Context, data snapshot.PostQuerySyncData) (*snapshot.Snapshot, error) {
	base, err := s.builder.Create(ctx, data, nil)
	if err != nil {
		return nil, err
	}
	s.baseMu.Lock()
	defer s.baseMu.Unlock()
	p, err := artifact.ProjectTransform(s.tracker.State())(base.Project())
	if err != nil {
		return nil, err
	}
	snap := snapshot.New(data, base.Graph(), p)
	if err := s.holder.Install(snap); err != nil {
		return nil, err
	}
	s.base = base.Project()
	return snap, nil
}

// refreshArtifacts reattaches artifacts to the current snapshot's project.
func (s *Session) refreshArtifacts() {
	s.baseMu.Lock()
	defer s.baseMu.Unlock()
	snap, ok := s.holder.Current()
	if !ok || s.base == nil {
		return
	}
	p, err := artifact.ProjectTransform(s.tracker.State())(s.base)
	if err != nil {
		log.Component("session").Warnw("refresh project artifacts", "error", err)
		return
	}
	_ = s.holder.Install(snapshot.New(snap.Data(), snap.Graph(), p))
}

// BuildFiles builds the targets owning paths and refreshes the project
// with the artifacts produced.
func (s *Session) BuildFiles(ctx context.Context, sink progress.Sink, paths []string) (*artifactbuild.Outcome, error) {
	if sink == nil {
		sink = progress.Discard
	}
	out, err := s.orch.BuildArtifactsForFiles(ctx, sink, paths)
	if out != nil && !out.Update.Empty() {
		s.refreshArtifacts()
	}
	return out, err
}

// Snapshot returns the current snapshot.
func (s *Session) Snapshot() (*snapshot.Snapshot, error) {
	snap, ok := s.holder.Current()
	if !ok {
		return nil, artifactbuild.ErrNoSnapshot
	}
	return snap, nil
}

// Owner returns the target owning a workspace-relative path.
func (s *Session) Owner(path string) (label.Label, bool, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return label.NoLabel, false, err
	}
	l, ok := snap.TargetOwner(filepath.ToSlash(path))
	return l, ok, nil
}

// Project returns the current project.
func (s *Session) Project() (*project.Project, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Project(), nil
}

// Artifacts returns every cached artifact.
func (s *Session) Artifacts() []artifact.Entry { return s.tracker.Entries() }

// ClearArtifacts empties the artifact cache.
func (s *Session) ClearArtifacts() error {
	if err := s.tracker.Clear(); err != nil {
		return err
	}
	s.refreshArtifacts()
	return nil
}

// AddDirectory includes dir in the project view. It reports whether the
// view changed; a changed view needs a new sync.
func (s *Session) AddDirectory(dir string) (bool, error) {
	path := s.ProjectViewPath()
	v, err := projectview.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		v, err = projectview.New(), nil
	}
	if err != nil {
		return false, err
	}
	if !v.AddDirectory(dir) {
		return false, nil
	}
	if err := v.Write(path); err != nil {
		return false, err
	}
	return true, nil
}

// Candidates queries the top-level directory holding path and returns the
// directories, nearest first, that could be added to bring path into the
// project.
func (s *Session) Candidates(ctx context.Context, path string) ([]query.Candidate, error) {
	path = filepath.ToSlash(filepath.Clean(path))
	top, _, _ := strings.Cut(path, "/")
	var (
		summary *query.Summary
		err     error
	)
	if s.cfg.Offline() {
		summary, err = query.LoadBuildFiles(ctx, s.root, []string{top}, nil)
	} else {
		summary, err = s.query.Query(ctx, []string{top}, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", top, err)
	}
	return query.Candidates(summary, path), nil
}

// Close ends the session. The snapshot is dropped and stores are closed.
func (s *Session) Close() error {
	s.holder.Close()
	return errors.Join(s.reader.Close(), s.tracker.Close())
}

// ParseLabel parses a label given on the command line, relative to the
// workspace root.
func ParseLabel(s string) (label.Label, error) {
	l, err := label.Parse(s)
	if err != nil {
		return label.NoLabel, fmt.Errorf("invalid label %q: %w", s, err)
	}
	if l.Relative {
		l = l.Abs("", "")
	}
	return l, nil
}
