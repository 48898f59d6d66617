// Package snapshot bundles a build graph with the project derived from it
// and holds the current bundle for concurrent readers.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/bazelbuild/bazel-gazelle/label"

	"github.com/albertocavalcante/qsync/internal/log"
	"github.com/albertocavalcante/qsync/pkg/graph"
	"github.com/albertocavalcante/qsync/pkg/pkgreader"
	"github.com/albertocavalcante/qsync/pkg/project"
	"github.com/albertocavalcante/qsync/pkg/query"
)

// FileChange is one uncommitted change in the working set.
type FileChange struct {
	Path string `json:"path"`
	// Op is "add", "modify" or "delete".
	Op string `json:"op"`
}

// VCSState describes the workspace revision a sync ran against.
type VCSState struct {
	WorkspaceID      string       `json:"workspace_id,omitempty"`
	UpstreamRevision string       `json:"upstream_revision,omitempty"`
	WorkingSet       []FileChange `json:"working_set,omitempty"`
	// WorkspaceSnapshotPath, when set, is read instead of the workspace
	// root so sources match the revision the query saw.
	WorkspaceSnapshotPath string `json:"workspace_snapshot_path,omitempty"`
}

// PostQuerySyncData is everything a sync learned before conversion.
type PostQuerySyncData struct {
	Definition project.Definition `json:"definition"`
	Summary    *query.Summary     `json:"summary"`
	VCSState   *VCSState          `json:"vcs_state,omitempty"`
	SyncTime   time.Time          `json:"sync_time"`
}

// Snapshot is an immutable graph and project pair. Readers holding an old
// snapshot keep a consistent view after a newer one is installed.
type Snapshot struct {
	data    PostQuerySyncData
	graph   *graph.Data
	project *project.Project
}

// New assembles a snapshot from already computed parts.
func New(data PostQuerySyncData, g *graph.Data, p *project.Project) *Snapshot {
	return &Snapshot{data: data, graph: g, project: p}
}

func (s *Snapshot) Data() PostQuerySyncData   { return s.data }
func (s *Snapshot) Graph() *graph.Data        { return s.graph }
func (s *Snapshot) Project() *project.Project { return s.project }

// TargetOwner returns the target owning a workspace-relative path.
func (s *Snapshot) TargetOwner(path string) (label.Label, bool) {
	return s.graph.TargetOwner(path)
}

// Builder creates snapshots. It holds no per-sync state and may be reused.
type Builder struct {
	root        string
	reader      pkgreader.Reader
	opts        graph.Options
	parallelism int
}

// NewBuilder creates a builder reading sources under root with r.
func NewBuilder(root string, r pkgreader.Reader, opts graph.Options, parallelism int) *Builder {
	return &Builder{root: root, reader: r, opts: opts, parallelism: parallelism}
}

// Create parses the query summary, converts it into a project and applies
// transform. Nothing is installed anywhere; on error no snapshot exists.
func (b *Builder) Create(ctx context.Context, data PostQuerySyncData, transform project.Transform) (*Snapshot, error) {
	start := time.Now()
	if data.Summary == nil {
		return nil, fmt.Errorf("create snapshot: no query summary")
	}
	g, err := graph.Parse(ctx, data.Summary, b.opts)
	if err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}

	var snapshotPath string
	if data.VCSState != nil {
		snapshotPath = data.VCSState.WorkspaceSnapshotPath
	}
	reader := pkgreader.NewWorkspaceResolving(b.root, snapshotPath, b.reader)
	conv := project.NewConverter(reader, data.Definition, project.WithParallelism(b.parallelism))
	p, err := conv.CreateProject(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	if transform != nil {
		if p, err = transform(p); err != nil {
			return nil, fmt.Errorf("transform project: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Component("snapshot").Infow("snapshot created",
		"targets", g.Len(),
		"content_roots", len(p.ContentRoots),
		"libraries", len(p.Libraries),
		"duration", time.Since(start))
	return New(data, g, p), nil
}
