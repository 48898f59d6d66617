// Package artifactbuild builds the targets owning a set of files and feeds
// what the build produced into the artifact tracker.
package artifactbuild

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bazelbuild/bazel-gazelle/label"

	"github.com/albertocavalcante/qsync/internal/log"
	"github.com/albertocavalcante/qsync/pkg/artifact"
	"github.com/albertocavalcante/qsync/pkg/progress"
	"github.com/albertocavalcante/qsync/pkg/snapshot"
	"github.com/albertocavalcante/qsync/pkg/util"
)

// BuildOutput is what the external build system reports.
type BuildOutput struct {
	ExitCode  int
	Artifacts []artifact.Artifact
	// BuildFileErrors is set when loading BUILD files failed, as opposed
	// to a failed compile or test.
	BuildFileErrors bool
	// Failed lists requested targets the build reported as failed. Their
	// cached artifacts are kept rather than replaced by nothing.
	Failed []label.Label
}

// BuildSystem builds targets. Implementations must stop and return when
// ctx is done.
type BuildSystem interface {
	Build(ctx context.Context, targets []label.Label) (*BuildOutput, error)
}

// SnapshotSource provides the current snapshot.
type SnapshotSource interface {
	Current() (*snapshot.Snapshot, bool)
}

// ArtifactUpdater is the mutation side of the artifact tracker.
type ArtifactUpdater interface {
	Update(ctx context.Context, requested []label.Label, produced []artifact.Artifact) (*artifact.UpdateResult, error)
}

// Stats describes one build.
type Stats struct {
	RequestedFiles int           `json:"requested_files"`
	Targets        int           `json:"targets"`
	Artifacts      int           `json:"artifacts"`
	BuildDuration  time.Duration `json:"build_duration"`
	UpdateDuration time.Duration `json:"update_duration"`
	Updated        int           `json:"updated"`
	Removed        int           `json:"removed"`
}

// Outcome is the result of BuildArtifactsForFiles.
type Outcome struct {
	Targets  []label.Label          `json:"-"`
	ExitCode int                    `json:"exit_code"`
	Update   *artifact.UpdateResult `json:"-"`
	Stats    Stats                  `json:"stats"`
}

// Orchestrator turns file paths into a build and a tracker update.
// It keeps no per-call state and is safe for concurrent use.
type Orchestrator struct {
	snapshots SnapshotSource
	build     BuildSystem
	tracker   ArtifactUpdater
	root      string
}

// New creates an orchestrator. root is the workspace root; absolute
// paths under it are accepted and made relative.
func New(root string, snapshots SnapshotSource, build BuildSystem, tracker ArtifactUpdater) *Orchestrator {
	return &Orchestrator{snapshots: snapshots, build: build, tracker: tracker, root: root}
}

// BuildArtifactsForFiles builds the targets owning paths and updates the
// artifact cache with their outputs.
//
// Every path must be owned by a target of the current snapshot, otherwise
// *UnresolvedFileError is returned before anything is built. A build
// that exits unsuccessfully still updates the cache with what it produced
// and is reported as *BuildFailureError alongside the outcome; targets the
// build reports as failed keep their cached artifacts. A build that
// produced nothing fails with *artifact.NoArtifactsProducedError.
// When ctx is done the cache is left untouched.
func (o *Orchestrator) BuildArtifactsForFiles(ctx context.Context, sink progress.Sink, paths []string) (*Outcome, error) {
	logger := log.Component("build")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel, err := o.relativize(paths)
	if err != nil {
		return nil, err
	}
	snap, ok := o.snapshots.Current()
	if !ok {
		return nil, ErrNoSnapshot
	}

	targets, unresolved := resolveOwners(snap, rel)
	if len(unresolved) > 0 {
		err := &UnresolvedFileError{Paths: unresolved}
		progress.Errorf(sink, "%s", err)
		return nil, err
	}
	if len(targets) == 0 {
		return &Outcome{Update: &artifact.UpdateResult{}}, nil
	}

	stats := Stats{RequestedFiles: len(rel), Targets: len(targets)}
	progress.Infof(sink, "Building %d targets for %d files", len(targets), len(rel))
	logger.Debugw("building", "targets", labelStrings(targets))

	buildStart := time.Now()
	out, err := o.build.Build(ctx, targets)
	stats.BuildDuration = time.Since(buildStart)
	if ctxErr := ctx.Err(); ctxErr != nil {
		progress.Warnf(sink, "Build cancelled")
		return nil, ctxErr
	}
	if err != nil {
		progress.Errorf(sink, "Build failed to run: %v", err)
		return nil, fmt.Errorf("run build: %w", err)
	}
	stats.Artifacts = len(out.Artifacts)

	var buildErr error
	if out.ExitCode != 0 {
		buildErr = &BuildFailureError{ExitCode: out.ExitCode, Targets: targets, BuildFileErrors: out.BuildFileErrors}
		progress.Warnf(sink, "%s", buildErr)
	}

	update := succeeded(targets, out.Failed)
	if len(update) == 0 {
		err := &artifact.NoArtifactsProducedError{Targets: targets}
		progress.Errorf(sink, "%s", err)
		return nil, errors.Join(err, buildErr)
	}
	if kept := len(targets) - len(update); kept > 0 {
		progress.Warnf(sink, "Keeping previously built artifacts of %d failed targets", kept)
	}

	updateStart := time.Now()
	res, err := o.tracker.Update(ctx, update, out.Artifacts)
	stats.UpdateDuration = time.Since(updateStart)
	if err != nil {
		var noArts *artifact.NoArtifactsProducedError
		if errors.As(err, &noArts) {
			progress.Errorf(sink, "%s", err)
		}
		return nil, errors.Join(err, buildErr)
	}
	stats.Updated = len(res.Updated)
	stats.Removed = len(res.Removed)

	progress.Infof(sink, "Updated cache in %d ms: updated %d artifacts, removed %d artifacts",
		stats.UpdateDuration.Milliseconds(), stats.Updated, stats.Removed)
	logger.Infow("build finished",
		"targets", stats.Targets,
		"exit_code", out.ExitCode,
		"updated", stats.Updated,
		"removed", stats.Removed,
		"build_duration", stats.BuildDuration)

	return &Outcome{Targets: targets, ExitCode: out.ExitCode, Update: res, Stats: stats}, buildErr
}

// succeeded returns targets without those in failed, keeping order.
func succeeded(targets, failed []label.Label) []label.Label {
	if len(failed) == 0 {
		return targets
	}
	return slices.DeleteFunc(slices.Clone(targets), func(l label.Label) bool {
		return slices.Contains(failed, l)
	})
}

// relativize turns every path into a clean workspace-relative path.
func (o *Orchestrator) relativize(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if filepath.IsAbs(p) {
			if o.root == "" {
				return nil, fmt.Errorf("path %q is not workspace-relative", p)
			}
			r, err := filepath.Rel(o.root, p)
			if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
				return nil, fmt.Errorf("path %q is outside the workspace %s", p, o.root)
			}
			p = r
		}
		p = path.Clean(filepath.ToSlash(p))
		if p == "." || p == ".." || strings.HasPrefix(p, "../") {
			return nil, fmt.Errorf("path %q is not workspace-relative", p)
		}
		out = append(out, p)
	}
	return out, nil
}

// resolveOwners maps paths to their owning targets, deduplicated and sorted.
func resolveOwners(snap *snapshot.Snapshot, paths []string) ([]label.Label, []string) {
	seen := map[label.Label]bool{}
	var targets []label.Label
	var unresolved []string
	for _, p := range paths {
		owner, ok := snap.TargetOwner(p)
		if !ok {
			unresolved = append(unresolved, p)
			continue
		}
		if !seen[owner] {
			seen[owner] = true
			targets = append(targets, owner)
		}
	}
	slices.SortFunc(targets, util.CompareLabels)
	slices.Sort(unresolved)
	return targets, slices.Compact(unresolved)
}

func labelStrings(ls []label.Label) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.String()
	}
	return out
}
