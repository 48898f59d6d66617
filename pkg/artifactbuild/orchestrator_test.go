package artifactbuild

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/bazelbuild/bazel-gazelle/label"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/qsync/pkg/artifact"
	"github.com/albertocavalcante/qsync/pkg/graph"
	"github.com/albertocavalcante/qsync/pkg/progress"
	"github.com/albertocavalcante/qsync/pkg/project"
	"github.com/albertocavalcante/qsync/pkg/snapshot"
)

var (
	pkgA = label.New("", "pkg", "a")
	pkgB = label.New("", "pkg", "b")
)

type fakeBuild struct {
	calls  [][]label.Label
	output func(targets []label.Label) (*BuildOutput, error)
}

func (f *fakeBuild) Build(ctx context.Context, targets []label.Label) (*BuildOutput, error) {
	f.calls = append(f.calls, targets)
	return f.output(targets)
}

func producing(digest string) func([]label.Label) (*BuildOutput, error) {
	return func(targets []label.Label) (*BuildOutput, error) {
		out := &BuildOutput{}
		for _, t := range targets {
			out.Artifacts = append(out.Artifacts, artifact.Artifact{
				Target: t,
				Role:   artifact.RoleClassJar,
				Name:   t.Pkg + "/lib" + t.Name + ".jar",
				Path:   "/out/" + t.Name + ".jar",
				Digest: digest,
			})
		}
		return out, nil
	}
}

func holder(t *testing.T) *snapshot.Holder {
	t.Helper()
	b := graph.NewBuilder()
	require.NoError(t, b.Add(&graph.Target{Label: pkgA, RuleClass: "java_library", Kind: graph.KindJava, Sources: []string{"pkg/a.java"}}))
	require.NoError(t, b.Add(&graph.Target{
		Label:     pkgB,
		RuleClass: "java_library",
		Kind:      graph.KindJava,
		Sources:   []string{"pkg/b.java"},
		Deps:      []label.Label{pkgA},
	}))
	g, err := b.Build()
	require.NoError(t, err)
	h := snapshot.NewHolder()
	require.NoError(t, h.Install(snapshot.New(snapshot.PostQuerySyncData{}, g, &project.Project{})))
	return h
}

func setup(t *testing.T, fb *fakeBuild) (*Orchestrator, *artifact.Tracker) {
	t.Helper()
	tr := artifact.Open(artifact.NewJSONStore(t.TempDir()))
	return New("/ws", holder(t), fb, tr), tr
}

func TestBuildArtifactsForFiles(t *testing.T) {
	fb := &fakeBuild{output: producing("d1")}
	o, tr := setup(t, fb)
	var sink progress.Recorder

	out, err := o.BuildArtifactsForFiles(context.Background(), &sink, []string{"pkg/b.java", "/ws/pkg/a.java", "pkg/./a.java"})
	require.NoError(t, err)
	assert.Equal(t, [][]label.Label{{pkgA, pkgB}}, fb.calls)
	assert.Equal(t, []label.Label{pkgA, pkgB}, out.Targets)
	assert.Equal(t, 2, out.Stats.Updated)
	assert.Equal(t, 3, out.Stats.RequestedFiles)
	assert.Len(t, tr.Entries(), 2)

	msgs := sink.Messages()
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[len(msgs)-1].Text, "updated 2 artifacts, removed 0 artifacts")
	assert.False(t, sink.HasError())

	out, err = o.BuildArtifactsForFiles(context.Background(), &sink, []string{"pkg/a.java"})
	require.NoError(t, err)
	assert.True(t, out.Update.Empty())
}

func TestBuildArtifactsForFiles_UnresolvedBeforeBuild(t *testing.T) {
	fb := &fakeBuild{output: producing("d1")}
	o, tr := setup(t, fb)
	var sink progress.Recorder

	_, err := o.BuildArtifactsForFiles(context.Background(), &sink, []string{"pkg/a.java", "pkg/new.java", "other/x.java"})
	var unresolved *UnresolvedFileError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, []string{"other/x.java", "pkg/new.java"}, unresolved.Paths)
	assert.Contains(t, err.Error(), "re-sync")
	assert.Empty(t, fb.calls, "no build may run")
	assert.Zero(t, tr.State().Len())
	assert.True(t, sink.HasError())
}

func TestBuildArtifactsForFiles_PathValidation(t *testing.T) {
	o, _ := setup(t, &fakeBuild{output: producing("d1")})
	for _, p := range []string{"/elsewhere/a.java", "../a.java", "."} {
		_, err := o.BuildArtifactsForFiles(context.Background(), progress.Discard, []string{p})
		assert.Error(t, err, p)
	}

	noRoot := New("", holder(t), &fakeBuild{output: producing("d1")}, artifact.Open(artifact.NewJSONStore(t.TempDir())))
	_, err := noRoot.BuildArtifactsForFiles(context.Background(), progress.Discard, []string{filepath.Join("/ws", "pkg", "a.java")})
	assert.ErrorContains(t, err, "not workspace-relative")
}

func TestBuildArtifactsForFiles_NoSnapshot(t *testing.T) {
	tr := artifact.Open(artifact.NewJSONStore(t.TempDir()))
	o := New("", snapshot.NewHolder(), &fakeBuild{output: producing("d1")}, tr)
	_, err := o.BuildArtifactsForFiles(context.Background(), progress.Discard, []string{"pkg/a.java"})
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestBuildArtifactsForFiles_BuildFailureIsWarning(t *testing.T) {
	fb := &fakeBuild{output: func(targets []label.Label) (*BuildOutput, error) {
		out, _ := producing("d1")(targets[:1])
		out.ExitCode = 1
		return out, nil
	}}
	o, tr := setup(t, fb)
	var sink progress.Recorder

	out, err := o.BuildArtifactsForFiles(context.Background(), &sink, []string{"pkg/a.java", "pkg/b.java"})
	var failure *BuildFailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 1, failure.ExitCode)
	require.NotNil(t, out, "partial results are returned")
	assert.Equal(t, 1, out.Stats.Updated)
	assert.Len(t, tr.Entries(), 1)
	assert.True(t, sink.HasWarnings())
	assert.False(t, sink.HasError())
}

func TestBuildArtifactsForFiles_FailedTargetsKeepArtifacts(t *testing.T) {
	fb := &fakeBuild{output: producing("d1")}
	o, tr := setup(t, fb)
	files := []string{"pkg/a.java", "pkg/b.java"}
	_, err := o.BuildArtifactsForFiles(context.Background(), progress.Discard, files)
	require.NoError(t, err)
	require.Len(t, tr.Entries(), 2)

	// b fails to compile under --keep_going and produces nothing
	fb.output = func(targets []label.Label) (*BuildOutput, error) {
		out, _ := producing("d2")(targets[:1])
		out.ExitCode = 1
		out.Failed = []label.Label{pkgB}
		return out, nil
	}
	var sink progress.Recorder
	out, err := o.BuildArtifactsForFiles(context.Background(), &sink, files)
	var failure *BuildFailureError
	require.ErrorAs(t, err, &failure)
	require.NotNil(t, out)
	assert.Equal(t, 1, out.Stats.Updated)
	assert.Zero(t, out.Stats.Removed)
	assert.Len(t, tr.Entries(), 2)
	assert.Equal(t, []label.Label{pkgA, pkgB}, tr.Targets())
	assert.True(t, sink.HasWarnings())

	// every target failed: nothing usable, cache untouched
	before := tr.Entries()
	fb.output = func(targets []label.Label) (*BuildOutput, error) {
		return &BuildOutput{ExitCode: 1, Failed: targets}, nil
	}
	_, err = o.BuildArtifactsForFiles(context.Background(), progress.Discard, files)
	var noArts *artifact.NoArtifactsProducedError
	require.ErrorAs(t, err, &noArts)
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, before, tr.Entries())
}

func TestBuildArtifactsForFiles_NoArtifacts(t *testing.T) {
	fb := &fakeBuild{output: producing("d1")}
	o, tr := setup(t, fb)
	_, err := o.BuildArtifactsForFiles(context.Background(), progress.Discard, []string{"pkg/a.java"})
	require.NoError(t, err)
	before := tr.Entries()

	fb.output = func([]label.Label) (*BuildOutput, error) { return &BuildOutput{ExitCode: 1, BuildFileErrors: true}, nil }
	var sink progress.Recorder
	_, err = o.BuildArtifactsForFiles(context.Background(), &sink, []string{"pkg/a.java"})
	var noArts *artifact.NoArtifactsProducedError
	require.ErrorAs(t, err, &noArts)
	var failure *BuildFailureError
	require.ErrorAs(t, err, &failure)
	assert.True(t, failure.BuildFileErrors)
	assert.Equal(t, before, tr.Entries())
	assert.True(t, sink.HasError())
}

func TestBuildArtifactsForFiles_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fb := &fakeBuild{output: func(targets []label.Label) (*BuildOutput, error) {
		cancel()
		return producing("d1")(targets)
	}}
	o, tr := setup(t, fb)
	_, err := o.BuildArtifactsForFiles(ctx, progress.Discard, []string{"pkg/a.java"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, tr.State().Len())
}

func TestBuildArtifactsForFiles_BuildError(t *testing.T) {
	boom := errors.New("bazel not found")
	o, _ := setup(t, &fakeBuild{output: func([]label.Label) (*BuildOutput, error) { return nil, boom }})
	_, err := o.BuildArtifactsForFiles(context.Background(), progress.Discard, []string{"pkg/a.java"})
	assert.ErrorIs(t, err, boom)
}

func TestBuildArtifactsForFiles_Empty(t *testing.T) {
	fb := &fakeBuild{output: producing("d1")}
	o, _ := setup(t, fb)
	out, err := o.BuildArtifactsForFiles(context.Background(), progress.Discard, nil)
	require.NoError(t, err)
	assert.True(t, out.Update.Empty())
	assert.Empty(t, fb.calls)
}

func TestUnresolvedFileError_Message(t *testing.T) {
	one := &UnresolvedFileError{Paths: []string{"a.java"}}
	assert.Equal(t, "File a.java does not seem to be part of a build rule that the IDE supports. "+
		"If this is a newly added supported rule, please re-sync your project.", one.Error())
	many := &UnresolvedFileError{Paths: []string{"a.java", "b.java"}}
	assert.Contains(t, many.Error(), "a.java, b.java")
}
