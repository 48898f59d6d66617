package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bazelbuild/bazel-gazelle/label"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/qsync/pkg/artifact"
	"github.com/albertocavalcante/qsync/pkg/artifactbuild"
	"github.com/albertocavalcante/qsync/pkg/config"
	"github.com/albertocavalcante/qsync/pkg/progress"
	"github.com/albertocavalcante/qsync/pkg/query"
	"github.com/albertocavalcante/qsync/pkg/snapshot"
)

var (
	libA = label.New("", "java/com/example/a", "a")
	libB = label.New("", "java/com/example/b", "b")
)

type fakeQuery struct {
	calls   int
	include []string
	err     error
}

func (f *fakeQuery) Query(ctx context.Context, include, exclude []string) (*query.Summary, error) {
	f.calls++
	f.include = include
	if f.err != nil {
		return nil, f.err
	}
	s := query.NewSummary()
	s.AddRule(query.Rule{Label: "//java/com/example/a:a", Kind: "java_library", Sources: []string{"//java/com/example/a:A.java"}})
	s.AddRule(query.Rule{
		Label:   "//java/com/example/b:b",
		Kind:    "java_library",
		Sources: []string{"//java/com/example/b:B.java"},
		Deps:    []string{"//java/com/example/a:a", "@maven//:guava"},
	})
	return s, nil
}

type fakeBuild struct {
	targets [][]label.Label
}

func (f *fakeBuild) Build(ctx context.Context, targets []label.Label) (*artifactbuild.BuildOutput, error) {
	f.targets = append(f.targets, targets)
	out := &artifactbuild.BuildOutput{}
	for _, t := range targets {
		out.Artifacts = append(out.Artifacts, artifact.Artifact{
			Target: t,
			Role:   artifact.RoleClassJar,
			Name:   t.Pkg + "/lib" + t.Name + ".jar",
			Path:   "/out/" + t.Name + ".jar",
			Digest: "d-" + t.Name,
		})
	}
	return out, nil
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func workspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "WORKSPACE", "")
	writeFile(t, root, "java/com/example/a/A.java", "package com.example.a;\nclass A {}\n")
	writeFile(t, root, "java/com/example/b/B.java", "package com.example.b;\nclass B {}\n")
	return root
}

func open(t *testing.T, root string, q *fakeQuery, b *fakeBuild) *Session {
	t.Helper()
	s, err := Open(context.Background(), Options{Root: root, Config: config.NewConfig(), Query: q, Build: b})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession_NoSnapshot(t *testing.T) {
	s := open(t, workspace(t), &fakeQuery{}, &fakeBuild{})

	_, err := s.Project()
	assert.ErrorIs(t, err, artifactbuild.ErrNoSnapshot)
	_, _, err = s.Owner("java/com/example/a/A.java")
	assert.ErrorIs(t, err, artifactbuild.ErrNoSnapshot)
}

func TestSession_Sync(t *testing.T) {
	root := workspace(t)
	q := &fakeQuery{}
	s := open(t, root, q, &fakeBuild{})
	var rec progress.Recorder

	snap, err := s.Sync(context.Background(), &rec)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.False(t, rec.HasError())
	assert.Equal(t, []string{""}, q.include)

	owner, ok, err := s.Owner("java/com/example/b/B.java")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, libB, owner)

	p, err := s.Project()
	require.NoError(t, err)
	_, ok = p.Library("@maven//:guava")
	assert.True(t, ok)
	assert.Contains(t, p.Languages, "java")

	_, err = os.Stat(filepath.Join(root, ".qsync", "syncdata.json"))
	assert.NoError(t, err)
}

func TestSession_SyncUsesProjectView(t *testing.T) {
	root := workspace(t)
	writeFile(t, root, ".bazelproject", "directories:\n  java/com/example/a\n")
	q := &fakeQuery{}
	s := open(t, root, q, &fakeBuild{})

	_, err := s.Sync(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"java/com/example/a"}, q.include)

	p, err := s.Project()
	require.NoError(t, err)
	require.Len(t, p.ContentRoots, 1)
	assert.Equal(t, "java/com/example/a", p.ContentRoots[0].Path)
}

func TestSession_SyncRacingClose(t *testing.T) {
	s := open(t, workspace(t), &fakeQuery{}, &fakeBuild{})
	// the holder is torn down right after the new snapshot is installed
	s.Holder().Subscribe(func(*snapshot.Snapshot) { s.Holder().Close() })

	var snap *snapshot.Snapshot
	var err error
	require.NotPanics(t, func() { snap, err = s.Sync(context.Background(), nil) })
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Positive(t, snap.Graph().Len())

	_, err = s.Sync(context.Background(), nil)
	assert.ErrorIs(t, err, snapshot.ErrHolderClosed)
}

func TestSession_SyncFailureKeepsSnapshot(t *testing.T) {
	q := &fakeQuery{}
	s := open(t, workspace(t), q, &fakeBuild{})
	first, err := s.Sync(context.Background(), nil)
	require.NoError(t, err)

	q.err = errors.New("query exploded")
	var rec progress.Recorder
	_, err = s.Sync(context.Background(), &rec)
	require.Error(t, err)
	assert.True(t, rec.HasError())

	current, err := s.Snapshot()
	require.NoError(t, err)
	assert.Same(t, first, current)
}

func TestSession_RestoresLastSync(t *testing.T) {
	root := workspace(t)
	q := &fakeQuery{}
	s := open(t, root, q, &fakeBuild{})
	_, err := s.Sync(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	again := open(t, root, &fakeQuery{}, &fakeBuild{})
	owner, ok, err := again.Owner("java/com/example/a/A.java")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, libA, owner)
}

func TestSession_BuildFiles(t *testing.T) {
	b := &fakeBuild{}
	s := open(t, workspace(t), &fakeQuery{}, b)
	_, err := s.Sync(context.Background(), nil)
	require.NoError(t, err)

	out, err := s.BuildFiles(context.Background(), nil, []string{"java/com/example/a/A.java"})
	require.NoError(t, err)
	assert.Equal(t, []label.Label{libA}, out.Targets)
	require.Len(t, b.targets, 1)

	entries := s.Artifacts()
	require.Len(t, entries, 1)
	assert.Equal(t, libA, entries[0].Key.Target)

	require.NoError(t, s.ClearArtifacts())
	assert.Empty(t, s.Artifacts())
}

func TestSession_BuildFilesUnresolved(t *testing.T) {
	b := &fakeBuild{}
	s := open(t, workspace(t), &fakeQuery{}, b)
	_, err := s.Sync(context.Background(), nil)
	require.NoError(t, err)

	_, err = s.BuildFiles(context.Background(), nil, []string{"README.md"})
	var unresolved *artifactbuild.UnresolvedFileError
	require.ErrorAs(t, err, &unresolved)
	assert.Empty(t, b.targets)
}

func TestSession_AddDirectory(t *testing.T) {
	root := workspace(t)
	s := open(t, root, &fakeQuery{}, &fakeBuild{})

	changed, err := s.AddDirectory("java")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.AddDirectory("java")
	require.NoError(t, err)
	assert.False(t, changed)

	def, err := s.Definition()
	require.NoError(t, err)
	assert.Equal(t, []string{"java"}, def.Include)
}

func TestSession_InvalidConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Artifacts.Store = "redis"
	_, err := Open(context.Background(), Options{Root: t.TempDir(), Config: cfg, Query: &fakeQuery{}, Build: &fakeBuild{}})
	assert.Error(t, err)
}

func TestReadVCSState(t *testing.T) {
	root := t.TempDir()
	assert.Nil(t, readVCSState(root))

	writeFile(t, root, ".git/HEAD", "ref: refs/heads/main\n")
	writeFile(t, root, ".git/refs/heads/main", "0123abcd\n")
	st := readVCSState(root)
	require.NotNil(t, st)
	assert.Equal(t, "0123abcd", st.UpstreamRevision)

	writeFile(t, root, ".git/HEAD", "feedbeef\n")
	assert.Equal(t, "feedbeef", readVCSState(root).UpstreamRevision)
}

func TestParseLabel(t *testing.T) {
	l, err := ParseLabel("//java/com/example/a")
	require.NoError(t, err)
	assert.Equal(t, libA, l)

	_, err = ParseLabel("@bad repo//x:y")
	assert.Error(t, err)
}
