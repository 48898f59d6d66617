package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bazelbuild/bazel-gazelle/label"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/qsync/pkg/graph"
	"github.com/albertocavalcante/qsync/pkg/pkgreader"
	"github.com/albertocavalcante/qsync/pkg/project"
	"github.com/albertocavalcante/qsync/pkg/query"
)

func writeWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"java/com/example/a/A.java": "package com.example.a;\nclass A {}\n",
		"java/com/example/b/B.java": "package com.example.b;\nclass B {}\n",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func syncData() PostQuerySyncData {
	s := query.NewSummary()
	s.AddRule(query.Rule{Label: "//java/com/example/a:a", Kind: "java_library", Sources: []string{"//java/com/example/a:A.java"}})
	s.AddRule(query.Rule{
		Label:   "//java/com/example/b:b",
		Kind:    "java_library",
		Sources: []string{"//java/com/example/b:B.java"},
		Deps:    []string{"//java/com/example/a:a", "@maven//:guava"},
	})
	return PostQuerySyncData{
		Definition: project.NewDefinition([]string{"java"}, nil),
		Summary:    s,
		VCSState:   &VCSState{UpstreamRevision: "abc123"},
		SyncTime:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newBuilder(root string) *Builder {
	opts := graph.Options{HandledKinds: graph.HandledKinds([]string{"java"})}
	return NewBuilder(root, pkgreader.NewHeuristic(), opts, 4)
}

func TestBuilder_Create(t *testing.T) {
	root := writeWorkspace(t)
	snap, err := newBuilder(root).Create(context.Background(), syncData(), nil)
	require.NoError(t, err)

	owner, ok := snap.TargetOwner("java/com/example/a/A.java")
	require.True(t, ok)
	assert.Equal(t, "//java/com/example/a", owner.String())
	assert.Equal(t, 2, snap.Graph().Len())

	p := snap.Project()
	require.Len(t, p.ContentRoots, 1)
	assert.Equal(t, []project.SourceFolder{{Path: "java"}}, p.ContentRoots[0].SourceFolders)
	require.Len(t, p.Libraries, 1)
	assert.Equal(t, "@maven//:guava", p.Libraries[0].Name)
	assert.Equal(t, "abc123", snap.Data().VCSState.UpstreamRevision)
}

func TestBuilder_CreateAppliesTransform(t *testing.T) {
	root := writeWorkspace(t)
	tf := func(p *project.Project) (*project.Project, error) {
		out := p.Clone()
		out.Libraries[0].ClassJars = []string{"guava.jar"}
		return out, nil
	}
	snap, err := newBuilder(root).Create(context.Background(), syncData(), tf)
	require.NoError(t, err)
	assert.Equal(t, []string{"guava.jar"}, snap.Project().Libraries[0].ClassJars)

	boom := errors.New("boom")
	_, err = newBuilder(root).Create(context.Background(), syncData(),
		func(*project.Project) (*project.Project, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestBuilder_CreateUsesVCSSnapshotPath(t *testing.T) {
	snapshotRoot := t.TempDir()
	p := filepath.Join(snapshotRoot, "java", "com", "example", "a", "A.java")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("package other.pkg;\n"), 0o644))

	data := syncData()
	data.VCSState.WorkspaceSnapshotPath = snapshotRoot
	snap, err := newBuilder(writeWorkspace(t)).Create(context.Background(), data, nil)
	require.NoError(t, err)
	folders := snap.Project().ContentRoots[0].SourceFolders
	assert.Contains(t, folders, project.SourceFolder{Path: "java/com/example/a", PackagePrefix: "other.pkg"})
}

func TestBuilder_CreateFailsOnBadGraph(t *testing.T) {
	data := syncData()
	data.Summary.AddRule(query.Rule{Label: "//java/com/example/a:a", Kind: "java_library"})
	_, err := newBuilder(t.TempDir()).Create(context.Background(), data, nil)
	var gerr *graph.GraphConstructionError
	assert.ErrorAs(t, err, &gerr)

	_, err = newBuilder(t.TempDir()).Create(context.Background(), PostQuerySyncData{}, nil)
	assert.Error(t, err)
}

func TestBuilder_CreateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newBuilder(writeWorkspace(t)).Create(ctx, syncData(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHolder(t *testing.T) {
	h := NewHolder()
	_, ok := h.Current()
	assert.False(t, ok)

	var seen []*Snapshot
	unsubscribe := h.Subscribe(func(s *Snapshot) { seen = append(seen, s) })

	s1 := New(PostQuerySyncData{}, nil, &project.Project{})
	s2 := New(PostQuerySyncData{}, nil, &project.Project{})
	require.NoError(t, h.Install(s1))
	cur, ok := h.Current()
	require.True(t, ok)
	assert.Same(t, s1, cur)

	unsubscribe()
	require.NoError(t, h.Install(s2))
	assert.Equal(t, []*Snapshot{s1}, seen)

	assert.Error(t, h.Install(nil))

	h.Close()
	_, ok = h.Current()
	assert.False(t, ok)
	assert.ErrorIs(t, h.Install(s1), ErrHolderClosed)
}

func TestHolder_OldReadersKeepTheirView(t *testing.T) {
	h := NewHolder()
	old := New(PostQuerySyncData{}, nil, &project.Project{Languages: []string{"java"}})
	require.NoError(t, h.Install(old))
	held, _ := h.Current()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Install(New(PostQuerySyncData{}, nil, &project.Project{}))
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"java"}, held.Project().Languages)
}

func TestSyncData_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadSyncData(dir)
	assert.ErrorIs(t, err, ErrNoSyncData)

	data := syncData()
	require.NoError(t, SaveSyncData(dir, data))
	back, err := LoadSyncData(dir)
	require.NoError(t, err)
	assert.Equal(t, data.Definition, back.Definition)
	assert.Equal(t, data.Summary.Rules, back.Summary.Rules)
	assert.True(t, data.SyncTime.Equal(back.SyncTime))

	snap, err := newBuilder(writeWorkspace(t)).Create(context.Background(), back, nil)
	require.NoError(t, err)
	_, ok := snap.TargetOwner("java/com/example/b/B.java")
	assert.True(t, ok)
	_, ok = snap.TargetOwner("java/com/example/c/C.java")
	assert.False(t, ok)
	assert.Equal(t, []label.Label{label.New("", "java/com/example/b", "b")},
		snap.Graph().ReverseDeps(label.New("", "java/com/example/a", "a")))
}
