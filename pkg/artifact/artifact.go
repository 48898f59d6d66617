// Package artifact tracks build outputs known to be good for each target.
//
// The cache maps (target, role, name) to the produced file and its content
// digest. The Tracker is the only way to change it; every change is
// persisted before readers can observe it.
package artifact

import (
	"cmp"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/bazelbuild/bazel-gazelle/label"

	"github.com/albertocavalcante/qsync/pkg/util"
)

// Role says what an artifact is used for.
type Role string

const (
	RoleClassJar  Role = "class_jar"
	RoleSourceJar Role = "source_jar"
	RoleGenSrcJar Role = "gensrc_jar"
	RoleRenderJar Role = "render_jar"
	RoleOther     Role = "other"
)

// RoleForFile guesses the role of an output from its name and the output
// group that reported it.
func RoleForFile(name, outputGroup string) Role {
	base := path.Base(name)
	switch {
	case strings.Contains(outputGroup, "render"):
		return RoleRenderJar
	case strings.HasSuffix(base, "-src.jar"), strings.HasSuffix(base, "-sources.jar"):
		return RoleSourceJar
	case strings.HasSuffix(base, ".srcjar"), strings.HasSuffix(base, "-gensrc.jar"):
		return RoleGenSrcJar
	case strings.HasSuffix(base, ".jar"):
		return RoleClassJar
	}
	return RoleOther
}

// Key identifies one artifact. Name is the output path relative to the
// output root, stable across builds of the same target.
type Key struct {
	Target label.Label
	Role   Role
	Name   string
}

func (k Key) String() string {
	return fmt.Sprintf("%s[%s]%s", k.Target, k.Role, k.Name)
}

func compareKeys(a, b Key) int {
	return cmp.Or(
		strings.Compare(a.Target.String(), b.Target.String()),
		strings.Compare(string(a.Role), string(b.Role)),
		strings.Compare(a.Name, b.Name),
	)
}

// Artifact is one output a build reported.
type Artifact struct {
	Target label.Label
	Role   Role
	Name   string
	// Path is where the file can be read locally.
	Path string
	// Digest is computed from Path when empty.
	Digest string
}

func (a Artifact) Key() Key { return Key{Target: a.Target, Role: a.Role, Name: a.Name} }

// Entry is one cached artifact.
type Entry struct {
	Key       Key
	Path      string
	Digest    string
	BuildTime time.Time
}

// UpdateResult lists the keys an update changed. Both lists are sorted.
type UpdateResult struct {
	Updated []Key
	Removed []Key
}

// Empty reports whether the update changed nothing.
func (r *UpdateResult) Empty() bool {
	return r == nil || len(r.Updated) == 0 && len(r.Removed) == 0
}

// UpdatedTargets returns the distinct targets with changed or removed
// artifacts, sorted.
func (r *UpdateResult) UpdatedTargets() []label.Label {
	if r == nil {
		return nil
	}
	seen := map[label.Label]bool{}
	for _, keys := range [][]Key{r.Updated, r.Removed} {
		for _, k := range keys {
			seen[k.Target] = true
		}
	}
	return util.SortedLabels(seen)
}

// NoArtifactsProducedError reports a build that yielded nothing usable for
// a non-empty target set. It is distinct from an update that changed nothing.
type NoArtifactsProducedError struct {
	Targets []label.Label
}

func (e *NoArtifactsProducedError) Error() string {
	names := make([]string, len(e.Targets))
	for i, t := range e.Targets {
		names[i] = t.String()
	}
	return fmt.Sprintf("build produced no usable artifacts for %s. Please fix any build errors and retry.",
		strings.Join(names, ", "))
}
