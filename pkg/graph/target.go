package graph

import (
	"strings"

	"github.com/bazelbuild/bazel-gazelle/label"
)

// Target is one build rule in the graph. Targets are immutable once the
// graph is built; callers must not modify the slices.
type Target struct {
	Label     label.Label
	RuleClass string
	Kind      Kind

	// Sources are workspace-relative paths of checked-in sources.
	Sources []string

	// GeneratedSources are labels of generated files listed in srcs.
	GeneratedSources []label.Label

	// Deps are compile-time deps (deps and exports), deduplicated, in declaration order.
	Deps []label.Label

	// RuntimeDeps are runtime-only deps.
	RuntimeDeps []label.Label

	Tags     []string
	TestOnly bool
}

// Package returns the target's package path.
func (t *Target) Package() string { return t.Label.Pkg }

// Managed reports whether the IDE manages this target as a source set.
func (t *Target) Managed() bool { return t.Kind != KindOpaque }

// IsCC reports whether the target is a C/C++ rule.
func (t *Target) IsCC() bool { return t.Kind.IsCC() }

// SupportsRendering reports whether the IDE can render previews from it.
func (t *Target) SupportsRendering() bool { return t.Kind.SupportsRendering() }

// IsTest reports whether the target is a test rule or test-only.
func (t *Target) IsTest() bool {
	return t.TestOnly || strings.HasSuffix(t.RuleClass, "_test")
}

// AllDeps returns compile and runtime deps, compile deps first.
func (t *Target) AllDeps() []label.Label {
	out := make([]label.Label, 0, len(t.Deps)+len(t.RuntimeDeps))
	out = append(out, t.Deps...)
	out = append(out, t.RuntimeDeps...)
	return out
}
