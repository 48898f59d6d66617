package graph

import (
	"path"
	"slices"
	"strings"

	"github.com/bazelbuild/bazel-gazelle/label"

	"github.com/albertocavalcante/qsync/pkg/util"
)

// Diagnostics records non-fatal anomalies found while parsing.
type Diagnostics struct {
	// ConflictingOwners lists files claimed by more than one managed target,
	// with every claimant sorted. The first claimant is the owner.
	ConflictingOwners map[string][]label.Label

	// Cycles holds one witness path per strongly connected cycle found.
	Cycles [][]label.Label

	// PackagesWithErrors are packages the query could only partially load.
	PackagesWithErrors []string
}

// Empty reports whether nothing was recorded.
func (d Diagnostics) Empty() bool {
	return len(d.ConflictingOwners) == 0 && len(d.Cycles) == 0 && len(d.PackagesWithErrors) == 0
}

// Data is the immutable build graph: all targets plus derived indices.
// It has no mutation API; use Builder or Parse to create one.
type Data struct {
	targets  map[label.Label]*Target
	labels   []label.Label
	owners   map[string]label.Label
	packages map[string][]label.Label
	rdeps    map[label.Label][]label.Label
	external []label.Label
	diag     Diagnostics
}

// Len returns the number of targets.
func (d *Data) Len() int {
	if d == nil {
		return 0
	}
	return len(d.targets)
}

// Labels returns all target labels, sorted.
func (d *Data) Labels() []label.Label {
	if d == nil {
		return nil
	}
	return slices.Clone(d.labels)
}

// Target returns the target for l.
func (d *Data) Target(l label.Label) (*Target, bool) {
	if d == nil {
		return nil, false
	}
	t, ok := d.targets[l]
	return t, ok
}

// Targets returns all targets in label order.
func (d *Data) Targets() []*Target {
	if d == nil {
		return nil
	}
	out := make([]*Target, 0, len(d.labels))
	for _, l := range d.labels {
		out = append(out, d.targets[l])
	}
	return out
}

// TargetOwner returns the target owning a workspace-relative file path.
// An absent owner is a valid answer, never a guess.
func (d *Data) TargetOwner(p string) (label.Label, bool) {
	if d == nil || p == "" || path.IsAbs(p) {
		return label.NoLabel, false
	}
	l, ok := d.owners[path.Clean(p)]
	return l, ok
}

// SourceFiles returns every owned file path, sorted.
func (d *Data) SourceFiles() []string {
	if d == nil {
		return nil
	}
	out := make([]string, 0, len(d.owners))
	for p := range d.owners {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Packages returns every package declaring a target, sorted.
func (d *Data) Packages() []string {
	if d == nil {
		return nil
	}
	out := make([]string, 0, len(d.packages))
	for p := range d.packages {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// TargetsInPackage returns the targets declared in pkg, sorted.
func (d *Data) TargetsInPackage(pkg string) []label.Label {
	if d == nil {
		return nil
	}
	return slices.Clone(d.packages[strings.Trim(pkg, "/")])
}

// ExternalDeps returns dependency labels that do not resolve to a target
// in this graph, sorted.
func (d *Data) ExternalDeps() []label.Label {
	if d == nil {
		return nil
	}
	return slices.Clone(d.external)
}

// IsExternal reports whether l is a dependency outside the graph.
func (d *Data) IsExternal(l label.Label) bool {
	if d == nil {
		return false
	}
	_, found := slices.BinarySearchFunc(d.external, l, util.CompareLabels)
	return found
}

// Diagnostics returns what the parser recorded.
func (d *Data) Diagnostics() Diagnostics {
	if d == nil {
		return Diagnostics{}
	}
	return d.diag
}

// Cycles returns the detected dependency cycles.
func (d *Data) Cycles() [][]label.Label {
	return d.Diagnostics().Cycles
}

// ReverseDeps returns the direct dependents of l, sorted.
func (d *Data) ReverseDeps(l label.Label) []label.Label {
	if d == nil {
		return nil
	}
	return slices.Clone(d.rdeps[l])
}

// TransitiveDeps returns every label reachable from l through compile and
// runtime deps, l excluded, sorted. External labels are included but not
// expanded. Cycles terminate through the visited set.
func (d *Data) TransitiveDeps(l label.Label) []label.Label {
	return d.TransitiveDepsOf([]label.Label{l})
}

// TransitiveDepsOf returns every label reachable from any of ls in one
// traversal, the starting labels excluded, sorted.
func (d *Data) TransitiveDepsOf(ls []label.Label) []label.Label {
	return d.walk(ls, func(n label.Label) []label.Label {
		if t, ok := d.targets[n]; ok {
			return t.AllDeps()
		}
		return nil
	})
}

// TransitiveReverseDeps returns every target that depends on l directly
// or indirectly, l excluded, sorted.
func (d *Data) TransitiveReverseDeps(l label.Label) []label.Label {
	return d.walk([]label.Label{l}, func(n label.Label) []label.Label { return d.rdeps[n] })
}

func (d *Data) walk(starts []label.Label, next func(label.Label) []label.Label) []label.Label {
	if d == nil {
		return nil
	}
	visited := make(map[label.Label]bool, len(starts))
	for _, l := range starts {
		visited[l] = true
	}
	queue := slices.Clone(starts)
	var out []label.Label
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, m := range next(n) {
			if visited[m] {
				continue
			}
			visited[m] = true
			out = append(out, m)
			queue = append(queue, m)
		}
	}
	slices.SortFunc(out, util.CompareLabels)
	return out
}

// ManagedTargets returns the IDE-managed targets in label order.
func (d *Data) ManagedTargets() []*Target {
	var out []*Target
	for _, t := range d.Targets() {
		if t.Managed() {
			out = append(out, t)
		}
	}
	return out
}
