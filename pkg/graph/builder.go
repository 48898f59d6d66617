package graph

import (
	"path"
	"slices"
	"strings"

	"github.com/bazelbuild/bazel-gazelle/label"

	"github.com/albertocavalcante/qsync/pkg/util"
)

// Builder accumulates targets during a parse. It is the only mutable
// form of the graph and must not be shared between goroutines.
type Builder struct {
	targets        map[label.Label]*Target
	generated      map[label.Label]label.Label
	pkgErrors      []string
	requireAcyclic bool
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		targets:   make(map[label.Label]*Target),
		generated: make(map[label.Label]label.Label),
	}
}

// RequireAcyclic makes Build fail on dependency cycles instead of
// recording them as diagnostics.
func (b *Builder) RequireAcyclic(v bool) *Builder {
	b.requireAcyclic = v
	return b
}

// Add inserts a target. The builder takes ownership of t.
func (b *Builder) Add(t *Target) error {
	if _, dup := b.targets[t.Label]; dup {
		return constructionErrorf(ErrDuplicateLabel, "%s", t.Label)
	}
	for _, src := range t.Sources {
		if !validPath(src) {
			return constructionErrorf(ErrMalformedPath, "%q in %s", src, t.Label)
		}
	}
	b.targets[t.Label] = t
	return nil
}

// AddGeneratedFile records that file is produced by rule. Deps on the
// file resolve to the generating rule.
func (b *Builder) AddGeneratedFile(file, rule label.Label) {
	b.generated[file] = rule
}

// AddPackageError records a package the query could only partially load.
func (b *Builder) AddPackageError(pkg string) {
	b.pkgErrors = append(b.pkgErrors, pkg)
}

// validPath accepts clean, relative, non-escaping paths.
func validPath(p string) bool {
	if p == "" || path.IsAbs(p) || strings.HasPrefix(p, "/") {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

// Build derives the indices and returns the immutable graph.
// The builder must not be used afterwards.
func (b *Builder) Build() (*Data, error) {
	d := &Data{
		targets:  b.targets,
		labels:   make([]label.Label, 0, len(b.targets)),
		owners:   make(map[string]label.Label),
		packages: make(map[string][]label.Label),
		rdeps:    make(map[label.Label][]label.Label),
	}
	for l := range b.targets {
		d.labels = append(d.labels, l)
	}
	slices.SortFunc(d.labels, util.CompareLabels)

	b.resolveGenerated()

	claims := make(map[string][]label.Label)
	external := make(map[label.Label]struct{})
	for _, l := range d.labels {
		t := b.targets[l]
		d.packages[l.Pkg] = append(d.packages[l.Pkg], l)
		if t.Managed() {
			for _, src := range t.Sources {
				claims[src] = append(claims[src], l)
			}
		}
		seen := make(map[label.Label]bool)
		for _, dep := range t.AllDeps() {
			if _, ok := b.targets[dep]; !ok {
				external[dep] = struct{}{}
				continue
			}
			if !seen[dep] {
				seen[dep] = true
				d.rdeps[dep] = append(d.rdeps[dep], l)
			}
		}
	}

	// labels are visited in sorted order, so claims and rdeps are sorted too
	for file, owners := range claims {
		d.owners[file] = owners[0]
		if len(owners) > 1 {
			if d.diag.ConflictingOwners == nil {
				d.diag.ConflictingOwners = make(map[string][]label.Label)
			}
			d.diag.ConflictingOwners[file] = owners
		}
	}

	d.external = make([]label.Label, 0, len(external))
	for l := range external {
		d.external = append(d.external, l)
	}
	slices.SortFunc(d.external, util.CompareLabels)

	slices.Sort(b.pkgErrors)
	d.diag.PackagesWithErrors = slices.Compact(b.pkgErrors)

	d.diag.Cycles = findCycles(d)
	if b.requireAcyclic && len(d.diag.Cycles) > 0 {
		return nil, cycleError(d.diag.Cycles[0])
	}
	return d, nil
}

// resolveGenerated rewrites deps on generated files to their generating rule.
func (b *Builder) resolveGenerated() {
	if len(b.generated) == 0 {
		return
	}
	rewrite := func(ls []label.Label) []label.Label {
		out := ls[:0]
		seen := make(map[label.Label]bool, len(ls))
		for _, l := range ls {
			if rule, ok := b.generated[l]; ok {
				if _, known := b.targets[rule]; known {
					l = rule
				}
			}
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
		return out
	}
	for _, t := range b.targets {
		t.Deps = rewrite(t.Deps)
		t.RuntimeDeps = rewrite(t.RuntimeDeps)
	}
}
