package project

import (
	"context"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bazelbuild/bazel-gazelle/label"

	"github.com/albertocavalcante/qsync/internal/log"
	"github.com/albertocavalcante/qsync/pkg/graph"
	"github.com/albertocavalcante/qsync/pkg/pkgreader"
	"github.com/albertocavalcante/qsync/pkg/util"
)

// DefaultParallelism bounds concurrent source reads when none is configured.
const DefaultParallelism = 8

// Converter turns a build graph into a Project.
type Converter struct {
	reader      pkgreader.Reader
	def         Definition
	root        string
	parallelism int
}

// Option configures a Converter.
type Option func(*Converter)

// WithWorkspaceRoot sets the directory workspace-relative paths resolve
// against when reading sources. Defaults to the current directory.
func WithWorkspaceRoot(root string) Option {
	return func(c *Converter) { c.root = root }
}

// WithParallelism bounds concurrent source reads.
func WithParallelism(n int) Option {
	return func(c *Converter) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// NewConverter creates a converter reading package prefixes with r.
func NewConverter(r pkgreader.Reader, def Definition, opts ...Option) *Converter {
	c := &Converter{reader: r, def: def, parallelism: DefaultParallelism}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Definition returns the project definition the converter applies.
func (c *Converter) Definition() Definition { return c.def }

// sourceDir is one directory of included JVM sources.
type sourceDir struct {
	dir    string
	sample string
	tests  bool
}

// CreateProject derives the project from g. Identical inputs yield an
// identical Project; every list in the result is sorted.
func (c *Converter) CreateProject(ctx context.Context, g *graph.Data) (*Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := log.Component("project")

	dirs := map[string]*sourceDir{}
	roots := map[string]bool{}
	languages := map[string]bool{}
	generated := map[string]bool{}
	var inProject []*graph.Target

	for _, t := range g.ManagedTargets() {
		if !c.inProject(t.Label) {
			continue
		}
		inProject = append(inProject, t)
		for _, src := range t.Sources {
			root, ok := c.def.ContentRoot(src)
			if !ok {
				continue
			}
			roots[root] = true
			languages[t.Kind.String()] = true
			if !isJVMSource(src) {
				continue
			}
			dir := path.Dir(src)
			if dir == "." {
				dir = ""
			}
			sd, ok := dirs[dir]
			if !ok {
				sd = &sourceDir{dir: dir, sample: src, tests: true}
				dirs[dir] = sd
			}
			if src < sd.sample {
				sd.sample = src
			}
			sd.tests = sd.tests && t.IsTest()
		}
		if len(t.GeneratedSources) > 0 {
			generated[path.Join("bazel-bin", t.Label.Pkg)] = true
		}
	}

	samples := make([]string, 0, len(dirs))
	for _, sd := range dirs {
		samples = append(samples, c.abs(sd.sample))
	}
	slices.Sort(samples)
	pkgs, err := pkgreader.ReadAll(ctx, c.reader, samples, c.parallelism)
	if err != nil {
		return nil, err
	}

	contentRoots := c.minimalRoots(util.SortedKeys(roots))
	p := &Project{
		Libraries:            c.libraries(g, inProject),
		GeneratedSourceRoots: util.SortedKeys(generated),
		Languages:            util.SortedKeys(languages),
	}
	for _, root := range contentRoots {
		cr := ContentRoot{Path: root, Excludes: c.def.ExcludesUnder(root)}
		var folders []SourceFolder
		for _, dir := range util.SortedKeys(dirs) {
			sd := dirs[dir]
			if !under(dir, root) {
				continue
			}
			folders = append(folders, sourceFolder(root, dir, pkgs[c.abs(sd.sample)], sd.tests))
		}
		cr.SourceFolders = mergeFolders(folders)
		p.ContentRoots = append(p.ContentRoots, cr)
	}

	logger.Debugw("project created",
		"content_roots", len(p.ContentRoots),
		"libraries", len(p.Libraries),
		"source_dirs", len(dirs))
	return p, nil
}

func (c *Converter) abs(rel string) string {
	if c.root == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.root, filepath.FromSlash(rel))
}

// inProject reports whether a label's package lies inside the project.
func (c *Converter) inProject(l label.Label) bool {
	return l.Repo == "" && c.def.IsIncluded(l.Pkg)
}

// libraries collects every dependency of project targets that lives
// outside the project.
func (c *Converter) libraries(g *graph.Data, targets []*graph.Target) []Library {
	starts := make([]label.Label, len(targets))
	for i, t := range targets {
		starts[i] = t.Label
	}
	var out []Library
	for _, dep := range g.TransitiveDepsOf(starts) {
		if !c.inProject(dep) {
			out = append(out, Library{Name: dep.String()})
		}
	}
	return out
}

func isJVMSource(p string) bool {
	switch path.Ext(p) {
	case ".java", ".kt", ".kts", ".scala":
		return true
	}
	return false
}

// minimalRoots drops every root already covered by another. roots must be
// sorted.
func (c *Converter) minimalRoots(roots []string) []string {
	var out []string
	for _, r := range roots {
		if slices.ContainsFunc(out, func(kept string) bool { return c.def.covers(kept, r) }) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// sourceFolder derives the source root for a directory whose files declare
// pkg. When the directory ends with the package path the folder is the
// remaining prefix; otherwise the directory itself carries a package prefix.
// Folders never escape their content root.
func sourceFolder(root, dir, pkg string, tests bool) SourceFolder {
	folder, prefix := dir, pkg
	pkgPath := strings.ReplaceAll(pkg, ".", "/")
	switch {
	case pkg == "":
	case dir == pkgPath:
		folder, prefix = "", ""
	case strings.HasSuffix(dir, "/"+pkgPath):
		folder, prefix = strings.TrimSuffix(dir, "/"+pkgPath), ""
	}
	if !under(folder, root) {
		rel := strings.TrimPrefix(strings.TrimPrefix(root, folder), "/")
		prefix = joinPackage(prefix, strings.ReplaceAll(rel, "/", "."))
		folder = root
	}
	return SourceFolder{Path: folder, PackagePrefix: prefix, IsTest: tests}
}

func joinPackage(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "." + b
}

// implies reports whether folder a already covers b: b sits under a and
// its prefix is a's prefix extended by the relative directory.
func implies(a, b SourceFolder) bool {
	if a.IsTest != b.IsTest || !under(b.Path, a.Path) {
		return false
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(b.Path, a.Path), "/")
	return b.PackagePrefix == joinPackage(a.PackagePrefix, strings.ReplaceAll(rel, "/", "."))
}

// mergeFolders deduplicates folders and drops those implied by a shorter one.
func mergeFolders(folders []SourceFolder) []SourceFolder {
	slices.SortFunc(folders, func(a, b SourceFolder) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		if c := strings.Compare(a.PackagePrefix, b.PackagePrefix); c != 0 {
			return c
		}
		switch {
		case a.IsTest == b.IsTest:
			return 0
		case !a.IsTest:
			return -1
		}
		return 1
	})
	folders = slices.Compact(folders)
	var out []SourceFolder
	for _, f := range folders {
		if slices.ContainsFunc(out, func(kept SourceFolder) bool { return implies(kept, f) }) {
			continue
		}
		out = append(out, f)
	}
	return out
}
