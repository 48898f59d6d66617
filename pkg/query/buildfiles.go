package query

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bazelbuild/bazel-gazelle/label"
	"github.com/bazelbuild/bazel-gazelle/rule"
	bzl "github.com/bazelbuild/buildtools/build"
	"github.com/bmatcuk/doublestar/v4"
)

// BuildFileNames are the file names that declare a package, in priority order.
var BuildFileNames = []string{"BUILD.bazel", "BUILD"}

// skippedDirs are never descended into while looking for packages.
var skippedDirs = map[string]bool{
	".git":   true,
	".qsync": true,
	".idea":  true,
}

// LoadBuildFiles builds a Summary offline by reading BUILD files under the
// included directories of root. It understands plain string lists, list
// concatenation and glob() in srcs. Anything else (macros, select) is
// skipped, so the result is an approximation of what `bazel query` reports.
func LoadBuildFiles(ctx context.Context, root string, include, exclude []string) (*Summary, error) {
	s := NewSummary()
	if len(include) == 0 {
		include = []string{""}
	}
	seen := make(map[string]bool)
	for _, dir := range include {
		dir = strings.Trim(dir, "/")
		start := filepath.Join(root, filepath.FromSlash(dir))
		err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			name := d.Name()
			if p != start && (skippedDirs[name] || strings.HasPrefix(name, "bazel-")) {
				return filepath.SkipDir
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			pkg := filepath.ToSlash(rel)
			if pkg == "." {
				pkg = ""
			}
			if !Included(pkg, include, exclude) {
				return filepath.SkipDir
			}
			if seen[pkg] {
				return nil
			}
			seen[pkg] = true
			return loadPackage(s, root, pkg)
		})
		if err != nil {
			return nil, fmt.Errorf("load BUILD files under %q: %w", dir, err)
		}
	}
	s.Sort()
	return s, nil
}

// buildFile returns the BUILD file path in dir, or "".
func buildFile(dir string) string {
	for _, name := range BuildFileNames {
		p := filepath.Join(dir, name)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}

func loadPackage(s *Summary, root, pkg string) error {
	dir := filepath.Join(root, filepath.FromSlash(pkg))
	bf := buildFile(dir)
	if bf == "" {
		return nil
	}
	f, err := rule.LoadFile(bf, pkg)
	if err != nil {
		s.PackagesWithErrors = append(s.PackagesWithErrors, pkg)
		return nil
	}
	files := make(map[string]bool)
	for _, r := range f.Rules {
		if r.Name() == "" {
			continue
		}
		own := label.New("", pkg, r.Name())
		srcs := expandSources(dir, r.Attr("srcs"))
		out := Rule{
			Label:       own.String(),
			Kind:        r.Kind(),
			Deps:        absLabels(pkg, r.AttrStrings("deps")),
			RuntimeDeps: absLabels(pkg, r.AttrStrings("runtime_deps")),
			Exports:     absLabels(pkg, r.AttrStrings("exports")),
			Tags:        r.AttrStrings("tags"),
			TestOnly:    isTrue(r.Attr("testonly")),
		}
		for _, src := range srcs {
			l := resolve(pkg, src)
			out.Sources = append(out.Sources, l)
			files[l] = true
		}
		slices.Sort(out.Sources)
		out.Sources = slices.Compact(out.Sources)
		s.AddRule(out)
	}
	for l := range files {
		s.AddSourceFile(l)
	}
	return nil
}

// expandSources flattens a srcs expression into package-relative names.
func expandSources(dir string, e bzl.Expr) []string {
	switch v := e.(type) {
	case nil:
		return nil
	case *bzl.StringExpr:
		return []string{v.Value}
	case *bzl.ListExpr:
		var out []string
		for _, item := range v.List {
			out = append(out, expandSources(dir, item)...)
		}
		return out
	case *bzl.BinaryExpr:
		if v.Op != "+" {
			return nil
		}
		return append(expandSources(dir, v.X), expandSources(dir, v.Y)...)
	case *bzl.CallExpr:
		if g, ok := rule.ParseGlobExpr(v); ok {
			return expandGlob(dir, g)
		}
	}
	return nil
}

// expandGlob matches glob patterns in dir without crossing into subpackages.
func expandGlob(dir string, g rule.GlobValue) []string {
	fsys := os.DirFS(dir)
	var out []string
	for _, pattern := range g.Patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			continue
		}
		for _, m := range matches {
			if excludedByGlob(m, g.Excludes) || inSubpackage(dir, m) {
				continue
			}
			out = append(out, m)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func excludedByGlob(name string, excludes []string) bool {
	for _, ex := range excludes {
		if ok, _ := doublestar.Match(ex, name); ok {
			return true
		}
	}
	return false
}

func inSubpackage(dir, rel string) bool {
	for d := path.Dir(rel); d != "." && d != "/"; d = path.Dir(d) {
		if buildFile(filepath.Join(dir, filepath.FromSlash(d))) != "" {
			return true
		}
	}
	return false
}

func isTrue(e bzl.Expr) bool {
	id, ok := e.(*bzl.Ident)
	return ok && id.Name == "True"
}

func absLabels(pkg string, ls []string) []string {
	if len(ls) == 0 {
		return nil
	}
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		out = append(out, resolve(pkg, l))
	}
	return out
}

// resolve turns a possibly relative label or bare file name into an
// absolute label string. Unparseable input is returned unchanged so the
// graph parser can report it.
func resolve(pkg, s string) string {
	if !strings.HasPrefix(s, ":") && !strings.HasPrefix(s, "//") && !strings.HasPrefix(s, "@") {
		s = ":" + s
	}
	l, err := label.Parse(s)
	if err != nil {
		return s
	}
	return l.Abs("", pkg).String()
}
