package query

import (
	"path"
	"slices"
	"strings"
)

// cleanDir normalizes a workspace-relative directory; the root is "".
func cleanDir(d string) string {
	return strings.Trim(path.Clean("/"+strings.TrimSpace(d)), "/")
}

// under reports whether p is dir or inside it. The root "" contains everything.
func under(p, dir string) bool {
	return dir == "" || p == dir || strings.HasPrefix(p, dir+"/")
}

// longestMatch returns the length of the longest entry of dirs containing p.
func longestMatch(p string, dirs []string) (int, bool) {
	best, found := 0, false
	for _, d := range dirs {
		d = cleanDir(d)
		if under(p, d) && (!found || len(d) > best) {
			best, found = len(d), true
		}
	}
	return best, found
}

// Included reports whether the workspace-relative path p lies in the
// directories selected by include and exclude. The most specific matching
// entry decides: an exclude nested in an include removes its subtree and an
// include nested in that exclude adds its own subtree back. On equal
// specificity the exclude wins.
func Included(p string, include, exclude []string) bool {
	p = cleanDir(p)
	inc, ok := longestMatch(p, include)
	if !ok {
		return false
	}
	exc, ok := longestMatch(p, exclude)
	return !ok || inc > exc
}

// Expression builds a query expression selecting the same packages as
// Included, e.g. "//java/... - //java/legacy/... + //java/legacy/keep/...".
// Bazel set operators are left-associative with equal precedence, so terms
// are emitted from the shallowest directory to the deepest; each deeper term
// overrides what the shallower ones decided for its subtree.
func Expression(include, exclude []string) string {
	type term struct {
		dir     string
		exclude bool
	}
	var terms []term
	for _, d := range include {
		terms = append(terms, term{dir: cleanDir(d)})
	}
	for _, d := range exclude {
		terms = append(terms, term{dir: cleanDir(d), exclude: true})
	}
	slices.SortStableFunc(terms, func(a, b term) int {
		if da, db := depth(a.dir), depth(b.dir); da != db {
			return da - db
		}
		// includes first, so an exclude of the same directory wins
		switch {
		case a.exclude == b.exclude:
			return 0
		case a.exclude:
			return 1
		}
		return -1
	})

	var b strings.Builder
	for _, t := range terms {
		switch {
		case b.Len() == 0 && t.exclude:
			// nothing selected yet to subtract from
		case b.Len() == 0:
			b.WriteString(pattern(t.dir))
		case t.exclude:
			b.WriteString(" - " + pattern(t.dir))
		default:
			b.WriteString(" + " + pattern(t.dir))
		}
	}
	return b.String()
}

// depth counts path components; the root has depth 0.
func depth(dir string) int {
	if dir == "" {
		return 0
	}
	return strings.Count(dir, "/") + 1
}

func pattern(dir string) string {
	if dir == "" {
		return "//..."
	}
	return "//" + dir + "/..."
}
