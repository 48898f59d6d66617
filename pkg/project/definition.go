package project

import (
	"path"
	"slices"
	"strings"

	"github.com/albertocavalcante/qsync/pkg/query"
)

// Definition is the user's declaration of which workspace directories
// belong to the project. It is immutable once created.
type Definition struct {
	Include []string `json:"include" yaml:"include"`
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// NewDefinition normalizes directory lists: slashes trimmed, paths cleaned,
// "." meaning the workspace root (""), sorted and deduplicated.
func NewDefinition(include, exclude []string) Definition {
	return Definition{Include: normalizeDirs(include), Exclude: normalizeDirs(exclude)}
}

func normalizeDirs(dirs []string) []string {
	if len(dirs) == 0 {
		return nil
	}
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, cleanDir(d))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func cleanDir(d string) string {
	d = strings.Trim(path.Clean("/"+strings.TrimSpace(d)), "/")
	return d
}

// under reports whether p is dir or inside it. The root "" contains everything.
func under(p, dir string) bool {
	return dir == "" || p == dir || strings.HasPrefix(p, dir+"/")
}

// IsIncluded reports whether a workspace-relative path belongs to the
// project. The most specific matching entry decides, so an exclude nested
// in an include wins and an include nested in an exclude wins back.
// On equal specificity the exclude wins.
func (d Definition) IsIncluded(p string) bool {
	return query.Included(p, d.Include, d.Exclude)
}

// ContentRoot returns the outermost include entry that admits p with no
// exclude entry between them.
func (d Definition) ContentRoot(p string) (string, bool) {
	p = cleanDir(p)
	if !d.IsIncluded(p) {
		return "", false
	}
	for _, inc := range d.Include {
		if d.covers(inc, p) {
			return inc, true
		}
	}
	return "", false
}

// covers reports whether inner lies under outer and no exclude cuts it off.
func (d Definition) covers(outer, inner string) bool {
	if !under(inner, outer) {
		return false
	}
	for _, e := range d.Exclude {
		if len(e) >= len(outer) && under(e, outer) && under(inner, e) {
			return false
		}
	}
	return true
}

// ExcludesUnder returns the exclude entries inside dir, sorted.
func (d Definition) ExcludesUnder(dir string) []string {
	var out []string
	for _, e := range d.Exclude {
		if e != dir && under(e, dir) {
			out = append(out, e)
		}
	}
	return out
}
