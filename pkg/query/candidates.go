package query

import (
	"path"
	"strings"
)

// Candidate is a directory that could be added to a project, with the
// number of packages beneath it.
type Candidate struct {
	Dir      string `json:"dir"`
	Packages int    `json:"packages"`
}

// Candidates lists dir and its ancestors that contain packages, nearest
// first. Directories whose package count equals that of the previous
// candidate are skipped since adding them would pull in nothing new.
func Candidates(s *Summary, dir string) []Candidate {
	dir = strings.Trim(path.Clean("/"+dir), "/")
	pkgs := s.Packages()
	var out []Candidate
	last := 0
	for d := dir; ; d = parent(d) {
		n := countUnder(pkgs, d)
		if n > last {
			out = append(out, Candidate{Dir: d, Packages: n})
			last = n
		}
		if d == "" {
			break
		}
	}
	return out
}

func parent(dir string) string {
	i := strings.LastIndex(dir, "/")
	if i < 0 {
		return ""
	}
	return dir[:i]
}

func countUnder(pkgs []string, dir string) int {
	n := 0
	for _, p := range pkgs {
		if dir == "" || p == dir || strings.HasPrefix(p, dir+"/") {
			n++
		}
	}
	return n
}
