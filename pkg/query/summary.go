// Package query models the raw result of a dependency query over a
// workspace and reads it from bazel's streamed JSON output or directly
// from BUILD files.
package query

import (
	"slices"
	"sort"

	"github.com/bazelbuild/bazel-gazelle/label"
)

// Rule is one rule instance as reported by the query.
// Labels are kept in their textual form; the graph parser resolves them.
type Rule struct {
	Label       string   `json:"label"`
	Kind        string   `json:"kind"`
	Sources     []string `json:"srcs,omitempty"`
	Deps        []string `json:"deps,omitempty"`
	RuntimeDeps []string `json:"runtime_deps,omitempty"`
	Exports     []string `json:"exports,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	TestOnly    bool     `json:"testonly,omitempty"`
}

// Summary is the unparsed query result.
// Rules keep query order and may contain duplicate labels; rejecting those
// is the graph parser's job.
type Summary struct {
	Rules []Rule `json:"rules"`

	// SourceFiles are labels of checked-in files seen by the query.
	SourceFiles []string `json:"source_files,omitempty"`

	// GeneratedFiles maps a generated file label to its generating rule.
	GeneratedFiles map[string]string `json:"generated_files,omitempty"`

	// PackagesWithErrors lists packages the query could only partially load.
	PackagesWithErrors []string `json:"packages_with_errors,omitempty"`
}

// NewSummary creates an empty summary.
func NewSummary() *Summary {
	return &Summary{GeneratedFiles: make(map[string]string)}
}

// AddRule appends a rule.
func (s *Summary) AddRule(r Rule) {
	s.Rules = append(s.Rules, r)
}

// AddSourceFile records a checked-in source file label.
func (s *Summary) AddSourceFile(l string) {
	s.SourceFiles = append(s.SourceFiles, l)
}

// AddGeneratedFile records a generated file and the rule producing it.
func (s *Summary) AddGeneratedFile(l, generatingRule string) {
	if s.GeneratedFiles == nil {
		s.GeneratedFiles = make(map[string]string)
	}
	s.GeneratedFiles[l] = generatingRule
}

// IsGenerated reports whether l names a generated file.
func (s *Summary) IsGenerated(l string) bool {
	if s == nil {
		return false
	}
	_, ok := s.GeneratedFiles[l]
	return ok
}

// RuleCount returns the number of rules, duplicates included.
func (s *Summary) RuleCount() int {
	if s == nil {
		return 0
	}
	return len(s.Rules)
}

// Packages returns the sorted set of packages declaring rules.
func (s *Summary) Packages() []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, r := range s.Rules {
		l, err := label.Parse(r.Label)
		if err != nil {
			continue
		}
		seen[l.Pkg] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Sort orders rules by label and deduplicates the file lists.
// Duplicate rules are kept so the parser can still report them.
func (s *Summary) Sort() {
	sort.SliceStable(s.Rules, func(i, j int) bool { return s.Rules[i].Label < s.Rules[j].Label })
	slices.Sort(s.SourceFiles)
	s.SourceFiles = slices.Compact(s.SourceFiles)
	slices.Sort(s.PackagesWithErrors)
	s.PackagesWithErrors = slices.Compact(s.PackagesWithErrors)
}

// FilePath converts a file label into a workspace-relative path.
// External repository files have no workspace path and return false.
// The path is not cleaned; validation is left to the caller.
func FilePath(l label.Label) (string, bool) {
	if l.Repo != "" {
		return "", false
	}
	if l.Pkg == "" {
		return l.Name, true
	}
	return l.Pkg + "/" + l.Name, true
}
