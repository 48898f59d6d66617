package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bazelbuild/bazel-gazelle/label"
)

var (
	// ErrDuplicateLabel means the query reported the same rule twice.
	ErrDuplicateLabel = errors.New("duplicate target label")
	// ErrMalformedLabel means a label could not be parsed.
	ErrMalformedLabel = errors.New("malformed label")
	// ErrMalformedPath means a source path is absolute or escapes its package.
	ErrMalformedPath = errors.New("malformed source path")
	// ErrCycle means the dependency graph has a cycle and acyclicity was required.
	ErrCycle = errors.New("dependency cycle")
)

// GraphConstructionError reports a structurally invalid query result.
// Kind is one of the sentinel errors above.
type GraphConstructionError struct {
	Kind error
	Msg  string
}

func (e *GraphConstructionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return "build graph: " + e.Kind.Error()
	}
	return fmt.Sprintf("build graph: %s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphConstructionError) Unwrap() error { return e.Kind }

func constructionErrorf(kind error, format string, args ...any) error {
	return &GraphConstructionError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(path []label.Label) error {
	parts := make([]string, len(path))
	for i, l := range path {
		parts[i] = l.String()
	}
	return &GraphConstructionError{Kind: ErrCycle, Msg: strings.Join(parts, " -> ")}
}
