package util

import (
	"maps"
	"slices"
	"strings"

	"github.com/bazelbuild/bazel-gazelle/label"
)

// CompareLabels orders labels by their canonical string form, the order
// every sorted label list in qsync uses.
func CompareLabels(a, b label.Label) int {
	return strings.Compare(a.String(), b.String())
}

// SortedLabels returns the label keys of m in canonical order.
func SortedLabels[V any](m map[label.Label]V) []label.Label {
	return slices.SortedFunc(maps.Keys(m), CompareLabels)
}
