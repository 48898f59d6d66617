// Package lint bundles the static analyzers run over this repository.
package lint

import (
	"github.com/kisielk/errcheck/errcheck"
	"go.uber.org/nilaway"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/errorsas"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unusedresult"
)

// Analyzers returns the suite in a stable order.
func Analyzers() []*analysis.Analyzer {
	return []*analysis.Analyzer{
		// Unchecked errors.
		errcheck.Analyzer,
		// Nil pointer dereferences across function boundaries.
		nilaway.Analyzer,
		// Locks copied by value, such as a Tracker or Holder.
		copylock.Analyzer,
		// errors.As with a non-pointer target.
		errorsas.Analyzer,
		// Cancel functions that are never called.
		lostcancel.Analyzer,
		// Mismatched progress and log format strings.
		printf.Analyzer,
		// Malformed or duplicate json/toml/yaml tags.
		structtag.Analyzer,
		// Decoding into non-pointers.
		unmarshal.Analyzer,
		// Discarded results of pure functions.
		unusedresult.Analyzer,
		CtxFirst,
	}
}
