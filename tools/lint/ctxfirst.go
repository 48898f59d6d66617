package lint

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// CtxFirst reports functions that take a context.Context anywhere but
// first. Blocking operations here take the caller's context as their first
// parameter.
var CtxFirst = &analysis.Analyzer{
	Name:     "ctxfirst",
	Doc:      "report context.Context parameters that are not the first parameter",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      runCtxFirst,
}

func runCtxFirst(pass *analysis.Pass) (any, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	filter := []ast.Node{(*ast.FuncDecl)(nil), (*ast.FuncLit)(nil)}
	insp.Preorder(filter, func(n ast.Node) {
		var ft *ast.FuncType
		switch n := n.(type) {
		case *ast.FuncDecl:
			ft = n.Type
		case *ast.FuncLit:
			ft = n.Type
		}
		if ft == nil || ft.Params == nil {
			return
		}
		pos := 0
		for _, field := range ft.Params.List {
			if pos > 0 && isContext(pass.TypesInfo.TypeOf(field.Type)) {
				pass.Reportf(field.Pos(), "context.Context should be the first parameter")
			}
			pos += max(len(field.Names), 1)
		}
	})
	return nil, nil
}

func isContext(t types.Type) bool {
	if t == nil {
		return false
	}
	named, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Pkg() != nil && obj.Pkg().Path() == "context" && obj.Name() == "Context"
}
