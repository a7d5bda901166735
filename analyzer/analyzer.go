// Package analyzer checks orchestrators for code that breaks deterministic replay.
package analyzer

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer runs with default settings, for use in multi-checkers.
var Analyzer = New()

// replacements lists calls that are not deterministic, by package and function, with the orchestration API
// to use instead.
var replacements = map[string]map[string]string{
	"time": {
		"Now":       "orchestration.Now",
		"Since":     "orchestration.Now",
		"Until":     "orchestration.Now",
		"Sleep":     "orchestration.Sleep",
		"After":     "orchestration.ScheduleTimer",
		"AfterFunc": "orchestration.ScheduleTimer",
		"Tick":      "orchestration.ScheduleTimer",
		"NewTimer":  "orchestration.ScheduleTimer",
		"NewTicker": "orchestration.ScheduleTimer",
	},
	"math/rand":    {"*": "orchestration.SideEffect"},
	"math/rand/v2": {"*": "orchestration.SideEffect"},
	"crypto/rand":  {"*": "orchestration.SideEffect"},
	"os":           {"Getenv": "orchestration.SideEffect", "LookupEnv": "orchestration.SideEffect"},
}

func New() *analysis.Analyzer {
	a := &analysis.Analyzer{
		Name:     "orchestrations",
		Doc:      "Checks orchestrators for code that is not deterministic or has the wrong signature",
		Requires: []*analysis.Analyzer{inspect.Analyzer},
	}

	var checkPrivateReturnValues bool
	a.Flags.BoolVar(&checkPrivateReturnValues, "checkprivatereturnvalues", false, "Check return values of unexported orchestrators")

	a.Run = func(pass *analysis.Pass) (any, error) {
		return run(pass, checkPrivateReturnValues)
	}

	return a
}

func run(pass *analysis.Pass, checkPrivateReturnValues bool) (any, error) {
	inspector := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{(*ast.FuncDecl)(nil)}

	inspector.Preorder(nodeFilter, func(node ast.Node) {
		funcDecl := node.(*ast.FuncDecl)

		if !isOrchestrator(funcDecl) {
			return
		}

		if funcDecl.Name.IsExported() || checkPrivateReturnValues {
			checkResults(pass, funcDecl)
		}

		if funcDecl.Body == nil {
			return
		}

		ast.Inspect(funcDecl.Body, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.RangeStmt:
				t := pass.TypesInfo.TypeOf(n.X)
				if t == nil {
					return true
				}

				if _, ok := t.Underlying().(*types.Map); ok {
					pass.Reportf(n.Pos(), "iterating over a map is not deterministic and not allowed in orchestrators")
				}

			case *ast.GoStmt:
				pass.Reportf(n.Pos(), "use orchestration.Go instead of `go` in orchestrators")

			case *ast.SelectStmt:
				pass.Reportf(n.Pos(), "use orchestration.WhenAny instead of `select` in orchestrators")

			case *ast.CallExpr:
				checkCall(pass, n)
			}

			return true
		})
	})

	return nil, nil
}

func checkResults(pass *analysis.Pass, funcDecl *ast.FuncDecl) {
	results := funcDecl.Type.Results

	if results == nil || len(results.List) == 0 {
		pass.Reportf(funcDecl.Pos(), "orchestrator %q doesn't return anything. needs to return at least `error`", funcDecl.Name.Name)
		return
	}

	if results.NumFields() > 2 {
		pass.Reportf(funcDecl.Pos(), "orchestrator %q returns more than two values", funcDecl.Name.Name)
		return
	}

	lastResult := results.List[len(results.List)-1]
	if types.ExprString(lastResult.Type) != "error" {
		pass.Reportf(funcDecl.Pos(), "orchestrator %q doesn't return `error` as last return value", funcDecl.Name.Name)
	}
}

func checkCall(pass *analysis.Pass, call *ast.CallExpr) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return
	}

	f, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
	if !ok || f.Pkg() == nil {
		return
	}

	// Methods, e.g. on time.Time, are fine
	if sig, ok := f.Type().(*types.Signature); ok && sig.Recv() != nil {
		return
	}

	funcs, ok := replacements[f.Pkg().Path()]
	if !ok {
		return
	}

	replacement, ok := funcs[f.Name()]
	if !ok {
		replacement, ok = funcs["*"]
	}

	if ok {
		pass.Reportf(call.Pos(), "use %s instead of %s.%s in orchestrators", replacement, f.Pkg().Name(), f.Name())
	}
}

// isOrchestrator returns true for functions accepting an orchestration.Context as first parameter.
func isOrchestrator(funcDecl *ast.FuncDecl) bool {
	params := funcDecl.Type.Params.List

	if len(params) < 1 {
		return false
	}

	firstParam, ok := params[0].Type.(*ast.SelectorExpr)
	if !ok {
		return false
	}

	xname, ok := firstParam.X.(*ast.Ident)
	if !ok {
		return false
	}

	return xname.Name+"."+firstParam.Sel.Name == "orchestration.Context"
}
