package main

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/ssa"

	"github.com/sirkon/sizeoverflow/internal/expand"
	"github.com/sirkon/sizeoverflow/internal/registry"
	"github.com/sirkon/sizeoverflow/internal/soreport"
	"github.com/sirkon/sizeoverflow/internal/ssair"
)

// summaryExt is the extension of package summaries written with -summary-out.
const summaryExt = ".sosum"

// summaryFact carries the registry of a package and everything it imports to
// its dependents.
type summaryFact struct {
	Blob []byte
}

// AFact implements analysis.Fact.AFact.
func (*summaryFact) AFact() {}

func (f *summaryFact) String() string {
	return fmt.Sprintf("summary(%d bytes)", len(f.Blob))
}

// Result of the analysis of a package.
type Result struct {
	// Unit is the instrumented SIR of the package.
	Unit *ssair.Unit

	Registry *registry.Registry
	Reports  []soreport.Report

	// Funcs sums up the instrumentation per function.
	Funcs map[string]expand.Result

	// Summary is the serialized registry exported to dependents.
	Summary []byte
}

// unitInput is what the analysis of one package starts from.
type unitInput struct {
	fset      *token.FileSet
	files     []*ast.File
	funcs     []*ssa.Function
	sizes     types.Sizes
	summaries [][]byte
}

func diagnostic(r soreport.Report) analysis.Diagnostic {
	return analysis.Diagnostic{
		Pos:      r.Pos,
		Category: r.Kind.String(),
		Message:  fmt.Sprintf("%s %s#%d: %s", r.Kind, r.Func, r.Slot, r.Message),
	}
}
