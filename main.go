package main

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/buildssa"
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/sirkon/sizeoverflow/internal/config"
)

const doc = `sizeoverflow finds integer computations flowing into size arguments

Values passed to interesting slots (arguments known to be sizes, returns of
functions producing sizes) are recomputed in a double width type and checked
against the original. Interesting slots come from the hash database of the
configuration, from //sizeoverflow:check directives and from summaries of
imported packages.`

// Analyzer is the main entry point for the linter
var Analyzer = &analysis.Analyzer{
	Name:       "sizeoverflow",
	Doc:        doc,
	Requires:   []*analysis.Analyzer{buildssa.Analyzer},
	Run:        run,
	FactTypes:  []analysis.Fact{new(summaryFact)},
	ResultType: reflect.TypeOf((*Result)(nil)),
}

var (
	configPath string
	summaryIn  string
	summaryOut string
)

func init() {
	Analyzer.Flags.StringVar(&configPath, "config", "", "path to the YAML configuration")
	Analyzer.Flags.StringVar(&summaryIn, "summary-in", "", "whole program summary merged before every package")
	Analyzer.Flags.StringVar(&summaryOut, "summary-out", "", "directory to write package summaries into")
}

func main() {
	singlechecker.Main(Analyzer)
}

var loadConfig = sync.OnceValues(func() (*config.Config, error) {
	return config.Load(configPath)
})

var loadSummary = sync.OnceValues(func() ([]byte, error) {
	if summaryIn == "" {
		return nil, nil
	}
	data, err := os.ReadFile(summaryIn)
	if err != nil {
		return nil, fmt.Errorf("read whole program summary: %w", err)
	}
	return data, nil
})

func run(pass *analysis.Pass) (any, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := cfg.Logger(os.Stderr).WithField("package", pass.Pkg.Path())

	in := unitInput{
		fset:  pass.Fset,
		files: pass.Files,
		funcs: pass.ResultOf[buildssa.Analyzer].(*buildssa.SSA).SrcFuncs,
		sizes: pass.TypesSizes,
	}

	whole, err := loadSummary()
	if err != nil {
		return nil, err
	}
	if whole != nil {
		in.summaries = append(in.summaries, whole)
	}
	for _, f := range pass.AllPackageFacts() {
		if sf, ok := f.Fact.(*summaryFact); ok {
			in.summaries = append(in.summaries, sf.Blob)
		}
	}

	res, err := analyze(cfg, log, in)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", pass.Pkg.Path(), err)
	}

	pass.ExportPackageFact(&summaryFact{Blob: res.Summary})
	if summaryOut != "" {
		name := strings.ReplaceAll(pass.Pkg.Path(), "/", "_") + summaryExt
		if err := os.WriteFile(filepath.Join(summaryOut, name), res.Summary, 0o644); err != nil {
			return nil, fmt.Errorf("write summary: %w", err)
		}
	}

	for _, r := range res.Reports {
		if !r.Pos.IsValid() || !cfg.Diagnostics.Wants(r.Kind) {
			continue
		}
		pass.Report(diagnostic(r))
	}

	return res, nil
}
