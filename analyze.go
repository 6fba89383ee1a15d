package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sirkon/sizeoverflow/internal/config"
	"github.com/sirkon/sizeoverflow/internal/expand"
	"github.com/sirkon/sizeoverflow/internal/intentional"
	"github.com/sirkon/sizeoverflow/internal/ipa"
	"github.com/sirkon/sizeoverflow/internal/lto"
	"github.com/sirkon/sizeoverflow/internal/registry"
	"github.com/sirkon/sizeoverflow/internal/soreport"
	"github.com/sirkon/sizeoverflow/internal/ssair"
)

// analyze runs the engine over one package:
//
//   - Summaries of imported packages are merged into a fresh registry.
//   - Functions are translated into SIR with their attributes and markers.
//   - The registry is seeded and propagated over the package call graph.
//   - Every function with a body is instrumented and deduplicated.
//   - Nodes of compiler made functions are moved under stable names and the
//     registry is serialized for dependents.
func analyze(cfg *config.Config, log logrus.FieldLogger, in unitInput) (*Result, error) {
	reg := registry.New(log)
	reports := &soreport.Reporter{}

	merger := &lto.Merger{
		Registry: reg,
		Policy:   cfg.MergePolicy,
		Reports:  reports.Phase(soreport.PhaseLTO),
		Log:      log,
	}
	for i, blob := range in.summaries {
		frag, err := lto.Read(blob)
		if err != nil {
			return nil, fmt.Errorf("read summary %d: %w", i, err)
		}
		merger.Merge(frag)
	}

	tr := &ssair.Translator{
		Fset:  in.fset,
		Files: in.files,
		Sizes: in.sizes,
		Log:   log,
	}
	unit, err := tr.Translate(in.funcs)
	if err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}

	classifier := intentional.New(unit.Marks, log)
	prop := &ipa.Propagator{
		Registry:   reg,
		Classifier: classifier,
		Reports:    reports.Phase(soreport.PhaseIPA),
		Log:        log,
	}
	prop.Seed(unit.Program, cfg.Database())
	prop.Propagate(unit.Program)

	ctx := &expand.Context{
		Registry:   reg,
		Classifier: classifier,
		Reports:    reports,
		Log:        log,
		ReportFunc: cfg.ReportFunc,
	}
	res := &Result{
		Unit:     unit,
		Registry: reg,
		Funcs:    make(map[string]expand.Result),
	}
	for _, f := range unit.Program.Bodies() {
		r, err := ctx.Transform(f)
		if err != nil {
			return nil, fmt.Errorf("instrument %s: %w", f.Name, err)
		}
		res.Funcs[f.Name] = r
	}

	// Clones do not outlive the package.
	for _, f := range unit.Program.Funcs() {
		if registry.MadeByCompiler(f) {
			reg.FunctionRemoved(f)
		}
	}

	res.Summary, err = lto.Write(reg)
	if err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}

	reports.Log(log, in.fset)
	res.Reports = reports.Reports()
	return res, nil
}
