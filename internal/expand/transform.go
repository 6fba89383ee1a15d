package expand

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sirkon/sizeoverflow/internal/intentional"
	"github.com/sirkon/sizeoverflow/internal/ipa"
	"github.com/sirkon/sizeoverflow/internal/sir"
	"github.com/sirkon/sizeoverflow/internal/soreport"
)

// Result sums up the rewrite of a function.
type Result struct {
	Checks   int
	Exempted int
	Merged   int
}

// Transform instruments every use of a value in an interesting slot of fn:
// call arguments, returns and checkpoint markers. Duplicates are merged
// afterwards.
func (c *Context) Transform(fn *sir.Func) (Result, error) {
	var res Result
	if fn.External || len(fn.Blocks) == 0 {
		return res, nil
	}

	p := c.NewPass(fn)
	var marks *intentional.Marks
	if c.Classifier != nil {
		marks = c.Classifier.Marks
	}
	transform := c.Reports.Phase(soreport.PhaseTransform)
	sites := ipa.Sites(fn, c.Registry, marks, transform)

	for _, site := range sites {
		out, err := p.instrument(site, transform)
		if err != nil {
			return res, err
		}
		switch out {
		case siteChecked:
			res.Checks++
		case siteExempted:
			res.Exempted++
		}
	}

	res.Merged = p.Dedup()
	if res.Merged > 0 {
		c.Reports.Phase(soreport.PhaseDedup).Report(
			soreport.DuplicateMerged, fn.Name, 0, fn.Pos,
			fmt.Sprintf("%d shadow statements merged", res.Merged),
		)
	}

	c.Log.WithFields(logrus.Fields{
		"function": fn.Name,
		"checks":   res.Checks,
		"exempted": res.Exempted,
		"merged":   res.Merged,
	}).Debug("function instrumented")
	return res, nil
}

// siteOutcome tells what instrumenting a site ended with.
type siteOutcome uint8

const (
	// siteUntouched means the value is taken as is: a constant, a parameter
	// or a call result.
	siteUntouched siteOutcome = iota
	siteChecked
	siteExempted
)

// instrument expands the site value and checks it.
func (p *Pass) instrument(site ipa.Site, rep *soreport.ReporterPhase) (siteOutcome, error) {
	v := site.Value
	if v.IsConst() {
		return siteUntouched, nil
	}

	arg := site.Operand
	if site.Kind == ipa.SiteCheckpoint {
		arg = intentional.NoArg
	}
	mark := p.ctx.Classifier.Classify(site.Stmt, arg)
	if mark >= intentional.EndIntentional {
		rep.Report(soreport.CheckExempted, site.Func, site.Slot, site.Stmt.Pos, "instrumentation is turned off")
		return siteExempted, nil
	}

	w, err := p.Expand(v)
	if err != nil {
		return siteUntouched, err
	}
	if mark == intentional.Yes || p.Visited.Exempt(v) {
		rep.Report(soreport.CheckExempted, site.Func, site.Slot, site.Stmt.Pos, "intentional overflow")
		return siteExempted, nil
	}
	if sh, ok := p.shadows[defID(w)]; ok && sh.kind == shadowLeaf && sh.origin == v.ID {
		// Nothing was recomputed.
		p.drop(w.Def)
		if v.Def != nil && p.Visited.Stmts[v.Def.ID] >= intentional.EndIntentional {
			rep.Report(soreport.CheckExempted, site.Func, site.Slot, site.Stmt.Pos, "intentional overflow")
			return siteExempted, nil
		}
		return siteUntouched, nil
	}

	before := site.Stmt
	if site.Kind == ipa.SiteCheckpoint {
		before = p.nextOriginal(site.Stmt)
	}
	err = p.InsertCheck(before, v, w, sir.ReportSite{
		Routine: p.ctx.ReportFunc,
		Func:    site.Func,
		Slot:    site.Slot,
	})
	if err != nil {
		return siteUntouched, err
	}
	rep.Report(soreport.CheckInserted, site.Func, site.Slot, site.Stmt.Pos, "bounds check inserted")
	return siteChecked, nil
}

// nextOriginal returns the first statement after s not created by the engine,
// which is at worst the block terminator.
func (p *Pass) nextOriginal(s *sir.Stmt) *sir.Stmt {
	b := s.Block
	for _, x := range b.Stmts[s.Index()+1:] {
		if x.Op == sir.OpPhi || p.Visited.Mine(x) {
			continue
		}
		return x
	}
	return b.Terminator()
}

func defID(v *sir.Value) sir.StmtID {
	if v.Def == nil {
		return sir.NoStmt
	}
	return v.Def.ID
}
