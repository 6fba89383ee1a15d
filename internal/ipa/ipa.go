package ipa

import (
	"github.com/sirupsen/logrus"

	"github.com/sirkon/sizeoverflow/internal/intentional"
	"github.com/sirkon/sizeoverflow/internal/registry"
	"github.com/sirkon/sizeoverflow/internal/sir"
	"github.com/sirkon/sizeoverflow/internal/soreport"
)

// Database lists slots of functions known to be overflow prone.
type Database interface {
	Slots(name string) []int
}

// Propagator extends the registry over one unit.
type Propagator struct {
	Registry   *registry.Registry
	Classifier *intentional.Classifier
	Reports    *soreport.ReporterPhase
	Log        logrus.FieldLogger

	missing map[string]struct{}
}

// Seed registers slots from the database and from function attributes.
// Intentional attributes suppress the slot, which wins over a check.
func (p *Propagator) Seed(prog *sir.Program, db Database) {
	for _, fn := range prog.Funcs() {
		if db != nil {
			for _, slot := range db.Slots(fn.Name) {
				p.seed(fn, slot, registry.Checked, "database")
			}
		}
		for _, slot := range fn.Attrs.SizeOverflow {
			p.seed(fn, slot, registry.Checked, "attribute")
		}
		for _, slot := range fn.Attrs.Intentional {
			p.seed(fn, slot, registry.Suppressed, "intentional attribute")
		}
	}
}

func (p *Propagator) seed(fn *sir.Func, slot int, mark registry.Mark, source string) {
	t, ok := fn.SlotType(slot)
	if !ok || !t.IsInt() {
		p.Log.WithFields(logrus.Fields{
			"function": fn.Name,
			"slot":     slot,
			"source":   source,
		}).Warn("slot is not an integer, ignored")
		return
	}
	p.Registry.LookupOrCreate(fn, slot, mark)
}

// Propagate walks definition chains of values flowing into interesting slots
// until no new node or edge appears. Parameters met on the way become nodes of
// the function being walked, call results become return nodes of the callee.
// It returns the number of rounds.
func (p *Propagator) Propagate(prog *sir.Program) int {
	if p.missing == nil {
		p.missing = make(map[string]struct{})
	}

	var rounds int
	for {
		rounds++
		var changed bool
		before := p.Registry.Len()
		for _, fn := range prog.Bodies() {
			for _, site := range Sites(fn, p.Registry, nil, p.Reports) {
				if p.Classifier.Classify(site.Stmt, site.Operand) >= intentional.EndIntentional {
					continue
				}
				w := walker{p: p, fn: fn, parent: site.Node, seen: make(map[sir.ValueID]struct{})}
				w.walk(site.Value)
				changed = changed || w.changed
			}
		}
		if !changed && p.Registry.Len() == before {
			break
		}
	}

	p.Log.WithFields(logrus.Fields{
		"rounds": rounds,
		"nodes":  p.Registry.Len(),
	}).Debug("propagation done")
	return rounds
}

type walker struct {
	p       *Propagator
	fn      *sir.Func
	parent  *registry.Node
	seen    map[sir.ValueID]struct{}
	changed bool
}

func (w *walker) walk(v *sir.Value) {
	if _, ok := w.seen[v.ID]; ok {
		return
	}
	w.seen[v.ID] = struct{}{}

	if v.Param > 0 {
		w.link(w.p.Registry.LookupOrCreate(w.fn, v.Param, registry.Unmarked))
		return
	}
	s := v.Def
	if s == nil || !v.Type.IsInt() {
		return
	}
	if w.p.Classifier.Decide(s, nil) >= intentional.EndIntentional {
		return
	}

	switch {
	case s.Op == sir.OpCall:
		if s.Callee == nil {
			return
		}
		w.link(w.p.Registry.LookupOrCreate(s.Callee, 0, registry.Unmarked))
		if s.Callee.External {
			w.p.reportMissing(s.Callee, s)
		}
	case s.Op == sir.OpConvert:
		if !s.Args[0].Type.IsInt() {
			return
		}
		w.operands(s, 1)
	case s.Op.IsShift():
		w.operands(s, 1)
	case s.Op.IsArith(), s.Op == sir.OpPhi:
		w.operands(s, len(s.Args))
	}
}

// operands walks the first n operands of s except those a marker cuts off.
func (w *walker) operands(s *sir.Stmt, n int) {
	for i, a := range s.Args[:n] {
		if w.p.Classifier.Operand(s, i+1) >= intentional.EndIntentional {
			continue
		}
		w.walk(a)
	}
}

func (w *walker) link(child *registry.Node) {
	if w.parent == nil {
		return
	}
	if w.p.Registry.AddChild(w.parent, child) {
		w.changed = true
	}
}

func (p *Propagator) reportMissing(fn *sir.Func, at *sir.Stmt) {
	if _, ok := p.missing[fn.Name]; ok {
		return
	}
	p.missing[fn.Name] = struct{}{}
	p.Reports.Report(soreport.MissingFunction, fn.Name, 0, at.Pos, "interesting return of a function without a body")
	p.Log.WithField("function", fn.Name).Info("missing function")
}
