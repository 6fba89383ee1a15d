package ipa

import (
	"fmt"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"github.com/sirkon/sizeoverflow/internal/intentional"
	"github.com/sirkon/sizeoverflow/internal/registry"
	"github.com/sirkon/sizeoverflow/internal/sir"
	"github.com/sirkon/sizeoverflow/internal/soreport"
)

type database map[string][]int

func (d database) Slots(name string) []int { return d[name] }

type unit struct {
	prog  *sir.Program
	alloc *sir.Func
	grow  *sir.Func
	mul   *sir.Stmt
}

// newUnit builds
//
//	func grow(a, b uint32) { alloc(a * b) }
//	func main(x uint32)    { grow(x+1, count()) }
//	func narrow(x uint64)  { grow(uint32(x), 1) }
//
// with alloc and count defined elsewhere.
func newUnit() *unit {
	alloc := sir.NewFunc("pkg.alloc", []sir.Type{sir.U32})
	count := sir.NewFunc("pkg.count", nil, sir.U32)

	grow := sir.NewFunc("pkg.grow", []sir.Type{sir.U32, sir.U32})
	gb := grow.NewBlock()
	t := gb.Binary(sir.OpMul, grow.Params[0], grow.Params[1])
	gb.Call(alloc, t)
	gb.Return()

	main := sir.NewFunc("pkg.main", []sir.Type{sir.U32})
	mb := main.NewBlock()
	y := mb.Binary(sir.OpAdd, main.Params[0], sir.Const(main, sir.U32, 1))
	c := mb.Call(count)
	mb.Call(grow, y, c.Result)
	mb.Return()

	narrow := sir.NewFunc("pkg.narrow", []sir.Type{sir.U64})
	nb := narrow.NewBlock()
	nb.Call(grow, nb.Convert(narrow.Params[0], sir.U32), sir.Const(narrow, sir.U32, 1))
	nb.Return()

	return &unit{
		prog:  sir.NewProgram(alloc, count, grow, main, narrow),
		alloc: alloc,
		grow:  grow,
		mul:   t.Def,
	}
}

func graph(reg *registry.Registry) map[string][]string {
	res := make(map[string][]string)
	for _, n := range reg.Nodes() {
		key := fmt.Sprintf("%s#%d %s", n.Name, n.Num, n.Mark)
		children := []string{}
		for _, c := range reg.Children(n) {
			children = append(children, fmt.Sprintf("%s#%d", c.Name, c.Num))
		}
		slices.Sort(children)
		res[key] = children
	}
	return res
}

func newPropagator(marks *intentional.Marks, rep *soreport.Reporter) *Propagator {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return &Propagator{
		Registry:   registry.New(log),
		Classifier: intentional.New(marks, log),
		Reports:    rep.Phase(soreport.PhaseIPA),
		Log:        log,
	}
}

func TestPropagate(t *testing.T) {
	u := newUnit()
	var rep soreport.Reporter
	p := newPropagator(nil, &rep)

	p.Seed(u.prog, database{"pkg.alloc": {1}})
	p.Propagate(u.prog)

	want := map[string][]string{
		"pkg.alloc#1 checked":   {"pkg.grow#1", "pkg.grow#2"},
		"pkg.grow#1 unmarked":   {"pkg.main#1", "pkg.narrow#1"},
		"pkg.grow#2 unmarked":   {"pkg.count#0"},
		"pkg.main#1 unmarked":   {},
		"pkg.narrow#1 unmarked": {},
		"pkg.count#0 unmarked":  {},
	}
	if diff := cmp.Diff(want, graph(p.Registry)); diff != "" {
		t.Errorf("registry mismatch (-want +got):\n%s", diff)
	}

	missing := rep.Kind(soreport.MissingFunction)
	if len(missing) != 1 || missing[0].Func != "pkg.count" {
		t.Errorf("expected count to be reported missing, got %v", missing)
	}

	sites := Sites(u.grow, p.Registry, nil, nil)
	if len(sites) != 1 || sites[0].Kind != SiteArg || sites[0].Func != "pkg.alloc" || sites[0].Slot != 1 {
		t.Errorf("unexpected sites of grow %+v", sites)
	}
}

func TestPropagateStopsAtIntentional(t *testing.T) {
	u := newUnit()
	marks := intentional.NewMarks()
	marks.For(u.grow).Set(u.mul.ID, intentional.NoArg, intentional.EndIntentional)

	var rep soreport.Reporter
	p := newPropagator(marks, &rep)
	p.Seed(u.prog, database{"pkg.alloc": {1}})
	p.Propagate(u.prog)

	want := map[string][]string{
		"pkg.alloc#1 checked": {},
	}
	if diff := cmp.Diff(want, graph(p.Registry)); diff != "" {
		t.Errorf("registry mismatch (-want +got):\n%s", diff)
	}
}

func TestPropagateStopsAtOperandMarker(t *testing.T) {
	u := newUnit()
	marks := intentional.NewMarks()
	marks.For(u.grow).Set(u.mul.ID, 2, intentional.EndIntentional)

	var rep soreport.Reporter
	p := newPropagator(marks, &rep)
	p.Seed(u.prog, database{"pkg.alloc": {1}})
	p.Propagate(u.prog)

	want := map[string][]string{
		"pkg.alloc#1 checked":   {"pkg.grow#1"},
		"pkg.grow#1 unmarked":   {"pkg.main#1", "pkg.narrow#1"},
		"pkg.main#1 unmarked":   {},
		"pkg.narrow#1 unmarked": {},
	}
	if diff := cmp.Diff(want, graph(p.Registry)); diff != "" {
		t.Errorf("registry mismatch (-want +got):\n%s", diff)
	}
	if missing := rep.Kind(soreport.MissingFunction); len(missing) != 0 {
		t.Errorf("count is not reached anymore, got %v", missing)
	}
}

func TestSeedAttributes(t *testing.T) {
	u := newUnit()
	u.grow.Attrs.SizeOverflow = []int{1, 2}
	u.grow.Attrs.Intentional = []int{2}
	u.alloc.Attrs.SizeOverflow = []int{0}

	var rep soreport.Reporter
	p := newPropagator(nil, &rep)
	p.Seed(u.prog, nil)
	p.Propagate(u.prog)

	want := map[string][]string{
		"pkg.grow#1 checked":    {"pkg.main#1", "pkg.narrow#1"},
		"pkg.grow#2 suppressed": {},
		"pkg.main#1 unmarked":   {},
		"pkg.narrow#1 unmarked": {},
	}
	if diff := cmp.Diff(want, graph(p.Registry)); diff != "" {
		t.Errorf("registry mismatch (-want +got):\n%s", diff)
	}
}
