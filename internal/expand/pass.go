// Package expand recomputes values flowing into interesting slots in double
// width arithmetic and guards the slots with bounds checks.
package expand

import (
	"github.com/sirupsen/logrus"

	"github.com/sirkon/sizeoverflow/internal/intentional"
	"github.com/sirkon/sizeoverflow/internal/registry"
	"github.com/sirkon/sizeoverflow/internal/sir"
	"github.com/sirkon/sizeoverflow/internal/soreport"
)

// DefaultReportFunc is the runtime routine reporting an overflow.
const DefaultReportFunc = "report_size_overflow"

// Context carries the state shared by every function of a unit.
type Context struct {
	Registry   *registry.Registry
	Classifier *intentional.Classifier
	Reports    *soreport.Reporter
	Log        logrus.FieldLogger

	// ReportFunc is passed to emitted report statements.
	ReportFunc string
}

// Visited holds the sets of one function rewrite. They only grow during the pass.
type Visited struct {
	// Stmts are original statements met by expansion with the mark decided
	// for them. Later traversals reuse the decision.
	Stmts map[sir.StmtID]intentional.Mark

	// MyStmts are statements created by the engine.
	MyStmts map[sir.StmtID]struct{}

	// SkipExprCasts are engine conversions widening an original value as is.
	// A check of the value reuses one available at the check point.
	SkipExprCasts map[sir.StmtID]struct{}

	// NoCastCheck are original values whose shadow is rebased on the wrapped
	// value and must not be checked.
	NoCastCheck map[sir.ValueID]struct{}
}

func newVisited() Visited {
	return Visited{
		Stmts:         make(map[sir.StmtID]intentional.Mark),
		MyStmts:       make(map[sir.StmtID]struct{}),
		SkipExprCasts: make(map[sir.StmtID]struct{}),
		NoCastCheck:   make(map[sir.ValueID]struct{}),
	}
}

// Exempt implements intentional.Exempt.
func (v *Visited) Exempt(val *sir.Value) bool {
	_, ok := v.NoCastCheck[val.ID]
	return ok
}

// Mine reports whether the statement was created by the engine.
func (v *Visited) Mine(s *sir.Stmt) bool {
	_, ok := v.MyStmts[s.ID]
	return ok
}

type shadowKind uint8

const (
	shadowLeaf shadowKind = iota + 1
	shadowDup
	shadowPhi
	shadowRebase
)

// shadow describes an engine statement computing the wide counterpart of an
// original value.
type shadow struct {
	origin sir.ValueID
	kind   shadowKind
}

// Pass rewrites a single function.
type Pass struct {
	ctx     *Context
	fn      *sir.Func
	Visited Visited

	shadows map[sir.StmtID]shadow
	memo    map[sir.ValueID]*sir.Value
}

// NewPass starts a rewrite of the function.
func (c *Context) NewPass(fn *sir.Func) *Pass {
	return &Pass{
		ctx:     c,
		fn:      fn,
		Visited: newVisited(),
		shadows: make(map[sir.StmtID]shadow),
	}
}

// insert places an engine statement at position i of block b.
func (p *Pass) insert(b *sir.Block, i int, s *sir.Stmt) *sir.Stmt {
	b.InsertAt(i, s)
	p.Visited.MyStmts[s.ID] = struct{}{}
	return s
}

// insertBefore places an engine statement right before pos.
func (p *Pass) insertBefore(pos, s *sir.Stmt) *sir.Stmt {
	return p.insert(pos.Block, pos.Index(), s)
}

// insertAfterDef places an engine statement after the definition, past the
// phi run at the block head when the definition is a phi.
func (p *Pass) insertAfterDef(def, s *sir.Stmt) *sir.Stmt {
	b := def.Block
	i := def.Index() + 1
	for i < len(b.Stmts) && b.Stmts[i].Op == sir.OpPhi {
		i++
	}
	return p.insert(b, i, s)
}

// insertAtEntry places an engine statement at the head of the function.
func (p *Pass) insertAtEntry(s *sir.Stmt) *sir.Stmt {
	return p.insert(p.fn.Entry(), 0, s)
}

func (p *Pass) track(s *sir.Stmt, origin *sir.Value, kind shadowKind) {
	p.shadows[s.ID] = shadow{origin: origin.ID, kind: kind}
}

// drop removes an engine statement nothing uses.
func (p *Pass) drop(s *sir.Stmt) {
	if s == nil || s.Block == nil || !p.Visited.Mine(s) || len(p.fn.Uses(s.Result)) > 0 {
		return
	}
	p.fn.Remove(s)
	delete(p.shadows, s.ID)
	delete(p.Visited.SkipExprCasts, s.ID)
}

// widened returns an engine conversion of v to the shadow type available
// right before pos, or nil.
func (p *Pass) widened(v *sir.Value, pos *sir.Stmt) *sir.Value {
	at := pos.Index()
	for _, u := range p.fn.Uses(v) {
		if _, ok := p.Visited.SkipExprCasts[u.ID]; !ok {
			continue
		}
		if u.Block == pos.Block && u.Index() < at && u.Result.Type == v.Type.Wide() {
			return u.Result
		}
	}
	return nil
}
