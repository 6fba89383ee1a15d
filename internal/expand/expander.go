package expand

import (
	"github.com/sirupsen/logrus"

	"github.com/sirkon/sizeoverflow/internal/intentional"
	"github.com/sirkon/sizeoverflow/internal/sir"
)

// Expand returns the wide shadow of v, creating the statements computing it.
// Every call starts a new traversal: values met again within it reuse their
// shadow, values met in earlier traversals get new ones which Dedup merges.
func (p *Pass) Expand(v *sir.Value) (*sir.Value, error) {
	p.memo = make(map[sir.ValueID]*sir.Value)
	return p.expand(v)
}

func (p *Pass) expand(v *sir.Value) (*sir.Value, error) {
	if w, ok := p.memo[v.ID]; ok {
		return w, nil
	}
	if !v.Type.IsInt() {
		return nil, internalErr(p.fn, v.Def, "expand non integer value %s of type %s", v, v.Type)
	}

	w, err := p.expandValue(v)
	if err != nil {
		return nil, err
	}
	p.memo[v.ID] = w
	return w, nil
}

func (p *Pass) expandValue(v *sir.Value) (*sir.Value, error) {
	wide := v.Type.Wide()
	if v.IsConst() {
		return p.fn.NewConst(wide, v.Const), nil
	}

	s := v.Def
	if s == nil {
		return p.leaf(v), nil
	}
	if s.Block == nil {
		return nil, internalErr(p.fn, s, "definition of %s was removed", v)
	}
	if p.Visited.Mine(s) {
		return p.leaf(v), nil
	}

	mark, seen := p.Visited.Stmts[s.ID]
	if !seen {
		mark = p.ctx.Classifier.Decide(s, &p.Visited)
		p.Visited.Stmts[s.ID] = mark
	}
	if mark >= intentional.EndIntentional {
		p.ctx.Log.WithFields(logrus.Fields{
			"function": p.fn.Name,
			"value":    v.String(),
			"mark":     mark.String(),
		}).Debug("expansion stops at intentional value")
		return p.leaf(v), nil
	}

	var w *sir.Value
	var err error
	switch {
	case s.Op == sir.OpCall, s.Op == sir.OpOpaque:
		return p.leaf(v), nil
	case s.Op == sir.OpPhi:
		return p.expandPhi(v)
	case s.Op == sir.OpConvert:
		if !s.Args[0].Type.IsInt() {
			return p.leaf(v), nil
		}
		w, err = p.expandConvert(v)
	case s.Op.IsBinary(), s.Op == sir.OpNeg:
		w, err = p.dup(v)
	case s.Op == sir.OpNot:
		w, err = p.dup(v)
		if err == nil && !v.Type.Signed {
			// Complement of an unsigned value always leaves the range.
			mark = intentional.Yes
			p.Visited.Stmts[s.ID] = mark
		}
	default:
		return nil, internalErr(p.fn, s, "cannot duplicate %s", s.Op)
	}
	if err != nil {
		return nil, err
	}

	if mark == intentional.Yes {
		w = p.rebase(v, w)
	}
	return w, nil
}

// leaf reinterprets the narrow value in the wide type. It is placed right
// after the definition, or at the function entry for values without one.
func (p *Pass) leaf(v *sir.Value) *sir.Value {
	s := p.fn.NewStmt(sir.OpConvert, v.Type.Wide(), v)
	if v.Def != nil {
		p.insertAfterDef(v.Def, s)
	} else {
		p.insertAtEntry(s)
	}
	p.track(s, v, shadowLeaf)
	p.Visited.SkipExprCasts[s.ID] = struct{}{}
	return s.Result
}

// operand expands the operand i of s. A marker on the operand stops the
// expansion there and the operand is taken as is.
func (p *Pass) operand(s *sir.Stmt, i int) (*sir.Value, error) {
	a := s.Args[i]
	if a.IsConst() {
		return p.expand(a)
	}
	if m := p.ctx.Classifier.Operand(s, i+1); m != intentional.None {
		p.ctx.Log.WithFields(logrus.Fields{
			"function": p.fn.Name,
			"stmt":     s.String(),
			"operand":  i + 1,
			"mark":     m.String(),
		}).Debug("operand is not expanded")
		return p.leaf(a), nil
	}
	return p.expand(a)
}

// dup repeats the arithmetic of the definition over operand shadows. Shift
// counts are used as is.
func (p *Pass) dup(v *sir.Value) (*sir.Value, error) {
	s := v.Def
	args := make([]*sir.Value, len(s.Args))
	for i, a := range s.Args {
		if i == 1 && s.Op.IsShift() {
			args[i] = a
			continue
		}
		w, err := p.operand(s, i)
		if err != nil {
			return nil, err
		}
		args[i] = w
	}

	d := p.fn.NewStmt(s.Op, v.Type.Wide(), args...)
	d.Pos = s.Pos
	p.insertAfterDef(s, d)
	p.track(d, v, shadowDup)
	return d.Result, nil
}

// expandConvert brings the shadow of the operand to the shadow type of the
// result. A truncation keeps the bits it drops in the shadow, so the check of
// the result sees them.
func (p *Pass) expandConvert(v *sir.Value) (*sir.Value, error) {
	s := v.Def
	w, err := p.operand(s, 0)
	if err != nil {
		return nil, err
	}
	wide := v.Type.Wide()
	if w.Type == wide {
		return w, nil
	}

	d := p.fn.NewStmt(sir.OpConvert, wide, w)
	d.Pos = s.Pos
	p.insertAfterDef(s, d)
	p.track(d, v, shadowDup)
	return d.Result, nil
}

// expandPhi duplicates the merge over shadows of incoming values. The shadow
// phi is memoized before its edges are expanded so loops terminate.
func (p *Pass) expandPhi(v *sir.Value) (*sir.Value, error) {
	s := v.Def
	b := s.Block
	i := 0
	for i < len(b.Stmts) && b.Stmts[i].Op == sir.OpPhi {
		i++
	}

	d := p.fn.NewStmt(sir.OpPhi, v.Type.Wide())
	d.Pos = s.Pos
	p.insert(b, i, d)
	p.track(d, v, shadowPhi)
	p.memo[v.ID] = d.Result

	edges := make([]*sir.Value, len(s.Args))
	for j, a := range s.Args {
		w, err := p.expand(a)
		if err != nil {
			return nil, err
		}
		edges[j] = w
	}
	d.Result.SetEdges(edges...)
	return d.Result, nil
}

// rebase makes the shadow equal to the wrapped narrow result, so the
// intentional overflow does not trip checks of enclosing expressions.
func (p *Pass) rebase(v, w *sir.Value) *sir.Value {
	t := p.fn.NewStmt(sir.OpConvert, v.Type, w)
	if w.Def != nil {
		p.insertAfterDef(w.Def, t)
	} else {
		p.insertAfterDef(v.Def, t)
	}
	ext := p.fn.NewStmt(sir.OpConvert, v.Type.Wide(), t.Result)
	p.insertAfterDef(t, ext)
	p.track(ext, v, shadowRebase)
	p.Visited.NoCastCheck[v.ID] = struct{}{}
	return ext.Result
}
