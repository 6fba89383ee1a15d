// Package ssair translates golang.org/x/tools/go/ssa functions into SIR and
// collects the size overflow attributes and markers of the source.
package ssair

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"math/big"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/tools/go/ssa"

	"github.com/sirkon/sizeoverflow/internal/cloneargs"
	"github.com/sirkon/sizeoverflow/internal/intentional"
	"github.com/sirkon/sizeoverflow/internal/sir"
)

// MakeSliceFunc is the function make([]T, len, cap) is translated into a
// call of. Both slots are sizes.
const MakeSliceFunc = "runtime.makeslice"

// Translator turns SSA functions of one package into SIR.
type Translator struct {
	Fset  *token.FileSet
	Files []*ast.File
	Sizes types.Sizes
	Log   logrus.FieldLogger
}

// Unit is the translated package.
type Unit struct {
	Program *sir.Program
	Marks   *intentional.Marks

	funcs map[*ssa.Function]*sir.Func
}

// Func returns the SIR counterpart of an SSA function.
func (u *Unit) Func(fn *ssa.Function) *sir.Func {
	return u.funcs[fn]
}

// Translate builds SIR bodies of the given functions. Callees outside of the
// list become external functions.
func (t *Translator) Translate(funcs []*ssa.Function) (*Unit, error) {
	tr := &translation{
		Translator: t,
		unit: &Unit{
			Program: sir.NewProgram(),
			Marks:   intentional.NewMarks(),
			funcs:   make(map[*ssa.Function]*sir.Func),
		},
	}
	if tr.Sizes == nil {
		tr.Sizes = types.SizesFor("gc", "amd64")
	}
	if tr.Log == nil {
		tr.Log = logrus.StandardLogger()
	}

	for _, fn := range funcs {
		f := tr.function(fn)
		if decl, ok := fn.Syntax().(*ast.FuncDecl); ok {
			attrs, err := parseDirectives(decl.Doc)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", t.Fset.Position(decl.Pos()), err)
			}
			f.Attrs = attrs
		}
	}
	for _, fn := range funcs {
		if len(fn.Blocks) == 0 {
			continue
		}
		tr.body(fn, tr.function(fn))
	}

	if err := tr.markers(funcs); err != nil {
		return nil, err
	}
	return tr.unit, nil
}

type translation struct {
	*Translator
	unit *Unit
}

// function returns the SIR function standing for fn, declaring it on the
// first call.
func (tr *translation) function(fn *ssa.Function) *sir.Func {
	if f, ok := tr.unit.funcs[fn]; ok {
		return f
	}

	sig := fn.Signature
	var params []sir.Type
	if recv := sig.Recv(); recv != nil {
		params = append(params, tr.typ(recv.Type()))
	}
	for i := 0; i < sig.Params().Len(); i++ {
		params = append(params, tr.typ(sig.Params().At(i).Type()))
	}
	var results []sir.Type
	for i := 0; i < sig.Results().Len(); i++ {
		results = append(results, tr.typ(sig.Results().At(i).Type()))
	}

	f := sir.NewFunc(fn.String(), params, results...)
	f.Pos = fn.Pos()
	tr.unit.funcs[fn] = f
	tr.unit.Program.Add(f)

	switch {
	case fn.Origin() != nil:
		f.CloneOf = tr.function(fn.Origin())
	case strings.HasSuffix(fn.Name(), "$bound"):
		// The receiver is bound, the wrapper takes the rest.
		f.Artificial = true
		if m := method(fn); m != nil {
			f.CloneOf = tr.function(m)
			f.Skip = cloneargs.NewSkipSet(1)
		}
	case strings.HasSuffix(fn.Name(), "$thunk"):
		f.Artificial = true
		if m := method(fn); m != nil {
			f.CloneOf = tr.function(m)
		}
	case fn.Synthetic != "":
		f.Artificial = true
	}
	return f
}

func method(fn *ssa.Function) *ssa.Function {
	obj, ok := fn.Object().(*types.Func)
	if !ok {
		return nil
	}
	m := fn.Prog.FuncValue(obj)
	if m == fn {
		return nil
	}
	return m
}

func (tr *translation) typ(t types.Type) sir.Type {
	b, ok := t.Underlying().(*types.Basic)
	if !ok {
		return sir.Other
	}

	info := b.Info()
	switch {
	case info&types.IsUntyped != 0:
		return sir.Other
	case info&types.IsInteger != 0:
		return sir.Int(int(tr.Sizes.Sizeof(b))*8, info&types.IsUnsigned == 0)
	case info&types.IsBoolean != 0:
		return sir.Bool
	default:
		return sir.Other
	}
}

type bodyTranslation struct {
	*translation
	f      *sir.Func
	blocks []*sir.Block
	values map[ssa.Value]*sir.Value
}

func (tr *translation) body(fn *ssa.Function, f *sir.Func) {
	bt := &bodyTranslation{
		translation: tr,
		f:           f,
		blocks:      make([]*sir.Block, len(fn.Blocks)),
		values:      make(map[ssa.Value]*sir.Value),
	}
	for i, p := range fn.Params {
		bt.values[p] = f.Params[i]
	}
	for i := range fn.Blocks {
		bt.blocks[i] = f.NewBlock()
	}

	// Phis go first so that back edges can refer to them.
	var phis []*ssa.Phi
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			phi, ok := instr.(*ssa.Phi)
			if !ok {
				continue
			}
			v := bt.blocks[b.Index].Phi(tr.typ(phi.Type()))
			v.Def.Pos = phi.Pos()
			bt.values[phi] = v
			phis = append(phis, phi)
		}
	}

	// Definitions come before uses in dominator order. Blocks unreachable from
	// the entry, like the recover block, follow.
	seen := make([]bool, len(fn.Blocks))
	order := fn.DomPreorder()
	for _, b := range order {
		seen[b.Index] = true
	}
	for _, b := range fn.Blocks {
		if !seen[b.Index] {
			order = append(order, b)
		}
	}
	for _, b := range order {
		for _, instr := range b.Instrs {
			bt.instr(b, instr)
		}
	}

	for _, phi := range phis {
		bt.edges(phi)
	}
}

func (bt *bodyTranslation) instr(b *ssa.BasicBlock, instr ssa.Instruction) {
	sb := bt.blocks[b.Index]

	var s *sir.Stmt
	switch in := instr.(type) {
	case *ssa.Phi, *ssa.DebugRef:
		return
	case *ssa.ChangeType:
		bt.values[in] = bt.operand(in.X)
		return
	case *ssa.BinOp:
		s = bt.binOp(sb, in)
	case *ssa.UnOp:
		s = bt.unOp(sb, in)
	case *ssa.Convert:
		x, to := bt.operand(in.X), bt.typ(in.Type())
		if x.Type.IsInt() && to.IsInt() {
			s = sb.Convert(x, to).Def
		} else {
			s = sb.Opaque(to, x).Def
		}
	case *ssa.Call:
		s = bt.call(sb, in)
	case *ssa.MakeSlice:
		s = sb.Call(bt.makeSlice(), bt.operand(in.Len), bt.operand(in.Cap))
	case *ssa.Return:
		s = sb.Return(bt.operands(in.Results)...)
	case *ssa.If:
		s = sb.If(bt.operand(in.Cond), bt.blocks[b.Succs[0].Index], bt.blocks[b.Succs[1].Index])
	case *ssa.Jump:
		s = sb.Jump(bt.blocks[b.Succs[0].Index])
	case *ssa.Panic:
		s = sb.Unreachable()
	default:
		v, ok := instr.(ssa.Value)
		if !ok {
			return
		}
		s = sb.Opaque(bt.typ(v.Type())).Def
	}

	s.Pos = instr.Pos()
	if v, ok := instr.(ssa.Value); ok && s.Result != nil {
		s.Result.Name = v.Name()
		bt.values[v] = s.Result
	}
}

var binOps = map[token.Token]sir.Op{
	token.ADD:     sir.OpAdd,
	token.SUB:     sir.OpSub,
	token.MUL:     sir.OpMul,
	token.QUO:     sir.OpDiv,
	token.REM:     sir.OpRem,
	token.SHL:     sir.OpShl,
	token.SHR:     sir.OpShr,
	token.AND:     sir.OpAnd,
	token.OR:      sir.OpOr,
	token.XOR:     sir.OpXor,
	token.AND_NOT: sir.OpAndNot,
}

var cmpOps = map[token.Token]sir.CmpOp{
	token.EQL: sir.CmpEq,
	token.NEQ: sir.CmpNe,
	token.LSS: sir.CmpLt,
	token.LEQ: sir.CmpLe,
	token.GTR: sir.CmpGt,
	token.GEQ: sir.CmpGe,
}

func (bt *bodyTranslation) binOp(sb *sir.Block, in *ssa.BinOp) *sir.Stmt {
	x, y := bt.operand(in.X), bt.operand(in.Y)
	if x.Type.IsInt() && y.Type.IsInt() {
		if op, ok := binOps[in.Op]; ok {
			return sb.Binary(op, x, y).Def
		}
		if c, ok := cmpOps[in.Op]; ok {
			return sb.Compare(c, x, y).Def
		}
	}
	return sb.Opaque(bt.typ(in.Type()), x, y).Def
}

func (bt *bodyTranslation) unOp(sb *sir.Block, in *ssa.UnOp) *sir.Stmt {
	x := bt.operand(in.X)
	if x.Type.IsInt() {
		switch in.Op {
		case token.SUB:
			return sb.Neg(x).Def
		case token.XOR:
			return sb.Not(x).Def
		}
	}
	return sb.Opaque(bt.typ(in.Type()), x).Def
}

func (bt *bodyTranslation) call(sb *sir.Block, in *ssa.Call) *sir.Stmt {
	common := in.Common()
	callee := common.StaticCallee()
	args := bt.operands(common.Args)
	if callee == nil {
		return sb.Opaque(bt.typ(in.Type()), args...).Def
	}
	return sb.Call(bt.function(callee), args...)
}

func (bt *bodyTranslation) makeSlice() *sir.Func {
	if f := bt.unit.Program.Lookup(MakeSliceFunc); f != nil {
		return f
	}
	f := sir.NewFunc(MakeSliceFunc, []sir.Type{sir.I64, sir.I64}, sir.Other)
	f.Artificial = true
	bt.unit.Program.Add(f)
	return f
}

// edges sets incoming values of a phi in the order of SIR predecessors.
func (bt *bodyTranslation) edges(phi *ssa.Phi) {
	b := phi.Block()
	sb := bt.blocks[b.Index]

	used := make([]bool, len(b.Preds))
	edges := make([]*sir.Value, len(sb.Preds))
	for i, p := range sb.Preds {
		for j, q := range b.Preds {
			if used[j] || q.Index != p.Index {
				continue
			}
			used[j] = true
			edges[i] = bt.operand(phi.Edges[j])
			break
		}
	}
	bt.values[phi].SetEdges(edges...)
}

func (bt *bodyTranslation) operands(vs []ssa.Value) []*sir.Value {
	res := make([]*sir.Value, len(vs))
	for i, v := range vs {
		res[i] = bt.operand(v)
	}
	return res
}

// operand returns the SIR value of v. Globals, free variables and other values
// without a definition in the function become inputs.
func (bt *bodyTranslation) operand(v ssa.Value) *sir.Value {
	if sv, ok := bt.values[v]; ok {
		return sv
	}

	t := bt.typ(v.Type())
	var sv *sir.Value
	if c, ok := v.(*ssa.Const); ok && t.IsInt() && c.Value != nil {
		sv = bt.f.NewConst(t, constInt(c.Value))
	} else {
		sv = bt.f.NewInput(t, v.Name())
	}
	bt.values[v] = sv
	return sv
}

func constInt(v constant.Value) *big.Int {
	switch x := constant.Val(constant.ToInt(v)).(type) {
	case int64:
		return big.NewInt(x)
	case *big.Int:
		return x
	default:
		return new(big.Int)
	}
}

// markers applies marker comments to the statements of the innermost
// function they are written in: the statements of the same line, or of the
// next line having any when the comment is on a line of its own.
func (tr *translation) markers(funcs []*ssa.Function) error {
	idx := newSpanIndex(funcs)
	for _, file := range tr.Files {
		for _, cg := range file.Comments {
			for _, c := range cg.List {
				text, ok := markerText(c)
				if !ok {
					continue
				}
				pos := tr.Fset.Position(c.Pos())
				m, err := intentional.ParseMarker(text)
				if err != nil {
					return fmt.Errorf("%s: %w", pos, err)
				}

				fn := idx.Innermost(c.Pos())
				if fn == nil {
					tr.Log.WithField("position", pos).Warn("size overflow marker outside of a function")
					continue
				}
				f := tr.unit.funcs[fn]
				stmts := tr.lineStmts(f, pos.Line)
				if len(stmts) == 0 {
					tr.Log.WithField("position", pos).Warn("size overflow marker has no statement to apply to")
					continue
				}

				table := tr.unit.Marks.For(f)
				if !m.Checkpoint {
					for _, s := range stmts {
						table.Set(s.ID, m.Arg, m.Mark)
					}
					continue
				}
				// The value a line computes is the last one.
				for i := len(stmts) - 1; i >= 0; i-- {
					if s := stmts[i]; s.Result != nil && s.Result.Type.IsInt() {
						table.AddCheckpoint(s.ID, m.Arg)
						break
					}
				}
			}
		}
	}
	return nil
}

func (tr *translation) lineStmts(f *sir.Func, line int) []*sir.Stmt {
	byLine := map[int][]*sir.Stmt{}
	next := 0
	for _, s := range f.Stmts() {
		if !s.Pos.IsValid() {
			continue
		}
		l := tr.Fset.Position(s.Pos).Line
		if l < line {
			continue
		}
		byLine[l] = append(byLine[l], s)
		if next == 0 || l < next {
			next = l
		}
	}
	return byLine[next]
}
