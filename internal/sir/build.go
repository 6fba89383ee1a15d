package sir

import (
	"math/big"

	"golang.org/x/exp/constraints"
)

// Const creates a constant from any Go integer.
func Const[T constraints.Integer](f *Func, t Type, v T) *Value {
	var b big.Int
	if v < 0 {
		b.SetInt64(int64(v))
	} else {
		b.SetUint64(uint64(v))
	}
	return f.NewConst(t, &b)
}

// Append adds a statement at the end of the block.
func (b *Block) Append(s *Stmt) *Stmt {
	s.Block = b
	b.Stmts = append(b.Stmts, s)
	return s
}

// Binary appends a binary arithmetic statement typed after x.
func (b *Block) Binary(op Op, x, y *Value) *Value {
	return b.Append(b.Func.NewStmt(op, x.Type, x, y)).Result
}

// Neg appends a negation.
func (b *Block) Neg(x *Value) *Value {
	return b.Append(b.Func.NewStmt(OpNeg, x.Type, x)).Result
}

// Not appends a bitwise complement.
func (b *Block) Not(x *Value) *Value {
	return b.Append(b.Func.NewStmt(OpNot, x.Type, x)).Result
}

// Convert appends a conversion of x to t.
func (b *Block) Convert(x *Value, t Type) *Value {
	return b.Append(b.Func.NewStmt(OpConvert, t, x)).Result
}

// Compare appends a comparison.
func (b *Block) Compare(c CmpOp, x, y *Value) *Value {
	s := b.Func.NewStmt(OpCmp, Bool, x, y)
	s.Cmp = c
	return b.Append(s).Result
}

// Opaque appends a statement producing an input the engine cannot see through.
func (b *Block) Opaque(t Type, args ...*Value) *Value {
	return b.Append(b.Func.NewStmt(OpOpaque, t, args...)).Result
}

// Phi appends a phi node. Edges follow the order of Preds and may be set later
// with SetEdges when predecessors are not known yet.
func (b *Block) Phi(t Type, edges ...*Value) *Value {
	return b.Append(b.Func.NewStmt(OpPhi, t, edges...)).Result
}

// SetEdges replaces phi incoming values.
func (v *Value) SetEdges(edges ...*Value) {
	v.Def.Args = edges
}

// Call appends a call. The result is None when the callee does not return
// exactly one value.
func (b *Block) Call(callee *Func, args ...*Value) *Stmt {
	typ := None
	if callee != nil {
		switch len(callee.Results) {
		case 0:
		case 1:
			typ = callee.Results[0]
		default:
			typ = Other
		}
	}
	s := b.Func.NewStmt(OpCall, typ, args...)
	s.Callee = callee
	return b.Append(s)
}

// Report appends a call to the runtime overflow reporter.
func (b *Block) Report(site ReportSite) *Stmt {
	s := b.Func.NewStmt(OpReport, None)
	s.Site = &site
	return b.Append(s)
}

// Return terminates the block with a return.
func (b *Block) Return(results ...*Value) *Stmt {
	return b.Append(b.Func.NewStmt(OpReturn, None, results...))
}

// Unreachable terminates the block with an abort.
func (b *Block) Unreachable() *Stmt {
	return b.Append(b.Func.NewStmt(OpUnreachable, None))
}

// Jump terminates the block with an unconditional edge to dst.
func (b *Block) Jump(dst *Block) *Stmt {
	s := b.Append(b.Func.NewStmt(OpJump, None))
	link(b, dst)
	return s
}

// If terminates the block with a conditional branch.
func (b *Block) If(cond *Value, then, els *Block) *Stmt {
	s := b.Append(b.Func.NewStmt(OpIf, None, cond))
	link(b, then)
	link(b, els)
	return s
}

func link(from, to *Block) {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}
