package sir

import (
	"errors"
	"math/big"
	"testing"
)

func TestTypeWrap(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		in   int64
		want int64
	}{
		{name: "u8 in range", typ: U8, in: 200, want: 200},
		{name: "u8 wraps", typ: U8, in: 300, want: 44},
		{name: "u8 negative", typ: U8, in: -1, want: 255},
		{name: "i8 wraps to negative", typ: I8, in: 200, want: -56},
		{name: "i8 min", typ: I8, in: -128, want: -128},
		{name: "i16 wraps", typ: I16, in: 32768, want: -32768},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.typ.Wrap(big.NewInt(tt.in))
			if got.Int64() != tt.want {
				t.Errorf("want %d, got %s", tt.want, got)
			}
		})
	}

	if U32.Wide() != I64 {
		t.Errorf("u32 must widen to i64, got %s", U32.Wide())
	}
	if !I8.Fits(big.NewInt(-128)) || I8.Fits(big.NewInt(128)) {
		t.Error("i8 range check is broken")
	}
}

func TestInterpLoop(t *testing.T) {
	// sum(n) = 0 + 1 + ... + n-1 computed in u8.
	f := NewFunc("sum", []Type{U8}, U8)
	entry := f.NewBlock()
	loop := f.NewBlock()
	body := f.NewBlock()
	exit := f.NewBlock()

	entry.Jump(loop)
	i := loop.Phi(U8)
	acc := loop.Phi(U8)
	cond := loop.Compare(CmpLt, i, f.Params[0])
	loop.If(cond, body, exit)
	nacc := body.Binary(OpAdd, acc, i)
	ni := body.Binary(OpAdd, i, Const(f, U8, 1))
	body.Jump(loop)
	i.SetEdges(Const(f, U8, 0), ni)
	acc.SetEdges(Const(f, U8, 0), nacc)
	exit.Return(acc)

	var in Interp
	res, err := in.Run(f, big.NewInt(10))
	if err != nil {
		t.Fatal(err)
	}
	if res[0].Int64() != 45 {
		t.Fatalf("want 45, got %s\n%s", res[0], f.Format())
	}

	// 0 + ... + 29 = 435 wraps to 179.
	res, err = in.Run(f, big.NewInt(30))
	if err != nil {
		t.Fatal(err)
	}
	if res[0].Int64() != 179 {
		t.Fatalf("want 179, got %s", res[0])
	}
}

func TestSplitBeforeKeepsEdges(t *testing.T) {
	f := NewFunc("abs", []Type{I32}, I32)
	entry := f.NewBlock()
	neg := f.NewBlock()
	join := f.NewBlock()

	cond := entry.Compare(CmpLt, f.Params[0], Const(f, I32, 0))
	entry.If(cond, neg, join)
	n := neg.Neg(f.Params[0])
	neg.Jump(join)
	res := join.Phi(I32, f.Params[0], n)
	ret := join.Return(res)

	// Split the negation block right at its jump and route through a check.
	jump := neg.Terminator()
	cont := f.SplitBefore(jump)
	if len(neg.Succs) != 0 || neg.Terminator() != nil {
		t.Fatal("split block must lose its terminator and successors")
	}
	if join.Preds[1] != cont {
		t.Fatalf("join must now be entered from the continuation block")
	}
	fault := f.NewBlock()
	fault.Report(ReportSite{Routine: "report", Func: "abs", Slot: 0})
	fault.Unreachable()
	bad := neg.Compare(CmpEq, n, Const(f, I32, -2147483648))
	neg.If(bad, fault, cont)

	if ret.Block != join {
		t.Fatal("unrelated statements must stay in place")
	}

	var in Interp
	out, err := in.Run(f, big.NewInt(-5))
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Int64() != 5 {
		t.Fatalf("want 5, got %s\n%s", out[0], f.Format())
	}

	_, err = in.Run(f, big.NewInt(-2147483648))
	var trap *Trap
	if !errors.As(err, &trap) {
		t.Fatalf("expected a trap, got %v", err)
	}
	if trap.Site.Func != "abs" || trap.Site.Slot != 0 {
		t.Fatalf("unexpected trap site %s", trap.Site)
	}
}

func TestReplaceAllUsesAndRemove(t *testing.T) {
	f := NewFunc("f", []Type{U16, U16}, U16)
	b := f.NewBlock()
	x := b.Binary(OpAdd, f.Params[0], f.Params[1])
	y := b.Binary(OpAdd, f.Params[0], f.Params[1])
	z := b.Binary(OpMul, x, y)
	b.Return(z)

	if n := f.ReplaceAllUses(y, x); n != 1 {
		t.Fatalf("expected one rewritten operand, got %d", n)
	}
	f.Remove(y.Def)
	if y.Def.Index() != -1 {
		t.Fatal("removed statement must be detached")
	}
	if len(f.Uses(x)) != 1 || z.Def.Args[1] != x {
		t.Fatalf("unexpected uses after rewrite\n%s", f.Format())
	}
	if len(b.Stmts) != 3 {
		t.Fatalf("unexpected block size %d", len(b.Stmts))
	}
}
