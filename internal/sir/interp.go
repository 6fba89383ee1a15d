package sir

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrUnreachable is returned when execution hits an unreachable statement
// that was not preceded by an overflow report.
var ErrUnreachable = errors.New("unreachable executed")

// ErrStepLimit is returned when execution exceeds Interp.MaxSteps.
var ErrStepLimit = errors.New("step limit exceeded")

// Trap is returned when an instrumented program reports an overflow and aborts.
type Trap struct {
	Site ReportSite
}

func (t *Trap) Error() string {
	return fmt.Sprintf("size overflow detected in %s slot %d", t.Site.Func, t.Site.Slot)
}

// Interp evaluates SIR with the wrap-around semantics of each value type. It
// exists to execute instrumented code in tests and to validate rewrites.
type Interp struct {
	// Extern evaluates calls to functions without a body and dynamic calls
	// (callee is nil then). Returning nil results yields zero values.
	Extern func(callee *Func, args []*big.Int) ([]*big.Int, error)

	// Opaque evaluates opaque statements. Zero is used when nil.
	Opaque func(s *Stmt, args []*big.Int) *big.Int

	// MaxSteps bounds executed statements; zero means one million.
	MaxSteps int

	steps int
}

// Run calls fn with the given arguments.
func (in *Interp) Run(fn *Func, args ...*big.Int) ([]*big.Int, error) {
	in.steps = 0
	return in.call(fn, args)
}

func (in *Interp) call(fn *Func, args []*big.Int) ([]*big.Int, error) {
	if fn.External || len(fn.Blocks) == 0 {
		if in.Extern == nil {
			return nil, fmt.Errorf("call external function %s: no extern handler", fn.Name)
		}
		return in.Extern(fn, args)
	}
	if len(args) != len(fn.Params) {
		return nil, fmt.Errorf("call %s: want %d arguments, got %d", fn.Name, len(fn.Params), len(args))
	}

	fr := &frame{env: make(map[ValueID]*big.Int)}
	for i, p := range fn.Params {
		fr.env[p.ID] = p.Type.Wrap(args[i])
	}

	limit := in.MaxSteps
	if limit == 0 {
		limit = 1_000_000
	}

	var prev *Block
	block := fn.Entry()
	for {
		next, results, done, err := in.block(fr, prev, block, limit)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fn.Name, err)
		}
		if done {
			return results, nil
		}
		prev, block = block, next
	}
}

type frame struct {
	env    map[ValueID]*big.Int
	report *ReportSite
}

func (fr *frame) get(v *Value) (*big.Int, error) {
	if v.Const != nil {
		return v.Const, nil
	}
	x, ok := fr.env[v.ID]
	if !ok {
		return nil, fmt.Errorf("value %s used before definition", v)
	}
	return x, nil
}

func (in *Interp) block(fr *frame, prev, b *Block, limit int) (next *Block, results []*big.Int, done bool, err error) {
	// Phis at the block head read their inputs simultaneously.
	phis := make(map[ValueID]*big.Int)
	for _, s := range b.Stmts {
		if s.Op != OpPhi {
			continue
		}
		j := b.predIndex(prev)
		if j < 0 || j >= len(s.Args) {
			return nil, nil, false, fmt.Errorf("phi %s has no edge from block %d", s.Result, blockIndex(prev))
		}
		x, err := fr.get(s.Args[j])
		if err != nil {
			return nil, nil, false, err
		}
		phis[s.Result.ID] = s.Result.Type.Wrap(x)
	}
	for id, x := range phis {
		fr.env[id] = x
	}

	for _, s := range b.Stmts {
		in.steps++
		if in.steps > limit {
			return nil, nil, false, ErrStepLimit
		}
		if s.Op == OpPhi {
			continue
		}

		args := make([]*big.Int, len(s.Args))
		for i, a := range s.Args {
			if args[i], err = fr.get(a); err != nil {
				return nil, nil, false, err
			}
		}

		switch s.Op {
		case OpJump:
			return b.Succs[0], nil, false, nil
		case OpIf:
			if args[0].Sign() != 0 {
				return b.Succs[0], nil, false, nil
			}
			return b.Succs[1], nil, false, nil
		case OpReturn:
			return nil, args, true, nil
		case OpUnreachable:
			if fr.report != nil {
				return nil, nil, false, &Trap{Site: *fr.report}
			}
			return nil, nil, false, ErrUnreachable
		case OpReport:
			fr.report = s.Site
			continue
		}

		res, err := in.eval(s, args)
		if err != nil {
			return nil, nil, false, err
		}
		if s.Result != nil {
			fr.env[s.Result.ID] = s.Result.Type.Wrap(res)
		}
	}

	return nil, nil, false, fmt.Errorf("block %d falls through without a terminator", b.Index)
}

func (in *Interp) eval(s *Stmt, args []*big.Int) (*big.Int, error) {
	r := new(big.Int)
	switch s.Op {
	case OpAdd:
		return r.Add(args[0], args[1]), nil
	case OpSub:
		return r.Sub(args[0], args[1]), nil
	case OpMul:
		return r.Mul(args[0], args[1]), nil
	case OpDiv:
		if args[1].Sign() == 0 {
			return nil, errors.New("integer divide by zero")
		}
		return r.Quo(args[0], args[1]), nil
	case OpRem:
		if args[1].Sign() == 0 {
			return nil, errors.New("integer divide by zero")
		}
		return r.Rem(args[0], args[1]), nil
	case OpShl, OpShr:
		n, err := shiftCount(args[1], s.Result.Type)
		if err != nil {
			return nil, err
		}
		if s.Op == OpShl {
			return r.Lsh(args[0], n), nil
		}
		return r.Rsh(args[0], n), nil
	case OpAnd:
		return r.And(args[0], args[1]), nil
	case OpOr:
		return r.Or(args[0], args[1]), nil
	case OpXor:
		return r.Xor(args[0], args[1]), nil
	case OpAndNot:
		return r.AndNot(args[0], args[1]), nil
	case OpNeg:
		return r.Neg(args[0]), nil
	case OpNot:
		return r.Not(args[0]), nil
	case OpConvert:
		return r.Set(args[0]), nil
	case OpCmp:
		if compare(s.Cmp, args[0].Cmp(args[1])) {
			return r.SetInt64(1), nil
		}
		return r, nil
	case OpCall:
		res, err := in.invoke(s, args)
		if err != nil {
			return nil, err
		}
		if len(res) == 0 || res[0] == nil {
			return r, nil
		}
		return res[0], nil
	case OpOpaque:
		if in.Opaque == nil {
			return r, nil
		}
		if x := in.Opaque(s, args); x != nil {
			return x, nil
		}
		return r, nil
	default:
		return nil, fmt.Errorf("cannot evaluate %s", s.Op)
	}
}

func (in *Interp) invoke(s *Stmt, args []*big.Int) ([]*big.Int, error) {
	if s.Callee == nil {
		if in.Extern == nil {
			return nil, errors.New("dynamic call without extern handler")
		}
		return in.Extern(nil, args)
	}
	return in.call(s.Callee, args)
}

func shiftCount(n *big.Int, t Type) (uint, error) {
	if n.Sign() < 0 {
		return 0, errors.New("negative shift amount")
	}
	if !n.IsUint64() || n.Uint64() > uint64(t.Bits) {
		// Everything is shifted out anyway.
		return uint(t.Bits), nil
	}
	return uint(n.Uint64()), nil
}

func compare(c CmpOp, sign int) bool {
	switch c {
	case CmpEq:
		return sign == 0
	case CmpNe:
		return sign != 0
	case CmpLt:
		return sign < 0
	case CmpLe:
		return sign <= 0
	case CmpGt:
		return sign > 0
	case CmpGe:
		return sign >= 0
	}
	return false
}

func blockIndex(b *Block) int {
	if b == nil {
		return -1
	}
	return b.Index
}
