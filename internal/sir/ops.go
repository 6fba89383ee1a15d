package sir

import "fmt"

// Op is a statement operation.
type Op uint8

const (
	OpInvalid Op = iota

	// Binary arithmetic.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpShl
	OpShr
	OpAnd
	OpOr
	OpXor
	OpAndNot

	// Unary arithmetic.
	OpNeg
	OpNot
	OpConvert

	OpPhi
	OpCall
	OpCmp

	// OpOpaque produces a value the engine cannot look through (loads, field
	// accesses, tuple extraction and so on).
	OpOpaque

	// OpReport calls the runtime overflow reporter with Stmt.Site.
	OpReport

	// Terminators.
	OpJump
	OpIf
	OpReturn
	OpUnreachable
)

var opNames = map[Op]string{
	OpAdd:         "add",
	OpSub:         "sub",
	OpMul:         "mul",
	OpDiv:         "div",
	OpRem:         "rem",
	OpShl:         "shl",
	OpShr:         "shr",
	OpAnd:         "and",
	OpOr:          "or",
	OpXor:         "xor",
	OpAndNot:      "andnot",
	OpNeg:         "neg",
	OpNot:         "not",
	OpConvert:     "convert",
	OpPhi:         "phi",
	OpCall:        "call",
	OpCmp:         "cmp",
	OpOpaque:      "opaque",
	OpReport:      "report",
	OpJump:        "jump",
	OpIf:          "if",
	OpReturn:      "return",
	OpUnreachable: "unreachable",
}

func (o Op) String() string {
	v, ok := opNames[o]
	if !ok {
		return fmt.Sprintf("op(%d)", o)
	}
	return v
}

// IsBinary reports whether the op is two operand arithmetic.
func (o Op) IsBinary() bool {
	return o >= OpAdd && o <= OpAndNot
}

// IsUnary reports whether the op is one operand arithmetic, conversions included.
func (o Op) IsUnary() bool {
	return o >= OpNeg && o <= OpConvert
}

// IsArith reports whether the op is duplicated by the engine.
func (o Op) IsArith() bool {
	return o.IsBinary() || o.IsUnary()
}

// IsShift reports whether the second operand is a shift count.
func (o Op) IsShift() bool {
	return o == OpShl || o == OpShr
}

// IsTerminator reports whether the op ends a block.
func (o Op) IsTerminator() bool {
	return o >= OpJump
}

// CmpOp is a comparison predicate.
type CmpOp uint8

const (
	CmpEq CmpOp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

func (c CmpOp) String() string {
	switch c {
	case CmpEq:
		return "eq"
	case CmpNe:
		return "ne"
	case CmpLt:
		return "lt"
	case CmpLe:
		return "le"
	case CmpGt:
		return "gt"
	case CmpGe:
		return "ge"
	default:
		return fmt.Sprintf("cmp(%d)", c)
	}
}
