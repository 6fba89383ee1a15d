package sir

import (
	"fmt"
	"math/big"
)

// Kind separates integers from everything the engine does not instrument.
type Kind uint8

const (
	KindNone Kind = iota
	KindOther
	KindInt
	KindBool
)

// Type of a SIR value. Bits and Signed only matter for KindInt.
type Type struct {
	Kind   Kind
	Bits   int
	Signed bool
}

// Predefined non-integer types. None is used for statements without a result.
var (
	None  = Type{}
	Bool  = Type{Kind: KindBool, Bits: 1}
	Other = Type{Kind: KindOther}
)

// Int returns an integer type of the given width.
func Int(bits int, signed bool) Type {
	return Type{Kind: KindInt, Bits: bits, Signed: signed}
}

// Shorthands used all over the tests and the frontend.
var (
	I8   = Int(8, true)
	I16  = Int(16, true)
	I32  = Int(32, true)
	I64  = Int(64, true)
	I128 = Int(128, true)
	U8   = Int(8, false)
	U16  = Int(16, false)
	U32  = Int(32, false)
	U64  = Int(64, false)
)

// IsInt reports whether values of the type are instrumented.
func (t Type) IsInt() bool {
	return t.Kind == KindInt
}

// Wide returns the double width signed type used to recompute values of t.
func (t Type) Wide() Type {
	return Int(t.Bits*2, true)
}

// Min returns the smallest representable value.
func (t Type) Min() *big.Int {
	if !t.Signed {
		return new(big.Int)
	}
	v := new(big.Int).Lsh(big.NewInt(1), uint(t.Bits-1))
	return v.Neg(v)
}

// Max returns the largest representable value.
func (t Type) Max() *big.Int {
	n := t.Bits
	if t.Signed {
		n--
	}
	v := new(big.Int).Lsh(big.NewInt(1), uint(n))
	return v.Sub(v, big.NewInt(1))
}

// Fits reports whether v is representable in t without wrapping.
func (t Type) Fits(v *big.Int) bool {
	return v.Cmp(t.Min()) >= 0 && v.Cmp(t.Max()) <= 0
}

// Wrap reduces v modulo 2^Bits and reinterprets it according to signedness.
func (t Type) Wrap(v *big.Int) *big.Int {
	if t.Kind == KindBool {
		if v.Sign() != 0 {
			return big.NewInt(1)
		}
		return new(big.Int)
	}

	mod := new(big.Int).Lsh(big.NewInt(1), uint(t.Bits))
	res := new(big.Int).Mod(v, mod)
	if t.Signed && res.Cmp(t.Max()) > 0 {
		res.Sub(res, mod)
	}
	return res
}

func (t Type) String() string {
	switch t.Kind {
	case KindInt:
		if t.Signed {
			return fmt.Sprintf("i%d", t.Bits)
		}
		return fmt.Sprintf("u%d", t.Bits)
	case KindBool:
		return "bool"
	default:
		return "other"
	}
}
