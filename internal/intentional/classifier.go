package intentional

import (
	"github.com/sirupsen/logrus"

	"github.com/sirkon/sizeoverflow/internal/sir"
)

// Exempt tells whether a value is already known not to need a check.
type Exempt interface {
	Exempt(v *sir.Value) bool
}

// Classifier combines explicit marks, intentional overflow attributes and
// structural patterns.
type Classifier struct {
	Marks *Marks
	Log   logrus.FieldLogger
}

// New creates a classifier over the given marks.
func New(marks *Marks, log logrus.FieldLogger) *Classifier {
	if marks == nil {
		marks = NewMarks()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Classifier{Marks: marks, Log: log}
}

// Classify returns the explicit mark of the operand arg of s. For calls the
// operand number is the callee slot, for returns it is zero.
func (c *Classifier) Classify(s *sir.Stmt, arg int) Mark {
	fn := s.Block.Func
	m := c.Marks.Lookup(fn).Get(s.ID, arg)
	return Combine(m, c.attribute(s, arg))
}

// Operand returns the mark a marker put on the operand arg of an arithmetic
// statement. Operands are numbered from 1.
func (c *Classifier) Operand(s *sir.Stmt, arg int) Mark {
	return c.Marks.Lookup(s.Block.Func).Operand(s.ID, arg)
}

// attribute checks intentional overflow attributes of the callee or of the
// function being returned from.
func (c *Classifier) attribute(s *sir.Stmt, arg int) Mark {
	switch s.Op {
	case sir.OpCall:
		if s.Callee != nil && s.Callee.Attrs.HasIntentional(arg) {
			return Yes
		}
	case sir.OpReturn:
		if s.Block.Func.Attrs.HasIntentional(0) {
			return Yes
		}
	}
	return None
}

// Decide classifies the statement defining a value met during expansion:
// explicit marks on the statement as a whole and structural patterns.
func (c *Classifier) Decide(s *sir.Stmt, exempt Exempt) Mark {
	m := c.Marks.Lookup(s.Block.Func).Get(s.ID, NoArg)
	if m != None {
		return m
	}

	switch {
	case IsCastAndConstOverflow(s):
		c.matched(s, "cast and const")
		return Yes
	case IsNegOverflow(s, exempt):
		c.matched(s, "negation")
		return Yes
	case AddMulIntentional(s) != NoSide:
		c.matched(s, "constant wraps")
		return Yes
	case IsConstPlusUnsignedSignedTruncation(s):
		c.matched(s, "const plus unsigned signed truncation")
		return Yes
	}
	return None
}

func (c *Classifier) matched(s *sir.Stmt, pattern string) {
	c.Log.WithFields(logrus.Fields{
		"function": s.Block.Func.Name,
		"stmt":     s.String(),
		"pattern":  pattern,
	}).Debug("intentional overflow pattern")
}

// IsCastAndConstOverflow matches x ± C where x is a sign changing conversion.
// The pattern computes small negative offsets through unsigned arithmetic.
func IsCastAndConstOverflow(s *sir.Stmt) bool {
	if s.Op != sir.OpAdd && s.Op != sir.OpSub {
		return false
	}
	x, c := splitConst(s)
	if c == nil || x == nil || x.Def == nil {
		return false
	}
	if x.Def.Op != sir.OpConvert {
		return false
	}
	from := x.Def.Args[0].Type
	return from.IsInt() && from.Signed != x.Type.Signed
}

// IsNegOverflow matches a negation of a constant or of an exempt value.
func IsNegOverflow(s *sir.Stmt, exempt Exempt) bool {
	if s.Op != sir.OpNeg {
		return false
	}
	x := s.Args[0]
	if x.IsConst() {
		return true
	}
	return exempt != nil && exempt.Exempt(x)
}

// AddMulIntentional matches unsigned addition or multiplication by a constant
// with the sign bit set, which is the way to subtract or negate in unsigned
// arithmetic. It returns the side of the constant.
func AddMulIntentional(s *sir.Stmt) Side {
	if s.Op != sir.OpAdd && s.Op != sir.OpMul {
		return NoSide
	}
	if s.Result == nil || !s.Result.Type.IsInt() || s.Result.Type.Signed {
		return NoSide
	}
	if isConstantOverflow(s.Args[0]) {
		return Left
	}
	if isConstantOverflow(s.Args[1]) {
		return Right
	}
	return NoSide
}

func isConstantOverflow(v *sir.Value) bool {
	if !v.IsConst() || !v.Type.IsInt() {
		return false
	}
	return v.Const.Bit(v.Type.Bits-1) == 1
}

// IsConstPlusUnsignedSignedTruncation matches (signed)((unsigned)x + C) with
// a signed x: the addition wraps by construction and the conversion back
// restores the intended value.
func IsConstPlusUnsignedSignedTruncation(s *sir.Stmt) bool {
	if s.Op != sir.OpConvert || s.Result == nil || !s.Result.Type.IsInt() || !s.Result.Type.Signed {
		return false
	}
	u := s.Args[0]
	if !u.Type.IsInt() || u.Type.Signed || u.Def == nil || u.Def.Op != sir.OpAdd {
		return false
	}
	x, c := splitConst(u.Def)
	if c == nil || x == nil || x.Def == nil || x.Def.Op != sir.OpConvert {
		return false
	}
	src := x.Def.Args[0].Type
	return src.IsInt() && src.Signed
}

// splitConst returns the non constant and constant operands of a binary
// statement.
func splitConst(s *sir.Stmt) (x, c *sir.Value) {
	if len(s.Args) != 2 {
		return nil, nil
	}
	switch a, b := s.Args[0], s.Args[1]; {
	case a.IsConst() && !b.IsConst():
		return b, a
	case b.IsConst() && !a.IsConst():
		return a, b
	}
	return nil, nil
}
