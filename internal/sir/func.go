package sir

import (
	"fmt"
	"go/token"
	"math/big"

	"github.com/sirkon/sizeoverflow/internal/cloneargs"
)

// ValueID identifies a value within its function.
type ValueID uint32

// StmtID identifies a statement within its function.
type StmtID uint32

// NoStmt is never assigned to a statement.
const NoStmt StmtID = 0

// Value is either a parameter, a constant, an external input (no definition)
// or the result of a statement.
type Value struct {
	ID   ValueID
	Name string
	Type Type

	// Def is nil for parameters, constants and external inputs.
	Def *Stmt

	// Param is the 1-based parameter slot, zero for non-parameters.
	Param int

	// Const is set for constants.
	Const *big.Int
}

// IsConst reports whether the value is a constant.
func (v *Value) IsConst() bool {
	return v.Const != nil
}

func (v *Value) String() string {
	if v.Const != nil {
		return fmt.Sprintf("%s:%s", v.Const, v.Type)
	}
	return v.Name
}

// Stmt is a single SIR statement.
type Stmt struct {
	ID     StmtID
	Op     Op
	Cmp    CmpOp
	Result *Value
	Args   []*Value

	// Callee is set for OpCall. A nil callee stands for a dynamic call.
	Callee *Func

	// Site is set for OpReport.
	Site *ReportSite

	Block *Block
	Pos   token.Pos
}

// Index returns the position of the statement in its block or -1 when the
// statement was removed.
func (s *Stmt) Index() int {
	if s.Block == nil {
		return -1
	}
	for i, x := range s.Block.Stmts {
		if x == s {
			return i
		}
	}
	return -1
}

// ReportSite is the context passed to the runtime report routine.
type ReportSite struct {
	Routine string
	Func    string
	Slot    int
}

func (r ReportSite) String() string {
	return fmt.Sprintf("%s(%s, %d)", r.Routine, r.Func, r.Slot)
}

// Block is a basic block. Terminator statements (jump, if, return,
// unreachable) are always last.
type Block struct {
	Index int
	Stmts []*Stmt
	Preds []*Block
	Succs []*Block
	Func  *Func
}

// Terminator returns the last statement when it ends the block.
func (b *Block) Terminator() *Stmt {
	if len(b.Stmts) == 0 {
		return nil
	}
	last := b.Stmts[len(b.Stmts)-1]
	if !last.Op.IsTerminator() {
		return nil
	}
	return last
}

func (b *Block) predIndex(p *Block) int {
	for i, x := range b.Preds {
		if x == p {
			return i
		}
	}
	return -1
}

// Attrs are function level source attributes.
type Attrs struct {
	// SizeOverflow lists slots declared as interesting.
	SizeOverflow []int

	// Intentional lists slots where overflow is declared deliberate.
	Intentional []int
}

// HasIntentional reports whether the slot is declared intentional.
func (a Attrs) HasIntentional(slot int) bool {
	for _, s := range a.Intentional {
		if s == slot {
			return true
		}
	}
	return false
}

// Func is a function and the arena owning its blocks, statements and values.
type Func struct {
	Name    string
	Params  []*Value
	Results []Type
	Blocks  []*Block
	Attrs   Attrs
	Pos     token.Pos

	// CloneOf links a compiler generated clone to the function it was made from.
	CloneOf *Func

	// Skip lists original slots the clone dropped.
	Skip cloneargs.SkipSet

	// Artificial marks functions synthesized by the compiler.
	Artificial bool

	// External functions have no body in the current unit.
	External bool

	// Deleted marks functions removed by the host optimizer.
	Deleted bool

	stmts  []*Stmt
	values []*Value
}

// NewFunc creates a function with parameters of the given types. The function
// has no blocks and is external until the first block is added.
func NewFunc(name string, params []Type, results ...Type) *Func {
	f := &Func{
		Name:     name,
		Results:  results,
		External: true,
	}
	for i, t := range params {
		v := f.newValue(t)
		v.Param = i + 1
		v.Name = fmt.Sprintf("p%d", i+1)
		f.Params = append(f.Params, v)
	}
	return f
}

// Original implements cloneargs.Clone.
func (f *Func) Original() cloneargs.Clone {
	if f.CloneOf == nil {
		return nil
	}
	return f.CloneOf
}

// Skipped implements cloneargs.Clone.
func (f *Func) Skipped() cloneargs.SkipSet {
	return f.Skip
}

// Entry returns the entry block or nil for an external function.
func (f *Func) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// ReturnsInt reports whether slot 0 of the function is an integer.
func (f *Func) ReturnsInt() bool {
	return len(f.Results) == 1 && f.Results[0].IsInt()
}

// SlotType returns the type of the given slot.
func (f *Func) SlotType(slot int) (Type, bool) {
	if slot == 0 {
		if len(f.Results) != 1 {
			return Other, false
		}
		return f.Results[0], true
	}
	if slot < 1 || slot > len(f.Params) {
		return Other, false
	}
	return f.Params[slot-1].Type, true
}

// Stmt returns the statement with the given ID.
func (f *Func) Stmt(id StmtID) *Stmt {
	if id == NoStmt || int(id) > len(f.stmts) {
		return nil
	}
	return f.stmts[id-1]
}

// Value returns the value with the given ID.
func (f *Func) Value(id ValueID) *Value {
	if int(id) >= len(f.values) {
		return nil
	}
	return f.values[id]
}

// NumStmts returns the number of statements ever created in the arena.
func (f *Func) NumStmts() int {
	return len(f.stmts)
}

// Stmts lists live statements in block order.
func (f *Func) Stmts() []*Stmt {
	var res []*Stmt
	for _, b := range f.Blocks {
		res = append(res, b.Stmts...)
	}
	return res
}

// NewBlock appends an empty block.
func (f *Func) NewBlock() *Block {
	b := &Block{Index: len(f.Blocks), Func: f}
	f.Blocks = append(f.Blocks, b)
	f.External = false
	return b
}

// NewConst creates a constant of the given type. The value is wrapped into the type.
func (f *Func) NewConst(t Type, v *big.Int) *Value {
	c := f.newValue(t)
	c.Const = t.Wrap(v)
	return c
}

// NewInput creates a value without a definition standing for data the engine
// cannot see through: free variables, globals and the like.
func (f *Func) NewInput(t Type, name string) *Value {
	v := f.newValue(t)
	v.Name = name
	return v
}

// NewStmt creates a detached statement. A result value is created unless typ
// is None.
func (f *Func) NewStmt(op Op, typ Type, args ...*Value) *Stmt {
	s := &Stmt{
		ID:   StmtID(len(f.stmts) + 1),
		Op:   op,
		Args: args,
	}
	f.stmts = append(f.stmts, s)
	if typ != None {
		v := f.newValue(typ)
		v.Def = s
		s.Result = v
	}
	return s
}

func (f *Func) newValue(t Type) *Value {
	if len(f.values) == 0 {
		// ValueID 0 is reserved.
		f.values = append(f.values, nil)
	}
	v := &Value{
		ID:   ValueID(len(f.values)),
		Type: t,
	}
	v.Name = fmt.Sprintf("v%d", v.ID)
	f.values = append(f.values, v)
	return v
}

func (f *Func) String() string {
	return f.Name
}
