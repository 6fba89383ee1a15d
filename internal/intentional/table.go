package intentional

import (
	"cmp"
	"slices"

	"github.com/sirkon/sizeoverflow/internal/sir"
)

type tableKey struct {
	stmt sir.StmtID
	arg  int
}

// Table maps statements of one function to their marks.
type Table struct {
	marks       map[tableKey]Mark
	checkpoints map[sir.StmtID]int
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		marks:       make(map[tableKey]Mark),
		checkpoints: make(map[sir.StmtID]int),
	}
}

// Set marks the operand of the statement, NoArg covers all operands. Marks
// set twice are combined.
func (t *Table) Set(stmt sir.StmtID, arg int, m Mark) {
	k := tableKey{stmt: stmt, arg: arg}
	t.marks[k] = Combine(t.marks[k], m)
}

// Get returns the mark of the operand.
func (t *Table) Get(stmt sir.StmtID, arg int) Mark {
	if t == nil {
		return None
	}
	m := t.marks[tableKey{stmt: stmt, arg: NoArg}]
	if arg != NoArg {
		m = Combine(m, t.marks[tableKey{stmt: stmt, arg: arg}])
	}
	return m
}

// Operand returns the mark set for the operand alone, marks covering the
// whole statement are not included.
func (t *Table) Operand(stmt sir.StmtID, arg int) Mark {
	if t == nil || arg == NoArg {
		return None
	}
	return t.marks[tableKey{stmt: stmt, arg: arg}]
}

// SetText parses marker text and records it against the statement.
func (t *Table) SetText(stmt sir.StmtID, text string) error {
	m, err := ParseMarker(text)
	if err != nil {
		return err
	}
	if m.Checkpoint {
		t.AddCheckpoint(stmt, m.Arg)
		return nil
	}
	t.Set(stmt, m.Arg, m.Mark)
	return nil
}

// AddCheckpoint requests a bounds check of the value the statement produces.
// The slot is reported on failure, NoArg reports slot zero.
func (t *Table) AddCheckpoint(stmt sir.StmtID, slot int) {
	if slot == NoArg {
		slot = 0
	}
	t.checkpoints[stmt] = slot
}

// Checkpoint is a statement whose result must be checked.
type Checkpoint struct {
	Stmt sir.StmtID
	Slot int
}

// Checkpoints lists checkpoints in statement order.
func (t *Table) Checkpoints() []Checkpoint {
	if t == nil {
		return nil
	}
	res := make([]Checkpoint, 0, len(t.checkpoints))
	for id, slot := range t.checkpoints {
		res = append(res, Checkpoint{Stmt: id, Slot: slot})
	}
	slices.SortFunc(res, func(a, b Checkpoint) int {
		return cmp.Compare(a.Stmt, b.Stmt)
	})
	return res
}

// Len returns the number of recorded marks and checkpoints.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.marks) + len(t.checkpoints)
}

// Marks holds tables of every function of a unit.
type Marks struct {
	tables map[*sir.Func]*Table
}

// NewMarks creates an empty set of tables.
func NewMarks() *Marks {
	return &Marks{tables: make(map[*sir.Func]*Table)}
}

// For returns the table of the function, creating it when needed.
func (m *Marks) For(fn *sir.Func) *Table {
	t, ok := m.tables[fn]
	if !ok {
		t = NewTable()
		m.tables[fn] = t
	}
	return t
}

// Lookup returns the table of the function or nil.
func (m *Marks) Lookup(fn *sir.Func) *Table {
	if m == nil {
		return nil
	}
	return m.tables[fn]
}
