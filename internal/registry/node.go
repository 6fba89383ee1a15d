package registry

import (
	"fmt"

	"github.com/sirkon/sizeoverflow/internal/sir"
)

// NodeID addresses a node in the registry arena.
type NodeID uint32

// NoNode is never assigned to a node.
const NoNode NodeID = 0

// Mark is the marking state of a node.
type Mark uint8

const (
	Unmarked Mark = iota
	Checked
	Suppressed
)

func (m Mark) String() string {
	switch m {
	case Unmarked:
		return "unmarked"
	case Checked:
		return "checked"
	case Suppressed:
		return "suppressed"
	default:
		return fmt.Sprintf("mark(%d)", m)
	}
}

// UnmarshalText parses a mark name.
func (m *Mark) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unmarked", "":
		*m = Unmarked
	case "checked":
		*m = Checked
	case "suppressed":
		*m = Suppressed
	default:
		return fmt.Errorf("unknown mark %q", text)
	}
	return nil
}

// Stronger returns the more restrictive of two marks.
func Stronger(a, b Mark) Mark {
	return max(a, b)
}

// Filter selects nodes by mark during lookups. A nil filter accepts any mark.
type Filter func(Mark) bool

// Only accepts the given mark.
func Only(m Mark) Filter {
	return func(x Mark) bool { return x == m }
}

// Except accepts everything but the given mark.
func Except(m Mark) Filter {
	return func(x Mark) bool { return x != m }
}

func (f Filter) accepts(m Mark) bool {
	return f == nil || f(m)
}

// Node is a (function, slot) pair found interesting. Children are the nodes
// whose data flows into this slot, that is callers passing arguments into it
// and callees whose results reach it.
type Node struct {
	ID   NodeID
	Name string
	Num  int
	Mark Mark

	// Fn is nil for nodes known only from summaries of other units.
	Fn *sir.Func

	Children []NodeID

	// Orig links a clone node to the node of its uncloned original.
	Orig NodeID

	// Removed nodes were dropped from the index together with their function.
	Removed bool
}

func (n *Node) String() string {
	return fmt.Sprintf("%s#%d(%s)", n.Name, n.Num, n.Mark)
}
