// Package intentional decides where an overflow is deliberate and must not be
// checked, or where checking must be disabled altogether.
package intentional

import "fmt"

// Mark is the intentional overflow state of a statement operand. Marks are
// ordered: combining two marks keeps the larger one.
type Mark uint8

const (
	// None means the operand is checked normally.
	None Mark = iota

	// Yes exempts the operation from the bounds check. It is still duplicated.
	Yes

	// EndIntentional stops the expansion at the operand.
	EndIntentional

	// TurnOff disables instrumentation of the whole statement.
	TurnOff
)

func (m Mark) String() string {
	switch m {
	case None:
		return "none"
	case Yes:
		return "yes"
	case EndIntentional:
		return "end-intentional"
	case TurnOff:
		return "turn-off"
	default:
		return fmt.Sprintf("mark(%d)", m)
	}
}

// Combine returns the dominating mark.
func Combine(a, b Mark) Mark {
	return max(a, b)
}

// Side tells which operand of a binary statement carries the intentional
// overflow.
type Side uint8

const (
	NoSide Side = iota
	Left
	Right
)

func (s Side) String() string {
	switch s {
	case NoSide:
		return "none"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("side(%d)", s)
	}
}
