// Package cloneargs translates argument slots between a compiler generated clone
// of a function and the function it was cloned from.
//
// Slot numbering is shared by the whole project: slot 0 is the return value,
// slots 1..MaxParam are parameters. A clone that drops some of the original
// parameters carries a SkipSet of the original slots it does not retain.
package cloneargs

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

// MaxParam is the highest parameter slot that can be tracked.
const MaxParam = 31

// ErrNoCounterpart is returned when a slot has no counterpart on the other side
// of a clone relation: it was dropped by the clone or it is out of range.
var ErrNoCounterpart = errors.New("argument has no counterpart")

// SkipSet is a bitmap over 1-based original parameter slots. Bit i set means
// the clone dropped original parameter i.
type SkipSet uint32

// NewSkipSet builds a set from the given original slots. Slots outside
// 1..MaxParam are ignored.
func NewSkipSet(slots ...int) SkipSet {
	var s SkipSet
	for _, slot := range slots {
		if slot < 1 || slot > MaxParam {
			continue
		}
		s |= 1 << slot
	}
	return s
}

// Has reports whether the original slot is dropped.
func (s SkipSet) Has(slot int) bool {
	if slot < 1 || slot > MaxParam {
		return false
	}
	return s&(1<<slot) != 0
}

// Empty reports whether the clone retains every argument.
func (s SkipSet) Empty() bool {
	return s == 0
}

// Len returns the number of dropped slots.
func (s SkipSet) Len() int {
	return bits.OnesCount32(uint32(s))
}

// Slots lists dropped slots in ascending order.
func (s SkipSet) Slots() []int {
	var res []int
	for i := 1; i <= MaxParam; i++ {
		if s.Has(i) {
			res = append(res, i)
		}
	}
	return res
}

// below counts dropped slots strictly below the given one.
func (s SkipSet) below(slot int) int {
	return bits.OnesCount32(uint32(s) & (1<<slot - 1))
}

func (s SkipSet) String() string {
	parts := make([]string, 0, s.Len())
	for _, slot := range s.Slots() {
		parts = append(parts, fmt.Sprint(slot))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// ToOriginal maps a clone slot to the slot of the original function.
func ToOriginal(s SkipSet, cloneSlot int) (int, error) {
	if cloneSlot == 0 || s.Empty() {
		return checkRange(cloneSlot)
	}
	if _, err := checkRange(cloneSlot); err != nil {
		return 0, err
	}

	var seen int
	for i := 1; i <= MaxParam; i++ {
		if s.Has(i) {
			continue
		}
		seen++
		if seen == cloneSlot {
			return i, nil
		}
	}

	return 0, fmt.Errorf("clone slot %d with skipped %s: %w", cloneSlot, s, ErrNoCounterpart)
}

// ToClone maps a slot of the original function to the clone slot. It fails
// when the clone dropped that argument.
func ToClone(s SkipSet, origSlot int) (int, error) {
	if origSlot == 0 || s.Empty() {
		return checkRange(origSlot)
	}
	if _, err := checkRange(origSlot); err != nil {
		return 0, err
	}
	if s.Has(origSlot) {
		return 0, fmt.Errorf("original slot %d is skipped by the clone: %w", origSlot, ErrNoCounterpart)
	}

	return origSlot - s.below(origSlot), nil
}

func checkRange(slot int) (int, error) {
	if slot < 0 || slot > MaxParam {
		return 0, fmt.Errorf("slot %d out of range: %w", slot, ErrNoCounterpart)
	}
	return slot, nil
}

// Clone is a link in a clone chain. Original returns nil for a function that is
// not a clone.
type Clone interface {
	Original() Clone
	Skipped() SkipSet
}

// ToOriginalChain maps a slot of c to the slot of the root of its clone chain.
func ToOriginalChain(c Clone, slot int) (int, error) {
	for cur := c; cur != nil; cur = cur.Original() {
		if cur.Original() == nil {
			break
		}
		next, err := ToOriginal(cur.Skipped(), slot)
		if err != nil {
			return 0, err
		}
		slot = next
	}
	return slot, nil
}

// ToCloneChain maps a slot of the root of the clone chain down to c.
func ToCloneChain(c Clone, slot int) (int, error) {
	var chain []Clone
	for cur := c; cur != nil && cur.Original() != nil; cur = cur.Original() {
		chain = append(chain, cur)
	}

	for i := len(chain) - 1; i >= 0; i-- {
		next, err := ToClone(chain[i].Skipped(), slot)
		if err != nil {
			return 0, err
		}
		slot = next
	}
	return slot, nil
}
