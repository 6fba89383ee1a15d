package b

import "a"

func size() int

func FromB() []byte {
	return a.Alloc(size() + 1) // want `missing-function b.size#0`
}

func Quiet() []byte {
	return a.Alloc(size() - 1) // # size_overflow MARK_TURN_OFF
}
