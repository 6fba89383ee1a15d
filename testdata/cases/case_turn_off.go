package cases

//sizeoverflow:check 1
func sink(n int32)

func Quiet(a int32) {
	sink(a * a) // # size_overflow MARK_TURN_OFF
}

func Loud(a int32) {
	sink(a * a)
}
