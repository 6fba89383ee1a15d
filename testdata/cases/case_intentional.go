package cases

//sizeoverflow:check 0
func Hash(x uint32) uint32 {
	return x*16777619 ^ 2166136261 // # size_overflow MARK_YES
}

//sizeoverflow:check 0
func Mix(x uint32) uint32 {
	return x * 31
}
