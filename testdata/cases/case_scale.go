package cases

//sizeoverflow:check 0
func Scale(x int32) int32 {
	return x * 200
}
