package cases

//sizeoverflow:check 1
func reserve(n int64)

func Rows(count, width int32) {
	reserve(bytesFor(count, width))
}

func bytesFor(count, width int32) int64 {
	return int64(count * width)
}
