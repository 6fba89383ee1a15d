package cases

//sizeoverflow:check 1
func grow(n int)

func Pad(n int32) {
	grow(int(n * n))
}
