package cases

//sizeoverflow:check 0
func Sum(n int16) int16 {
	var s int16
	for i := int16(0); i < n; i++ {
		s += 100
	}
	return s
}
