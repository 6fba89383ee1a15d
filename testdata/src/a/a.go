package a

// Alloc allocates a buffer of n bytes.
//
//sizeoverflow:check 1
func Alloc(n int) []byte {
	return make([]byte, n)
}

func pagesize() int

func fromPagesize() []byte {
	return Alloc(pagesize() * 4) // want `missing-function a.pagesize#0`
}

func fromParam(pages int) []byte {
	return Alloc(pages * 4096)
}
