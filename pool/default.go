package pool

import "sync"

var classes sync.Map // map[int]*BytePool

// ForSize returns the process-wide pool for the smallest power-of-two
// class holding size bytes, so all sessions share storage.
func ForSize(size int) *BytePool {
	class := classFor(size)
	if p, ok := classes.Load(class); ok {
		return p.(*BytePool)
	}
	p, _ := classes.LoadOrStore(class, NewBytePool(class))
	return p.(*BytePool)
}

func classFor(size int) int {
	c := 512
	for c < size {
		c <<= 1
	}
	return c
}
