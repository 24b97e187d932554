// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "sync/atomic"

// BytePool hands out byte slices of one capacity class.
type BytePool struct {
	size  int
	slabs *SyncPool[*[]byte]

	gets atomic.Int64
	puts atomic.Int64
}

// NewBytePool creates a pool of slices with capacity size.
func NewBytePool(size int) *BytePool {
	if size <= 0 {
		size = 4096
	}
	return &BytePool{
		size: size,
		slabs: NewSyncPool(func() *[]byte {
			b := make([]byte, size)
			return &b
		}),
	}
}

// Size returns the capacity class of the pool.
func (b *BytePool) Size() int {
	return b.size
}

// Get returns a slice of length and capacity Size.
func (b *BytePool) Get() []byte {
	b.gets.Add(1)
	p := b.slabs.Get()
	return (*p)[:b.size]
}

// Put returns buf to the pool. Slices of a different class are dropped.
func (b *BytePool) Put(buf []byte) {
	if cap(buf) != b.size {
		return
	}
	b.puts.Add(1)
	buf = buf[:b.size]
	b.slabs.Put(&buf)
}

// Stats reports the number of Get and Put calls.
func (b *BytePool) Stats() (gets, puts int64) {
	return b.gets.Load(), b.puts.Load()
}
