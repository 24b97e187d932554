// File: sessionbuf/buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sessionbuf

import "github.com/momentics/hioload-nio/pool"

// buffer is a growable byte window [r, w) over pooled storage.
type buffer struct {
	buf  []byte
	r, w int
	src  *pool.BytePool
}

func newBuffer(size int) buffer {
	p := pool.ForSize(size)
	return buffer{buf: p.Get(), src: p}
}

// Len returns the number of buffered bytes.
func (b *buffer) Len() int { return b.w - b.r }

// Cap returns the current storage capacity.
func (b *buffer) Cap() int { return len(b.buf) }

// HasData reports whether any bytes are buffered.
func (b *buffer) HasData() bool { return b.w > b.r }

// Clear discards all buffered bytes.
func (b *buffer) Clear() { b.r, b.w = 0, 0 }

func (b *buffer) bytes() []byte { return b.buf[b.r:b.w] }

func (b *buffer) consume(n int) {
	b.r += n
	if b.r >= b.w {
		b.r, b.w = 0, 0
	}
}

// reserve guarantees at least n free bytes after w, compacting first and
// growing into a larger pool class if needed.
func (b *buffer) reserve(n int) {
	if b.buf == nil {
		*b = newBuffer(n)
	}
	if len(b.buf)-b.w >= n {
		return
	}
	if b.r > 0 {
		copy(b.buf, b.buf[b.r:b.w])
		b.w -= b.r
		b.r = 0
		if len(b.buf)-b.w >= n {
			return
		}
	}
	need := b.w + n
	if need < 2*len(b.buf) {
		need = 2 * len(b.buf)
	}
	p := pool.ForSize(need)
	nb := p.Get()
	copy(nb, b.buf[:b.w])
	if b.src != nil {
		b.src.Put(b.buf)
	}
	b.buf, b.src = nb, p
}

func (b *buffer) append(p []byte) {
	b.reserve(len(p))
	b.w += copy(b.buf[b.w:], p)
}

// Release returns the storage to its pool. The buffer stays usable and
// reacquires storage on the next write.
func (b *buffer) Release() {
	if b.src != nil && b.buf != nil {
		b.src.Put(b.buf)
	}
	b.buf, b.src = nil, nil
	b.r, b.w = 0, 0
}
