// File: sessionbuf/output.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sessionbuf

import "io"

var crlf = []byte{'\r', '\n'}

// OutputBuffer accumulates bytes to be written to a session.
type OutputBuffer struct {
	buffer
	codec   codecConfig
	scratch []byte
}

// NewOutputBuffer creates an output buffer with an initial capacity of size.
func NewOutputBuffer(size int, opts ...Option) *OutputBuffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &OutputBuffer{buffer: newBuffer(size), codec: newCodecConfig(opts)}
}

// Charset returns the line charset.
func (b *OutputBuffer) Charset() Charset { return b.codec.charset }

// Write buffers p. It always accepts all of p.
func (b *OutputBuffer) Write(p []byte) (int, error) {
	b.append(p)
	return len(p), nil
}

// WriteString buffers the raw bytes of s without charset conversion.
func (b *OutputBuffer) WriteString(s string) (int, error) {
	b.reserve(len(s))
	b.w += copy(b.buf[b.w:], s)
	return len(s), nil
}

// WriteByte buffers a single byte.
func (b *OutputBuffer) WriteByte(c byte) error {
	b.reserve(1)
	b.buf[b.w] = c
	b.w++
	return nil
}

// WriteLine encodes s with the configured charset and appends CR LF.
// Under the REPORT policy nothing is buffered when encoding fails.
func (b *OutputBuffer) WriteLine(s string) error {
	out, err := b.codec.charset.Encode(b.scratch[:0], s, b.codec.malformed, b.codec.unmappable)
	b.scratch = out[:0]
	if err != nil {
		return err
	}
	b.append(out)
	b.append(crlf)
	return nil
}

// FillFrom performs one read from src into the buffer and returns the
// number of bytes read, or -1 at end of stream.
func (b *OutputBuffer) FillFrom(src io.Reader) (int, error) {
	b.reserve(b.codec.minChunk)
	n, err := src.Read(b.buf[b.w:])
	b.w += n
	if err == io.EOF {
		if n > 0 {
			return n, nil
		}
		return -1, nil
	}
	return n, err
}

// Flush performs a single write of the buffered bytes to dst and returns
// the number of bytes accepted.
func (b *OutputBuffer) Flush(dst io.Writer) (int, error) {
	if !b.HasData() {
		return 0, nil
	}
	n, err := dst.Write(b.bytes())
	b.consume(n)
	return n, err
}
