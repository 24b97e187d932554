// File: sessionbuf/input.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session input buffer: non-blocking fill from a channel, byte/block reads,
// and charset-decoded line reads.

package sessionbuf

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/momentics/hioload-nio/api"
)

// InputBuffer accumulates bytes read from a session.
type InputBuffer struct {
	buffer
	codec codecConfig
	eof   bool
}

// NewInputBuffer creates an input buffer with an initial capacity of size.
func NewInputBuffer(size int, opts ...Option) *InputBuffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &InputBuffer{buffer: newBuffer(size), codec: newCodecConfig(opts)}
}

// Charset returns the line charset.
func (b *InputBuffer) Charset() Charset { return b.codec.charset }

// Fill performs one read from src into free space. It returns the number
// of bytes read, 0 when src had nothing to offer and -1 at end of stream.
func (b *InputBuffer) Fill(src io.Reader) (int, error) {
	if b.eof {
		return -1, nil
	}
	b.reserve(b.codec.minChunk)
	n, err := src.Read(b.buf[b.w:])
	b.w += n
	switch {
	case err == io.EOF:
		b.eof = true
		if n > 0 {
			return n, nil
		}
		return -1, nil
	case err != nil:
		return n, err
	}
	return n, nil
}

// ReadByte returns the next buffered byte, or io.EOF when none is buffered.
func (b *InputBuffer) ReadByte() (byte, error) {
	if !b.HasData() {
		return 0, io.EOF
	}
	c := b.buf[b.r]
	b.consume(1)
	return c, nil
}

// Read copies buffered bytes into p. It returns io.EOF when nothing is
// buffered; it never reads from the underlying session.
func (b *InputBuffer) Read(p []byte) (int, error) {
	if !b.HasData() {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, b.bytes())
	b.consume(n)
	return n, nil
}

// ReadTo performs a single write of up to max buffered bytes to dst
// (max <= 0 means all) and consumes what was accepted.
func (b *InputBuffer) ReadTo(dst io.Writer, max int) (int, error) {
	if !b.HasData() {
		return 0, nil
	}
	chunk := b.bytes()
	if max > 0 && len(chunk) > max {
		chunk = chunk[:max]
	}
	n, err := dst.Write(chunk)
	b.consume(n)
	return n, err
}

// ReadLine decodes the next LF-terminated line, stripping CR LF. ok is
// false when no complete line is buffered. With endOfStream set, the
// buffered remainder is returned as the last line.
func (b *InputBuffer) ReadLine(endOfStream bool) (string, bool, error) {
	var sb strings.Builder
	ok, err := b.ReadLineTo(&sb, endOfStream)
	if !ok || err != nil {
		return "", ok, err
	}
	return sb.String(), true, nil
}

// ReadLineTo is ReadLine appending into dst. A line rejected by the
// REPORT policy is consumed so the following lines stay intact, and so is
// a terminated line over the length limit. An unterminated run over the
// limit stays buffered and fails every call until the caller clears the
// buffer or drops the session.
func (b *InputBuffer) ReadLineTo(dst *strings.Builder, endOfStream bool) (bool, error) {
	data := b.bytes()
	idx := bytes.IndexByte(data, '\n')
	var line []byte
	switch {
	case idx >= 0:
		line = data[:idx]
		b.r += idx + 1
		if b.codec.maxLine > 0 && len(line) > b.codec.maxLine {
			if b.r >= b.w {
				b.r, b.w = 0, 0
			}
			return false, fmt.Errorf("%w: %d bytes", api.ErrLineTooLong, len(line))
		}
	case b.codec.maxLine > 0 && len(data) > b.codec.maxLine:
		return false, fmt.Errorf("%w: %d bytes without terminator", api.ErrLineTooLong, len(data))
	case endOfStream && len(data) > 0:
		line = data
		b.r = b.w
	default:
		return false, nil
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	// Decode before the window may be recycled by consume.
	err := b.codec.charset.Decode(dst, line, b.codec.malformed, b.codec.unmappable)
	if b.r >= b.w {
		b.r, b.w = 0, 0
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// EOF reports whether Fill has observed end of stream.
func (b *InputBuffer) EOF() bool { return b.eof }
