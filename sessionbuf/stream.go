// File: sessionbuf/stream.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// StreamChannel couples an OutputBuffer to a session with a high-water
// mark, so producers see backpressure instead of unbounded buffering.

package sessionbuf

import (
	"sync"

	"github.com/momentics/hioload-nio/api"
)

// StreamChannel is a flow-controlled data channel writing into a session.
// It implements api.BufferStatus; registering it with SetBufferStatus lets
// a graceful close drain the stream first.
type StreamChannel struct {
	mu        sync.Mutex
	session   api.Session
	out       *OutputBuffer
	highWater int
	ended     bool
	trailers  []string
}

// NewStreamChannel creates a channel over s buffering at most highWater
// bytes. A nil out allocates a default OutputBuffer.
func NewStreamChannel(s api.Session, out *OutputBuffer, highWater int) *StreamChannel {
	if out == nil {
		out = NewOutputBuffer(0)
	}
	if highWater <= 0 {
		highWater = DefaultBufferSize
	}
	return &StreamChannel{session: s, out: out, highWater: highWater}
}

// Write accepts as much of p as fits under the high-water mark and
// requests output. It returns 0 while the buffer is full.
func (c *StreamChannel) Write(p []byte) (int, error) {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return 0, api.ErrStreamEnded
	}
	room := c.highWater - c.out.Len()
	if room <= 0 || len(p) == 0 {
		c.mu.Unlock()
		return 0, nil
	}
	if len(p) > room {
		p = p[:room]
	}
	n, _ := c.out.Write(p)
	c.mu.Unlock()
	c.RequestOutput()
	return n, nil
}

// RequestOutput asks the reactor for write readiness.
func (c *StreamChannel) RequestOutput() {
	c.session.SetEvent(api.EventWrite)
}

// EndStream marks the stream complete. Trailer lines are encoded with the
// buffer charset after the data.
func (c *StreamChannel) EndStream(trailers ...string) error {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return api.ErrStreamEnded
	}
	for _, t := range trailers {
		if err := c.out.WriteLine(t); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	c.ended = true
	c.trailers = append(c.trailers[:0], trailers...)
	c.mu.Unlock()
	c.RequestOutput()
	return nil
}

// Flush writes buffered bytes to the session, typically from OutputReady.
// Write interest is cleared once the buffer is drained.
func (c *StreamChannel) Flush() (int, error) {
	c.mu.Lock()
	n, err := c.out.Flush(c.session)
	drained := !c.out.HasData()
	c.mu.Unlock()
	if err != nil {
		return n, err
	}
	if drained {
		c.session.ClearEvent(api.EventWrite)
	}
	return n, nil
}

// Ended reports whether EndStream was called.
func (c *StreamChannel) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

// Trailers returns the trailer lines passed to EndStream.
func (c *StreamChannel) Trailers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.trailers...)
}

// Buffered returns the number of bytes awaiting Flush.
func (c *StreamChannel) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Len()
}

func (c *StreamChannel) HasBufferedInput() bool { return false }

func (c *StreamChannel) HasBufferedOutput() bool { return c.Buffered() > 0 }

var _ api.BufferStatus = (*StreamChannel)(nil)
