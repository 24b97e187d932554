// File: api/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session contract: one connected channel with interest mask, attributes,
// command queue and lifecycle.

package api

import (
	"net"
	"time"
)

// AttachmentKey is the attribute under which a connect attachment is stored.
const AttachmentKey = "http.session.attachment"

// Command is executed on the owning reactor goroutine before the next
// readiness wait.
type Command func(s Session)

// BufferStatus lets the protocol layer report buffered data, so a graceful
// close can wait for pending output.
type BufferStatus interface {
	HasBufferedInput() bool
	HasBufferedOutput() bool
}

// Session is the reactor's view of one connected channel.
//
// Read and Write are non-blocking: they return (0, nil) when the socket
// would block and io.EOF once the peer has closed its side. They are meant
// to be called from the handler callbacks on the reactor goroutine.
// All other methods are safe for use from any goroutine.
type Session interface {
	// ID is unique within the owning reactor.
	ID() uint64

	Read(p []byte) (int, error)
	Write(p []byte) (int, error)

	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	EventMask() EventMask
	SetEventMask(m EventMask)
	SetEvent(m EventMask)
	ClearEvent(m EventMask)

	// Close finishes pending output (see SetBufferStatus) and then closes.
	Close()
	// Shutdown closes immediately, discarding buffered output.
	Shutdown()
	Status() SessionStatus
	IsClosed() bool

	SocketTimeout() time.Duration
	SetSocketTimeout(d time.Duration)
	LastReadTime() time.Time
	LastWriteTime() time.Time

	Attribute(key string) any
	SetAttribute(key string, value any)
	RemoveAttribute(key string) any

	// Enqueue appends cmd to the session's FIFO command queue and wakes
	// the reactor.
	Enqueue(cmd Command)

	SetBufferStatus(bs BufferStatus)
	HasBufferedInput() bool
	HasBufferedOutput() bool
}
