// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error classification for the reactor and session buffers.

package api

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

// Common errors used across the library.
var (
	ErrReactorShutDown    = fmt.Errorf("i/o reactor has been shut down")
	ErrReactorActive      = fmt.Errorf("i/o reactor is already running")
	ErrSessionClosed      = fmt.Errorf("session is closed")
	ErrEndpointClosed     = fmt.Errorf("listener endpoint is closed")
	ErrRequestCancelled   = fmt.Errorf("session request cancelled")
	ErrConnectTimeout     = fmt.Errorf("connect timed out")
	ErrInvalidArgument    = fmt.Errorf("invalid argument")
	ErrNotSupported       = fmt.Errorf("operation not supported")
	ErrLineTooLong        = fmt.Errorf("maximum line length limit exceeded")
	ErrMalformedInput     = fmt.Errorf("malformed input")
	ErrUnmappableInput    = fmt.Errorf("unmappable character")
	ErrUnsupportedCharset = fmt.Errorf("unsupported charset")
	ErrStreamEnded        = fmt.Errorf("stream already ended")
)

// IOError is a transient I/O failure bound to one session, endpoint or request.
type IOError struct {
	Op   string // "read", "write", "accept", "bind", "connect", ...
	Addr string
	Err  error
}

func (e *IOError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// RuntimeError is a failure raised by an event handler: a returned
// protocol error or a recovered panic.
type RuntimeError struct {
	Op    string
	Panic any // non-nil when the handler panicked
	Err   error
}

func (e *RuntimeError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("%s: panic: %v", e.Op, e.Panic)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// ReactorError is the fatal error that terminated a reactor.
type ReactorError struct {
	Err error
}

func (e *ReactorError) Error() string { return "i/o reactor terminated: " + e.Err.Error() }

func (e *ReactorError) Unwrap() error { return e.Err }

// WrapIO creates an IOError.
func WrapIO(op, addr string, err error) *IOError {
	return &IOError{Op: op, Addr: addr, Err: err}
}

// IsIOError reports whether err is an I/O failure, as opposed to a
// protocol or programming error raised by a handler.
func IsIOError(err error) bool {
	if err == nil {
		return false
	}
	var ioe *IOError
	if errors.As(err, &ioe) {
		return true
	}
	var rte *RuntimeError
	if errors.As(err, &rte) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, ErrSessionClosed) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var sce *os.SyscallError
	if errors.As(err, &sce) {
		return true
	}
	var ope *net.OpError
	if errors.As(err, &ope) {
		return true
	}
	var errno syscall.Errno
	return errors.As(err, &errno)
}

// AsIOError returns err as *IOError, wrapping it under op if needed.
func AsIOError(op string, err error) *IOError {
	var ioe *IOError
	if errors.As(err, &ioe) {
		return ioe
	}
	return &IOError{Op: op, Err: err}
}

// AsRuntimeError returns err as *RuntimeError, wrapping it under op if needed.
func AsRuntimeError(op string, err error) *RuntimeError {
	var rte *RuntimeError
	if errors.As(err, &rte) {
		return rte
	}
	return &RuntimeError{Op: op, Err: err}
}
