// File: api/handler.go
// Package api defines the event handler contract invoked by the reactor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// EventHandler receives the readiness signals of one session. The reactor
// invokes it from a single goroutine and never re-enters it.
//
// Errors returned from the callbacks are classified: I/O errors close the
// session and are reported back through Exception as *IOError; any other
// error (or a panic) is routed to the reactor's ExceptionHandler and, when
// recoverable, reported through Exception as *RuntimeError.
type EventHandler interface {
	// Connected is called once, for accepted and for connected sessions.
	Connected(s Session) error
	InputReady(s Session) error
	OutputReady(s Session) error
	Timeout(s Session) error
	Disconnected(s Session)
	Exception(s Session, err error)
}

// HandlerFactory creates the handler for a new session. It must not block.
type HandlerFactory interface {
	NewHandler(s Session) EventHandler
}

// HandlerFactoryFunc converts a function into a HandlerFactory.
type HandlerFactoryFunc func(s Session) EventHandler

// NewHandler calls the underlying function.
func (f HandlerFactoryFunc) NewHandler(s Session) EventHandler {
	return f(s)
}

// NopHandler implements EventHandler with no-ops. Embed it to override
// only the callbacks of interest.
type NopHandler struct{}

func (NopHandler) Connected(Session) error { return nil }

func (NopHandler) InputReady(Session) error { return nil }

func (NopHandler) OutputReady(Session) error { return nil }

// Timeout closes the session.
func (NopHandler) Timeout(s Session) error {
	s.Close()
	return nil
}

func (NopHandler) Disconnected(Session) {}

func (NopHandler) Exception(Session, error) {}
