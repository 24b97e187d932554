// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract interfaces for event-driven I/O reactors, listener
// endpoints and asynchronous connect requests.

package api

import (
	"context"
	"net"
	"time"
)

// IOReactor runs the event loop dispatching readiness events to sessions.
type IOReactor interface {
	// Execute runs the reactor on the calling goroutine until shutdown.
	// It returns nil after a graceful shutdown and a *ReactorError after a
	// fatal failure.
	Execute(factory HandlerFactory) error

	// Shutdown requests orderly termination; it does not wait.
	Shutdown(grace time.Duration)

	// Join waits until the reactor has shut down or ctx is done.
	Join(ctx context.Context) error

	Status() ReactorStatus
	Err() error
	AuditLog() []ExceptionEvent
}

// ListenerEndpoint is a handle to one bound listening address.
type ListenerEndpoint interface {
	// Address is the requested address until the bind completes, then
	// the bound address.
	Address() net.Addr
	// WaitFor blocks until the bind completed or failed.
	WaitFor(ctx context.Context) error
	Done() <-chan struct{}
	Err() error
	Close() error
	IsClosed() bool
}

// ListeningIOReactor is an IOReactor accepting inbound connections.
type ListeningIOReactor interface {
	IOReactor
	Listen(addr net.Addr) ListenerEndpoint
	Endpoints() []ListenerEndpoint
	PauseAccept()
	ResumeAccept()
}

// SessionRequest is a handle to one in-flight asynchronous connect.
type SessionRequest interface {
	RemoteAddr() net.Addr
	LocalAddr() net.Addr
	Attachment() any
	State() RequestState
	// Session returns the established session once completed.
	Session() Session
	Err() error
	Done() <-chan struct{}
	WaitFor(ctx context.Context) error
	Cancel() bool
	ConnectTimeout() time.Duration
	SetConnectTimeout(d time.Duration)
}

// SessionRequestCallback is notified exactly once. Outcomes decided by the
// reactor arrive on a reactor goroutine. A request rejected before it is
// queued (nil remote address, reactor already shut down) fails
// synchronously on the goroutine calling Connect.
type SessionRequestCallback interface {
	Completed(req SessionRequest)
	Failed(req SessionRequest)
	TimedOut(req SessionRequest)
	Cancelled(req SessionRequest)
}

// ConnectingIOReactor is an IOReactor establishing outbound connections.
type ConnectingIOReactor interface {
	IOReactor
	Connect(remote, local net.Addr, attachment any, cb SessionRequestCallback) SessionRequest
}
