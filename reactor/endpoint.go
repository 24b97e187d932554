// File: reactor/endpoint.go
// Author: momentics <momentics@gmail.com>
//
// listenerEndpoint is the handle of one listening address.

package reactor

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-nio/api"
)

type listenerEndpoint struct {
	r         *ListeningReactor
	requested net.Addr

	mu    sync.Mutex
	bound net.Addr
	err   error

	done     chan struct{}
	doneOnce sync.Once
	closed   atomic.Bool

	// Owned by the listening main loop.
	fd int
}

var _ api.ListenerEndpoint = (*listenerEndpoint)(nil)

func newListenerEndpoint(r *ListeningReactor, addr net.Addr) *listenerEndpoint {
	return &listenerEndpoint{r: r, requested: addr, done: make(chan struct{}), fd: -1}
}

// Address returns the bound address once the bind completed, otherwise
// the requested one.
func (e *listenerEndpoint) Address() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bound != nil {
		return e.bound
	}
	return e.requested
}

func (e *listenerEndpoint) WaitFor(ctx context.Context) error {
	select {
	case <-e.done:
		return e.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *listenerEndpoint) Done() <-chan struct{} { return e.done }

func (e *listenerEndpoint) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Close unregisters the endpoint on the next reactor pass. Accepted
// sessions are not affected.
func (e *listenerEndpoint) Close() error {
	if e.closed.CompareAndSwap(false, true) {
		e.r.enqueueClose(e)
	}
	return nil
}

func (e *listenerEndpoint) IsClosed() bool { return e.closed.Load() }

func (e *listenerEndpoint) completed(addr net.Addr) {
	e.mu.Lock()
	e.bound = addr
	e.mu.Unlock()
	e.doneOnce.Do(func() { close(e.done) })
}

func (e *listenerEndpoint) failed(err error) {
	e.mu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.mu.Unlock()
	e.doneOnce.Do(func() { close(e.done) })
}
