// File: reactor/listening.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ListeningReactor binds listener endpoints on its main loop and hands
// accepted connections to the worker loops round-robin.

package reactor

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/control"
	"github.com/momentics/hioload-nio/internal/poll"
)

// acceptBatch bounds the accepts per readiness event so one busy listener
// cannot starve the others.
const acceptBatch = 256

// ListeningReactor is an api.ListeningIOReactor.
type ListeningReactor struct {
	*base

	reqMu    sync.Mutex
	binds    *queue.Queue
	closes   *queue.Queue
	shutDown bool

	epMu      sync.RWMutex
	endpoints map[int]*listenerEndpoint

	paused     atomic.Bool
	pauseDirty atomic.Bool
}

var _ api.ListeningIOReactor = (*ListeningReactor)(nil)

// NewListeningReactor creates a reactor from DefaultConfig and opts.
func NewListeningReactor(opts ...Option) (*ListeningReactor, error) {
	b, err := newBase(opts)
	if err != nil {
		return nil, err
	}
	r := &ListeningReactor{
		base:      b,
		binds:     queue.New(),
		closes:    queue.New(),
		endpoints: make(map[int]*listenerEndpoint),
	}
	b.cfg.Probes.RegisterProbe(b.cfg.Name+".endpoints", func() any { return len(r.Endpoints()) })
	return r, nil
}

// Execute runs the reactor on the calling goroutine until shutdown.
func (r *ListeningReactor) Execute(factory api.HandlerFactory) error {
	return r.execute(factory, r)
}

// Listen requests a bind of addr. The bind runs on the reactor goroutine;
// the returned endpoint reports the outcome.
func (r *ListeningReactor) Listen(addr net.Addr) api.ListenerEndpoint {
	ep := newListenerEndpoint(r, addr)
	if addr == nil {
		ep.failed(fmt.Errorf("%w: nil listen address", api.ErrInvalidArgument))
		return ep
	}
	r.reqMu.Lock()
	if r.shutDown || r.Status() > api.StatusActive {
		r.reqMu.Unlock()
		ep.failed(api.ErrReactorShutDown)
		return ep
	}
	r.binds.Add(ep)
	r.reqMu.Unlock()
	_ = r.poller.Wake()
	return ep
}

// Endpoints returns the bound, open endpoints.
func (r *ListeningReactor) Endpoints() []api.ListenerEndpoint {
	r.epMu.RLock()
	defer r.epMu.RUnlock()
	out := make([]api.ListenerEndpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		out = append(out, ep)
	}
	return out
}

// PauseAccept stops accepting on every endpoint from the next pass on.
func (r *ListeningReactor) PauseAccept() {
	if !r.paused.Swap(true) {
		r.pauseDirty.Store(true)
		_ = r.poller.Wake()
	}
}

// ResumeAccept undoes PauseAccept.
func (r *ListeningReactor) ResumeAccept() {
	if r.paused.Swap(false) {
		r.pauseDirty.Store(true)
		_ = r.poller.Wake()
	}
}

func (r *ListeningReactor) enqueueClose(ep *listenerEndpoint) {
	r.reqMu.Lock()
	r.closes.Add(ep)
	r.reqMu.Unlock()
	_ = r.poller.Wake()
}

func (r *ListeningReactor) pop(q *queue.Queue) *listenerEndpoint {
	r.reqMu.Lock()
	defer r.reqMu.Unlock()
	if q.Length() == 0 {
		return nil
	}
	return q.Remove().(*listenerEndpoint)
}

func (r *ListeningReactor) acceptMask() api.EventMask {
	if r.paused.Load() {
		return api.EventNone
	}
	return api.EventAccept
}

func (r *ListeningReactor) processEvents(events []poll.Event) {
	for _, ev := range events {
		r.epMu.RLock()
		ep := r.endpoints[ev.Fd]
		r.epMu.RUnlock()
		if ep == nil || ep.IsClosed() || r.paused.Load() {
			continue
		}
		r.accept(ep)
	}
}

func (r *ListeningReactor) accept(ep *listenerEndpoint) {
	opts := r.socketOptions()
	for i := 0; i < acceptBatch; i++ {
		fd, err := poll.Accept(ep.fd)
		if err != nil {
			ioe := api.WrapIO("accept", ep.Address().String(), err)
			if !r.route(ioe, true) {
				r.fail(ioe)
			}
			return
		}
		if fd < 0 {
			return
		}
		if err := poll.SetOptions(fd, opts); err != nil {
			r.debugf("socket options on accepted channel: %v", err)
			_ = poll.Close(fd)
			continue
		}
		r.nextWorker().enqueue(pendingChannel{fd: fd})
	}
}

func (r *ListeningReactor) processRequests(time.Time) {
	for ep := r.pop(r.binds); ep != nil; ep = r.pop(r.binds) {
		r.bind(ep)
	}
	for ep := r.pop(r.closes); ep != nil; ep = r.pop(r.closes) {
		r.unbind(ep)
	}
	if r.pauseDirty.Swap(false) {
		mask := r.acceptMask()
		r.epMu.RLock()
		for fd := range r.endpoints {
			if err := r.poller.Mod(fd, mask); err != nil {
				r.logf("update accept interest: %v", err)
			}
		}
		r.epMu.RUnlock()
		r.debugf("accept interest now %v", mask)
	}
}

func (r *ListeningReactor) bind(ep *listenerEndpoint) {
	if ep.IsClosed() {
		ep.failed(api.ErrEndpointClosed)
		return
	}
	addr, err := resolveTCP(ep.requested)
	var fd int
	var bound *net.TCPAddr
	if err == nil {
		fd, bound, err = poll.Listen(addr, r.cfg.Backlog, r.cfg.SoReuseAddress)
	}
	if err == nil {
		if err = r.poller.Add(fd, r.acceptMask()); err != nil {
			_ = poll.Close(fd)
		}
	}
	if err != nil {
		ioe := api.WrapIO("bind", ep.requested.String(), err)
		ep.failed(ioe)
		if !r.route(ioe, true) {
			r.fail(ioe)
		}
		return
	}
	ep.fd = fd
	r.epMu.Lock()
	r.endpoints[fd] = ep
	r.epMu.Unlock()
	ep.completed(bound)
	r.cfg.Metrics.Add(control.MetricEndpointsBound, 1)
	r.logf("listening on %v", bound)
}

func (r *ListeningReactor) unbind(ep *listenerEndpoint) {
	r.epMu.Lock()
	live := ep.fd >= 0 && r.endpoints[ep.fd] == ep
	if live {
		delete(r.endpoints, ep.fd)
	}
	r.epMu.Unlock()
	if !live {
		return
	}
	_ = r.poller.Del(ep.fd)
	_ = poll.Close(ep.fd)
	r.logf("closed endpoint %v", ep.Address())
}

func (r *ListeningReactor) nextDeadline() time.Time { return time.Time{} }

func (r *ListeningReactor) shutdownChannels() {
	r.reqMu.Lock()
	r.shutDown = true
	var binds []*listenerEndpoint
	for r.binds.Length() > 0 {
		binds = append(binds, r.binds.Remove().(*listenerEndpoint))
	}
	for r.closes.Length() > 0 {
		r.closes.Remove()
	}
	r.reqMu.Unlock()
	for _, ep := range binds {
		ep.failed(api.ErrReactorShutDown)
	}

	r.epMu.Lock()
	eps := r.endpoints
	r.endpoints = make(map[int]*listenerEndpoint)
	r.epMu.Unlock()
	for fd, ep := range eps {
		ep.closed.Store(true)
		_ = r.poller.Del(fd)
		_ = poll.Close(fd)
	}
}

// resolveTCP converts any net.Addr to a *net.TCPAddr.
func resolveTCP(addr net.Addr) (*net.TCPAddr, error) {
	if a, ok := addr.(*net.TCPAddr); ok {
		return a, nil
	}
	return net.ResolveTCPAddr("tcp", addr.String())
}
