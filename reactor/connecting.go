// File: reactor/connecting.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ConnectingReactor drives non-blocking connects on its main loop and
// hands established channels to the worker loops.

package reactor

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/internal/poll"
)

// ConnectingReactor is an api.ConnectingIOReactor.
type ConnectingReactor struct {
	*base

	reqMu    sync.Mutex
	requests *queue.Queue
	shutDown bool

	// Connects in progress, owned by the main loop.
	pending map[int]*sessionRequest
}

var _ api.ConnectingIOReactor = (*ConnectingReactor)(nil)

// NewConnectingReactor creates a reactor from DefaultConfig and opts.
func NewConnectingReactor(opts ...Option) (*ConnectingReactor, error) {
	b, err := newBase(opts)
	if err != nil {
		return nil, err
	}
	return &ConnectingReactor{
		base:     b,
		requests: queue.New(),
		pending:  make(map[int]*sessionRequest),
	}, nil
}

// Execute runs the reactor on the calling goroutine until shutdown.
func (r *ConnectingReactor) Execute(factory api.HandlerFactory) error {
	return r.execute(factory, r)
}

// Connect starts an asynchronous connect to remote, optionally bound to
// local. attachment is exposed on the session under api.AttachmentKey.
// Requests made after shutdown fail at once on the calling goroutine.
func (r *ConnectingReactor) Connect(remote, local net.Addr, attachment any, cb api.SessionRequestCallback) api.SessionRequest {
	req := newSessionRequest(r.base, remote, local, attachment, cb)
	if remote == nil {
		req.fail(fmt.Errorf("%w: nil remote address", api.ErrInvalidArgument))
		return req
	}
	r.reqMu.Lock()
	if r.shutDown || r.Status() > api.StatusActive {
		r.reqMu.Unlock()
		req.fail(api.ErrReactorShutDown)
		return req
	}
	r.requests.Add(req)
	r.reqMu.Unlock()
	_ = r.poller.Wake()
	return req
}

func (r *ConnectingReactor) popRequest() *sessionRequest {
	r.reqMu.Lock()
	defer r.reqMu.Unlock()
	if r.requests.Length() == 0 {
		return nil
	}
	return r.requests.Remove().(*sessionRequest)
}

func (r *ConnectingReactor) processEvents(events []poll.Event) {
	for _, ev := range events {
		req := r.pending[ev.Fd]
		if req == nil {
			continue
		}
		delete(r.pending, ev.Fd)
		_ = r.poller.Del(ev.Fd)
		if err := poll.FinishConnect(ev.Fd); err != nil {
			_ = poll.Close(ev.Fd)
			r.connectFailed(req, err)
			continue
		}
		if req.cancelRequested() {
			_ = poll.Close(ev.Fd)
			req.cancel()
			continue
		}
		r.nextWorker().enqueue(pendingChannel{fd: ev.Fd, req: req})
	}
}

func (r *ConnectingReactor) processRequests(now time.Time) {
	for req := r.popRequest(); req != nil; req = r.popRequest() {
		r.start(req)
	}
	r.expireRequests(now)
}

func (r *ConnectingReactor) start(req *sessionRequest) {
	if req.cancelRequested() {
		req.cancel()
		return
	}
	remote, err := resolveTCP(req.remote)
	if err != nil {
		r.connectFailed(req, err)
		return
	}
	var local *net.TCPAddr
	if req.local != nil {
		if local, err = resolveTCP(req.local); err != nil {
			r.connectFailed(req, err)
			return
		}
	}
	fd, connected, err := poll.Connect(remote, local, r.cfg.SoReuseAddress)
	if err != nil {
		r.connectFailed(req, err)
		return
	}
	if err := poll.SetOptions(fd, r.socketOptions()); err != nil {
		_ = poll.Close(fd)
		r.connectFailed(req, err)
		return
	}
	if connected {
		r.nextWorker().enqueue(pendingChannel{fd: fd, req: req})
		return
	}
	if err := r.poller.Add(fd, api.EventConnect); err != nil {
		_ = poll.Close(fd)
		r.connectFailed(req, err)
		return
	}
	req.fd = fd
	r.pending[fd] = req
}

// expireRequests cancels or times out connects still in progress.
func (r *ConnectingReactor) expireRequests(now time.Time) {
	for fd, req := range r.pending {
		switch {
		case req.cancelRequested():
			r.drop(fd)
			req.cancel()
		case !req.deadline().IsZero() && !now.Before(req.deadline()):
			r.drop(fd)
			req.expire()
			r.debugf("connect to %v timed out after %v", req.remote, req.ConnectTimeout())
		}
	}
}

func (r *ConnectingReactor) drop(fd int) {
	delete(r.pending, fd)
	_ = r.poller.Del(fd)
	_ = poll.Close(fd)
}

// connectFailed reports the failure on the request only. It is recorded
// in the audit log but never stops the reactor.
func (r *ConnectingReactor) connectFailed(req *sessionRequest, err error) {
	ioe := api.WrapIO("connect", req.remote.String(), err)
	r.record(ioe, false)
	r.debugf("%v", ioe)
	req.fail(ioe)
}

func (r *ConnectingReactor) nextDeadline() time.Time {
	var next time.Time
	for _, req := range r.pending {
		if d := req.deadline(); !d.IsZero() && (next.IsZero() || d.Before(next)) {
			next = d
		}
	}
	return next
}

func (r *ConnectingReactor) shutdownChannels() {
	r.reqMu.Lock()
	r.shutDown = true
	var queued []*sessionRequest
	for r.requests.Length() > 0 {
		queued = append(queued, r.requests.Remove().(*sessionRequest))
	}
	r.reqMu.Unlock()
	for _, req := range queued {
		req.cancel()
	}
	for fd, req := range r.pending {
		r.drop(fd)
		req.cancel()
	}
}
