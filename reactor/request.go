// File: reactor/request.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// sessionRequest is the one-shot handle of an outbound connect.

package reactor

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/control"
)

type sessionRequest struct {
	b          *base
	remote     net.Addr
	local      net.Addr
	attachment any
	cb         api.SessionRequestCallback
	created    time.Time

	state     atomic.Int32
	timeout   atomic.Int64
	cancelReq atomic.Bool

	mu      sync.Mutex
	session api.Session
	err     error
	done    chan struct{}

	// Owned by the connecting main loop.
	fd int
}

var _ api.SessionRequest = (*sessionRequest)(nil)

func newSessionRequest(b *base, remote, local net.Addr, attachment any, cb api.SessionRequestCallback) *sessionRequest {
	r := &sessionRequest{
		b:          b,
		remote:     remote,
		local:      local,
		attachment: attachment,
		cb:         cb,
		created:    time.Now(),
		done:       make(chan struct{}),
		fd:         -1,
	}
	r.timeout.Store(int64(b.cfg.ConnectTimeout))
	return r
}

func (r *sessionRequest) RemoteAddr() net.Addr { return r.remote }

func (r *sessionRequest) LocalAddr() net.Addr { return r.local }

func (r *sessionRequest) Attachment() any { return r.attachment }

func (r *sessionRequest) State() api.RequestState { return api.RequestState(r.state.Load()) }

func (r *sessionRequest) Session() api.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

func (r *sessionRequest) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *sessionRequest) Done() <-chan struct{} { return r.done }

// WaitFor blocks until the request reached a terminal state and returns
// its error, or ctx.Err().
func (r *sessionRequest) WaitFor(ctx context.Context) error {
	select {
	case <-r.done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel asks the reactor to abandon the request on its next pass. It
// returns false when the request already reached a terminal state. A
// connect completing before the reactor observes the request still wins.
func (r *sessionRequest) Cancel() bool {
	if r.State().Terminal() {
		return false
	}
	r.cancelReq.Store(true)
	_ = r.b.poller.Wake()
	return true
}

func (r *sessionRequest) cancelRequested() bool { return r.cancelReq.Load() }

func (r *sessionRequest) ConnectTimeout() time.Duration { return time.Duration(r.timeout.Load()) }

func (r *sessionRequest) SetConnectTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	r.timeout.Store(int64(d))
	_ = r.b.poller.Wake()
}

// deadline returns the connect deadline, or the zero time.
func (r *sessionRequest) deadline() time.Time {
	to := r.timeout.Load()
	if to <= 0 {
		return time.Time{}
	}
	return r.created.Add(time.Duration(to))
}

func (r *sessionRequest) complete(s api.Session) bool {
	return r.finish(api.RequestCompleted, s, nil)
}

func (r *sessionRequest) fail(err error) bool {
	return r.finish(api.RequestFailed, nil, err)
}

func (r *sessionRequest) expire() bool {
	return r.finish(api.RequestTimedOut, nil, api.ErrConnectTimeout)
}

func (r *sessionRequest) cancel() bool {
	return r.finish(api.RequestCancelled, nil, api.ErrRequestCancelled)
}

// finish performs the single terminal transition, then notifies the
// callback and releases waiters.
func (r *sessionRequest) finish(state api.RequestState, s api.Session, err error) bool {
	if !r.state.CompareAndSwap(int32(api.RequestPending), int32(state)) {
		return false
	}
	r.mu.Lock()
	r.session, r.err = s, err
	r.mu.Unlock()

	metric := ""
	switch state {
	case api.RequestCompleted:
		metric = control.MetricRequestsCompleted
	case api.RequestFailed:
		metric = control.MetricRequestsFailed
	case api.RequestTimedOut:
		metric = control.MetricRequestsTimedOut
	case api.RequestCancelled:
		metric = control.MetricRequestsCancelled
	}
	r.b.cfg.Metrics.Add(metric, 1)

	if r.cb != nil {
		func() {
			defer func() {
				if p := recover(); p != nil {
					r.b.logf("session request callback panicked: %v", p)
				}
			}()
			switch state {
			case api.RequestCompleted:
				r.cb.Completed(r)
			case api.RequestFailed:
				r.cb.Failed(r)
			case api.RequestTimedOut:
				r.cb.TimedOut(r)
			case api.RequestCancelled:
				r.cb.Cancelled(r)
			}
		}()
	}
	close(r.done)
	return true
}
