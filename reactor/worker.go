// File: reactor/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// worker is one event loop owning a poller and a set of sessions. Each
// pass runs, in order:
//
//  1. deadline from the earliest session timeout
//  2. readiness wait
//  3. dispatch of ready sessions
//  4. timeout sweep
//  5. registration of pending channels
//  6. command queues and interest updates
//
// Commands enqueued at any point of a pass, including by handlers called
// in steps 3 to 5, run in step 6 of the same pass.

package reactor

import (
	"fmt"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-nio/affinity"
	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/control"
	"github.com/momentics/hioload-nio/internal/poll"
)

// pendingChannel is a connected socket waiting for registration. req is
// set for outbound connects.
type pendingChannel struct {
	fd  int
	req *sessionRequest
}

type worker struct {
	b       *base
	id      int
	poller  *poll.Poller
	factory api.HandlerFactory
	events  []poll.Event

	sessions map[int]*ioSession
	closed   []*ioSession

	pendingMu sync.Mutex
	pending   *queue.Queue
	exited    bool

	dirtyMu sync.Mutex
	dirty   *queue.Queue

	stopMu    sync.Mutex
	stopReq   bool
	stopGrace time.Duration

	stopping bool
	stopBy   time.Time
	failed   bool
}

func newWorker(b *base, id int, factory api.HandlerFactory) (*worker, error) {
	p, err := poll.NewPoller(b.cfg.MaxEvents)
	if err != nil {
		return nil, err
	}
	return &worker{
		b:        b,
		id:       id,
		poller:   p,
		factory:  factory,
		events:   make([]poll.Event, b.cfg.MaxEvents),
		sessions: make(map[int]*ioSession),
		pending:  queue.New(),
		dirty:    queue.New(),
	}, nil
}

// enqueue hands a connected socket to the loop. Safe from any goroutine.
func (w *worker) enqueue(pc pendingChannel) {
	w.pendingMu.Lock()
	if w.exited {
		w.pendingMu.Unlock()
		w.discard(pc)
		return
	}
	w.pending.Add(pc)
	w.pendingMu.Unlock()
	_ = w.poller.Wake()
}

func (w *worker) discard(pc pendingChannel) {
	_ = poll.Close(pc.fd)
	if pc.req != nil {
		pc.req.fail(api.ErrReactorShutDown)
	}
}

func (w *worker) popPending() (pendingChannel, bool) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if w.pending.Length() == 0 {
		return pendingChannel{}, false
	}
	return w.pending.Remove().(pendingChannel), true
}

// markDirty schedules s for step 6. Safe from any goroutine.
func (w *worker) markDirty(s *ioSession) {
	if !s.dirty.CompareAndSwap(false, true) {
		return
	}
	w.dirtyMu.Lock()
	w.dirty.Add(s)
	w.dirtyMu.Unlock()
	_ = w.poller.Wake()
}

func (w *worker) popDirty() *ioSession {
	w.dirtyMu.Lock()
	defer w.dirtyMu.Unlock()
	if w.dirty.Length() == 0 {
		return nil
	}
	return w.dirty.Remove().(*ioSession)
}

func (w *worker) requestStop(grace time.Duration) {
	w.stopMu.Lock()
	if !w.stopReq || grace < w.stopGrace {
		w.stopGrace = grace
	}
	w.stopReq = true
	w.stopMu.Unlock()
	_ = w.poller.Wake()
}

func (w *worker) run() {
	defer w.b.wg.Done()
	defer w.cleanup()
	if w.b.cfg.CPUAffinity {
		// The loop goroutine exits locked, which retires the pinned thread.
		if err := affinity.Pin(w.id); err != nil {
			w.b.logf("worker %d: %v", w.id, err)
		}
	}
	w.b.debugf("worker %d started", w.id)
	for {
		now := time.Now()
		w.checkStop(now)
		if w.failed || (w.stopping && (len(w.sessions) == 0 || !now.Before(w.stopBy))) {
			return
		}
		n, err := w.poller.Wait(w.events, w.waitTimeout(now))
		if err != nil {
			w.b.fatal(fmt.Errorf("worker %d readiness wait: %w", w.id, err))
			return
		}
		w.dispatch(w.events[:n], time.Now())
		now = time.Now()
		w.checkTimeouts(now)
		w.processPending(now)
		w.processCommands(now)
		w.processClosed()
	}
}

func (w *worker) checkStop(now time.Time) {
	w.stopMu.Lock()
	req, grace := w.stopReq, w.stopGrace
	w.stopMu.Unlock()
	if !req {
		return
	}
	by := now.Add(grace)
	if w.stopping {
		if by.Before(w.stopBy) {
			w.stopBy = by
		}
		return
	}
	w.stopping = true
	w.stopBy = by
	w.b.debugf("worker %d closing %d sessions", w.id, len(w.sessions))
	for _, s := range w.sessions {
		s.Close()
	}
}

func (w *worker) waitTimeout(now time.Time) time.Duration {
	var deadline time.Time
	for _, s := range w.sessions {
		d := s.closeBy
		if s.Status() == api.SessionActive {
			d = s.idleDeadline()
		}
		if !d.IsZero() && (deadline.IsZero() || d.Before(deadline)) {
			deadline = d
		}
	}
	if w.stopping && (deadline.IsZero() || w.stopBy.Before(deadline)) {
		deadline = w.stopBy
	}
	timeout := w.b.cfg.SelectInterval
	if !deadline.IsZero() {
		if d := deadline.Sub(now); d < timeout {
			timeout = max(d, 0)
		}
	}
	return timeout
}

func (w *worker) dispatch(events []poll.Event, now time.Time) {
	for _, ev := range events {
		s := w.sessions[ev.Fd]
		if s == nil || s.IsClosed() {
			continue
		}
		mask := s.EventMask()
		if ev.Hup && !mask.Has(api.EventRead) {
			// Nobody reads, so the error would be reported forever.
			w.closeSession(s)
			continue
		}
		if (ev.Ready.Has(api.EventRead) || ev.Hup) && mask.Has(api.EventRead) {
			s.touch(now)
			w.invoke(s, "input", api.EventHandler.InputReady)
		}
		if ev.Ready.Has(api.EventWrite) && !s.IsClosed() && s.EventMask().Has(api.EventWrite) {
			s.touch(now)
			w.invoke(s, "output", api.EventHandler.OutputReady)
		}
		w.finishGraceful(s)
	}
}

func (w *worker) checkTimeouts(now time.Time) {
	for _, s := range w.sessions {
		switch s.Status() {
		case api.SessionActive:
			d := s.idleDeadline()
			if d.IsZero() || now.Before(d) {
				continue
			}
			s.touch(now)
			w.invoke(s, "timeout", api.EventHandler.Timeout)
		case api.SessionClosing:
			if !s.closeBy.IsZero() && !now.Before(s.closeBy) {
				w.b.debugf("%v: output not drained within grace period", s)
				w.closeSession(s)
			}
		}
	}
}

func (w *worker) processPending(now time.Time) {
	for {
		pc, ok := w.popPending()
		if !ok {
			return
		}
		w.register(pc, now)
	}
}

func (w *worker) register(pc pendingChannel, now time.Time) {
	if w.stopping {
		w.discard(pc)
		return
	}
	if pc.req != nil && pc.req.cancelRequested() {
		_ = poll.Close(pc.fd)
		pc.req.cancel()
		return
	}
	if err := w.poller.Add(pc.fd, api.EventRead); err != nil {
		_ = poll.Close(pc.fd)
		ioe := api.WrapIO("register", "", err)
		if pc.req != nil {
			pc.req.fail(ioe)
		}
		if !w.b.route(ioe, true) {
			w.failed = true
			w.b.fail(ioe)
		}
		return
	}

	s := newIOSession(w, w.b.ids.Add(1), pc.fd, now)
	s.timeout.Store(int64(w.b.cfg.SoTimeout))
	s.facade = s
	if pc.req != nil {
		s.attrs.set(api.AttachmentKey, pc.req.Attachment())
	}
	if dec := w.b.cfg.SessionDecorator; dec != nil {
		if d := dec(s); d != nil {
			s.facade = d
		}
	}
	w.sessions[pc.fd] = s
	w.b.live.Add(1)
	w.b.cfg.Metrics.Add(control.MetricSessionsOpened, 1)

	if pc.req != nil && !pc.req.complete(s.facade) {
		w.closeSession(s)
		return
	}

	var handler api.EventHandler
	if err := w.call("session created", func() error {
		handler = w.factory.NewHandler(s.facade)
		return nil
	}); err != nil {
		w.handleError(s, "session created", err)
		return
	}
	if handler == nil {
		handler = api.NopHandler{}
	}
	s.handler = handler
	w.b.debugf("%v: connected", s)
	w.invoke(s, "connected", api.EventHandler.Connected)
}

func (w *worker) processCommands(now time.Time) {
	for s := w.popDirty(); s != nil; s = w.popDirty() {
		s.dirty.Store(false)
		if s.IsClosed() || w.sessions[s.fd] != s {
			continue
		}
		for cmd := s.nextCommand(); cmd != nil && !s.IsClosed(); cmd = s.nextCommand() {
			if err := w.call("command", func() error {
				cmd(s.facade)
				return nil
			}); err != nil {
				w.handleError(s, "command", err)
			}
		}
		w.sync(s, now)
	}
}

// sync applies close requests and the interest mask to the poller.
func (w *worker) sync(s *ioSession, now time.Time) {
	if s.IsClosed() {
		return
	}
	switch s.closeReq.Load() {
	case closeImmediate:
		w.closeSession(s)
		return
	case closeGraceful:
		if s.closeBy.IsZero() {
			if !s.HasBufferedOutput() {
				w.closeSession(s)
				return
			}
			s.closeBy = now.Add(w.b.cfg.ShutdownGracePeriod)
			if w.stopping && w.stopBy.Before(s.closeBy) {
				s.closeBy = w.stopBy
			}
			s.mask.Store(s.mask.Load() | uint32(api.EventWrite))
		}
	}
	m := s.EventMask()
	if m == s.registered {
		return
	}
	if err := w.poller.Mod(s.fd, m); err != nil {
		w.handleError(s, "interest", api.WrapIO("interest", "", err))
		return
	}
	s.registered = m
}

// finishGraceful closes a CLOSING session once its output drained.
func (w *worker) finishGraceful(s *ioSession) {
	if s.IsClosed() || s.closeReq.Load() != closeGraceful || s.closeBy.IsZero() {
		return
	}
	if !s.HasBufferedOutput() {
		w.closeSession(s)
	}
}

func (w *worker) closeSession(s *ioSession) {
	if s.IsClosed() {
		return
	}
	s.status.Store(int32(api.SessionClosed))
	_ = w.poller.Del(s.fd)
	_ = poll.Close(s.fd)
	if w.sessions[s.fd] == s {
		delete(w.sessions, s.fd)
	}
	w.closed = append(w.closed, s)
	w.b.live.Add(-1)
	w.b.cfg.Metrics.Add(control.MetricSessionsClosed, 1)
}

// processClosed fires Disconnected once per closed session.
func (w *worker) processClosed() {
	for _, s := range w.closed {
		if s.handler == nil || s.disconnected {
			continue
		}
		s.disconnected = true
		if err := w.call("disconnected", func() error {
			s.handler.Disconnected(s.facade)
			return nil
		}); err != nil {
			w.b.logf("%v: disconnect callback failed: %v", s, err)
		}
		w.b.debugf("%v: disconnected", s)
	}
	clear(w.closed)
	w.closed = w.closed[:0]
}

// invoke runs one handler callback unless the session is already inside
// a callback.
func (w *worker) invoke(s *ioSession, op string, fn func(api.EventHandler, api.Session) error) {
	if s.dispatching || s.handler == nil {
		return
	}
	s.dispatching = true
	err := w.call(op, func() error { return fn(s.handler, s.facade) })
	s.dispatching = false
	if err != nil {
		w.handleError(s, op, err)
	}
}

func (w *worker) call(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &api.RuntimeError{Op: op, Panic: r}
		}
	}()
	return fn()
}

// handleError closes the session on I/O errors and routes everything else
// through the exception policy.
func (w *worker) handleError(s *ioSession, op string, err error) {
	if api.IsIOError(err) {
		ioe := api.AsIOError(op, err)
		w.b.debugf("%v: %v", s, ioe)
		w.notifyException(s, ioe)
		w.closeSession(s)
		return
	}
	rte := api.AsRuntimeError(op, err)
	if w.b.route(rte, false) {
		w.notifyException(s, rte)
		w.closeSession(s)
		return
	}
	w.failed = true
	w.b.fail(rte)
}

func (w *worker) notifyException(s *ioSession, err error) {
	if s.handler == nil || s.dispatching {
		return
	}
	s.dispatching = true
	if perr := w.call("exception", func() error {
		s.handler.Exception(s.facade, err)
		return nil
	}); perr != nil {
		w.b.logf("%v: exception callback failed: %v", s, perr)
	}
	s.dispatching = false
}

func (w *worker) cleanup() {
	for _, s := range w.sessions {
		w.closeSession(s)
	}
	w.pendingMu.Lock()
	w.exited = true
	var left []pendingChannel
	for w.pending.Length() > 0 {
		left = append(left, w.pending.Remove().(pendingChannel))
	}
	w.pendingMu.Unlock()
	for _, pc := range left {
		w.discard(pc)
	}
	w.processClosed()
	_ = w.poller.Close()
	w.b.debugf("worker %d stopped", w.id)
}
