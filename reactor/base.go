// File: reactor/base.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// base carries the state shared by a main loop and its worker loops:
// configuration, status, audit log, metrics and the shutdown protocol.

package reactor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/control"
	"github.com/momentics/hioload-nio/internal/poll"
)

// Stats is a point-in-time view of a reactor.
type Stats struct {
	Name        string
	Status      api.ReactorStatus
	Workers     int
	Sessions    int64
	AuditEvents int
}

// mainLoop is the part of a reactor variant driven by base.execute on the
// Execute caller goroutine.
type mainLoop interface {
	processEvents(events []poll.Event)
	processRequests(now time.Time)
	nextDeadline() time.Time
	shutdownChannels()
}

type base struct {
	cfg    Config
	status statusCell
	audit  auditLog
	poller *poll.Poller

	workers []*worker
	wg      sync.WaitGroup
	rr      atomic.Uint32
	ids     atomic.Uint64
	live    atomic.Int64

	stopMu    sync.Mutex
	stopReq   bool
	stopGrace time.Duration

	errMu sync.Mutex
	err   error

	done     chan struct{}
	doneOnce sync.Once
}

func newBase(opts []Option) (*base, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	p, err := poll.NewPoller(cfg.MaxEvents)
	if err != nil {
		return nil, err
	}
	b := &base{cfg: cfg, poller: p, done: make(chan struct{})}
	b.registerProbes()
	return b, nil
}

func (b *base) registerProbes() {
	name := b.cfg.Name
	b.cfg.Probes.RegisterProbe(name+".status", func() any { return b.Status().String() })
	b.cfg.Probes.RegisterProbe(name+".sessions", func() any { return b.live.Load() })
	b.cfg.Probes.RegisterProbe(name+".audit", func() any { return b.audit.len() })
	b.cfg.Metrics.Set(name+".io_threads", b.cfg.IOThreadCount)
}

func (b *base) logf(format string, args ...any) {
	b.cfg.Logger.Printf("[%s] "+format, append([]any{b.cfg.Name}, args...)...)
}

func (b *base) debugf(format string, args ...any) {
	if b.cfg.Debug {
		b.logf(format, args...)
	}
}

// Status returns the current lifecycle status.
func (b *base) Status() api.ReactorStatus { return b.status.Load() }

// Err returns the fatal error that terminated the reactor, if any.
func (b *base) Err() error {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	if b.err == nil {
		return nil
	}
	return &api.ReactorError{Err: b.err}
}

// AuditLog returns a copy of every exception routed so far.
func (b *base) AuditLog() []api.ExceptionEvent {
	return append([]api.ExceptionEvent(nil), b.audit.snapshot()...)
}

// Stats returns counters for monitoring.
func (b *base) Stats() Stats {
	return Stats{
		Name:        b.cfg.Name,
		Status:      b.Status(),
		Workers:     len(b.workers),
		Sessions:    b.live.Load(),
		AuditEvents: b.audit.len(),
	}
}

// Metrics returns the registry the reactor reports to.
func (b *base) Metrics() *control.MetricsRegistry { return b.cfg.Metrics }

// Probes returns the debug probe registry.
func (b *base) Probes() *control.DebugProbes { return b.cfg.Probes }

// Config returns the effective configuration.
func (b *base) Config() Config { return b.cfg }

// Shutdown requests termination. Sessions get up to grace to finish
// buffered output before they are force-closed. It does not wait.
func (b *base) Shutdown(grace time.Duration) {
	if grace < 0 {
		grace = 0
	}
	if b.status.swap(api.StatusInactive, api.StatusShutDown) {
		b.logf("shut down before start")
		b.poller.Close()
		b.doneOnce.Do(func() { close(b.done) })
		return
	}
	b.requestStop(grace)
}

// Join waits for the reactor to reach SHUT_DOWN.
func (b *base) Join(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *base) requestStop(grace time.Duration) {
	b.stopMu.Lock()
	if !b.stopReq || grace < b.stopGrace {
		b.stopGrace = grace
	}
	b.stopReq = true
	b.stopMu.Unlock()
	_ = b.poller.Wake()
}

func (b *base) stopRequested() (bool, time.Duration) {
	b.stopMu.Lock()
	defer b.stopMu.Unlock()
	return b.stopReq, b.stopGrace
}

// route consults the exception policy and records the verdict in the
// audit log before the caller acts on it.
func (b *base) route(err error, isIO bool) bool {
	ok := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				ok = false
				b.logf("exception handler panicked: %v", r)
			}
		}()
		if isIO {
			ok = b.cfg.ExceptionHandler.HandleIO(err)
		} else {
			ok = b.cfg.ExceptionHandler.HandleRuntime(err)
		}
	}()
	b.audit.append(api.ExceptionEvent{Time: time.Now(), Err: err, Fatal: !ok})
	b.cfg.Metrics.Add(control.MetricExceptionsRouted, 1)
	if ok {
		b.logf("recoverable exception: %v", err)
	} else {
		b.logf("fatal exception: %v", err)
	}
	return ok
}

// record appends an event without consulting the policy.
func (b *base) record(err error, fatal bool) {
	b.audit.append(api.ExceptionEvent{Time: time.Now(), Err: err, Fatal: fatal})
}

// fail stores the first fatal error and begins an immediate shutdown.
func (b *base) fail(err error) {
	b.errMu.Lock()
	if b.err == nil {
		b.err = err
	}
	b.errMu.Unlock()
	b.requestStop(0)
}

// fatal is fail for errors that bypass the policy.
func (b *base) fatal(err error) {
	b.record(err, true)
	b.logf("fatal reactor error: %v", err)
	b.fail(err)
}

func (b *base) failed() bool {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	return b.err != nil
}

func (b *base) socketOptions() poll.SocketOptions {
	return poll.SocketOptions{
		TCPNoDelay: b.cfg.TCPNoDelay,
		KeepAlive:  b.cfg.SoKeepAlive,
		Linger:     b.cfg.SoLinger,
		SndBuf:     b.cfg.SndBufSize,
		RcvBuf:     b.cfg.RcvBufSize,
	}
}

func (b *base) nextWorker() *worker {
	return b.workers[int(b.rr.Add(1)-1)%len(b.workers)]
}

// execute runs loop on the calling goroutine and the workers on their own
// goroutines until shutdown.
func (b *base) execute(factory api.HandlerFactory, loop mainLoop) error {
	if factory == nil {
		return fmt.Errorf("%w: nil handler factory", api.ErrInvalidArgument)
	}
	if !b.status.start() {
		if b.status.Load() == api.StatusActive {
			return api.ErrReactorActive
		}
		return api.ErrReactorShutDown
	}
	b.logf("starting with %d I/O threads", b.cfg.IOThreadCount)
	if err := b.startWorkers(factory); err != nil {
		b.fatal(err)
	} else {
		b.run(loop)
	}
	b.stop(loop)
	return b.Err()
}

func (b *base) startWorkers(factory api.HandlerFactory) error {
	for i := 0; i < b.cfg.IOThreadCount; i++ {
		w, err := newWorker(b, i, factory)
		if err != nil {
			return fmt.Errorf("worker %d: %w", i, err)
		}
		b.workers = append(b.workers, w)
		b.wg.Add(1)
		go w.run()
	}
	return nil
}

func (b *base) run(loop mainLoop) {
	events := make([]poll.Event, b.cfg.MaxEvents)
	for {
		if stop, _ := b.stopRequested(); stop {
			return
		}
		timeout := b.cfg.SelectInterval
		if d := loop.nextDeadline(); !d.IsZero() {
			if until := time.Until(d); until < timeout {
				timeout = max(until, 0)
			}
		}
		n, err := b.poller.Wait(events, timeout)
		if err != nil {
			b.fatal(fmt.Errorf("readiness wait: %w", err))
			return
		}
		loop.processEvents(events[:n])
		loop.processRequests(time.Now())
	}
}

func (b *base) stop(loop mainLoop) {
	b.status.advance(api.StatusShuttingDown)
	_, grace := b.stopRequested()
	if b.failed() {
		grace = 0
	}
	b.debugf("shutting down, grace %v", grace)
	loop.shutdownChannels()
	for _, w := range b.workers {
		w.requestStop(grace)
	}
	b.wg.Wait()
	b.poller.Close()
	b.status.advance(api.StatusShutDown)
	b.logf("shut down")
	b.doneOnce.Do(func() { close(b.done) })
}
