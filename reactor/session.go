// File: reactor/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ioSession binds one connected socket to its worker loop. Interest and
// lifecycle changes from any goroutine are published atomically and
// applied by the owning loop before its next readiness wait.

package reactor

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/internal/poll"
)

const (
	closeNone int32 = iota
	closeGraceful
	closeImmediate
)

type bufferStatusRef struct {
	bs api.BufferStatus
}

type ioSession struct {
	id     uint64
	fd     int
	w      *worker
	local  net.Addr
	remote net.Addr

	mask      atomic.Uint32
	status    atomic.Int32
	closeReq  atomic.Int32
	timeout   atomic.Int64
	lastRead  atomic.Int64
	lastWrite atomic.Int64
	access    atomic.Int64
	dirty     atomic.Bool

	attrs     attributes
	bufStatus atomic.Pointer[bufferStatusRef]

	cmdMu sync.Mutex
	cmds  *queue.Queue

	// Owned by the worker goroutine.
	handler      api.EventHandler
	facade       api.Session
	dispatching  bool
	registered   api.EventMask
	closeBy      time.Time
	disconnected bool
}

var _ api.Session = (*ioSession)(nil)

func newIOSession(w *worker, id uint64, fd int, now time.Time) *ioSession {
	s := &ioSession{
		id:     id,
		fd:     fd,
		w:      w,
		local:  addrOrNil(poll.LocalAddr(fd)),
		remote: addrOrNil(poll.RemoteAddr(fd)),
		cmds:   queue.New(),
	}
	s.mask.Store(uint32(api.EventRead))
	s.registered = api.EventRead
	s.access.Store(now.UnixNano())
	return s
}

// addrOrNil keeps a nil *net.TCPAddr from becoming a non-nil net.Addr.
func addrOrNil(a *net.TCPAddr) net.Addr {
	if a == nil {
		return nil
	}
	return a
}

func (s *ioSession) ID() uint64 { return s.id }

func (s *ioSession) String() string {
	return fmt.Sprintf("session-%d[%v->%v %s]", s.id, s.local, s.remote, s.Status())
}

func (s *ioSession) Read(p []byte) (int, error) {
	if s.IsClosed() {
		return 0, api.ErrSessionClosed
	}
	n, err := poll.Read(s.fd, p)
	if n > 0 {
		s.lastRead.Store(time.Now().UnixNano())
	}
	return n, err
}

func (s *ioSession) Write(p []byte) (int, error) {
	if s.IsClosed() {
		return 0, api.ErrSessionClosed
	}
	n, err := poll.Write(s.fd, p)
	if n > 0 {
		s.lastWrite.Store(time.Now().UnixNano())
	}
	return n, err
}

func (s *ioSession) LocalAddr() net.Addr { return s.local }

func (s *ioSession) RemoteAddr() net.Addr { return s.remote }

func (s *ioSession) EventMask() api.EventMask { return api.EventMask(s.mask.Load()) }

func (s *ioSession) SetEventMask(m api.EventMask) {
	if s.IsClosed() {
		return
	}
	s.mask.Store(uint32(m))
	s.w.markDirty(s)
}

func (s *ioSession) SetEvent(m api.EventMask) {
	s.updateMask(func(cur api.EventMask) api.EventMask { return cur | m })
}

func (s *ioSession) ClearEvent(m api.EventMask) {
	s.updateMask(func(cur api.EventMask) api.EventMask { return cur &^ m })
}

func (s *ioSession) updateMask(fn func(api.EventMask) api.EventMask) {
	if s.IsClosed() {
		return
	}
	for {
		cur := s.mask.Load()
		next := uint32(fn(api.EventMask(cur)))
		if cur == next {
			return
		}
		if s.mask.CompareAndSwap(cur, next) {
			s.w.markDirty(s)
			return
		}
	}
}

func (s *ioSession) Close() {
	if s.status.CompareAndSwap(int32(api.SessionActive), int32(api.SessionClosing)) {
		s.closeReq.CompareAndSwap(closeNone, closeGraceful)
		s.w.markDirty(s)
	}
}

func (s *ioSession) Shutdown() {
	if s.IsClosed() {
		return
	}
	s.status.CompareAndSwap(int32(api.SessionActive), int32(api.SessionClosing))
	s.closeReq.Store(closeImmediate)
	s.w.markDirty(s)
}

func (s *ioSession) Status() api.SessionStatus { return api.SessionStatus(s.status.Load()) }

func (s *ioSession) IsClosed() bool { return s.Status() == api.SessionClosed }

func (s *ioSession) SocketTimeout() time.Duration { return time.Duration(s.timeout.Load()) }

// SetSocketTimeout also restarts the idle clock.
func (s *ioSession) SetSocketTimeout(d time.Duration) {
	s.timeout.Store(int64(d))
	s.access.Store(time.Now().UnixNano())
}

func (s *ioSession) LastReadTime() time.Time { return unixTime(s.lastRead.Load()) }

func (s *ioSession) LastWriteTime() time.Time { return unixTime(s.lastWrite.Load()) }

func unixTime(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (s *ioSession) Attribute(key string) any { return s.attrs.get(key) }

func (s *ioSession) SetAttribute(key string, value any) { s.attrs.set(key, value) }

func (s *ioSession) RemoveAttribute(key string) any { return s.attrs.remove(key) }

func (s *ioSession) Enqueue(cmd api.Command) {
	if cmd == nil || s.IsClosed() {
		return
	}
	s.cmdMu.Lock()
	s.cmds.Add(cmd)
	s.cmdMu.Unlock()
	s.w.markDirty(s)
}

// nextCommand pops the head of the command queue.
func (s *ioSession) nextCommand() api.Command {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	if s.cmds.Length() == 0 {
		return nil
	}
	return s.cmds.Remove().(api.Command)
}

func (s *ioSession) SetBufferStatus(bs api.BufferStatus) {
	if bs == nil {
		s.bufStatus.Store(nil)
		return
	}
	s.bufStatus.Store(&bufferStatusRef{bs: bs})
}

func (s *ioSession) HasBufferedInput() bool {
	ref := s.bufStatus.Load()
	return ref != nil && ref.bs.HasBufferedInput()
}

func (s *ioSession) HasBufferedOutput() bool {
	ref := s.bufStatus.Load()
	return ref != nil && ref.bs.HasBufferedOutput()
}

func (s *ioSession) touch(now time.Time) { s.access.Store(now.UnixNano()) }

// idleDeadline returns when the session times out, or the zero time.
func (s *ioSession) idleDeadline() time.Time {
	to := s.timeout.Load()
	if to <= 0 {
		return time.Time{}
	}
	return time.Unix(0, s.access.Load()+to)
}
