//go:build linux
// +build linux

// File: internal/poll/poller_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based readiness multiplexer with eventfd wake-up.

package poll

import (
	"encoding/binary"
	"os"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-nio/api"
	"golang.org/x/sys/unix"
)

// Event is one readiness notification.
type Event struct {
	Fd    int
	Ready api.EventMask // EventRead and/or EventWrite
	Hup   bool          // EPOLLERR or EPOLLHUP
}

// Poller is a level-triggered epoll instance. Add/Mod/Del/Wait must be
// called from the owning loop goroutine; Wake is safe from any goroutine.
type Poller struct {
	epfd        int
	wakefd      int
	raw         []unix.EpollEvent
	wakePending atomic.Bool
	closed      atomic.Bool
}

// NewPoller creates an epoll instance able to report maxEvents per Wait.
func NewPoller(maxEvents int) (*Poller, error) {
	if maxEvents <= 0 {
		maxEvents = 128
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, os.NewSyscallError("eventfd", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, os.NewSyscallError("epoll_ctl", err)
	}
	return &Poller{
		epfd:   epfd,
		wakefd: wakefd,
		raw:    make([]unix.EpollEvent, maxEvents),
	}, nil
}

func toEpoll(m api.EventMask) uint32 {
	var ev uint32
	if m&(api.EventRead|api.EventAccept) != 0 {
		ev |= unix.EPOLLIN
	}
	if m&(api.EventWrite|api.EventConnect) != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

// Add registers fd with the given interest.
func (p *Poller) Add(fd int, m api.EventMask) error {
	ev := unix.EpollEvent{Events: toEpoll(m), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return os.NewSyscallError("epoll_ctl add", err)
	}
	return nil
}

// Mod replaces the interest of fd.
func (p *Poller) Mod(fd int, m api.EventMask) error {
	ev := unix.EpollEvent{Events: toEpoll(m), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return os.NewSyscallError("epoll_ctl mod", err)
	}
	return nil
}

// Del removes fd from the interest list.
func (p *Poller) Del(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return os.NewSyscallError("epoll_ctl del", err)
	}
	return nil
}

// Wait blocks up to timeout (negative means forever) and fills events.
// Wake-ups are consumed internally and not reported.
func (p *Poller) Wait(events []Event, timeout time.Duration) (int, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
		if ms == 0 && timeout > 0 {
			ms = 1
		}
	}
	raw := p.raw
	if len(events) < len(raw) {
		raw = raw[:len(events)]
	}
	n, err := unix.EpollWait(p.epfd, raw, ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil // interrupted by signal - normal
		}
		return 0, os.NewSyscallError("epoll_wait", err)
	}
	out := 0
	for i := 0; i < n; i++ {
		ev := raw[i]
		fd := int(ev.Fd)
		if fd == p.wakefd {
			p.drainWake()
			continue
		}
		var ready api.EventMask
		if ev.Events&unix.EPOLLIN != 0 {
			ready |= api.EventRead
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			ready |= api.EventWrite
		}
		events[out] = Event{
			Fd:    fd,
			Ready: ready,
			Hup:   ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
		}
		out++
	}
	return out, nil
}

// Wake interrupts a blocked Wait. Concurrent calls collapse into one write.
func (p *Poller) Wake() error {
	if p.closed.Load() {
		return nil
	}
	if !p.wakePending.CompareAndSwap(false, true) {
		return nil
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(p.wakefd, buf[:]); err != nil && err != unix.EAGAIN {
		p.wakePending.Store(false)
		return os.NewSyscallError("eventfd write", err)
	}
	return nil
}

func (p *Poller) drainWake() {
	var buf [8]byte
	for {
		if _, err := unix.Read(p.wakefd, buf[:]); err != nil {
			break
		}
	}
	p.wakePending.Store(false)
}

// Close releases the epoll and eventfd descriptors.
func (p *Poller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	unix.Close(p.wakefd)
	return unix.Close(p.epfd)
}
