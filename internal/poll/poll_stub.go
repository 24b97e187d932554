//go:build !linux
// +build !linux

// File: internal/poll/poll_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package poll

import (
	"net"
	"time"

	"github.com/momentics/hioload-nio/api"
)

// Event is one readiness notification.
type Event struct {
	Fd    int
	Ready api.EventMask
	Hup   bool
}

// SocketOptions are applied to accepted and connected channels.
type SocketOptions struct {
	TCPNoDelay bool
	KeepAlive  bool
	Linger     time.Duration
	SndBuf     int
	RcvBuf     int
}

// Poller is unavailable on this platform.
type Poller struct{}

// NewPoller returns an error for unsupported platforms.
func NewPoller(int) (*Poller, error) { return nil, api.ErrNotSupported }

func (p *Poller) Add(int, api.EventMask) error { return api.ErrNotSupported }

func (p *Poller) Mod(int, api.EventMask) error { return api.ErrNotSupported }

func (p *Poller) Del(int) error { return api.ErrNotSupported }

func (p *Poller) Wait([]Event, time.Duration) (int, error) { return 0, api.ErrNotSupported }

func (p *Poller) Wake() error { return nil }

func (p *Poller) Close() error { return nil }

func Listen(*net.TCPAddr, int, bool) (int, *net.TCPAddr, error) {
	return -1, nil, api.ErrNotSupported
}

func Accept(int) (int, error) { return -1, api.ErrNotSupported }

func Connect(_, _ *net.TCPAddr, _ bool) (int, bool, error) {
	return -1, false, api.ErrNotSupported
}

func FinishConnect(int) error { return api.ErrNotSupported }

func SetOptions(int, SocketOptions) error { return api.ErrNotSupported }

func LocalAddr(int) *net.TCPAddr { return nil }

func RemoteAddr(int) *net.TCPAddr { return nil }

func Read(int, []byte) (int, error) { return 0, api.ErrNotSupported }

func Write(int, []byte) (int, error) { return 0, api.ErrNotSupported }

func Close(int) error { return nil }
