//go:build linux
// +build linux

// File: internal/poll/socket_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking TCP socket primitives over golang.org/x/sys/unix.

package poll

import (
	"io"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// SocketOptions are applied to accepted and connected channels.
type SocketOptions struct {
	TCPNoDelay bool
	KeepAlive  bool
	Linger     time.Duration // negative disables SO_LINGER
	SndBuf     int           // 0 keeps the system default
	RcvBuf     int
}

func sockaddr(addr *net.TCPAddr) (int, unix.Sockaddr, error) {
	if addr == nil {
		return unix.AF_INET, &unix.SockaddrInet4{}, nil
	}
	if ip4 := addr.IP.To4(); ip4 != nil || addr.IP == nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		if ip4 != nil {
			copy(sa.Addr[:], ip4)
		}
		return unix.AF_INET, sa, nil
	}
	ip6 := addr.IP.To16()
	if ip6 == nil {
		return 0, nil, &net.AddrError{Err: "invalid IP address", Addr: addr.IP.String()}
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], ip6)
	if addr.Zone != "" {
		if ifi, err := net.InterfaceByName(addr.Zone); err == nil {
			sa.ZoneId = uint32(ifi.Index)
		}
	}
	return unix.AF_INET6, sa, nil
}

func tcpAddr(sa unix.Sockaddr) *net.TCPAddr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: append(net.IP(nil), sa.Addr[:]...), Port: sa.Port}
	case *unix.SockaddrInet6:
		a := &net.TCPAddr{IP: append(net.IP(nil), sa.Addr[:]...), Port: sa.Port}
		if sa.ZoneId != 0 {
			if ifi, err := net.InterfaceByIndex(int(sa.ZoneId)); err == nil {
				a.Zone = ifi.Name
			}
		}
		return a
	}
	return nil
}

func newSocket(family int) (int, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, os.NewSyscallError("socket", err)
	}
	return fd, nil
}

// Listen creates a non-blocking listening socket bound to addr and
// returns the resolved local address.
func Listen(addr *net.TCPAddr, backlog int, reuseAddr bool) (int, *net.TCPAddr, error) {
	family, sa, err := sockaddr(addr)
	if err != nil {
		return -1, nil, err
	}
	fd, err := newSocket(family)
	if err != nil {
		return -1, nil, err
	}
	if reuseAddr {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			unix.Close(fd)
			return -1, nil, os.NewSyscallError("setsockopt", err)
		}
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, nil, os.NewSyscallError("bind", err)
	}
	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, nil, os.NewSyscallError("listen", err)
	}
	return fd, LocalAddr(fd), nil
}

// Accept returns the next pending connection, or -1 when none is queued.
func Accept(fd int) (int, error) {
	for {
		nfd, _, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch err {
		case nil:
			return nfd, nil
		case unix.EINTR, unix.ECONNABORTED:
			continue
		case unix.EAGAIN:
			return -1, nil
		default:
			return -1, os.NewSyscallError("accept4", err)
		}
	}
}

// Connect starts a non-blocking connect. connected is true when the
// connection was established immediately.
func Connect(remote, local *net.TCPAddr, reuseAddr bool) (fd int, connected bool, err error) {
	family, rsa, err := sockaddr(remote)
	if err != nil {
		return -1, false, err
	}
	fd, err = newSocket(family)
	if err != nil {
		return -1, false, err
	}
	if local != nil {
		if reuseAddr {
			_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		}
		_, lsa, err := sockaddr(local)
		if err != nil {
			unix.Close(fd)
			return -1, false, err
		}
		if err := unix.Bind(fd, lsa); err != nil {
			unix.Close(fd)
			return -1, false, os.NewSyscallError("bind", err)
		}
	}
	switch err := unix.Connect(fd, rsa); err {
	case nil:
		return fd, true, nil
	case unix.EINPROGRESS, unix.EINTR:
		return fd, false, nil
	default:
		unix.Close(fd)
		return -1, false, os.NewSyscallError("connect", err)
	}
}

// FinishConnect reports the outcome of a pending connect once the socket
// became writable.
func FinishConnect(fd int) error {
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return os.NewSyscallError("getsockopt", err)
	}
	if v != 0 {
		return os.NewSyscallError("connect", unix.Errno(v))
	}
	return nil
}

// SetOptions applies socket options to a connected channel.
func SetOptions(fd int, o SocketOptions) error {
	if o.TCPNoDelay {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			return os.NewSyscallError("setsockopt", err)
		}
	}
	if o.KeepAlive {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
			return os.NewSyscallError("setsockopt", err)
		}
	}
	if o.Linger >= 0 {
		l := &unix.Linger{Onoff: 1, Linger: int32(o.Linger / time.Second)}
		if err := unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, l); err != nil {
			return os.NewSyscallError("setsockopt", err)
		}
	}
	if o.SndBuf > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, o.SndBuf); err != nil {
			return os.NewSyscallError("setsockopt", err)
		}
	}
	if o.RcvBuf > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, o.RcvBuf); err != nil {
			return os.NewSyscallError("setsockopt", err)
		}
	}
	return nil
}

// LocalAddr returns the bound address of fd, or nil.
func LocalAddr(fd int) *net.TCPAddr {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil
	}
	return tcpAddr(sa)
}

// RemoteAddr returns the peer address of fd, or nil.
func RemoteAddr(fd int) *net.TCPAddr {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return nil
	}
	return tcpAddr(sa)
}

// Read reads without blocking: (0, nil) when no data is available and
// (0, io.EOF) at end of stream.
func Read(fd int, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Read(fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, nil
		case err != nil:
			return 0, os.NewSyscallError("read", err)
		case n == 0:
			return 0, io.EOF
		}
		return n, nil
	}
}

// Write writes without blocking: (0, nil) when the send buffer is full.
func Write(fd int, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Write(fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, nil
		case err != nil:
			return 0, os.NewSyscallError("write", err)
		}
		return n, nil
	}
}

// Close closes fd.
func Close(fd int) error {
	if err := unix.Close(fd); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}
