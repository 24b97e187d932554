//go:build linux

package poll

import (
	"errors"
	"io"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/momentics/hioload-nio/api"
)

func TestPollerWakeInterruptsWait(t *testing.T) {
	p, err := NewPoller(16)
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	defer p.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = p.Wake()
		_ = p.Wake() // collapsed into the first
	}()
	events := make([]Event, 16)
	start := time.Now()
	n, err := p.Wait(events, 5*time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 0 {
		t.Errorf("wake-up must not be reported as an event, got %d", n)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Wait was not interrupted by Wake")
	}
	// The wake flag must be clear so the next Wake writes again.
	if p.wakePending.Load() {
		t.Error("wake flag not reset after drain")
	}
}

func TestPollerTimeout(t *testing.T) {
	p, err := NewPoller(4)
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	defer p.Close()
	start := time.Now()
	n, err := p.Wait(make([]Event, 4), 30*time.Millisecond)
	if err != nil || n != 0 {
		t.Fatalf("Wait = %d, %v", n, err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("Wait returned before timeout")
	}
}

func TestListenAcceptConnectReadWrite(t *testing.T) {
	lfd, laddr, err := Listen(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}, 16, true)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer Close(lfd)
	if laddr.Port == 0 {
		t.Fatal("ephemeral port not resolved")
	}

	p, err := NewPoller(16)
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	defer p.Close()
	if err := p.Add(lfd, api.EventAccept); err != nil {
		t.Fatalf("Add: %v", err)
	}

	cfd, connected, err := Connect(laddr, nil, false)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer Close(cfd)
	if !connected {
		if err := p.Add(cfd, api.EventConnect); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	events := make([]Event, 16)
	sfd := -1
	connectDone := connected
	deadline := time.Now().Add(3 * time.Second)
	for (sfd < 0 || !connectDone) && time.Now().Before(deadline) {
		n, err := p.Wait(events, 100*time.Millisecond)
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
		for _, ev := range events[:n] {
			switch ev.Fd {
			case lfd:
				if fd, err := Accept(lfd); err != nil {
					t.Fatalf("Accept: %v", err)
				} else if fd >= 0 {
					sfd = fd
				}
			case cfd:
				if err := FinishConnect(cfd); err != nil {
					t.Fatalf("FinishConnect: %v", err)
				}
				_ = p.Del(cfd)
				connectDone = true
			}
		}
	}
	if sfd < 0 || !connectDone {
		t.Fatal("connection not established")
	}
	defer Close(sfd)

	if err := SetOptions(sfd, SocketOptions{TCPNoDelay: true, KeepAlive: true, Linger: -1}); err != nil {
		t.Fatalf("SetOptions: %v", err)
	}
	if RemoteAddr(sfd) == nil || LocalAddr(cfd) == nil {
		t.Error("addresses not resolved")
	}

	// Nothing to read yet: non-blocking read reports zero.
	buf := make([]byte, 16)
	if n, err := Read(sfd, buf); n != 0 || err != nil {
		t.Fatalf("empty Read = %d, %v", n, err)
	}
	if n, err := Write(cfd, []byte("ping")); n != 4 || err != nil {
		t.Fatalf("Write = %d, %v", n, err)
	}
	var got []byte
	for len(got) < 4 && time.Now().Before(deadline) {
		n, err := Read(sfd, buf)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != "ping" {
		t.Fatalf("got %q", got)
	}

	Close(cfd)
	for time.Now().Before(deadline) {
		n, err := Read(sfd, buf)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil || n != 0 {
			t.Fatalf("Read after close = %d, %v", n, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("EOF not observed")
}

func TestListenAddressInUse(t *testing.T) {
	lfd, laddr, err := Listen(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}, 16, true)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer Close(lfd)
	_, _, err = Listen(laddr, 16, true)
	if !errors.Is(err, syscall.EADDRINUSE) {
		t.Fatalf("expected EADDRINUSE, got %v", err)
	}
}
