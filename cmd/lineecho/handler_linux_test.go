//go:build linux

package main

import (
	"bufio"
	"context"
	"io"
	"log"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/reactor"
)

// startEcho runs a lineecho reactor on a loopback port until the test ends.
func startEcho(t *testing.T, cfg config) (*reactor.ListeningReactor, net.Addr) {
	t.Helper()
	quiet := log.New(io.Discard, "", 0)
	r, err := newReactor(cfg, quiet)
	if err != nil {
		t.Fatal(err)
	}
	codec, err := cfg.codecOptions()
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() {
		done <- r.Execute(&echoFactory{codec: codec, highWater: cfg.HighWater, log: quiet})
	}()
	t.Cleanup(func() {
		r.Shutdown(0)
		<-done
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ep := r.Listen(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err := ep.WaitFor(ctx); err != nil {
		t.Fatal(err)
	}
	return r, ep.Address()
}

// readLines collects CRLF lines until the server closes the connection.
func readLines(t *testing.T, conn net.Conn) []string {
	t.Helper()
	rd := bufio.NewReader(conn)
	var got []string
	for {
		line, err := rd.ReadString('\n')
		if err == io.EOF {
			return got
		}
		if err != nil {
			t.Fatalf("read: %v (got %q)", err, got)
		}
		got = append(got, strings.TrimRight(line, "\r\n"))
	}
}

func dial(t *testing.T, addr net.Addr) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestLineEchoSession(t *testing.T) {
	cfg := defaultConfig()
	cfg.IOThreads = 1
	cfg.HighWater = 16
	_, addr := startEcho(t, cfg)
	conn := dial(t, addr)

	long := strings.Repeat("x", 100)
	if _, err := io.WriteString(conn, "héllo\r\n"+long+"\nbad \xff byte\nquit\nignored\n"); err != nil {
		t.Fatal(err)
	}
	got := readLines(t, conn)
	want := []string{"HELLO UTF-8", "héllo", long, "bad � byte", "BYE"}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestOverlongLineClosesOnlyItsSession(t *testing.T) {
	cfg := defaultConfig()
	cfg.IOThreads = 1
	r, addr := startEcho(t, cfg)

	bystander := dial(t, addr)
	br := bufio.NewReader(bystander)
	greeting, err := br.ReadString('\n')
	if err != nil || !strings.HasPrefix(greeting, "HELLO") {
		t.Fatalf("greeting %q %v", greeting, err)
	}

	offender := dial(t, addr)
	if _, err := io.WriteString(offender, strings.Repeat("x", cfg.MaxLine+808)); err != nil {
		t.Fatal(err)
	}
	got := readLines(t, offender)
	if len(got) != 2 || !strings.HasPrefix(got[1], "ERR ") || !strings.Contains(got[1], "line length") {
		t.Fatalf("offender got %q", got)
	}

	if r.Status() != api.StatusActive || r.Err() != nil {
		t.Fatalf("status %v err %v", r.Status(), r.Err())
	}
	if _, err := io.WriteString(bystander, "still here\n"); err != nil {
		t.Fatal(err)
	}
	line, err := br.ReadString('\n')
	if err != nil || strings.TrimRight(line, "\r\n") != "still here" {
		t.Fatalf("bystander echo %q %v", line, err)
	}
}
