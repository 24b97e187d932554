package reactor

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/momentics/hioload-nio/api"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(cfg.Name, "reactor-") {
		t.Errorf("name = %q", cfg.Name)
	}
	if cfg.IOThreadCount < 1 || cfg.SelectInterval != time.Second || !cfg.TCPNoDelay {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Logger == nil || cfg.Metrics == nil || cfg.Probes == nil {
		t.Error("collaborators not filled in")
	}
	if _, ok := cfg.ExceptionHandler.(DefaultExceptionHandler); !ok {
		t.Errorf("handler = %T", cfg.ExceptionHandler)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := map[string]Option{
		"threads":  WithIOThreadCount(0),
		"select":   WithSelectInterval(0),
		"timeout":  WithSoTimeout(-time.Second),
		"connect":  WithConnectTimeout(-1),
		"backlog":  WithBacklog(-1),
		"sndbuf":   WithSndBufSize(-1),
		"shutdown": WithShutdownGracePeriod(-1),
	}
	for name, opt := range cases {
		if _, err := NewConfig(opt); !errors.Is(err, api.ErrInvalidArgument) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}

func TestOptionsApplyInOrder(t *testing.T) {
	base := DefaultConfig()
	base.Name = "base"
	cfg, err := NewConfig(WithIOThreadCount(3), WithConfig(base), WithName("edge"), WithSoKeepAlive(true))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "edge" || cfg.IOThreadCount != base.IOThreadCount || !cfg.SoKeepAlive {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestStatusOnlyMovesForward(t *testing.T) {
	var s statusCell
	if !s.start() || s.start() {
		t.Fatal("start must succeed exactly once")
	}
	if !s.advance(api.StatusShutDown) {
		t.Fatal("advance to SHUT_DOWN")
	}
	if s.advance(api.StatusShuttingDown) || s.advance(api.StatusActive) {
		t.Fatal("status moved backwards")
	}
	if s.Load() != api.StatusShutDown {
		t.Fatalf("status %v", s.Load())
	}
}

func TestStatusSwapLosesToStart(t *testing.T) {
	var s statusCell
	if !s.start() {
		t.Fatal("start")
	}
	if s.swap(api.StatusInactive, api.StatusShutDown) {
		t.Fatal("INACTIVE to SHUT_DOWN must fail once the reactor started")
	}
	if s.Load() != api.StatusActive {
		t.Fatalf("status %v", s.Load())
	}
}

func TestAuditSnapshotsAreStable(t *testing.T) {
	var a auditLog
	a.append(api.ExceptionEvent{Err: errors.New("one")})
	snap := a.snapshot()
	a.append(api.ExceptionEvent{Err: errors.New("two"), Fatal: true})
	if len(snap) != 1 || a.len() != 2 {
		t.Fatalf("snapshot %d, log %d", len(snap), a.len())
	}
	if !a.snapshot()[1].Fatal {
		t.Error("second event lost its flag")
	}
}

func TestExceptionPolicy(t *testing.T) {
	var p ExceptionPolicy
	if p.HandleIO(errors.New("x")) || p.HandleRuntime(errors.New("x")) {
		t.Error("zero policy must be fatal")
	}
	if !Recoverable.HandleIO(nil) || !Recoverable.HandleRuntime(nil) {
		t.Error("Recoverable must recover")
	}
}

func TestAttributes(t *testing.T) {
	var a attributes
	if a.get("k") != nil || a.remove("k") != nil {
		t.Fatal("empty store")
	}
	a.set("k", 1)
	a.set("k", 2)
	if a.get("k") != 2 || a.remove("k") != 2 || a.get("k") != nil {
		t.Fatal("set/remove")
	}
}

// stubSession records the calls a decorator forwards.
type stubSession struct {
	api.Session
	mask   api.EventMask
	closed bool
}

func (s *stubSession) ID() uint64 { return 7 }

func (s *stubSession) Write(p []byte) (int, error) { return len(p), nil }

func (s *stubSession) SetEvent(m api.EventMask) { s.mask |= m }

func (s *stubSession) Close() { s.closed = true }

func TestLoggingSessionForwards(t *testing.T) {
	var out bytes.Buffer
	inner := &stubSession{}
	s := LoggingDecorator(log.New(&out, "", 0))(inner)

	if n, _ := s.Write([]byte("abc")); n != 3 {
		t.Fatalf("wrote %d", n)
	}
	s.SetEvent(api.EventWrite)
	s.Close()
	if !inner.closed || inner.mask != api.EventWrite {
		t.Fatal("calls not forwarded")
	}
	if s.(*LoggingSession).Unwrap() != inner {
		t.Error("Unwrap")
	}
	for _, want := range []string{"[session-7] wrote 3/3", "set event", "close"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("log lacks %q:\n%s", want, out.String())
		}
	}
}
