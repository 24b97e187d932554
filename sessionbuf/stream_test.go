package sessionbuf

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-nio/api"
)

// pipeSession records writes and accepts at most limit bytes per call.
type pipeSession struct {
	written []byte
	limit   int
	mask    api.EventMask
}

func (s *pipeSession) Write(p []byte) (int, error) {
	if s.limit > 0 && len(p) > s.limit {
		p = p[:s.limit]
	}
	s.written = append(s.written, p...)
	return len(p), nil
}

func (s *pipeSession) ID() uint64 { return 1 }
func (s *pipeSession) Read([]byte) (int, error) { return 0, nil }
func (s *pipeSession) LocalAddr() net.Addr { return nil }
func (s *pipeSession) RemoteAddr() net.Addr { return nil }
func (s *pipeSession) EventMask() api.EventMask { return s.mask }
func (s *pipeSession) SetEventMask(m api.EventMask) { s.mask = m }
func (s *pipeSession) SetEvent(m api.EventMask) { s.mask |= m }
func (s *pipeSession) ClearEvent(m api.EventMask) { s.mask &^= m }
func (s *pipeSession) Close() {}
func (s *pipeSession) Shutdown() {}
func (s *pipeSession) Status() api.SessionStatus { return api.SessionActive }
func (s *pipeSession) IsClosed() bool { return false }
func (s *pipeSession) SocketTimeout() time.Duration { return 0 }
func (s *pipeSession) SetSocketTimeout(time.Duration) {}
func (s *pipeSession) LastReadTime() time.Time { return time.Time{} }
func (s *pipeSession) LastWriteTime() time.Time { return time.Time{} }
func (s *pipeSession) Attribute(string) any { return nil }
func (s *pipeSession) SetAttribute(string, any) {}
func (s *pipeSession) RemoveAttribute(string) any { return nil }
func (s *pipeSession) Enqueue(api.Command) {}
func (s *pipeSession) SetBufferStatus(api.BufferStatus) {}
func (s *pipeSession) HasBufferedInput() bool { return false }
func (s *pipeSession) HasBufferedOutput() bool { return false }

func TestStreamChannelBackpressure(t *testing.T) {
	s := &pipeSession{limit: 3}
	ch := NewStreamChannel(s, nil, 8)

	if n, err := ch.Write([]byte("0123456789")); n != 8 || err != nil {
		t.Fatalf("Write = %d %v", n, err)
	}
	if !s.mask.Has(api.EventWrite) {
		t.Fatal("Write must request output")
	}
	if n, _ := ch.Write([]byte("x")); n != 0 {
		t.Fatalf("Write above high-water mark = %d", n)
	}
	if !ch.HasBufferedOutput() {
		t.Fatal("buffered output not reported")
	}

	for ch.Buffered() > 0 {
		if n, err := ch.Flush(); err != nil || n == 0 {
			t.Fatalf("Flush = %d %v", n, err)
		}
	}
	if s.mask.Has(api.EventWrite) {
		t.Error("write interest must be cleared once drained")
	}
	if string(s.written) != "01234567" {
		t.Errorf("written %q", s.written)
	}
}

func TestStreamChannelEndStream(t *testing.T) {
	s := &pipeSession{}
	ch := NewStreamChannel(s, nil, 64)
	ch.Write([]byte("body\r\n"))
	if err := ch.EndStream("X-Checksum: 1"); err != nil {
		t.Fatal(err)
	}
	if !ch.Ended() || len(ch.Trailers()) != 1 {
		t.Fatal("stream not ended")
	}
	if _, err := ch.Write([]byte("late")); !errors.Is(err, api.ErrStreamEnded) {
		t.Errorf("Write after end = %v", err)
	}
	if err := ch.EndStream(); !errors.Is(err, api.ErrStreamEnded) {
		t.Errorf("second EndStream = %v", err)
	}
	ch.Flush()
	if string(s.written) != "body\r\nX-Checksum: 1\r\n" {
		t.Errorf("written %q", s.written)
	}
}
