// File: reactor/logging_session.go
// Author: momentics <momentics@gmail.com>
//
// Pass-through session decorator logging I/O and interest changes.

package reactor

import (
	"log"

	"github.com/momentics/hioload-nio/api"
)

// LoggingSession forwards every call to the wrapped session and logs the
// ones that move data or change state.
type LoggingSession struct {
	api.Session
	log *log.Logger
}

// NewLoggingSession wraps s. A nil logger uses log.Default().
func NewLoggingSession(s api.Session, l *log.Logger) *LoggingSession {
	if l == nil {
		l = log.Default()
	}
	return &LoggingSession{Session: s, log: l}
}

// LoggingDecorator returns a SessionDecorator installing LoggingSession.
func LoggingDecorator(l *log.Logger) SessionDecorator {
	return func(s api.Session) api.Session { return NewLoggingSession(s, l) }
}

// Unwrap returns the decorated session.
func (s *LoggingSession) Unwrap() api.Session { return s.Session }

func (s *LoggingSession) Read(p []byte) (int, error) {
	n, err := s.Session.Read(p)
	if n > 0 || err != nil {
		s.log.Printf("[session-%d] read %d bytes, err=%v", s.ID(), n, err)
	}
	return n, err
}

func (s *LoggingSession) Write(p []byte) (int, error) {
	n, err := s.Session.Write(p)
	s.log.Printf("[session-%d] wrote %d/%d bytes, err=%v", s.ID(), n, len(p), err)
	return n, err
}

func (s *LoggingSession) SetEventMask(m api.EventMask) {
	s.log.Printf("[session-%d] event mask %v", s.ID(), m)
	s.Session.SetEventMask(m)
}

func (s *LoggingSession) SetEvent(m api.EventMask) {
	s.log.Printf("[session-%d] set event %v", s.ID(), m)
	s.Session.SetEvent(m)
}

func (s *LoggingSession) ClearEvent(m api.EventMask) {
	s.log.Printf("[session-%d] clear event %v", s.ID(), m)
	s.Session.ClearEvent(m)
}

func (s *LoggingSession) Close() {
	s.log.Printf("[session-%d] close", s.ID())
	s.Session.Close()
}

func (s *LoggingSession) Shutdown() {
	s.log.Printf("[session-%d] shutdown", s.ID())
	s.Session.Shutdown()
}
