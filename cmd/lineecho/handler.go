// File: cmd/lineecho/handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Line echo protocol: every decoded line is sent back encoded in the same
// charset. "quit" ends the stream with a BYE trailer and closes the session.

package main

import (
	"errors"
	"log"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/sessionbuf"
)

type echoFactory struct {
	codec     []sessionbuf.Option
	highWater int
	log       *log.Logger
}

func (f *echoFactory) NewHandler(api.Session) api.EventHandler {
	return &lineEcho{factory: f}
}

// lineEcho keeps per-session buffers. All callbacks run on the owning
// worker loop, so no locking is needed here.
type lineEcho struct {
	factory *echoFactory
	in      *sessionbuf.InputBuffer
	out     *sessionbuf.OutputBuffer
	stream  *sessionbuf.StreamChannel
	pending []byte
	lines   int
}

func (h *lineEcho) Connected(s api.Session) error {
	f := h.factory
	h.in = sessionbuf.NewInputBuffer(sessionbuf.DefaultBufferSize, f.codec...)
	out := sessionbuf.NewOutputBuffer(sessionbuf.DefaultBufferSize, f.codec...)
	h.stream = sessionbuf.NewStreamChannel(s, out, f.highWater)
	s.SetBufferStatus(h.stream)
	h.out = out
	h.queue(s, "HELLO "+h.in.Charset().Name())
	return nil
}

func (h *lineEcho) InputReady(s api.Session) error {
	for len(h.pending) == 0 && !h.stream.Ended() {
		n, err := h.in.Fill(s)
		if err != nil {
			return err
		}
		if err := h.drain(s); err != nil {
			return err
		}
		if n < 0 {
			if !h.stream.Ended() {
				_ = h.stream.EndStream()
			}
			s.Close()
			return nil
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// drain echoes complete lines until the stream pushes back.
func (h *lineEcho) drain(s api.Session) error {
	for len(h.pending) == 0 && !h.stream.Ended() {
		line, ok, err := h.in.ReadLine(h.in.EOF())
		switch {
		case errors.Is(err, api.ErrMalformedInput), errors.Is(err, api.ErrUnmappableInput):
			h.queue(s, "ERR "+err.Error())
			continue
		case errors.Is(err, api.ErrLineTooLong):
			// An over-long line is the client's fault; only its session ends.
			return h.finish(s, "ERR "+err.Error())
		case err != nil:
			return err
		case !ok:
			return nil
		case line == "quit":
			return h.finish(s, "BYE")
		}
		h.lines++
		h.queue(s, line)
	}
	return nil
}

// finish ends the stream with trailer, stops reading and closes once the
// output has drained. Pending echo bytes are dropped.
func (h *lineEcho) finish(s api.Session, trailer string) error {
	h.pending = nil
	s.ClearEvent(api.EventRead)
	if err := h.stream.EndStream(trailer); err != nil {
		return err
	}
	s.Close()
	return nil
}

func (h *lineEcho) queue(s api.Session, line string) {
	enc, err := h.in.Charset().Encode(nil, line, sessionbuf.Replace, sessionbuf.Replace)
	if err != nil {
		h.factory.log.Printf("session %d: encode: %v", s.ID(), err)
		return
	}
	h.pending = append(enc, '\r', '\n')
	h.push(s)
}

// push moves pending bytes into the stream. Reading is suspended while
// the stream is above its high-water mark.
func (h *lineEcho) push(s api.Session) {
	n, err := h.stream.Write(h.pending)
	if err != nil {
		h.pending = nil
		return
	}
	h.pending = h.pending[n:]
	if len(h.pending) > 0 {
		s.ClearEvent(api.EventRead)
	} else {
		h.pending = nil
	}
}

func (h *lineEcho) OutputReady(s api.Session) error {
	if _, err := h.stream.Flush(); err != nil {
		return err
	}
	if len(h.pending) == 0 {
		return nil
	}
	h.push(s)
	if len(h.pending) == 0 && !s.IsClosed() {
		s.SetEvent(api.EventRead)
		return h.drain(s)
	}
	return nil
}

func (h *lineEcho) Timeout(s api.Session) error {
	if !h.stream.Ended() {
		_ = h.stream.EndStream("TIMEOUT")
	}
	s.Close()
	return nil
}

func (h *lineEcho) Disconnected(s api.Session) {
	h.factory.log.Printf("session %d from %v closed after %d lines", s.ID(), s.RemoteAddr(), h.lines)
	if h.in != nil {
		h.in.Release()
		h.out.Release()
	}
}

func (h *lineEcho) Exception(s api.Session, err error) {
	h.factory.log.Printf("session %d: %v", s.ID(), err)
}
