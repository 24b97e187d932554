// File: internal/poll/doc.go
// Package poll
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Readiness multiplexer and non-blocking socket primitives for the reactor.
// The Linux build uses epoll(7) with an eventfd(2) wake-up channel; other
// platforms get stubs returning api.ErrNotSupported.

package poll
