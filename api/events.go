// File: api/events.go
// Package api defines exception policy and audit types for hioload-nio.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "time"

// ExceptionHandler decides whether a failure is recoverable (true, keep
// running) or fatal to the whole reactor (false).
type ExceptionHandler interface {
	HandleIO(err error) bool
	HandleRuntime(err error) bool
}

// ExceptionEvent is an immutable audit log record.
type ExceptionEvent struct {
	Time  time.Time
	Err   error
	Fatal bool
}
