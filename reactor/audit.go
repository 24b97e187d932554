// File: reactor/audit.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Exception policy and append-only audit log.

package reactor

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-nio/api"
)

// DefaultExceptionHandler treats every failure as fatal.
type DefaultExceptionHandler struct{}

func (DefaultExceptionHandler) HandleIO(error) bool { return false }

func (DefaultExceptionHandler) HandleRuntime(error) bool { return false }

// ExceptionPolicy adapts two functions to api.ExceptionHandler. A nil
// function classifies the failure as fatal.
type ExceptionPolicy struct {
	IO      func(err error) bool
	Runtime func(err error) bool
}

// HandleIO implements api.ExceptionHandler.
func (p ExceptionPolicy) HandleIO(err error) bool {
	return p.IO != nil && p.IO(err)
}

// HandleRuntime implements api.ExceptionHandler.
func (p ExceptionPolicy) HandleRuntime(err error) bool {
	return p.Runtime != nil && p.Runtime(err)
}

// Recoverable is a policy keeping the reactor alive on every failure.
var Recoverable = ExceptionPolicy{
	IO:      func(error) bool { return true },
	Runtime: func(error) bool { return true },
}

// auditLog is an append-only event list. Readers load an immutable
// snapshot without locking; appends copy the slice.
type auditLog struct {
	mu     sync.Mutex
	events atomic.Pointer[[]api.ExceptionEvent]
}

func (a *auditLog) append(ev api.ExceptionEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var cur []api.ExceptionEvent
	if p := a.events.Load(); p != nil {
		cur = *p
	}
	next := make([]api.ExceptionEvent, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, ev)
	a.events.Store(&next)
}

func (a *auditLog) snapshot() []api.ExceptionEvent {
	p := a.events.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (a *auditLog) len() int {
	return len(a.snapshot())
}
