// File: reactor/status.go
// Author: momentics <momentics@gmail.com>

package reactor

import (
	"sync/atomic"

	"github.com/momentics/hioload-nio/api"
)

// statusCell publishes the reactor status. Transitions only move forward.
type statusCell struct {
	v atomic.Int32
}

func (s *statusCell) Load() api.ReactorStatus {
	return api.ReactorStatus(s.v.Load())
}

// advance moves to next if it lies ahead of the current status.
func (s *statusCell) advance(next api.ReactorStatus) bool {
	for {
		cur := s.v.Load()
		if int32(next) <= cur {
			return false
		}
		if s.v.CompareAndSwap(cur, int32(next)) {
			return true
		}
	}
}

// start moves INACTIVE to ACTIVE only.
func (s *statusCell) start() bool {
	return s.swap(api.StatusInactive, api.StatusActive)
}

// swap moves from to next in one step, failing if another transition won.
func (s *statusCell) swap(from, next api.ReactorStatus) bool {
	return s.v.CompareAndSwap(int32(from), int32(next))
}
