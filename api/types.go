// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations: interest masks, session and reactor states.

package api

import "strings"

// EventMask is a set of readiness events a session is interested in.
type EventMask uint32

const (
	EventRead EventMask = 1 << iota
	EventWrite
	EventAccept
	EventConnect
)

// EventNone clears all interest.
const EventNone EventMask = 0

// Has reports whether all bits of o are set in m.
func (m EventMask) Has(o EventMask) bool {
	return m&o == o && o != 0
}

func (m EventMask) String() string {
	if m == EventNone {
		return "none"
	}
	var parts []string
	if m&EventRead != 0 {
		parts = append(parts, "read")
	}
	if m&EventWrite != 0 {
		parts = append(parts, "write")
	}
	if m&EventAccept != 0 {
		parts = append(parts, "accept")
	}
	if m&EventConnect != 0 {
		parts = append(parts, "connect")
	}
	return strings.Join(parts, "|")
}

// SessionStatus enumerates the state of an I/O session.
type SessionStatus int32

const (
	SessionActive SessionStatus = iota
	SessionClosing
	SessionClosed
)

func (s SessionStatus) String() string {
	switch s {
	case SessionActive:
		return "active"
	case SessionClosing:
		return "closing"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ReactorStatus is the lifecycle of a reactor. Transitions only move forward.
type ReactorStatus int32

const (
	StatusInactive ReactorStatus = iota
	StatusActive
	StatusShuttingDown
	StatusShutDown
)

func (s ReactorStatus) String() string {
	switch s {
	case StatusInactive:
		return "INACTIVE"
	case StatusActive:
		return "ACTIVE"
	case StatusShuttingDown:
		return "SHUTTING_DOWN"
	case StatusShutDown:
		return "SHUT_DOWN"
	default:
		return "UNKNOWN"
	}
}

// RequestState is the completion state of a SessionRequest.
type RequestState int32

const (
	RequestPending RequestState = iota
	RequestCompleted
	RequestFailed
	RequestTimedOut
	RequestCancelled
)

func (s RequestState) String() string {
	switch s {
	case RequestPending:
		return "pending"
	case RequestCompleted:
		return "completed"
	case RequestFailed:
		return "failed"
	case RequestTimedOut:
		return "timed-out"
	case RequestCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s RequestState) Terminal() bool {
	return s != RequestPending
}
