// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector for reactor monitoring.
// Counters live in a thread-safe map with dynamic registration.

package control

import (
	"sync"
	"time"
)

// Counter names maintained by the reactors.
const (
	MetricSessionsOpened    = "sessions.opened"
	MetricSessionsClosed    = "sessions.closed"
	MetricEndpointsBound    = "endpoints.bound"
	MetricRequestsCompleted = "requests.completed"
	MetricRequestsFailed    = "requests.failed"
	MetricRequestsTimedOut  = "requests.timedout"
	MetricRequestsCancelled = "requests.cancelled"
	MetricExceptionsRouted  = "exceptions.routed"
)

// MetricsRegistry holds gauges and counters.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]any
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]any),
	}
}

// Set sets or updates a metric key.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Add increments the int64 counter key by delta. A non-counter value
// under key is replaced.
func (mr *MetricsRegistry) Add(key string, delta int64) int64 {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	v, _ := mr.metrics[key].(int64)
	v += delta
	mr.metrics[key] = v
	mr.updated = time.Now()
	return v
}

// Counter returns the current value of counter key, or 0.
func (mr *MetricsRegistry) Counter(key string) int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	v, _ := mr.metrics[key].(int64)
	return v
}

// Updated returns the time of the last change.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}

// GetSnapshot returns the latest metrics.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}
