// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection for hioload-nio reactors.
//
// Provides concurrent-safe state handling primitives including:
//   - Counters and gauges updated from reactor goroutines
//   - Named debug probes evaluated on demand
//
// Every reactor owns one MetricsRegistry and one DebugProbes unless the
// caller supplies shared instances.
package control
