// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor implements the non-blocking I/O reactors: a worker event
// loop multiplexing sessions over epoll, a listening variant binding
// endpoints and accepting connections, and a connecting variant driving
// asynchronous connects with deadlines. Failures are classified by a
// pluggable api.ExceptionHandler and recorded in an append-only audit log.
package reactor
