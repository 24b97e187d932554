// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// CPU pinning for reactor worker loops. Platform-specific implementations
// live in affinity_linux.go and affinity_stub.go.

package affinity

import "runtime"

// Pin locks the calling goroutine to its OS thread and binds that thread
// to the slot-th CPU of the thread's allowed set, modulo its size.
//
// The thread stays locked for the rest of the goroutine's life. When the
// goroutine exits still locked, the runtime terminates the thread, so a
// narrowed CPU mask never leaks to other goroutines. Call Pin only from a
// goroutine that owns its thread until it returns.
func Pin(slot int) error {
	runtime.LockOSThread()
	return setAffinityPlatform(slot)
}
