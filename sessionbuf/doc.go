// Package sessionbuf provides the buffers a protocol layer keeps per
// session: an InputBuffer filled from non-blocking reads and parsed into
// charset-decoded lines, an OutputBuffer flushed with single non-blocking
// writes, and a StreamChannel adding a high-water mark on top.
//
// Buffers are not safe for concurrent use; they belong to the handler of
// one session and are driven from reactor callbacks.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package sessionbuf
