// Package pool
// Author: momentics <momentics@gmail.com>
//
// Reusable byte storage for session buffers. Slices are grouped in size
// classes so a released buffer is only handed out again to a caller asking
// for the same class.
package pool
