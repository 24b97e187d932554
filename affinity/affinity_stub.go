//go:build !linux

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>

package affinity

import "errors"

var errUnsupported = errors.New("affinity: not supported on this platform")

func setAffinityPlatform(int) error { return errUnsupported }

// Current is not available on this platform.
func Current() ([]int, error) { return nil, errUnsupported }
