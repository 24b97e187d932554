//go:build linux

package affinity

import "testing"

func TestPinRestrictsThread(t *testing.T) {
	before, err := Current()
	if err != nil || len(before) == 0 {
		t.Fatalf("Current: %v %v", before, err)
	}
	type result struct {
		cpus []int
		err  error
	}
	res := make(chan result, 1)
	go func() {
		if err := Pin(len(before)); err != nil {
			res <- result{err: err}
			return
		}
		cpus, err := Current()
		res <- result{cpus, err}
	}()
	r := <-res
	if r.err != nil {
		t.Skipf("pinning not permitted: %v", r.err)
	}
	if len(r.cpus) != 1 || r.cpus[0] != before[0] {
		t.Errorf("pinned set = %v, want [%d]", r.cpus, before[0])
	}
	after, err := Current()
	if err != nil || len(after) != len(before) {
		t.Errorf("test goroutine mask changed: %v %v", after, err)
	}
}

func TestPinnedThreadIsDiscarded(t *testing.T) {
	before, err := Current()
	if err != nil || len(before) < 2 {
		t.Skip("needs at least two CPUs")
	}
	pinned := make(chan error, 1)
	go func() { pinned <- Pin(0) }()
	if err := <-pinned; err != nil {
		t.Skipf("pinning not permitted: %v", err)
	}
	// Fresh goroutines must never inherit the single-CPU mask.
	for i := 0; i < 64; i++ {
		res := make(chan int, 1)
		go func() {
			cpus, _ := Current()
			res <- len(cpus)
		}()
		if n := <-res; n != len(before) {
			t.Fatalf("goroutine %d ran on a thread restricted to %d CPUs", i, n)
		}
	}
}
