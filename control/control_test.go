package control

import (
	"sync"
	"testing"
)

func TestMetricsCounters(t *testing.T) {
	mr := NewMetricsRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				mr.Add(MetricSessionsOpened, 1)
			}
		}()
	}
	wg.Wait()
	if got := mr.Counter(MetricSessionsOpened); got != 800 {
		t.Fatalf("counter = %d", got)
	}
	mr.Set("reactor.name", "r1")
	snap := mr.GetSnapshot()
	if snap["reactor.name"] != "r1" || snap[MetricSessionsOpened] != int64(800) {
		t.Errorf("snapshot = %v", snap)
	}
	if mr.Updated().IsZero() {
		t.Error("update time not recorded")
	}
}

func TestDebugProbes(t *testing.T) {
	dp := NewDebugProbes()
	RegisterPlatformProbes(dp)
	dp.RegisterProbe("reactor.status", func() any { return "ACTIVE" })
	state := dp.DumpState()
	if state["reactor.status"] != "ACTIVE" {
		t.Errorf("state = %v", state)
	}
	if _, ok := state["platform.cpus"]; !ok {
		t.Error("platform probe missing")
	}
	dp.UnregisterProbe("reactor.status")
	for _, n := range dp.Names() {
		if n == "reactor.status" {
			t.Error("probe not removed")
		}
	}
}
