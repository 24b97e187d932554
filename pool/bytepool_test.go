package pool_test

import (
	"testing"

	"github.com/momentics/hioload-nio/pool"
)

func TestBytePoolReuse(t *testing.T) {
	bp := pool.NewBytePool(128)
	b1 := bp.Get()
	if len(b1) != 128 || cap(b1) != 128 {
		t.Fatalf("unexpected slice shape len=%d cap=%d", len(b1), cap(b1))
	}
	bp.Put(b1[:10])
	b2 := bp.Get()
	if len(b2) != 128 {
		t.Errorf("Get after Put must restore full length, got %d", len(b2))
	}
	gets, puts := bp.Stats()
	if gets != 2 || puts != 1 {
		t.Errorf("stats = %d/%d", gets, puts)
	}
}

func TestBytePoolDropsForeignClass(t *testing.T) {
	bp := pool.NewBytePool(64)
	bp.Put(make([]byte, 32))
	if _, puts := bp.Stats(); puts != 0 {
		t.Error("slice of another class must not be pooled")
	}
}

func TestForSizeClasses(t *testing.T) {
	if got := pool.ForSize(1).Size(); got != 512 {
		t.Errorf("ForSize(1) class = %d", got)
	}
	if got := pool.ForSize(4097).Size(); got != 8192 {
		t.Errorf("ForSize(4097) class = %d", got)
	}
	if pool.ForSize(1000) != pool.ForSize(1024) {
		t.Error("same class must share a pool")
	}
}
