// File: reactor/attributes.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe per-session attribute store used by upper layers to stash
// protocol state.

package reactor

import "sync"

type attributes struct {
	mu    sync.RWMutex
	store map[string]any
}

func (a *attributes) get(key string) any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.store[key]
}

func (a *attributes) set(key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store == nil {
		a.store = make(map[string]any)
	}
	a.store[key] = value
}

// remove deletes key and returns the previous value.
func (a *attributes) remove(key string) any {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.store[key]
	if ok {
		delete(a.store, key)
	}
	return v
}
