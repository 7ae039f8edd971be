package api

import "sync"

// Registry maps pair names to their manual operations. Acquire and Release
// bracket its lifetime: the first Acquire initializes it, the last Release
// clears it. Shared process-wide so every HTTP mux serves the same pairs.
type Registry struct {
	lock     sync.RWMutex
	refCount int
	pairs    map[string]Pair
}

var defaultRegistry Registry

// Default returns the process-wide registry.
func Default() *Registry {
	return &defaultRegistry
}

// Acquire increments the reference count, initializing the registry on first
// use.
func (r *Registry) Acquire() {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.refCount == 0 {
		r.pairs = make(map[string]Pair)
	}
	r.refCount++
}

// Release decrements the reference count and tears the registry down when it
// reaches zero.
func (r *Registry) Release() {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.refCount == 0 {
		return
	}
	r.refCount--
	if r.refCount == 0 {
		r.pairs = nil
	}
}

// Add registers a pair. A no-op when the registry has not been acquired.
func (r *Registry) Add(name string, pair Pair) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.pairs != nil {
		r.pairs[name] = pair
	}
}

// Remove drops a pair.
func (r *Registry) Remove(name string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.pairs, name)
}

// Get looks up a pair by name.
func (r *Registry) Get(name string) (Pair, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	pair, ok := r.pairs[name]
	return pair, ok
}
