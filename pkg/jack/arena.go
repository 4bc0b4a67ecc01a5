package jack

import (
	"sync"
	"sync/atomic"
)

// cell is the arena slot a handle is bound to. Its generation changes each
// time the native object behind it is destroyed through this package, so a
// handle carrying an older generation is stale even if the slot was reused.
type cell struct {
	gen atomic.Uint32

	// Guarded by arena.mu.
	ref     uintptr
	parent  uintptr
	closing bool
}

// arena tracks the native objects a Server currently has handles for, keyed
// by native reference. Handles for the same native object share one cell.
type arena struct {
	mu   sync.Mutex
	live map[uintptr]*cell
	free []*cell
}

func newArena() *arena {
	return &arena{live: make(map[uintptr]*cell)}
}

// bind returns the cell for ref, allocating or recycling one when ref is not
// live, together with the generation new handles must carry. parent records
// the owning client reference for port objects and is zero for clients.
func (a *arena) bind(ref, parent uintptr) (*cell, uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.live[ref]; ok {
		return c, c.gen.Load()
	}

	var c *cell
	if n := len(a.free); n > 0 {
		c = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		c = &cell{}
	}
	c.ref = ref
	c.parent = parent
	a.live[ref] = c
	return c, c.gen.Load()
}

// retire invalidates every handle bound to ref and returns its cell to the
// free list. It reports whether ref was live.
func (a *arena) retire(ref uintptr) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.retireLocked(ref)
}

// retireChildren retires every object whose parent is ref and returns how
// many there were.
func (a *arena) retireChildren(parent uintptr) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for ref, c := range a.live {
		if c.parent == parent && a.retireLocked(ref) {
			n++
		}
	}
	return n
}

func (a *arena) retireLocked(ref uintptr) bool {
	c, ok := a.live[ref]
	if !ok {
		return false
	}
	delete(a.live, ref)
	c.gen.Add(1)
	c.ref = 0
	c.parent = 0
	c.closing = false
	a.free = append(a.free, c)
	return true
}

// claim marks the object behind c as being destroyed. Only the first caller
// holding the current generation succeeds, whichever sibling handle it uses.
func (a *arena) claim(c *cell, gen uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c.closing || c.gen.Load() != gen {
		return false
	}
	c.closing = true
	return true
}

// size returns the number of live objects.
func (a *arena) size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}
