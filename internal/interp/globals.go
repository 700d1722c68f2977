package interp

import (
	"sync"
	"sync/atomic"

	"consteval/internal/mir"
)

// Globals is the process-wide table of interned allocations. It is
// append-only: once an id is interned its allocation is never replaced.
// Safe for concurrent use.
type Globals struct {
	next atomic.Uint64

	mu         sync.RWMutex
	allocs     map[AllocID]*Allocation
	statics    map[mir.DefID]AllocID
	staticDefs map[AllocID]mir.DefID
}

// NewGlobals creates an empty table.
func NewGlobals() *Globals {
	return &Globals{
		allocs:     make(map[AllocID]*Allocation, 64),
		statics:    make(map[mir.DefID]AllocID),
		staticDefs: make(map[AllocID]mir.DefID),
	}
}

// NextID hands out a fresh, never reused id.
func (g *Globals) NextID() AllocID {
	return AllocID(g.next.Add(1))
}

// StaticAllocID returns the id reserved for a static, reserving it on first use.
func (g *Globals) StaticAllocID(def mir.DefID) AllocID {
	g.mu.RLock()
	id, ok := g.statics[def]
	g.mu.RUnlock()
	if ok {
		return id
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.statics[def]; ok {
		return id
	}
	id = g.NextID()
	g.statics[def] = id
	g.staticDefs[id] = def
	return id
}

// StaticDef reports which static an id was reserved for.
func (g *Globals) StaticDef(id AllocID) (mir.DefID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	def, ok := g.staticDefs[id]
	return def, ok
}

// Intern freezes alloc under id. The first allocation interned for an id wins
// and is returned; later calls are no-ops.
func (g *Globals) Intern(id AllocID, alloc *Allocation) *Allocation {
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.allocs[id]; ok {
		return prev
	}
	g.allocs[id] = alloc
	return alloc
}

// Get returns an interned allocation.
func (g *Globals) Get(id AllocID) (*Allocation, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.allocs[id]
	return a, ok
}

// Len reports how many allocations are interned.
func (g *Globals) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.allocs)
}
