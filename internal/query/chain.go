package query

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Frame is one active computation on a chain.
type Frame struct {
	Cache string
	Key   any
}

func (f Frame) String() string {
	return fmt.Sprintf("%s(%v)", f.Cache, f.Key)
}

// chain is the stack of computations of one logical caller. Nested queries
// run on the goroutine of their parent and share its chain.
type chain struct {
	id    uint64
	stack []Frame
}

type chainKey struct{}

var chainIDs atomic.Uint64

func chainFrom(ctx context.Context) *chain {
	if c, ok := ctx.Value(chainKey{}).(*chain); ok {
		return c
	}
	return nil
}

// push returns a context whose chain is c plus f.
func push(ctx context.Context, c *chain, f Frame) context.Context {
	next := &chain{id: c.id, stack: make([]Frame, len(c.stack), len(c.stack)+1)}
	copy(next.stack, c.stack)
	next.stack = append(next.stack, f)
	return context.WithValue(ctx, chainKey{}, next)
}

// Stack returns the active computations of ctx, outermost first.
func Stack(ctx context.Context) []Frame {
	if c := chainFrom(ctx); c != nil {
		return append([]Frame(nil), c.stack...)
	}
	return nil
}

// CycleError reports a query that depends on itself.
type CycleError struct {
	Frames []Frame
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Frames))
	for i, f := range e.Frames {
		parts[i] = f.String()
	}
	return "query cycle: " + strings.Join(parts, " -> ")
}

// Graph tracks which chain waits for which. Caches that may wait on each
// other must share one Graph.
type Graph struct {
	mu      sync.Mutex
	waiting map[uint64]uint64
	stacks  map[uint64][]Frame
}

func NewGraph() *Graph {
	return &Graph{
		waiting: make(map[uint64]uint64),
		stacks:  make(map[uint64][]Frame),
	}
}

// wait records that chain `from` is blocked on a key owned by `owner`. It
// fails if owner (transitively) waits for from.
func (g *Graph) wait(from *chain, owner uint64, target Frame) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for cur, n := owner, 0; n <= len(g.waiting); n++ {
		if cur == from.id {
			frames := append(append([]Frame(nil), from.stack...), target)
			if other, ok := g.stacks[owner]; ok {
				frames = append(frames, other...)
			}
			return &CycleError{Frames: frames}
		}
		next, ok := g.waiting[cur]
		if !ok {
			break
		}
		cur = next
	}
	g.waiting[from.id] = owner
	g.stacks[from.id] = from.stack
	return nil
}

func (g *Graph) done(from *chain) {
	g.mu.Lock()
	delete(g.waiting, from.id)
	delete(g.stacks, from.id)
	g.mu.Unlock()
}
