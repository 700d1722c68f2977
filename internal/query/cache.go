package query

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

type entry[V any] struct {
	done  chan struct{}
	owner uint64
	val   V
	err   error
}

// Stats are cache counters.
type Stats struct {
	Hits   uint64
	Misses uint64
	Len    int
}

// Cache memoizes results of one kind of query.
type Cache[K comparable, V any] struct {
	name  string
	graph *Graph

	mu      sync.Mutex
	entries map[K]*entry[V]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache creates an empty cache. A nil graph gives the cache a private one.
func NewCache[K comparable, V any](name string, g *Graph) *Cache[K, V] {
	if g == nil {
		g = NewGraph()
	}
	return &Cache[K, V]{name: name, graph: g, entries: make(map[K]*entry[V])}
}

func (c *Cache[K, V]) Name() string {
	return c.name
}

// Get returns the cached result for key, computing it with compute on the
// first request. compute receives a context carrying the extended chain and
// must pass it to nested queries.
func (c *Cache[K, V]) Get(ctx context.Context, key K, compute func(context.Context) (V, error)) (V, error) {
	frame := Frame{Cache: c.name, Key: key}
	ch := chainFrom(ctx)
	if ch == nil {
		ch = &chain{id: chainIDs.Add(1)}
	}
	for _, f := range ch.stack {
		if f == frame {
			var zero V
			return zero, &CycleError{Frames: append(append([]Frame(nil), ch.stack...), frame)}
		}
	}

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		c.mu.Unlock()
		c.hits.Add(1)
		select {
		case <-e.done:
			return e.val, e.err
		default:
		}
		if err := c.graph.wait(ch, e.owner, frame); err != nil {
			var zero V
			return zero, err
		}
		select {
		case <-e.done:
		case <-ctx.Done():
			c.graph.done(ch)
			var zero V
			return zero, ctx.Err()
		}
		c.graph.done(ch)
		return e.val, e.err
	}
	e = &entry[V]{done: make(chan struct{}), owner: ch.id}
	c.entries[key] = e
	c.mu.Unlock()
	c.misses.Add(1)

	defer func() {
		if r := recover(); r != nil {
			e.err = &PanicError{Frame: frame, Value: r}
			close(e.done)
			panic(r)
		}
		close(e.done)
	}()
	e.val, e.err = compute(push(ctx, ch, frame))
	return e.val, e.err
}

// PanicError is what waiters see when the computation they waited for
// panicked.
type PanicError struct {
	Frame Frame
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("query %s panicked: %v", e.Frame, e.Value)
}

// Peek returns a finished result without computing anything.
func (c *Cache[K, V]) Peek(key K) (V, error, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		select {
		case <-e.done:
			return e.val, e.err, true
		default:
		}
	}
	var zero V
	return zero, nil, false
}

// Stats returns a snapshot of the counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Len: n}
}
