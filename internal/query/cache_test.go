package query_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"consteval/internal/query"
)

func TestCacheMemoizes(t *testing.T) {
	c := query.NewCache[string, int]("len", nil)
	calls := 0
	compute := func(context.Context) (int, error) { calls++; return 3, nil }
	for range 3 {
		v, err := c.Get(context.Background(), "abc", compute)
		if err != nil || v != 3 {
			t.Fatalf("got %d, %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one computation, got %d", calls)
	}
	st := c.Stats()
	if st.Hits != 2 || st.Misses != 1 || st.Len != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestCacheKeepsFailures(t *testing.T) {
	c := query.NewCache[int, int]("div", nil)
	boom := errors.New("boom")
	calls := 0
	for range 2 {
		_, err := c.Get(context.Background(), 1, func(context.Context) (int, error) {
			calls++
			return 0, boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected cached failure, got %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("failure recomputed %d times", calls)
	}
	if _, err, ok := c.Peek(1); !ok || !errors.Is(err, boom) {
		t.Fatalf("Peek must see the failure")
	}
}

func TestCacheDetectsSameChainCycle(t *testing.T) {
	c := query.NewCache[string, int]("eval", nil)
	var inner error
	_, err := c.Get(context.Background(), "A", func(ctx context.Context) (int, error) {
		if got := query.Stack(ctx); len(got) != 1 || got[0].Key != "A" {
			t.Errorf("unexpected stack %v", got)
		}
		return c.Get(ctx, "B", func(ctx context.Context) (int, error) {
			_, inner = c.Get(ctx, "A", func(context.Context) (int, error) { return 0, nil })
			return 0, inner
		})
	})
	var ce *query.CycleError
	if !errors.As(err, &ce) || !errors.As(inner, &ce) {
		t.Fatalf("expected a cycle error, got %v", err)
	}
	if len(ce.Frames) != 3 || ce.Error() != "query cycle: eval(A) -> eval(B) -> eval(A)" {
		t.Fatalf("unexpected cycle %v", ce)
	}
}

func TestCacheDetectsWaitCycle(t *testing.T) {
	g := query.NewGraph()
	c := query.NewCache[string, int]("eval", g)
	startedA, startedB := make(chan struct{}), make(chan struct{})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = c.Get(context.Background(), "A", func(ctx context.Context) (int, error) {
			close(startedA)
			<-startedB
			return c.Get(ctx, "B", nil)
		})
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = c.Get(context.Background(), "B", func(ctx context.Context) (int, error) {
			close(startedB)
			<-startedA
			return c.Get(ctx, "A", nil)
		})
	}()
	wg.Wait()
	for i, err := range errs {
		var ce *query.CycleError
		if !errors.As(err, &ce) {
			t.Fatalf("goroutine %d: expected cycle error, got %v", i, err)
		}
	}
}

func TestCacheConcurrentCallersShareResult(t *testing.T) {
	c := query.NewCache[int, int]("sq", nil)
	var calls atomic.Int32
	gate := make(chan struct{})
	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = c.Get(context.Background(), 7, func(context.Context) (int, error) {
				calls.Add(1)
				<-gate
				return 49, nil
			})
		}()
	}
	close(gate)
	wg.Wait()
	if calls.Load() != 1 {
		t.Fatalf("expected one computation, got %d", calls.Load())
	}
	for _, r := range results {
		if r != 49 {
			t.Fatalf("unexpected results %v", results)
		}
	}
}
