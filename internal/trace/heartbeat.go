package trace

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Heartbeat emits a periodic event so that a stuck evaluation is visible in
// a trace: heartbeats keep arriving while span ends do not.
type Heartbeat struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartHeartbeat emits a heartbeat every interval until Stop. status, when
// non-nil, is appended to each heartbeat, such as the number of finished
// evaluations. It returns nil when tracing is off or interval is not
// positive; Stop on nil is a no-op.
func StartHeartbeat(tracer Tracer, interval time.Duration, status func() string) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Heartbeat{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for n := 1; ; n++ {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				detail := fmt.Sprintf("#%d", n)
				if status != nil {
					detail += " " + status()
				}
				tracer.Emit(&Event{Time: now, Kind: KindHeartbeat, Scope: ScopeDriver, Name: "heartbeat", Detail: detail})
			}
		}
	}()
	return h
}

// Stop ends the heartbeat and waits for the emitting goroutine.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(h.cancel)
	<-h.done
}
