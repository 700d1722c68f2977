package diag

import (
	"sync"

	"consteval/internal/source"
)

// identity is what makes two diagnostics the same report. Notes and Detail
// are left out: a failing constant reached through two queries is reported
// once, with the notes of the first path.
type identity struct {
	code    Code
	sev     Severity
	primary source.Span
	msg     string
}

// DedupReporter forwards each distinct diagnostic to next once.
type DedupReporter struct {
	next Reporter
	mu   sync.Mutex
	seen map[identity]struct{}
	// dropped counts the suppressed duplicates.
	dropped int
}

func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{next: next, seen: make(map[identity]struct{})}
}

func (r *DedupReporter) Report(d Diagnostic) {
	if r == nil {
		return
	}
	id := identity{code: d.Code, sev: d.Severity, primary: d.Primary, msg: d.Message}
	r.mu.Lock()
	if _, dup := r.seen[id]; dup {
		r.dropped++
		r.mu.Unlock()
		return
	}
	r.seen[id] = struct{}{}
	r.mu.Unlock()
	if r.next != nil {
		r.next.Report(d)
	}
}

// Dropped reports how many duplicates were suppressed.
func (r *DedupReporter) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
