package trace

import "time"

// Kind is the type of a trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	// KindHeartbeat is emitted by Heartbeat regardless of scope filtering.
	KindHeartbeat
)

var kindNames = [...]string{
	KindSpanBegin: "begin",
	KindSpanEnd:   "end",
	KindPoint:     "point",
	KindHeartbeat: "heartbeat",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// Scope is the granularity of an event. Lower values are coarser.
type Scope uint8

const (
	// ScopeDriver covers command phases and whole batches.
	ScopeDriver Scope = iota + 1
	// ScopeQuery covers one memoized evaluation request.
	ScopeQuery
	// ScopeEval covers interpreter runs, interning and validation.
	ScopeEval
	// ScopeStep covers single statements, terminators and frame pushes.
	ScopeStep
)

var scopeNames = [...]string{
	ScopeDriver: "driver",
	ScopeQuery:  "query",
	ScopeEval:   "eval",
	ScopeStep:   "step",
}

func (s Scope) String() string {
	if int(s) < len(scopeNames) && scopeNames[s] != "" {
		return scopeNames[s]
	}
	return "unknown"
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64 // assigned by the tracer that stores the event
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for roots
	// Lane is the batch slot the event belongs to (1-based), or 0 outside
	// batch evaluation.
	Lane   uint64
	Name   string // "eval_all", "query:FOO", "intern", ...
	Detail string
	Extra  map[string]string
}
