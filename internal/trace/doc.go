// Package trace records what the evaluator does while it runs.
//
// Spans nest: a batch span (scope driver) holds one query span per item,
// which holds interpreter runs, interning and validation (scope eval), which
// hold single steps (scope step). The level decides the finest scope that is
// kept; see Level.ShouldEmit. Batch items run concurrently, so every span
// opened under WithLane carries the item's lane and the text format prints
// it in its own column.
//
// A StreamTracer writes events as they happen, a RingTracer keeps the last
// ones for a crash dump, and New combines them as the storage mode asks:
//
//	consteval --trace=- --trace-level=detail --trace-mode=both eval program.cir
package trace
