// Package query memoizes evaluation results.
//
// A Cache computes each key at most once. Concurrent callers asking for the
// same key wait for the goroutine that computes it. Failures are cached like
// values. Two kinds of cycles are reported as *CycleError instead of
// deadlocking:
//
//   - a computation that asks for a key already on its own chain
//     (chains are carried in the context.Context);
//   - two chains each waiting for a key the other one is computing.
//
// DiskCache persists portable results between runs.
package query
