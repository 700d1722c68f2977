// Package consteval evaluates constants, statics and promoted expressions.
//
// An Engine owns the interned memory of one program. Each request names a
// GlobalID (an instance plus an optional promoted index). The engine
// resolves the lowered body, runs it on an interp.Machine, interns the
// result, validates it and, on failure, reports a diagnostic exactly once.
// Results and failures are memoized per key by internal/query, which also
// breaks evaluation cycles.
//
// Entry points:
//
//   - EvalToAllocation: the interned allocation holding the result.
//   - EvalToValue: a portable interp.ConstValue; never for a static's body.
//   - EvalStaticInitializer: the allocation of a static item.
//
// Failures are returned as *ErrorHandled.
package consteval
