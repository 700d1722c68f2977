// Package diag defines the diagnostic model used to report failed constant
// evaluations.
//
// A Diagnostic has a severity, a stable Code (rendered as EVAL1001 and the
// like), a primary span, notes and an optional preformatted Detail block. The
// evaluator emits diagnostics through a Reporter, usually with a
// ReportBuilder so that expensive details (memory dumps) are produced only
// when the diagnostic is actually emitted.
//
// Rendering lives in internal/diagfmt.
package diag
