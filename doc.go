// Package codemap is a semantic code intelligence engine: it parses a
// repository with tree-sitter, extracts symbols and relationships into a
// persisted graph, resolves cross-file references, and answers structural
// queries (callers, callees, impact, call paths, type hierarchies, dead
// code) over that graph without ever materializing it whole in memory.
//
// Indexing is two-phase: Extract parses each file and emits nodes, edges,
// and unresolved references; Resolve then matches every unresolved
// reference against the symbols extraction produced. Both phases are
// idempotent, so re-indexing an unchanged repository is a no-op and
// re-running Resolve never double-applies an edge.
//
// The Engine type drives indexing; QueryEngine answers the read side. Both
// sit on top of internal/store, which is the only component that touches
// SQLite directly.
package codemap
