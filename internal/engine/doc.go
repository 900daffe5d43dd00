// Package engine implements the canon consensus engine for the hrönir
// corpus: canonical-path resolution, lineage-filtered Elo rating with
// max-entropy duel selection, the mandate/session lifecycle, and the
// temporal cascade.
//
// ARCHITECTURE:
//
// The engine is a library, not a service. It performs no internal
// threading; request-handling workers call it, and every multi-step
// operation (qualification, session start, session commit, cascade)
// executes as a single serializable store transaction. Nothing partial
// is ever visible: a caller cancelled before commit leaves no trace.
//
// Determinism:
//   - All event ordering uses the persisted logical clock, never wall
//     time.
//   - Elo is always replayed from scratch over the full vote history in
//     (seq, vote id) order; there is no incremental state to drift.
//   - Every tie-break is total and documented: influence score, then raw
//     child count, then lexicographic path id for the resolver; Elo,
//     wins, path id for rankings. Identical inputs produce byte-identical
//     output.
//
// Walk safety: malformed input can make the DAG look cyclic. Every chain
// walk advances position strictly and is bounded by Options.MaxPositions,
// so the engine terminates on any input; a broken predecessor chain
// simply yields no candidates and the walk stops there.
package engine
