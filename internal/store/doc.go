// Package store provides SQLite-backed durable storage for the hrönir
// consensus engine.
//
// Tables:
//   - paths: the DAG edges, with forward-only status
//   - votes: append-only verdict records
//   - sessions: frozen dossiers and commit outcomes (kept for audit)
//   - transactions + ledger_head: the hash-chained ledger
//   - consumed_paths: the one-time mandate consumption set
//   - canonical_cache: the derived canonical path (reproducible cache)
//   - seq_clock: the persisted logical clock
//
// Critical patterns:
//   - All ordering uses the logical seq counter, never wall timestamps.
//   - Idempotent inserts via ON CONFLICT(id) DO NOTHING: re-submitting a
//     path or vote with an already-known content-addressed id is a no-op.
//   - Every multi-step engine operation runs inside WithTx; the Queries
//     type is the shared surface of Store (autocommit) and a transaction.
//   - All list queries carry ORDER BY ... id for deterministic results.
//
// Database configuration: WAL mode, synchronous=NORMAL, busy_timeout
// 5000ms, foreign keys on, single-writer connection pool.
package store
