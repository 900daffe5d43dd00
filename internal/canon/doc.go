// Package canon provides the typed records and content-addressed identity
// scheme for the hrönir corpus.
//
// This package contains type definitions and hashing only. All other
// internal packages import canon; canon imports nothing internal. This
// keeps it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Identity is always SHA-256 over domain-separated canonical JSON.
//     Re-submitting the same content yields the same id (idempotency).
//   - Path status is a forward-only state machine: Pending → Qualified →
//     Spent. Invalid transitions are rejected, never repaired.
//   - Votes and transactions are append-only records; nothing in this
//     package models mutation of either.
//   - Vote ordering uses the logical sequence number (RecordedAt), never
//     wall-clock timestamps. Wall time is carried for audit display only.
package canon
