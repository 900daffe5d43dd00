package canon

import (
	"fmt"
	"time"
)

// HronirID identifies an immutable content blob (hex SHA-256 of its text).
type HronirID string

// PathID identifies a DAG edge: a proposed successor hrönir after a given
// predecessor at a position. Deterministic hash of (position, predecessor,
// successor), so the same edge always has the same id.
type PathID string

// MandateID identifies a one-time voting authorization attached to a
// qualified path.
type MandateID string

// SessionID identifies a judgment session spawned by activating a mandate.
type SessionID string

// TxID identifies a committed ledger transaction.
type TxID string

// VoteID identifies a single recorded verdict.
type VoteID string

// Status is the lifecycle state of a Path. Transitions are forward-only:
// Pending → Qualified → Spent. A status never reverses.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusQualified Status = "QUALIFIED"
	StatusSpent     Status = "SPENT"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusQualified, StatusSpent:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits moving from s
// to next. Only the two forward edges exist.
func (s Status) CanTransition(next Status) bool {
	switch {
	case s == StatusPending && next == StatusQualified:
		return true
	case s == StatusQualified && next == StatusSpent:
		return true
	}
	return false
}

// Path is an edge of the narrative DAG.
//
// Predecessor is nil exactly at position 0 (the root positions). MandateID
// is assigned when the path qualifies and is nil before that.
type Path struct {
	ID          PathID     `json:"id"`
	Position    uint32     `json:"position"`
	Predecessor *HronirID  `json:"predecessor,omitempty"`
	Successor   HronirID   `json:"successor"`
	Status      Status     `json:"status"`
	MandateID   *MandateID `json:"mandate_id,omitempty"`
}

// Validate checks the structural invariants of a Path.
func (p Path) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("path: empty id")
	}
	if p.Successor == "" {
		return fmt.Errorf("path %s: empty successor", p.ID)
	}
	if !p.Status.Valid() {
		return fmt.Errorf("path %s: unknown status %q", p.ID, p.Status)
	}
	// position 0 ⇔ no predecessor
	if p.Position == 0 && p.Predecessor != nil {
		return fmt.Errorf("path %s: position 0 must have no predecessor", p.ID)
	}
	if p.Position > 0 && p.Predecessor == nil {
		return fmt.Errorf("path %s: position %d requires a predecessor", p.ID, p.Position)
	}
	return nil
}

/// Vote is one recorded verdict: Winner beat Loser at Position, cast under
// the authority of Mandate (the path whose mandate was activated).
//
// RecordedAt is the logical sequence number assigned at append time;
// replay always orders votes by (RecordedAt, ID). RecordedWall is kept
// for audit display and never used for ordering.
type Vote struct {
	ID           VoteID    `json:"id"`
	Position     uint32    `json:"position"`
	Mandate      PathID    `json:"mandate"`
	Winner       HronirID  `json:"winner"`
	Loser        HronirID  `json:"loser"`
	RecordedAt   int64     `json:"recorded_at"`
	RecordedWall time.Time `json:"recorded_wall"`
}

// Duel is a derived pairing of two competing paths proposed for judgment.
// It is ephemeral except when frozen inside a session dossier.
type Duel struct {
	Position   uint32  `json:"position"`
	CandidateA PathID  `json:"candidate_a"`
	CandidateB PathID  `json:"candidate_b"`
	Entropy    float64 `json:"entropy"`
}

// Contains reports whether id is one of the duel's two candidates.
func (d Duel) Contains(id PathID) bool {
	return id == d.CandidateA || id == d.CandidateB
}

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "ACTIVE"
	SessionCommitted SessionStatus = "COMMITTED"
	SessionFailed    SessionStatus = "FAILED"
)

// Session is the execution context of an activated mandate.
//
// The dossier is frozen at session start and never recomputed; the set of
// positions a session may judge is exactly the dossier's key set. Verdicts
// records the accepted winners after commit.
type Session struct {
	ID             SessionID         `json:"id"`
	InitiatingPath PathID            `json:"initiating_path"`
	MandateID      MandateID         `json:"mandate_id"`
	Position       uint32            `json:"position"`
	Dossier        map[uint32]Duel   `json:"dossier"`
	Status         SessionStatus     `json:"status"`
	Verdicts       map[uint32]PathID `json:"verdicts,omitempty"`
}

// VoteBudget returns the maximum number of verdicts a mandate at the
/// session's position may cast: floor(sqrt(position)). The quadratic cap
// discourages low-position spam while rewarding depth.
func (s Session) VoteBudget() int {
	return VoteBudget(s.Position)
}

// VoteBudget is floor(sqrt(n)), computed in integers to stay exact for
// all uint32 positions.
func VoteBudget(n uint32) int {
	if n == 0 {
		return 0
	}
	// integer square root by Newton iteration
	x := uint64(n)
	r := x
	for g := (r + 1) / 2; g < r; g = (r + x/r) / 2 {
		r = g
	}
	return int(r)
}

// Transaction is one committed batch of verdicts, hash-chained to the
// previous ledger HEAD via Prev.
//
// Seq is the logical sequence number at commit time; Timestamp is wall
// time for audit only. MerkleRoot commits to the verdict batch and allows
// per-verdict inclusion proofs independent of the chain.
type Transaction struct {
	ID             TxID              `json:"id"`
	Seq            int64             `json:"seq"`
	Timestamp      time.Time         `json:"timestamp"`
	Prev           *TxID             `json:"prev,omitempty"`
	SessionID      SessionID         `json:"session_id"`
	InitiatingPath PathID            `json:"initiating_path"`
	Verdicts       map[uint32]PathID `json:"verdicts"`
	MerkleRoot     string            `json:"merkle_root"`
}

// CanonEntry is one position of the derived canonical path cache.
// Never authoritative: always reproducible from Path + Vote history.
type CanonEntry struct {
	Position uint32   `json:"position"`
	Path     PathID   `json:"path"`
	Hronir   HronirID `json:"hronir"`
}
