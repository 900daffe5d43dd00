package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/hronir/internal/canon"
)

// BuildTransaction assembles a transaction chained to the given HEAD.
// The id commits to the sorted verdict content and the prev link; the
// Merkle root commits to the verdict batch for per-verdict proofs.
func BuildTransaction(seq int64, now time.Time, prev *canon.TxID, sessionID canon.SessionID, initiatingPath canon.PathID, verdicts map[uint32]canon.PathID) (canon.Transaction, error) {
	leaves, err := VerdictLeaves(verdicts)
	if err != nil {
		return canon.Transaction{}, err
	}
	id, err := canon.ComputeTxID(seq, prev, sessionID, initiatingPath, verdicts)
	if err != nil {
		return canon.Transaction{}, fmt.Errorf("build transaction: %w", err)
	}
	return canon.Transaction{
		ID:             id,
		Seq:            seq,
		Timestamp:      now.UTC(),
		Prev:           prev,
		SessionID:      sessionID,
		InitiatingPath: initiatingPath,
		Verdicts:       verdicts,
		MerkleRoot:     ComputeMerkleRoot(leaves),
	}, nil
}

// VerdictLeaves encodes a verdict map as ordered Merkle leaves, ascending
// by position. The encoding is canonical JSON, so leaf bytes are stable
// across processes.
func VerdictLeaves(verdicts map[uint32]canon.PathID) ([][]byte, error) {
	positions := canon.SortedVerdictPositions(verdicts)
	leaves := make([][]byte, 0, len(positions))
	for _, p := range positions {
		leaf, err := canon.VerdictLeaf(p, verdicts[p])
		if err != nil {
			return nil, fmt.Errorf("verdict leaves: %w", err)
		}
		leaves = append(leaves, leaf)
	}
	return leaves, nil
}

// TxLookup resolves a transaction id to its record. Returns nil (no
// error) for an unknown id.
type TxLookup func(ctx context.Context, id canon.TxID) (*canon.Transaction, error)

// ChainReport summarizes a VerifyChain walk.
type ChainReport struct {
	Length   int        `json:"length"`
	Head     *canon.TxID `json:"head,omitempty"`
	Verified bool       `json:"verified"`
}

// VerifyChain walks the ledger from HEAD to genesis, recomputing every
// transaction id and Merkle root from record content. Any mismatch is an
// integrity failure: the error names the offending transaction and the
// caller must halt rather than continue.
//
// A nil head (empty ledger) verifies trivially.
func VerifyChain(ctx context.Context, head *canon.TxID, lookup TxLookup) (ChainReport, error) {
	report := ChainReport{Head: head}
	cursor := head
	seen := make(map[canon.TxID]bool)
	for cursor != nil {
		if seen[*cursor] {
			return report, fmt.Errorf("ledger chain: cycle at transaction %s", *cursor)
		}
		seen[*cursor] = true

		tx, err := lookup(ctx, *cursor)
		if err != nil {
			return report, fmt.Errorf("ledger chain: %w", err)
		}
		if tx == nil {
			return report, fmt.Errorf("ledger chain: missing transaction %s", *cursor)
		}

		wantID, err := canon.ComputeTxID(tx.Seq, tx.Prev, tx.SessionID, tx.InitiatingPath, tx.Verdicts)
		if err != nil {
			return report, fmt.Errorf("ledger chain: %w", err)
		}
		if wantID != tx.ID {
			return report, fmt.Errorf("ledger chain: transaction %s id mismatch (recomputed %s)", tx.ID, wantID)
		}

		leaves, err := VerdictLeaves(tx.Verdicts)
		if err != nil {
			return report, fmt.Errorf("ledger chain: %w", err)
		}
		if root := ComputeMerkleRoot(leaves); root != tx.MerkleRoot {
			return report, fmt.Errorf("ledger chain: transaction %s merkle root mismatch", tx.ID)
		}

		report.Length++
		cursor = tx.Prev
	}
	report.Verified = true
	return report, nil
}
