package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainContent = "hronir/content/v1"
	DomainPath    = "hronir/path/v1"
	DomainMandate = "hronir/mandate/v1"
	DomainTx      = "hronir/tx/v1"
	DomainVote    = "hronir/vote/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null separator prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentID computes the content-addressed identity of a hrönir text.
// Identical text always yields the same id; the blob store relies on
// this for idempotent writes.
func ContentID(text []byte) HronirID {
	return HronirID(hashWithDomain(DomainContent, text))
}

// ComputePathID computes the deterministic id of a DAG edge. Re-submitting
// the same (position, predecessor, successor) triple yields the same id,
// which is how duplicate path creation stays idempotent.
//
// A nil predecessor (position 0) hashes as the empty string.
func ComputePathID(position uint32, predecessor *HronirID, successor HronirID) (PathID, error) {
	pred := ""
	if predecessor != nil {
		pred = string(*predecessor)
	}
	obj := map[string]any{
		"position":    position,
		"predecessor": pred,
		"successor":   successor,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ComputePathID: %w", err)
	}
	return PathID(hashWithDomain(DomainPath, canonical)), nil
}

// ComputeMandateID derives the one-time voting authorization for a path
// at qualification time. Binding the ledger HEAD at that moment makes the
// mandate auditable: anyone can recompute it from path id plus the
// transaction history.
//
// lastTx is the ledger HEAD before this qualification; nil when the
// ledger is empty (hashes as the empty string).
func ComputeMandateID(pathID PathID, lastTx *TxID) MandateID {
	prev := ""
	if lastTx != nil {
		prev = string(*lastTx)
	}
	return MandateID(hashWithDomain(DomainMandate, []byte(string(pathID)+prev)))
}

// ComputeTxID computes the id of a ledger transaction from its own sorted
// content plus the previous transaction id, forming the hash chain.
func ComputeTxID(seq int64, prev *TxID, sessionID SessionID, initiatingPath PathID, verdicts map[uint32]PathID) (TxID, error) {
	prevStr := ""
	if prev != nil {
		prevStr = string(*prev)
	}
	obj := map[string]any{
		"seq":             seq,
		"prev":            prevStr,
		"session_id":      sessionID,
		"initiating_path": initiatingPath,
		"verdicts":        verdictList(verdicts),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ComputeTxID: %w", err)
	}
	return TxID(hashWithDomain(DomainTx, canonical)), nil
}

// ComputeVoteID computes the id of a single verdict record.
func ComputeVoteID(position uint32, mandate PathID, winner, loser HronirID, seq int64) (VoteID, error) {
	obj := map[string]any{
		"position": position,
		"mandate":  mandate,
		"winner":   winner,
		"loser":    loser,
		"seq":      seq,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ComputeVoteID: %w", err)
	}
	return VoteID(hashWithDomain(DomainVote, canonical)), nil
}

// VerdictLeaf is the canonical encoding of one (position, winner) verdict,
// used both for tx-id hashing and as a Merkle leaf.
func VerdictLeaf(position uint32, winner PathID) ([]byte, error) {
	obj := map[string]any{
		"position": position,
		"winner":   winner,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return nil, fmt.Errorf("VerdictLeaf: %w", err)
	}
	return canonical, nil
}

// SortedVerdictPositions returns the verdict positions in ascending order.
// Every consumer of a verdict map iterates in this order; map iteration
// order must never leak into hashes or ledger records.
func SortedVerdictPositions(verdicts map[uint32]PathID) []uint32 {
	positions := make([]uint32, 0, len(verdicts))
	for p := range verdicts {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
	return positions
}

// verdictList flattens a verdict map into a deterministic array form for
// canonical marshaling (maps with non-string keys cannot be marshaled
// directly).
func verdictList(verdicts map[uint32]PathID) []any {
	positions := SortedVerdictPositions(verdicts)
	out := make([]any, 0, len(positions))
	for _, p := range positions {
		out = append(out, map[string]any{
			"position": p,
			"winner":   verdicts[p],
		})
	}
	return out
}
