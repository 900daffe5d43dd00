package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
)

// Domain prefixes for Merkle hashing. Leaf and interior nodes hash under
// different domains so a leaf can never be reinterpreted as a node (and
// vice versa).
const (
	merkleLeafDomain  = "hronir/merkle/leaf/v1"
	merkleNodeDomain  = "hronir/merkle/node/v1"
	merkleEmptyDomain = "hronir/merkle/empty/v1"
)

// Side says where a proof sibling sits relative to the running hash.
type Side string

const (
	SideLeft  Side = "L"
	SideRight Side = "R"
)

// ProofStep is one level of a Merkle inclusion proof.
type ProofStep struct {
	Sibling string `json:"sibling"` // hex digest
	Side    Side   `json:"side"`
}

func hashLeaf(leaf []byte) []byte {
	h := sha256.New()
	h.Write([]byte(merkleLeafDomain))
	h.Write([]byte{0x00})
	h.Write(leaf)
	return h.Sum(nil)
}

func hashNode(left, right []byte) []byte {
	h := sha256.New()
	h.Write([]byte(merkleNodeDomain))
	h.Write([]byte{0x00})
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// EmptyRoot is the canonical root of a zero-leaf tree. It is a fixed
// domain-separated constant, not the hash of any leaf or node, so no
// non-empty tree can collide with it.
func EmptyRoot() string {
	h := sha256.New()
	h.Write([]byte(merkleEmptyDomain))
	h.Write([]byte{0x00})
	return hex.EncodeToString(h.Sum(nil))
}

// ComputeMerkleRoot builds a binary Merkle tree over the ordered leaves
// and returns the hex root. An unpaired node at any level is promoted to
// the next level unchanged.
func ComputeMerkleRoot(leaves [][]byte) string {
	if len(leaves) == 0 {
		return EmptyRoot()
	}
	level := make([][]byte, len(leaves))
	for i, leaf := range leaves {
		level[i] = hashLeaf(leaf)
	}
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashNode(level[i], level[i+1]))
			} else {
				next = append(next, level[i]) // promoted unpaired
			}
		}
		level = next
	}
	return hex.EncodeToString(level[0])
}

// GenerateMerkleProof produces the inclusion proof for leaves[index].
// The proof lists, level by level, the sibling digest and which side it
// sits on. Levels where the running node is unpaired contribute no step.
func GenerateMerkleProof(leaves [][]byte, index int) ([]ProofStep, error) {
	if index < 0 || index >= len(leaves) {
		return nil, fmt.Errorf("merkle proof: index %d out of range [0,%d)", index, len(leaves))
	}
	level := make([][]byte, len(leaves))
	for i, leaf := range leaves {
		level[i] = hashLeaf(leaf)
	}

	var proof []ProofStep
	pos := index
	for len(level) > 1 {
		sibling := pos ^ 1
		if sibling < len(level) {
			side := SideRight
			if sibling < pos {
				side = SideLeft
			}
			proof = append(proof, ProofStep{
				Sibling: hex.EncodeToString(level[sibling]),
				Side:    side,
			})
		}
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashNode(level[i], level[i+1]))
			} else {
				next = append(next, level[i])
			}
		}
		level = next
		pos /= 2
	}
	return proof, nil
}

// VerifyMerkleProof checks that leaf sits at index in a total-leaf tree
// with the given root. The tree shape is recomputed from (index, total),
// so a proof with missing, extra, or side-swapped steps fails even when
// the digests themselves are genuine.
func VerifyMerkleProof(leaf []byte, root string, proof []ProofStep, index, total int) bool {
	if index < 0 || index >= total {
		return false
	}
	if total == 0 {
		return false
	}

	h := hashLeaf(leaf)
	pos := index
	levelLen := total
	step := 0
	for levelLen > 1 {
		sibling := pos ^ 1
		if sibling < levelLen {
			if step >= len(proof) {
				return false
			}
			ps := proof[step]
			sib, err := hex.DecodeString(ps.Sibling)
			if err != nil || len(sib) != sha256.Size {
				return false
			}
			expectedSide := SideRight
			if sibling < pos {
				expectedSide = SideLeft
			}
			if ps.Side != expectedSide {
				return false
			}
			if ps.Side == SideLeft {
				h = hashNode(sib, h)
			} else {
				h = hashNode(h, sib)
			}
			step++
		}
		pos /= 2
		levelLen = (levelLen + 1) / 2
	}
	if step != len(proof) {
		return false
	}
	want, err := hex.DecodeString(root)
	if err != nil {
		return false
	}
	return bytes.Equal(h, want)
}

// TrustCheckSampling verifies a random subset of leaves against the root
// by generating and checking an inclusion proof for each sampled index.
//
// An empty leaf set is trusted only when root is the canonical empty
// root; any other root over zero leaves is untrusted. The rng is
// injected so callers (and tests) control sampling determinism.
func TrustCheckSampling(leaves [][]byte, root string, sampleSize int, rng *rand.Rand) (bool, error) {
	if len(leaves) == 0 {
		return root == EmptyRoot(), nil
	}
	if sampleSize <= 0 {
		return false, fmt.Errorf("trust check: sample size must be positive")
	}
	if sampleSize > len(leaves) {
		sampleSize = len(leaves)
	}
	perm := rng.Perm(len(leaves))
	for _, idx := range perm[:sampleSize] {
		proof, err := GenerateMerkleProof(leaves, idx)
		if err != nil {
			return false, fmt.Errorf("trust check: %w", err)
		}
		if !VerifyMerkleProof(leaves[idx], root, proof, idx, len(leaves)) {
			return false, nil
		}
	}
	return true, nil
}
