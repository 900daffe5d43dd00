package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hronir/internal/canon"
)

func chainFixture(t *testing.T, n int) (map[canon.TxID]*canon.Transaction, *canon.TxID) {
	t.Helper()
	now := time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
	byID := make(map[canon.TxID]*canon.Transaction)
	var head *canon.TxID
	for i := 0; i < n; i++ {
		tx, err := BuildTransaction(
			int64(i+1),
			now.Add(time.Duration(i)*time.Minute),
			head,
			canon.SessionID(string(rune('a'+i))+"-session"),
			"some-path",
			map[uint32]canon.PathID{uint32(i): "winner"},
		)
		require.NoError(t, err)
		byID[tx.ID] = &tx
		id := tx.ID
		head = &id
	}
	return byID, head
}

func lookupFrom(byID map[canon.TxID]*canon.Transaction) TxLookup {
	return func(_ context.Context, id canon.TxID) (*canon.Transaction, error) {
		return byID[id], nil
	}
}

// TestBuildTransaction tests the assembled record: chained id, UTC
// timestamp, and a Merkle root matching the verdict batch.
func TestBuildTransaction(t *testing.T) {
	verdicts := map[uint32]canon.PathID{2: "pb", 0: "pa"}
	tx, err := BuildTransaction(7, time.Now(), nil, "s1", "init", verdicts)
	require.NoError(t, err)

	wantID, err := canon.ComputeTxID(7, nil, "s1", "init", verdicts)
	require.NoError(t, err)
	assert.Equal(t, wantID, tx.ID)
	assert.Equal(t, time.UTC, tx.Timestamp.Location())

	leaves, err := VerdictLeaves(verdicts)
	require.NoError(t, err)
	assert.Equal(t, ComputeMerkleRoot(leaves), tx.MerkleRoot)
}

// TestVerdictLeaves_Ordered tests that leaves come out ascending by
// position regardless of map iteration order.
func TestVerdictLeaves_Ordered(t *testing.T) {
	verdicts := map[uint32]canon.PathID{5: "pc", 1: "pa", 3: "pb"}
	leaves, err := VerdictLeaves(verdicts)
	require.NoError(t, err)
	require.Len(t, leaves, 3)

	l1, err := canon.VerdictLeaf(1, "pa")
	require.NoError(t, err)
	l5, err := canon.VerdictLeaf(5, "pc")
	require.NoError(t, err)
	assert.Equal(t, l1, leaves[0])
	assert.Equal(t, l5, leaves[2])
}

// TestVerifyChain tests the full walk: empty, populated, and tampered.
func TestVerifyChain(t *testing.T) {
	ctx := context.Background()

	report, err := VerifyChain(ctx, nil, lookupFrom(nil))
	require.NoError(t, err)
	assert.True(t, report.Verified)
	assert.Equal(t, 0, report.Length)

	byID, head := chainFixture(t, 3)
	report, err = VerifyChain(ctx, head, lookupFrom(byID))
	require.NoError(t, err)
	assert.True(t, report.Verified)
	assert.Equal(t, 3, report.Length)
	assert.Equal(t, head, report.Head)
}

// TestVerifyChain_Tampered tests that rewriting history anywhere in the
// chain is caught.
func TestVerifyChain_Tampered(t *testing.T) {
	ctx := context.Background()
	byID, head := chainFixture(t, 3)

	// Rewrite the genesis verdict; its id no longer matches its content.
	for _, tx := range byID {
		if tx.Prev == nil {
			tx.Verdicts = map[uint32]canon.PathID{0: "forged"}
		}
	}
	report, err := VerifyChain(ctx, head, lookupFrom(byID))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id mismatch")
	assert.False(t, report.Verified)
}

// TestVerifyChain_MerkleMismatch tests root recomputation: a record whose
// id is consistent but whose stored root is not fails on the root check.
func TestVerifyChain_MerkleMismatch(t *testing.T) {
	ctx := context.Background()
	byID, head := chainFixture(t, 1)
	for _, tx := range byID {
		tx.MerkleRoot = EmptyRoot()
	}
	_, err := VerifyChain(ctx, head, lookupFrom(byID))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merkle root mismatch")
}

// TestVerifyChain_MissingAndCyclic tests the structural failure modes.
func TestVerifyChain_MissingAndCyclic(t *testing.T) {
	ctx := context.Background()

	missing := canon.TxID("never-stored")
	_, err := VerifyChain(ctx, &missing, lookupFrom(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing transaction")

	// A transaction that names itself as prev must not loop forever.
	self := canon.TxID("self")
	byID := map[canon.TxID]*canon.Transaction{
		self: {ID: self, Seq: 1, Prev: &self},
	}
	_, err = VerifyChain(ctx, &self, lookupFrom(byID))
	require.Error(t, err)
}
