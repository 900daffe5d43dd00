package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hronir/internal/canon"
)

func fixturePaths() []canon.Path {
	return []canon.Path{
		{ID: "p0a", Position: 0, Successor: "h0a", Status: canon.StatusPending},
		{ID: "p0b", Position: 0, Successor: "h0b", Status: canon.StatusPending},
		{ID: "p1a", Position: 1, Predecessor: hronir("h0a"), Successor: "h1a", Status: canon.StatusPending},
		{ID: "p1b", Position: 1, Predecessor: hronir("h0a"), Successor: "h1b", Status: canon.StatusPending},
		{ID: "p1c", Position: 1, Predecessor: hronir("h0b"), Successor: "h1c", Status: canon.StatusPending},
		{ID: "p2a", Position: 2, Predecessor: hronir("h1a"), Successor: "h2a", Status: canon.StatusPending},
	}
}

// TestGraph_Influence tests the quadratic influence weight.
func TestGraph_Influence(t *testing.T) {
	g := NewGraph(fixturePaths())

	// h0a has two continuations: 1 + sqrt(2)
	assert.InDelta(t, 2.414, g.Influence("h0a"), 0.001)
	// h1a has one: 1 + sqrt(1)
	assert.InDelta(t, 2.0, g.Influence("h1a"), 0.001)
	// a hrönir nobody continued still weighs 1
	assert.InDelta(t, 1.0, g.Influence("h2a"), 0.001)
	assert.InDelta(t, 1.0, g.Influence("unknown"), 0.001)
}

// TestGraph_ScoreCandidates tests quadratic-influence scoring at the root.
func TestGraph_ScoreCandidates(t *testing.T) {
	g := NewGraph(fixturePaths())

	scores := g.ScoreCandidates(0, nil)
	require.Len(t, scores, 2)

	// p0a: children of h0a are p1a (influence(h1a)=2) and p1b
	// (influence(h1b)=1), so score 3. p0b: one child, score 1.
	assert.Equal(t, canon.PathID("p0a"), scores[0].Path.ID)
	assert.InDelta(t, 3.0, scores[0].Score, 0.001)
	assert.Equal(t, 2, scores[0].ChildCount)
	assert.Equal(t, canon.PathID("p0b"), scores[1].Path.ID)
	assert.InDelta(t, 1.0, scores[1].Score, 0.001)
}

// TestGraph_CanonicalChain tests the greedy walk over the fixture.
func TestGraph_CanonicalChain(t *testing.T) {
	g := NewGraph(fixturePaths())

	chain := g.CanonicalChain(100)
	require.Len(t, chain, 3)
	assert.Equal(t, canon.CanonEntry{Position: 0, Path: "p0a", Hronir: "h0a"}, chain[0])
	assert.Equal(t, canon.CanonEntry{Position: 1, Path: "p1a", Hronir: "h1a"}, chain[1])
	assert.Equal(t, canon.CanonEntry{Position: 2, Path: "p2a", Hronir: "h2a"}, chain[2])
}

// TestGraph_CanonicalChain_Deterministic verifies repeated resolution is
// identical regardless of input order.
func TestGraph_CanonicalChain_Deterministic(t *testing.T) {
	paths := fixturePaths()
	first := NewGraph(paths).CanonicalChain(100)

	// Reverse the input order; the chain must not care.
	reversed := make([]canon.Path, 0, len(paths))
	for i := len(paths) - 1; i >= 0; i-- {
		reversed = append(reversed, paths[i])
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, NewGraph(reversed).CanonicalChain(100))
	}
}

// TestGraph_TieBreak_LexicographicPathID tests the documented scenario:
// two paths at position 0, no votes and no children, winner is the
// lexicographically smaller path id.
func TestGraph_TieBreak_LexicographicPathID(t *testing.T) {
	paths := []canon.Path{
		{ID: "zzz", Position: 0, Successor: "hz", Status: canon.StatusPending},
		{ID: "aaa", Position: 0, Successor: "ha", Status: canon.StatusPending},
	}
	chain := NewGraph(paths).CanonicalChain(100)
	require.Len(t, chain, 1)
	assert.Equal(t, canon.PathID("aaa"), chain[0].Path)
}

// TestGraph_TieBreak_ChildCountBeforeID verifies raw child count breaks
// ties before the id does.
func TestGraph_TieBreak_ChildCountBeforeID(t *testing.T) {
	// Both candidates score 2.0: "aaa" via one child with a continuation
	// (influence 2), "zzz" via two leaf children (1+1). The raw child
	// count then prefers zzz despite the larger id.
	paths := []canon.Path{
		{ID: "aaa", Position: 0, Successor: "ha", Status: canon.StatusPending},
		{ID: "zzz", Position: 0, Successor: "hz", Status: canon.StatusPending},
		{ID: "c1", Position: 1, Predecessor: hronir("ha"), Successor: "hc1", Status: canon.StatusPending},
		{ID: "c2", Position: 1, Predecessor: hronir("hz"), Successor: "hc2", Status: canon.StatusPending},
		{ID: "c3", Position: 1, Predecessor: hronir("hz"), Successor: "hc3", Status: canon.StatusPending},
		{ID: "g1", Position: 2, Predecessor: hronir("hc1"), Successor: "hg1", Status: canon.StatusPending},
	}
	scores := NewGraph(paths).ScoreCandidates(0, nil)
	require.Len(t, scores, 2)
	assert.InDelta(t, scores[0].Score, scores[1].Score, 0.0001)
	assert.Equal(t, canon.PathID("zzz"), scores[0].Path.ID)
	assert.Equal(t, 2, scores[0].ChildCount)
}

// TestGraph_MalformedInput tests that broken predecessor chains stop
// the walk instead of looping.
func TestGraph_MalformedInput(t *testing.T) {
	paths := []canon.Path{
		{ID: "root", Position: 0, Successor: "h0", Status: canon.StatusPending},
		// predecessor points at a hrönir that is nobody's successor
		{ID: "orphan", Position: 1, Predecessor: hronir("nowhere"), Successor: "h1", Status: canon.StatusPending},
		// invalid: position 5 pointing back at the root's own hrönir but
		// with a gap below it
		{ID: "gap", Position: 5, Predecessor: hronir("h0"), Successor: "h5", Status: canon.StatusPending},
		// structurally invalid records are dropped by NewGraph
		{ID: "", Position: 0, Successor: "hx", Status: canon.StatusPending},
		{ID: "badroot", Position: 0, Predecessor: hronir("h9"), Successor: "hy", Status: canon.StatusPending},
	}
	chain := NewGraph(paths).CanonicalChain(100)
	// Walk elects the root, then finds no position-1 candidate under h0
	// (the "gap" path sits at position 5) and stops.
	require.Len(t, chain, 1)
	assert.Equal(t, canon.PathID("root"), chain[0].Path)
}

// TestGraph_MaxPositionsGuard tests the walk bound.
func TestGraph_MaxPositionsGuard(t *testing.T) {
	var paths []canon.Path
	paths = append(paths, canon.Path{ID: "p0", Position: 0, Successor: "h0", Status: canon.StatusPending})
	prev := "h0"
	for i := 1; i < 50; i++ {
		paths = append(paths, canon.Path{
			ID:          canon.PathID(itoa2(i)),
			Position:    uint32(i),
			Predecessor: hronir(prev),
			Successor:   canon.HronirID("h" + itoa2(i)),
			Status:      canon.StatusPending,
		})
		prev = "h" + itoa2(i)
	}
	chain := NewGraph(paths).CanonicalChain(10)
	assert.Len(t, chain, 10)
}

func itoa2(i int) string {
	return string(rune('a'+i/26)) + string(rune('a'+i%26))
}
