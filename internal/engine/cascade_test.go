package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hronir/internal/canon"
	"github.com/roach88/hronir/internal/store"
)

func putCanon(t *testing.T, st *store.Store, entries ...canon.CanonEntry) {
	t.Helper()
	err := st.WithTx(context.Background(), func(q *store.Queries) error {
		for _, e := range entries {
			if err := q.PutCanonEntry(context.Background(), e); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

// TestEngine_Cascade_FlipReactivatesDormantVotes tests the central
// cascade property: flipping the winner at position 0 invalidates the
// cached downstream entry and re-ranks the new lineage's heirs, at which
// point votes recorded while that lineage was non-canonical decide the
// outcome.
func TestEngine_Cascade_FlipReactivatesDormantVotes(t *testing.T) {
	e, st := newTestEngine(t, DefaultOptions())
	ctx := context.Background()

	r1 := mustCreatePath(t, e, 0, nil, "h0a")
	r2 := mustCreatePath(t, e, 0, nil, "h0b")
	a1 := mustCreatePath(t, e, 1, hronir("h0a"), "h1a")
	q1 := mustCreatePath(t, e, 1, hronir("h0b"), "h1x")
	q2 := mustCreatePath(t, e, 1, hronir("h0b"), "h1y")

	// Current canon runs through the h0a lineage.
	putCanon(t, st,
		canon.CanonEntry{Position: 0, Path: r1.ID, Hronir: "h0a"},
		canon.CanonEntry{Position: 1, Path: a1.ID, Hronir: "h1a"},
	)

	// Dormant evidence: h1y beat h1x twice while their lineage was off
	// canon. Nothing uses these votes yet.
	seedVote(t, st, 1, "h1y", "h1x")
	seedVote(t, st, 1, "h1y", "h1x")

	// A session initiated from the rival lineage flips position 0.
	forceQualify(t, st, q1.ID)
	session, err := e.StartSession(ctx, q1.ID)
	require.NoError(t, err)
	result, err := e.CommitSession(ctx, session.ID, map[uint32]canon.PathID{0: r2.ID})
	require.NoError(t, err)

	require.Len(t, result.CanonicalPath, 2)
	assert.Equal(t, canon.CanonEntry{Position: 0, Path: r2.ID, Hronir: "h0b"}, result.CanonicalPath[0])
	// a1 no longer descends from the canonical hrönir; the dormant votes
	// elect q2 the moment its lineage is re-ranked.
	assert.Equal(t, canon.CanonEntry{Position: 1, Path: q2.ID, Hronir: "h1y"}, result.CanonicalPath[1])
}

// TestEngine_Cascade_Monotonic tests that positions below the minimal
// touched position are never rewritten.
func TestEngine_Cascade_Monotonic(t *testing.T) {
	e, st := newTestEngine(t, DefaultOptions())
	ctx := context.Background()

	r1 := mustCreatePath(t, e, 0, nil, "h0a")
	mustCreatePath(t, e, 0, nil, "h0b")
	a1 := mustCreatePath(t, e, 1, hronir("h0a"), "h1a")
	x2 := mustCreatePath(t, e, 2, hronir("h1a"), "h2a")
	x2b := mustCreatePath(t, e, 2, hronir("h1a"), "h2b")

	putCanon(t, st,
		canon.CanonEntry{Position: 0, Path: r1.ID, Hronir: "h0a"},
		canon.CanonEntry{Position: 1, Path: a1.ID, Hronir: "h1a"},
		canon.CanonEntry{Position: 2, Path: x2.ID, Hronir: "h2a"},
	)

	p3 := mustCreatePath(t, e, 3, hronir("h2a"), "h3a")
	forceQualify(t, st, p3.ID)
	session, err := e.StartSession(ctx, p3.ID)
	require.NoError(t, err)
	require.Contains(t, session.Dossier, uint32(2))

	result, err := e.CommitSession(ctx, session.ID, map[uint32]canon.PathID{2: x2b.ID})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), result.StartPosition)

	require.Len(t, result.CanonicalPath, 3)
	assert.Equal(t, r1.ID, result.CanonicalPath[0].Path, "position 0 untouched")
	assert.Equal(t, a1.ID, result.CanonicalPath[1].Path, "position 1 untouched")
	assert.Equal(t, canon.CanonEntry{Position: 2, Path: x2b.ID, Hronir: "h2b"}, result.CanonicalPath[2])
}

// TestEngine_Cascade_TruncatesOnInconsistentVerdict tests that a verdict
// for a path that does not descend from the canonical predecessor cuts
// the chain at its position instead of splicing an incoherent entry.
func TestEngine_Cascade_TruncatesOnInconsistentVerdict(t *testing.T) {
	e, st := newTestEngine(t, DefaultOptions())
	ctx := context.Background()

	r1 := mustCreatePath(t, e, 0, nil, "h0a")
	a1 := mustCreatePath(t, e, 1, hronir("h0a"), "h1a")
	// stray descends from a hrönir that was never canonical
	stray := mustCreatePath(t, e, 1, hronir("h0z"), "h1z")

	putCanon(t, st,
		canon.CanonEntry{Position: 0, Path: r1.ID, Hronir: "h0a"},
		canon.CanonEntry{Position: 1, Path: a1.ID, Hronir: "h1a"},
	)

	var chain []canon.CanonEntry
	err := st.WithTx(ctx, func(q *store.Queries) error {
		var err error
		chain, err = e.propagate(ctx, q, 1, map[uint32]canon.PathID{1: stray.ID})
		return err
	})
	require.NoError(t, err)

	require.Len(t, chain, 1)
	assert.Equal(t, r1.ID, chain[0].Path)
}

// TestEngine_RebuildCanon tests that the from-scratch rebuild replaces
// a stale cache with the pure resolver's output.
func TestEngine_RebuildCanon(t *testing.T) {
	e, st := newTestEngine(t, DefaultOptions())
	ctx := context.Background()

	r1 := mustCreatePath(t, e, 0, nil, "h0a")
	r2 := mustCreatePath(t, e, 0, nil, "h0b")
	a1 := mustCreatePath(t, e, 1, hronir("h0a"), "h1a")
	b1 := mustCreatePath(t, e, 1, hronir("h0a"), "h1b")

	// Poison the cache with an entry the resolver would never produce.
	putCanon(t, st, canon.CanonEntry{Position: 0, Path: r2.ID, Hronir: "h0b"})

	chain, err := e.RebuildCanon(ctx)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, r1.ID, chain[0].Path, "two continuations beat zero")

	cached, err := st.Q().CanonicalChain(ctx)
	require.NoError(t, err)
	assert.Equal(t, chain, cached)
	_ = a1
	_ = b1
}

// TestEngine_Rankings_And_NextDuel tests the read-side queries against
// the cache-derived lineage context.
func TestEngine_Rankings_And_NextDuel(t *testing.T) {
	e, st := newTestEngine(t, DefaultOptions())
	ctx := context.Background()

	r1 := mustCreatePath(t, e, 0, nil, "h0a")
	a1 := mustCreatePath(t, e, 1, hronir("h0a"), "h1a")
	b1 := mustCreatePath(t, e, 1, hronir("h0a"), "h1b")
	putCanon(t, st, canon.CanonEntry{Position: 0, Path: r1.ID, Hronir: "h0a"})

	seedVote(t, st, 1, "h1b", "h1a")

	ratings, err := e.Rankings(ctx, 1)
	require.NoError(t, err)
	require.Len(t, ratings, 2)
	assert.Equal(t, b1.ID, ratings[0].Path.ID)
	assert.Equal(t, 1, ratings[0].Wins)

	duel, err := e.NextDuel(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, duel)
	assert.True(t, duel.Contains(a1.ID))
	assert.True(t, duel.Contains(b1.ID))

	// Undeterminable lineage: the chain does not reach position 4.
	none, err := e.NextDuel(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, none)
}
