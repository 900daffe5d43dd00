package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/hronir/internal/canon"
	"github.com/roach88/hronir/internal/store"
)

// newTestEngine opens an in-memory store with deterministic session ids
// and a fixed wall clock.
func newTestEngine(t *testing.T, opt Options) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	e := New(st, opt, slog.New(slog.NewTextHandler(io.Discard, nil)))
	counter := 0
	e.SetSessionIDFunc(func() canon.SessionID {
		counter++
		return canon.SessionID(fmt.Sprintf("session-%04d", counter))
	})
	e.SetNowFunc(func() time.Time {
		return time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
	})
	return e, st
}

// mustCreatePath proposes an edge and returns the stored record.
func mustCreatePath(t *testing.T, e *Engine, position uint32, predecessor *canon.HronirID, successor canon.HronirID) canon.Path {
	t.Helper()
	p, err := e.CreatePath(context.Background(), position, predecessor, successor)
	require.NoError(t, err)
	return p
}

// seedVote appends a vote directly, advancing the logical clock.
func seedVote(t *testing.T, st *store.Store, position uint32, winner, loser canon.HronirID) {
	t.Helper()
	ctx := context.Background()
	err := st.WithTx(ctx, func(q *store.Queries) error {
		seq, err := q.NextSeq(ctx)
		if err != nil {
			return err
		}
		id, err := canon.ComputeVoteID(position, "seed-mandate", winner, loser, seq)
		if err != nil {
			return err
		}
		return q.AppendVote(ctx, canon.Vote{
			ID:           id,
			Position:     position,
			Mandate:      "seed-mandate",
			Winner:       winner,
			Loser:        loser,
			RecordedAt:   seq,
			RecordedWall: time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC),
		})
	})
	require.NoError(t, err)
}

// forceQualify moves a path straight to Qualified with a synthetic
// mandate, bypassing the threshold policy. Lifecycle tests that exercise
// the policy itself use Engine.Qualify instead.
func forceQualify(t *testing.T, st *store.Store, id canon.PathID) {
	t.Helper()
	ctx := context.Background()
	mandate := canon.ComputeMandateID(id, nil)
	require.NoError(t, st.Q().SetPathStatus(ctx, id, canon.StatusQualified, &mandate))
}

// hronir is a shorthand for building predecessor pointers in fixtures.
func hronir(id string) *canon.HronirID {
	h := canon.HronirID(id)
	return &h
}
