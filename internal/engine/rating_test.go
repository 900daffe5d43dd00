package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hronir/internal/canon"
)

func ratingHeirs() []canon.Path {
	return []canon.Path{
		{ID: "pa", Position: 1, Predecessor: hronir("h0"), Successor: "ha", Status: canon.StatusPending},
		{ID: "pb", Position: 1, Predecessor: hronir("h0"), Successor: "hb", Status: canon.StatusPending},
	}
}

func vote(id string, seq int64, winner, loser canon.HronirID) canon.Vote {
	return canon.Vote{
		ID:         canon.VoteID(id),
		Position:   1,
		Mandate:    "m",
		Winner:     winner,
		Loser:      loser,
		RecordedAt: seq,
	}
}

// TestExpectation tests the logistic win probability.
func TestExpectation(t *testing.T) {
	assert.InDelta(t, 0.5, Expectation(1500, 1500), 1e-9)
	// +400 points is the canonical 10:1 favorite
	assert.InDelta(t, 10.0/11.0, Expectation(1900, 1500), 1e-9)
	// symmetric
	assert.InDelta(t, 1.0, Expectation(1600, 1480)+Expectation(1480, 1600), 1e-9)
}

// TestEntropy tests the Bernoulli entropy shape.
func TestEntropy(t *testing.T) {
	assert.InDelta(t, 1.0, entropy(0.5), 1e-9)
	assert.Equal(t, 0.0, entropy(0))
	assert.Equal(t, 0.0, entropy(1))
	assert.Greater(t, entropy(0.5), entropy(0.9))
}

// TestRater_Rank_NoVotes tests that unvoted heirs all sit at base Elo,
// ordered by path id.
func TestRater_Rank_NoVotes(t *testing.T) {
	ratings := NewRater().Rank(ratingHeirs(), nil)
	require.Len(t, ratings, 2)
	assert.Equal(t, canon.PathID("pa"), ratings[0].Path.ID)
	assert.Equal(t, DefaultEloBase, ratings[0].Elo)
	assert.Equal(t, DefaultEloBase, ratings[1].Elo)
}

// TestRater_Rank_TwoOfThree replays the reference scenario: A beats B,
// B beats A, A beats B. A ends near 1515, B near 1485; the magnitudes
// differ from a flat 2-1 record because each update weighs the standing
// at the time of the vote.
func TestRater_Rank_TwoOfThree(t *testing.T) {
	votes := []canon.Vote{
		vote("v1", 1, "ha", "hb"),
		vote("v2", 2, "hb", "ha"),
		vote("v3", 3, "ha", "hb"),
	}
	ratings := NewRater().Rank(ratingHeirs(), votes)
	require.Len(t, ratings, 2)

	assert.Equal(t, canon.PathID("pa"), ratings[0].Path.ID)
	assert.InDelta(t, 1514.67, ratings[0].Elo, 0.01)
	assert.Equal(t, 2, ratings[0].Wins)
	assert.Equal(t, 1, ratings[0].Losses)
	assert.InDelta(t, 1485.33, ratings[1].Elo, 0.01)
	assert.Equal(t, 1, ratings[1].Wins)
	assert.Equal(t, 2, ratings[1].Losses)
}

// TestRater_Rank_ReplayOrderIndependent tests that retrieval order of the
// vote slice never changes the result; only (RecordedAt, ID) does.
func TestRater_Rank_ReplayOrderIndependent(t *testing.T) {
	votes := []canon.Vote{
		vote("v1", 1, "ha", "hb"),
		vote("v2", 2, "hb", "ha"),
		vote("v3", 3, "ha", "hb"),
	}
	shuffled := []canon.Vote{votes[2], votes[0], votes[1]}

	a := NewRater().Rank(ratingHeirs(), votes)
	b := NewRater().Rank(ratingHeirs(), shuffled)
	assert.Equal(t, a, b)
}

// TestRater_Rank_LineageFilter tests that votes touching hrönirs outside
// the heir set are skipped, not counted.
func TestRater_Rank_LineageFilter(t *testing.T) {
	votes := []canon.Vote{
		vote("v1", 1, "ha", "elsewhere"),
		vote("v2", 2, "elsewhere", "hb"),
		vote("v3", 3, "ha", "hb"),
	}
	ratings := NewRater().Rank(ratingHeirs(), votes)
	require.Len(t, ratings, 2)
	assert.Equal(t, 1, ratings[0].Wins)
	assert.Equal(t, 0, ratings[0].Losses)
	assert.Equal(t, 1, ratings[1].Losses)
}

// TestRater_SelectDuel_Degenerate tests the 0/1/2-heir cases.
func TestRater_SelectDuel_Degenerate(t *testing.T) {
	r := NewRater()

	assert.Nil(t, r.SelectDuel(1, nil))
	assert.Nil(t, r.SelectDuel(1, []Rating{{Path: canon.Path{ID: "pa"}}}))

	two := []Rating{
		{Path: canon.Path{ID: "pa"}, Elo: 1700},
		{Path: canon.Path{ID: "pb"}, Elo: 1400},
	}
	d := r.SelectDuel(3, two)
	require.NotNil(t, d)
	assert.Equal(t, uint32(3), d.Position)
	assert.Equal(t, canon.PathID("pa"), d.CandidateA)
	assert.Equal(t, canon.PathID("pb"), d.CandidateB)
}

// TestRater_SelectDuel_MaxEntropy tests that the closest-rated pair is
// chosen out of a wider field.
func TestRater_SelectDuel_MaxEntropy(t *testing.T) {
	ratings := []Rating{
		{Path: canon.Path{ID: "pa"}, Elo: 1800},
		{Path: canon.Path{ID: "pb"}, Elo: 1510},
		{Path: canon.Path{ID: "pc"}, Elo: 1500},
		{Path: canon.Path{ID: "pd"}, Elo: 1200},
	}
	d := NewRater().SelectDuel(0, ratings)
	require.NotNil(t, d)
	assert.Equal(t, canon.PathID("pb"), d.CandidateA)
	assert.Equal(t, canon.PathID("pc"), d.CandidateB)
	assert.InDelta(t, entropy(Expectation(1510, 1500)), d.Entropy, 1e-9)
}

// TestRater_SelectDuel_TiePrefersHigherRated tests that with all pairs
// equally informative, the first pair in rank order wins.
func TestRater_SelectDuel_TiePrefersHigherRated(t *testing.T) {
	ratings := []Rating{
		{Path: canon.Path{ID: "pa"}, Elo: 1500},
		{Path: canon.Path{ID: "pb"}, Elo: 1500},
		{Path: canon.Path{ID: "pc"}, Elo: 1500},
	}
	d := NewRater().SelectDuel(0, ratings)
	require.NotNil(t, d)
	assert.Equal(t, canon.PathID("pa"), d.CandidateA)
	assert.Equal(t, canon.PathID("pb"), d.CandidateB)
	assert.InDelta(t, 1.0, d.Entropy, 1e-9)
}
