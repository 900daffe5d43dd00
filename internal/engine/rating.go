package engine

import (
	"math"
	"sort"

	"github.com/roach88/hronir/internal/canon"
)

// Elo constants. Base and K are configurable via Options; these are the
// standard defaults the rest of the package assumes.
const (
	DefaultEloBase = 1500.0
	DefaultEloK    = 32.0
)

// Rating is one heir's standing after replaying the vote history.
type Rating struct {
	Path   canon.Path `json:"path"`
	Elo    float64    `json:"elo"`
	Wins   int        `json:"wins"`
	Losses int        `json:"losses"`
}

// Rater computes lineage-filtered Elo ratings and selects duels.
//
// Ratings are always replayed from scratch over the full vote history,
// never updated incrementally. This is what lets dormant votes count:
// a vote cast against a lineage that only later becomes canonical is
// included the moment that lineage's heirs are ranked.
type Rater struct {
	Base float64
	K    float64
}

// NewRater returns a Rater with the standard constants.
func NewRater() Rater {
	return Rater{Base: DefaultEloBase, K: DefaultEloK}
}

// Expectation is the standard logistic win probability of a over b.
func Expectation(a, b float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, -(a-b)/400.0))
}

// Rank replays votes over the given heir set and returns ratings ordered
// best-first.
//
// Only votes whose winner AND loser are both successors of heirs in the
// set are counted; everything else is evidence about some other lineage
// and is ignored here (it stays in history and may count later). Votes
// are processed in ascending (RecordedAt, ID) order so the replay is
// deterministic regardless of retrieval order.
//
// Ordering of the result: Elo descending, then wins descending, then
// path id ascending. An empty heir set yields nil.
func (r Rater) Rank(heirs []canon.Path, votes []canon.Vote) []Rating {
	if len(heirs) == 0 {
		return nil
	}

	bySuccessor := make(map[canon.HronirID]int, len(heirs))
	ratings := make([]Rating, len(heirs))
	for i, h := range heirs {
		ratings[i] = Rating{Path: h, Elo: r.Base}
		bySuccessor[h.Successor] = i
	}

	ordered := make([]canon.Vote, len(votes))
	copy(ordered, votes)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].RecordedAt != ordered[j].RecordedAt {
			return ordered[i].RecordedAt < ordered[j].RecordedAt
		}
		return ordered[i].ID < ordered[j].ID
	})

	for _, v := range ordered {
		wi, wok := bySuccessor[v.Winner]
		li, lok := bySuccessor[v.Loser]
		if !wok || !lok || wi == li {
			continue
		}
		expected := Expectation(ratings[wi].Elo, ratings[li].Elo)
		delta := r.K * (1 - expected)
		ratings[wi].Elo += delta
		ratings[li].Elo -= delta
		ratings[wi].Wins++
		ratings[li].Losses++
	}

	sort.Slice(ratings, func(i, j int) bool {
		a, b := ratings[i], ratings[j]
		if a.Elo != b.Elo {
			return a.Elo > b.Elo
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		return a.Path.ID < b.Path.ID
	})
	return ratings
}

// SelectDuel picks the most informative next pairing at a position: the
// unordered pair of heirs whose predicted outcome has maximum Shannon
// entropy. A coin-flip (entropy 1) teaches the most; a foregone
// conclusion teaches nothing.
//
// Ratings must be in Rank order (best first). When several pairs tie on
// entropy the pair encountered first in that scan order wins, which
// deterministically favors higher-rated contestants.
//
// Degenerate cases: fewer than two heirs yield no duel; exactly two
// heirs are always the duel.
func (r Rater) SelectDuel(position uint32, ratings []Rating) *canon.Duel {
	if len(ratings) < 2 {
		return nil
	}

	best := -1.0
	var duel canon.Duel
	for i := 0; i < len(ratings); i++ {
		for j := i + 1; j < len(ratings); j++ {
			p := Expectation(ratings[i].Elo, ratings[j].Elo)
			h := entropy(p)
			if h > best {
				best = h
				duel = canon.Duel{
					Position:   position,
					CandidateA: ratings[i].Path.ID,
					CandidateB: ratings[j].Path.ID,
					Entropy:    h,
				}
			}
		}
	}
	return &duel
}

// entropy is the Shannon entropy of a Bernoulli outcome with probability p.
func entropy(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	return -p*math.Log2(p) - (1-p)*math.Log2(1-p)
}
