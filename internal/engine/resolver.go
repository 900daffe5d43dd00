package engine

import (
	"math"
	"sort"

	"github.com/roach88/hronir/internal/canon"
)

// Graph is an immutable snapshot of the path DAG with a precomputed
// children index. Build once per resolution; all queries are O(1) or
// O(candidates log candidates).
//
// The index is defensive against malformed input: a predecessor link
// that points nowhere simply produces no candidates, and the chain walk
// strictly advances position, so cyclic-looking input cannot loop.
type Graph struct {
	byID     map[canon.PathID]canon.Path
	children map[canon.HronirID][]canon.Path // paths whose predecessor is the key
	roots    []canon.Path                    // position 0, no predecessor
}

// NewGraph builds the snapshot from the full path set. Paths that fail
// structural validation are dropped rather than poisoning the walk.
func NewGraph(paths []canon.Path) *Graph {
	g := &Graph{
		byID:     make(map[canon.PathID]canon.Path, len(paths)),
		children: make(map[canon.HronirID][]canon.Path),
	}
	for _, p := range paths {
		if p.Validate() != nil {
			continue
		}
		if _, dup := g.byID[p.ID]; dup {
			continue
		}
		g.byID[p.ID] = p
		if p.Predecessor == nil {
			g.roots = append(g.roots, p)
		} else {
			g.children[*p.Predecessor] = append(g.children[*p.Predecessor], p)
		}
	}
	// Deterministic candidate order regardless of input order.
	sort.Slice(g.roots, func(i, j int) bool { return g.roots[i].ID < g.roots[j].ID })
	for h := range g.children {
		kids := g.children[h]
		sort.Slice(kids, func(i, j int) bool { return kids[i].ID < kids[j].ID })
	}
	return g
}

// Path looks up a path by id.
func (g *Graph) Path(id canon.PathID) (canon.Path, bool) {
	p, ok := g.byID[id]
	return p, ok
}

// Heirs returns the candidate paths at a position under the given
// predecessor: the paths recorded with exactly that predecessor (the
// roots when predecessor is nil) whose position matches.
func (g *Graph) Heirs(position uint32, predecessor *canon.HronirID) []canon.Path {
	var pool []canon.Path
	if predecessor == nil {
		pool = g.roots
	} else {
		pool = g.children[*predecessor]
	}
	heirs := make([]canon.Path, 0, len(pool))
	for _, p := range pool {
		if p.Position == position {
			heirs = append(heirs, p)
		}
	}
	return heirs
}

// Influence is the quadratic influence weight of a hrönir:
// 1 + sqrt(number of paths that continue it). A hrönir nobody has
// continued still carries weight 1.
func (g *Graph) Influence(h canon.HronirID) float64 {
	return 1 + math.Sqrt(float64(len(g.children[h])))
}

// Score is one candidate's standing at a position.
type Score struct {
	Path       canon.Path `json:"path"`
	Score      float64    `json:"score"`
	ChildCount int        `json:"child_count"`
}

// ScoreCandidates ranks the candidates at a position under the given
// predecessor by quadratic influence: each candidate scores the summed
// influence of the paths continuing its successor hrönir.
//
// The returned slice is ordered winner-first. Ties break by higher raw
// child count, then by lexicographically smaller path id. The final
// tiebreak is arbitrary-but-stable: it carries no semantic meaning, it
// only guarantees that identical inputs always elect the same winner.
func (g *Graph) ScoreCandidates(position uint32, predecessor *canon.HronirID) []Score {
	heirs := g.Heirs(position, predecessor)
	if len(heirs) == 0 {
		return nil
	}
	scores := make([]Score, 0, len(heirs))
	for _, h := range heirs {
		kids := g.children[h.Successor]
		total := 0.0
		for _, child := range kids {
			total += g.Influence(child.Successor)
		}
		scores = append(scores, Score{Path: h, Score: total, ChildCount: len(kids)})
	}
	sort.Slice(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.ChildCount != b.ChildCount {
			return a.ChildCount > b.ChildCount
		}
		return a.Path.ID < b.Path.ID
	})
	return scores
}

// CanonicalChain derives the canonical path by walking greedily from
// position 0, electing the quadratic-influence winner at each position
// and following its successor hrönir downward. The walk stops at the
// first position with no candidates, or at maxPositions as a guard
// against pathological input.
//
// Pure: depends only on the snapshot, never on the cache or vote set.
// Given identical path sets the output is byte-identical.
func (g *Graph) CanonicalChain(maxPositions int) []canon.CanonEntry {
	var chain []canon.CanonEntry
	var predecessor *canon.HronirID

	for position := uint32(0); int(position) < maxPositions; position++ {
		scores := g.ScoreCandidates(position, predecessor)
		if len(scores) == 0 {
			break
		}
		winner := scores[0].Path
		chain = append(chain, canon.CanonEntry{
			Position: position,
			Path:     winner.ID,
			Hronir:   winner.Successor,
		})
		h := winner.Successor
		predecessor = &h
	}
	return chain
}
