package engine

import (
	"context"

	"github.com/roach88/hronir/internal/canon"
	"github.com/roach88/hronir/internal/store"
)

// The temporal cascade re-resolves the canonical chain after new
// verdicts. It walks positions from the start upward, re-deriving each
// position's winner against the (possibly changed) predecessor, and
// truncates the chain the moment coherence breaks. Positions below the
// start are never touched (cascade monotonicity).
//
// Because the rating engine replays the full vote history, a cascade
// that flips an upstream winner automatically reactivates "dormant"
// votes: evidence recorded against a lineage before it was canonical
// counts the moment that lineage's heirs are re-ranked.

// propagate runs the cascade inside the caller's transaction and returns
// the full updated canonical chain.
func (e *Engine) propagate(ctx context.Context, q *store.Queries, start uint32, verdicts map[uint32]canon.PathID) ([]canon.CanonEntry, error) {
	position := start
	for steps := 0; steps < e.opt.MaxPositions; steps++ {
		// 1. Predecessor context from the position below.
		var predecessor *canon.HronirID
		if position > 0 {
			prev, err := q.CanonEntry(ctx, position-1)
			if err != nil {
				return nil, err
			}
			if prev == nil {
				// No canonical winner below: nothing above can stand.
				if err := q.TruncateCanonFrom(ctx, position); err != nil {
					return nil, err
				}
				break
			}
			h := prev.Hronir
			predecessor = &h
		}

		verdictPath, hasVerdict := verdicts[position]
		if hasVerdict {
			// 2. A fresh verdict claims this position; it stands only if
			// its path descends from the computed predecessor.
			path, err := q.GetPath(ctx, verdictPath)
			if err != nil {
				return nil, err
			}
			if path == nil || !predecessorMatches(*path, predecessor) {
				if err := q.TruncateCanonFrom(ctx, position); err != nil {
					return nil, err
				}
				e.log.Warn("cascade truncated on inconsistent verdict",
					"position", position, "path", verdictPath)
				break
			}
			if err := q.PutCanonEntry(ctx, canon.CanonEntry{
				Position: position, Path: path.ID, Hronir: path.Successor,
			}); err != nil {
				return nil, err
			}
		} else {
			// 3. No verdict: keep a still-coherent cached entry, else
			// re-rank the heirs under the new predecessor.
			cached, err := q.CanonEntry(ctx, position)
			if err != nil {
				return nil, err
			}
			keep := false
			if cached != nil {
				path, err := q.GetPath(ctx, cached.Path)
				if err != nil {
					return nil, err
				}
				keep = path != nil && predecessorMatches(*path, predecessor)
			}
			if !keep {
				ratings, err := e.rankAt(ctx, q, position, predecessor)
				if err != nil {
					return nil, err
				}
				if len(ratings) == 0 {
					if err := q.TruncateCanonFrom(ctx, position); err != nil {
						return nil, err
					}
					break
				}
				top := ratings[0].Path
				if err := q.PutCanonEntry(ctx, canon.CanonEntry{
					Position: position, Path: top.ID, Hronir: top.Successor,
				}); err != nil {
					return nil, err
				}
			}
		}
		position++
	}
	return q.CanonicalChain(ctx)
}

// predecessorMatches reports whether a path's recorded predecessor
// equals the computed canonical predecessor (both nil at the root).
func predecessorMatches(path canon.Path, predecessor *canon.HronirID) bool {
	if path.Predecessor == nil || predecessor == nil {
		return path.Predecessor == nil && predecessor == nil
	}
	return *path.Predecessor == *predecessor
}

// RebuildCanon recomputes the canonical chain from scratch with the
// pure quadratic-influence resolver and replaces the cache. The cache is
// never authoritative; this is the proof.
func (e *Engine) RebuildCanon(ctx context.Context) ([]canon.CanonEntry, error) {
	var chain []canon.CanonEntry
	err := e.st.WithTx(ctx, func(q *store.Queries) error {
		paths, err := q.AllPaths(ctx)
		if err != nil {
			return err
		}
		chain = NewGraph(paths).CanonicalChain(e.opt.MaxPositions)
		if err := q.TruncateCanonFrom(ctx, 0); err != nil {
			return err
		}
		for _, entry := range chain {
			if err := q.PutCanonEntry(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("canonical path rebuilt", "length", len(chain))
	return chain, nil
}

// CanonicalPath returns the cached canonical chain.
func (e *Engine) CanonicalPath(ctx context.Context) ([]canon.CanonEntry, error) {
	return e.st.Q().CanonicalChain(ctx)
}
