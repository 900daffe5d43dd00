package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/hronir/internal/canon"
)

// The canonical cache is derived state: a position-indexed snapshot of
// the winning path chain. It may be dropped and rebuilt from paths and
// votes at any time; nothing authoritative lives here.

// CanonEntry returns the cached canonical winner at a position, or nil
// when the chain does not reach it.
func (q *Queries) CanonEntry(ctx context.Context, position uint32) (*canon.CanonEntry, error) {
	var e canon.CanonEntry
	var path, hronir string
	var pos int64
	err := q.db.QueryRowContext(ctx, `
		SELECT position, path_id, hronir FROM canonical_cache WHERE position = ?
	`, position).Scan(&pos, &path, &hronir)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("canon entry: %w", err)
	}
	e.Position = uint32(pos)
	e.Path = canon.PathID(path)
	e.Hronir = canon.HronirID(hronir)
	return &e, nil
}

// PutCanonEntry writes one position of the cache, replacing any prior
// winner at that position.
func (q *Queries) PutCanonEntry(ctx context.Context, e canon.CanonEntry) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO canonical_cache (position, path_id, hronir) VALUES (?, ?, ?)
		ON CONFLICT(position) DO UPDATE SET path_id = excluded.path_id, hronir = excluded.hronir
	`, e.Position, string(e.Path), string(e.Hronir))
	if err != nil {
		return fmt.Errorf("put canon entry: %w", err)
	}
	return nil
}

// TruncateCanonFrom removes the cached chain from the given position
// onward. Used when a cascade invalidates a branch.
func (q *Queries) TruncateCanonFrom(ctx context.Context, position uint32) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM canonical_cache WHERE position >= ?`, position)
	if err != nil {
		return fmt.Errorf("truncate canon: %w", err)
	}
	return nil
}

// CanonicalChain returns the full cached chain ordered by position.
func (q *Queries) CanonicalChain(ctx context.Context) ([]canon.CanonEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT position, path_id, hronir FROM canonical_cache ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("canonical chain: %w", err)
	}
	defer rows.Close()

	var out []canon.CanonEntry
	for rows.Next() {
		var e canon.CanonEntry
		var path, hronir string
		var pos int64
		if err := rows.Scan(&pos, &path, &hronir); err != nil {
			return nil, fmt.Errorf("scan canon entry: %w", err)
		}
		e.Position = uint32(pos)
		e.Path = canon.PathID(path)
		e.Hronir = canon.HronirID(hronir)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate canon: %w", err)
	}
	return out, nil
}
