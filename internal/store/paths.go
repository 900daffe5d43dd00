package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/hronir/internal/canon"
)

// UpsertPath inserts a path record. ON CONFLICT(id) DO NOTHING makes the
// call idempotent: the id is a content-addressed hash of the edge, so
// re-proposing the same (position, predecessor, successor) leaves the
// existing record (and its status) untouched.
func (q *Queries) UpsertPath(ctx context.Context, p canon.Path) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("upsert path: %w", err)
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO paths (id, position, predecessor, successor, status, mandate_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		string(p.ID),
		p.Position,
		nullableHronir(p.Predecessor),
		string(p.Successor),
		string(p.Status),
		nullableMandate(p.MandateID),
	)
	if err != nil {
		return fmt.Errorf("upsert path: %w", err)
	}
	return nil
}

// GetPath returns the path with the given id, or nil when unknown.
func (q *Queries) GetPath(ctx context.Context, id canon.PathID) (*canon.Path, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, position, predecessor, successor, status, mandate_id
		FROM paths WHERE id = ?
	`, string(id))
	p, err := scanPath(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get path: %w", err)
	}
	return &p, nil
}

// PathsByPredecessor returns all paths recorded under the given
// predecessor hrönir; nil predecessor selects the root paths. Ordered by
// id for deterministic results.
func (q *Queries) PathsByPredecessor(ctx context.Context, predecessor *canon.HronirID) ([]canon.Path, error) {
	var rows *sql.Rows
	var err error
	if predecessor == nil {
		rows, err = q.db.QueryContext(ctx, `
			SELECT id, position, predecessor, successor, status, mandate_id
			FROM paths WHERE predecessor IS NULL
			ORDER BY id
		`)
	} else {
		rows, err = q.db.QueryContext(ctx, `
			SELECT id, position, predecessor, successor, status, mandate_id
			FROM paths WHERE predecessor = ?
			ORDER BY id
		`, string(*predecessor))
	}
	if err != nil {
		return nil, fmt.Errorf("paths by predecessor: %w", err)
	}
	defer rows.Close()
	return collectPaths(rows)
}

// AllPaths returns the full path set, ordered by (position, id). The
// resolver builds its graph snapshot from this.
func (q *Queries) AllPaths(ctx context.Context) ([]canon.Path, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, position, predecessor, successor, status, mandate_id
		FROM paths
		ORDER BY position, id
	`)
	if err != nil {
		return nil, fmt.Errorf("all paths: %w", err)
	}
	defer rows.Close()
	return collectPaths(rows)
}

// SetPathStatus records a status transition, optionally assigning the
// mandate id (on qualification). The caller is responsible for checking
// the transition is legal; this is the write primitive only.
func (q *Queries) SetPathStatus(ctx context.Context, id canon.PathID, status canon.Status, mandate *canon.MandateID) error {
	var res sql.Result
	var err error
	if mandate != nil {
		res, err = q.db.ExecContext(ctx,
			`UPDATE paths SET status = ?, mandate_id = ? WHERE id = ?`,
			string(status), string(*mandate), string(id))
	} else {
		res, err = q.db.ExecContext(ctx,
			`UPDATE paths SET status = ? WHERE id = ?`,
			string(status), string(id))
	}
	if err != nil {
		return fmt.Errorf("set path status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set path status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set path status: unknown path %s", id)
	}
	return nil
}

// MarkPathConsumed records the one-time activation of a path's mandate by
// a session. The primary key on path_id makes a second activation fail
// at the storage layer as well; the lifecycle checks first and treats
// the constraint as a backstop.
func (q *Queries) MarkPathConsumed(ctx context.Context, id canon.PathID, session canon.SessionID) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO consumed_paths (path_id, session_id) VALUES (?, ?)
	`, string(id), string(session))
	if err != nil {
		return fmt.Errorf("mark path consumed: %w", err)
	}
	return nil
}

// ConsumingSession returns the session that consumed the path's mandate,
// or nil when the path has never started a session.
func (q *Queries) ConsumingSession(ctx context.Context, id canon.PathID) (*canon.SessionID, error) {
	var sid string
	err := q.db.QueryRowContext(ctx,
		`SELECT session_id FROM consumed_paths WHERE path_id = ?`, string(id)).Scan(&sid)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consuming session: %w", err)
	}
	out := canon.SessionID(sid)
	return &out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPath(row rowScanner) (canon.Path, error) {
	var p canon.Path
	var id, successor, status string
	var predecessor, mandate sql.NullString
	var position int64
	if err := row.Scan(&id, &position, &predecessor, &successor, &status, &mandate); err != nil {
		return canon.Path{}, err
	}
	p.ID = canon.PathID(id)
	p.Position = uint32(position)
	p.Successor = canon.HronirID(successor)
	p.Status = canon.Status(status)
	if predecessor.Valid {
		h := canon.HronirID(predecessor.String)
		p.Predecessor = &h
	}
	if mandate.Valid {
		m := canon.MandateID(mandate.String)
		p.MandateID = &m
	}
	return p, nil
}

func collectPaths(rows *sql.Rows) ([]canon.Path, error) {
	var out []canon.Path
	for rows.Next() {
		p, err := scanPath(rows)
		if err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paths: %w", err)
	}
	return out, nil
}

func nullableHronir(h *canon.HronirID) any {
	if h == nil {
		return nil
	}
	return string(*h)
}

func nullableMandate(m *canon.MandateID) any {
	if m == nil {
		return nil
	}
	return string(*m)
}
