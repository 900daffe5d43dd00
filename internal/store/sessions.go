package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/hronir/internal/canon"
)

// PutSession writes a session record, replacing any prior state for the
// same id. Sessions are kept after commit/failure for audit; the dossier
// column is frozen at creation and rewritten verbatim on status updates.
func (q *Queries) PutSession(ctx context.Context, s canon.Session) error {
	dossier, err := json.Marshal(s.Dossier)
	if err != nil {
		return fmt.Errorf("put session: marshal dossier: %w", err)
	}
	var verdicts any
	if s.Verdicts != nil {
		b, err := json.Marshal(s.Verdicts)
		if err != nil {
			return fmt.Errorf("put session: marshal verdicts: %w", err)
		}
		verdicts = string(b)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO sessions (id, initiating_path, mandate_id, position, dossier, status, verdicts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, verdicts = excluded.verdicts
	`,
		string(s.ID),
		string(s.InitiatingPath),
		string(s.MandateID),
		s.Position,
		string(dossier),
		string(s.Status),
		verdicts,
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSession returns the session with the given id, or nil when unknown.
func (q *Queries) GetSession(ctx context.Context, id canon.SessionID) (*canon.Session, error) {
	var s canon.Session
	var sid, path, mandate, dossier, status string
	var position int64
	var verdicts sql.NullString
	err := q.db.QueryRowContext(ctx, `
		SELECT id, initiating_path, mandate_id, position, dossier, status, verdicts
		FROM sessions WHERE id = ?
	`, string(id)).Scan(&sid, &path, &mandate, &position, &dossier, &status, &verdicts)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.ID = canon.SessionID(sid)
	s.InitiatingPath = canon.PathID(path)
	s.MandateID = canon.MandateID(mandate)
	s.Position = uint32(position)
	s.Status = canon.SessionStatus(status)
	if err := json.Unmarshal([]byte(dossier), &s.Dossier); err != nil {
		return nil, fmt.Errorf("get session: decode dossier: %w", err)
	}
	if verdicts.Valid {
		if err := json.Unmarshal([]byte(verdicts.String), &s.Verdicts); err != nil {
			return nil, fmt.Errorf("get session: decode verdicts: %w", err)
		}
	}
	return &s, nil
}
