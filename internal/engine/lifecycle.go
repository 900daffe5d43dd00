package engine

import (
	"context"
	"fmt"

	"github.com/roach88/hronir/internal/canon"
	"github.com/roach88/hronir/internal/ledger"
	"github.com/roach88/hronir/internal/store"
)

// Qualify evaluates a pending path against the qualification policy and,
// if it passes, assigns its mandate and moves it to Qualified. The whole
// check-and-transition runs in one serializable transaction.
//
// The mandate id binds the ledger HEAD at qualification time, so anyone
// can recompute it later from the transaction history.
func (e *Engine) Qualify(ctx context.Context, id canon.PathID) (*canon.Path, error) {
	var out *canon.Path
	err := e.st.WithTx(ctx, func(q *store.Queries) error {
		path, err := q.GetPath(ctx, id)
		if err != nil {
			return err
		}
		if path == nil {
			return &EngineError{Code: ErrCodeNotFound, Message: "unknown path", Path: string(id)}
		}
		switch path.Status {
		case canon.StatusQualified:
			// Re-qualification is a no-op; the mandate is already fixed.
			out = path
			return nil
		case canon.StatusSpent:
			return &EngineError{Code: ErrCodeValidation, Message: "invalid state transition: path is spent", Path: string(id)}
		}

		rating, err := e.ratingOf(ctx, q, *path)
		if err != nil {
			return err
		}
		if rating == nil || !e.opt.Qualification.Met(*rating) {
			return &EngineError{Code: ErrCodeNotQualified, Message: "qualification threshold not met", Path: string(id)}
		}

		qualified, err := e.qualifyLocked(ctx, q, *path)
		if err != nil {
			return err
		}
		out = &qualified
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ratingOf computes the path's own rating within its lineage, or nil
// when the path has no ranked standing.
func (e *Engine) ratingOf(ctx context.Context, q *store.Queries, path canon.Path) (*Rating, error) {
	ratings, err := e.rankAt(ctx, q, path.Position, path.Predecessor)
	if err != nil {
		return nil, err
	}
	for i := range ratings {
		if ratings[i].Path.ID == path.ID {
			return &ratings[i], nil
		}
	}
	return nil, nil
}

// qualifyLocked performs the Pending→Qualified transition. Caller holds
// the transaction and has already verified the policy.
func (e *Engine) qualifyLocked(ctx context.Context, q *store.Queries, path canon.Path) (canon.Path, error) {
	if !path.Status.CanTransition(canon.StatusQualified) {
		return canon.Path{}, &EngineError{
			Code:    ErrCodeValidation,
			Message: fmt.Sprintf("invalid state transition %s → %s", path.Status, canon.StatusQualified),
			Path:    string(path.ID),
		}
	}
	head, err := q.HeadTransaction(ctx)
	if err != nil {
		return canon.Path{}, err
	}
	mandate := canon.ComputeMandateID(path.ID, head)
	if err := q.SetPathStatus(ctx, path.ID, canon.StatusQualified, &mandate); err != nil {
		return canon.Path{}, err
	}
	path.Status = canon.StatusQualified
	path.MandateID = &mandate
	e.log.Info("path qualified", "path", path.ID, "mandate", mandate)
	return path, nil
}

// StartSession activates a qualified path's mandate: it freezes a
// dossier of duels over the current canonical chain and irreversibly
// marks the path consumed. A path gets exactly one session, ever; the
// consumed-set check and the consumption write share one serializable
// transaction, so two racing starts cannot both pass.
func (e *Engine) StartSession(ctx context.Context, id canon.PathID) (*canon.Session, error) {
	var out *canon.Session
	err := e.st.WithTx(ctx, func(q *store.Queries) error {
		path, err := q.GetPath(ctx, id)
		if err != nil {
			return err
		}
		if path == nil {
			return &EngineError{Code: ErrCodeNotFound, Message: "unknown path", Path: string(id)}
		}

		consumed, err := q.ConsumingSession(ctx, id)
		if err != nil {
			return err
		}
		if consumed != nil {
			return &EngineError{
				Code:    ErrCodeAlreadyConsumed,
				Message: "mandate already consumed",
				Path:    string(id),
				Session: string(*consumed),
			}
		}
		if path.Status != canon.StatusQualified {
			return &EngineError{Code: ErrCodeNotQualified, Message: "path is not qualified", Path: string(id)}
		}
		if path.MandateID == nil {
			return &EngineError{Code: ErrCodeValidation, Message: "qualified path has no mandate", Path: string(id)}
		}

		dossier, err := e.freezeDossier(ctx, q, *path)
		if err != nil {
			return err
		}

		session := canon.Session{
			ID:             e.sessionID(),
			InitiatingPath: path.ID,
			MandateID:      *path.MandateID,
			Position:       path.Position,
			Dossier:        dossier,
			Status:         canon.SessionActive,
		}
		if err := q.MarkPathConsumed(ctx, path.ID, session.ID); err != nil {
			return err
		}
		if err := q.PutSession(ctx, session); err != nil {
			return err
		}
		out = &session
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("session started", "session", out.ID, "path", out.InitiatingPath, "duels", len(out.Dossier))
	return out, nil
}

// freezeDossier builds the session's duel set by walking the current
// canonical chain downward from the mandate's position minus one to
// position 0, selecting the max-entropy duel at each position. Positions
// whose predecessor cannot be determined, or that have fewer than two
// heirs, are skipped. The result is frozen: it is never recomputed, even
// if canon shifts while the session is open.
func (e *Engine) freezeDossier(ctx context.Context, q *store.Queries, path canon.Path) (map[uint32]canon.Duel, error) {
	dossier := make(map[uint32]canon.Duel)
	if path.Position == 0 {
		return dossier, nil
	}
	for pos := int64(path.Position) - 1; pos >= 0; pos-- {
		position := uint32(pos)
		predecessor, ok, err := predecessorAt(ctx, q, position)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		ratings, err := e.rankAt(ctx, q, position, predecessor)
		if err != nil {
			return nil, err
		}
		if duel := e.rater.SelectDuel(position, ratings); duel != nil {
			dossier[position] = *duel
		}
	}
	return dossier, nil
}

// RejectedVerdict reports one verdict that failed validation at commit.
// Rejection is per-verdict: a bad verdict never aborts the commit.
type RejectedVerdict struct {
	Position uint32       `json:"position"`
	Path     canon.PathID `json:"path"`
	Reason   string       `json:"reason"`
}

// CommitResult is the outcome of a session commit.
type CommitResult struct {
	Session  canon.SessionID    `json:"session"`
	Accepted map[uint32]canon.PathID `json:"accepted"`
	Rejected []RejectedVerdict  `json:"rejected,omitempty"`
	// Tx is nil when no verdict was accepted (the session still closes
	// and the mandate is still spent).
	Tx *canon.Transaction `json:"tx,omitempty"`
	// StartPosition is the minimal position touched; the cascade
	// re-resolved everything from here upward.
	StartPosition uint32             `json:"start_position"`
	CanonicalPath []canon.CanonEntry `json:"canonical_path"`
}

// CommitSession validates the caller's verdicts against the frozen
// dossier, appends the accepted ones as votes, spends the mandate,
// appends the ledger transaction, and runs the temporal cascade.
// Everything happens in one serializable transaction.
//
// The mandate is consumed regardless of verdict validity: a session with
// zero valid verdicts still closes and still spends the path, so a
// caller cannot probe the dossier by retrying. A commit may happen
// exactly once; the second attempt fails with ALREADY_COMMITTED. A
// verdict batch over budget rejects the whole commit and leaves the
// session open (nothing was judged yet).
func (e *Engine) CommitSession(ctx context.Context, id canon.SessionID, verdicts map[uint32]canon.PathID) (*CommitResult, error) {
	var out *CommitResult
	err := e.st.WithTx(ctx, func(q *store.Queries) error {
		session, err := q.GetSession(ctx, id)
		if err != nil {
			return err
		}
		if session == nil {
			return &EngineError{Code: ErrCodeNotFound, Message: "unknown session", Session: string(id)}
		}
		if session.Status != canon.SessionActive {
			return &EngineError{Code: ErrCodeAlreadyCommitted, Message: "session already closed", Session: string(id)}
		}
		if budget := session.VoteBudget(); len(verdicts) > budget {
			return &EngineError{
				Code:    ErrCodeVoteBudgetExceeded,
				Message: fmt.Sprintf("%d verdicts exceed budget %d for position %d", len(verdicts), budget, session.Position),
				Session: string(id),
			}
		}

		result := &CommitResult{Session: id, Accepted: make(map[uint32]canon.PathID)}

		// Validate verdicts individually; collect rejections, never abort.
		for _, position := range canon.SortedVerdictPositions(verdicts) {
			winner := verdicts[position]
			duel, ok := session.Dossier[position]
			if !ok {
				result.Rejected = append(result.Rejected, RejectedVerdict{
					Position: position, Path: winner, Reason: "position not in dossier",
				})
				continue
			}
			if !duel.Contains(winner) {
				result.Rejected = append(result.Rejected, RejectedVerdict{
					Position: position, Path: winner, Reason: "winner is not a duel candidate",
				})
				continue
			}
			winnerPath, err := q.GetPath(ctx, winner)
			if err != nil {
				return err
			}
			loserID := duel.CandidateA
			if loserID == winner {
				loserID = duel.CandidateB
			}
			loserPath, err := q.GetPath(ctx, loserID)
			if err != nil {
				return err
			}
			if winnerPath == nil || loserPath == nil {
				result.Rejected = append(result.Rejected, RejectedVerdict{
					Position: position, Path: winner, Reason: "duel candidate no longer known",
				})
				continue
			}

			seq, err := q.NextSeq(ctx)
			if err != nil {
				return err
			}
			voteID, err := canon.ComputeVoteID(position, session.InitiatingPath, winnerPath.Successor, loserPath.Successor, seq)
			if err != nil {
				return &EngineError{Code: ErrCodeValidation, Message: "cannot compute vote id", Err: err}
			}
			vote := canon.Vote{
				ID:           voteID,
				Position:     position,
				Mandate:      session.InitiatingPath,
				Winner:       winnerPath.Successor,
				Loser:        loserPath.Successor,
				RecordedAt:   seq,
				RecordedWall: e.now(),
			}
			if err := q.AppendVote(ctx, vote); err != nil {
				return err
			}
			result.Accepted[position] = winner
		}

		// The mandate is spent no matter what was accepted.
		path, err := q.GetPath(ctx, session.InitiatingPath)
		if err != nil {
			return err
		}
		if path != nil && path.Status.CanTransition(canon.StatusSpent) {
			if err := q.SetPathStatus(ctx, path.ID, canon.StatusSpent, nil); err != nil {
				return err
			}
		}

		session.Verdicts = result.Accepted
		if len(result.Accepted) == 0 {
			session.Status = canon.SessionFailed
			if err := q.PutSession(ctx, *session); err != nil {
				return err
			}
			out = result
			return nil
		}
		session.Status = canon.SessionCommitted
		if err := q.PutSession(ctx, *session); err != nil {
			return err
		}

		// Ledger append: one transaction per committed session.
		head, err := q.HeadTransaction(ctx)
		if err != nil {
			return err
		}
		seq, err := q.NextSeq(ctx)
		if err != nil {
			return err
		}
		tx, err := ledger.BuildTransaction(seq, e.now(), head, session.ID, session.InitiatingPath, result.Accepted)
		if err != nil {
			return &EngineError{Code: ErrCodeValidation, Message: "cannot build transaction", Err: err}
		}
		if err := q.AppendTransaction(ctx, tx); err != nil {
			return err
		}
		result.Tx = &tx

		// Temporal cascade from the minimal touched position.
		result.StartPosition = minPosition(result.Accepted)
		chain, err := e.propagate(ctx, q, result.StartPosition, result.Accepted)
		if err != nil {
			return err
		}
		result.CanonicalPath = chain

		// Opportunistic qualification sweep over the touched positions:
		// a path whose win count just crossed the threshold earns its
		// mandate inside the same transaction.
		if err := e.sweepQualification(ctx, q, result.Accepted); err != nil {
			return err
		}

		out = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("session committed",
		"session", id,
		"accepted", len(out.Accepted),
		"rejected", len(out.Rejected))
	return out, nil
}

// sweepQualification re-evaluates the heirs at every position a verdict
// touched and qualifies any pending path that now meets the policy.
func (e *Engine) sweepQualification(ctx context.Context, q *store.Queries, touched map[uint32]canon.PathID) error {
	positions := canon.SortedVerdictPositions(touched)
	for _, position := range positions {
		predecessor, ok, err := predecessorAt(ctx, q, position)
		if err != nil {
			return err
		}
		if !ok && position > 0 {
			continue
		}
		ratings, err := e.rankAt(ctx, q, position, predecessor)
		if err != nil {
			return err
		}
		for _, r := range ratings {
			if r.Path.Status != canon.StatusPending || !e.opt.Qualification.Met(r) {
				continue
			}
			if _, err := e.qualifyLocked(ctx, q, r.Path); err != nil {
				return err
			}
		}
	}
	return nil
}

func minPosition(verdicts map[uint32]canon.PathID) uint32 {
	first := true
	var min uint32
	for p := range verdicts {
		if first || p < min {
			min = p
			first = false
		}
	}
	return min
}

// Rankings returns the Elo standings of the heirs at a position under
// the current canonical predecessor. Nil when the predecessor cannot be
// determined or no heirs exist.
func (e *Engine) Rankings(ctx context.Context, position uint32) ([]Rating, error) {
	var out []Rating
	err := e.st.WithTx(ctx, func(q *store.Queries) error {
		predecessor, ok, err := predecessorAt(ctx, q, position)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		out, err = e.rankAt(ctx, q, position, predecessor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NextDuel returns the most informative pairing at a position, or nil
// when fewer than two heirs exist.
func (e *Engine) NextDuel(ctx context.Context, position uint32) (*canon.Duel, error) {
	ratings, err := e.Rankings(ctx, position)
	if err != nil {
		return nil, err
	}
	return e.rater.SelectDuel(position, ratings), nil
}

// Sessions and paths occasionally need plain lookups from the CLI.

// GetPath returns a path, or a NOT_FOUND engine error.
func (e *Engine) GetPath(ctx context.Context, id canon.PathID) (*canon.Path, error) {
	p, err := e.st.Q().GetPath(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &EngineError{Code: ErrCodeNotFound, Message: "unknown path", Path: string(id)}
	}
	return p, nil
}

// GetSession returns a session, or a NOT_FOUND engine error.
func (e *Engine) GetSession(ctx context.Context, id canon.SessionID) (*canon.Session, error) {
	s, err := e.st.Q().GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, &EngineError{Code: ErrCodeNotFound, Message: "unknown session", Session: string(id)}
	}
	return s, nil
}
