package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/hronir/internal/canon"
	"github.com/roach88/hronir/internal/store"
)

// Qualification policy modes. The source material implies two different
// thresholds (raw win count vs Elo); neither is silently picked — the
// mode is explicit configuration.
const (
	QualifyByWins = "wins"
	QualifyByElo  = "elo"
)

// QualificationPolicy decides when a path earns its mandate.
type QualificationPolicy struct {
	Mode    string  // QualifyByWins or QualifyByElo
	MinWins int     // threshold for wins mode
	MinElo  float64 // threshold for elo mode
}

// Met reports whether a rating crosses the threshold.
func (p QualificationPolicy) Met(r Rating) bool {
	if p.Mode == QualifyByElo {
		return r.Elo >= p.MinElo
	}
	return r.Wins >= p.MinWins
}

// Options configures an Engine.
type Options struct {
	Qualification QualificationPolicy
	EloBase       float64
	EloK          float64
	// MaxPositions bounds every chain walk (resolver, cascade, dossier).
	// Malformed input can make the DAG look cyclic; strictly increasing
	// positions plus this bound guarantee termination.
	MaxPositions int
}

// DefaultOptions returns the standard engine configuration.
func DefaultOptions() Options {
	return Options{
		Qualification: QualificationPolicy{Mode: QualifyByWins, MinWins: 2, MinElo: 1550},
		EloBase:       DefaultEloBase,
		EloK:          DefaultEloK,
		MaxPositions:  1024,
	}
}

// Engine is the canon consensus engine. It performs no internal
// threading; callers invoke it from their own workers, and every
// multi-step operation runs as a single serializable store transaction.
type Engine struct {
	st    *store.Store
	opt   Options
	rater Rater
	log   *slog.Logger

	// sessionID generates session identifiers. Overridable in tests for
	// deterministic output; defaults to UUIDv7.
	sessionID func() canon.SessionID

	// now supplies wall time for audit fields. Never used for ordering.
	now func() time.Time
}

// New creates an Engine over the given store.
func New(st *store.Store, opt Options, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if opt.EloBase == 0 {
		opt.EloBase = DefaultEloBase
	}
	if opt.EloK == 0 {
		opt.EloK = DefaultEloK
	}
	if opt.MaxPositions <= 0 {
		opt.MaxPositions = DefaultOptions().MaxPositions
	}
	if opt.Qualification.Mode == "" {
		opt.Qualification = DefaultOptions().Qualification
	}
	return &Engine{
		st:    st,
		opt:   opt,
		rater: Rater{Base: opt.EloBase, K: opt.EloK},
		log:   log,
		sessionID: func() canon.SessionID {
			return canon.SessionID(uuid.Must(uuid.NewV7()).String())
		},
		now: time.Now,
	}
}

// SetSessionIDFunc overrides session id generation. Test hook.
func (e *Engine) SetSessionIDFunc(fn func() canon.SessionID) { e.sessionID = fn }

// SetNowFunc overrides the wall clock. Test hook.
func (e *Engine) SetNowFunc(fn func() time.Time) { e.now = fn }

// CreatePath proposes a continuation: successor after predecessor at the
// given position. The id is a content-addressed hash of the edge, so
// creating the same edge twice yields the same single record.
func (e *Engine) CreatePath(ctx context.Context, position uint32, predecessor *canon.HronirID, successor canon.HronirID) (canon.Path, error) {
	if successor == "" {
		return canon.Path{}, &EngineError{Code: ErrCodeValidation, Message: "empty successor hrönir"}
	}
	if position == 0 && predecessor != nil && *predecessor != "" {
		return canon.Path{}, &EngineError{Code: ErrCodeValidation, Message: "position 0 takes no predecessor"}
	}
	if position > 0 && (predecessor == nil || *predecessor == "") {
		return canon.Path{}, &EngineError{Code: ErrCodeValidation, Message: "positions above 0 require a predecessor"}
	}
	if predecessor != nil && *predecessor == "" {
		predecessor = nil
	}

	id, err := canon.ComputePathID(position, predecessor, successor)
	if err != nil {
		return canon.Path{}, &EngineError{Code: ErrCodeValidation, Message: "cannot compute path id", Err: err}
	}
	p := canon.Path{
		ID:          id,
		Position:    position,
		Predecessor: predecessor,
		Successor:   successor,
		Status:      canon.StatusPending,
	}

	var stored canon.Path
	err = e.st.WithTx(ctx, func(q *store.Queries) error {
		if err := q.UpsertPath(ctx, p); err != nil {
			return err
		}
		existing, err := q.GetPath(ctx, id)
		if err != nil {
			return err
		}
		stored = *existing
		return nil
	})
	if err != nil {
		return canon.Path{}, err
	}
	e.log.Debug("path created", "path", stored.ID, "position", stored.Position)
	return stored, nil
}

// heirs returns the candidate paths at a position under the given
// predecessor, plus their successor hrönirs (the vote lookup key set).
func heirs(ctx context.Context, q *store.Queries, position uint32, predecessor *canon.HronirID) ([]canon.Path, []canon.HronirID, error) {
	pool, err := q.PathsByPredecessor(ctx, predecessor)
	if err != nil {
		return nil, nil, err
	}
	var paths []canon.Path
	var successors []canon.HronirID
	for _, p := range pool {
		if p.Position == position {
			paths = append(paths, p)
			successors = append(successors, p.Successor)
		}
	}
	return paths, successors, nil
}

// rankAt replays the vote history for the heirs of (position,
// predecessor) and returns their ratings best-first.
func (e *Engine) rankAt(ctx context.Context, q *store.Queries, position uint32, predecessor *canon.HronirID) ([]Rating, error) {
	hs, successors, err := heirs(ctx, q, position, predecessor)
	if err != nil {
		return nil, err
	}
	if len(hs) == 0 {
		return nil, nil
	}
	votes, err := q.VotesForHeirs(ctx, position, successors)
	if err != nil {
		return nil, err
	}
	return e.rater.Rank(hs, votes), nil
}

// predecessorAt determines the lineage context of a position from the
// canonical cache: the winner's hrönir at position-1, or nil at the
// root. The boolean is false when the chain does not reach position-1,
// meaning the predecessor cannot be determined.
func predecessorAt(ctx context.Context, q *store.Queries, position uint32) (*canon.HronirID, bool, error) {
	if position == 0 {
		return nil, true, nil
	}
	entry, err := q.CanonEntry(ctx, position-1)
	if err != nil {
		return nil, false, err
	}
	if entry == nil {
		return nil, false, nil
	}
	h := entry.Hronir
	return &h, true, nil
}
