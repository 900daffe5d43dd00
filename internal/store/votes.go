package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/hronir/internal/canon"
)

// AppendVote records a verdict. Votes are append-only: they are never
// mutated or deleted, even when their lineage later falls out of canon.
// ON CONFLICT(id) DO NOTHING keeps the append idempotent under replay.
func (q *Queries) AppendVote(ctx context.Context, v canon.Vote) error {
	if v.ID == "" || v.Winner == "" || v.Loser == "" {
		return fmt.Errorf("append vote: incomplete record")
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO votes (id, position, mandate, winner, loser, recorded_at, recorded_wall)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		string(v.ID),
		v.Position,
		string(v.Mandate),
		string(v.Winner),
		string(v.Loser),
		v.RecordedAt,
		v.RecordedWall.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append vote: %w", err)
	}
	return nil
}

// VotesForHeirs returns the votes at a position whose winner and loser
// both lie in the given heir successor set. Ordered by (recorded_at, id),
// the replay order the rating engine requires.
//
// An empty successor set yields no votes.
func (q *Queries) VotesForHeirs(ctx context.Context, position uint32, successors []canon.HronirID) ([]canon.Vote, error) {
	if len(successors) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(successors)), ",")
	args := make([]any, 0, 2*len(successors)+1)
	args = append(args, position)
	for _, s := range successors {
		args = append(args, string(s))
	}
	for _, s := range successors {
		args = append(args, string(s))
	}
	rows, err := q.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, position, mandate, winner, loser, recorded_at, recorded_wall
		FROM votes
		WHERE position = ? AND winner IN (%s) AND loser IN (%s)
		ORDER BY recorded_at, id
	`, placeholders, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("votes for heirs: %w", err)
	}
	defer rows.Close()

	var out []canon.Vote
	for rows.Next() {
		var v canon.Vote
		var id, mandate, winner, loser, wall string
		var position int64
		if err := rows.Scan(&id, &position, &mandate, &winner, &loser, &v.RecordedAt, &wall); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		v.ID = canon.VoteID(id)
		v.Position = uint32(position)
		v.Mandate = canon.PathID(mandate)
		v.Winner = canon.HronirID(winner)
		v.Loser = canon.HronirID(loser)
		if t, err := time.Parse(time.RFC3339Nano, wall); err == nil {
			v.RecordedWall = t
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate votes: %w", err)
	}
	return out, nil
}

// CountVotes returns the total number of recorded votes; used by audit
// reporting.
func (q *Queries) CountVotes(ctx context.Context) (int64, error) {
	var n int64
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}
	return n, nil
}
