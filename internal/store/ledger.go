package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/hronir/internal/canon"
)

// AppendTransaction writes a transaction and advances the ledger HEAD in
// the same statement batch. Must run inside WithTx together with the
// session commit that produced it; the HEAD is the mutual-exclusion
// point for all ledger writers.
func (q *Queries) AppendTransaction(ctx context.Context, tx canon.Transaction) error {
	verdicts, err := json.Marshal(tx.Verdicts)
	if err != nil {
		return fmt.Errorf("append transaction: marshal verdicts: %w", err)
	}
	var prev any
	if tx.Prev != nil {
		prev = string(*tx.Prev)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO transactions (id, seq, timestamp, prev, session_id, initiating_path, verdicts, merkle_root)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(tx.ID),
		tx.Seq,
		tx.Timestamp.UTC().Format(time.RFC3339Nano),
		prev,
		string(tx.SessionID),
		string(tx.InitiatingPath),
		string(verdicts),
		tx.MerkleRoot,
	)
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO ledger_head (id, tx_id) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET tx_id = excluded.tx_id
	`, string(tx.ID))
	if err != nil {
		return fmt.Errorf("advance ledger head: %w", err)
	}
	return nil
}

// HeadTransaction returns the current ledger HEAD id, or nil when the
// ledger is empty.
func (q *Queries) HeadTransaction(ctx context.Context) (*canon.TxID, error) {
	var id string
	err := q.db.QueryRowContext(ctx, `SELECT tx_id FROM ledger_head WHERE id = 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger head: %w", err)
	}
	out := canon.TxID(id)
	return &out, nil
}

// GetTransaction returns the transaction with the given id, or nil when
// unknown.
func (q *Queries) GetTransaction(ctx context.Context, id canon.TxID) (*canon.Transaction, error) {
	var tx canon.Transaction
	var txID, timestamp, sessionID, path, verdicts string
	var prev sql.NullString
	err := q.db.QueryRowContext(ctx, `
		SELECT id, seq, timestamp, prev, session_id, initiating_path, verdicts, merkle_root
		FROM transactions WHERE id = ?
	`, string(id)).Scan(&txID, &tx.Seq, &timestamp, &prev, &sessionID, &path, &verdicts, &tx.MerkleRoot)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	tx.ID = canon.TxID(txID)
	tx.SessionID = canon.SessionID(sessionID)
	tx.InitiatingPath = canon.PathID(path)
	if t, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
		tx.Timestamp = t
	}
	if prev.Valid {
		p := canon.TxID(prev.String)
		tx.Prev = &p
	}
	if err := json.Unmarshal([]byte(verdicts), &tx.Verdicts); err != nil {
		return nil, fmt.Errorf("get transaction: decode verdicts: %w", err)
	}
	return &tx, nil
}

// CountTransactions returns the ledger length; used by audit reporting.
func (q *Queries) CountTransactions(ctx context.Context) (int64, error) {
	var n int64
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}
