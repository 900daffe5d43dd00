package engine

import (
	"context"

	"github.com/roach88/hronir/internal/canon"
	"github.com/roach88/hronir/internal/ledger"
)

// AuditReport summarizes a full-history ledger verification.
type AuditReport struct {
	ledger.ChainReport
	Votes        int64 `json:"votes"`
	Transactions int64 `json:"transactions"`
}

// Audit walks the ledger hash chain from HEAD to genesis, recomputing
// every transaction id and Merkle root. Any mismatch surfaces as an
// INTEGRITY_FAILURE; there is no partial credit and no silent repair.
func (e *Engine) Audit(ctx context.Context) (*AuditReport, error) {
	q := e.st.Q()
	head, err := q.HeadTransaction(ctx)
	if err != nil {
		return nil, err
	}
	report, err := ledger.VerifyChain(ctx, head, func(ctx context.Context, id canon.TxID) (*canon.Transaction, error) {
		return q.GetTransaction(ctx, id)
	})
	if err != nil {
		return nil, &EngineError{Code: ErrCodeIntegrityFailure, Message: "ledger verification failed", Err: err}
	}
	votes, err := q.CountVotes(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := q.CountTransactions(ctx)
	if err != nil {
		return nil, err
	}
	return &AuditReport{ChainReport: report, Votes: votes, Transactions: txs}, nil
}
