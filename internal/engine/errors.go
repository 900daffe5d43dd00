package engine

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes engine errors per the consensus rule taxonomy.
type ErrorCode string

const (
	// ErrCodeValidation indicates malformed input (bad ids, out-of-range
	// positions). Nothing is persisted.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNotQualified indicates a session start against a path that
	// has not crossed the qualification threshold.
	ErrCodeNotQualified ErrorCode = "NOT_QUALIFIED"

	// ErrCodeAlreadyConsumed indicates a second session start on a path
	// whose mandate was already activated.
	ErrCodeAlreadyConsumed ErrorCode = "ALREADY_CONSUMED"

	// ErrCodeAlreadyCommitted indicates a re-commit of a closed session.
	ErrCodeAlreadyCommitted ErrorCode = "ALREADY_COMMITTED"

	// ErrCodeVoteBudgetExceeded indicates a verdict batch larger than
	// floor(sqrt(position)).
	ErrCodeVoteBudgetExceeded ErrorCode = "VOTE_BUDGET_EXCEEDED"

	// ErrCodeInconsistentPredecessor indicates a verdict whose winning
	// path does not descend from the computed canonical predecessor.
	ErrCodeInconsistentPredecessor ErrorCode = "INCONSISTENT_PREDECESSOR"

	// ErrCodeIntegrityFailure indicates a ledger hash or Merkle mismatch.
	// Fatal: the caller must halt, never continue a cascade past it.
	ErrCodeIntegrityFailure ErrorCode = "INTEGRITY_FAILURE"

	// ErrCodeNotFound indicates an unknown path, session, or transaction.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// EngineError is the typed error returned by all engine operations.
//
// Structured fields identify the affected record so callers can report
// without parsing messages.
type EngineError struct {
	Code    ErrorCode
	Message string
	Path    string // affected path id, when known
	Session string // affected session id, when known
	Err     error  // wrapped cause, optional
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	switch {
	case e.Path != "" && e.Session != "":
		return fmt.Sprintf("%s: %s (path=%s, session=%s)", e.Code, e.Message, e.Path, e.Session)
	case e.Path != "":
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
	case e.Session != "":
		return fmt.Sprintf("%s: %s (session=%s)", e.Code, e.Message, e.Session)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As chains.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the ErrorCode from an error chain. Returns the empty
// code when err carries no EngineError.
func CodeOf(err error) ErrorCode {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// IsCode reports whether err carries the given engine error code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
