package client

import "fmt"

// PreconditionCode discriminates state-mismatch failures detected before
// (or reported by) submission.
type PreconditionCode string

const (
	CodeOrderbookAlreadyInitialized PreconditionCode = "orderbook_already_initialized"
	CodeOrderbookNotInitialized     PreconditionCode = "orderbook_not_initialized"
	CodeOrderAlreadyExists          PreconditionCode = "order_already_exists"
	CodeOrderNotFound               PreconditionCode = "order_not_found"
	CodeMarketPaused                PreconditionCode = "market_paused"
	CodeInvalidMarketState          PreconditionCode = "invalid_market_state"
	CodeNotOwner                    PreconditionCode = "not_owner"
	CodeNotAuthority                PreconditionCode = "not_authority"
	CodeInvalidState                PreconditionCode = "invalid_state"
	CodeSideMismatch                PreconditionCode = "side_mismatch"
	CodeTradeAlreadyExists          PreconditionCode = "trade_already_exists"
)

// PreconditionError reports a state mismatch: the operation was refused
// without side effects (locally) or rejected atomically (by the ledger).
type PreconditionError struct {
	Op     string
	Code   PreconditionCode
	Detail string
}

func (e *PreconditionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Op, e.Code, e.Detail)
}

func precondition(op string, code PreconditionCode, detail string) *PreconditionError {
	return &PreconditionError{Op: op, Code: code, Detail: detail}
}

// SubmissionError wraps a failure from the confirmation boundary that is
// not one of the recognized precondition signals. It is surfaced verbatim
// and never retried automatically.
type SubmissionError struct {
	Op  string
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: submission failed: %v", e.Op, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
