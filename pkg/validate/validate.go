package validate

import (
	"fmt"
	"math"
	"time"

	"github.com/obscura-markets/darkpool/params"
	"github.com/obscura-markets/darkpool/pkg/pda"
)

// Reason discriminates why a field was rejected, so callers can render a
// precise message per field instead of a generic "bad input".
type Reason string

const (
	ReasonInvalidAddress  Reason = "invalid_address"
	ReasonNonPositiveID   Reason = "non_positive_id"
	ReasonInvalidSide     Reason = "invalid_side"
	ReasonInvalidAmount   Reason = "invalid_amount"
	ReasonInvalidPrice    Reason = "invalid_price"
	ReasonInvalidExpiry   Reason = "invalid_expiry"
	ReasonCommitFreqRange Reason = "commit_freq_out_of_range"
)

// FieldError is a pure validation failure: no side effects occurred and
// nothing was submitted.
type FieldError struct {
	Field  string
	Reason Reason
	Detail string
}

func (e *FieldError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("validate %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("validate %s: %s (%s)", e.Field, e.Reason, e.Detail)
}

func fieldErr(field string, reason Reason, detail string) *FieldError {
	return &FieldError{Field: field, Reason: reason, Detail: detail}
}

// Address parses a base58 identifier and enforces the 32-byte length.
func Address(field, s string) (pda.Address, error) {
	a, err := pda.ParseAddress(s)
	if err != nil {
		return pda.Address{}, fieldErr(field, ReasonInvalidAddress, err.Error())
	}
	return a, nil
}

// ID validates an order or trade id. The id space starts at 1 so the
// uninitialized zero value can never collide with a real id.
func ID(field string, v int64) (uint64, error) {
	if v < 1 {
		return 0, fieldErr(field, ReasonNonPositiveID, fmt.Sprintf("got %d, ids start at 1", v))
	}
	return uint64(v), nil
}

// Amount validates a base-unit quantity. Zero or negative amounts are
// economically meaningless.
func Amount(field string, v int64) (uint64, error) {
	if v <= 0 {
		return 0, fieldErr(field, ReasonInvalidAmount, fmt.Sprintf("got %d, must be positive", v))
	}
	return uint64(v), nil
}

// Price validates a quote-unit price.
func Price(field string, v int64) (uint64, error) {
	if v <= 0 {
		return 0, fieldErr(field, ReasonInvalidPrice, fmt.Sprintf("got %d, must be positive", v))
	}
	return uint64(v), nil
}

// ValidUntil validates an expiry timestamp (unix seconds). A timestamp in
// the past is syntactically valid, since staleness is a lifecycle concern,
// but is reported via stale so the caller can warn.
func ValidUntil(field string, v int64, now time.Time) (ts int64, stale bool, err error) {
	if v <= 0 {
		return 0, false, fieldErr(field, ReasonInvalidExpiry, fmt.Sprintf("got %d, must be positive unix seconds", v))
	}
	return v, v < now.Unix(), nil
}

// CommitFreq validates the delegated-state checkpoint cadence in
// milliseconds. Positivity is the protocol rule; the optional policy bounds
// are a deployment decision (zero bound = unbounded).
func CommitFreq(field string, ms int64, policy params.Policy) (uint32, error) {
	if ms <= 0 {
		return 0, fieldErr(field, ReasonCommitFreqRange, fmt.Sprintf("got %d, must be positive", ms))
	}
	if ms > math.MaxUint32 {
		return 0, fieldErr(field, ReasonCommitFreqRange, fmt.Sprintf("got %d, exceeds the wire maximum %d", ms, uint32(math.MaxUint32)))
	}
	d := time.Duration(ms) * time.Millisecond
	if policy.MinCommitFreq > 0 && d < policy.MinCommitFreq {
		return 0, fieldErr(field, ReasonCommitFreqRange,
			fmt.Sprintf("%dms below deployment floor %s", ms, policy.MinCommitFreq))
	}
	if policy.MaxCommitFreq > 0 && d > policy.MaxCommitFreq {
		return 0, fieldErr(field, ReasonCommitFreqRange,
			fmt.Sprintf("%dms above deployment ceiling %s", ms, policy.MaxCommitFreq))
	}
	return uint32(ms), nil
}
