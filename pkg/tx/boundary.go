package tx

import (
	"context"
	"errors"

	"github.com/obscura-markets/darkpool/pkg/pda"
)

// ErrAccountExists is the boundary's signal that an instruction tried to
// create an account that is already in use. On a deterministic-address
// ledger this is how a lost race (or a reused id) surfaces; clients must
// recognize it rather than blind-retry.
var ErrAccountExists = errors.New("account already in use")

// TxID is the opaque transaction identifier the confirmation boundary
// returns on success.
type TxID string

// Signer authorizes an instruction's signer accounts. The orchestration
// core never sees key material, only this capability.
type Signer interface {
	Identity() pda.Address
	Sign(message []byte) ([]byte, error)
}

// Submitter is the transaction submission boundary. Submit blocks until a
// terminal success or failure is known; retries and confirmation are the
// network's concern, never this layer's. A failed Submit must not be
// retried verbatim without re-reading state first: on a deterministic-
// address ledger "already exists" is the expected signal of a lost race.
type Submitter interface {
	Submit(ctx context.Context, ins Instruction, signer Signer) (TxID, error)
}

// AccountReader reads current account state for preflight checks. A nil
// account with nil error means the address is Nonexistent.
type AccountReader interface {
	Account(ctx context.Context, addr pda.Address) (*Account, error)
}

// Boundary is the full collaborator surface a client needs.
type Boundary interface {
	Submitter
	AccountReader
}
