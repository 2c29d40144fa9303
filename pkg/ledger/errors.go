package ledger

import (
	"errors"

	"github.com/obscura-markets/darkpool/pkg/tx"
)

// Program errors. These are the terminal failure reasons the interpreter
// reports; the client maps the state-dependent ones onto its precondition
// taxonomy.
var (
	// ErrAccountExists aliases the boundary-level sentinel so callers can
	// errors.Is against either package.
	ErrAccountExists = tx.ErrAccountExists

	ErrAccountNotFound    = errors.New("ledger: account not found")
	ErrAddressMismatch    = errors.New("ledger: account address does not match derivation")
	ErrMissingSignature   = errors.New("ledger: required signature missing or invalid")
	ErrUnauthorized       = errors.New("ledger: signer is not the authority")
	ErrNotOwner           = errors.New("ledger: signer is not the order owner")
	ErrMarketPaused       = errors.New("ledger: market is paused")
	ErrInvalidMarketState = errors.New("ledger: orderbook not in required state")
	ErrInvalidAmount      = errors.New("ledger: amount must be greater than zero")
	ErrInvalidPrice       = errors.New("ledger: price must be greater than zero")
	ErrOrderNotOpen       = errors.New("ledger: order not in placed state")
	ErrOrderTerminal      = errors.New("ledger: order already matched or cancelled")
	ErrOrderNotDelegated  = errors.New("ledger: order must be delegated before matching")
	ErrSideMismatch       = errors.New("ledger: order sides do not cross buy/sell")
	ErrPriceMismatch      = errors.New("ledger: buy price below sell price")
	ErrNoMatchableAmount  = errors.New("ledger: no matchable amount remaining")
	ErrUnknownProgram     = errors.New("ledger: instruction targets unknown program")
)
