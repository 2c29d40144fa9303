package client

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/obscura-markets/darkpool/params"
	"github.com/obscura-markets/darkpool/pkg/pda"
	"github.com/obscura-markets/darkpool/pkg/tx"
)

// Client drives the order lifecycle against a darkpool deployment. Every
// operation follows the same shape: validate raw input, derive the required
// addresses, preflight current state, build the instruction, submit, and
// report a typed result or failure. The client keeps no authoritative
// state: addresses are recomputed on demand and the ledger is the only
// source of truth.
type Client struct {
	boundary tx.Boundary
	wallet   tx.Signer
	deriver  *pda.Deriver
	policy   params.Policy
	log      *zap.SugaredLogger
}

// New builds a client for the configured program namespaces. The wallet is
// the connected signer identity; the boundary is the transaction submission
// collaborator.
func New(cfg params.Config, boundary tx.Boundary, wallet tx.Signer, log *zap.SugaredLogger) (*Client, error) {
	if wallet == nil {
		return nil, errors.New("client: wallet not connected")
	}
	deriver, err := pda.NewDeriver(cfg.Program.DarkpoolID, cfg.Program.DelegationID)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{
		boundary: boundary,
		wallet:   wallet,
		deriver:  deriver,
		policy:   cfg.Policy,
		log:      log,
	}, nil
}

// Identity returns the connected owner identity.
func (c *Client) Identity() pda.Address { return c.wallet.Identity() }

// Deriver exposes the address derivation engine so callers can recompute
// addresses without a state read.
func (c *Client) Deriver() *pda.Deriver { return c.deriver }

// submit pushes the instruction through the boundary and classifies the
// failure: recognized account-creation conflicts become precondition
// errors (the expected race signal), everything else is passed through as
// a SubmissionError.
func (c *Client) submit(ctx context.Context, op string, ins tx.Instruction, conflict PreconditionCode) (tx.TxID, error) {
	txid, err := c.boundary.Submit(ctx, ins, c.wallet)
	if err != nil {
		if errors.Is(err, tx.ErrAccountExists) {
			return "", precondition(op, conflict, err.Error())
		}
		return "", &SubmissionError{Op: op, Err: err}
	}
	return txid, nil
}

// readOrderbook fetches and decodes the orderbook account, or nil when it
// does not exist.
func (c *Client) readOrderbook(ctx context.Context, addr pda.Address) (*tx.Orderbook, error) {
	acc, err := c.boundary.Account(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("read orderbook %s: %w", addr, err)
	}
	if acc == nil {
		return nil, nil
	}
	var ob tx.Orderbook
	if err := acc.DecodeInto(&ob); err != nil {
		return nil, err
	}
	return &ob, nil
}

// readOrder fetches and decodes an order account, or nil when Nonexistent.
func (c *Client) readOrder(ctx context.Context, addr pda.Address) (*tx.Order, error) {
	acc, err := c.boundary.Account(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("read order %s: %w", addr, err)
	}
	if acc == nil {
		return nil, nil
	}
	var o tx.Order
	if err := acc.DecodeInto(&o); err != nil {
		return nil, err
	}
	return &o, nil
}

// accountExists reports whether an address currently holds an account.
func (c *Client) accountExists(ctx context.Context, addr pda.Address) (bool, error) {
	acc, err := c.boundary.Account(ctx, addr)
	if err != nil {
		return false, fmt.Errorf("read account %s: %w", addr, err)
	}
	return acc != nil, nil
}
