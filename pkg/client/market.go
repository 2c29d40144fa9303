package client

import (
	"context"
	"fmt"

	"github.com/obscura-markets/darkpool/pkg/tx"
	"github.com/obscura-markets/darkpool/pkg/validate"
)

// PauseMarket halts placement and matching on a market. Authority-gated
// circuit breaker: no per-order intervention needed.
func (c *Client) PauseMarket(ctx context.Context, market string) (tx.TxID, error) {
	return c.setMarketPaused(ctx, tx.OpPauseMarket, market, true)
}

// ResumeMarket re-enables a paused market.
func (c *Client) ResumeMarket(ctx context.Context, market string) (tx.TxID, error) {
	return c.setMarketPaused(ctx, tx.OpResumeMarket, market, false)
}

func (c *Client) setMarketPaused(ctx context.Context, op, market string, pause bool) (tx.TxID, error) {
	marketAddr, err := validate.Address("market", market)
	if err != nil {
		return "", err
	}
	orderbookAddr, _, err := c.deriver.OrderbookAddress(marketAddr)
	if err != nil {
		return "", err
	}

	ob, err := c.readOrderbook(ctx, orderbookAddr)
	if err != nil {
		return "", err
	}
	if ob == nil {
		return "", precondition(op, CodeOrderbookNotInitialized, "market "+marketAddr.String())
	}
	if ob.Authority != c.Identity() {
		return "", precondition(op, CodeNotAuthority,
			fmt.Sprintf("orderbook authority is %s", ob.Authority))
	}
	if ob.Paused == pause {
		state := "active"
		if ob.Paused {
			state = "paused"
		}
		return "", precondition(op, CodeInvalidMarketState, "orderbook already "+state)
	}

	var ins tx.Instruction
	if pause {
		ins = tx.PauseMarket(c.deriver.Program, orderbookAddr, c.Identity())
	} else {
		ins = tx.ResumeMarket(c.deriver.Program, orderbookAddr, c.Identity())
	}
	txid, err := c.submit(ctx, op, ins, CodeInvalidMarketState)
	if err != nil {
		return "", err
	}

	c.log.Infow("market_pause_changed", "market", marketAddr, "paused", pause, "tx", txid)
	return txid, nil
}

// Orderbook reads the control account for a market, or nil when it has not
// been initialized.
func (c *Client) Orderbook(ctx context.Context, market string) (*tx.Orderbook, error) {
	marketAddr, err := validate.Address("market", market)
	if err != nil {
		return nil, err
	}
	orderbookAddr, _, err := c.deriver.OrderbookAddress(marketAddr)
	if err != nil {
		return nil, err
	}
	return c.readOrderbook(ctx, orderbookAddr)
}
