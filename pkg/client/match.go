package client

import (
	"context"
	"fmt"

	"github.com/obscura-markets/darkpool/pkg/pda"
	"github.com/obscura-markets/darkpool/pkg/tx"
	"github.com/obscura-markets/darkpool/pkg/validate"
)

// MatchOrdersRequest references the two counter-orders and the trade id a
// matcher claims for the settlement record.
type MatchOrdersRequest struct {
	Market    string `json:"market"`
	TradeID   int64  `json:"tradeId"`
	BuyOrder  string `json:"buyOrder"`
	SellOrder string `json:"sellOrder"`
}

// MatchOrdersResult reports a successful match submission.
type MatchOrdersResult struct {
	Tx          tx.TxID     `json:"tx"`
	TradeResult pda.Address `json:"tradeResult"`
}

// MatchOrders submits a match claim. Price/quantity reconciliation belongs
// to the TEE; this component owns only the pre/post-conditions of the
// claim: active orderbook, both orders delegated, opposite sides, fresh
// trade id.
func (c *Client) MatchOrders(ctx context.Context, req MatchOrdersRequest) (*MatchOrdersResult, error) {
	const op = tx.OpMatchOrders

	marketAddr, err := validate.Address("market", req.Market)
	if err != nil {
		return nil, err
	}
	tradeID, err := validate.ID("tradeId", req.TradeID)
	if err != nil {
		return nil, err
	}
	buyAddr, err := validate.Address("buyOrder", req.BuyOrder)
	if err != nil {
		return nil, err
	}
	sellAddr, err := validate.Address("sellOrder", req.SellOrder)
	if err != nil {
		return nil, err
	}

	orderbookAddr, _, err := c.deriver.OrderbookAddress(marketAddr)
	if err != nil {
		return nil, err
	}
	tradeAddr, _, err := c.deriver.TradeAddress(tradeID)
	if err != nil {
		return nil, err
	}

	ob, err := c.readOrderbook(ctx, orderbookAddr)
	if err != nil {
		return nil, err
	}
	if ob == nil {
		return nil, precondition(op, CodeOrderbookNotInitialized, "market "+marketAddr.String())
	}
	if ob.Paused {
		return nil, precondition(op, CodeMarketPaused, "market "+marketAddr.String())
	}

	if exists, err := c.accountExists(ctx, tradeAddr); err != nil {
		return nil, err
	} else if exists {
		return nil, precondition(op, CodeTradeAlreadyExists,
			fmt.Sprintf("trade id %d already settled", tradeID))
	}

	buy, err := c.readOrder(ctx, buyAddr)
	if err != nil {
		return nil, err
	}
	if buy == nil {
		return nil, precondition(op, CodeOrderNotFound, "buy order "+buyAddr.String())
	}
	sell, err := c.readOrder(ctx, sellAddr)
	if err != nil {
		return nil, err
	}
	if sell == nil {
		return nil, precondition(op, CodeOrderNotFound, "sell order "+sellAddr.String())
	}
	if buy.Side != tx.Buy || sell.Side != tx.Sell {
		return nil, precondition(op, CodeSideMismatch,
			fmt.Sprintf("got %s/%s, want buy/sell", buy.Side, sell.Side))
	}
	if buy.Status != tx.StatusDelegated || sell.Status != tx.StatusDelegated {
		return nil, precondition(op, CodeInvalidState,
			fmt.Sprintf("orders are %s/%s, matching requires delegated/delegated", buy.Status, sell.Status))
	}

	ins := tx.MatchOrders(c.deriver.Program, tradeAddr, buyAddr, sellAddr, orderbookAddr, c.Identity(), tradeID)
	txid, err := c.submit(ctx, op, ins, CodeTradeAlreadyExists)
	if err != nil {
		return nil, err
	}

	c.log.Infow("orders_matched", "trade_id", tradeID, "trade_result", tradeAddr,
		"buy", buyAddr, "sell", sellAddr, "tx", txid)
	return &MatchOrdersResult{Tx: txid, TradeResult: tradeAddr}, nil
}

// TradeResult reads the settlement record for a trade id, or nil if the
// trade has not been settled.
func (c *Client) TradeResult(ctx context.Context, rawTradeID int64) (*tx.TradeResult, error) {
	tradeID, err := validate.ID("tradeId", rawTradeID)
	if err != nil {
		return nil, err
	}
	tradeAddr, _, err := c.deriver.TradeAddress(tradeID)
	if err != nil {
		return nil, err
	}
	acc, err := c.boundary.Account(ctx, tradeAddr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, nil
	}
	var tr tx.TradeResult
	if err := acc.DecodeInto(&tr); err != nil {
		return nil, err
	}
	return &tr, nil
}
