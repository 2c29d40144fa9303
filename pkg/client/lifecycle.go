package client

import (
	"context"
	"fmt"
	"time"

	"github.com/obscura-markets/darkpool/pkg/pda"
	"github.com/obscura-markets/darkpool/pkg/tx"
	"github.com/obscura-markets/darkpool/pkg/validate"
)

// InitOrderbookResult reports a successful orderbook initialization.
type InitOrderbookResult struct {
	Tx        tx.TxID     `json:"tx"`
	Orderbook pda.Address `json:"orderbook"`
}

// InitializeOrderbook creates the control account for a market, with the
// connected wallet as authority. Re-initialization fails loudly: a second
// init against a live orderbook usually means authority confusion.
func (c *Client) InitializeOrderbook(ctx context.Context, market string) (*InitOrderbookResult, error) {
	const op = tx.OpInitializeOrderbook

	marketAddr, err := validate.Address("market", market)
	if err != nil {
		return nil, err
	}

	orderbookAddr, _, err := c.deriver.OrderbookAddress(marketAddr)
	if err != nil {
		return nil, err
	}

	exists, err := c.accountExists(ctx, orderbookAddr)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, precondition(op, CodeOrderbookAlreadyInitialized,
			fmt.Sprintf("orderbook %s for market %s", orderbookAddr, marketAddr))
	}

	ins := tx.InitializeOrderbook(c.deriver.Program, orderbookAddr, c.Identity(), marketAddr)
	txid, err := c.submit(ctx, op, ins, CodeOrderbookAlreadyInitialized)
	if err != nil {
		return nil, err
	}

	c.log.Infow("orderbook_initialized", "market", marketAddr, "orderbook", orderbookAddr, "tx", txid)
	return &InitOrderbookResult{Tx: txid, Orderbook: orderbookAddr}, nil
}

// PlaceOrderRequest carries the raw fields the input collaborator supplies.
type PlaceOrderRequest struct {
	Market  string `json:"market"`
	OrderID int64  `json:"orderId"`
	Side    string `json:"side"`
	Amount  int64  `json:"amount"`
	Price   int64  `json:"price"`
}

// PlaceOrderResult reports a successful placement.
type PlaceOrderResult struct {
	Tx    tx.TxID     `json:"tx"`
	Order pda.Address `json:"order"`
}

// PlaceOrder anchors an order publicly. The order address is derived from
// (owner, orderId); a reused id fails with order_already_exists instead of
// overwriting. That refusal is the primary idempotency safeguard.
func (c *Client) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	const op = tx.OpPlaceOrder

	marketAddr, err := validate.Address("market", req.Market)
	if err != nil {
		return nil, err
	}
	orderID, err := validate.ID("orderId", req.OrderID)
	if err != nil {
		return nil, err
	}
	side, err := tx.ParseSide(req.Side)
	if err != nil {
		return nil, &validate.FieldError{Field: "side", Reason: validate.ReasonInvalidSide, Detail: err.Error()}
	}
	amount, err := validate.Amount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	price, err := validate.Price("price", req.Price)
	if err != nil {
		return nil, err
	}

	orderbookAddr, _, err := c.deriver.OrderbookAddress(marketAddr)
	if err != nil {
		return nil, err
	}
	orderAddr, _, err := c.deriver.OrderAddress(c.Identity(), orderID)
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
	if exists, err := c.accountExists(ctx, orderAddr); err != nil {
		return nil, err
	} else if exists {
		return nil, precondition(op, CodeOrderAlreadyExists,
			fmt.Sprintf("order id %d for owner %s", orderID, c.Identity()))
	}

	ins := tx.PlaceOrder(c.deriver.Program, orderAddr, orderbookAddr, c.Identity(), orderID, side, amount, price)
	txid, err := c.submit(ctx, op, ins, CodeOrderAlreadyExists)
	if err != nil {
		return nil, err
	}

	c.log.Infow("order_placed",
		"order", orderAddr, "id", orderID, "side", side.String(),
		"amount", amount, "price", price, "tx", txid)
	return &PlaceOrderResult{Tx: txid, Order: orderAddr}, nil
}

// DelegateOrderRequest hands a placed order's mutable state to the TEE.
type DelegateOrderRequest struct {
	Order        string `json:"order"` // order account address
	OrderID      int64  `json:"orderId"`
	ValidUntil   int64  `json:"validUntil"`   // unix seconds
	CommitFreqMs int64  `json:"commitFreqMs"` // checkpoint cadence
}

// DelegateOrderResult reports a successful delegation.
type DelegateOrderResult struct {
	Tx tx.TxID `json:"tx"`
	// Stale is set when validUntil was already in the past at submission
	// time. Validation accepts it; the caller decides whether to warn.
	Stale bool `json:"stale,omitempty"`
}

// DelegateOrder transitions Placed→Delegated, deriving the three handoff
// sub-accounts under the delegation program's namespace.
func (c *Client) DelegateOrder(ctx context.Context, req DelegateOrderRequest) (*DelegateOrderResult, error) {
	const op = tx.OpDelegateOrder

	orderAddr, err := validate.Address("order", req.Order)
	if err != nil {
		return nil, err
	}
	orderID, err := validate.ID("orderId", req.OrderID)
	if err != nil {
		return nil, err
	}
	validUntil, stale, err := validate.ValidUntil("validUntil", req.ValidUntil, time.Now())
	if err != nil {
		return nil, err
	}
	commitFreq, err := validate.CommitFreq("commitFreqMs", req.CommitFreqMs, c.policy)
	if err != nil {
		return nil, err
	}
	if stale {
		c.log.Warnw("delegating_with_past_expiry", "order", orderAddr, "valid_until", validUntil)
	}

	order, err := c.readOrder(ctx, orderAddr)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, precondition(op, CodeInvalidState, "order does not exist")
	}
	if order.Owner != c.Identity() {
		return nil, precondition(op, CodeNotOwner,
			fmt.Sprintf("order belongs to %s", order.Owner))
	}
	if order.Status != tx.StatusPlaced {
		return nil, precondition(op, CodeInvalidState,
			fmt.Sprintf("order is %s, delegation requires placed", order.Status))
	}

	deleg, err := c.deriver.DelegationAccountsFor(orderAddr)
	if err != nil {
		return nil, err
	}

	ins := tx.DelegateOrder(c.deriver.Program, orderAddr, c.Identity(), deleg,
		c.deriver.Delegation, orderID, validUntil, commitFreq)
	txid, err := c.submit(ctx, op, ins, CodeInvalidState)
	if err != nil {
		return nil, err
	}

	c.log.Infow("order_delegated",
		"order", orderAddr, "id", orderID,
		"valid_until", validUntil, "commit_freq_ms", commitFreq, "tx", txid)
	return &DelegateOrderResult{Tx: txid, Stale: stale}, nil
}

// CancelOrder cancels one of the caller's own orders (Placed or Delegated).
// The order address is recomputed from the connected identity, so callers
// only supply the id.
func (c *Client) CancelOrder(ctx context.Context, rawOrderID int64) (tx.TxID, error) {
	const op = tx.OpCancelOrder

	orderID, err := validate.ID("orderId", rawOrderID)
	if err != nil {
		return "", err
	}
	orderAddr, _, err := c.deriver.OrderAddress(c.Identity(), orderID)
	if err != nil {
		return "", err
	}

	order, err := c.readOrder(ctx, orderAddr)
	if err != nil {
		return "", err
	}
	if order == nil {
		return "", precondition(op, CodeOrderNotFound,
			fmt.Sprintf("order id %d for owner %s", orderID, c.Identity()))
	}
	if order.Status.Terminal() {
		return "", precondition(op, CodeInvalidState,
			fmt.Sprintf("order is already %s", order.Status))
	}

	ins := tx.CancelOrder(c.deriver.Program, orderAddr, c.Identity(), orderID)
	txid, err := c.submit(ctx, op, ins, CodeInvalidState)
	if err != nil {
		return "", err
	}

	c.log.Infow("order_cancelled", "order", orderAddr, "id", orderID, "tx", txid)
	return txid, nil
}

// OrderStatus reads the current lifecycle state of one of the caller's
// orders. Callers re-check state this way before re-attempting a timed-out
// submission; there is no cooperative cancellation once submitted.
func (c *Client) OrderStatus(ctx context.Context, rawOrderID int64) (*tx.Order, pda.Address, error) {
	orderID, err := validate.ID("orderId", rawOrderID)
	if err != nil {
		return nil, pda.Address{}, err
	}
	orderAddr, _, err := c.deriver.OrderAddress(c.Identity(), orderID)
	if err != nil {
		return nil, pda.Address{}, err
	}
	order, err := c.readOrder(ctx, orderAddr)
	if err != nil {
		return nil, pda.Address{}, err
	}
	return order, orderAddr, nil
}
