package ledger

import (
	"github.com/obscura-markets/darkpool/pkg/pda"
	"github.com/obscura-markets/darkpool/pkg/tx"
)

// Event kinds, mirroring the on-chain program's emitted events.
const (
	EventOrderbookInitialized = "orderbook_initialized"
	EventOrderPlaced          = "order_placed"
	EventOrderDelegated       = "order_delegated"
	EventOrderCancelled       = "order_cancelled"
	EventTradeExecuted        = "trade_executed"
	EventMarketPaused         = "market_paused"
	EventMarketResumed        = "market_resumed"
)

// Event is a structured record of a successful state transition, published
// to subscribers (the WebSocket hub, primarily) after commit.
type Event struct {
	Kind    string      `json:"kind"`
	TxID    tx.TxID     `json:"txId"`
	Market  pda.Address `json:"market,omitempty"`
	Order   pda.Address `json:"order,omitempty"`
	Owner   pda.Address `json:"owner,omitempty"`
	OrderID uint64      `json:"orderId,omitempty"`
	TradeID uint64      `json:"tradeId,omitempty"`
	Side    string      `json:"side,omitempty"`
	Amount  uint64      `json:"amount,omitempty"`
	Price   uint64      `json:"price,omitempty"`
	TEE     pda.Address `json:"teeValidator,omitempty"`
}

// EventSink receives committed events. Implementations must not block;
// publish happens on the submission path.
type EventSink func(Event)
