package api

// Request/response types for REST endpoints and WebSocket messages

// ==============================
// REST Request Types
// ==============================

// InitOrderbookRequest is the payload for POST /api/v1/orderbooks
type InitOrderbookRequest struct {
	Market string `json:"market"` // 32-byte base58 market identifier
}

// DelegateRequest is the payload for POST /api/v1/orders/{id}/delegate.
// The order address is recomputed server-side from the node identity.
type DelegateRequest struct {
	ValidUntil   int64 `json:"validUntil"`   // Unix seconds
	CommitFreqMs int64 `json:"commitFreqMs"` // Checkpoint cadence
}

// MatchRequest is the payload for POST /api/v1/trades
type MatchRequest struct {
	Market    string `json:"market"`
	TradeID   int64  `json:"tradeId"`
	BuyOrder  string `json:"buyOrder"`  // Base58 order account address
	SellOrder string `json:"sellOrder"` // Base58 order account address
}

// ==============================
// REST Response Types
// ==============================

// OrderbookView represents the control account of a market
type OrderbookView struct {
	Address    string `json:"address"`
	Market     string `json:"market"`
	Authority  string `json:"authority"`
	OrderCount uint64 `json:"orderCount"`
	TradeCount uint64 `json:"tradeCount"`
	Paused     bool   `json:"paused"`
}

// OrderView represents an order account's lifecycle state
type OrderView struct {
	Address      string `json:"address"`
	Owner        string `json:"owner"`
	OrderID      uint64 `json:"orderId"`
	Side         string `json:"side"`   // "buy" or "sell"
	Status       string `json:"status"` // "placed", "delegated", "matched", "cancelled"
	Amount       uint64 `json:"amount"`
	Price        uint64 `json:"price"`
	Filled       uint64 `json:"filled"`
	Remaining    uint64 `json:"remaining"`
	CreatedAt    int64  `json:"createdAt"`              // Unix seconds
	ValidUntil   int64  `json:"validUntil,omitempty"`   // Set once delegated
	CommitFreqMs uint32 `json:"commitFreqMs,omitempty"` // Set once delegated
}

// TradeView represents a settled trade record
type TradeView struct {
	Address    string `json:"address"`
	TradeID    uint64 `json:"tradeId"`
	Buyer      string `json:"buyer"`
	Seller     string `json:"seller"`
	BuyOrder   string `json:"buyOrder"`
	SellOrder  string `json:"sellOrder"`
	Amount     uint64 `json:"amount"`
	Price      uint64 `json:"price"` // Midpoint execution price
	ExecutedAt int64  `json:"executedAt"`
}

// AccountView returns a raw account for debugging/explorer use
type AccountView struct {
	Address string      `json:"address"`
	Owner   string      `json:"owner"` // Owning program
	Data    interface{} `json:"data"`
}

// TxResponse acknowledges an accepted submission
type TxResponse struct {
	Status string `json:"status"` // "confirmed"
	Tx     string `json:"tx"`
	Order  string `json:"order,omitempty"` // Derived order address, when relevant
	Trade  string `json:"trade,omitempty"` // Derived trade address, when relevant
	Stale  bool   `json:"stale,omitempty"` // Delegation expiry already past
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by a client to manage channel subscriptions
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["events", "market:<addr>", "trades"]
}
