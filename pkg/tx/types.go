package tx

import (
	"encoding/json"
	"fmt"

	"github.com/obscura-markets/darkpool/pkg/pda"
)

// Side is an order side. Wire values match the on-chain enum.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// ParseSide accepts the text form used by the API and CLI.
func ParseSide(s string) (Side, error) {
	switch s {
	case "buy", "Buy", "BUY":
		return Buy, nil
	case "sell", "Sell", "SELL":
		return Sell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Side) UnmarshalText(text []byte) error {
	parsed, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// OrderStatus is the order lifecycle state. Matched and Cancelled are
// terminal; an account that does not exist is Nonexistent by definition and
// never stored.
type OrderStatus uint8

const (
	StatusPlaced OrderStatus = iota
	StatusDelegated
	StatusMatched
	StatusCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case StatusPlaced:
		return "placed"
	case StatusDelegated:
		return "delegated"
	case StatusMatched:
		return "matched"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == StatusMatched || s == StatusCancelled
}

func (s OrderStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *OrderStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "placed":
		*s = StatusPlaced
	case "delegated":
		*s = StatusDelegated
	case "matched":
		*s = StatusMatched
	case "cancelled":
		*s = StatusCancelled
	default:
		return fmt.Errorf("unknown order status %q", string(text))
	}
	return nil
}

// ==============================
// Account payloads
// ==============================

// Orderbook is the per-market control account gating placement and matching.
type Orderbook struct {
	Market     pda.Address `json:"market"`
	Authority  pda.Address `json:"authority"`
	OrderCount uint64      `json:"orderCount"`
	TradeCount uint64      `json:"tradeCount"`
	Paused     bool        `json:"paused"`
	Bump       uint8       `json:"bump"`
}

// Order is the publicly anchored order account. Placement persists it;
// delegation hands its mutable state to the TEE.
type Order struct {
	Owner        pda.Address `json:"owner"`
	OrderID      uint64      `json:"orderId"`
	Side         Side        `json:"side"`
	Amount       uint64      `json:"amount"`
	Price        uint64      `json:"price"`
	FilledAmount uint64      `json:"filledAmount"`
	Status       OrderStatus `json:"status"`
	CreatedAt    int64       `json:"createdAt"`
	ValidUntil   int64       `json:"validUntil,omitempty"`
	CommitFreqMs uint32      `json:"commitFreqMs,omitempty"`
	Bump         uint8       `json:"bump"`
}

// Remaining is the unfilled quantity.
func (o *Order) Remaining() uint64 {
	if o.FilledAmount >= o.Amount {
		return 0
	}
	return o.Amount - o.FilledAmount
}

// TradeResult is the immutable settlement record for one match. It ties the
// trade id to the two participating order accounts at settlement time.
type TradeResult struct {
	TradeID    uint64      `json:"tradeId"`
	Buyer      pda.Address `json:"buyer"`
	Seller     pda.Address `json:"seller"`
	BuyOrder   pda.Address `json:"buyOrder"`
	SellOrder  pda.Address `json:"sellOrder"`
	Amount     uint64      `json:"amount"`
	Price      uint64      `json:"price"`
	ExecutedAt int64       `json:"executedAt"`
	Bump       uint8       `json:"bump"`
}

// DelegationRecord is the payload of the record sub-account created on
// handoff: who the state went to and the checkpoint policy.
type DelegationRecord struct {
	Order        pda.Address `json:"order"`
	Validator    pda.Address `json:"validator"`
	ValidUntil   int64       `json:"validUntil"`
	CommitFreqMs uint32      `json:"commitFreqMs"`
}

// ==============================
// Account envelope
// ==============================

// Account is what the submission boundary returns for a state read: the
// owning program plus the serialized payload. A nil *Account means the
// address is Nonexistent.
type Account struct {
	Address pda.Address     `json:"address"`
	Owner   pda.Address     `json:"owner"`
	Data    json.RawMessage `json:"data"`
}

// DecodeInto unmarshals the account payload into a typed struct.
func (a *Account) DecodeInto(v any) error {
	if err := json.Unmarshal(a.Data, v); err != nil {
		return fmt.Errorf("decode account %s: %w", a.Address, err)
	}
	return nil
}
