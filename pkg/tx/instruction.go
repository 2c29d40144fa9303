package tx

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/obscura-markets/darkpool/pkg/pda"
)

// SystemProgram is the account-creation program: the all-zero address,
// "11111111111111111111111111111111" in base58.
var SystemProgram = pda.Address{}

// AccountMeta declares how an instruction touches one account.
type AccountMeta struct {
	Address    pda.Address `json:"address"`
	IsSigner   bool        `json:"isSigner"`
	IsWritable bool        `json:"isWritable"`
}

func writable(a pda.Address) AccountMeta { return AccountMeta{Address: a, IsWritable: true} }
func readonly(a pda.Address) AccountMeta { return AccountMeta{Address: a} }
func signer(a pda.Address) AccountMeta {
	return AccountMeta{Address: a, IsSigner: true, IsWritable: true}
}

// Instruction is one fully-formed ledger operation: the target program, the
// ordered required-account list, and the argument bytes.
type Instruction struct {
	ProgramID pda.Address   `json:"programId"`
	Accounts  []AccountMeta `json:"accounts"`
	Data      []byte        `json:"data"`
}

// Message returns the canonical byte string a signer authorizes: program
// id, then each account meta (address + flag byte), then the data block.
func (ins *Instruction) Message() []byte {
	out := make([]byte, 0, pda.AddressLen*(len(ins.Accounts)+1)+len(ins.Accounts)+len(ins.Data))
	out = append(out, ins.ProgramID[:]...)
	for _, m := range ins.Accounts {
		out = append(out, m.Address[:]...)
		var flags byte
		if m.IsSigner {
			flags |= 1
		}
		if m.IsWritable {
			flags |= 2
		}
		out = append(out, flags)
	}
	return append(out, ins.Data...)
}

// Operation names. The discriminator is the first 8 bytes of
// sha256("global:<name>"), prepended to the little-endian argument block.
const (
	OpInitializeOrderbook = "initialize_orderbook"
	OpPlaceOrder          = "place_order"
	OpDelegateOrder       = "delegate_order"
	OpCancelOrder         = "cancel_order"
	OpPauseMarket         = "pause_market"
	OpResumeMarket        = "resume_market"
	OpMatchOrders         = "match_orders"
)

// Discriminator computes the 8-byte method tag for an operation name.
func Discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// Method returns the operation name for an instruction's data, or an error
// if the discriminator is unknown.
func (ins *Instruction) Method() (string, error) {
	if len(ins.Data) < 8 {
		return "", fmt.Errorf("instruction data too short: %d bytes", len(ins.Data))
	}
	var d [8]byte
	copy(d[:], ins.Data[:8])
	for _, name := range []string{
		OpInitializeOrderbook, OpPlaceOrder, OpDelegateOrder,
		OpCancelOrder, OpPauseMarket, OpResumeMarket, OpMatchOrders,
	} {
		if Discriminator(name) == d {
			return name, nil
		}
	}
	return "", fmt.Errorf("unknown instruction discriminator %x", d)
}

// argWriter builds the discriminator-prefixed little-endian argument block.
type argWriter struct{ buf []byte }

func newArgWriter(op string) *argWriter {
	d := Discriminator(op)
	return &argWriter{buf: d[:]}
}

func (w *argWriter) u64(v uint64) *argWriter {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	return w
}

func (w *argWriter) i64(v int64) *argWriter { return w.u64(uint64(v)) }

func (w *argWriter) u32(v uint32) *argWriter {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return w
}

func (w *argWriter) u8(v uint8) *argWriter {
	w.buf = append(w.buf, v)
	return w
}

func (w *argWriter) addr(a pda.Address) *argWriter {
	w.buf = append(w.buf, a[:]...)
	return w
}

// argReader decodes an argument block (after the discriminator).
type argReader struct {
	buf []byte
	off int
	err error
}

func newArgReader(data []byte) *argReader { return &argReader{buf: data, off: 8} }

func (r *argReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = fmt.Errorf("instruction args truncated at offset %d", r.off)
		return nil
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out
}

func (r *argReader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *argReader) i64() int64 { return int64(r.u64()) }

func (r *argReader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *argReader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *argReader) addr() pda.Address {
	b := r.take(pda.AddressLen)
	if b == nil {
		return pda.Address{}
	}
	var a pda.Address
	copy(a[:], b)
	return a
}

// ==============================
// Builders
// ==============================
//
// Account ordering is part of the wire contract; the interpreter addresses
// accounts by position, not by name.

// InitializeOrderbook: orderbook(write), authority(signer), system.
func InitializeOrderbook(program, orderbook, authority, market pda.Address) Instruction {
	return Instruction{
		ProgramID: program,
		Accounts: []AccountMeta{
			writable(orderbook),
			signer(authority),
			readonly(SystemProgram),
		},
		Data: newArgWriter(OpInitializeOrderbook).addr(market).buf,
	}
}

// PlaceOrder: order(write), orderbook(read), owner(signer), system.
func PlaceOrder(program, order, orderbook, owner pda.Address, orderID uint64, side Side, amount, price uint64) Instruction {
	return Instruction{
		ProgramID: program,
		Accounts: []AccountMeta{
			writable(order),
			readonly(orderbook),
			signer(owner),
			readonly(SystemProgram),
		},
		Data: newArgWriter(OpPlaceOrder).u64(orderID).u8(uint8(side)).u64(amount).u64(price).buf,
	}
}

// DelegateOrder: order(write), owner(signer), the three delegation
// sub-accounts(write), delegation program(read), system.
func DelegateOrder(program, order, owner pda.Address, deleg pda.DelegationAccounts, delegationProgram pda.Address, orderID uint64, validUntil int64, commitFreqMs uint32) Instruction {
	return Instruction{
		ProgramID: program,
		Accounts: []AccountMeta{
			writable(order),
			signer(owner),
			writable(deleg.Buffer),
			writable(deleg.Record),
			writable(deleg.Metadata),
			readonly(delegationProgram),
			readonly(SystemProgram),
		},
		Data: newArgWriter(OpDelegateOrder).u64(orderID).i64(validUntil).u32(commitFreqMs).buf,
	}
}

// CancelOrder: order(write), owner(signer).
func CancelOrder(program, order, owner pda.Address, orderID uint64) Instruction {
	return Instruction{
		ProgramID: program,
		Accounts: []AccountMeta{
			writable(order),
			signer(owner),
		},
		Data: newArgWriter(OpCancelOrder).u64(orderID).buf,
	}
}

// PauseMarket / ResumeMarket: orderbook(write), authority(signer).
func PauseMarket(program, orderbook, authority pda.Address) Instruction {
	return Instruction{
		ProgramID: program,
		Accounts:  []AccountMeta{writable(orderbook), signer(authority)},
		Data:      newArgWriter(OpPauseMarket).buf,
	}
}

func ResumeMarket(program, orderbook, authority pda.Address) Instruction {
	return Instruction{
		ProgramID: program,
		Accounts:  []AccountMeta{writable(orderbook), signer(authority)},
		Data:      newArgWriter(OpResumeMarket).buf,
	}
}

// MatchOrders: trade-result(write), buy-order(write), sell-order(write),
// orderbook(write), matcher(signer), system. The orderbook is writable for
// its trade counter; matching never changes its gating state.
func MatchOrders(program, tradeResult, buyOrder, sellOrder, orderbook, matcher pda.Address, tradeID uint64) Instruction {
	return Instruction{
		ProgramID: program,
		Accounts: []AccountMeta{
			writable(tradeResult),
			writable(buyOrder),
			writable(sellOrder),
			writable(orderbook),
			signer(matcher),
			readonly(SystemProgram),
		},
		Data: newArgWriter(OpMatchOrders).u64(tradeID).buf,
	}
}

// ==============================
// Argument decoding (interpreter side)
// ==============================

type InitializeOrderbookArgs struct {
	Market pda.Address
}

func ParseInitializeOrderbookArgs(data []byte) (InitializeOrderbookArgs, error) {
	r := newArgReader(data)
	out := InitializeOrderbookArgs{Market: r.addr()}
	return out, r.err
}

type PlaceOrderArgs struct {
	OrderID uint64
	Side    Side
	Amount  uint64
	Price   uint64
}

func ParsePlaceOrderArgs(data []byte) (PlaceOrderArgs, error) {
	r := newArgReader(data)
	out := PlaceOrderArgs{
		OrderID: r.u64(),
		Side:    Side(r.u8()),
		Amount:  r.u64(),
		Price:   r.u64(),
	}
	if r.err == nil && out.Side != Buy && out.Side != Sell {
		return out, fmt.Errorf("invalid side byte %d", out.Side)
	}
	return out, r.err
}

type DelegateOrderArgs struct {
	OrderID      uint64
	ValidUntil   int64
	CommitFreqMs uint32
}

func ParseDelegateOrderArgs(data []byte) (DelegateOrderArgs, error) {
	r := newArgReader(data)
	out := DelegateOrderArgs{
		OrderID:      r.u64(),
		ValidUntil:   r.i64(),
		CommitFreqMs: r.u32(),
	}
	return out, r.err
}

type CancelOrderArgs struct {
	OrderID uint64
}

func ParseCancelOrderArgs(data []byte) (CancelOrderArgs, error) {
	r := newArgReader(data)
	out := CancelOrderArgs{OrderID: r.u64()}
	return out, r.err
}

type MatchOrdersArgs struct {
	TradeID uint64
}

func ParseMatchOrdersArgs(data []byte) (MatchOrdersArgs, error) {
	r := newArgReader(data)
	out := MatchOrdersArgs{TradeID: r.u64()}
	return out, r.err
}

// DelegateHandoffData is the raw byte layout the delegation program
// receives on handoff: "Delegate" tag, validator key, validUntil (LE8),
// commitFreqMs (LE4). Kept byte-exact for cross-implementation parity.
func DelegateHandoffData(validator pda.Address, validUntil int64, commitFreqMs uint32) []byte {
	data := make([]byte, 0, 8+32+8+4)
	data = append(data, []byte("Delegate")...)
	data = append(data, validator[:]...)
	data = binary.LittleEndian.AppendUint64(data, uint64(validUntil))
	data = binary.LittleEndian.AppendUint32(data, commitFreqMs)
	return data
}
