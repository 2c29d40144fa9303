package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/obscura-markets/darkpool/params"
	"github.com/obscura-markets/darkpool/pkg/keys"
	"github.com/obscura-markets/darkpool/pkg/pda"
	"github.com/obscura-markets/darkpool/pkg/tx"
	"github.com/obscura-markets/darkpool/pkg/util"
)

// Ledger is an in-process implementation of the submission boundary that
// enforces the darkpool program's rules. One mutex serializes every
// submission, which gives the same guarantee the real ledger gives through
// atomic account creation: two conflicting operations cannot both succeed.
type Ledger struct {
	mu    sync.Mutex
	store *Store
	clock util.Clock
	log   *zap.SugaredLogger

	program    pda.Address
	delegation pda.Address
	tee        pda.Address
	deriver    *pda.Deriver

	sink EventSink
}

// New opens a ledger over the given store with the configured program
// namespaces.
func New(store *Store, cfg params.Program, clock util.Clock, log *zap.SugaredLogger) (*Ledger, error) {
	deriver, err := pda.NewDeriver(cfg.DarkpoolID, cfg.DelegationID)
	if err != nil {
		return nil, err
	}
	tee, err := pda.ParseAddress(cfg.TEEValidator)
	if err != nil {
		return nil, fmt.Errorf("tee validator: %w", err)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Ledger{
		store:      store,
		clock:      clock,
		log:        log,
		program:    deriver.Program,
		delegation: deriver.Delegation,
		tee:        tee,
		deriver:    deriver,
	}, nil
}

// Subscribe installs the event sink. At most one; the API hub fans out.
func (l *Ledger) Subscribe(sink EventSink) { l.sink = sink }

func (l *Ledger) emit(ev Event) {
	if l.sink != nil {
		l.sink(ev)
	}
}

// Account implements tx.AccountReader.
func (l *Ledger) Account(_ context.Context, addr pda.Address) (*tx.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.LoadAccount(addr)
}

// Submit implements tx.Submitter. The instruction either commits fully or
// leaves no trace; there is no partial application.
func (l *Ledger) Submit(ctx context.Context, ins tx.Instruction, signer tx.Signer) (tx.TxID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if ins.ProgramID != l.program {
		return "", fmt.Errorf("%w: %s", ErrUnknownProgram, ins.ProgramID)
	}

	method, err := ins.Method()
	if err != nil {
		return "", err
	}

	if len(ins.Accounts) < minAccounts[method] {
		return "", fmt.Errorf("%s: expected at least %d accounts, got %d", method, minAccounts[method], len(ins.Accounts))
	}
	if err := l.verifySigners(method, ins, signer); err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	txid, err := l.nextTxID(ins)
	if err != nil {
		return "", err
	}

	switch method {
	case tx.OpInitializeOrderbook:
		err = l.initializeOrderbook(ins, txid)
	case tx.OpPlaceOrder:
		err = l.placeOrder(ins, txid)
	case tx.OpDelegateOrder:
		err = l.delegateOrder(ins, txid)
	case tx.OpCancelOrder:
		err = l.cancelOrder(ins, txid)
	case tx.OpPauseMarket:
		err = l.setPaused(ins, txid, true)
	case tx.OpResumeMarket:
		err = l.setPaused(ins, txid, false)
	case tx.OpMatchOrders:
		err = l.matchOrders(ins, txid)
	default:
		err = fmt.Errorf("unhandled method %s", method)
	}
	if err != nil {
		l.log.Debugw("instruction_rejected", "method", method, "err", err)
		return "", err
	}
	l.log.Infow("instruction_committed", "method", method, "tx", txid)
	return txid, nil
}

// minAccounts is the shortest legal account list per operation, auxiliary
// program accounts included.
var minAccounts = map[string]int{
	tx.OpInitializeOrderbook: 2,
	tx.OpPlaceOrder:          3,
	tx.OpDelegateOrder:       5,
	tx.OpCancelOrder:         2,
	tx.OpPauseMarket:         2,
	tx.OpResumeMarket:        2,
	tx.OpMatchOrders:         5,
}

// authorizingAccount is the position whose holder must sign each
// operation: the owner for order operations, the authority for market
// control, the matcher for settlement.
var authorizingAccount = map[string]int{
	tx.OpInitializeOrderbook: 1,
	tx.OpPlaceOrder:          2,
	tx.OpDelegateOrder:       1,
	tx.OpCancelOrder:         1,
	tx.OpPauseMarket:         1,
	tx.OpResumeMarket:        1,
	tx.OpMatchOrders:         4,
}

// verifySigners checks that the signature covers the canonical message,
// that every account flagged as a signer is the submitting identity, and
// that the operation's authorizing position is a flagged signer. Without
// the last check a third party could plant the victim's address at the
// owner/authority position unflagged and act on their behalf.
func (l *Ledger) verifySigners(method string, ins tx.Instruction, signer tx.Signer) error {
	if signer == nil {
		return ErrMissingSignature
	}
	sig, err := signer.Sign(ins.Message())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingSignature, err)
	}
	id := signer.Identity()
	if !keys.Verify(id, ins.Message(), sig) {
		return ErrMissingSignature
	}
	for _, m := range ins.Accounts {
		if m.IsSigner && m.Address != id {
			return fmt.Errorf("%w: account %s requires a signature", ErrMissingSignature, m.Address)
		}
	}
	auth := ins.Accounts[authorizingAccount[method]]
	if !auth.IsSigner || auth.Address != id {
		return fmt.Errorf("%w: %s must be signed by %s", ErrMissingSignature, method, auth.Address)
	}
	return nil
}

func (l *Ledger) nextTxID(ins tx.Instruction) (tx.TxID, error) {
	seq, err := l.store.NextTxSeq()
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write(ins.Message())
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seq)
	h.Write(buf[:])
	return tx.TxID(base58.Encode(h.Sum(nil))), nil
}

// ==============================
// Account helpers
// ==============================

func (l *Ledger) createAccount(addr, owner pda.Address, payload any) error {
	existing, err := l.store.LoadAccount(addr)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrAccountExists, addr)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return l.store.SaveAccount(&tx.Account{Address: addr, Owner: owner, Data: data})
}

func (l *Ledger) updateAccount(addr, owner pda.Address, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return l.store.SaveAccount(&tx.Account{Address: addr, Owner: owner, Data: data})
}

func (l *Ledger) loadOrderbook(addr pda.Address) (*tx.Orderbook, error) {
	acc, err := l.store.LoadAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: orderbook %s", ErrAccountNotFound, addr)
	}
	var ob tx.Orderbook
	if err := acc.DecodeInto(&ob); err != nil {
		return nil, err
	}
	return &ob, nil
}

func (l *Ledger) loadOrder(addr pda.Address) (*tx.Order, error) {
	acc, err := l.store.LoadAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: order %s", ErrAccountNotFound, addr)
	}
	var o tx.Order
	if err := acc.DecodeInto(&o); err != nil {
		return nil, err
	}
	return &o, nil
}

// ==============================
// Instruction handlers
// ==============================

func (l *Ledger) initializeOrderbook(ins tx.Instruction, txid tx.TxID) error {
	args, err := tx.ParseInitializeOrderbookArgs(ins.Data)
	if err != nil {
		return err
	}
	orderbookAddr := ins.Accounts[0].Address
	authority := ins.Accounts[1].Address

	expected, bump, err := l.deriver.OrderbookAddress(args.Market)
	if err != nil {
		return err
	}
	if orderbookAddr != expected {
		return fmt.Errorf("%w: orderbook for market %s", ErrAddressMismatch, args.Market)
	}

	// Re-initialization must fail loudly: a second init against a live
	// orderbook usually means authority confusion, not a harmless retry.
	if err := l.createAccount(orderbookAddr, l.program, tx.Orderbook{
		Market:    args.Market,
		Authority: authority,
		Bump:      bump,
	}); err != nil {
		return err
	}

	l.emit(Event{Kind: EventOrderbookInitialized, TxID: txid, Market: args.Market, Owner: authority})
	return nil
}

func (l *Ledger) placeOrder(ins tx.Instruction, txid tx.TxID) error {
	args, err := tx.ParsePlaceOrderArgs(ins.Data)
	if err != nil {
		return err
	}
	orderAddr := ins.Accounts[0].Address
	orderbookAddr := ins.Accounts[1].Address
	owner := ins.Accounts[2].Address

	if args.Amount == 0 {
		return ErrInvalidAmount
	}
	if args.Price == 0 {
		return ErrInvalidPrice
	}

	ob, err := l.loadOrderbook(orderbookAddr)
	if err != nil {
		return err
	}
	if ob.Paused {
		return ErrMarketPaused
	}

	expected, bump, err := l.deriver.OrderAddress(owner, args.OrderID)
	if err != nil {
		return err
	}
	if orderAddr != expected {
		return fmt.Errorf("%w: order %d for owner %s", ErrAddressMismatch, args.OrderID, owner)
	}

	if err := l.createAccount(orderAddr, l.program, tx.Order{
		Owner:     owner,
		OrderID:   args.OrderID,
		Side:      args.Side,
		Amount:    args.Amount,
		Price:     args.Price,
		Status:    tx.StatusPlaced,
		CreatedAt: l.clock.Now().Unix(),
		Bump:      bump,
	}); err != nil {
		return err
	}

	ob.OrderCount++
	if err := l.updateAccount(orderbookAddr, l.program, ob); err != nil {
		return err
	}

	l.emit(Event{
		Kind: EventOrderPlaced, TxID: txid, Market: ob.Market,
		Order: orderAddr, Owner: owner, OrderID: args.OrderID,
		Side: args.Side.String(), Amount: args.Amount, Price: args.Price,
	})
	return nil
}

func (l *Ledger) delegateOrder(ins tx.Instruction, txid tx.TxID) error {
	args, err := tx.ParseDelegateOrderArgs(ins.Data)
	if err != nil {
		return err
	}
	orderAddr := ins.Accounts[0].Address
	owner := ins.Accounts[1].Address

	order, err := l.loadOrder(orderAddr)
	if err != nil {
		return err
	}
	if order.Owner != owner {
		return ErrNotOwner
	}
	if order.OrderID != args.OrderID {
		return fmt.Errorf("%w: order id %d", ErrAddressMismatch, args.OrderID)
	}
	if order.Status != tx.StatusPlaced {
		return fmt.Errorf("%w (status %s)", ErrOrderNotOpen, order.Status)
	}

	deleg, err := l.deriver.DelegationAccountsFor(orderAddr)
	if err != nil {
		return err
	}
	if deleg.Buffer != ins.Accounts[2].Address ||
		deleg.Record != ins.Accounts[3].Address ||
		deleg.Metadata != ins.Accounts[4].Address {
		return fmt.Errorf("%w: delegation sub-accounts", ErrAddressMismatch)
	}

	record := tx.DelegationRecord{
		Order:        orderAddr,
		Validator:    l.tee,
		ValidUntil:   args.ValidUntil,
		CommitFreqMs: args.CommitFreqMs,
	}
	handoff := tx.DelegateHandoffData(l.tee, args.ValidUntil, args.CommitFreqMs)

	if err := l.createAccount(deleg.Buffer, l.delegation, handoff); err != nil {
		return err
	}
	if err := l.createAccount(deleg.Record, l.delegation, record); err != nil {
		return err
	}
	if err := l.createAccount(deleg.Metadata, l.delegation, record); err != nil {
		return err
	}

	order.Status = tx.StatusDelegated
	order.ValidUntil = args.ValidUntil
	order.CommitFreqMs = args.CommitFreqMs
	if err := l.updateAccount(orderAddr, l.program, order); err != nil {
		return err
	}

	l.emit(Event{
		Kind: EventOrderDelegated, TxID: txid,
		Order: orderAddr, Owner: owner, OrderID: order.OrderID, TEE: l.tee,
	})
	return nil
}

func (l *Ledger) cancelOrder(ins tx.Instruction, txid tx.TxID) error {
	args, err := tx.ParseCancelOrderArgs(ins.Data)
	if err != nil {
		return err
	}
	orderAddr := ins.Accounts[0].Address
	owner := ins.Accounts[1].Address

	order, err := l.loadOrder(orderAddr)
	if err != nil {
		return err
	}
	if order.Owner != owner {
		return ErrNotOwner
	}
	if order.OrderID != args.OrderID {
		return fmt.Errorf("%w: order id %d", ErrAddressMismatch, args.OrderID)
	}
	if order.Status.Terminal() {
		return fmt.Errorf("%w (status %s)", ErrOrderTerminal, order.Status)
	}

	// A delegated order is pulled back from the TEE: the sub-accounts are
	// closed together with the cancellation.
	if order.Status == tx.StatusDelegated {
		if err := l.closeDelegation(orderAddr); err != nil {
			return err
		}
	}

	order.Status = tx.StatusCancelled
	if err := l.updateAccount(orderAddr, l.program, order); err != nil {
		return err
	}

	l.emit(Event{Kind: EventOrderCancelled, TxID: txid, Order: orderAddr, Owner: owner, OrderID: order.OrderID})
	return nil
}

func (l *Ledger) setPaused(ins tx.Instruction, txid tx.TxID, paused bool) error {
	orderbookAddr := ins.Accounts[0].Address
	authority := ins.Accounts[1].Address

	ob, err := l.loadOrderbook(orderbookAddr)
	if err != nil {
		return err
	}
	if ob.Authority != authority {
		return ErrUnauthorized
	}
	if ob.Paused == paused {
		return fmt.Errorf("%w: already %s", ErrInvalidMarketState, map[bool]string{true: "paused", false: "active"}[paused])
	}

	ob.Paused = paused
	if err := l.updateAccount(orderbookAddr, l.program, ob); err != nil {
		return err
	}

	kind := EventMarketResumed
	if paused {
		kind = EventMarketPaused
	}
	l.emit(Event{Kind: kind, TxID: txid, Market: ob.Market, Owner: authority})
	return nil
}

func (l *Ledger) matchOrders(ins tx.Instruction, txid tx.TxID) error {
	args, err := tx.ParseMatchOrdersArgs(ins.Data)
	if err != nil {
		return err
	}
	tradeAddr := ins.Accounts[0].Address
	buyAddr := ins.Accounts[1].Address
	sellAddr := ins.Accounts[2].Address
	orderbookAddr := ins.Accounts[3].Address

	ob, err := l.loadOrderbook(orderbookAddr)
	if err != nil {
		return err
	}
	if ob.Paused {
		return ErrMarketPaused
	}

	expected, bump, err := l.deriver.TradeAddress(args.TradeID)
	if err != nil {
		return err
	}
	if tradeAddr != expected {
		return fmt.Errorf("%w: trade %d", ErrAddressMismatch, args.TradeID)
	}

	// Replay check comes before any order-state check: a settled trade id
	// must fail with the same discriminant no matter what state the orders
	// have moved to since settlement.
	if existing, err := l.store.LoadAccount(tradeAddr); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("%w: trade %d", ErrAccountExists, args.TradeID)
	}

	buy, err := l.loadOrder(buyAddr)
	if err != nil {
		return err
	}
	sell, err := l.loadOrder(sellAddr)
	if err != nil {
		return err
	}
	if buy.Side != tx.Buy || sell.Side != tx.Sell {
		return ErrSideMismatch
	}
	if buy.Status != tx.StatusDelegated || sell.Status != tx.StatusDelegated {
		return ErrOrderNotDelegated
	}
	if buy.Price < sell.Price {
		return ErrPriceMismatch
	}

	matchAmount := min(buy.Remaining(), sell.Remaining())
	if matchAmount == 0 {
		return ErrNoMatchableAmount
	}
	executionPrice := (buy.Price + sell.Price) / 2

	// Atomic backstop for the replay check above: account creation refuses
	// to overwrite even if a concurrent claim slipped past it.
	if err := l.createAccount(tradeAddr, l.program, tx.TradeResult{
		TradeID:    args.TradeID,
		Buyer:      buy.Owner,
		Seller:     sell.Owner,
		BuyOrder:   buyAddr,
		SellOrder:  sellAddr,
		Amount:     matchAmount,
		Price:      executionPrice,
		ExecutedAt: l.clock.Now().Unix(),
		Bump:       bump,
	}); err != nil {
		return err
	}

	for _, pair := range []struct {
		addr  pda.Address
		order *tx.Order
	}{{buyAddr, buy}, {sellAddr, sell}} {
		pair.order.FilledAmount += matchAmount
		pair.order.Status = tx.StatusMatched
		if err := l.closeDelegation(pair.addr); err != nil {
			return err
		}
		if err := l.updateAccount(pair.addr, l.program, pair.order); err != nil {
			return err
		}
	}

	ob.TradeCount++
	if err := l.updateAccount(orderbookAddr, l.program, ob); err != nil {
		return err
	}

	l.emit(Event{
		Kind: EventTradeExecuted, TxID: txid, Market: ob.Market,
		TradeID: args.TradeID, Amount: matchAmount, Price: executionPrice,
	})
	return nil
}

// closeDelegation removes the three delegation sub-accounts of an order.
func (l *Ledger) closeDelegation(order pda.Address) error {
	deleg, err := l.deriver.DelegationAccountsFor(order)
	if err != nil {
		return err
	}
	for _, addr := range []pda.Address{deleg.Buffer, deleg.Record, deleg.Metadata} {
		if err := l.store.DeleteAccount(addr); err != nil {
			return err
		}
	}
	return nil
}
