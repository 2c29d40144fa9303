package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/obscura-markets/darkpool/params"
	"github.com/obscura-markets/darkpool/pkg/keys"
	"github.com/obscura-markets/darkpool/pkg/pda"
	"github.com/obscura-markets/darkpool/pkg/tx"
	"github.com/obscura-markets/darkpool/pkg/util"
)

type fixture struct {
	ledger  *Ledger
	deriver *pda.Deriver
	clock   *util.ManualClock

	authority *keys.Wallet
	alice     *keys.Wallet
	bob       *keys.Wallet

	market    pda.Address
	orderbook pda.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := NewMemStore()
	if err != nil {
		t.Fatalf("mem store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := params.Default().Program
	clock := util.NewManualClock(time.Unix(1_800_000_000, 0))
	l, err := New(store, cfg, clock, nil)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	deriver, err := pda.NewDeriver(cfg.DarkpoolID, cfg.DelegationID)
	if err != nil {
		t.Fatalf("deriver: %v", err)
	}

	f := &fixture{ledger: l, deriver: deriver, clock: clock}
	for _, w := range []**keys.Wallet{&f.authority, &f.alice, &f.bob} {
		if *w, err = keys.Generate(); err != nil {
			t.Fatalf("wallet: %v", err)
		}
	}

	f.market = f.authority.Identity() // any stable 32-byte id works as a market
	f.orderbook, _, err = deriver.OrderbookAddress(f.market)
	if err != nil {
		t.Fatalf("orderbook addr: %v", err)
	}
	return f
}

func (f *fixture) initOrderbook(t *testing.T) {
	t.Helper()
	ins := tx.InitializeOrderbook(f.deriver.Program, f.orderbook, f.authority.Identity(), f.market)
	if _, err := f.ledger.Submit(context.Background(), ins, f.authority); err != nil {
		t.Fatalf("initialize orderbook: %v", err)
	}
}

func (f *fixture) place(t *testing.T, w *keys.Wallet, id uint64, side tx.Side, amount, price uint64) pda.Address {
	t.Helper()
	addr, err := f.tryPlace(w, id, side, amount, price)
	if err != nil {
		t.Fatalf("place order %d: %v", id, err)
	}
	return addr
}

func (f *fixture) tryPlace(w *keys.Wallet, id uint64, side tx.Side, amount, price uint64) (pda.Address, error) {
	orderAddr, _, err := f.deriver.OrderAddress(w.Identity(), id)
	if err != nil {
		return pda.Address{}, err
	}
	ins := tx.PlaceOrder(f.deriver.Program, orderAddr, f.orderbook, w.Identity(), id, side, amount, price)
	_, err = f.ledger.Submit(context.Background(), ins, w)
	return orderAddr, err
}

func (f *fixture) delegate(t *testing.T, w *keys.Wallet, orderAddr pda.Address, id uint64) {
	t.Helper()
	if err := f.tryDelegate(w, orderAddr, id); err != nil {
		t.Fatalf("delegate order %d: %v", id, err)
	}
}

func (f *fixture) tryDelegate(w *keys.Wallet, orderAddr pda.Address, id uint64) error {
	deleg, err := f.deriver.DelegationAccountsFor(orderAddr)
	if err != nil {
		return err
	}
	ins := tx.DelegateOrder(f.deriver.Program, orderAddr, w.Identity(), deleg,
		f.deriver.Delegation, id, f.clock.Now().Unix()+3600, 1000)
	_, err = f.ledger.Submit(context.Background(), ins, w)
	return err
}

func (f *fixture) tryMatch(w *keys.Wallet, tradeID uint64, buyAddr, sellAddr pda.Address) error {
	tradeAddr, _, err := f.deriver.TradeAddress(tradeID)
	if err != nil {
		return err
	}
	ins := tx.MatchOrders(f.deriver.Program, tradeAddr, buyAddr, sellAddr, f.orderbook, w.Identity(), tradeID)
	_, err = f.ledger.Submit(context.Background(), ins, w)
	return err
}

func (f *fixture) orderStatus(t *testing.T, addr pda.Address) tx.OrderStatus {
	t.Helper()
	acc, err := f.ledger.Account(context.Background(), addr)
	if err != nil || acc == nil {
		t.Fatalf("load order %s: acc=%v err=%v", addr, acc, err)
	}
	var o tx.Order
	if err := acc.DecodeInto(&o); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	return o.Status
}

func TestInitializeOrderbookOnce(t *testing.T) {
	f := newFixture(t)
	f.initOrderbook(t)

	// Re-initialization fails, it is not a no-op.
	ins := tx.InitializeOrderbook(f.deriver.Program, f.orderbook, f.authority.Identity(), f.market)
	_, err := f.ledger.Submit(context.Background(), ins, f.authority)
	if !errors.Is(err, tx.ErrAccountExists) {
		t.Fatalf("second init: got %v, want account exists", err)
	}
}

func TestPlaceOrderRules(t *testing.T) {
	f := newFixture(t)
	f.initOrderbook(t)

	f.place(t, f.alice, 1001, tx.Buy, 50, 20)

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{
			name:    "duplicate id same owner",
			run:     func() error { _, err := f.tryPlace(f.alice, 1001, tx.Buy, 10, 10); return err },
			wantErr: tx.ErrAccountExists,
		},
		{
			name:    "zero amount",
			run:     func() error { _, err := f.tryPlace(f.alice, 1002, tx.Buy, 0, 10); return err },
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "zero price",
			run:     func() error { _, err := f.tryPlace(f.alice, 1002, tx.Buy, 10, 0); return err },
			wantErr: ErrInvalidPrice,
		},
		{
			name:    "same id different owner is fine",
			run:     func() error { _, err := f.tryPlace(f.bob, 1001, tx.Sell, 50, 20); return err },
			wantErr: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("got %v, want success", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPlaceOrderForgedAddressRejected(t *testing.T) {
	f := newFixture(t)
	f.initOrderbook(t)

	// Address derived for a different id must not be accepted for this one.
	forged, _, err := f.deriver.OrderAddress(f.alice.Identity(), 999)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	ins := tx.PlaceOrder(f.deriver.Program, forged, f.orderbook, f.alice.Identity(), 1001, tx.Buy, 50, 20)
	if _, err := f.ledger.Submit(context.Background(), ins, f.alice); !errors.Is(err, ErrAddressMismatch) {
		t.Fatalf("got %v, want address mismatch", err)
	}
}

func TestDelegateLifecycle(t *testing.T) {
	f := newFixture(t)
	f.initOrderbook(t)

	orderAddr := f.place(t, f.alice, 1001, tx.Buy, 50, 20)

	// Delegating someone else's order fails before any state change.
	if err := f.tryDelegate(f.bob, orderAddr, 1001); !errors.Is(err, ErrMissingSignature) && !errors.Is(err, ErrNotOwner) {
		t.Fatalf("foreign delegate: got %v", err)
	}

	f.delegate(t, f.alice, orderAddr, 1001)
	if got := f.orderStatus(t, orderAddr); got != tx.StatusDelegated {
		t.Fatalf("status = %s, want delegated", got)
	}

	// Delegation sub-accounts now exist.
	deleg, _ := f.deriver.DelegationAccountsFor(orderAddr)
	for _, addr := range []pda.Address{deleg.Buffer, deleg.Record, deleg.Metadata} {
		acc, err := f.ledger.Account(context.Background(), addr)
		if err != nil || acc == nil {
			t.Fatalf("delegation account %s missing: %v", addr, err)
		}
	}

	// Delegating twice without cancel/match fails.
	if err := f.tryDelegate(f.alice, orderAddr, 1001); !errors.Is(err, ErrOrderNotOpen) {
		t.Fatalf("double delegate: got %v, want order not open", err)
	}
}

func TestDelegateBeforePlaceFails(t *testing.T) {
	f := newFixture(t)
	f.initOrderbook(t)

	orderAddr, _, _ := f.deriver.OrderAddress(f.alice.Identity(), 4242)
	if err := f.tryDelegate(f.alice, orderAddr, 4242); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("got %v, want account not found", err)
	}
}

func TestCancelClosesDelegation(t *testing.T) {
	f := newFixture(t)
	f.initOrderbook(t)

	orderAddr := f.place(t, f.alice, 7, tx.Sell, 10, 5)
	f.delegate(t, f.alice, orderAddr, 7)

	ins := tx.CancelOrder(f.deriver.Program, orderAddr, f.alice.Identity(), 7)
	if _, err := f.ledger.Submit(context.Background(), ins, f.alice); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.orderStatus(t, orderAddr); got != tx.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got)
	}

	deleg, _ := f.deriver.DelegationAccountsFor(orderAddr)
	if acc, _ := f.ledger.Account(context.Background(), deleg.Record); acc != nil {
		t.Fatal("delegation record survived cancellation")
	}

	// Cancelled is terminal.
	if _, err := f.ledger.Submit(context.Background(), ins, f.alice); !errors.Is(err, ErrOrderTerminal) {
		t.Fatalf("cancel after cancel: got %v, want terminal", err)
	}
}

func TestUnflaggedAuthorizerRejected(t *testing.T) {
	f := newFixture(t)
	f.initOrderbook(t)

	orderAddr := f.place(t, f.alice, 1001, tx.Buy, 50, 20)

	// A third party plants alice's address at the owner position without
	// the signer flag. The cancel must fail and leave the order untouched.
	ins := tx.CancelOrder(f.deriver.Program, orderAddr, f.alice.Identity(), 1001)
	ins.Accounts[1].IsSigner = false
	if _, err := f.ledger.Submit(context.Background(), ins, f.bob); !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("unflagged owner cancel: got %v, want missing signature", err)
	}
	if got := f.orderStatus(t, orderAddr); got != tx.StatusPlaced {
		t.Fatalf("status = %s, want placed", got)
	}

	// Same trick against market control.
	pause := tx.PauseMarket(f.deriver.Program, f.orderbook, f.authority.Identity())
	pause.Accounts[1].IsSigner = false
	if _, err := f.ledger.Submit(context.Background(), pause, f.alice); !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("unflagged authority pause: got %v, want missing signature", err)
	}
	if _, err := f.tryPlace(f.alice, 2, tx.Buy, 5, 5); err != nil {
		t.Fatalf("market wrongly paused: %v", err)
	}
}

func TestPauseGatesPlacement(t *testing.T) {
	f := newFixture(t)
	f.initOrderbook(t)

	pause := tx.PauseMarket(f.deriver.Program, f.orderbook, f.authority.Identity())
	resume := tx.ResumeMarket(f.deriver.Program, f.orderbook, f.authority.Identity())

	// Only the authority may pause.
	if _, err := f.ledger.Submit(context.Background(), tx.PauseMarket(f.deriver.Program, f.orderbook, f.alice.Identity()), f.alice); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("foreign pause: got %v, want unauthorized", err)
	}

	if _, err := f.ledger.Submit(context.Background(), pause, f.authority); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := f.tryPlace(f.alice, 1, tx.Buy, 5, 5); !errors.Is(err, ErrMarketPaused) {
		t.Fatalf("place while paused: got %v, want market paused", err)
	}

	// Pausing a paused market is a state error, not a no-op.
	if _, err := f.ledger.Submit(context.Background(), pause, f.authority); !errors.Is(err, ErrInvalidMarketState) {
		t.Fatalf("double pause: got %v, want invalid market state", err)
	}

	if _, err := f.ledger.Submit(context.Background(), resume, f.authority); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if _, err := f.tryPlace(f.alice, 1, tx.Buy, 5, 5); err != nil {
		t.Fatalf("place after resume: %v", err)
	}
}

func TestMatchOrders(t *testing.T) {
	f := newFixture(t)
	f.initOrderbook(t)

	buyAddr := f.place(t, f.alice, 1001, tx.Buy, 50, 20)
	sellAddr := f.place(t, f.bob, 2002, tx.Sell, 50, 20)

	// Matching requires delegation first.
	if err := f.tryMatch(f.authority, 1, buyAddr, sellAddr); !errors.Is(err, ErrOrderNotDelegated) {
		t.Fatalf("undelegated match: got %v, want not delegated", err)
	}

	f.delegate(t, f.alice, buyAddr, 1001)
	f.delegate(t, f.bob, sellAddr, 2002)

	// Same-side pair is a hard failure.
	if err := f.tryMatch(f.authority, 1, buyAddr, buyAddr); !errors.Is(err, ErrSideMismatch) {
		t.Fatalf("buy/buy match: got %v, want side mismatch", err)
	}

	if err := f.tryMatch(f.authority, 1, buyAddr, sellAddr); err != nil {
		t.Fatalf("match: %v", err)
	}

	for _, addr := range []pda.Address{buyAddr, sellAddr} {
		if got := f.orderStatus(t, addr); got != tx.StatusMatched {
			t.Fatalf("order %s status = %s, want matched", addr, got)
		}
	}

	tradeAddr, _, _ := f.deriver.TradeAddress(1)
	acc, err := f.ledger.Account(context.Background(), tradeAddr)
	if err != nil || acc == nil {
		t.Fatalf("trade result missing: %v", err)
	}
	var tr tx.TradeResult
	if err := acc.DecodeInto(&tr); err != nil {
		t.Fatalf("decode trade: %v", err)
	}
	if tr.Amount != 50 || tr.Price != 20 {
		t.Fatalf("trade = %d@%d, want 50@20", tr.Amount, tr.Price)
	}
	if tr.Buyer != f.alice.Identity() || tr.Seller != f.bob.Identity() {
		t.Fatal("trade parties recorded incorrectly")
	}

	// A trade id settles exactly once.
	if err := f.tryMatch(f.authority, 1, buyAddr, sellAddr); !errors.Is(err, tx.ErrAccountExists) {
		t.Fatalf("replayed trade id: got %v, want account exists", err)
	}
}

func TestMatchPriceRules(t *testing.T) {
	f := newFixture(t)
	f.initOrderbook(t)

	// Buy at 10 cannot cross a sell at 20.
	buyAddr := f.place(t, f.alice, 1, tx.Buy, 50, 10)
	sellAddr := f.place(t, f.bob, 2, tx.Sell, 50, 20)
	f.delegate(t, f.alice, buyAddr, 1)
	f.delegate(t, f.bob, sellAddr, 2)

	if err := f.tryMatch(f.authority, 9, buyAddr, sellAddr); !errors.Is(err, ErrPriceMismatch) {
		t.Fatalf("got %v, want price mismatch", err)
	}

	// Crossed prices settle at the midpoint.
	buy2 := f.place(t, f.alice, 3, tx.Buy, 30, 24)
	sell2 := f.place(t, f.bob, 4, tx.Sell, 60, 20)
	f.delegate(t, f.alice, buy2, 3)
	f.delegate(t, f.bob, sell2, 4)

	if err := f.tryMatch(f.authority, 9, buy2, sell2); err != nil {
		t.Fatalf("match: %v", err)
	}
	tradeAddr, _, _ := f.deriver.TradeAddress(9)
	acc, _ := f.ledger.Account(context.Background(), tradeAddr)
	var tr tx.TradeResult
	if err := acc.DecodeInto(&tr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tr.Price != 22 {
		t.Fatalf("execution price = %d, want midpoint 22", tr.Price)
	}
	if tr.Amount != 30 {
		t.Fatalf("amount = %d, want min remaining 30", tr.Amount)
	}
}

func TestEventsEmitted(t *testing.T) {
	f := newFixture(t)

	var kinds []string
	f.ledger.Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })

	f.initOrderbook(t)
	orderAddr := f.place(t, f.alice, 1, tx.Buy, 5, 5)
	f.delegate(t, f.alice, orderAddr, 1)

	want := []string{EventOrderbookInitialized, EventOrderPlaced, EventOrderDelegated}
	if len(kinds) != len(want) {
		t.Fatalf("got %d events (%v), want %d", len(kinds), kinds, len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
}
