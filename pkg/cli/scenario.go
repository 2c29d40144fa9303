package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/obscura-markets/darkpool/params"
	"github.com/obscura-markets/darkpool/pkg/client"
	"github.com/obscura-markets/darkpool/pkg/keys"
	"github.com/obscura-markets/darkpool/pkg/ledger"
	"github.com/obscura-markets/darkpool/pkg/util"
)

// scenarioCmd runs the full lifecycle demo against a throwaway in-memory
// ledger: init, place, delegate, pause/resume, counter-order, match.
var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Run a full order lifecycle demo in memory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := ledger.NewMemStore()
		if err != nil {
			return err
		}
		defer store.Close()

		cfg := params.LoadFromEnv(envFile)
		led, err := ledger.New(store, cfg.Program, util.RealClock{}, nil)
		if err != nil {
			return err
		}
		led.Subscribe(func(ev ledger.Event) {
			fmt.Printf("event: %-22s tx=%s\n", ev.Kind, ev.TxID)
		})

		newClient := func() (*client.Client, error) {
			w, err := keys.Generate()
			if err != nil {
				return nil, err
			}
			return client.New(cfg, led, w, nil)
		}
		authority, err := newClient()
		if err != nil {
			return err
		}
		alice, err := newClient()
		if err != nil {
			return err
		}
		bob, err := newClient()
		if err != nil {
			return err
		}
		market := authority.Identity().String()

		fmt.Printf("authority: %s\nalice:     %s\nbob:       %s\n\n", authority.Identity(), alice.Identity(), bob.Identity())

		if _, err := authority.InitializeOrderbook(ctx, market); err != nil {
			return err
		}

		buy, err := alice.PlaceOrder(ctx, client.PlaceOrderRequest{
			Market: market, OrderID: 1001, Side: "buy", Amount: 50, Price: 20,
		})
		if err != nil {
			return err
		}
		if _, err := alice.DelegateOrder(ctx, client.DelegateOrderRequest{
			Order: buy.Order.String(), OrderID: 1001,
			ValidUntil: time.Now().Add(time.Hour).Unix(), CommitFreqMs: 1000,
		}); err != nil {
			return err
		}

		// Circuit breaker round trip.
		if _, err := authority.PauseMarket(ctx, market); err != nil {
			return err
		}
		if _, err := bob.PlaceOrder(ctx, client.PlaceOrderRequest{
			Market: market, OrderID: 2002, Side: "sell", Amount: 50, Price: 20,
		}); err == nil {
			return fmt.Errorf("placement on a paused market should have been rejected")
		} else {
			fmt.Printf("paused market rejected placement: %v\n", err)
		}
		if _, err := authority.ResumeMarket(ctx, market); err != nil {
			return err
		}

		sell, err := bob.PlaceOrder(ctx, client.PlaceOrderRequest{
			Market: market, OrderID: 2002, Side: "sell", Amount: 50, Price: 20,
		})
		if err != nil {
			return err
		}
		if _, err := bob.DelegateOrder(ctx, client.DelegateOrderRequest{
			Order: sell.Order.String(), OrderID: 2002,
			ValidUntil: time.Now().Add(time.Hour).Unix(), CommitFreqMs: 1000,
		}); err != nil {
			return err
		}

		matched, err := authority.MatchOrders(ctx, client.MatchOrdersRequest{
			Market: market, TradeID: 1,
			BuyOrder: buy.Order.String(), SellOrder: sell.Order.String(),
		})
		if err != nil {
			return err
		}

		trade, err := authority.TradeResult(ctx, 1)
		if err != nil {
			return err
		}
		fmt.Printf("\nsettled trade %s:\n", matched.TradeResult)
		return printJSON(trade)
	},
}

func init() {
	rootCmd.AddCommand(scenarioCmd)
}
