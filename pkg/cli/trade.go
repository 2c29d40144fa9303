package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obscura-markets/darkpool/pkg/client"
)

// tradeCmd groups settlement operations
var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Settlement commands",
	Long:  `Submit match claims for delegated counter-orders and inspect settled trades.`,
}

var (
	matchMarket  string
	matchTradeID int64
	matchBuy     string
	matchSell    string
)

var tradeMatchCmd = &cobra.Command{
	Use:   "match",
	Short: "Settle a matched pair of delegated orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		res, err := s.client.MatchOrders(cmd.Context(), client.MatchOrdersRequest{
			Market:    matchMarket,
			TradeID:   matchTradeID,
			BuyOrder:  matchBuy,
			SellOrder: matchSell,
		})
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var showTradeID int64

var tradeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a settled trade record",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		trade, err := s.client.TradeResult(cmd.Context(), showTradeID)
		if err != nil {
			return err
		}
		if trade == nil {
			return fmt.Errorf("trade %d has not been settled", showTradeID)
		}
		return printJSON(trade)
	},
}

func init() {
	tradeMatchCmd.Flags().StringVar(&matchMarket, "market", "", "market identifier (base58)")
	tradeMatchCmd.Flags().Int64Var(&matchTradeID, "trade-id", 0, "trade id to claim (>= 1)")
	tradeMatchCmd.Flags().StringVar(&matchBuy, "buy", "", "buy order account address")
	tradeMatchCmd.Flags().StringVar(&matchSell, "sell", "", "sell order account address")
	tradeMatchCmd.MarkFlagRequired("market")
	tradeMatchCmd.MarkFlagRequired("trade-id")
	tradeMatchCmd.MarkFlagRequired("buy")
	tradeMatchCmd.MarkFlagRequired("sell")

	tradeShowCmd.Flags().Int64Var(&showTradeID, "trade-id", 0, "trade id to look up")
	tradeShowCmd.MarkFlagRequired("trade-id")

	tradeCmd.AddCommand(tradeMatchCmd, tradeShowCmd)
	rootCmd.AddCommand(tradeCmd)
}
