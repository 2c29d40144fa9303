package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/obscura-markets/darkpool/pkg/client"
)

// orderCmd groups order lifecycle operations
var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Order lifecycle commands",
	Long:  `Place, delegate, cancel, and inspect orders owned by the configured wallet.`,
}

var (
	placeMarket string
	placeID     int64
	placeSide   string
	placeAmount int64
	placePrice  int64
)

var orderPlaceCmd = &cobra.Command{
	Use:   "place",
	Short: "Anchor a new order on the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		res, err := s.client.PlaceOrder(cmd.Context(), client.PlaceOrderRequest{
			Market:  placeMarket,
			OrderID: placeID,
			Side:    placeSide,
			Amount:  placeAmount,
			Price:   placePrice,
		})
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var (
	delegateID       int64
	delegateValidFor time.Duration
	delegateCommitMs int64
)

var orderDelegateCmd = &cobra.Command{
	Use:   "delegate",
	Short: "Hand an order's mutable state to the TEE",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		if delegateID < 1 {
			return fmt.Errorf("--id is required")
		}
		orderAddr, _, err := s.client.Deriver().OrderAddress(s.client.Identity(), uint64(delegateID))
		if err != nil {
			return err
		}

		res, err := s.client.DelegateOrder(cmd.Context(), client.DelegateOrderRequest{
			Order:        orderAddr.String(),
			OrderID:      delegateID,
			ValidUntil:   time.Now().Add(delegateValidFor).Unix(),
			CommitFreqMs: delegateCommitMs,
		})
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var cancelID int64

var orderCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel one of your orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		txid, err := s.client.CancelOrder(cmd.Context(), cancelID)
		if err != nil {
			return err
		}
		return printJSON(map[string]string{"status": "cancelled", "tx": string(txid)})
	},
}

var statusID int64

var orderStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the lifecycle state of one of your orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		order, addr, err := s.client.OrderStatus(cmd.Context(), statusID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("order %d does not exist for owner %s", statusID, s.client.Identity())
		}
		return printJSON(map[string]interface{}{
			"address": addr.String(),
			"order":   order,
		})
	},
}

func init() {
	orderPlaceCmd.Flags().StringVar(&placeMarket, "market", "", "market identifier (base58)")
	orderPlaceCmd.Flags().Int64Var(&placeID, "id", 0, "client-chosen order id (>= 1)")
	orderPlaceCmd.Flags().StringVar(&placeSide, "side", "", "buy or sell")
	orderPlaceCmd.Flags().Int64Var(&placeAmount, "amount", 0, "order quantity in base units")
	orderPlaceCmd.Flags().Int64Var(&placePrice, "price", 0, "limit price in quote units")
	orderPlaceCmd.MarkFlagRequired("market")
	orderPlaceCmd.MarkFlagRequired("id")
	orderPlaceCmd.MarkFlagRequired("side")
	orderPlaceCmd.MarkFlagRequired("amount")
	orderPlaceCmd.MarkFlagRequired("price")

	orderDelegateCmd.Flags().Int64Var(&delegateID, "id", 0, "order id to delegate")
	orderDelegateCmd.Flags().DurationVar(&delegateValidFor, "valid-for", time.Hour, "delegation lifetime from now")
	orderDelegateCmd.Flags().Int64Var(&delegateCommitMs, "commit-freq-ms", 1000, "checkpoint cadence in milliseconds")
	orderDelegateCmd.MarkFlagRequired("id")

	orderCancelCmd.Flags().Int64Var(&cancelID, "id", 0, "order id to cancel")
	orderCancelCmd.MarkFlagRequired("id")

	orderStatusCmd.Flags().Int64Var(&statusID, "id", 0, "order id to look up")
	orderStatusCmd.MarkFlagRequired("id")

	orderCmd.AddCommand(orderPlaceCmd, orderDelegateCmd, orderCancelCmd, orderStatusCmd)
	rootCmd.AddCommand(orderCmd)
}
