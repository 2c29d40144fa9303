package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// orderbookCmd groups market control operations
var orderbookCmd = &cobra.Command{
	Use:   "orderbook",
	Short: "Orderbook control commands",
	Long:  `Initialize, inspect, pause, and resume market orderbooks.`,
}

var orderbookInitCmd = &cobra.Command{
	Use:   "init <market>",
	Short: "Initialize the orderbook for a market",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		res, err := s.client.InitializeOrderbook(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var orderbookShowCmd = &cobra.Command{
	Use:   "show <market>",
	Short: "Show a market's orderbook state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		ob, err := s.client.Orderbook(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if ob == nil {
			return fmt.Errorf("orderbook for market %s not initialized", args[0])
		}
		return printJSON(ob)
	},
}

var orderbookPauseCmd = &cobra.Command{
	Use:   "pause <market>",
	Short: "Pause a market (authority only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		txid, err := s.client.PauseMarket(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(map[string]string{"status": "paused", "tx": string(txid)})
	},
}

var orderbookResumeCmd = &cobra.Command{
	Use:   "resume <market>",
	Short: "Resume a paused market (authority only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		txid, err := s.client.ResumeMarket(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(map[string]string{"status": "resumed", "tx": string(txid)})
	},
}

func init() {
	orderbookCmd.AddCommand(orderbookInitCmd, orderbookShowCmd, orderbookPauseCmd, orderbookResumeCmd)
	rootCmd.AddCommand(orderbookCmd)
}
