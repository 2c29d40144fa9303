package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/obscura-markets/darkpool/params"
	"github.com/obscura-markets/darkpool/pkg/client"
	"github.com/obscura-markets/darkpool/pkg/keys"
	"github.com/obscura-markets/darkpool/pkg/ledger"
	"github.com/obscura-markets/darkpool/pkg/util"
)

var (
	// Global flags
	envFile    string
	walletFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "darkpool",
	Short: "darkpool - confidential order lifecycle client",
	Long: `darkpool drives the order lifecycle of a confidential matching venue:
initialize orderbooks, place and delegate orders, cancel, and settle
matches. Account addresses are derived deterministically from seeds, so
every command recomputes the addresses it needs instead of storing them.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to .env file (defaults to process env)")
	rootCmd.PersistentFlags().StringVar(&walletFile, "wallet", "data/wallet.key", "path to the wallet key file")
}

// session bundles everything a command needs against the local deployment.
type session struct {
	cfg    params.Config
	ledger *ledger.Ledger
	client *client.Client
	close  func()
}

// openSession loads config, opens the local store, and connects a client
// with the configured wallet. Callers must invoke close when done.
func openSession() (*session, error) {
	cfg := params.LoadFromEnv(envFile)

	wallet, err := keys.Load(walletFile)
	if err != nil {
		return nil, fmt.Errorf("load wallet %s (run 'darkpool keygen' first): %w", walletFile, err)
	}

	logger, err := util.NewLogger()
	if err != nil {
		return nil, err
	}

	store, err := ledger.NewStore(cfg.Node.DBPath)
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("open store %s: %w", cfg.Node.DBPath, err)
	}

	led, err := ledger.New(store, cfg.Program, util.RealClock{}, logger.Sugar())
	if err != nil {
		store.Close()
		logger.Sync()
		return nil, err
	}

	c, err := client.New(cfg, led, wallet, logger.Sugar())
	if err != nil {
		store.Close()
		logger.Sync()
		return nil, err
	}

	return &session{
		cfg:    cfg,
		ledger: led,
		client: c,
		close: func() {
			store.Close()
			logger.Sync()
		},
	}, nil
}

// printJSON renders a command result for both humans and scripts.
func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
