package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/obscura-markets/darkpool/pkg/keys"
)

var keygenForce bool

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a wallet key file",
	Long: `Generates an ed25519 wallet and writes the seed to the --wallet path.
The derived public key is the owner identity used in address derivation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(walletFile); err == nil && !keygenForce {
			return fmt.Errorf("wallet %s already exists (use --force to overwrite)", walletFile)
		}

		wallet, err := keys.Generate()
		if err != nil {
			return err
		}
		if err := wallet.Save(walletFile); err != nil {
			return err
		}

		return printJSON(map[string]string{
			"wallet":   walletFile,
			"identity": wallet.Identity().String(),
		})
	},
}

func init() {
	keygenCmd.Flags().BoolVar(&keygenForce, "force", false, "overwrite an existing wallet file")
	rootCmd.AddCommand(keygenCmd)
}
