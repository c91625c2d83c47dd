package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ledgersyncd",
	Short: "Acquires ledgers from peers and serves them back",
	Long: `ledgersyncd reconstructs ledgers it hears about from connected peers:
fetching each one's header and then its transaction and account-state
trees node by node, validating every byte against the hash its parent
declared for it, and serving the same content back to whichever peers
ask it for ledgers it already has.`,
}

func init() {
	rootCmd.AddCommand(startCmd)
}
