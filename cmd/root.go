package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "dexsim",
	Short: "One-shot DEX batch execution simulator",
	Long: `dexsim replays a batch of swaps and signed limit orders against a
forked blockchain snapshot and reports what each operation did.

It forks the upstream chain with anvil one block before the batch's
source block, resolves each operation against live pool state, submits
it, and classifies the outcome as confirmed, reverted or failed.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
