// Package cmd implements the lobenginectl command tree: a small cobra CLI
// that drives an in-process matching engine for demonstration and manual
// metrics inspection.
package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the lobenginectl command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "lobenginectl",
		Short:         "Run and inspect an in-process limit order book engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().String("symbol", "BTC-USD", "symbol to register on the engine")

	rootCmd.AddCommand(
		NewRunCmd(),
		NewServeCmd(),
	)
	return rootCmd
}
