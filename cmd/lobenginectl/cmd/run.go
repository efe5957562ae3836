package cmd

import (
	"os"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"

	"github.com/openalpha/lobengine/metrics"
)

// NewRunCmd runs the demo scenario once and exits, printing every event to
// stdout as structured log lines.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a scripted sequence of orders against a fresh book and print events",
		RunE: func(c *cobra.Command, args []string) error {
			symbol, err := c.Flags().GetString("symbol")
			if err != nil {
				return err
			}
			logger := log.NewLogger(os.Stdout)
			collector := metrics.GetCollector()
			facade := newDemoFacade(symbol, logger, collector)
			runScenarios(facade, symbol)
			publishDepth(facade, collector, symbol)
			return nil
		},
	}
}
