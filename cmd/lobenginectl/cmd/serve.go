package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"

	"github.com/openalpha/lobengine/metrics"
)

// NewServeCmd runs the demo scenario on a timer while exposing a Prometheus
// scrape endpoint, so the metrics wired through the engine can be inspected
// with a browser or curl rather than read back out of the event log.
func NewServeCmd() *cobra.Command {
	var addr string
	var period time.Duration

	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve Prometheus metrics while replaying the demo scenario on a timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol, err := cmd.Flags().GetString("symbol")
			if err != nil {
				return err
			}
			logger := log.NewLogger(os.Stdout)
			collector := metrics.GetCollector()
			facade := newDemoFacade(symbol, logger, collector)

			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			server := &http.Server{Addr: addr, Handler: mux}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			go func() {
				ticker := time.NewTicker(period)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						runScenarios(facade, symbol)
						publishDepth(facade, collector, symbol)
					}
				}
			}()

			logger.Info("serving metrics", "addr", addr, "symbol", symbol)
			go func() {
				<-ctx.Done()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				_ = server.Shutdown(shutdownCtx)
			}()

			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}

	c.Flags().StringVar(&addr, "addr", ":9090", "address to serve /metrics on")
	c.Flags().DurationVar(&period, "period", 5*time.Second, "how often to replay the demo scenario")
	return c
}
