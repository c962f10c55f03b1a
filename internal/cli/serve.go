package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/citizen-alerts-service/internal/adapter/http"
	"github.com/couchcryptid/citizen-alerts-service/internal/observability"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the refresh loop",
		Long: `Serve the alerts API on HTTP_ADDR. Incidents are fetched once at
startup and then every REFRESH_INTERVAL (when non-zero) until SIGINT or
SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger := observability.NewLogger(cfg)
			a := newApp(cfg, logger, newMetrics())
			defer a.Close()

			srv := httpadapter.NewServer(cfg.HTTPAddr, a.pipeline, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Start HTTP server.
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server error", "error", err)
					stop()
				}
			}()

			// Start refresh loop.
			go func() {
				if err := a.pipeline.Run(ctx); err != nil {
					logger.Error("pipeline error", "error", err)
				}
			}()

			<-ctx.Done()
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
}
