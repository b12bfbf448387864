package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikeyg42/plantwatch/internal/config"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the control API until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, done, err := loadConfig(true)
		if err != nil {
			return err
		}
		defer done()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg)
	},
}

// serve blocks until ctx is done, then shuts the application down.
func serve(ctx context.Context, cfg *config.Config) error {
	app, err := NewApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		app.Cleanup(shutdownCtx)
	}()

	if err := app.Start(ctx, true); err != nil {
		return err
	}
	zap.L().Info("plantwatch running",
		zap.String("api", cfg.API.ListenAddr),
		zap.Strings("triggers", app.monitor.Triggers()))

	<-ctx.Done()
	zap.L().Info("Shutting down")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
