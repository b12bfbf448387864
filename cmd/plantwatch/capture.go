package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Perform one capture run, classify it and print the batch as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, done, err := loadConfig(true)
		if err != nil {
			return err
		}
		defer done()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := NewApplication(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.Cleanup(context.Background())

		if err := app.Start(ctx, false); err != nil {
			return err
		}
		results, ok := app.monitor.RunOnce(ctx)
		if !ok {
			return errors.New("a capture run is already in progress")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)
}
