package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mikeyg42/plantwatch/internal/notification"
)

var gmailAuthCmd = &cobra.Command{
	Use:   "gmail-auth",
	Short: "Authorize plantwatch to send alerts through Gmail",
	Long: `gmail-auth runs the OAuth2 consent flow in the browser and stores the
resulting token, sealed with the master key, at mail.gmail.token_store_path.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, done, err := loadConfig(false)
		if err != nil {
			return err
		}
		defer done()

		if cfg.MasterKey == "" {
			return errors.New("a master key is required; generate one with `plantwatch secret keygen` and set PLANTWATCH_MASTER_KEY")
		}
		if cfg.Mail.Gmail.ClientID == "" || cfg.Mail.Gmail.ClientSecret == "" {
			return errors.New("mail.gmail.client_id and mail.gmail.client_secret must be configured")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		err = notification.AuthorizeGmail(ctx, gmailConfig(cfg), func(url string) {
			fmt.Fprintf(out, "Open this URL in a browser to authorize Gmail:\n\n  %s\n\n", url)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Gmail token stored at %s\n", cfg.Mail.Gmail.TokenStorePath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gmailAuthCmd)
}
