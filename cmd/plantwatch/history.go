package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikeyg42/plantwatch/internal/storage"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent capture runs from the run archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, done, err := loadConfig(false)
		if err != nil {
			return err
		}
		defer done()

		pg := cfg.Storage.Postgres
		if pg.Host == "" {
			return errors.New("storage.postgres.host is not configured")
		}
		store, err := storage.NewPostgresStore(storage.PostgresConfig{
			Host:     pg.Host,
			Port:     pg.Port,
			Database: pg.Database,
			Username: pg.Username,
			Password: pg.Password,
			SSLMode:  pg.SSLMode,
		})
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.RecentRuns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}

		if historyJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tSTATE\tDURATION\tUNAVAILABLE\tRESULTS\tDISEASED")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%d\t%d\n",
				r.StartedAt.Local().Format("2006-01-02 15:04"),
				r.State,
				r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
				r.Unavailable,
				r.Results,
				r.Diseased)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(historyCmd)
}
