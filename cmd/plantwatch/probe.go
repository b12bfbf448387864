package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikeyg42/plantwatch/internal/coords"
	"github.com/mikeyg42/plantwatch/internal/screen"
)

var probeInterval time.Duration

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Print the pointer position and pixel color until interrupted",
	Long: `probe helps calibrate screen targets: hover over a button and read its
coordinates and color. Positions are also shown scaled back to the 1366x768
reference layout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		probe := screen.NewRobotProbe()
		w, h := probe.DisplaySize()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "display %dx%d\n", w, h)
		if err := coords.ValidateResolution(w, h); err != nil {
			fmt.Fprintf(out, "warning: %v\n", err)
		}

		if probeInterval <= 0 {
			probeInterval = time.Second
		}
		ticker := time.NewTicker(probeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				x, y := probe.PointerPosition()
				bx, by := x, y
				if w > 0 && h > 0 {
					bx, by = x*coords.BaseWidth/w, y*coords.BaseHeight/h
				}
				fmt.Fprintf(out, "x=%d y=%d base=(%d,%d) color=%s\n", x, y, bx, by, probe.PixelColor(x, y))
			}
		}
	},
}

func init() {
	probeCmd.Flags().DurationVar(&probeInterval, "interval", time.Second, "sampling interval")
	rootCmd.AddCommand(probeCmd)
}
