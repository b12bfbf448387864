package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikeyg42/plantwatch/internal/config"
	"github.com/mikeyg42/plantwatch/internal/logging"
	"github.com/mikeyg42/plantwatch/internal/validate"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "plantwatch",
	Short: "Scheduled camera capture and plant disease monitoring",
	Long: `plantwatch drives the TVWall camera viewer on a schedule, collects one
snapshot per camera, classifies each image for plant disease and alerts the
configured recipients when disease is found.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); PLANTWATCH_* env vars override it")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")
}

// loadConfig reads and validates the configuration and installs the global
// logger. The returned func flushes the logger.
func loadConfig(requireValid bool) (*config.Config, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if requireValid {
		if err := validate.ValidateConfig(cfg); err != nil {
			return nil, nil, err
		}
	}

	logger, done, err := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Configuration loaded", zap.String("file", cfgFile))
	return cfg, done, nil
}
