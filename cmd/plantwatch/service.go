package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikeyg42/plantwatch/internal/config"
)

// program implements the kardianos/service interface
type program struct {
	cfg    *config.Config
	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

// Start must not block; the service manager waits on it.
func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancel = cancel
	p.done = make(chan struct{})
	p.mu.Unlock()

	go func() {
		defer close(p.done)
		if err := serve(ctx, p.cfg); err != nil {
			zap.L().Error("Service stopped with error", zap.Error(err))
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	zap.L().Info("Stopping service")
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func serviceConfig() (*service.Config, error) {
	args := []string{"service", "run"}
	if cfgFile != "" {
		abs, err := filepath.Abs(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
		args = append(args, "--config", abs)
	}
	return &service.Config{
		Name:        "plantwatch",
		DisplayName: "Plantwatch Disease Monitor",
		Description: "Captures camera snapshots on a schedule and alerts on plant disease",
		Arguments:   args,
	}, nil
}

var serviceCmd = &cobra.Command{
	Use:       "service [install|uninstall|start|stop|restart|run]",
	Short:     "Manage plantwatch as a system service",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"install", "uninstall", "start", "stop", "restart", "run"},
	RunE: func(cmd *cobra.Command, args []string) error {
		action := args[0]

		svcConfig, err := serviceConfig()
		if err != nil {
			return err
		}

		if action != "run" {
			s, err := service.New(&program{}, svcConfig)
			if err != nil {
				return err
			}
			if err := service.Control(s, action); err != nil {
				return fmt.Errorf("failed to %s service: %w", action, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service action '%s' completed successfully.\n", action)
			return nil
		}

		cfg, done, err := loadConfig(true)
		if err != nil {
			return err
		}
		defer done()

		s, err := service.New(&program{cfg: cfg}, svcConfig)
		if err != nil {
			return err
		}
		logger, err := s.Logger(nil)
		if err != nil {
			return err
		}
		if err := s.Run(); err != nil {
			_ = logger.Error(err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serviceCmd)
}
