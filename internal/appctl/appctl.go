// Package appctl starts and stops the camera viewer executable.
package appctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Process is the part of a gopsutil process the controller uses.
type Process interface {
	NameWithContext(ctx context.Context) (string, error)
	KillWithContext(ctx context.Context) error
}

// ListFunc enumerates running processes.
type ListFunc func(ctx context.Context) ([]Process, error)

// Controller manages one viewer executable.
type Controller struct {
	path        string
	args        []string
	processName string
	list        ListFunc
	logger      *zap.Logger
}

// New returns a controller for the executable at path. processName defaults
// to the executable's base name.
func New(path, processName string, args ...string) *Controller {
	if processName == "" {
		processName = filepath.Base(path)
	}
	return &Controller{
		path:        path,
		args:        args,
		processName: processName,
		list:        listProcesses,
		logger:      zap.L().Named("appctl"),
	}
}

// WithLister replaces process enumeration.
func (c *Controller) WithLister(fn ListFunc) *Controller {
	c.list = fn
	return c
}

func (c *Controller) WithLogger(l *zap.Logger) *Controller {
	if l != nil {
		c.logger = l
	}
	return c
}

// Installed reports an error when the executable is missing.
func (c *Controller) Installed() error {
	info, err := os.Stat(c.path)
	if err != nil {
		return fmt.Errorf("viewer not found at %s: %w", c.path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("viewer path %s is a directory", c.path)
	}
	return nil
}

// TerminateStale kills every running process named like the viewer.
func (c *Controller) TerminateStale(ctx context.Context) error {
	procs, err := c.list(ctx)
	if err != nil {
		return fmt.Errorf("failed to list processes: %w", err)
	}

	var errs []error
	killed := 0
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || !sameProcessName(name, c.processName) {
			continue
		}
		if err := p.KillWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("kill %s: %w", name, err))
			continue
		}
		killed++
	}

	if killed > 0 {
		c.logger.Info("Closed running viewer", zap.Int("processes", killed))
	}
	return errors.Join(errs...)
}

// Launch starts the viewer detached from ctx; the process is reaped in the
// background.
func (c *Controller) Launch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cmd := exec.Command(c.path, c.args...)
	cmd.Dir = filepath.Dir(c.path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", c.path, err)
	}
	c.logger.Info("Viewer launched", zap.String("path", c.path), zap.Int("pid", cmd.Process.Pid))

	go func() {
		if err := cmd.Wait(); err != nil {
			c.logger.Debug("Viewer exited", zap.Error(err))
		}
	}()
	return nil
}

func sameProcessName(name, want string) bool {
	trim := func(s string) string { return strings.TrimSuffix(strings.ToLower(s), ".exe") }
	return trim(name) == trim(want)
}

func listProcesses(ctx context.Context) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Process, len(procs))
	for i, p := range procs {
		out[i] = p
	}
	return out, nil
}
