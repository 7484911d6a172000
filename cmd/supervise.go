// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"grimm.is/dnswarden/internal/brand"
	"grimm.is/dnswarden/internal/logging"
	"grimm.is/dnswarden/internal/supervisor"
)

// RunSupervise is the foreground supervisor entry point ('ctl'). It
// starts the fleet, then services reload and shutdown signals until
// terminated.
func RunSupervise() error {
	SetProcessName(brand.LowerName + "-ctl")
	logger := logging.Default()

	sup, err := supervisor.New(supervisor.Options{Logger: logger})
	if err != nil {
		return err
	}

	if err := sup.Start(); err != nil {
		// Start-up errors are the fatal kind: exit 1 via main.
		return err
	}

	pidFile := supervisorPIDFile()
	if err := os.MkdirAll(filepath.Dir(pidFile), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
		return err
	}
	defer os.Remove(pidFile)

	// Ingestor children are detached and never waited on; let the
	// kernel reap them so dead ones do not accumulate as zombies.
	signal.Ignore(syscall.SIGCHLD)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT)

	for sig := range sigCh {
		switch sig {
		case syscall.SIGHUP:
			logger.Info("reload requested, fanning out")
			sup.ReloadAll()
		case syscall.SIGTERM, syscall.SIGINT:
			logger.Info("shutdown requested", "signal", sig.String())
			sup.Teardown()
			return nil
		}
	}
	return nil
}
