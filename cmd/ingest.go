// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grimm.is/dnswarden/internal/brand"
	"grimm.is/dnswarden/internal/config"
	"grimm.is/dnswarden/internal/ingest"
	"grimm.is/dnswarden/internal/logging"
	"grimm.is/dnswarden/internal/store"
)

// RunIngest is the per-VLAN ingestor child entry point. It runs one
// resolver and its log pipeline until the resolver exits or the
// supervisor tears it down. SIGHUP is forwarded to the resolver.
func RunIngest(vlanID int, configFile string) error {
	SetProcessName(brand.LowerName + "-ingest")
	logger := logging.Default()

	ing := ingest.New(ingest.Options{
		VLANID:        vlanID,
		ConfigFile:    configFile,
		DBPath:        store.DBPath(config.DBName()),
		StatsInterval: time.Minute,
		Logger:        logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGHUP:
				ing.Reload()
			case syscall.SIGTERM, syscall.SIGINT:
				cancel()
			}
		}
	}()

	return ing.Run(ctx)
}
