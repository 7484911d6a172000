// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"grimm.is/dnswarden/internal/install"
	"grimm.is/dnswarden/internal/supervisor"
)

// RunReload triggers a reload. With vlanID < 0 the running supervisor
// gets SIGHUP and fans out to every ingestor; with a specific VLAN the
// matching ingestor is signalled directly via its PID descriptor.
func RunReload(vlanID int) error {
	if vlanID >= 0 {
		r := supervisor.NewReloader(install.GetUnboundDir(), nil)
		if err := r.ReloadVLAN(vlanID); err != nil {
			return err
		}
		Printer.Printf("Reload signal sent to VLAN %d.\n", vlanID)
		return nil
	}

	pidFile := supervisorPIDFile()
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return fmt.Errorf("failed to read PID file %s: %w (is the daemon running?)", pidFile, err)
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return fmt.Errorf("invalid PID in file: %s", pidStr)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	Printer.Printf("Sending SIGHUP to process %d...\n", pid)
	if err := process.Signal(syscall.SIGHUP); err != nil {
		return fmt.Errorf("failed to signal process: %w", err)
	}

	Printer.Println("Reload signal sent successfully.")
	return nil
}
