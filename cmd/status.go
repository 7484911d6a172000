// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"fmt"
	"syscall"

	"grimm.is/dnswarden/internal/install"
	"grimm.is/dnswarden/internal/supervisor"
)

// RunStatus lists every VLAN instance known from PID descriptors and
// whether its processes are still alive.
func RunStatus() error {
	descriptors := supervisor.ReadAllDescriptors(install.GetUnboundDir())
	if len(descriptors) == 0 {
		Printer.Println("No instances recorded. Is the supervisor running?")
		return nil
	}

	Printer.Printf("%-8s %-18s %-14s %-14s %s\n",
		"VLAN", "SESSION", "INGESTOR", "RESOLVER", "CONFIG")
	for _, d := range descriptors {
		Printer.Printf("%-8d %-18s %-14s %-14s %s\n",
			d.VLANID, d.ScreenSession,
			pidState(d.IngestorPID), pidState(d.ResolverPID),
			d.ConfigFile)
	}
	return nil
}

func pidState(pid int) string {
	if pid <= 0 {
		return "-"
	}
	if syscall.Kill(pid, 0) == nil {
		return fmt.Sprintf("up:%d", pid)
	}
	return fmt.Sprintf("dead:%d", pid)
}
