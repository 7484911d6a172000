// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"grimm.is/dnswarden/internal/brand"
	"grimm.is/dnswarden/internal/config"
	"grimm.is/dnswarden/internal/install"
)

// supervisorPIDFile is the daemon's own PID file under the run dir.
func supervisorPIDFile() string {
	return filepath.Join(install.GetRunDir(), brand.LowerName+".pid")
}

// RunStart starts the supervisor in the background.
func RunStart() error {
	// Pre-flight: the network config must exist and parse before we
	// fork, so the error lands on the operator's terminal.
	if _, err := config.LoadNetwork(install.NetworkConfigPath()); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Check for an already-running instance.
	pidFile := supervisorPIDFile()
	if _, err := os.Stat(pidFile); err == nil {
		if data, err := os.ReadFile(pidFile); err == nil {
			if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil {
				if process, err := os.FindProcess(pid); err == nil {
					if err := process.Signal(syscall.Signal(0)); err == nil {
						return fmt.Errorf("process already running (PID: %d)", pid)
					}
				}
			}
		}
		Printer.Printf("Warning: Removing stale PID file %s\n", pidFile)
		os.Remove(pidFile)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	logDir := install.GetLogDir()
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile := filepath.Join(logDir, brand.LowerName+".log")
	logF, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logF.Close()

	cmd := exec.Command(exe, "ctl")
	cmd.Stdout = logF
	cmd.Stderr = logF
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	pid := cmd.Process.Pid
	Printer.Printf("Started %s (PID: %d)\n", brand.Name, pid)
	Printer.Printf("Logs: %s\n", logFile)

	// Wait briefly to catch immediate startup failures.
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		Printer.Fprintf(os.Stderr, "\nError: Daemon exited immediately.\n")
		if content, readErr := os.ReadFile(logFile); readErr == nil {
			lines := strings.Split(string(content), "\n")
			start := len(lines) - 10
			if start < 0 {
				start = 0
			}
			Printer.Fprintf(os.Stderr, "Log output:\n")
			for _, line := range lines[start:] {
				if line != "" {
					Printer.Fprintf(os.Stderr, "  %s\n", line)
				}
			}
		}
		if err != nil {
			return fmt.Errorf("daemon failed to start: %w", err)
		}
		return fmt.Errorf("daemon exited unexpectedly")

	case <-time.After(500 * time.Millisecond):
		if err := cmd.Process.Signal(syscall.Signal(0)); err != nil {
			return fmt.Errorf("daemon died during startup (check logs: %s)", logFile)
		}
		return nil
	}
}
