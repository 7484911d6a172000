// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

// Package procfind locates processes by command line. The supervisor
// uses it to find resolver PIDs after spawn and to catch strays whose
// PID descriptors were lost.
package procfind

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ByCmdline returns the PIDs of processes whose command line contains
// every given substring. The caller's own PID is excluded.
func ByCmdline(substrs ...string) ([]int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}

	self := os.Getpid()
	var pids []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid == self {
			continue
		}

		data, err := os.ReadFile(filepath.Join("/proc", e.Name(), "cmdline"))
		if err != nil {
			// Process exited between listing and read.
			continue
		}
		cmdline := strings.ReplaceAll(string(data), "\x00", " ")

		matched := true
		for _, sub := range substrs {
			if !strings.Contains(cmdline, sub) {
				matched = false
				break
			}
		}
		if matched {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}
