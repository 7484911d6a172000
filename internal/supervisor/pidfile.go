// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package supervisor

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"grimm.is/dnswarden/internal/errors"
	"grimm.is/dnswarden/internal/unbound"
)

// Descriptor is the per-VLAN PID record written next to the resolver
// config. The key names are a fixed on-disk grammar kept compatible
// with earlier deployments: python_pid is the supervising ingestor
// process and unbound_pid the resolver itself.
type Descriptor struct {
	ScreenSession string
	ScreenPID     int
	IngestorPID   int // python_pid
	ResolverPID   int // unbound_pid
	VLANID        int
	ConfigFile    string
}

// DescriptorPath returns the descriptor location inside a VLAN directory.
func DescriptorPath(vlanDir string) string {
	return filepath.Join(vlanDir, unbound.PIDFileName)
}

// Write persists the descriptor, replacing any previous one.
func (d Descriptor) Write(vlanDir string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "screen_session:%s\n", d.ScreenSession)
	fmt.Fprintf(&sb, "screen_pid:%d\n", d.ScreenPID)
	if d.IngestorPID > 0 {
		fmt.Fprintf(&sb, "python_pid:%d\n", d.IngestorPID)
	}
	if d.ResolverPID > 0 {
		fmt.Fprintf(&sb, "unbound_pid:%d\n", d.ResolverPID)
	}
	fmt.Fprintf(&sb, "vlan_id:%d\n", d.VLANID)
	fmt.Fprintf(&sb, "config_file:%s\n", d.ConfigFile)

	path := DescriptorPath(vlanDir)
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return errors.Wrapf(err, errors.KindPermission, "failed to write PID descriptor %s", path)
	}
	return nil
}

// ReadDescriptor parses the descriptor in a VLAN directory.
func ReadDescriptor(vlanDir string) (Descriptor, error) {
	var d Descriptor
	path := DescriptorPath(vlanDir)
	f, err := os.Open(path)
	if err != nil {
		return d, errors.Wrapf(err, errors.KindNotFound, "no PID descriptor at %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), ":")
		if !ok {
			continue
		}
		switch key {
		case "screen_session":
			d.ScreenSession = value
		case "screen_pid":
			d.ScreenPID, _ = strconv.Atoi(value)
		case "python_pid":
			d.IngestorPID, _ = strconv.Atoi(value)
		case "unbound_pid":
			d.ResolverPID, _ = strconv.Atoi(value)
		case "vlan_id":
			d.VLANID, _ = strconv.Atoi(value)
		case "config_file":
			d.ConfigFile = value
		}
	}
	return d, scanner.Err()
}

// ReadAllDescriptors collects every descriptor under the resolver base
// directory. Unreadable descriptors are skipped.
func ReadAllDescriptors(baseDir string) []Descriptor {
	var descriptors []Descriptor
	filepath.WalkDir(baseDir, func(path string, entry os.DirEntry, err error) error {
		if err != nil || entry.IsDir() || entry.Name() != unbound.PIDFileName {
			return nil
		}
		if d, err := ReadDescriptor(filepath.Dir(path)); err == nil {
			descriptors = append(descriptors, d)
		}
		return nil
	})
	return descriptors
}
