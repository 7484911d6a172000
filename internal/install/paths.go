// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package install resolves the filesystem layout of the daemon.
// Defaults can be overridden per-directory or via a single prefix,
// which keeps tests and non-root runs away from /etc and /var.
package install

import (
	"os"
	"path/filepath"
	"strconv"

	"grimm.is/dnswarden/internal/brand"
)

// Default locations. Build-time overrides may be set via -ldflags.
var (
	DefaultConfigDir   = "/etc/dnswarden"
	DefaultUnboundDir  = "/etc/dnswarden/unbound"
	DefaultTemplateDir = "/usr/local/dnswarden/templates/unbound"
	DefaultStateDir    = "/var/lib/dnswarden"
	DefaultLogDir      = "/var/log/dnswarden"
	DefaultRunDir      = "/var/run/dnswarden"
)

func fromEnv(suffix, sub, fallback string) string {
	if dir := os.Getenv(brand.ConfigEnvPrefix + "_" + suffix); dir != "" {
		return dir
	}
	if prefix := os.Getenv(brand.ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, sub)
	}
	return fallback
}

// GetConfigDir returns the top-level configuration directory.
// Priority: DNSWARDEN_CONFIG_DIR > DNSWARDEN_PREFIX/config > default.
func GetConfigDir() string {
	return fromEnv("CONFIG_DIR", "config", DefaultConfigDir)
}

// GetUnboundDir returns the base directory holding the per-VLAN
// resolver config trees (default/ plus one directory per VLAN id).
func GetUnboundDir() string {
	return fromEnv("UNBOUND_DIR", "unbound", DefaultUnboundDir)
}

// GetTemplateDir returns the resolver config template directory.
func GetTemplateDir() string {
	return fromEnv("TEMPLATE_DIR", "templates/unbound", DefaultTemplateDir)
}

// GetStateDir returns the state directory (databases, crash state).
func GetStateDir() string {
	return fromEnv("STATE_DIR", "state", DefaultStateDir)
}

// GetLogDir returns the log directory.
func GetLogDir() string {
	return fromEnv("LOG_DIR", "log", DefaultLogDir)
}

// GetRunDir returns the runtime directory for sockets and PID files.
func GetRunDir() string {
	return fromEnv("RUN_DIR", "run", DefaultRunDir)
}

// NetworkConfigPath returns the fixed path of the network config file.
func NetworkConfigPath() string {
	return filepath.Join(GetConfigDir(), "d_network.cfg")
}

// VLANsPath returns the path of the VLAN enumeration file.
func VLANsPath() string {
	return filepath.Join(GetConfigDir(), "vlans.json")
}

// VLANDir returns the resolver config directory for a VLAN id.
// VLAN 0 is the default (untagged) instance and lives under "default".
func VLANDir(vlanID int) string {
	if vlanID == 0 {
		return filepath.Join(GetUnboundDir(), "default")
	}
	return filepath.Join(GetUnboundDir(), strconv.Itoa(vlanID))
}
