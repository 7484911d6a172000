// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package brand provides centralized identity constants for the daemon.
// Keeping them in one place makes the binary easy to rebrand.
package brand

const (
	// Name is the human-readable product name.
	Name = "DNS Warden"
	// LowerName is the lowercase name used for files and sockets.
	LowerName = "dnswarden"
	// BinaryName is the name of the installed binary.
	BinaryName = "dnswarden"
	// ServiceName is the init/systemd service name.
	ServiceName = "dnswarden"

	// ResolverBinary is the recursive resolver this daemon supervises.
	ResolverBinary = "/usr/sbin/unbound"
	// ResolverName is the resolver's short name, used for config and
	// PID file names inside each VLAN directory.
	ResolverName = "unbound"
	// ResolverAccount is the service account the resolver runs as.
	// Config trees are chowned to this account.
	ResolverAccount = "unbound"

	// ConfigEnvPrefix is the prefix for environment overrides.
	ConfigEnvPrefix = "DNSWARDEN"

	// DefaultDBName is the database name unless UNBOUND_DB_NAME is set.
	DefaultDBName = "unbound"
	// DBNameEnv overrides the database name.
	DBNameEnv = "UNBOUND_DB_NAME"
)
