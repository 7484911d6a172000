// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"context"
	"flag"
	"fmt"
	"time"

	"grimm.is/dnswarden/internal/hostsync"
	"grimm.is/dnswarden/internal/install"
	"grimm.is/dnswarden/internal/supervisor"
	"grimm.is/dnswarden/internal/tailscale"
)

// RunSyncHosts renders the current mesh host map into each VLAN's
// local-data include, reloading only the resolvers whose file
// actually changed.
func RunSyncHosts(args []string) error {
	fs := flag.NewFlagSet("synchosts", flag.ContinueOnError)
	domain := fs.String("domain", hostsync.DefaultDomainSuffix, "domain suffix for mesh hostnames")
	force := fs.Bool("force", false, "rewrite and reload even when nothing changed")
	dryRun := fs.Bool("dry-run", false, "show what would change without writing")
	vlanID := fs.Int("vlan-id", -1, "update only this VLAN (default: all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	status, err := tailscale.NewClient().Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to read tailscale status: %w", err)
	}
	hosts := tailscale.Hosts(status)
	Printer.Printf("Found %d hosts in mesh network\n", len(hosts))

	opts := hostsync.Options{
		DomainSuffix: *domain,
		Force:        *force,
		DryRun:       *dryRun,
	}
	if *vlanID >= 0 {
		opts.VLANID = vlanID
	}

	svc := hostsync.New(supervisor.NewReloader(install.GetUnboundDir(), nil), nil)
	updated, err := svc.Sync(hosts, opts)
	if err != nil {
		return err
	}

	Printer.Printf("Updated %d VLAN configuration(s).\n", updated)
	return nil
}
