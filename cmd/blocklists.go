// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"grimm.is/dnswarden/internal/config"
	"grimm.is/dnswarden/internal/hostsync"
	"grimm.is/dnswarden/internal/logging"
	"grimm.is/dnswarden/internal/store"
	"grimm.is/dnswarden/internal/unbound"
)

// RunBlocklists regenerates the blocklist include files for every
// VLAN directory found on disk: clear blacklists.d, load the VLAN's
// sources from the store, fetch and filter each one. Reload is left
// to the supervisor; a 'reload' invocation afterwards applies the new
// files.
func RunBlocklists() error {
	st, err := store.Open(store.DBPath(config.DBName()))
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.EnsureSchema(); err != nil {
		return err
	}

	dirs, err := hostsync.DiscoverVLANDirs()
	if err != nil {
		return err
	}

	builder := unbound.NewBlocklistBuilder(nil)
	failures := 0
	for _, d := range dirs {
		Printer.Printf("Processing VLAN %d...\n", d.VLANID)

		if err := unbound.ClearBlocklists(d.Path); err != nil {
			logging.Error("failed to clear blocklists", "vlan", d.VLANID, "error", err)
			failures++
			continue
		}

		sources, err := st.LoadBlocklistSources(d.VLANID)
		if err != nil {
			logging.Error("failed to load blocklist sources", "vlan", d.VLANID, "error", err)
			failures++
			continue
		}

		whitelist, err := st.LoadWhitelist(d.VLANID)
		if err != nil {
			logging.Error("failed to load whitelist", "vlan", d.VLANID, "error", err)
			failures++
			continue
		}

		for _, src := range sources {
			if err := builder.Build(d.Path, src.Name, src.URL, whitelist); err != nil {
				// One dead source must not abort the sweep.
				logging.Error("blocklist build failed",
					"vlan", d.VLANID, "name", src.Name, "error", err)
				failures++
				continue
			}
			Printer.Printf("UPDATED: %d %s %s\n", d.VLANID, src.Name, src.URL)
		}
	}

	if failures > 0 {
		Printer.Printf("Completed with %d failure(s).\n", failures)
	} else {
		Printer.Println("Blocklist update completed successfully.")
	}
	return nil
}
