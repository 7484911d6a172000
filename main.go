// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"flag"
	"fmt"
	"os"

	"grimm.is/dnswarden/cmd"
	"grimm.is/dnswarden/internal/brand"
)

func usage() {
	fmt.Fprintf(os.Stderr, `%s - per-VLAN DNS resolver supervisor

Usage: %s <command> [options]

Commands:
  start            Start the supervisor in the background
  stop             Stop the supervisor and every resolver
  ctl              Run the supervisor in the foreground
  reload [-vlan N] Reload all resolvers, or a single VLAN's
  status           Show per-VLAN instance state
  ingest           (internal) per-VLAN ingestor child
  blocklists       Regenerate blocklist include files from the store
  synchosts        Sync mesh-VPN hosts into resolver local data
`, brand.Name, brand.BinaryName)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "start":
		err = cmd.RunStart()
	case "stop":
		err = cmd.RunStop()
	case "ctl":
		err = cmd.RunSupervise()
	case "reload":
		fs := flag.NewFlagSet("reload", flag.ExitOnError)
		vlanID := fs.Int("vlan", -1, "reload only this VLAN")
		fs.Parse(os.Args[2:])
		err = cmd.RunReload(*vlanID)
	case "status":
		err = cmd.RunStatus()
	case "ingest":
		fs := flag.NewFlagSet("ingest", flag.ExitOnError)
		vlanID := fs.Int("vlan-id", 0, "VLAN id this ingestor serves")
		configFile := fs.String("config", "", "resolver config file")
		fs.Parse(os.Args[2:])
		err = cmd.RunIngest(*vlanID, *configFile)
	case "blocklists":
		err = cmd.RunBlocklists()
	case "synchosts":
		err = cmd.RunSyncHosts(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
