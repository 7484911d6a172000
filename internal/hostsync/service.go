// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package hostsync renders the mesh-VPN host map into per-VLAN
// resolver local-data includes. Files are rewritten only when their
// entries actually changed, and only the affected VLAN's resolver is
// reloaded.
package hostsync

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/miekg/dns"

	"grimm.is/dnswarden/internal/clock"
	"grimm.is/dnswarden/internal/errors"
	"grimm.is/dnswarden/internal/install"
	"grimm.is/dnswarden/internal/logging"
	"grimm.is/dnswarden/internal/tailscale"
	"grimm.is/dnswarden/internal/unbound"
)

// LocalDataDir is the include subdirectory holding local-data files.
const LocalDataDir = "local.d"

// HostsFileName is the generated mesh hosts include file.
const HostsFileName = "tailscale-hosts.conf"

// DefaultDomainSuffix is appended to every mesh hostname.
const DefaultDomainSuffix = "warden.lan"

// Reloader delivers reload signals to running ingestors.
type Reloader interface {
	// ReloadVLAN signals the ingestor for one VLAN. A not-found error
	// means no matching ingestor is running.
	ReloadVLAN(vlanID int) error
	// ReloadAll signals every running ingestor.
	ReloadAll() error
}

// Options controls one sync run.
type Options struct {
	DomainSuffix string
	// Force rewrites and reloads even when nothing changed.
	Force bool
	// DryRun renders and compares but never writes or signals.
	DryRun bool
	// VLANID limits the run to one VLAN; nil means every VLAN
	// directory found on disk.
	VLANID *int
}

// Service performs hosts sync runs.
type Service struct {
	reloader Reloader
	logger   *logging.Logger
}

// New creates a hosts sync service.
func New(reloader Reloader, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{reloader: reloader, logger: logger}
}

var wsRe = regexp.MustCompile(`\s+`)

// normalizeEntry collapses whitespace so formatting changes do not
// count as content changes.
func normalizeEntry(line string) string {
	return strings.TrimSpace(wsRe.ReplaceAllString(line, " "))
}

// Render builds the include file body and the normalised entry set
// for a host list. Duplicate hostnames are skipped (first seen wins);
// invalid IPs are skipped with a warning.
func (s *Service) Render(hosts []tailscale.Host, suffix string) (string, map[string]struct{}) {
	lines := []string{
		"# Mesh hosts for " + suffix,
		"# Generated " + clock.Now().UTC().Format("2006-01-02 15:04:05") + " UTC",
		"server:",
	}
	entries := make(map[string]struct{})
	seen := make(map[string]struct{})

	for _, host := range hosts {
		name := strings.ToLower(host.Name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			s.logger.Warn("skipping duplicate hostname", "hostname", name)
			continue
		}
		seen[name] = struct{}{}

		fqdn := dns.Fqdn(name + "." + strings.TrimSuffix(suffix, "."))
		for _, ipStr := range host.IPs {
			ip := net.ParseIP(ipStr)
			if ip == nil {
				s.logger.Warn("skipping invalid IP", "hostname", name, "ip", ipStr)
				continue
			}
			rrtype := "AAAA"
			if ip.To4() != nil {
				rrtype = "A"
			}

			aLine := fmt.Sprintf("  local-data: %q", fmt.Sprintf("%s IN %s %s", fqdn, rrtype, ip))
			ptrLine := fmt.Sprintf("  local-data-ptr: %q", fmt.Sprintf("%s %s", ip, strings.TrimSuffix(fqdn, ".")))
			lines = append(lines, aLine, ptrLine)
			entries[normalizeEntry(aLine)] = struct{}{}
			entries[normalizeEntry(ptrLine)] = struct{}{}
		}
	}

	return strings.Join(lines, "\n") + "\n", entries
}

// readExisting extracts the normalised local-data entry set from an
// existing include file. A missing file yields an empty set.
func readExisting(path string) map[string]struct{} {
	entries := make(map[string]struct{})
	data, err := os.ReadFile(path)
	if err != nil {
		return entries
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || line == "server:" {
			continue
		}
		if strings.Contains(line, "local-data:") || strings.Contains(line, "local-data-ptr:") {
			entries[normalizeEntry(line)] = struct{}{}
		}
	}
	return entries
}

func sameEntries(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for e := range a {
		if _, ok := b[e]; !ok {
			return false
		}
	}
	return true
}

// SyncVLAN updates one VLAN's hosts include. Returns true when the
// file was rewritten (and a reload was issued), or, in a dry run,
// when it would have been.
func (s *Service) SyncVLAN(vlanID int, vlanDir string, hosts []tailscale.Host, opts Options) (bool, error) {
	suffix := opts.DomainSuffix
	if suffix == "" {
		suffix = DefaultDomainSuffix
	}

	content, proposed := s.Render(hosts, suffix)
	path := filepath.Join(vlanDir, LocalDataDir, HostsFileName)

	if sameEntries(readExisting(path), proposed) && !opts.Force {
		s.logger.Info("no host changes", "vlan", vlanID)
		return false, nil
	}

	if opts.DryRun {
		s.logger.Info("dry run, would rewrite", "vlan", vlanID, "file", path)
		return true, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, errors.Wrapf(err, errors.KindPermission, "failed to create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return false, errors.Wrapf(err, errors.KindPermission, "failed to write %s", path)
	}
	unbound.ChownToResolver(path)
	s.logger.Info("rewrote hosts include", "vlan", vlanID, "entries", len(proposed))

	s.reloadVLAN(vlanID)
	return true, nil
}

// reloadVLAN signals the matching ingestor, broadcasting when the
// targeted signal finds nobody.
func (s *Service) reloadVLAN(vlanID int) {
	if s.reloader == nil {
		return
	}
	if err := s.reloader.ReloadVLAN(vlanID); err != nil {
		s.logger.Warn("targeted reload failed, broadcasting",
			"vlan", vlanID, "error", err)
		if err := s.reloader.ReloadAll(); err != nil {
			s.logger.Error("broadcast reload failed", "error", err)
		}
	}
}

// Sync runs a full sweep: one VLAN when opts.VLANID is set, otherwise
// every VLAN directory found on disk. Returns the number of VLANs
// whose file was rewritten (in a dry run: would have been).
func (s *Service) Sync(hosts []tailscale.Host, opts Options) (int, error) {
	if len(hosts) == 0 {
		return 0, errors.New(errors.KindValidation, "no hosts in mesh status")
	}

	if opts.VLANID != nil {
		vlanDir := install.VLANDir(*opts.VLANID)
		if _, err := os.Stat(vlanDir); err != nil {
			return 0, errors.Wrapf(err, errors.KindNotFound, "VLAN directory %s does not exist", vlanDir)
		}
		updated, err := s.SyncVLAN(*opts.VLANID, vlanDir, hosts, opts)
		if err != nil {
			return 0, err
		}
		if updated {
			return 1, nil
		}
		return 0, nil
	}

	dirs, err := DiscoverVLANDirs()
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, d := range dirs {
		ok, err := s.SyncVLAN(d.VLANID, d.Path, hosts, opts)
		if err != nil {
			s.logger.Error("hosts sync failed for VLAN", "vlan", d.VLANID, "error", err)
			continue
		}
		if ok {
			updated++
		}
	}
	return updated, nil
}

// VLANDir is one resolver config directory found on disk.
type VLANDir struct {
	VLANID int
	Path   string
}

// DiscoverVLANDirs lists the default directory plus every numeric
// VLAN directory under the resolver base.
func DiscoverVLANDirs() ([]VLANDir, error) {
	base := install.GetUnboundDir()

	var dirs []VLANDir
	if fi, err := os.Stat(filepath.Join(base, "default")); err == nil && fi.IsDir() {
		dirs = append(dirs, VLANDir{VLANID: 0, Path: filepath.Join(base, "default")})
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return dirs, nil
		}
		return nil, errors.Wrapf(err, errors.KindInternal, "failed to read %s", base)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := strconv.Atoi(e.Name())
		if err != nil || id <= 0 {
			continue
		}
		dirs = append(dirs, VLANDir{VLANID: id, Path: filepath.Join(base, e.Name())})
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].VLANID < dirs[j].VLANID })
	return dirs, nil
}
