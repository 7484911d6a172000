// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package unbound

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"

	"grimm.is/dnswarden/internal/errors"
	"grimm.is/dnswarden/internal/logging"
)

// fetchTimeout bounds one blocklist download. A slow or dead source
// aborts only that source.
const fetchTimeout = 30 * time.Second

var (
	// Some published lists wrap the directive twice:
	//   local-zone: "local-zone: "ads.example.com." always_null.
	doubleZoneRe = regexp.MustCompile(`local-zone:\s*"local-zone:\s*"([^"]+?)\.?"\s*always_null\.?`)
	// The plain form:
	//   local-zone: "ads.example.com" always_null
	plainZoneRe = regexp.MustCompile(`local-zone:\s*"([^"]+?)\.?"\s*always_null`)
)

// BlocklistBuilder turns a remote blocklist source into a resolver
// include file, minus the VLAN's whitelist.
type BlocklistBuilder struct {
	client *http.Client
	logger *logging.Logger
}

// NewBlocklistBuilder creates a builder with the default HTTP timeout.
func NewBlocklistBuilder(logger *logging.Logger) *BlocklistBuilder {
	if logger == nil {
		logger = logging.Default()
	}
	return &BlocklistBuilder{
		client: &http.Client{Timeout: fetchTimeout},
		logger: logger,
	}
}

// Build fetches the source URL, subtracts the whitelist, and writes
// <vlanDir>/blacklists.d/<name>.conf. The whitelist entries are
// matched with suffix semantics; wildcard prefixes are normalised.
// On fetch failure the existing include file is left untouched.
func (b *BlocklistBuilder) Build(vlanDir, name, url string, whitelist map[string]struct{}) error {
	domains, err := b.fetch(url)
	if err != nil {
		return err
	}

	kept := filterWhitelisted(domains, whitelist)
	b.logger.Info("built blocklist",
		"name", name, "fetched", len(domains), "kept", len(kept))

	return WriteBlocklistFile(filepath.Join(vlanDir, BlacklistsDir, name+".conf"), kept)
}

// fetch downloads and parses a blocklist into a set of fully
// qualified, lower-cased domains.
func (b *BlocklistBuilder) fetch(url string) (map[string]struct{}, error) {
	resp, err := b.client.Get(url)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindUnavailable, "failed to fetch blocklist %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, errors.Errorf(errors.KindUnavailable,
			"blocklist %s returned status %d", url, resp.StatusCode)
	}

	return ParseBlocklist(resp.Body)
}

// ParseBlocklist extracts blocked domains from a list body. Both the
// double-wrapped and plain local-zone forms are recognised; comments
// and unrelated lines are skipped.
func ParseBlocklist(r io.Reader) (map[string]struct{}, error) {
	domains := make(map[string]struct{})
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var domain string
		if m := doubleZoneRe.FindStringSubmatch(line); m != nil {
			domain = m[1]
		} else if m := plainZoneRe.FindStringSubmatch(line); m != nil {
			domain = m[1]
		} else {
			continue
		}

		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain == "" {
			continue
		}
		domains[dns.Fqdn(domain)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "failed to read blocklist body")
	}
	return domains, nil
}

// filterWhitelisted drops every domain equal to a whitelist entry or
// ending in "." + entry. Entries may carry a leading "*." which is
// stripped before matching.
func filterWhitelisted(domains, whitelist map[string]struct{}) []string {
	normalized := make(map[string]struct{}, len(whitelist))
	for entry := range whitelist {
		entry = strings.ToLower(strings.TrimSuffix(entry, "."))
		entry = strings.TrimPrefix(entry, "*.")
		if entry != "" {
			normalized[entry] = struct{}{}
		}
	}

	var kept []string
	for fqdn := range domains {
		bare := strings.TrimSuffix(fqdn, ".")
		if isWhitelisted(bare, normalized) {
			continue
		}
		kept = append(kept, fqdn)
	}
	sort.Strings(kept)
	return kept
}

func isWhitelisted(domain string, whitelist map[string]struct{}) bool {
	if _, ok := whitelist[domain]; ok {
		return true
	}
	for entry := range whitelist {
		if strings.HasSuffix(domain, "."+entry) {
			return true
		}
	}
	return false
}

// WriteBlocklistFile renders the include file the resolver loads from
// blacklists.d. Domains are written sorted, one local-zone per line.
func WriteBlocklistFile(path string, fqdns []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, errors.KindPermission, "failed to create %s", filepath.Dir(path))
	}

	var sb strings.Builder
	sb.WriteString("server:\n")
	for _, fqdn := range fqdns {
		fmt.Fprintf(&sb, "  local-zone: %q always_null\n", fqdn)
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return errors.Wrapf(err, errors.KindPermission, "failed to write %s", path)
	}
	ChownToResolver(path)
	return nil
}

// ClearBlocklists removes every generated blocklist include under a
// VLAN directory before a regeneration sweep.
func ClearBlocklists(vlanDir string) error {
	dir := filepath.Join(vlanDir, BlacklistsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dir, 0755)
		}
		return errors.Wrapf(err, errors.KindInternal, "failed to read %s", dir)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".conf") {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			logging.Warn("failed to remove old blocklist", "file", e.Name(), "error", err)
		}
	}
	return nil
}
