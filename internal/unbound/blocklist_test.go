// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package unbound

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlocklistPlainForm(t *testing.T) {
	body := `
# AdAway default blocklist
local-zone: "ads.example.com" always_null
local-zone: "Tracker.Example.Com." always_null
local-zone: "ads.example.com." always_null

junk line
`
	domains, err := ParseBlocklist(strings.NewReader(body))
	require.NoError(t, err)

	assert.Len(t, domains, 2)
	assert.Contains(t, domains, "ads.example.com.")
	assert.Contains(t, domains, "tracker.example.com.")
}

func TestParseBlocklistDoubleWrappedForm(t *testing.T) {
	body := `local-zone: "local-zone: "ads.example.com." always_null.`
	domains, err := ParseBlocklist(strings.NewReader(body))
	require.NoError(t, err)

	assert.Len(t, domains, 1)
	assert.Contains(t, domains, "ads.example.com.")
}

func TestFilterWhitelisted(t *testing.T) {
	domains := map[string]struct{}{
		"ads.google.com.":      {},
		"tracker.example.com.": {},
		"foo.":                 {},
	}
	whitelist := map[string]struct{}{"google.com": {}}

	kept := filterWhitelisted(domains, whitelist)
	assert.Equal(t, []string{"foo.", "tracker.example.com."}, kept)
}

func TestFilterWhitelistedWildcardAndExact(t *testing.T) {
	domains := map[string]struct{}{
		"google.com.":     {},
		"ads.google.com.": {},
		"googleads.com.":  {},
	}
	whitelist := map[string]struct{}{"*.google.com": {}}

	kept := filterWhitelisted(domains, whitelist)
	// The wildcard prefix is stripped: google.com and its subdomains
	// are whitelisted, lookalike domains are not.
	assert.Equal(t, []string{"googleads.com."}, kept)
}

func TestWriteBlocklistFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, BlacklistsDir, "ads.conf")

	require.NoError(t, WriteBlocklistFile(path, []string{"a.example.com.", "b.example.com."}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "server:\n"+
		"  local-zone: \"a.example.com.\" always_null\n"+
		"  local-zone: \"b.example.com.\" always_null\n",
		string(data))
}

func TestBuildFiltersAndWrites(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`local-zone: "ads.google.com." always_null
local-zone: "tracker.example.com." always_null
local-zone: "foo." always_null
`))
	}))
	defer srv.Close()

	vlanDir := t.TempDir()
	b := NewBlocklistBuilder(nil)
	whitelist := map[string]struct{}{"google.com": {}}

	require.NoError(t, b.Build(vlanDir, "testlist", srv.URL, whitelist))

	data, err := os.ReadFile(filepath.Join(vlanDir, BlacklistsDir, "testlist.conf"))
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, `local-zone: "tracker.example.com." always_null`)
	assert.Contains(t, content, `local-zone: "foo." always_null`)
	assert.NotContains(t, content, "ads.google.com")
}

func TestBuildFetchFailureLeavesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	vlanDir := t.TempDir()
	existing := filepath.Join(vlanDir, BlacklistsDir, "testlist.conf")
	require.NoError(t, WriteBlocklistFile(existing, []string{"keep.example.com."}))

	b := NewBlocklistBuilder(nil)
	err := b.Build(vlanDir, "testlist", srv.URL, nil)
	assert.Error(t, err)

	data, readErr := os.ReadFile(existing)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "keep.example.com.")
}

func TestClearBlocklists(t *testing.T) {
	vlanDir := t.TempDir()
	require.NoError(t, WriteBlocklistFile(filepath.Join(vlanDir, BlacklistsDir, "a.conf"), nil))
	require.NoError(t, WriteBlocklistFile(filepath.Join(vlanDir, BlacklistsDir, "b.conf"), nil))

	require.NoError(t, ClearBlocklists(vlanDir))

	entries, err := os.ReadDir(filepath.Join(vlanDir, BlacklistsDir))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
