// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "unbound.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.EnsureSchema())
	return s
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	s := openTestStore(t)
	// A second pass must not recreate matching tables.
	require.NoError(t, s.EnsureSchema())

	n, err := s.CountQueries(-1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestEnsureSchemaRepairsMissingColumn(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "unbound.db"))
	require.NoError(t, err)
	defer s.Close()

	// Simulate a pre-VLAN deployment: dns_queries without vlan_id.
	_, err = s.db.Exec(`CREATE TABLE dns_queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts DATETIME NOT NULL,
		client_ip VARCHAR(45),
		domain VARCHAR(255),
		status VARCHAR(20)
	)`)
	require.NoError(t, err)
	_, err = s.db.Exec(`INSERT INTO dns_queries (ts, client_ip, domain, status)
		VALUES ('2023-01-01 00:00:00', '10.0.0.1', 'old.example.com', 'allowed')`)
	require.NoError(t, err)

	require.NoError(t, s.EnsureSchema())

	// The table was dropped and recreated with the full shape.
	n, err := s.CountQueries(-1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	id, err := s.InsertQuery(QueryEvent{
		Timestamp: time.Unix(1700000000, 0),
		ClientIP:  "192.168.10.5",
		Domain:    "ads.example.com",
		QueryType: "A",
		Status:    StatusAllowed,
		VLANID:    10,
	})
	require.NoError(t, err)
	assert.Positive(t, id)
}

func TestEnsureSchemaRepairsMissingIndex(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "unbound.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.Exec(`CREATE TABLE blocklists (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name VARCHAR(255) NOT NULL,
		url VARCHAR(2048) NOT NULL,
		vlan_id INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	require.NoError(t, err)

	require.NoError(t, s.EnsureSchema())

	// idx_name_vlan was missing; the unique constraint now holds.
	require.NoError(t, s.AddBlocklistSource("ads", "http://lists.example.com/a", 0))
	require.NoError(t, s.AddBlocklistSource("ads", "http://lists.example.com/b", 0))

	sources, err := s.LoadBlocklistSources(0)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "http://lists.example.com/b", sources[0].URL)
}

func TestInsertAndUpdateQuery(t *testing.T) {
	s := openTestStore(t)

	ts := time.Unix(1700000000, 0)
	id, err := s.InsertQuery(QueryEvent{
		Timestamp: ts,
		ClientIP:  "192.168.10.5",
		Domain:    "ads.example.com",
		QueryType: "A",
		Status:    StatusAllowed,
		VLANID:    10,
	})
	require.NoError(t, err)

	got, err := s.GetQuery(id)
	require.NoError(t, err)
	assert.Equal(t, "2023-11-14 22:13:20", got.Timestamp.Format("2006-01-02 15:04:05"))
	assert.Equal(t, "192.168.10.5", got.ClientIP)
	assert.Equal(t, "ads.example.com", got.Domain)
	assert.Equal(t, "A", got.QueryType)
	assert.Equal(t, StatusAllowed, got.Status)
	assert.Equal(t, 10, got.VLANID)

	require.NoError(t, s.UpdateQueryStatus(id, StatusBlocked))
	got, err = s.GetQuery(id)
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, got.Status)
}

func TestInsertQueryDefaultsType(t *testing.T) {
	s := openTestStore(t)

	id, err := s.InsertQuery(QueryEvent{
		Timestamp: time.Unix(1700000000, 0),
		ClientIP:  "unknown",
		Domain:    "x.example.com",
		Status:    StatusBlocked,
	})
	require.NoError(t, err)

	got, err := s.GetQuery(id)
	require.NoError(t, err)
	assert.Equal(t, "unknown", got.QueryType)
	assert.Equal(t, 0, got.VLANID)
}

func TestLoadWhitelistWildcardVLAN(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.AddWhitelistEntry("google.com", 0))
	require.NoError(t, s.AddWhitelistEntry("intranet.example.com", 10))
	require.NoError(t, s.AddWhitelistEntry("other.example.com", 20))

	wl, err := s.LoadWhitelist(10)
	require.NoError(t, err)

	assert.Contains(t, wl, "google.com")
	assert.Contains(t, wl, "intranet.example.com")
	assert.NotContains(t, wl, "other.example.com")
}

func TestLoadBlocklistSourcesExactVLAN(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.AddBlocklistSource("ads", "http://lists.example.com/ads", 0))
	require.NoError(t, s.AddBlocklistSource("malware", "http://lists.example.com/malware", 10))

	sources, err := s.LoadBlocklistSources(10)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "malware", sources[0].Name)
	assert.Equal(t, 10, sources[0].VLANID)
}
