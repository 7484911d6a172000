// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadNetwork(t *testing.T) {
	path := writeFile(t, "d_network.cfg", `
# interface assignments
PRIMARY_INTERFACE="eth0"
SECONDARY_INTERFACE='eth1'
INTERNAL_INTERFACE=br1

CAKE_PARAMS="diffserv4"
`)

	n, err := LoadNetwork(path)
	require.NoError(t, err)

	assert.Equal(t, "eth0", n.Get(KeyPrimaryInterface))
	assert.Equal(t, "eth1", n.Get(KeySecondaryInterface))
	assert.Equal(t, "br1", n.Get(KeyInternalInterface))
	assert.Equal(t, "", n.Get("NO_SUCH_KEY"))
}

func TestLoadNetworkBadLine(t *testing.T) {
	path := writeFile(t, "d_network.cfg", "PRIMARY_INTERFACE eth0\n")
	_, err := LoadNetwork(path)
	assert.Error(t, err)
}

func TestLoadNetworkMissingFile(t *testing.T) {
	_, err := LoadNetwork(filepath.Join(t.TempDir(), "missing.cfg"))
	assert.Error(t, err)
}

func TestRequire(t *testing.T) {
	path := writeFile(t, "d_network.cfg", `INTERNAL_INTERFACE="br1"`)
	n, err := LoadNetwork(path)
	require.NoError(t, err)

	v, err := n.Require(KeyInternalInterface)
	require.NoError(t, err)
	assert.Equal(t, "br1", v)

	_, err = n.Require(KeyPrimaryInterface)
	assert.Error(t, err)
}

func TestVLANInterface(t *testing.T) {
	path := writeFile(t, "d_network.cfg", `INTERNAL_INTERFACE="br1"`)
	n, err := LoadNetwork(path)
	require.NoError(t, err)

	assert.Equal(t, "br1", n.VLANInterface(0))
	assert.Equal(t, "br1.10", n.VLANInterface(10))
}

func TestVLANInterfaceDefaultFallback(t *testing.T) {
	path := writeFile(t, "d_network.cfg", `PRIMARY_INTERFACE="eth0"`)
	n, err := LoadNetwork(path)
	require.NoError(t, err)

	assert.Equal(t, "br1.20", n.VLANInterface(20))
}

func TestLoadVLANs(t *testing.T) {
	path := writeFile(t, "vlans.json", `[{"id": 10, "name": "iot"}, {"id": 20}]`)
	vlans, err := LoadVLANs(path)
	require.NoError(t, err)
	require.Len(t, vlans, 2)
	assert.Equal(t, 10, vlans[0].ID)
	assert.Equal(t, "iot", vlans[0].Name)
	assert.Equal(t, 20, vlans[1].ID)
}

func TestLoadVLANsMissing(t *testing.T) {
	vlans, err := LoadVLANs(filepath.Join(t.TempDir(), "vlans.json"))
	require.NoError(t, err)
	assert.Nil(t, vlans)
}

func TestDBName(t *testing.T) {
	t.Setenv("UNBOUND_DB_NAME", "")
	os.Unsetenv("UNBOUND_DB_NAME")
	assert.Equal(t, "unbound", DBName())

	t.Setenv("UNBOUND_DB_NAME", "unbound_test")
	assert.Equal(t, "unbound_test", DBName())
}
