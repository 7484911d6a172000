// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package supervisor

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/dnswarden/internal/testutil"
)

func TestEnumerateVLANs(t *testing.T) {
	cfgDir := t.TempDir()
	t.Setenv("DNSWARDEN_CONFIG_DIR", cfgDir)
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "vlans.json"),
		[]byte(`[{"id": 10}, {"id": 20}, {"id": 10}, {"id": 0}]`), 0644))

	ids, err := EnumerateVLANs()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 10, 20}, ids)
}

func TestEnumerateVLANsNoFile(t *testing.T) {
	t.Setenv("DNSWARDEN_CONFIG_DIR", t.TempDir())

	ids, err := EnumerateVLANs()
	require.NoError(t, err)
	assert.Equal(t, []int{0}, ids, "default instance always runs")
}

func TestVLANName(t *testing.T) {
	assert.Equal(t, "default", vlanName(0))
	assert.Equal(t, "42", vlanName(42))
}

func TestSlotStateString(t *testing.T) {
	assert.Equal(t, "empty", SlotEmpty.String())
	assert.Equal(t, "starting", SlotStarting.String())
	assert.Equal(t, "running", SlotRunning.String())
	assert.Equal(t, "failed", SlotFailed.String())
}

func TestReloaderTargetsMatchingVLAN(t *testing.T) {
	testutil.RequireLinux(t)

	base := t.TempDir()
	t.Setenv("DNSWARDEN_UNBOUND_DIR", base)

	// Two fake ingestors: plain sleeps, so a SIGHUP terminates them.
	procs := map[int]*exec.Cmd{}
	for _, vlan := range []int{10, 20} {
		cmd := exec.Command("sleep", "60")
		require.NoError(t, cmd.Start())
		procs[vlan] = cmd
		t.Cleanup(func() { cmd.Process.Kill(); cmd.Wait() })

		dir := filepath.Join(base, vlanName(vlan))
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, Descriptor{
			ScreenSession: "unbound_" + vlanName(vlan),
			ScreenPID:     cmd.Process.Pid,
			IngestorPID:   cmd.Process.Pid,
			VLANID:        vlan,
			ConfigFile:    filepath.Join(dir, "unbound.conf"),
		}.Write(dir))
	}

	r := NewReloader(base, nil)
	require.NoError(t, r.ReloadVLAN(20))

	// VLAN 20's process received SIGHUP (sleep dies on it); VLAN 10's
	// was untouched.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && pidAlive(procs[20].Process.Pid) {
		time.Sleep(20 * time.Millisecond)
	}
	assert.False(t, pidAlive(procs[20].Process.Pid), "VLAN 20 ingestor must see SIGHUP")
	assert.True(t, pidAlive(procs[10].Process.Pid), "VLAN 10 ingestor must not see a signal")
}

func TestReloaderNoDescriptor(t *testing.T) {
	base := t.TempDir()
	r := NewReloader(base, nil)
	assert.Error(t, r.ReloadVLAN(99))
	assert.Error(t, r.ReloadAll())
}

func TestSlotsSnapshotOrdered(t *testing.T) {
	s := &Supervisor{slots: make(map[int]*Slot)}
	s.setSlot(&Slot{VLANID: 20, State: SlotRunning})
	s.setSlot(&Slot{VLANID: 0, State: SlotRunning})
	s.setSlot(&Slot{VLANID: 10, State: SlotFailed})

	slots := s.Slots()
	require.Len(t, slots, 3)
	assert.Equal(t, 0, slots[0].VLANID)
	assert.Equal(t, 10, slots[1].VLANID)
	assert.Equal(t, 20, slots[2].VLANID)
}
