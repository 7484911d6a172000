// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/dnswarden/internal/store"
)

// fakeResolver returns a ResolverCommand that prints the given lines
// on stderr and exits cleanly, standing in for unbound.
func fakeResolver(t *testing.T, lines string) ResolverCommand {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
	script := filepath.Join(t.TempDir(), "resolver.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ncat <<'EOF' >&2\n"+lines+"\nEOF\n"), 0755))
	return ResolverCommand{Binary: "/bin/sh", Args: []string{script}, Env: os.Environ()}
}

func TestIngestorAllowedThenBlocked(t *testing.T) {
	t.Setenv("DNSWARDEN_RUN_DIR", t.TempDir())

	dbPath := filepath.Join(t.TempDir(), "unbound.db")
	ing := New(Options{
		VLANID:     10,
		ConfigFile: "/nonexistent/unbound.conf",
		DBPath:     dbPath,
		Command: fakeResolver(t,
			"[1700000000] unbound[615:0] info: 192.168.10.5 ads.example.com. A IN\n"+
				"[1700000000] unbound[615:0] debug: using localzone ads.example.com. always_null"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// The fake resolver exits after printing, which drains the buffer.
	require.NoError(t, ing.Run(ctx))

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	n, err := st.CountQueries(10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "allowed+blocked pair must collapse to one row")

	got, err := st.GetQuery(1)
	require.NoError(t, err)
	assert.Equal(t, "2023-11-14 22:13:20", got.Timestamp.UTC().Format("2006-01-02 15:04:05"))
	assert.Equal(t, "192.168.10.5", got.ClientIP)
	assert.Equal(t, "ads.example.com", got.Domain)
	assert.Equal(t, store.StatusBlocked, got.Status)
	assert.Equal(t, 10, got.VLANID)

	assert.EqualValues(t, 2, ing.Stats().Processed.Load())
	assert.EqualValues(t, 1, ing.Stats().Allowed.Load())
	assert.EqualValues(t, 1, ing.Stats().Blocked.Load())
	assert.EqualValues(t, 0, ing.Stats().Errors.Load())
}

func TestIngestorIgnoresNoise(t *testing.T) {
	t.Setenv("DNSWARDEN_RUN_DIR", t.TempDir())

	dbPath := filepath.Join(t.TempDir(), "unbound.db")
	ing := New(Options{
		VLANID: 20,
		DBPath: dbPath,
		Command: fakeResolver(t,
			"[1700000000] unbound[615:0] info: start of service (unbound 1.17.1).\n"+
				"[1700000000] unbound[615:0] debug: cache memory msg=66072 rrset=66072"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, ing.Run(ctx))

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	n, err := st.CountQueries(-1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
	assert.EqualValues(t, 0, ing.Stats().Processed.Load())
}

func TestIngestorSpawnFailure(t *testing.T) {
	t.Setenv("DNSWARDEN_RUN_DIR", t.TempDir())

	ing := New(Options{
		VLANID: 30,
		DBPath: filepath.Join(t.TempDir(), "unbound.db"),
		Command: ResolverCommand{
			Binary: "/nonexistent/unbound-binary",
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Error(t, ing.Run(ctx))
}
