// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package unbound

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/dnswarden/internal/brand"
	"grimm.is/dnswarden/internal/testutil"
)

func TestMaterialiseOwnership(t *testing.T) {
	testutil.RequireRoot(t)
	u, err := user.Lookup(brand.ResolverAccount)
	if err != nil {
		t.Skipf("resolver account %q not present", brand.ResolverAccount)
	}
	wantUID, _ := strconv.Atoi(u.Uid)

	template := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(template, ConfFileName),
		[]byte("server:\n    include-toplevel: \"/etc/unbound/local.d/*.conf\"\n"), 0644))

	target := filepath.Join(t.TempDir(), "10")
	require.NoError(t, Materialise(target, template, ""))

	// Every file in the tree belongs to the resolver account.
	require.NoError(t, filepath.WalkDir(target, func(path string, _ os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		stat := info.Sys().(*syscall.Stat_t)
		if int(stat.Uid) != wantUID {
			t.Errorf("%s owned by uid %d, want %d", path, stat.Uid, wantUID)
		}
		return nil
	}))
}
