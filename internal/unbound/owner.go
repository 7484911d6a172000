// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package unbound

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"grimm.is/dnswarden/internal/brand"
	"grimm.is/dnswarden/internal/logging"
)

// resolverIDs looks up the resolver service account. Returns ok=false
// when the account does not exist or we are not root, in which case
// ownership is left alone (the resolver then runs as the caller,
// which is what happens in tests and dev setups).
func resolverIDs() (uid, gid int, ok bool) {
	if os.Geteuid() != 0 {
		return 0, 0, false
	}
	u, err := user.Lookup(brand.ResolverAccount)
	if err != nil {
		logging.Warn("resolver account not found, keeping ownership",
			"account", brand.ResolverAccount, "error", err)
		return 0, 0, false
	}
	uid, err = strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, false
	}
	gid, err = strconv.Atoi(u.Gid)
	if err != nil {
		return 0, 0, false
	}
	return uid, gid, true
}

// ChownToResolver hands a single path to the resolver account.
func ChownToResolver(path string) {
	if uid, gid, ok := resolverIDs(); ok {
		if err := os.Chown(path, uid, gid); err != nil {
			logging.Warn("failed to chown", "path", path, "error", err)
		}
	}
}

// ChownTreeToResolver recursively hands a directory to the resolver
// account. Failures are logged and skipped; the resolver may still be
// able to read the tree.
func ChownTreeToResolver(root string) {
	uid, gid, ok := resolverIDs()
	if !ok {
		return
	}
	filepath.WalkDir(root, func(path string, _ os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if err := os.Chown(path, uid, gid); err != nil {
			logging.Warn("failed to chown", "path", path, "error", err)
		}
		return nil
	})
}
