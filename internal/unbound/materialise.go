// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package unbound materialises per-VLAN resolver config trees and the
// generated include files (blocklists, local data) they load.
package unbound

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"grimm.is/dnswarden/internal/brand"
	"grimm.is/dnswarden/internal/errors"
	"grimm.is/dnswarden/internal/logging"
)

// CanonicalBase is the absolute prefix the template references; every
// occurrence is rewritten to the VLAN's own config directory.
const CanonicalBase = "/etc/" + brand.ResolverName

// ConfFileName is the resolver config file inside a VLAN directory.
const ConfFileName = brand.ResolverName + ".conf"

// PIDFileName is the PID descriptor inside a VLAN directory.
const PIDFileName = brand.ResolverName + ".pid"

// BlacklistsDir is the include subdirectory for generated blocklists.
const BlacklistsDir = "blacklists.d"

var (
	includeRe = regexp.MustCompile(`include-toplevel:\s*"([^"]+)"`)
)

// Materialise renders a VLAN's config directory from the template:
// the tree is copied, the config file is rebased onto the target
// directory and bound to the interface IP, include directories are
// created, and the whole tree is handed to the resolver account.
// Running it twice with the same inputs is a no-op.
func Materialise(targetDir, templateDir, bindIP string) error {
	if _, err := os.Stat(templateDir); err != nil {
		return errors.Wrapf(err, errors.KindValidation, "template directory %s missing", templateDir)
	}
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return errors.Wrapf(err, errors.KindPermission, "failed to create %s", targetDir)
	}

	if err := copyTree(templateDir, targetDir); err != nil {
		return err
	}

	confPath := filepath.Join(targetDir, ConfFileName)
	if err := rewriteConf(confPath, targetDir, bindIP); err != nil {
		return err
	}

	ChownTreeToResolver(targetDir)
	return nil
}

// copyTree copies the template into the target, overwriting a file
// only when its content differs.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return errors.Wrapf(err, errors.KindInternal, "failed to walk template %s", src)
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return errors.Wrapf(err, errors.KindPermission, "failed to create %s", target)
			}
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, errors.KindInternal, "failed to read template file %s", path)
		}
		if existing, err := os.ReadFile(target); err == nil && bytes.Equal(existing, data) {
			return nil
		}
		if err := os.WriteFile(target, data, 0644); err != nil {
			return errors.Wrapf(err, errors.KindPermission, "failed to write %s", target)
		}
		return nil
	})
}

// rewriteConf rebases the config file onto configDir, binds the
// server stanza to bindIP, guarantees a blacklists.d include, and
// creates every include-toplevel directory.
func rewriteConf(confPath, configDir, bindIP string) error {
	data, err := os.ReadFile(confPath)
	if err != nil {
		return errors.Wrapf(err, errors.KindValidation, "config file %s missing", confPath)
	}

	lines := strings.Split(string(data), "\n")
	var (
		out             []string
		inServer        bool
		interfaceFound  bool
		blacklistsFound bool
		lastInclude     = -1
		serverIndex     = -1
		includeDirs     = map[string]struct{}{}
	)

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		comment := strings.HasPrefix(trimmed, "#")

		if !comment && strings.Contains(line, "include-toplevel:") {
			if strings.Contains(line, BlacklistsDir) {
				blacklistsFound = true
			}
			if m := includeRe.FindStringSubmatch(line); m != nil {
				if dir := includeDir(m[1], configDir); dir != "" {
					includeDirs[dir] = struct{}{}
				}
			}
		}

		if strings.Contains(line, CanonicalBase) {
			line = strings.ReplaceAll(line, CanonicalBase, configDir)
		}

		if !comment && strings.Contains(line, "server:") && serverIndex == -1 {
			inServer = true
			serverIndex = len(out)
		}

		if !comment && inServer && strings.Contains(line, "interface:") {
			if bindIP != "" && !interfaceFound {
				line = "    interface: " + bindIP
			}
			interfaceFound = true
		}

		if !comment && strings.Contains(line, "include-toplevel:") {
			lastInclude = len(out)
		}

		out = append(out, line)
	}

	if bindIP != "" && !interfaceFound && serverIndex >= 0 {
		out = append(out[:serverIndex+1],
			append([]string{"    interface: " + bindIP}, out[serverIndex+1:]...)...)
		if lastInclude > serverIndex {
			lastInclude++
		}
	}

	if !blacklistsFound && lastInclude >= 0 {
		blDir := filepath.Join(configDir, BlacklistsDir)
		directive := `    include-toplevel: "` + blDir + `/*.conf"`
		out = append(out[:lastInclude+1],
			append([]string{directive}, out[lastInclude+1:]...)...)
		includeDirs[blDir] = struct{}{}
		logging.Info("added missing blacklists include", "config", confPath)
	}

	if err := os.WriteFile(confPath, []byte(strings.Join(out, "\n")), 0644); err != nil {
		return errors.Wrapf(err, errors.KindPermission, "failed to write %s", confPath)
	}

	for dir := range includeDirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, errors.KindPermission, "failed to create include directory %s", dir)
		}
		ChownToResolver(dir)
	}
	ChownToResolver(confPath)
	return nil
}

// includeDir extracts the directory part of an include glob, rebased
// onto the config directory when the template still references the
// canonical base.
func includeDir(includePath, configDir string) string {
	dir := includePath
	if i := strings.Index(dir, "/*"); i >= 0 {
		dir = dir[:i]
	} else {
		dir = filepath.Dir(dir)
	}
	if strings.HasPrefix(dir, CanonicalBase) {
		dir = configDir + strings.TrimPrefix(dir, CanonicalBase)
	}
	if !strings.HasPrefix(dir, configDir) {
		// Foreign absolute includes (e.g. root hints under /usr/share)
		// are not ours to create.
		return ""
	}
	return dir
}
