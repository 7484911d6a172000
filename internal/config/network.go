// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config reads the host network configuration and the VLAN
// enumeration that drive the per-VLAN resolver instances.
package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"grimm.is/dnswarden/internal/errors"
)

// Network keys required by the supervisor.
const (
	KeyPrimaryInterface   = "PRIMARY_INTERFACE"
	KeySecondaryInterface = "SECONDARY_INTERFACE"
	KeyInternalInterface  = "INTERNAL_INTERFACE"
)

// Network holds the parsed KEY="value" network configuration.
type Network struct {
	values map[string]string
}

// LoadNetwork parses the network configuration file. Lines are of the
// form KEY="value" (quotes optional); blank lines and #-comments are
// skipped. A line with no '=' is a validation error.
func LoadNetwork(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindValidation, "failed to open network config %s", path)
	}
	defer f.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, errors.Errorf(errors.KindValidation,
				"unparseable line %d in %s: %q", lineno, path, line)
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		values[strings.TrimSpace(key)] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, errors.KindValidation, "failed to read network config %s", path)
	}
	return &Network{values: values}, nil
}

// Get returns the value for key, or "" if absent.
func (n *Network) Get(key string) string {
	return n.values[key]
}

// Require returns the value for key or a validation error if missing.
func (n *Network) Require(key string) (string, error) {
	v, ok := n.values[key]
	if !ok || v == "" {
		return "", errors.Errorf(errors.KindValidation, "missing required network config key %s", key)
	}
	return v, nil
}

// InternalInterface returns the internal (LAN) interface name,
// falling back to br1 when the key is absent.
func (n *Network) InternalInterface() string {
	if v := n.values[KeyInternalInterface]; v != "" {
		return v
	}
	return "br1"
}

// VLANInterface returns the tagged interface name for a VLAN id.
// VLAN 0 maps to the internal interface itself.
func (n *Network) VLANInterface(vlanID int) string {
	iface := n.InternalInterface()
	if vlanID == 0 {
		return iface
	}
	return iface + "." + strconv.Itoa(vlanID)
}
