// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"encoding/json"
	"os"

	"grimm.is/dnswarden/internal/brand"
	"grimm.is/dnswarden/internal/errors"
)

// VLAN is one entry of the VLAN enumeration file. Only the id is
// required by the supervisor; the remaining fields are managed by the
// DHCP/interface tooling and carried through untouched.
type VLAN struct {
	ID      int    `json:"id"`
	Name    string `json:"name,omitempty"`
	Subnet  string `json:"subnet,omitempty"`
	Gateway string `json:"gateway,omitempty"`
}

// LoadVLANs reads the VLAN enumeration file. A missing file is not an
// error: the default instance (VLAN 0) always runs, so an absent file
// simply means no tagged VLANs.
func LoadVLANs(path string) ([]VLAN, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.KindValidation, "failed to read %s", path)
	}
	var vlans []VLAN
	if err := json.Unmarshal(data, &vlans); err != nil {
		return nil, errors.Wrapf(err, errors.KindValidation, "failed to parse %s", path)
	}
	return vlans, nil
}

// DBName returns the database name, honouring the UNBOUND_DB_NAME
// environment override.
func DBName() string {
	if name := os.Getenv(brand.DBNameEnv); name != "" {
		return name
	}
	return brand.DefaultDBName
}
