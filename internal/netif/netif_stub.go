// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux
// +build !linux

package netif

import (
	"net"

	"grimm.is/dnswarden/internal/errors"
)

// IPv4Addr falls back to the portable interface listing off Linux.
func IPv4Addr(name string) (string, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return "", errors.Wrapf(err, errors.KindNotFound, "interface %s not found", name)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return "", errors.Wrapf(err, errors.KindInternal, "failed to list addresses for %s", name)
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4.String(), nil
			}
		}
	}
	return "", errors.Errorf(errors.KindNotFound, "no IPv4 address on interface %s", name)
}
