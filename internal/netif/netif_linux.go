// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

// Package netif resolves interface addresses for resolver binding.
package netif

import (
	"github.com/vishvananda/netlink"

	"grimm.is/dnswarden/internal/errors"
)

// IPv4Addr returns the first IPv4 address assigned to the named
// interface. A missing link or an interface without an address is a
// not-found error; callers treat that as "bind to the default".
func IPv4Addr(name string) (string, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return "", errors.Wrapf(err, errors.KindNotFound, "interface %s not found", name)
	}

	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return "", errors.Wrapf(err, errors.KindInternal, "failed to list addresses for %s", name)
	}
	for _, addr := range addrs {
		if ip4 := addr.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	return "", errors.Errorf(errors.KindNotFound, "no IPv4 address on interface %s", name)
}
