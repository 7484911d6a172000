// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package tailscale wraps the tailscale local client and extracts the
// mesh host map the hosts sync renders into resolver local data.
package tailscale

import (
	"context"

	"tailscale.com/client/local"
	"tailscale.com/ipn/ipnstate"
)

// Client wraps the tailscale local client.
type Client struct {
	lc *local.Client
}

// NewClient creates a new Tailscale client using the default socket.
func NewClient() *Client {
	return &Client{
		lc: &local.Client{},
	}
}

// Status returns the current status of the Tailscale backend.
func (c *Client) Status(ctx context.Context) (*ipnstate.Status, error) {
	return c.lc.Status(ctx)
}

// Host is one mesh node: its bare hostname and its mesh addresses.
type Host struct {
	Name string
	IPs  []string
}

// Hosts flattens a status snapshot into the host list: the local node
// first, then every peer, in map iteration order. Duplicate handling
// happens downstream where the rendering order is defined.
func Hosts(st *ipnstate.Status) []Host {
	var hosts []Host
	if st == nil {
		return hosts
	}

	if st.Self != nil && st.Self.HostName != "" {
		hosts = append(hosts, peerHost(st.Self))
	}
	for _, peer := range st.Peer {
		if peer.HostName == "" {
			continue
		}
		hosts = append(hosts, peerHost(peer))
	}
	return hosts
}

func peerHost(p *ipnstate.PeerStatus) Host {
	h := Host{Name: p.HostName}
	for _, ip := range p.TailscaleIPs {
		h.IPs = append(h.IPs, ip.String())
	}
	return h
}
