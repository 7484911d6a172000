// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ingest turns a resolver's debug output into query-log rows.
// A parser classifies each line, a bounded dedup buffer coalesces the
// allowed/blocked pair a blocked query produces, and the ingestor
// drives both against the store for one VLAN's resolver.
package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"grimm.is/dnswarden/internal/store"
)

// maxDomainLen caps stored domain names (DNS names fit in 255 bytes).
const maxDomainLen = 255

var (
	// [1700000000] unbound[1234:0] info: 192.168.10.5 ads.example.com. A IN
	allowedRe = regexp.MustCompile(`\[(\d+)\] \S+\[\d+:\d+\] info: (\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}) (\S+)\. A IN`)

	// ... debug: using localzone ads.example.com. always_null
	blockedRe = regexp.MustCompile(`debug: using localzone (\S+)\. always_null`)

	epochRe = regexp.MustCompile(`\[(\d+)\]`)
)

// ClientUnknown is recorded when a blocked line carries no client IP.
const ClientUnknown = "unknown"

// ParseLine classifies one resolver log line. The second return is
// false for the (overwhelming majority of) lines that are neither an
// allowed nor a blocked query event.
func ParseLine(line string, now time.Time, vlanID int) (store.QueryEvent, bool) {
	if strings.Contains(line, "info:") {
		if m := allowedRe.FindStringSubmatch(line); m != nil {
			return store.QueryEvent{
				Timestamp: epochOr(m[1], now),
				ClientIP:  m[2],
				Domain:    NormalizeDomain(m[3]),
				QueryType: "A",
				Status:    store.StatusAllowed,
				VLANID:    vlanID,
			}, true
		}
	}

	if m := blockedRe.FindStringSubmatch(line); m != nil {
		ts := now
		if em := epochRe.FindStringSubmatch(line); em != nil {
			ts = epochOr(em[1], now)
		}
		return store.QueryEvent{
			Timestamp: ts,
			ClientIP:  ClientUnknown,
			Domain:    NormalizeDomain(m[1]),
			QueryType: "A",
			Status:    store.StatusBlocked,
			VLANID:    vlanID,
		}, true
	}

	return store.QueryEvent{}, false
}

// Interesting is the cheap pre-filter applied before the regexes:
// only lines mentioning an A query or a local-zone hit can parse.
func Interesting(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, " a in") || strings.Contains(lower, "always_null")
}

// NormalizeDomain lower-cases, strips the trailing dot, and truncates
// to the storable length.
func NormalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	if len(domain) > maxDomainLen {
		domain = domain[:maxDomainLen]
	}
	return domain
}

func epochOr(s string, fallback time.Time) time.Time {
	epoch, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return time.Unix(epoch, 0)
}
