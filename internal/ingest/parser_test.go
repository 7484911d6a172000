// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/dnswarden/internal/store"
)

func TestParseAllowed(t *testing.T) {
	now := time.Unix(1800000000, 0)
	line := "[1700000000] unbound[615:0] info: 192.168.10.5 ads.example.com. A IN"

	e, ok := ParseLine(line, now, 10)
	require.True(t, ok)

	assert.Equal(t, store.StatusAllowed, e.Status)
	assert.EqualValues(t, 1700000000, e.Timestamp.Unix())
	assert.Equal(t, "192.168.10.5", e.ClientIP)
	assert.Equal(t, "ads.example.com", e.Domain)
	assert.Equal(t, "A", e.QueryType)
	assert.Equal(t, 10, e.VLANID)
}

func TestParseBlocked(t *testing.T) {
	now := time.Unix(1800000000, 0)
	line := "[1700000000] unbound[615:0] debug: using localzone ads.example.com. always_null"

	e, ok := ParseLine(line, now, 10)
	require.True(t, ok)

	assert.Equal(t, store.StatusBlocked, e.Status)
	assert.EqualValues(t, 1700000000, e.Timestamp.Unix())
	assert.Equal(t, ClientUnknown, e.ClientIP)
	assert.Equal(t, "ads.example.com", e.Domain)
	assert.Equal(t, "A", e.QueryType)
}

func TestParseBlockedWithoutEpoch(t *testing.T) {
	now := time.Unix(1800000000, 0)
	line := "debug: using localzone Tracker.Example.COM. always_null"

	e, ok := ParseLine(line, now, 0)
	require.True(t, ok)

	assert.Equal(t, now, e.Timestamp)
	assert.Equal(t, "tracker.example.com", e.Domain)
}

func TestParseCaseAndDot(t *testing.T) {
	line := "[1700000000] unbound[615:0] info: 10.0.0.1 WWW.Example.Com. A IN"
	e, ok := ParseLine(line, time.Now(), 0)
	require.True(t, ok)
	assert.Equal(t, "www.example.com", e.Domain)
}

func TestParseLongDomainTruncated(t *testing.T) {
	long := strings.Repeat("a", 300) + ".example.com"
	line := "[1700000000] unbound[615:0] info: 10.0.0.1 " + long + ". A IN"

	e, ok := ParseLine(line, time.Now(), 0)
	require.True(t, ok)
	assert.Len(t, e.Domain, 255)
}

func TestParseSkipsNoise(t *testing.T) {
	for _, line := range []string{
		"",
		"[1700000000] unbound[615:0] info: start of service (unbound 1.17.1).",
		"[1700000000] unbound[615:0] debug: cache memory msg=66072 rrset=66072",
		"[1700000000] unbound[615:0] info: 192.168.10.5 ads.example.com. AAAA IN",
		"[1700000000] unbound[615:0] query: something else entirely",
	} {
		_, ok := ParseLine(line, time.Now(), 0)
		assert.False(t, ok, "line should not parse: %q", line)
	}
}

func TestInteresting(t *testing.T) {
	assert.True(t, Interesting("[1] u[1:1] info: 10.0.0.1 a.b. A IN"))
	assert.True(t, Interesting("debug: using localzone a.b. ALWAYS_NULL"))
	assert.False(t, Interesting("info: service started"))
}

func TestNormalizeDomain(t *testing.T) {
	assert.Equal(t, "example.com", NormalizeDomain("Example.COM."))
	assert.Equal(t, "foo", NormalizeDomain("foo"))
}
