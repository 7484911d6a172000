// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/dnswarden/internal/clock"
)

func TestCrashTrackerThreshold(t *testing.T) {
	tr := NewCrashTracker(t.TempDir())

	assert.False(t, tr.ShouldHold(10))
	tr.RecordFailure(10, "spawn")
	tr.RecordFailure(10, "spawn")
	assert.False(t, tr.ShouldHold(10))
	tr.RecordFailure(10, "resolver")
	assert.True(t, tr.ShouldHold(10))

	// Other slots are unaffected.
	assert.False(t, tr.ShouldHold(20))
}

func TestCrashTrackerWindowExpiry(t *testing.T) {
	clock.SetMock(time.Unix(1700000000, 0))
	defer clock.ResetMock()

	tr := NewCrashTracker(t.TempDir())
	tr.RecordFailure(10, "spawn")
	tr.RecordFailure(10, "spawn")
	tr.RecordFailure(10, "spawn")
	require.True(t, tr.ShouldHold(10))

	clock.Advance(6 * time.Minute)
	assert.False(t, tr.ShouldHold(10), "failures outside the window are forgotten")
}

func TestCrashTrackerReset(t *testing.T) {
	tr := NewCrashTracker(t.TempDir())
	tr.RecordFailure(10, "spawn")
	tr.RecordFailure(10, "spawn")
	tr.RecordFailure(10, "spawn")
	require.True(t, tr.ShouldHold(10))

	tr.Reset(10)
	assert.False(t, tr.ShouldHold(10))
}

func TestCrashTrackerPersistence(t *testing.T) {
	dir := t.TempDir()

	tr := NewCrashTracker(dir)
	tr.RecordFailure(10, "spawn")
	tr.RecordFailure(10, "spawn")
	tr.RecordFailure(10, "spawn")

	// A fresh tracker over the same state dir sees the history.
	tr2 := NewCrashTracker(dir)
	assert.True(t, tr2.ShouldHold(10))
}
