// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package supervisor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"grimm.is/dnswarden/internal/clock"
)

const (
	// crashThreshold is the number of spawn failures before a VLAN
	// slot is held in Failed instead of being retried.
	crashThreshold = 3
	// crashWindow is the time window for counting failures.
	crashWindow = 5 * time.Minute
	// crashStateFileName persists failure history across restarts.
	crashStateFileName = "supervisor.state"
)

// CrashEvent records one failed spawn or resolver crash for a slot.
type CrashEvent struct {
	VLANID    int       `json:"vlan_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

type crashState struct {
	Events map[string][]CrashEvent `json:"events"`
}

// CrashTracker damps respawn loops: a slot that keeps failing inside
// the window is parked in Failed on every start until its recorded
// failures age out of the window.
type CrashTracker struct {
	stateDir  string
	threshold int
	window    time.Duration
	state     crashState
}

// NewCrashTracker loads persisted failure history from stateDir.
func NewCrashTracker(stateDir string) *CrashTracker {
	t := &CrashTracker{
		stateDir:  stateDir,
		threshold: crashThreshold,
		window:    crashWindow,
		state:     crashState{Events: make(map[string][]CrashEvent)},
	}
	t.load() // best-effort
	return t
}

// RecordFailure notes a failed spawn for a VLAN slot.
func (t *CrashTracker) RecordFailure(vlanID int, reason string) {
	key := strconv.Itoa(vlanID)
	t.state.Events[key] = append(t.state.Events[key], CrashEvent{
		VLANID:    vlanID,
		Reason:    reason,
		Timestamp: clock.Now(),
	})
	t.prune(key)
	t.save()
}

// ShouldHold reports whether a slot has failed too often recently.
func (t *CrashTracker) ShouldHold(vlanID int) bool {
	key := strconv.Itoa(vlanID)
	t.prune(key)
	return len(t.state.Events[key]) >= t.threshold
}

// Reset clears a slot's failure history after a successful start.
func (t *CrashTracker) Reset(vlanID int) {
	delete(t.state.Events, strconv.Itoa(vlanID))
	t.save()
}

func (t *CrashTracker) prune(key string) {
	cutoff := clock.Now().Add(-t.window)
	kept := t.state.Events[key][:0]
	for _, e := range t.state.Events[key] {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(t.state.Events, key)
	} else {
		t.state.Events[key] = kept
	}
}

func (t *CrashTracker) statePath() string {
	return filepath.Join(t.stateDir, crashStateFileName)
}

func (t *CrashTracker) load() {
	data, err := os.ReadFile(t.statePath())
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, &t.state); err != nil || t.state.Events == nil {
		t.state = crashState{Events: make(map[string][]CrashEvent)}
	}
}

func (t *CrashTracker) save() {
	if err := os.MkdirAll(t.stateDir, 0755); err != nil {
		return
	}
	data, err := json.Marshal(t.state)
	if err != nil {
		return
	}
	os.WriteFile(t.statePath(), data, 0644)
}
