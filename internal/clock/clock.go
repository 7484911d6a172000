// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package clock provides the daemon's time source. Production code
// calls clock.Now() instead of time.Now() so tests can freeze and
// advance time deterministically.
package clock

import (
	"sync"
	"time"
)

var (
	mu   sync.RWMutex
	mock *time.Time
)

// Now returns the current time, or the mock time if one is set.
func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	if mock != nil {
		return *mock
	}
	return time.Now()
}

// SetMock freezes the clock at t until ResetMock is called.
func SetMock(t time.Time) {
	mu.Lock()
	defer mu.Unlock()
	mock = &t
}

// Advance moves the mock clock forward by d. It panics if no mock is set.
func Advance(d time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	if mock == nil {
		panic("clock: Advance called without a mock time")
	}
	t := mock.Add(d)
	mock = &t
}

// ResetMock returns the clock to real time.
func ResetMock() {
	mu.Lock()
	defer mu.Unlock()
	mock = nil
}
