// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ingest

import (
	"strconv"
	"sync/atomic"

	"grimm.is/dnswarden/internal/metrics"
)

// Stats tracks one ingestor's counters. They are operator-facing
// (periodic log lines and the Prometheus endpoint), not part of the
// ingest contract. Reads happen from other goroutines, hence atomics.
type Stats struct {
	vlan string

	Processed atomic.Int64
	Allowed   atomic.Int64
	Blocked   atomic.Int64
	Errors    atomic.Int64
	Pending   atomic.Int64
}

// NewStats creates counters labeled with the VLAN id.
func NewStats(vlanID int) *Stats {
	return &Stats{vlan: strconv.Itoa(vlanID)}
}

func (s *Stats) countLine() {
	s.Processed.Add(1)
	metrics.LinesProcessed.WithLabelValues(s.vlan).Inc()
}

func (s *Stats) countEvent(status string) {
	switch status {
	case "allowed":
		s.Allowed.Add(1)
	case "blocked":
		s.Blocked.Add(1)
	}
	metrics.QueryEvents.WithLabelValues(s.vlan, status).Inc()
}

func (s *Stats) countError() {
	s.Errors.Add(1)
	metrics.StoreErrors.WithLabelValues(s.vlan).Inc()
}

func (s *Stats) setPending(n int) {
	s.Pending.Store(int64(n))
	metrics.PendingEvents.WithLabelValues(s.vlan).Set(float64(n))
}
