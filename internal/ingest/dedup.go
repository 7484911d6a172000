// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ingest

import (
	"time"

	"grimm.is/dnswarden/internal/logging"
	"grimm.is/dnswarden/internal/store"
)

// Dedup parameters. A blocked query logs both an "info" line and a
// "localzone" line within the same second; the window lets the pair
// collapse into a single row. The capacity caps memory under bursts.
const (
	DedupWindow   = 5 * time.Second
	DedupCapacity = 25
)

// Sink receives finalized events. *store.Store satisfies it.
type Sink interface {
	InsertQuery(e store.QueryEvent) (int64, error)
	UpdateQueryStatus(id int64, status string) error
}

type dedupKey struct {
	domain string
	second int64
	vlanID int
}

type pendingEvent struct {
	event     store.QueryEvent
	firstSeen time.Time
	inserted  bool
	dbID      int64
}

// DedupBuffer is a bounded window over pending query events, keyed by
// (domain, second, vlan). It is owned by exactly one ingestor and is
// not safe for concurrent use.
type DedupBuffer struct {
	sink   Sink
	stats  *Stats
	logger *logging.Logger

	window   time.Duration
	capacity int

	// entries is FIFO in firstSeen order; byKey indexes the same
	// pending events. At most one entry per key.
	entries []*pendingEvent
	byKey   map[dedupKey]*pendingEvent
}

// NewDedupBuffer creates a buffer with the standard window and capacity.
func NewDedupBuffer(sink Sink, stats *Stats, logger *logging.Logger) *DedupBuffer {
	return &DedupBuffer{
		sink:     sink,
		stats:    stats,
		logger:   logger,
		window:   DedupWindow,
		capacity: DedupCapacity,
		byKey:    make(map[dedupKey]*pendingEvent),
	}
}

func keyOf(e store.QueryEvent) dedupKey {
	return dedupKey{domain: e.Domain, second: e.Timestamp.Unix(), vlanID: e.VLANID}
}

// Offer adds an event or coalesces it with a pending one. A blocked
// event arriving for a pending allowed event upgrades it, issuing a
// status update if the row is already in the store. Other duplicates
// are ignored.
func (b *DedupBuffer) Offer(e store.QueryEvent, now time.Time) {
	k := keyOf(e)
	if existing, ok := b.byKey[k]; ok {
		if e.Status == store.StatusBlocked && existing.event.Status == store.StatusAllowed {
			existing.event.Status = store.StatusBlocked
			// Keep the client IP from the allowed line; the blocked
			// line only carries the sentinel.
			if existing.inserted {
				if err := b.sink.UpdateQueryStatus(existing.dbID, store.StatusBlocked); err != nil {
					b.stats.countError()
					b.logger.Error("failed to upgrade query status",
						"id", existing.dbID, "domain", e.Domain, "error", err)
				}
			}
		}
		return
	}

	if len(b.entries) >= b.capacity {
		b.flush(func(*pendingEvent) bool { return true })
	}

	b.append(e, now)
}

func (b *DedupBuffer) append(e store.QueryEvent, now time.Time) {
	p := &pendingEvent{event: e, firstSeen: now}
	b.entries = append(b.entries, p)
	b.byKey[keyOf(e)] = p
	b.stats.setPending(len(b.entries))
}

// FlushDue persists and evicts every pending event whose age reached
// the window. Events flush in FIFO order of firstSeen.
func (b *DedupBuffer) FlushDue(now time.Time) {
	b.flush(func(p *pendingEvent) bool {
		return now.Sub(p.firstSeen) >= b.window
	})
}

// Drain flushes everything regardless of age. Called on shutdown.
func (b *DedupBuffer) Drain() {
	b.flush(func(*pendingEvent) bool { return true })
}

// Len returns the number of pending events.
func (b *DedupBuffer) Len() int {
	return len(b.entries)
}

func (b *DedupBuffer) flush(due func(*pendingEvent) bool) {
	// firstSeen is monotonically non-decreasing, so due entries form
	// a prefix of the FIFO.
	n := 0
	for _, p := range b.entries {
		if !due(p) {
			break
		}
		if !p.inserted {
			id, err := b.sink.InsertQuery(p.event)
			if err != nil {
				b.stats.countError()
				b.logger.Error("failed to insert query, dropping event",
					"domain", p.event.Domain, "vlan", p.event.VLANID, "error", err)
			} else {
				p.inserted = true
				p.dbID = id
			}
		}
		delete(b.byKey, keyOf(p.event))
		n++
	}
	b.entries = b.entries[n:]
	b.stats.setPending(len(b.entries))
}
