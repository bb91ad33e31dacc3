// Package progress publishes monotonically increasing counters from the
// indexer and writer. Rendering a progress bar is the caller's concern;
// the engine only reports.
package progress

import (
	"sync/atomic"
)

// Counters is a snapshot of engine progress
type Counters struct {
	BytesIndexed int64
	RowsIndexed  int64
	BytesTotal   int64
}

// Sink receives progress snapshots. Implementations must be cheap; the
// indexer calls Publish at chunk boundaries from multiple goroutines.
type Sink interface {
	Publish(c Counters)
}

// Tracker accumulates counters and forwards snapshots to an optional sink
type Tracker struct {
	bytesIndexed atomic.Int64
	rowsIndexed  atomic.Int64
	bytesTotal   atomic.Int64
	sink         Sink
}

// NewTracker creates a tracker publishing to sink; sink may be nil
func NewTracker(sink Sink, bytesTotal int64) *Tracker {
	t := &Tracker{sink: sink}
	t.bytesTotal.Store(bytesTotal)
	return t
}

// AddBytes records indexed bytes and publishes
func (t *Tracker) AddBytes(n int64) {
	t.bytesIndexed.Add(n)
	t.publish()
}

// AddRows records indexed rows and publishes
func (t *Tracker) AddRows(n int64) {
	t.rowsIndexed.Add(n)
	t.publish()
}

// Snapshot returns the current counters
func (t *Tracker) Snapshot() Counters {
	return Counters{
		BytesIndexed: t.bytesIndexed.Load(),
		RowsIndexed:  t.rowsIndexed.Load(),
		BytesTotal:   t.bytesTotal.Load(),
	}
}

func (t *Tracker) publish() {
	if t == nil || t.sink == nil {
		return
	}
	t.sink.Publish(t.Snapshot())
}

// Nil-safe helpers so hot paths need no tracker checks

// SafeAddBytes records bytes on a possibly-nil tracker
func SafeAddBytes(t *Tracker, n int64) {
	if t != nil {
		t.AddBytes(n)
	}
}

// SafeAddRows records rows on a possibly-nil tracker
func SafeAddRows(t *Tracker, n int64) {
	if t != nil {
		t.AddRows(n)
	}
}
