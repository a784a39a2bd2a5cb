// Package indexprogress tracks the lock-free atomic counters for one
// indexing session (spec.md §3): totals, successes, failures, active,
// skipped, bytes, symbols, memory, peak memory, active workers, and
// start time. Counters are rebuilt per session and are never
// persisted.
package indexprogress

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Tracker holds one session's counters. The zero value is not usable;
// construct with New.
type Tracker struct {
	startTime time.Time

	total    int64
	success  int64
	failure  int64
	active   int64
	skipped  int64
	bytes    int64
	symbols  int64

	memBytes     int64
	peakMemBytes int64

	activeWorkers int64
}

// New returns a Tracker with its start time set to now and every
// counter at zero.
func New() *Tracker {
	return &Tracker{startTime: time.Now()}
}

// SetTotal records the number of units (files) this session expects to
// process. Call once, before work starts.
func (t *Tracker) SetTotal(n int) { atomic.StoreInt64(&t.total, int64(n)) }

// BeginUnit marks one unit of work as started: increments active and
// active-worker counts.
func (t *Tracker) BeginUnit() {
	atomic.AddInt64(&t.active, 1)
	atomic.AddInt64(&t.activeWorkers, 1)
}

// FinishUnit marks one unit as done. ok selects the success or failure
// counter; symbolCount and byteCount are added to the running totals.
// Skipped units should call Skip instead.
func (t *Tracker) FinishUnit(ok bool, byteCount, symbolCount int64) {
	atomic.AddInt64(&t.active, -1)
	atomic.AddInt64(&t.activeWorkers, -1)
	if ok {
		atomic.AddInt64(&t.success, 1)
	} else {
		atomic.AddInt64(&t.failure, 1)
	}
	atomic.AddInt64(&t.bytes, byteCount)
	atomic.AddInt64(&t.symbols, symbolCount)
}

// Skip marks one unit as skipped (e.g. excluded by config, unreadable,
// unsupported language) rather than attempted.
func (t *Tracker) Skip() {
	atomic.AddInt64(&t.active, -1)
	atomic.AddInt64(&t.activeWorkers, -1)
	atomic.AddInt64(&t.skipped, 1)
}

// SampleMemory records the current process's heap usage, updating the
// peak if this sample exceeds it. Callers poll this on an interval;
// the tracker itself never schedules sampling.
func (t *Tracker) SampleMemory() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	cur := int64(m.HeapAlloc)
	atomic.StoreInt64(&t.memBytes, cur)
	for {
		peak := atomic.LoadInt64(&t.peakMemBytes)
		if cur <= peak {
			return
		}
		if atomic.CompareAndSwapInt64(&t.peakMemBytes, peak, cur) {
			return
		}
	}
}

// Snapshot is a read-only copy of a Tracker's counters at one instant.
type Snapshot struct {
	Total           int64
	Success         int64
	Failure         int64
	Active          int64
	Skipped         int64
	Bytes           int64
	Symbols         int64
	MemoryBytes     int64
	PeakMemoryBytes int64
	ActiveWorkers   int64
	StartTime       time.Time
	Elapsed         time.Duration
}

// Snapshot reads every counter consistently-enough for reporting
// (individual atomics, no cross-field lock — spec.md §3 describes
// this as a set of independent atomic counters, not a transactional
// record).
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Total:           atomic.LoadInt64(&t.total),
		Success:         atomic.LoadInt64(&t.success),
		Failure:         atomic.LoadInt64(&t.failure),
		Active:          atomic.LoadInt64(&t.active),
		Skipped:         atomic.LoadInt64(&t.skipped),
		Bytes:           atomic.LoadInt64(&t.bytes),
		Symbols:         atomic.LoadInt64(&t.symbols),
		MemoryBytes:     atomic.LoadInt64(&t.memBytes),
		PeakMemoryBytes: atomic.LoadInt64(&t.peakMemBytes),
		ActiveWorkers:   atomic.LoadInt64(&t.activeWorkers),
		StartTime:       t.startTime,
		Elapsed:         time.Since(t.startTime),
	}
}

// Done reports whether every expected unit has been accounted for
// (success + failure + skipped >= total) and nothing is still active,
// i.e. the session has nothing left in flight.
func (t *Tracker) Done() bool {
	s := t.Snapshot()
	return s.Active == 0 && s.Success+s.Failure+s.Skipped >= s.Total
}
