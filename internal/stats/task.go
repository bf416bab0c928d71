// Package stats implements the mutable, concurrently-updated counters
// attached to each entity (spec §3, §4.B). Stats objects are written by
// any number of instrumentation-layer threads and read by the single
// aggregator goroutine at publish time; every mutator sets the dirty bit
// last, with release semantics, so a reader that observes dirty==true is
// guaranteed to see every preceding counter update.
package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultPollHistogramMax caps recorded poll durations at ~1s with
	// headroom; longer polls still update HighestOutlier.
	DefaultPollHistogramMax = uint64(time.Second)
	// HistogramSigFigs matches spec §4.B's "2 significant figures".
	HistogramSigFigs = 2
)

// TaskStats holds every mutable counter for one Task (spec §3).
type TaskStats struct {
	dirty   atomic.Bool
	dropped atomic.Bool

	createdAt time.Time

	mu        sync.Mutex // guards droppedAt only; "costly lock only when dropped==true"
	droppedAt time.Time

	totalPolls  atomic.Uint64
	currentPollsI64 atomic.Int64 // signed so a debug-assert can catch underflow

	wakes      atomic.Uint64
	selfWakes  atomic.Uint64
	wakerClones atomic.Uint64
	wakerDrops  atomic.Uint64

	lastWakeNanos atomic.Int64 // unix nanos; 0 means "never"

	firstPollNanos       atomic.Int64
	lastPollStartedNanos atomic.Int64
	lastPollEndedNanos   atomic.Int64

	busyNanos      atomic.Int64 // cumulative time spent inside poll()
	scheduledNanos atomic.Int64 // cumulative time between wake and the next poll start

	pollHist      *Histogram
	scheduledHist *Histogram
}

// NewTaskStats creates a fresh stats object for a task created at now.
func NewTaskStats(now time.Time) *TaskStats {
	s := &TaskStats{
		createdAt:     now,
		pollHist:      NewHistogram(DefaultPollHistogramMax, HistogramSigFigs),
		scheduledHist: NewHistogram(DefaultPollHistogramMax, HistogramSigFigs),
	}
	s.dirty.Store(true) // a newly created entity is unsent
	return s
}

func (s *TaskStats) markDirty() { s.dirty.Store(true) }

// TakeUnsent clears the dirty flag and returns its prior value. Called
// by the aggregator when filtering a publish to dirty-only entities.
func (s *TaskStats) TakeUnsent() bool { return s.dirty.Swap(false) }

// IsDirty peeks the dirty flag without clearing it. drop_closed uses
// this to decide whether a dropped-but-unsent entity must be retained
// one more cycle for a watcher, without stealing the bit a publish
// still needs to see.
func (s *TaskStats) IsDirty() bool { return s.dirty.Load() }

// StartPoll records the beginning of a poll. Also closes out any
// scheduled-time window that was open since the last wake.
func (s *TaskStats) StartPoll(now time.Time) {
	nanos := now.UnixNano()
	if s.firstPollNanos.Load() == 0 {
		s.firstPollNanos.Store(nanos)
	}
	s.lastPollStartedNanos.Store(nanos)

	if lw := s.lastWakeNanos.Load(); lw != 0 {
		if d := nanos - lw; d > 0 {
			s.scheduledNanos.Add(d)
			s.scheduledHist.Record(uint64(d))
		}
	}

	s.currentPollsI64.Add(1)
	s.totalPolls.Add(1)
	s.markDirty()
}

// EndPoll records the end of a poll started at the matching StartPoll.
// Calling EndPoll while CurrentPolls()==0 is a caller bug (spec §3); we
// surface it via the bool return rather than panicking, since this path
// runs on an arbitrary runtime worker thread where a panic would be far
// worse than a dropped measurement.
func (s *TaskStats) EndPoll(now time.Time) (ok bool) {
	if s.currentPollsI64.Load() <= 0 {
		return false
	}
	s.currentPollsI64.Add(-1)

	nanos := now.UnixNano()
	s.lastPollEndedNanos.Store(nanos)

	started := s.lastPollStartedNanos.Load()
	if started != 0 && nanos > started {
		d := nanos - started
		s.busyNanos.Add(d)
		s.pollHist.Record(uint64(d))
	}
	s.markDirty()
	return true
}

// CurrentPolls returns the number of polls currently in flight for this
// task (normally 0 or 1, but nested block_on can make it briefly >1).
func (s *TaskStats) CurrentPolls() int64 { return s.currentPollsI64.Load() }

// WakerClone records a Waker::clone.
func (s *TaskStats) WakerClone() {
	s.wakerClones.Add(1)
	s.markDirty()
}

// WakerDrop records a Waker::drop.
func (s *TaskStats) WakerDrop() {
	s.wakerDrops.Add(1)
	s.markDirty()
}

// WakeByRef records a Waker::wake_by_ref: it wakes the task but does not
// consume a waker reference.
func (s *TaskStats) WakeByRef(now time.Time, self bool) {
	s.recordWake(now, self)
}

// Wake records a Waker::wake, which is equivalent to wake_by_ref
// followed immediately by a drop (spec §4.B).
func (s *TaskStats) Wake(now time.Time, self bool) {
	s.wakerDrops.Add(1)
	s.recordWake(now, self)
}

func (s *TaskStats) recordWake(now time.Time, self bool) {
	s.wakes.Add(1)
	if self {
		s.selfWakes.Add(1)
	}
	s.lastWakeNanos.Store(now.UnixNano())
	s.markDirty()
}

// WakerCount is the number of outstanding (cloned but not yet dropped)
// waker references. Used by the lost-waker linter.
func (s *TaskStats) WakerCount() int64 {
	n := int64(s.wakerClones.Load()) - int64(s.wakerDrops.Load()) + 1
	// +1 for the implicit waker reference tracing::Span-style runtimes
	// keep alive while the task is scheduled, mirroring the
	// "waker_drops <= waker_clones + 1" invariant.
	if n < 0 {
		return 0
	}
	return n
}

// Drop marks the task as dropped at now. Idempotent.
func (s *TaskStats) Drop(now time.Time) {
	if s.dropped.Swap(true) {
		return
	}
	s.mu.Lock()
	s.droppedAt = now
	s.mu.Unlock()
	s.markDirty()
}

// IsDropped reports whether Drop has been called.
func (s *TaskStats) IsDropped() bool { return s.dropped.Load() }

// DroppedAt returns the drop timestamp and whether the task is dropped.
// The mutex is only taken when dropped==true (spec §4.B "dropped_at()
// performs the costly lock only when dropped==true" — here the "costly"
// part is nominal since droppedAt is a single time.Time, but the shape
// is kept faithful to the source's lock-avoidance contract).
func (s *TaskStats) DroppedAt() (time.Time, bool) {
	if !s.dropped.Load() {
		return time.Time{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.droppedAt, true
}

// CreatedAt returns the task's creation timestamp.
func (s *TaskStats) CreatedAt() time.Time { return s.createdAt }

// Totals returns the raw wake/waker counters, mainly for tests and the
// linter package.
func (s *TaskStats) Totals() (wakes, selfWakes, wakerClones, wakerDrops uint64) {
	return s.wakes.Load(), s.selfWakes.Load(), s.wakerClones.Load(), s.wakerDrops.Load()
}

// SelfWakePercent returns the percentage (0-100) of wakes that were
// self-wakes. Returns 0 if there have been no wakes yet.
func (s *TaskStats) SelfWakePercent() float64 {
	total := s.wakes.Load()
	if total == 0 {
		return 0
	}
	return float64(s.selfWakes.Load()) / float64(total) * 100
}

// TotalPolls returns the cumulative poll count.
func (s *TaskStats) TotalPolls() uint64 { return s.totalPolls.Load() }

// Busy returns cumulative busy (in-poll) duration, as of now if the task
// is currently mid-poll.
func (s *TaskStats) Busy(now time.Time) time.Duration {
	busy := s.busyNanos.Load()
	if s.currentPollsI64.Load() > 0 {
		if started := s.lastPollStartedNanos.Load(); started != 0 {
			busy += now.UnixNano() - started
		}
	}
	return time.Duration(busy)
}

// Scheduled returns cumulative scheduled-wait duration.
func (s *TaskStats) Scheduled() time.Duration {
	return time.Duration(s.scheduledNanos.Load())
}

// LastWake returns the last wake timestamp, if any.
func (s *TaskStats) LastWake() (time.Time, bool) {
	n := s.lastWakeNanos.Load()
	if n == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, n), true
}

// FirstPoll returns the timestamp of this task's first poll, if any.
func (s *TaskStats) FirstPoll() (time.Time, bool) {
	n := s.firstPollNanos.Load()
	if n == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, n), true
}

// LastPollStarted returns the timestamp the most recent poll began, if
// any.
func (s *TaskStats) LastPollStarted() (time.Time, bool) {
	n := s.lastPollStartedNanos.Load()
	if n == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, n), true
}

// LastPollEnded returns the timestamp the most recent poll finished, if
// any.
func (s *TaskStats) LastPollEnded() (time.Time, bool) {
	n := s.lastPollEndedNanos.Load()
	if n == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, n), true
}

// IsRunning reports whether the task is currently mid-poll.
func (s *TaskStats) IsRunning() bool { return s.currentPollsI64.Load() > 0 }

// IsAwakened reports whether the task has been woken since its last
// poll started and is therefore pending a scheduler run, even though
// it isn't currently polling. Used by the lost-waker linter.
func (s *TaskStats) IsAwakened() bool {
	wake := s.lastWakeNanos.Load()
	return wake != 0 && wake > s.lastPollStartedNanos.Load()
}

// WireSnapshot is the decoded subset of proto.TaskStats a client model
// reconstructs from the wire and applies here, so the linter package's
// *TaskStats-typed Warn implementations run identically against
// server-side and client-side data (spec §4.I "re-run linters over
// every dirty entity").
type WireSnapshot struct {
	CreatedAt        time.Time
	DroppedAt        time.Time
	HasDroppedAt     bool
	TotalPolls       uint64
	CurrentPolls     int64
	Wakes            uint64
	SelfWakes        uint64
	WakerClones      uint64
	WakerDrops       uint64
	LastWake         time.Time
	HasLastWake      bool
	FirstPoll        time.Time
	HasFirstPoll     bool
	LastPollStarted  time.Time
	HasLastPollStart bool
	LastPollEnded    time.Time
	HasLastPollEnd   bool
	Busy             time.Duration
	Scheduled        time.Duration
}

// NewTaskStatsFromWire builds a client-side shadow TaskStats out of one
// decoded Update's stats_update entry. It is never mutated by the
// normal instrumentation-layer setters (StartPoll, Wake, ...); each
// subsequent Update for the same task id calls ApplyWireSnapshot again
// to replace its counters wholesale, matching the wire's "stats_update
// replaces the stored stats" semantics (spec §4.I step 2) rather than
// the server-side incremental-mutation semantics.
func NewTaskStatsFromWire(snap WireSnapshot) *TaskStats {
	s := &TaskStats{
		createdAt:     snap.CreatedAt,
		pollHist:      NewHistogram(DefaultPollHistogramMax, HistogramSigFigs),
		scheduledHist: NewHistogram(DefaultPollHistogramMax, HistogramSigFigs),
	}
	s.ApplyWireSnapshot(snap)
	return s
}

// ApplyWireSnapshot overwrites s's counters from a freshly decoded
// Update, marking s dirty so the client model's next linter pass (which
// reads dirty entries via SinceLastUpdate) re-checks it.
func (s *TaskStats) ApplyWireSnapshot(snap WireSnapshot) {
	s.totalPolls.Store(snap.TotalPolls)
	s.currentPollsI64.Store(snap.CurrentPolls)
	s.wakes.Store(snap.Wakes)
	s.selfWakes.Store(snap.SelfWakes)
	s.wakerClones.Store(snap.WakerClones)
	s.wakerDrops.Store(snap.WakerDrops)
	s.busyNanos.Store(int64(snap.Busy))
	s.scheduledNanos.Store(int64(snap.Scheduled))
	if snap.HasLastWake {
		s.lastWakeNanos.Store(snap.LastWake.UnixNano())
	}
	if snap.HasFirstPoll {
		s.firstPollNanos.Store(snap.FirstPoll.UnixNano())
	}
	if snap.HasLastPollStart {
		s.lastPollStartedNanos.Store(snap.LastPollStarted.UnixNano())
	}
	if snap.HasLastPollEnd {
		s.lastPollEndedNanos.Store(snap.LastPollEnded.UnixNano())
	}
	if snap.HasDroppedAt {
		s.dropped.Store(true)
		s.mu.Lock()
		s.droppedAt = snap.DroppedAt
		s.mu.Unlock()
	}
	s.markDirty()
}

// PollHistogramSnapshot returns a snapshot of the poll-time histogram.
func (s *TaskStats) PollHistogramSnapshot() Snapshot { return s.pollHist.Snapshot() }

// ScheduledHistogramSnapshot returns a snapshot of the scheduled-time
// histogram.
func (s *TaskStats) ScheduledHistogramSnapshot() Snapshot { return s.scheduledHist.Snapshot() }
