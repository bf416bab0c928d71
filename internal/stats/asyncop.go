package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/asyncwatch/console/internal/model"
)

// AsyncOpStats holds the mutable state for one AsyncOp entity. Async ops
// are polled like tasks but don't own a waker of their own — wake
// accounting for the owning task is recorded on that task's TaskStats —
// so this tracks poll counts and attributes only (spec §3, §4.D).
type AsyncOpStats struct {
	dirty   atomic.Bool
	dropped atomic.Bool

	createdAt time.Time

	mu        sync.Mutex
	droppedAt time.Time

	totalPolls      atomic.Uint64
	currentPollsI64 atomic.Int64

	lastPollStartedNanos atomic.Int64
	busyNanos            atomic.Int64
	pollHist             *Histogram

	attrMu     sync.Mutex
	attributes *model.AttributeSet
}

// NewAsyncOpStats creates a fresh stats object for an async op created
// at now.
func NewAsyncOpStats(now time.Time) *AsyncOpStats {
	s := &AsyncOpStats{
		createdAt:  now,
		pollHist:   NewHistogram(DefaultPollHistogramMax, HistogramSigFigs),
		attributes: model.NewAttributeSet(),
	}
	s.dirty.Store(true)
	return s
}

func (s *AsyncOpStats) markDirty() { s.dirty.Store(true) }

// TakeUnsent clears and returns the dirty flag.
func (s *AsyncOpStats) TakeUnsent() bool { return s.dirty.Swap(false) }

// IsDirty peeks the dirty flag without clearing it.
func (s *AsyncOpStats) IsDirty() bool { return s.dirty.Load() }

// StartPoll records the beginning of a poll against this async op.
func (s *AsyncOpStats) StartPoll(now time.Time) {
	s.lastPollStartedNanos.Store(now.UnixNano())
	s.currentPollsI64.Add(1)
	s.totalPolls.Add(1)
	s.markDirty()
}

// EndPoll records the end of a poll; returns false if no poll was open.
func (s *AsyncOpStats) EndPoll(now time.Time) bool {
	if s.currentPollsI64.Load() <= 0 {
		return false
	}
	s.currentPollsI64.Add(-1)

	if started := s.lastPollStartedNanos.Load(); started != 0 {
		if d := now.UnixNano() - started; d > 0 {
			s.busyNanos.Add(d)
			s.pollHist.Record(uint64(d))
		}
	}
	s.markDirty()
	return true
}

// CurrentPolls returns the number of in-flight polls.
func (s *AsyncOpStats) CurrentPolls() int64 { return s.currentPollsI64.Load() }

// TotalPolls returns the cumulative poll count.
func (s *AsyncOpStats) TotalPolls() uint64 { return s.totalPolls.Load() }

// UpdateAttribute applies an attribute update; returns false on a type
// mismatch against the existing attribute value.
func (s *AsyncOpStats) UpdateAttribute(u model.AttributeUpdate) bool {
	s.attrMu.Lock()
	ok := s.attributes.Apply(u)
	s.attrMu.Unlock()
	if ok {
		s.markDirty()
	}
	return ok
}

// Attributes returns a snapshot of the current attribute set.
func (s *AsyncOpStats) Attributes() []model.AttributeUpdate {
	s.attrMu.Lock()
	defer s.attrMu.Unlock()
	return s.attributes.Snapshot()
}

// PollHistogramSnapshot returns a snapshot of the poll-time histogram.
func (s *AsyncOpStats) PollHistogramSnapshot() Snapshot { return s.pollHist.Snapshot() }

// Drop marks the async op as dropped at now. Idempotent.
func (s *AsyncOpStats) Drop(now time.Time) {
	if s.dropped.Swap(true) {
		return
	}
	s.mu.Lock()
	s.droppedAt = now
	s.mu.Unlock()
	s.markDirty()
}

// IsDropped reports whether Drop has been called.
func (s *AsyncOpStats) IsDropped() bool { return s.dropped.Load() }

// DroppedAt returns the drop timestamp, locking only when dropped.
func (s *AsyncOpStats) DroppedAt() (time.Time, bool) {
	if !s.dropped.Load() {
		return time.Time{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.droppedAt, true
}

// CreatedAt returns the async op's creation timestamp.
func (s *AsyncOpStats) CreatedAt() time.Time { return s.createdAt }

// AsyncOpWireSnapshot is the decoded subset of proto.AsyncOpStats a
// client model applies here (spec §4.I).
type AsyncOpWireSnapshot struct {
	CreatedAt    time.Time
	DroppedAt    time.Time
	HasDroppedAt bool
	TotalPolls   uint64
	CurrentPolls int64
	Attributes   []model.AttributeUpdate
}

// NewAsyncOpStatsFromWire builds a client-side shadow AsyncOpStats from
// one decoded Update's stats_update entry.
func NewAsyncOpStatsFromWire(snap AsyncOpWireSnapshot) *AsyncOpStats {
	s := &AsyncOpStats{
		createdAt:  snap.CreatedAt,
		pollHist:   NewHistogram(DefaultPollHistogramMax, HistogramSigFigs),
		attributes: model.NewAttributeSet(),
	}
	s.ApplyWireSnapshot(snap)
	return s
}

// ApplyWireSnapshot overwrites s's counters and attribute set from a
// freshly decoded Update.
func (s *AsyncOpStats) ApplyWireSnapshot(snap AsyncOpWireSnapshot) {
	s.totalPolls.Store(snap.TotalPolls)
	s.currentPollsI64.Store(snap.CurrentPolls)
	s.attrMu.Lock()
	s.attributes = model.NewAttributeSet()
	for _, a := range snap.Attributes {
		s.attributes.Apply(a)
	}
	s.attrMu.Unlock()
	if snap.HasDroppedAt {
		s.dropped.Store(true)
		s.mu.Lock()
		s.droppedAt = snap.DroppedAt
		s.mu.Unlock()
	}
	s.markDirty()
}
