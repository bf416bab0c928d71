package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/asyncwatch/console/internal/model"
)

// ResourceStats holds the mutable state for one Resource: its lifecycle
// timestamps and its live attribute set (spec §3, §4.C).
type ResourceStats struct {
	dirty   atomic.Bool
	dropped atomic.Bool

	createdAt time.Time

	mu        sync.Mutex
	droppedAt time.Time

	attrMu     sync.Mutex
	attributes *model.AttributeSet
}

// NewResourceStats creates a fresh stats object for a resource created
// at now.
func NewResourceStats(now time.Time) *ResourceStats {
	s := &ResourceStats{
		createdAt:  now,
		attributes: model.NewAttributeSet(),
	}
	s.dirty.Store(true)
	return s
}

func (s *ResourceStats) markDirty() { s.dirty.Store(true) }

// TakeUnsent clears and returns the dirty flag.
func (s *ResourceStats) TakeUnsent() bool { return s.dirty.Swap(false) }

// IsDirty peeks the dirty flag without clearing it.
func (s *ResourceStats) IsDirty() bool { return s.dirty.Load() }

// UpdateAttribute applies an attribute update, returning false if the
// update's type conflicted with the attribute's existing type (the
// caller is expected to log and drop in that case, per spec §3).
func (s *ResourceStats) UpdateAttribute(u model.AttributeUpdate) bool {
	s.attrMu.Lock()
	ok := s.attributes.Apply(u)
	s.attrMu.Unlock()
	if ok {
		s.markDirty()
	}
	return ok
}

// Attributes returns a snapshot of the current attribute set.
func (s *ResourceStats) Attributes() []model.AttributeUpdate {
	s.attrMu.Lock()
	defer s.attrMu.Unlock()
	return s.attributes.Snapshot()
}

// Drop marks the resource as dropped at now. Idempotent.
func (s *ResourceStats) Drop(now time.Time) {
	if s.dropped.Swap(true) {
		return
	}
	s.mu.Lock()
	s.droppedAt = now
	s.mu.Unlock()
	s.markDirty()
}

// IsDropped reports whether Drop has been called.
func (s *ResourceStats) IsDropped() bool { return s.dropped.Load() }

// DroppedAt returns the drop timestamp, locking only when dropped.
func (s *ResourceStats) DroppedAt() (time.Time, bool) {
	if !s.dropped.Load() {
		return time.Time{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.droppedAt, true
}

// CreatedAt returns the resource's creation timestamp.
func (s *ResourceStats) CreatedAt() time.Time { return s.createdAt }

// ResourceWireSnapshot is the decoded subset of proto.ResourceStats a
// client model applies here (spec §4.I), mirroring stats.WireSnapshot
// for tasks.
type ResourceWireSnapshot struct {
	CreatedAt    time.Time
	DroppedAt    time.Time
	HasDroppedAt bool
	Attributes   []model.AttributeUpdate
}

// NewResourceStatsFromWire builds a client-side shadow ResourceStats
// from one decoded Update's stats_update entry.
func NewResourceStatsFromWire(snap ResourceWireSnapshot) *ResourceStats {
	s := &ResourceStats{createdAt: snap.CreatedAt, attributes: model.NewAttributeSet()}
	s.ApplyWireSnapshot(snap)
	return s
}

// ApplyWireSnapshot overwrites s's attribute set and drop state from a
// freshly decoded Update.
func (s *ResourceStats) ApplyWireSnapshot(snap ResourceWireSnapshot) {
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
