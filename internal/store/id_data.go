package store

import (
	"time"

	"github.com/asyncwatch/console/internal/ids"
)

// Unsent is satisfied by anything IdData can track the dirty-flag
// protocol for. Stats types (stats.TaskStats etc.) already implement it
// directly since their internal atomic dirty bit is the real source of
// truth; static records are wrapped in a Record to get the same
// interface for free.
type Unsent interface {
	TakeUnsent() bool
}

// Record wraps an immutable static value (a model.Task, model.Resource,
// ...) with the "unsent since insert" bit static records need: unlike a
// stats object, a static record never changes after creation, so its
// only dirty transition is the insert itself.
type Record[T any] struct {
	Value T
	sent  bool
}

// NewRecord wraps v as a freshly inserted, unsent record.
func NewRecord[T any](v T) *Record[T] { return &Record[T]{Value: v} }

// TakeUnsent reports whether this is the first observation of the
// record and marks it observed.
func (r *Record[T]) TakeUnsent() bool {
	if r.sent {
		return false
	}
	r.sent = true
	return true
}

// Pair is one (id, value) result from SinceLastUpdate or All.
type Pair[T any] struct {
	ID    ids.ID
	Value T
}

// IdData layers the dirty-flag protocol over a ShrinkMap keyed by
// sequential ID (spec §4.D): insert marks an item unsent, SinceLastUpdate
// drains exactly the items that became dirty since the last call, and
// All ignores dirty state entirely for the initial-snapshot case.
type IdData[T Unsent] struct {
	m *ShrinkMap[ids.ID, T]
}

// NewIdData creates an empty IdData. elemSize estimates one entry's
// resident size for the amortized-shrink heuristic.
func NewIdData[T Unsent](elemSize int) *IdData[T] {
	return &IdData[T]{m: NewShrinkMap[ids.ID, T](elemSize)}
}

// Insert adds or replaces the entry for id.
func (d *IdData[T]) Insert(id ids.ID, v T) { d.m.Set(id, v) }

// Get returns the entry for id.
func (d *IdData[T]) Get(id ids.ID) (T, bool) { return d.m.Get(id) }

// Delete removes id unconditionally.
func (d *IdData[T]) Delete(id ids.ID) { d.m.Delete(id) }

// Len reports the number of entries.
func (d *IdData[T]) Len() int { return d.m.Len() }

// SinceLastUpdate returns every entry whose TakeUnsent() reports true,
// i.e. every entry that is new or has been mutated since the last call.
func (d *IdData[T]) SinceLastUpdate() []Pair[T] {
	var out []Pair[T]
	d.m.Range(func(id ids.ID, v T) bool {
		if v.TakeUnsent() {
			out = append(out, Pair[T]{ID: id, Value: v})
		}
		return true
	})
	return out
}

// All returns every entry regardless of dirty state, for the initial
// snapshot sent to a newly attached subscriber.
func (d *IdData[T]) All() []Pair[T] {
	out := make([]Pair[T], 0, d.m.Len())
	d.m.Range(func(id ids.ID, v T) bool {
		out = append(out, Pair[T]{ID: id, Value: v})
		return true
	})
	return out
}

// Range iterates every entry without consuming its dirty bit.
func (d *IdData[T]) Range(fn func(ids.ID, T) bool) { d.m.Range(fn) }

// Droppable is satisfied by stats types whose lifecycle can be examined
// for drop_closed purging: their drop timestamp and a peek (not
// take) at whether they still carry unpublished data.
type Droppable interface {
	Unsent
	IsDropped() bool
	DroppedAt() (time.Time, bool)
	IsDirty() bool
}

// DropClosed removes dropped entities from statsStore once they've aged
// past retention, then purges staticStore of any id no longer present
// in statsStore (spec §4.D). While hasWatchers is true, a dropped entity
// that is still dirty (its final state hasn't been published yet) is
// kept one more cycle so every watcher observes its terminal state.
func DropClosed[S Droppable, T any](statsStore *IdData[S], staticStore *IdData[T], now time.Time, retention time.Duration, hasWatchers bool) {
	var toRemove []ids.ID
	statsStore.Range(func(id ids.ID, s S) bool {
		if !s.IsDropped() {
			return true
		}
		droppedAt, ok := s.DroppedAt()
		if !ok || now.Sub(droppedAt) <= retention {
			return true
		}
		if hasWatchers && s.IsDirty() {
			return true
		}
		toRemove = append(toRemove, id)
		return true
	})
	for _, id := range toRemove {
		statsStore.Delete(id)
	}

	var orphaned []ids.ID
	staticStore.Range(func(id ids.ID, _ T) bool {
		if _, ok := statsStore.Get(id); !ok {
			orphaned = append(orphaned, id)
		}
		return true
	})
	for _, id := range orphaned {
		staticStore.Delete(id)
	}
}
