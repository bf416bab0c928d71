package linter

import (
	"time"

	"github.com/asyncwatch/console/internal/stats"
)

// TaskSet bundles the three canonical task linters (spec §4.K).
type TaskSet struct {
	SelfWake     *Linter[*stats.TaskStats]
	LostWaker    *Linter[*stats.TaskStats]
	NeverYielded *Linter[*stats.TaskStats]
}

// NewTaskSet builds the default set. selfWakePercent and neverYielded use
// the package defaults when zero.
func NewTaskSet(selfWakePercent float64, neverYielded time.Duration) *TaskSet {
	if selfWakePercent <= 0 {
		selfWakePercent = DefaultSelfWakePercent
	}
	if neverYielded <= 0 {
		neverYielded = DefaultNeverYieldedDuration
	}
	return &TaskSet{
		SelfWake:     New[*stats.TaskStats](newSelfWakePercent(selfWakePercent)),
		LostWaker:    New[*stats.TaskStats](lostWaker{}),
		NeverYielded: New[*stats.TaskStats](newNeverYielded(neverYielded)),
	}
}

// All returns the set's linters for iteration.
func (t *TaskSet) All() []*Linter[*stats.TaskStats] {
	return []*Linter[*stats.TaskStats]{t.SelfWake, t.LostWaker, t.NeverYielded}
}

// Warnings is the per-entity stash of currently-active warning handles
// (spec §4.I "re-run linters over every dirty entity and stash per-entity
// warnings"). Not safe for concurrent use; owned by one client-model
// entity.
type Warnings struct {
	handles map[*Linter[*stats.TaskStats]]*Handle[*stats.TaskStats]
}

// NewWarnings creates an empty stash.
func NewWarnings() *Warnings {
	return &Warnings{handles: make(map[*Linter[*stats.TaskStats]]*Handle[*stats.TaskStats])}
}

// Recheck runs every linter in set against s, acquiring or releasing
// handles as warnings appear or clear. A Recheck verdict leaves any
// existing handle untouched until a future call resolves it.
func (w *Warnings) Recheck(set *TaskSet, s *stats.TaskStats, now time.Time) {
	for _, l := range set.All() {
		result, handle := l.Check(s, now)
		switch result {
		case Warning:
			if old, ok := w.handles[l]; ok {
				old.Release()
			}
			w.handles[l] = handle
		case Ok:
			if old, ok := w.handles[l]; ok {
				old.Release()
				delete(w.handles, l)
			}
		case Recheck:
		}
	}
}

// Active returns the currently held handles.
func (w *Warnings) Active() []*Handle[*stats.TaskStats] {
	out := make([]*Handle[*stats.TaskStats], 0, len(w.handles))
	for _, h := range w.handles {
		out = append(out, h)
	}
	return out
}

// Messages formats every active warning against s.
func (w *Warnings) Messages(s *stats.TaskStats, now time.Time) []string {
	out := make([]string, 0, len(w.handles))
	for _, h := range w.handles {
		out = append(out, h.Format(s, now))
	}
	return out
}

// ReleaseAll releases every held handle, e.g. when the entity is removed
// from the client model.
func (w *Warnings) ReleaseAll() {
	for l, h := range w.handles {
		h.Release()
		delete(w.handles, l)
	}
}
