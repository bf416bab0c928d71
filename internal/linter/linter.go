// Package linter implements the warning/lint hooks (spec §4.K): visitors
// over an entity returning Ok, Warning(handle), or Recheck, following the
// Warn/Lint/Linter split tokio-console's warnings.rs uses. A Linter wraps
// one Warn implementation and tracks how many entities currently hold a
// live Handle for it; that count is the warning's population.
package linter

import (
	"sync/atomic"
	"time"
)

// CheckOutcome is a Warn implementation's verdict for one entity.
type CheckOutcome struct {
	recheck bool
	matches bool
}

// Match reports whether the condition holds for the checked entity.
func Match(matches bool) CheckOutcome { return CheckOutcome{matches: matches} }

// NeedsRecheck indicates the condition can't yet be evaluated (e.g. not
// enough elapsed time) and should be retried on the next pass.
func NeedsRecheck() CheckOutcome { return CheckOutcome{recheck: true} }

// Warn implements the detection and messaging logic for one warning
// type over entities of type T. now is the model's recorded time, not
// wall-clock, so a replayed session lints against the time the events
// actually happened rather than whenever the replay happens to run.
type Warn[T any] interface {
	// Check reports whether the warning applies to val as of now.
	Check(val T, now time.Time) CheckOutcome
	// Format describes the warning for this specific val. Only called
	// when Check(val, now) last reported a match.
	Format(val T, now time.Time) string
	// Summary is a sentence fragment suitable to follow a population
	// count, e.g. "tasks have woken themselves over 50% of the time".
	Summary() string
}

// Result is the outcome of running a Linter against one entity.
type Result int

const (
	// Ok means the warning does not currently apply.
	Ok Result = iota
	// Warning means the warning applies; a Handle was returned.
	Warning
	// Recheck means the condition could not yet be evaluated.
	Recheck
)

// Linter wraps a Warn implementation and counts live Handles, giving the
// number of entities currently exhibiting the warning.
type Linter[T any] struct {
	warn  Warn[T]
	count atomic.Int64
}

// New wraps warn in a Linter.
func New[T any](warn Warn[T]) *Linter[T] {
	return &Linter[T]{warn: warn}
}

// Check evaluates the linter against val. On Warning, the returned
// Handle must eventually be released by the caller (typically when the
// entity stops exhibiting the warning or is removed from the model).
func (l *Linter[T]) Check(val T, now time.Time) (Result, *Handle[T]) {
	o := l.warn.Check(val, now)
	switch {
	case o.recheck:
		return Recheck, nil
	case !o.matches:
		return Ok, nil
	default:
		l.count.Add(1)
		return Warning, &Handle[T]{linter: l}
	}
}

// Count returns the number of entities currently holding a live Handle
// for this linter.
func (l *Linter[T]) Count() int64 { return l.count.Load() }

// Summary returns the linter's general description.
func (l *Linter[T]) Summary() string { return l.warn.Summary() }

// Handle is held by an entity for as long as it exhibits a warning. It
// must be released exactly once, either when the entity's warning
// condition clears on recheck or when the entity itself is dropped from
// the model.
type Handle[T any] struct {
	linter   *Linter[T]
	released atomic.Bool
}

// Format renders the warning message for val using the handle's linter.
func (h *Handle[T]) Format(val T, now time.Time) string { return h.linter.warn.Format(val, now) }

// Summary returns the handle's linter's general description.
func (h *Handle[T]) Summary() string { return h.linter.Summary() }

// Release decrements the linter's live count. Idempotent.
func (h *Handle[T]) Release() {
	if h.released.CompareAndSwap(false, true) {
		h.linter.count.Add(-1)
	}
}
