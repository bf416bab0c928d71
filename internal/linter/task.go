package linter

import (
	"fmt"
	"time"

	"github.com/asyncwatch/console/internal/stats"
)

// selfWakePercent flags tasks that wake themselves more than minPercent
// of the time (spec §4.K).
type selfWakePercent struct {
	minPercent float64
	summary    string
}

// DefaultSelfWakePercent is tokio-console's default threshold.
const DefaultSelfWakePercent = 50.0

func newSelfWakePercent(minPercent float64) *selfWakePercent {
	return &selfWakePercent{
		minPercent: minPercent,
		summary:    fmt.Sprintf("tasks have woken themselves over %.0f%% of the time", minPercent),
	}
}

func (w *selfWakePercent) Summary() string { return w.summary }

func (w *selfWakePercent) Check(s *stats.TaskStats, _ time.Time) CheckOutcome {
	return Match(s.SelfWakePercent() > w.minPercent)
}

func (w *selfWakePercent) Format(s *stats.TaskStats, _ time.Time) string {
	return fmt.Sprintf("This task has woken itself for more than %.0f%% of its total wakeups (%.0f%%)",
		w.minPercent, s.SelfWakePercent())
}

// lostWaker flags a task with no outstanding waker that is neither
// completed, running, nor pending a scheduler run: it will never be
// polled again.
type lostWaker struct{}

func (lostWaker) Summary() string { return "tasks have lost their waker" }

func (lostWaker) Check(s *stats.TaskStats, _ time.Time) CheckOutcome {
	return Match(!s.IsDropped() && s.WakerCount() == 0 && !s.IsRunning() && !s.IsAwakened())
}

func (lostWaker) Format(*stats.TaskStats, time.Time) string {
	return "This task has lost its waker, and will never be woken again."
}

// neverYielded flags a task that is still on its first poll and has
// been busy for at least minDuration without yielding.
type neverYielded struct {
	minDuration time.Duration
	summary     string
}

// DefaultNeverYieldedDuration is tokio-console's default threshold.
const DefaultNeverYieldedDuration = time.Second

func newNeverYielded(minDuration time.Duration) *neverYielded {
	return &neverYielded{
		minDuration: minDuration,
		summary:     fmt.Sprintf("tasks have never yielded (threshold %s)", minDuration),
	}
}

func (w *neverYielded) Summary() string { return w.summary }

func (w *neverYielded) Check(s *stats.TaskStats, now time.Time) CheckOutcome {
	if !s.IsRunning() {
		return Match(false)
	}
	if s.TotalPolls() > 1 {
		return Match(false)
	}
	if s.Busy(now) >= w.minDuration {
		return Match(true)
	}
	return NeedsRecheck()
}

func (w *neverYielded) Format(s *stats.TaskStats, now time.Time) string {
	return fmt.Sprintf("This task has never yielded (%s)", s.Busy(now))
}
