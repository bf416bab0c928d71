package linter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asyncwatch/console/internal/stats"
)

func TestSelfWakePercent(t *testing.T) {
	now := time.Now()

	t.Run("over default threshold warns", func(t *testing.T) {
		s := stats.NewTaskStats(now)
		for i := 0; i < 10; i++ {
			s.Wake(now, i < 6) // 6 of 10 wakes are self-wakes -> 60%
		}

		l := New[*stats.TaskStats](newSelfWakePercent(DefaultSelfWakePercent))
		result, handle := l.Check(s, now)
		require.Equal(t, Warning, result)
		require.NotNil(t, handle)
		assert.EqualValues(t, 1, l.Count())
		assert.Contains(t, handle.Format(s, now), "60%")
	})

	t.Run("under a raised threshold is ok", func(t *testing.T) {
		s := stats.NewTaskStats(now)
		for i := 0; i < 10; i++ {
			s.Wake(now, i < 6)
		}

		l := New[*stats.TaskStats](newSelfWakePercent(70))
		result, handle := l.Check(s, now)
		assert.Equal(t, Ok, result)
		assert.Nil(t, handle)
		assert.EqualValues(t, 0, l.Count())
	})
}

func TestLostWaker(t *testing.T) {
	now := time.Now()
	s := stats.NewTaskStats(now)

	result, _ := New[*stats.TaskStats](lostWaker{}).Check(s, now)
	assert.Equal(t, Ok, result, "a task with the implicit +1 waker reference hasn't lost it")

	s.WakerClone()
	s.WakerDrop()
	s.WakerDrop() // now below the implicit +1 baseline

	l := New[*stats.TaskStats](lostWaker{})
	result, handle := l.Check(s, now)
	require.Equal(t, Warning, result)
	assert.Contains(t, handle.Format(s, now), "lost its waker")
}

func TestNeverYielded(t *testing.T) {
	t.Run("recheck while under threshold", func(t *testing.T) {
		now := time.Now()
		s := stats.NewTaskStats(now)
		s.StartPoll(now)

		l := New[*stats.TaskStats](newNeverYielded(time.Minute))
		result, handle := l.Check(s, now)
		assert.Equal(t, Recheck, result)
		assert.Nil(t, handle)
	})

	t.Run("warns once busy exceeds threshold", func(t *testing.T) {
		now := time.Now()
		s := stats.NewTaskStats(now)
		s.StartPoll(now.Add(-2 * time.Second))

		l := New[*stats.TaskStats](newNeverYielded(time.Second))
		result, handle := l.Check(s, now)
		require.Equal(t, Warning, result)
		assert.Contains(t, handle.Format(s, now), "never yielded")
	})

	t.Run("ok once the task has yielded", func(t *testing.T) {
		now := time.Now()
		s := stats.NewTaskStats(now)
		s.StartPoll(now.Add(-2 * time.Second))
		s.EndPoll(now)
		s.StartPoll(now)
		s.EndPoll(now)

		result, _ := New[*stats.TaskStats](newNeverYielded(time.Second)).Check(s, now)
		assert.Equal(t, Ok, result)
	})
}

func TestHandleReleaseIsIdempotent(t *testing.T) {
	now := time.Now()
	s := stats.NewTaskStats(now)
	for i := 0; i < 10; i++ {
		s.Wake(now, true)
	}

	l := New[*stats.TaskStats](newSelfWakePercent(DefaultSelfWakePercent))
	_, handle := l.Check(s, now)
	require.EqualValues(t, 1, l.Count())

	handle.Release()
	handle.Release()
	assert.EqualValues(t, 0, l.Count())
}

func TestWarningsRecheckTracksSet(t *testing.T) {
	now := time.Now()
	s := stats.NewTaskStats(now)
	for i := 0; i < 10; i++ {
		s.Wake(now, true)
	}

	set := NewTaskSet(0, 0)
	w := NewWarnings()
	w.Recheck(set, s, now)
	assert.Len(t, w.Active(), 1)
	assert.EqualValues(t, 1, set.SelfWake.Count())

	// self_wake_percent stays monotonic once wakes exist, but waker_drop
	// brings the waker below its implicit baseline, so lost_waker should
	// join once the task is neither running nor awakened.
	s.WakerDrop()
	w.Recheck(set, s, now)
	assert.GreaterOrEqual(t, len(w.Active()), 1)

	w.ReleaseAll()
	assert.Len(t, w.Active(), 0)
	assert.EqualValues(t, 0, set.SelfWake.Count())
}
