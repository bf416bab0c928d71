package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTaskStatsPollAccounting(t *testing.T) {
	now := time.Unix(0, 1000)
	s := NewTaskStats(now)
	require.True(t, s.TakeUnsent(), "newly created stats start dirty")
	require.False(t, s.TakeUnsent(), "second take sees it already cleared")

	s.StartPoll(now)
	require.Equal(t, int64(1), s.CurrentPolls())

	ended := now.Add(50 * time.Microsecond)
	require.True(t, s.EndPoll(ended))
	require.Equal(t, int64(0), s.CurrentPolls())
	require.Equal(t, uint64(1), s.TotalPolls())
	require.Equal(t, 50*time.Microsecond, s.Busy(ended))
	require.True(t, s.TakeUnsent())
}

func TestTaskStatsEndPollWithoutStartIsNoop(t *testing.T) {
	s := NewTaskStats(time.Unix(0, 0))
	s.TakeUnsent()
	require.False(t, s.EndPoll(time.Unix(0, 1)))
}

func TestTaskStatsWakeAccounting(t *testing.T) {
	now := time.Unix(0, 0)
	s := NewTaskStats(now)
	s.TakeUnsent()

	s.WakerClone()
	s.Wake(now, true)
	s.WakeByRef(now, false)

	wakes, selfWakes, clones, drops := s.Totals()
	require.Equal(t, uint64(2), wakes)
	require.Equal(t, uint64(1), selfWakes)
	require.Equal(t, uint64(1), clones)
	require.Equal(t, uint64(1), drops, "Wake() implicitly drops the waker it consumed")
	require.InDelta(t, 50.0, s.SelfWakePercent(), 0.001)
}

func TestTaskStatsScheduledDurationBetweenWakeAndPoll(t *testing.T) {
	start := time.Unix(0, 0)
	s := NewTaskStats(start)
	s.TakeUnsent()

	wakeAt := start.Add(10 * time.Millisecond)
	s.Wake(wakeAt, false)

	pollAt := wakeAt.Add(5 * time.Millisecond)
	s.StartPoll(pollAt)

	require.Equal(t, 5*time.Millisecond, s.Scheduled())
}

func TestTaskStatsDropIsIdempotent(t *testing.T) {
	s := NewTaskStats(time.Unix(0, 0))
	s.TakeUnsent()

	_, ok := s.DroppedAt()
	require.False(t, ok)

	first := time.Unix(100, 0)
	s.Drop(first)
	s.Drop(time.Unix(200, 0))

	at, ok := s.DroppedAt()
	require.True(t, ok)
	require.Equal(t, first, at)
}

func TestTaskStatsWakerCountNeverNegative(t *testing.T) {
	s := NewTaskStats(time.Unix(0, 0))
	for i := 0; i < 5; i++ {
		s.WakerDrop()
	}
	require.GreaterOrEqual(t, s.WakerCount(), int64(0))
}
