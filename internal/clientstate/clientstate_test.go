package clientstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/asyncwatch/console/internal/linter"
	"github.com/asyncwatch/console/proto"
)

func taskUpdate(now time.Time, id uint64, name string, totalPolls uint64) *proto.Update {
	return &proto.Update{
		Now: timestamppb.New(now),
		TaskUpdate: &proto.TaskUpdate{
			NewTasks: []proto.Task{{ID: id, Name: name}},
			StatsUpdate: map[uint64]proto.TaskStats{
				id: {CreatedAt: timestamppb.New(now), TotalPolls: totalPolls},
			},
		},
	}
}

func TestApplyUpdateTracksNewTask(t *testing.T) {
	m := New()
	now := time.Now()

	m.ApplyUpdate(taskUpdate(now, 1, "worker", 0))

	tasks := m.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "worker", tasks[0].Value.Value.Name)

	st, ok := m.TaskStats(tasks[0].ID)
	require.True(t, ok)
	assert.Equal(t, uint64(0), st.TotalPolls())
}

func TestApplyUpdateMergesStatsForExistingTask(t *testing.T) {
	m := New()
	now := time.Now()

	m.ApplyUpdate(taskUpdate(now, 1, "worker", 3))
	m.ApplyUpdate(&proto.Update{
		Now: timestamppb.New(now.Add(time.Second)),
		TaskUpdate: &proto.TaskUpdate{
			StatsUpdate: map[uint64]proto.TaskStats{
				1: {CreatedAt: timestamppb.New(now), TotalPolls: 7},
			},
		},
	})

	tasks := m.Tasks()
	require.Len(t, tasks, 1)
	st, ok := m.TaskStats(tasks[0].ID)
	require.True(t, ok)
	assert.Equal(t, uint64(7), st.TotalPolls())
}

func TestNewSinceOnlyTracksWhileHidden(t *testing.T) {
	m := New()
	now := time.Now()

	m.SetVisibility(KindTask, false)
	m.ApplyUpdate(taskUpdate(now, 1, "a", 0))
	m.ApplyUpdate(taskUpdate(now, 2, "b", 0))

	assert.Len(t, m.NewSince(KindTask), 2)

	m.SetVisibility(KindTask, true)
	assert.Empty(t, m.NewSince(KindTask))

	m.SetVisibility(KindTask, false)
	m.ApplyUpdate(taskUpdate(now, 3, "c", 0))
	assert.Len(t, m.NewSince(KindTask), 1)
}

func TestDroppedEventCountsAccumulate(t *testing.T) {
	m := New()
	now := time.Now()

	m.ApplyUpdate(&proto.Update{
		Now:        timestamppb.New(now),
		TaskUpdate: &proto.TaskUpdate{DroppedEvents: 2},
	})
	m.ApplyUpdate(&proto.Update{
		Now:        timestamppb.New(now),
		TaskUpdate: &proto.TaskUpdate{DroppedEvents: 3},
	})

	dropped, _, _ := m.DroppedEventCounts()
	assert.Equal(t, uint64(5), dropped)
}

func TestRerunLintersNoWarningsForQuietTask(t *testing.T) {
	m := NewWithLinters(linter.NewTaskSet(50, 0))
	now := time.Now()

	m.ApplyUpdate(taskUpdate(now, 1, "spinner", 0))
	tasks := m.Tasks()
	require.Len(t, tasks, 1)

	// One task's linter state is seeded on creation (zero wakes counts as
	// 0% self-wake, never a warning); this only checks Warnings doesn't
	// panic for a task with no warnings recorded yet.
	assert.Empty(t, m.Warnings(tasks[0].ID))
}

func TestPruneIsNoopWhilePaused(t *testing.T) {
	m := New()
	now := time.Now()
	m.ApplyUpdate(&proto.Update{
		Now: timestamppb.New(now),
		TaskUpdate: &proto.TaskUpdate{
			NewTasks: []proto.Task{{ID: 1, Name: "done"}},
			StatsUpdate: map[uint64]proto.TaskStats{
				1: {CreatedAt: timestamppb.New(now.Add(-3 * time.Hour)), DroppedAt: timestamppb.New(now.Add(-2 * time.Hour))},
			},
		},
	})

	m.SetPaused(true)
	assert.True(t, m.Paused())
	m.Prune(time.Hour) // the task was dropped 2h ago, past the 1h retention
	assert.Len(t, m.Tasks(), 1, "Prune must not purge anything while paused")
}
