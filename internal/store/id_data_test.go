package store

import (
	"testing"
	"time"

	"github.com/asyncwatch/console/internal/ids"
	"github.com/asyncwatch/console/internal/stats"
	"github.com/stretchr/testify/require"
)

func TestIdDataSinceLastUpdateDrainsOnlyDirtyOnce(t *testing.T) {
	d := NewIdData[*stats.TaskStats](64)
	id := ids.ID{Kind: ids.KindTask, Value: 0}

	now := time.Unix(0, 0)
	d.Insert(id, stats.NewTaskStats(now))

	first := d.SinceLastUpdate()
	require.Len(t, first, 1, "a freshly inserted entity is dirty")

	second := d.SinceLastUpdate()
	require.Empty(t, second, "nothing changed since the last drain")

	s, ok := d.Get(id)
	require.True(t, ok)
	s.StartPoll(now)

	third := d.SinceLastUpdate()
	require.Len(t, third, 1, "mutating the stats object marks it dirty again")
}

func TestIdDataAllIgnoresDirtyState(t *testing.T) {
	d := NewIdData[*stats.TaskStats](64)
	id := ids.ID{Kind: ids.KindTask, Value: 0}
	d.Insert(id, stats.NewTaskStats(time.Unix(0, 0)))
	d.SinceLastUpdate() // clear the dirty bit

	all := d.All()
	require.Len(t, all, 1, "All() must include entries even when not dirty")
}

func TestDropClosedRetainsDirtyDroppedEntityWhileWatched(t *testing.T) {
	statsStore := NewIdData[*stats.TaskStats](64)
	staticStore := NewIdData[*Record[string]](32)

	id := ids.ID{Kind: ids.KindTask, Value: 0}
	created := time.Unix(0, 0)
	s := stats.NewTaskStats(created)
	statsStore.Insert(id, s)
	staticStore.Insert(id, NewRecord("w"))

	droppedAt := created.Add(100 * time.Millisecond)
	s.Drop(droppedAt)

	past := droppedAt.Add(2 * time.Second)
	DropClosed(statsStore, staticStore, past, time.Second, true)

	_, stillThere := statsStore.Get(id)
	require.True(t, stillThere, "dirty dropped entity must survive while watched")

	s.TakeUnsent() // simulate a publish having sent the final state
	DropClosed(statsStore, staticStore, past, time.Second, true)

	_, gone := statsStore.Get(id)
	require.False(t, gone)
	_, staticGone := staticStore.Get(id)
	require.False(t, staticGone, "static record must be purged once stats are gone")
}

func TestDropClosedKeepsEntityWithinRetentionWindow(t *testing.T) {
	statsStore := NewIdData[*stats.TaskStats](64)
	id := ids.ID{Kind: ids.KindTask, Value: 0}
	s := stats.NewTaskStats(time.Unix(0, 0))
	statsStore.Insert(id, s)
	s.Drop(time.Unix(0, 0))
	s.TakeUnsent()

	DropClosed[*stats.TaskStats, struct{}](statsStore, NewIdData[*Record[struct{}]](8), time.Unix(0, 0).Add(500*time.Millisecond), time.Second, false)

	_, ok := statsStore.Get(id)
	require.True(t, ok, "entity within the retention window must not be purged")
}
