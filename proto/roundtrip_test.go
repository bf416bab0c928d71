package proto_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/asyncwatch/console/proto"
	"github.com/asyncwatch/console/proto/jsoncodec"
)

func u64p(v uint64) *uint64 { return &v }

// TestUpdateRoundTrip encodes a fully-populated Update (every entity
// kind, optional pointer fields present, nested timestamps/durations)
// through the wire codec and decodes it back, checking field-for-field
// identity (spec §8 "Round-trips").
func TestUpdateRoundTrip(t *testing.T) {
	now := timestamppb.New(time.Unix(1700000000, 123456789))
	createdAt := timestamppb.New(time.Unix(1699999990, 0))
	droppedAt := timestamppb.New(time.Unix(1699999999, 0))

	original := &proto.Update{
		Now: now,
		NewMetadata: []proto.Metadata{
			{
				ID:         1,
				Name:       "runtime.spawn",
				Target:     "tokio::task",
				Location:   proto.Location{File: "src/lib.rs", Module: "tokio", Line: 42},
				Level:      proto.LevelInfo,
				Kind:       proto.KindSpan,
				FieldNames: []string{"task.name", "kind"},
			},
		},
		TaskUpdate: &proto.TaskUpdate{
			NewTasks: []proto.Task{
				{
					ID:       1,
					MetaID:   1,
					Kind:     proto.TaskSpawn,
					Location: proto.Location{File: "src/lib.rs", Line: 10},
					Fields: []proto.Field{
						{Name: "task.name", Value: proto.FieldValue{Kind: proto.FieldString, S: "w"}, MetaID: 1},
					},
					Name:      "w",
					ParentIDs: []uint64{7},
				},
			},
			StatsUpdate: map[uint64]proto.TaskStats{
				1: {
					CreatedAt:       createdAt,
					DroppedAt:       droppedAt,
					TotalPolls:      5,
					CurrentPolls:    0,
					Wakes:           2,
					SelfWakes:       1,
					WakerClones:     1,
					WakerDrops:      2,
					LastWake:        droppedAt,
					FirstPoll:       createdAt,
					LastPollStarted: createdAt,
					LastPollEnded:   droppedAt,
					Busy:            durationpb.New(50 * time.Millisecond),
					Scheduled:       durationpb.New(5 * time.Millisecond),
				},
			},
			DroppedEvents: 3,
		},
		ResourceUpdate: &proto.ResourceUpdate{
			NewResources: []proto.Resource{
				{
					ID:           2,
					ParentID:     u64p(99),
					MetaID:       2,
					Kind:         proto.ResourceKind{Known: true, Name: "Timer"},
					ConcreteType: "tokio::time::Sleep",
					Location:     proto.Location{File: "src/time.rs", Line: 5},
					Visibility:   proto.VisibilityPublic,
				},
			},
			StatsUpdate: map[uint64]proto.ResourceStats{
				2: {
					CreatedAt: createdAt,
					Attributes: []proto.Attribute{
						{Key: "duration", Value: proto.FieldValue{Kind: proto.FieldU64, U: 1000}, Unit: "ms", Op: proto.AttrOverride},
					},
				},
			},
			NewPollOps: []proto.PollOp{
				{MetaID: 3, ResourceID: 2, OpName: "poll_elapsed", AsyncOpID: u64p(4), TaskID: u64p(1), IsReady: true},
			},
			DroppedEvents: 0,
		},
		AsyncOpUpdate: &proto.AsyncOpUpdate{
			NewAsyncOps: []proto.AsyncOp{
				{ID: 4, ParentID: nil, ResourceID: 2, Source: "Sleep::poll", MetaID: 3},
			},
			StatsUpdate: map[uint64]proto.AsyncOpStats{
				4: {CreatedAt: createdAt, TaskID: u64p(1), TotalPolls: 2, CurrentPolls: 0},
			},
			DroppedEvents: 1,
		},
	}

	codec := jsoncodec.Codec{}
	wire, err := codec.Marshal(original)
	require.NoError(t, err)

	var decoded proto.Update
	require.NoError(t, codec.Unmarshal(wire, &decoded))

	requireUpdateEqual(t, original, &decoded)
}

// TestTaskDetailsRoundTrip covers the histogram-bearing message
// separately sent over WatchTaskDetails.
func TestTaskDetailsRoundTrip(t *testing.T) {
	now := timestamppb.New(time.Unix(1700000000, 0))
	original := &proto.TaskDetails{
		TaskID: 1,
		Now:    now,
		PollTimesHistogram: &proto.DurationHistogram{
			RawHistogram:   []byte{0x01, 0x02, 0x03},
			BucketBounds:   []uint64{0, 100, 1000},
			Buckets:        []uint64{5, 3, 1},
			MaxValue:       1000,
			HighOutliers:   1,
			HighestOutlier: u64p(5000),
		},
		ScheduledTimesHistogram: &proto.DurationHistogram{
			BucketBounds: []uint64{0, 50},
			Buckets:      []uint64{10, 2},
			MaxValue:     50,
		},
	}

	codec := jsoncodec.Codec{}
	wire, err := codec.Marshal(original)
	require.NoError(t, err)

	var decoded proto.TaskDetails
	require.NoError(t, codec.Unmarshal(wire, &decoded))

	require.Equal(t, original.TaskID, decoded.TaskID)
	require.True(t, original.Now.AsTime().Equal(decoded.Now.AsTime()))
	require.Equal(t, original.PollTimesHistogram.RawHistogram, decoded.PollTimesHistogram.RawHistogram)
	require.Equal(t, original.PollTimesHistogram.BucketBounds, decoded.PollTimesHistogram.BucketBounds)
	require.Equal(t, original.PollTimesHistogram.Buckets, decoded.PollTimesHistogram.Buckets)
	require.Equal(t, original.PollTimesHistogram.MaxValue, decoded.PollTimesHistogram.MaxValue)
	require.Equal(t, original.PollTimesHistogram.HighOutliers, decoded.PollTimesHistogram.HighOutliers)
	require.Equal(t, *original.PollTimesHistogram.HighestOutlier, *decoded.PollTimesHistogram.HighestOutlier)
	require.Nil(t, decoded.ScheduledTimesHistogram.HighestOutlier)
}

func requireUpdateEqual(t *testing.T, want, got *proto.Update) {
	t.Helper()
	require.True(t, want.Now.AsTime().Equal(got.Now.AsTime()))
	require.Equal(t, want.NewMetadata, got.NewMetadata)

	require.Equal(t, want.TaskUpdate.NewTasks, got.TaskUpdate.NewTasks)
	require.Equal(t, want.TaskUpdate.DroppedEvents, got.TaskUpdate.DroppedEvents)
	require.Len(t, got.TaskUpdate.StatsUpdate, len(want.TaskUpdate.StatsUpdate))
	for id, ws := range want.TaskUpdate.StatsUpdate {
		gs, ok := got.TaskUpdate.StatsUpdate[id]
		require.True(t, ok)
		require.True(t, ws.CreatedAt.AsTime().Equal(gs.CreatedAt.AsTime()))
		require.True(t, ws.DroppedAt.AsTime().Equal(gs.DroppedAt.AsTime()))
		require.True(t, ws.LastWake.AsTime().Equal(gs.LastWake.AsTime()))
		require.Equal(t, ws.TotalPolls, gs.TotalPolls)
		require.Equal(t, ws.Wakes, gs.Wakes)
		require.Equal(t, ws.SelfWakes, gs.SelfWakes)
		require.Equal(t, ws.WakerClones, gs.WakerClones)
		require.Equal(t, ws.WakerDrops, gs.WakerDrops)
		require.Equal(t, ws.Busy.AsDuration(), gs.Busy.AsDuration())
		require.Equal(t, ws.Scheduled.AsDuration(), gs.Scheduled.AsDuration())
	}

	require.Equal(t, want.ResourceUpdate.NewResources, got.ResourceUpdate.NewResources)
	require.Equal(t, want.ResourceUpdate.NewPollOps, got.ResourceUpdate.NewPollOps)
	require.Equal(t, want.ResourceUpdate.DroppedEvents, got.ResourceUpdate.DroppedEvents)
	require.Len(t, got.ResourceUpdate.StatsUpdate, len(want.ResourceUpdate.StatsUpdate))
	for id, ws := range want.ResourceUpdate.StatsUpdate {
		gs, ok := got.ResourceUpdate.StatsUpdate[id]
		require.True(t, ok)
		require.True(t, ws.CreatedAt.AsTime().Equal(gs.CreatedAt.AsTime()))
		require.Equal(t, ws.Attributes, gs.Attributes)
	}

	require.Equal(t, want.AsyncOpUpdate.NewAsyncOps, got.AsyncOpUpdate.NewAsyncOps)
	require.Equal(t, want.AsyncOpUpdate.DroppedEvents, got.AsyncOpUpdate.DroppedEvents)
	require.Len(t, got.AsyncOpUpdate.StatsUpdate, len(want.AsyncOpUpdate.StatsUpdate))
	for id, ws := range want.AsyncOpUpdate.StatsUpdate {
		gs, ok := got.AsyncOpUpdate.StatsUpdate[id]
		require.True(t, ok)
		require.True(t, ws.CreatedAt.AsTime().Equal(gs.CreatedAt.AsTime()))
		require.Equal(t, *ws.TaskID, *gs.TaskID)
		require.Equal(t, ws.TotalPolls, gs.TotalPolls)
	}
}
