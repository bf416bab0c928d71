package aggregator

import (
	"time"

	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/asyncwatch/console/internal/ids"
	"github.com/asyncwatch/console/internal/model"
	"github.com/asyncwatch/console/internal/stats"
	"github.com/asyncwatch/console/proto"
)

func encodeLocation(l model.Location) proto.Location {
	return proto.Location{File: l.File, Module: l.Module, Line: l.Line}
}

func encodeMetadata(m *model.Metadata) proto.Metadata {
	return proto.Metadata{
		ID:         uint64(m.ID),
		Name:       m.Name,
		Target:     m.Target,
		Location:   encodeLocation(m.Location),
		Level:      proto.Level(m.Level),
		Kind:       proto.Kind(m.Kind),
		FieldNames: m.FieldNames,
	}
}

func encodeFieldValue(v model.FieldValue) proto.FieldValue {
	return proto.FieldValue{Kind: proto.FieldValueKind(v.Kind), B: v.B, I: v.I, U: v.U, S: v.S}
}

func encodeFields(fields []model.Field) []proto.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]proto.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, proto.Field{
			Name:   f.Name.Resolve(nil),
			Value:  encodeFieldValue(f.Value),
			MetaID: uint64(f.MetaID),
		})
	}
	return out
}

func idList(ids []ids.ID) []uint64 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Value)
	}
	return out
}

func idPtr(id *ids.ID) *uint64 {
	if id == nil {
		return nil
	}
	v := id.Value
	return &v
}

func encodeTask(t *model.Task) proto.Task {
	return proto.Task{
		ID:        t.ID.Value,
		MetaID:    uint64(t.Meta),
		Kind:      proto.TaskKind(t.Kind),
		Location:  encodeLocation(t.SpawnLoc),
		Fields:    encodeFields(t.Fields),
		Name:      t.Name,
		ParentIDs: idList(t.ParentIDs),
	}
}

func ts(t time.Time) *timestamppb.Timestamp {
	if t.IsZero() {
		return nil
	}
	return timestamppb.New(t)
}

func dur(d time.Duration) *durationpb.Duration {
	return durationpb.New(d)
}

func encodeTaskStats(s *stats.TaskStats, now time.Time) proto.TaskStats {
	var droppedAt *timestamppb.Timestamp
	if d, ok := s.DroppedAt(); ok {
		droppedAt = ts(d)
	}
	var lastWake *timestamppb.Timestamp
	if lw, ok := s.LastWake(); ok {
		lastWake = ts(lw)
	}
	var firstPoll *timestamppb.Timestamp
	if fp, ok := s.FirstPoll(); ok {
		firstPoll = ts(fp)
	}
	var lastPollStarted *timestamppb.Timestamp
	if lp, ok := s.LastPollStarted(); ok {
		lastPollStarted = ts(lp)
	}
	var lastPollEnded *timestamppb.Timestamp
	if lp, ok := s.LastPollEnded(); ok {
		lastPollEnded = ts(lp)
	}
	wakes, selfWakes, wakerClones, wakerDrops := s.Totals()
	return proto.TaskStats{
		CreatedAt:       ts(s.CreatedAt()),
		DroppedAt:       droppedAt,
		TotalPolls:      s.TotalPolls(),
		CurrentPolls:    s.CurrentPolls(),
		Wakes:           wakes,
		SelfWakes:       selfWakes,
		WakerClones:     wakerClones,
		WakerDrops:      wakerDrops,
		LastWake:        lastWake,
		FirstPoll:       firstPoll,
		LastPollStarted: lastPollStarted,
		LastPollEnded:   lastPollEnded,
		Busy:            dur(s.Busy(now)),
		Scheduled:       dur(s.Scheduled()),
	}
}

func encodeResourceKind(k model.ResourceKind) proto.ResourceKind {
	return proto.ResourceKind{Known: k.Known, Name: k.Name, Other: k.Other}
}

func encodeResource(r *model.Resource) proto.Resource {
	return proto.Resource{
		ID:           r.ID.Value,
		ParentID:     idPtr(r.ParentID),
		MetaID:       uint64(r.Meta),
		Kind:         encodeResourceKind(r.Kind),
		ConcreteType: r.ConcreteType,
		Location:     encodeLocation(r.Location),
		Visibility:   proto.Visibility(r.Visibility),
	}
}

func encodeAttributes(attrs []model.AttributeUpdate) []proto.Attribute {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]proto.Attribute, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, proto.Attribute{
			Key:   a.Key,
			Value: encodeFieldValue(a.Value),
			Unit:  a.Unit,
			Op:    proto.AttributeOp(a.Op),
		})
	}
	return out
}

func encodeResourceStats(s *stats.ResourceStats) proto.ResourceStats {
	var droppedAt *timestamppb.Timestamp
	if d, ok := s.DroppedAt(); ok {
		droppedAt = ts(d)
	}
	return proto.ResourceStats{
		CreatedAt:  ts(s.CreatedAt()),
		DroppedAt:  droppedAt,
		Attributes: encodeAttributes(s.Attributes()),
	}
}

func encodeAsyncOp(op *model.AsyncOp) proto.AsyncOp {
	return proto.AsyncOp{
		ID:         op.ID.Value,
		ParentID:   idPtr(op.ParentID),
		ResourceID: op.ResourceID.Value,
		Source:     op.Source,
		MetaID:     uint64(op.Meta),
	}
}

func encodeAsyncOpStats(s *stats.AsyncOpStats) proto.AsyncOpStats {
	var droppedAt *timestamppb.Timestamp
	if d, ok := s.DroppedAt(); ok {
		droppedAt = ts(d)
	}
	return proto.AsyncOpStats{
		CreatedAt:    ts(s.CreatedAt()),
		DroppedAt:    droppedAt,
		TotalPolls:   s.TotalPolls(),
		CurrentPolls: s.CurrentPolls(),
		Attributes:   encodeAttributes(s.Attributes()),
	}
}

func encodePollEvent(p model.PollEvent) proto.PollOp {
	return proto.PollOp{
		MetaID:     uint64(p.Meta),
		ResourceID: p.ResourceID.Value,
		OpName:     p.OpName,
		AsyncOpID:  idPtr(p.AsyncOpID),
		TaskID:     idPtr(p.TaskID),
		IsReady:    p.IsReady,
	}
}

func encodeHistogram(snap stats.Snapshot) *proto.DurationHistogram {
	var highest *uint64
	if snap.HighestOutlier > 0 {
		v := snap.HighestOutlier
		highest = &v
	}
	return &proto.DurationHistogram{
		BucketBounds:   snap.BucketBounds,
		Buckets:        snap.Buckets,
		MaxValue:       snap.MaxValue,
		HighOutliers:   snap.HighOutliers,
		HighestOutlier: highest,
	}
}
