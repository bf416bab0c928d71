package clientstate

import (
	"github.com/asyncwatch/console/internal/ids"
	"github.com/asyncwatch/console/internal/model"
	"github.com/asyncwatch/console/internal/stats"
	"github.com/asyncwatch/console/proto"
)

func decodeLocation(l proto.Location) model.Location {
	return model.Location{File: l.File, Module: l.Module, Line: l.Line}
}

func decodeMetadata(m proto.Metadata) *model.Metadata {
	return &model.Metadata{
		ID:         model.MetaID(m.ID),
		Name:       m.Name,
		Target:     m.Target,
		Location:   decodeLocation(m.Location),
		Level:      model.Level(m.Level),
		Kind:       model.Kind(m.Kind),
		FieldNames: m.FieldNames,
	}
}

func decodeFieldValue(v proto.FieldValue) model.FieldValue {
	return model.FieldValue{Kind: model.FieldValueKind(v.Kind), B: v.B, I: v.I, U: v.U, S: v.S}
}

func decodeFields(fields []proto.Field) []model.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]model.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, model.Field{
			Name:   model.FieldName{Literal: f.Name},
			Value:  decodeFieldValue(f.Value),
			MetaID: model.MetaID(f.MetaID),
		})
	}
	return out
}

func rewriteIDs(r *ids.Rewriter, wire []uint64) []ids.ID {
	if len(wire) == 0 {
		return nil
	}
	out := make([]ids.ID, 0, len(wire))
	for _, w := range wire {
		out = append(out, r.IDFor(ids.Remote(w)))
	}
	return out
}

func rewriteIDPtr(r *ids.Rewriter, wire *uint64) *ids.ID {
	if wire == nil {
		return nil
	}
	id := r.IDFor(ids.Remote(*wire))
	return &id
}

func decodeTask(t proto.Task, id ids.ID, taskRewriter *ids.Rewriter) *model.Task {
	return &model.Task{
		ID:        id,
		Meta:      model.MetaID(t.MetaID),
		Kind:      model.TaskKind(t.Kind),
		SpawnLoc:  decodeLocation(t.Location),
		Fields:    decodeFields(t.Fields),
		Name:      t.Name,
		ParentIDs: rewriteIDs(taskRewriter, t.ParentIDs),
	}
}

func decodeTaskStats(s proto.TaskStats) stats.WireSnapshot {
	snap := stats.WireSnapshot{
		TotalPolls:   s.TotalPolls,
		CurrentPolls: s.CurrentPolls,
		Wakes:        s.Wakes,
		SelfWakes:    s.SelfWakes,
		WakerClones:  s.WakerClones,
		WakerDrops:   s.WakerDrops,
	}
	if s.CreatedAt != nil {
		snap.CreatedAt = s.CreatedAt.AsTime()
	}
	if s.DroppedAt != nil {
		snap.HasDroppedAt = true
		snap.DroppedAt = s.DroppedAt.AsTime()
	}
	if s.LastWake != nil {
		snap.HasLastWake = true
		snap.LastWake = s.LastWake.AsTime()
	}
	if s.FirstPoll != nil {
		snap.HasFirstPoll = true
		snap.FirstPoll = s.FirstPoll.AsTime()
	}
	if s.LastPollStarted != nil {
		snap.HasLastPollStart = true
		snap.LastPollStarted = s.LastPollStarted.AsTime()
	}
	if s.LastPollEnded != nil {
		snap.HasLastPollEnd = true
		snap.LastPollEnded = s.LastPollEnded.AsTime()
	}
	if s.Busy != nil {
		snap.Busy = s.Busy.AsDuration()
	}
	if s.Scheduled != nil {
		snap.Scheduled = s.Scheduled.AsDuration()
	}
	return snap
}

func decodeResourceKind(k proto.ResourceKind) model.ResourceKind {
	return model.ResourceKind{Known: k.Known, Name: k.Name, Other: k.Other}
}

func decodeResource(r proto.Resource, id ids.ID, resourceRewriter *ids.Rewriter) *model.Resource {
	return &model.Resource{
		ID:           id,
		ParentID:     rewriteIDPtr(resourceRewriter, r.ParentID),
		Meta:         model.MetaID(r.MetaID),
		Kind:         decodeResourceKind(r.Kind),
		ConcreteType: r.ConcreteType,
		Location:     decodeLocation(r.Location),
		Visibility:   model.Visibility(r.Visibility),
	}
}

func decodeAttributes(attrs []proto.Attribute) []model.AttributeUpdate {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]model.AttributeUpdate, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, model.AttributeUpdate{
			Key:   a.Key,
			Value: decodeFieldValue(a.Value),
			Unit:  a.Unit,
			Op:    model.AttributeOp(a.Op),
		})
	}
	return out
}

func decodeResourceStats(s proto.ResourceStats) stats.ResourceWireSnapshot {
	snap := stats.ResourceWireSnapshot{Attributes: decodeAttributes(s.Attributes)}
	if s.CreatedAt != nil {
		snap.CreatedAt = s.CreatedAt.AsTime()
	}
	if s.DroppedAt != nil {
		snap.HasDroppedAt = true
		snap.DroppedAt = s.DroppedAt.AsTime()
	}
	return snap
}

func decodeAsyncOp(op proto.AsyncOp, id ids.ID, resourceRewriter, asyncOpRewriter *ids.Rewriter) *model.AsyncOp {
	return &model.AsyncOp{
		ID:         id,
		ParentID:   rewriteIDPtr(asyncOpRewriter, op.ParentID),
		ResourceID: resourceRewriter.IDFor(ids.Remote(op.ResourceID)),
		Source:     op.Source,
		Meta:       model.MetaID(op.MetaID),
	}
}

func decodeAsyncOpStats(s proto.AsyncOpStats) stats.AsyncOpWireSnapshot {
	snap := stats.AsyncOpWireSnapshot{
		TotalPolls:   s.TotalPolls,
		CurrentPolls: s.CurrentPolls,
		Attributes:   decodeAttributes(s.Attributes),
	}
	if s.CreatedAt != nil {
		snap.CreatedAt = s.CreatedAt.AsTime()
	}
	if s.DroppedAt != nil {
		snap.HasDroppedAt = true
		snap.DroppedAt = s.DroppedAt.AsTime()
	}
	return snap
}
