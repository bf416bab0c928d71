package aggregator

import (
	"time"

	"github.com/asyncwatch/console/internal/instrument"
	"github.com/asyncwatch/console/proto"
)

// publish constructs one delta Update and attempts a non-blocking send
// to every current watcher, dropping (and deregistering) any whose
// queue is full (spec §4.F "watchers whose channel is full are
// dropped").
func (a *Aggregator) publish() {
	u := a.buildUpdate(false)
	for id, w := range a.watchers {
		if !w.trySend(u) {
			delete(a.watchers, id)
		}
	}
}

// buildUpdate constructs an Update. includeAll selects Include::All
// (every static record and every stats snapshot, used for a brand-new
// subscriber's initial snapshot) versus the normal dirty-only delta.
//
// The dropped-event counters are taken and reset only on the delta
// path. They're shared across every watcher, so an Include::All
// snapshot built for one new subscriber must not steal and zero what
// the other watchers are owed on the next delta (spec §7 "every
// watcher observes cumulative event loss"); a fresh subscriber hasn't
// missed anything yet, so its initial snapshot reports zero dropped.
func (a *Aggregator) buildUpdate(includeAll bool) *proto.Update {
	now := a.anchor.ToWallclock(time.Now())
	var dropped instrument.Snapshot
	if !includeAll {
		dropped = a.channel.Dropped.TakeAndReset()
	}

	var newMeta []proto.Metadata
	if includeAll {
		for _, m := range a.metaRegistry.Snapshot() {
			newMeta = append(newMeta, encodeMetadata(m))
		}
	} else if len(a.pendingMetadata) > 0 {
		for _, m := range a.pendingMetadata {
			newMeta = append(newMeta, encodeMetadata(m))
		}
		a.pendingMetadata = a.pendingMetadata[:0]
	}

	return &proto.Update{
		Now:            ts(now),
		NewMetadata:    newMeta,
		TaskUpdate:     a.buildTaskUpdate(includeAll, now, dropped),
		ResourceUpdate: a.buildResourceUpdate(includeAll, now, dropped),
		AsyncOpUpdate:  a.buildAsyncOpUpdate(includeAll, now, dropped),
	}
}

func (a *Aggregator) buildTaskUpdate(includeAll bool, now time.Time, dropped instrument.Snapshot) *proto.TaskUpdate {
	var newTasks []proto.Task
	if includeAll {
		for _, p := range a.tasks.All() {
			newTasks = append(newTasks, encodeTask(p.Value.Value))
		}
	} else {
		for _, p := range a.tasks.SinceLastUpdate() {
			newTasks = append(newTasks, encodeTask(p.Value.Value))
		}
	}

	statsUpdate := map[uint64]proto.TaskStats{}
	if includeAll {
		for _, p := range a.taskStats.All() {
			statsUpdate[p.ID.Value] = encodeTaskStats(p.Value, now)
		}
	} else {
		for _, p := range a.taskStats.SinceLastUpdate() {
			statsUpdate[p.ID.Value] = encodeTaskStats(p.Value, now)
		}
	}

	return &proto.TaskUpdate{NewTasks: newTasks, StatsUpdate: statsUpdate, DroppedEvents: dropped.Tasks}
}

func (a *Aggregator) buildResourceUpdate(includeAll bool, now time.Time, dropped instrument.Snapshot) *proto.ResourceUpdate {
	var newResources []proto.Resource
	if includeAll {
		for _, p := range a.resources.All() {
			newResources = append(newResources, encodeResource(p.Value.Value))
		}
	} else {
		for _, p := range a.resources.SinceLastUpdate() {
			newResources = append(newResources, encodeResource(p.Value.Value))
		}
	}

	statsUpdate := map[uint64]proto.ResourceStats{}
	if includeAll {
		for _, p := range a.resourceStats.All() {
			statsUpdate[p.ID.Value] = encodeResourceStats(p.Value)
		}
	} else {
		for _, p := range a.resourceStats.SinceLastUpdate() {
			statsUpdate[p.ID.Value] = encodeResourceStats(p.Value)
		}
	}

	var newPollOps []proto.PollOp
	for _, p := range a.pollOps.All() {
		newPollOps = append(newPollOps, encodePollEvent(p))
	}
	a.pollOps.Clear()

	return &proto.ResourceUpdate{
		NewResources:  newResources,
		StatsUpdate:   statsUpdate,
		NewPollOps:    newPollOps,
		DroppedEvents: dropped.Resources,
	}
}

func (a *Aggregator) buildAsyncOpUpdate(includeAll bool, now time.Time, dropped instrument.Snapshot) *proto.AsyncOpUpdate {
	var newOps []proto.AsyncOp
	if includeAll {
		for _, p := range a.asyncOps.All() {
			newOps = append(newOps, encodeAsyncOp(p.Value.Value))
		}
	} else {
		for _, p := range a.asyncOps.SinceLastUpdate() {
			newOps = append(newOps, encodeAsyncOp(p.Value.Value))
		}
	}

	statsUpdate := map[uint64]proto.AsyncOpStats{}
	if includeAll {
		for _, p := range a.asyncOpStats.All() {
			statsUpdate[p.ID.Value] = encodeAsyncOpStats(p.Value)
		}
	} else {
		for _, p := range a.asyncOpStats.SinceLastUpdate() {
			statsUpdate[p.ID.Value] = encodeAsyncOpStats(p.Value)
		}
	}

	return &proto.AsyncOpUpdate{NewAsyncOps: newOps, StatsUpdate: statsUpdate, DroppedEvents: dropped.AsyncOps}
}

// publishTaskDetails emits one TaskDetails message per watched task per
// tick (spec §4.F "Task-detail subscription"), closing the stream for
// any task that is no longer tracked.
func (a *Aggregator) publishTaskDetails() {
	if len(a.detailWatchers) == 0 {
		return
	}
	now := a.anchor.ToWallclock(time.Now())

	for taskID, byID := range a.detailWatchers {
		s, ok := a.taskStats.Get(taskID)
		if !ok {
			for id, dw := range byID {
				dw.close()
				delete(byID, id)
			}
			delete(a.detailWatchers, taskID)
			continue
		}

		details := &proto.TaskDetails{
			TaskID:                  taskID.Value,
			Now:                     ts(now),
			PollTimesHistogram:      encodeHistogram(s.PollHistogramSnapshot()),
			ScheduledTimesHistogram: encodeHistogram(s.ScheduledHistogramSnapshot()),
		}
		for id, dw := range byID {
			if !dw.trySend(details) {
				delete(byID, id)
			}
		}
	}
}
