// Package aggregator implements the single-writer aggregation loop
// (spec §4.F): it owns every store, drains the instrumentation layer's
// bounded event channel without ever blocking on it, publishes delta
// updates to subscribed watchers on a fixed tick, and answers
// Pause/Resume/WatchTaskDetail control-plane requests from the gRPC
// server surface.
package aggregator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/asyncwatch/console/internal/events"
	"github.com/asyncwatch/console/internal/ids"
	"github.com/asyncwatch/console/internal/instrument"
	"github.com/asyncwatch/console/internal/logging"
	"github.com/asyncwatch/console/internal/model"
	"github.com/asyncwatch/console/internal/stats"
	"github.com/asyncwatch/console/internal/store"
	"github.com/asyncwatch/console/internal/timeanchor"
	"github.com/asyncwatch/console/proto"
)

// Config is the subset of §6.4 configuration the aggregator needs.
type Config struct {
	PublishInterval      time.Duration
	Retention            time.Duration
	ClientBufferCapacity int
}

// Aggregator owns every authoritative store (spec §5 "Shared-resource
// policy"). All fields below this point are only ever touched from the
// single goroutine running Run; stats objects it reads are the only
// cross-goroutine-shared state, and those are atomics by construction
// (internal/stats).
type Aggregator struct {
	cfg     Config
	channel *instrument.Channel
	anchor  timeanchor.Anchor

	commands chan Command

	metaRegistry    *model.Registry
	pendingMetadata []*model.Metadata

	tasks     *store.IdData[*store.Record[*model.Task]]
	taskStats *store.IdData[*stats.TaskStats]

	resources     *store.IdData[*store.Record[*model.Resource]]
	resourceStats *store.IdData[*stats.ResourceStats]

	asyncOps     *store.IdData[*store.Record[*model.AsyncOp]]
	asyncOpStats *store.IdData[*stats.AsyncOpStats]

	pollOps *store.ShrinkVec[model.PollEvent]

	watchers       map[uuid.UUID]*Watcher
	detailWatchers map[ids.ID]map[uuid.UUID]*DetailWatcher

	paused atomic.Bool
}

// New creates an aggregator draining channel and publishing on
// cfg.PublishInterval. The caller must run Run in its own goroutine.
func New(cfg Config, channel *instrument.Channel) *Aggregator {
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = time.Second
	}
	if cfg.ClientBufferCapacity <= 0 {
		cfg.ClientBufferCapacity = 4096
	}
	return &Aggregator{
		cfg:            cfg,
		channel:        channel,
		anchor:         timeanchor.New(),
		commands:       make(chan Command, 32),
		metaRegistry:   model.NewRegistry(),
		tasks:          store.NewIdData[*store.Record[*model.Task]](256),
		taskStats:      store.NewIdData[*stats.TaskStats](512),
		resources:      store.NewIdData[*store.Record[*model.Resource]](128),
		resourceStats:  store.NewIdData[*stats.ResourceStats](256),
		asyncOps:       store.NewIdData[*store.Record[*model.AsyncOp]](128),
		asyncOpStats:   store.NewIdData[*stats.AsyncOpStats](256),
		pollOps:        store.NewShrinkVec[model.PollEvent](96),
		watchers:       make(map[uuid.UUID]*Watcher),
		detailWatchers: make(map[ids.ID]map[uuid.UUID]*DetailWatcher),
	}
}

// Commands returns the control-plane channel the gRPC server surface
// sends Subscribe/WatchTaskDetail/Pause/Resume requests on (spec §4.F
// "Command channel").
func (a *Aggregator) Commands() chan<- Command { return a.commands }

// Run is the aggregator's main loop: a three-way select over the
// publish ticker, the instrumentation layer's flush signal, and the
// command channel (spec §4.F). It returns when ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) {
	log := logging.Named("aggregator")
	ticker := time.NewTicker(a.cfg.PublishInterval)
	defer ticker.Stop()

	log.Infow("aggregator started", "publish_interval", a.cfg.PublishInterval, "retention", a.cfg.Retention)
	defer log.Infow("aggregator stopped")

	for {
		select {
		case <-ctx.Done():
			a.closeAllWatchers()
			return

		case <-ticker.C:
			a.drainEvents()
			if !a.paused.Load() && len(a.watchers) > 0 {
				a.publish()
			}
			a.publishTaskDetails()

		case <-a.channel.Flush():
			a.drainEvents()

		case cmd := <-a.commands:
			a.handleCommand(cmd)
			a.drainEvents()
		}

		store.DropClosed(a.taskStats, a.tasks, time.Now(), a.cfg.Retention, len(a.watchers) > 0)
		store.DropClosed(a.resourceStats, a.resources, time.Now(), a.cfg.Retention, len(a.watchers) > 0)
		store.DropClosed(a.asyncOpStats, a.asyncOps, time.Now(), a.cfg.Retention, len(a.watchers) > 0)
	}
}

// drainEvents non-blockingly empties the event channel, applying each
// event to the stores. It never awaits the channel's receive (spec §5
// "polling recv would wake the aggregator on its own inter-iteration
// activity and cause a busy loop").
func (a *Aggregator) drainEvents() {
	drained := false
	for {
		ev, ok := a.channel.TryRecv()
		if !ok {
			break
		}
		a.applyEvent(ev)
		drained = true
	}
	if drained {
		select {
		case <-a.channel.Flush():
		default:
		}
	}
}

func (a *Aggregator) applyEvent(ev events.Event) {
	switch ev.Kind {
	case events.KindMetadata:
		if a.metaRegistry.Register(ev.Metadata.Meta) {
			a.pendingMetadata = append(a.pendingMetadata, ev.Metadata.Meta)
		}
	case events.KindSpawn:
		s := ev.Spawn
		name, _ := taskNameField(s.Fields)
		a.tasks.Insert(s.ID, store.NewRecord(&model.Task{
			ID:        s.ID,
			Meta:      s.Meta,
			Kind:      s.Kind,
			SpawnLoc:  s.Location,
			Fields:    s.Fields,
			Name:      name,
			ParentIDs: s.ParentIDs,
		}))
		a.taskStats.Insert(s.ID, s.Stats)
	case events.KindResource:
		r := ev.Resource
		a.resources.Insert(r.ID, store.NewRecord(&model.Resource{
			ID:           r.ID,
			ParentID:     r.ParentID,
			Meta:         r.Meta,
			Kind:         r.ResKind,
			ConcreteType: r.ConcreteType,
			Location:     r.Location,
			Visibility:   visibilityOf(r.IsInternal),
		}))
		a.resourceStats.Insert(r.ID, r.Stats)
	case events.KindAsyncResourceOp:
		op := ev.AsyncResourceOp
		a.asyncOps.Insert(op.ID, store.NewRecord(&model.AsyncOp{
			ID:         op.ID,
			ParentID:   op.ParentID,
			ResourceID: op.ResourceID,
			Source:     op.Source,
			Meta:       op.Meta,
		}))
		a.asyncOpStats.Insert(op.ID, op.Stats)
	case events.KindPollOp:
		p := ev.PollOp
		a.pollOps.Push(model.PollEvent{
			Meta:       p.Meta,
			ResourceID: p.ResourceID,
			TaskID:     p.TaskID,
			AsyncOpID:  p.AsyncOpID,
			OpName:     p.OpName,
			IsReady:    p.IsReady,
		})
	}
}

func taskNameField(fields []model.Field) (string, bool) {
	for _, f := range fields {
		if f.Name.Literal == "task.name" && f.Value.Kind == model.FieldString {
			return f.Value.S, true
		}
	}
	return "", false
}

func visibilityOf(isInternal bool) model.Visibility {
	if isInternal {
		return model.VisibilityInternal
	}
	return model.VisibilityPublic
}

func (a *Aggregator) closeAllWatchers() {
	for id, w := range a.watchers {
		w.close()
		delete(a.watchers, id)
	}
	for taskID, byID := range a.detailWatchers {
		for id, dw := range byID {
			dw.close()
			delete(byID, id)
		}
		delete(a.detailWatchers, taskID)
	}
}
