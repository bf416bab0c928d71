// Package clientstate mirrors the aggregator's model on the client side
// (spec §4.I): it replays the same Update stream the gRPC server sends
// through its own per-kind ID rewriters and IdData stores, re-runs the
// task linters on every dirty task, and tracks which entities are "new"
// since a view was last shown so a terminal UI can append rather than
// re-sort its whole table on every tick.
package clientstate

import (
	"sync"
	"time"

	"github.com/asyncwatch/console/internal/ids"
	"github.com/asyncwatch/console/internal/linter"
	"github.com/asyncwatch/console/internal/model"
	"github.com/asyncwatch/console/internal/stats"
	"github.com/asyncwatch/console/internal/store"
	"github.com/asyncwatch/console/proto"
)

// Kind identifies which entity table a visibility hint or "new since
// last view" query refers to (spec §4.I "Visibility hints").
type Kind int

const (
	KindTask Kind = iota
	KindResource
	KindAsyncOp
)

// Model is the client-side mirror of the aggregator's authoritative
// state. It is not safe for concurrent use by more than one goroutine
// at a time applying updates, but ApplyUpdate and the read accessors
// may be called from different goroutines under the same external
// lock a UI event loop already serializes on; apart from metaMu, which
// guards only the metadata table, Model itself does not lock, matching
// the aggregator's single-writer discipline (spec §5).
type Model struct {
	rewriters rewriters

	metaMu   sync.RWMutex
	metadata map[uint64]*model.Metadata

	tasks     *store.IdData[*store.Record[*model.Task]]
	taskStats *store.IdData[*stats.TaskStats]

	resources     *store.IdData[*store.Record[*model.Resource]]
	resourceStats *store.IdData[*stats.ResourceStats]

	asyncOps     *store.IdData[*store.Record[*model.AsyncOp]]
	asyncOpStats *store.IdData[*stats.AsyncOpStats]

	pollOpCount uint64

	droppedTasks, droppedResources, droppedAsyncOps uint64

	taskLinters *linter.TaskSet
	warnings    map[ids.ID]*linter.Warnings

	visible map[Kind]bool
	newSeen map[Kind]map[ids.ID]struct{}

	paused bool
	now    time.Time
}

// New creates an empty client model using the default linter
// thresholds (spec §4.K defaults).
func New() *Model {
	return NewWithLinters(linter.NewTaskSet(0, 0))
}

// NewWithLinters creates an empty client model using a caller-supplied
// linter set (e.g. to honor a user-configured self-wake threshold).
func NewWithLinters(taskLinters *linter.TaskSet) *Model {
	return &Model{
		rewriters:     newRewriters(),
		metadata:      make(map[uint64]*model.Metadata),
		tasks:         store.NewIdData[*store.Record[*model.Task]](256),
		taskStats:     store.NewIdData[*stats.TaskStats](512),
		resources:     store.NewIdData[*store.Record[*model.Resource]](128),
		resourceStats: store.NewIdData[*stats.ResourceStats](256),
		asyncOps:      store.NewIdData[*store.Record[*model.AsyncOp]](128),
		asyncOpStats:  store.NewIdData[*stats.AsyncOpStats](256),
		taskLinters:   taskLinters,
		warnings:      make(map[ids.ID]*linter.Warnings),
		visible:       map[Kind]bool{KindTask: true, KindResource: true, KindAsyncOp: true},
		newSeen:       map[Kind]map[ids.ID]struct{}{KindTask: {}, KindResource: {}, KindAsyncOp: {}},
	}
}

// SetPaused mirrors the server's pause state into the client so Prune
// stops purging dropped entities while the user has the view paused
// for inspection (spec §4.I step 5).
func (m *Model) SetPaused(paused bool) { m.paused = paused }

// Paused reports the client's last-known pause state.
func (m *Model) Paused() bool { return m.paused }

// Now returns the wall-clock timestamp of the most recently applied
// Update.
func (m *Model) Now() time.Time { return m.now }

// ApplyUpdate folds one Update into the model (spec §4.I steps 1-4).
func (m *Model) ApplyUpdate(u *proto.Update) {
	if u.Now != nil {
		m.now = u.Now.AsTime()
	}

	m.applyMetadata(u.NewMetadata)
	if u.TaskUpdate != nil {
		m.applyTaskUpdate(u.TaskUpdate)
	}
	if u.ResourceUpdate != nil {
		m.applyResourceUpdate(u.ResourceUpdate)
	}
	if u.AsyncOpUpdate != nil {
		m.applyAsyncOpUpdate(u.AsyncOpUpdate)
	}

	m.rerunLinters()
}

func (m *Model) applyMetadata(metas []proto.Metadata) {
	if len(metas) == 0 {
		return
	}
	m.metaMu.Lock()
	defer m.metaMu.Unlock()
	for _, pm := range metas {
		m.metadata[pm.ID] = decodeMetadata(pm)
	}
}

func (m *Model) metaFor(id uint64) *model.Metadata {
	m.metaMu.RLock()
	defer m.metaMu.RUnlock()
	return m.metadata[id]
}

func (m *Model) applyTaskUpdate(tu *proto.TaskUpdate) {
	m.droppedTasks += tu.DroppedEvents

	for _, pt := range tu.NewTasks {
		id := m.rewriters.task.IDFor(ids.Remote(pt.ID))
		t := decodeTask(pt, id, m.rewriters.task)
		m.tasks.Insert(id, store.NewRecord(t))
		m.markNew(KindTask, id)
	}
	for wireID, ps := range tu.StatsUpdate {
		id := m.rewriters.task.IDFor(ids.Remote(wireID))
		snap := decodeTaskStats(ps)
		if existing, ok := m.taskStats.Get(id); ok {
			existing.ApplyWireSnapshot(snap)
		} else {
			m.taskStats.Insert(id, stats.NewTaskStatsFromWire(snap))
		}
	}
}

func (m *Model) applyResourceUpdate(ru *proto.ResourceUpdate) {
	m.droppedResources += ru.DroppedEvents

	for _, pr := range ru.NewResources {
		id := m.rewriters.resource.IDFor(ids.Remote(pr.ID))
		r := decodeResource(pr, id, m.rewriters.resource)
		m.resources.Insert(id, store.NewRecord(r))
		m.markNew(KindResource, id)
	}
	for wireID, ps := range ru.StatsUpdate {
		id := m.rewriters.resource.IDFor(ids.Remote(wireID))
		snap := decodeResourceStats(ps)
		if existing, ok := m.resourceStats.Get(id); ok {
			existing.ApplyWireSnapshot(snap)
		} else {
			m.resourceStats.Insert(id, stats.NewResourceStatsFromWire(snap))
		}
	}
	// Poll ops are informational only (spec §4.I step 3): the client
	// doesn't maintain a per-resource poll-op log, only a running total
	// a status view can surface.
	m.pollOpCount += uint64(len(ru.NewPollOps))
}

func (m *Model) applyAsyncOpUpdate(au *proto.AsyncOpUpdate) {
	m.droppedAsyncOps += au.DroppedEvents

	for _, pa := range au.NewAsyncOps {
		id := m.rewriters.asyncOp.IDFor(ids.Remote(pa.ID))
		op := decodeAsyncOp(pa, id, m.rewriters.resource, m.rewriters.asyncOp)
		m.asyncOps.Insert(id, store.NewRecord(op))
		m.markNew(KindAsyncOp, id)
	}
	for wireID, ps := range au.StatsUpdate {
		id := m.rewriters.asyncOp.IDFor(ids.Remote(wireID))
		snap := decodeAsyncOpStats(ps)
		if existing, ok := m.asyncOpStats.Get(id); ok {
			existing.ApplyWireSnapshot(snap)
		} else {
			m.asyncOpStats.Insert(id, stats.NewAsyncOpStatsFromWire(snap))
		}
	}
}

// rerunLinters re-evaluates the task linter set against every task
// whose stats changed this update (spec §4.I step 4). It uses
// SinceLastUpdate so a linter only does work proportional to what
// actually changed, matching the same dirty-flag discipline the
// aggregator uses for publishing.
func (m *Model) rerunLinters() {
	now := m.now
	if now.IsZero() {
		now = time.Now()
	}
	for _, p := range m.taskStats.SinceLastUpdate() {
		w, ok := m.warnings[p.ID]
		if !ok {
			w = linter.NewWarnings()
			m.warnings[p.ID] = w
		}
		w.Recheck(m.taskLinters, p.Value, now)
		// SinceLastUpdate already consumed TakeUnsent for the publish
		// pipeline's sake; nothing else reads this store's dirty bit,
		// so re-marking isn't needed here.
	}
}

// Warnings returns the currently active warning handles for taskID, if
// any have been recorded.
func (m *Model) Warnings(taskID ids.ID) []*linter.Handle[*stats.TaskStats] {
	w, ok := m.warnings[taskID]
	if !ok {
		return nil
	}
	return w.Active()
}

func (m *Model) markNew(kind Kind, id ids.ID) {
	if m.visible[kind] {
		return
	}
	m.newSeen[kind][id] = struct{}{}
}

// SetVisibility records whether kind is currently displayed by the UI.
// Transitioning from hidden to shown clears kind's "new since last
// view" set, per spec §4.I's visibility-hint contract.
func (m *Model) SetVisibility(kind Kind, shown bool) {
	wasShown := m.visible[kind]
	m.visible[kind] = shown
	if shown && !wasShown {
		m.newSeen[kind] = map[ids.ID]struct{}{}
	}
}

// NewSince returns the ids that appeared in kind's table while it was
// hidden, letting the UI append just those rows instead of re-sorting.
func (m *Model) NewSince(kind Kind) []ids.ID {
	out := make([]ids.ID, 0, len(m.newSeen[kind]))
	for id := range m.newSeen[kind] {
		out = append(out, id)
	}
	return out
}

// DroppedEventCounts returns the cumulative per-kind event-loss counters
// the client has observed, for a status bar (spec §7).
func (m *Model) DroppedEventCounts() (tasks, resources, asyncOps uint64) {
	return m.droppedTasks, m.droppedResources, m.droppedAsyncOps
}

// Prune purges dropped entities past retention, mirroring
// store.DropClosed on the server side. It is a no-op while the model is
// paused (spec §4.I step 5).
func (m *Model) Prune(retention time.Duration) {
	if m.paused {
		return
	}
	now := m.now
	if now.IsZero() {
		now = time.Now()
	}
	store.DropClosed(m.taskStats, m.tasks, now, retention, false)
	store.DropClosed(m.resourceStats, m.resources, now, retention, false)
	store.DropClosed(m.asyncOpStats, m.asyncOps, now, retention, false)
}

// Tasks returns every currently tracked task's static record.
func (m *Model) Tasks() []store.Pair[*store.Record[*model.Task]] { return m.tasks.All() }

// TaskStats returns the stats entry for id, if tracked.
func (m *Model) TaskStats(id ids.ID) (*stats.TaskStats, bool) { return m.taskStats.Get(id) }

// Resources returns every currently tracked resource's static record.
func (m *Model) Resources() []store.Pair[*store.Record[*model.Resource]] { return m.resources.All() }

// ResourceStats returns the stats entry for id, if tracked.
func (m *Model) ResourceStats(id ids.ID) (*stats.ResourceStats, bool) { return m.resourceStats.Get(id) }

// AsyncOps returns every currently tracked async op's static record.
func (m *Model) AsyncOps() []store.Pair[*store.Record[*model.AsyncOp]] { return m.asyncOps.All() }

// AsyncOpStats returns the stats entry for id, if tracked.
func (m *Model) AsyncOpStats(id ids.ID) (*stats.AsyncOpStats, bool) { return m.asyncOpStats.Get(id) }
