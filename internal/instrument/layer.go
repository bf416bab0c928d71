package instrument

import (
	"sync"
	"time"

	"github.com/asyncwatch/console/internal/events"
	"github.com/asyncwatch/console/internal/ids"
	"github.com/asyncwatch/console/internal/logging"
	"github.com/asyncwatch/console/internal/model"
	"github.com/asyncwatch/console/internal/stats"
)

const fieldSelf = "self"

// spanKind tags which entity a tracked span is, so OnEnter/OnExit/OnClose
// know which stats object to mutate without a second classification pass.
type spanKind uint8

const (
	spanTask spanKind = iota
	spanResource
	spanAsyncOp
)

// spanState is what NewSpan stashes in the "runtime's span extension
// storage" (spec §4.E, §6.1) so later on_enter/on_exit/on_close/on_event
// callbacks for the same span resolve their owning stats object by a
// single map lookup rather than re-deriving it.
type spanState struct {
	kind         spanKind
	id           ids.ID
	task         *stats.TaskStats
	resource     *stats.ResourceStats
	asyncOp      *stats.AsyncOpStats
	ownerResource ids.ID // valid when kind == spanAsyncOp
}

// Layer is the instrumentation boundary (spec §4.E, §6.1): it classifies
// callsites, allocates stats objects, tracks span-id → stats lookups,
// and emits events into a bounded channel for the aggregator to drain.
// A Layer is called concurrently from any number of runtime worker
// goroutines; its hot paths (Classify, the spans/taskStatsByID maps) are
// lock-free or narrowly locked for exactly that reason.
type Layer struct {
	classifier *Classifier
	channel    *Channel

	taskIDs     *ids.Rewriter
	resourceIDs *ids.Rewriter
	asyncOpIDs  *ids.Rewriter

	mu            sync.RWMutex
	spans         map[ids.Remote]*spanState
	taskStatsByID map[ids.ID]*stats.TaskStats

	log *zapSugared
}

// zapSugared avoids importing zap's concrete type into this file's
// signature surface; logging.Named already returns *zap.SugaredLogger,
// aliased here only so this file doesn't need its own zap import line
// duplicated across every method.
type zapSugared = interface {
	Debugw(msg string, kv ...any)
	Warnw(msg string, kv ...any)
}

// NewLayer creates an instrumentation layer emitting onto channel.
func NewLayer(channel *Channel) *Layer {
	return &Layer{
		classifier:    NewClassifier(),
		channel:       channel,
		taskIDs:       ids.NewRewriter(ids.KindTask),
		resourceIDs:   ids.NewRewriter(ids.KindResource),
		asyncOpIDs:    ids.NewRewriter(ids.KindAsyncOp),
		spans:         make(map[ids.Remote]*spanState),
		taskStatsByID: make(map[ids.ID]*stats.TaskStats),
		log:           logging.Named("instrument"),
	}
}

// RegisterCallsite handles the one-shot register_callsite callback
// (spec §6.1 item 1): metadata is forwarded to the aggregator so its
// registry can be extended. Interest is always granted — this layer
// never declines a callsite, matching spec §6.1's "always".
func (l *Layer) RegisterCallsite(meta *model.Metadata) (interest bool) {
	l.channel.Emit(events.NewMetadataEvent(meta))
	return true
}

// NewSpan handles new_span (spec §6.1 item 2): classifies the callsite,
// allocates the entity's stats object, stashes span extension state for
// later lookups, and emits the entity's creation event.
func (l *Layer) NewSpan(remote ids.Remote, target, name string, metaID model.MetaID, fieldNames []string, raw []RawField, loc model.Location, parents []ids.Remote, now time.Time) {
	class := l.classifier.Classify(target, name, fieldNames)

	switch class {
	case ClassTaskSpawn, ClassTaskBlockingSpawn:
		l.newTaskSpan(remote, metaID, class, raw, loc, parents, now)
	case ClassResource:
		l.newResourceSpan(remote, metaID, raw, loc, parents, now)
	case ClassAsyncOp:
		l.newAsyncOpSpan(remote, metaID, raw, parents, now)
	default:
		l.log.Debugw("new_span on unclassified callsite", "target", target, "name", name)
	}
}

func (l *Layer) newTaskSpan(remote ids.Remote, metaID model.MetaID, class Class, raw []RawField, loc model.Location, parents []ids.Remote, now time.Time) {
	id := l.taskIDs.IDFor(remote)
	st := stats.NewTaskStats(now)
	taskKind := model.TaskSpawn
	if class == ClassTaskBlockingSpawn {
		taskKind = model.TaskBlocking
	}
	name, _ := FindString(raw, fieldTaskName)

	l.mu.Lock()
	l.spans[remote] = &spanState{kind: spanTask, id: id, task: st}
	l.taskStatsByID[id] = st
	l.mu.Unlock()

	l.channel.Emit(events.NewSpawnEvent(events.Spawn{
		ID:        id,
		Meta:      metaID,
		Kind:      taskKind,
		Fields:    ExtractFields(metaID, raw),
		Location:  loc,
		ParentIDs: l.rewriteParents(l.taskIDs, parents),
		Stats:     st,
	}))
	_ = name // surfaced via the Fields/task.name field already; kept for symmetry with model.Task.Name at aggregation time
}

func (l *Layer) newResourceSpan(remote ids.Remote, metaID model.MetaID, raw []RawField, loc model.Location, parents []ids.Remote, now time.Time) {
	concreteType, _ := FindString(raw, fieldConcreteType)
	kindStr, _ := FindString(raw, fieldKind)

	id := l.resourceIDs.IDFor(remote)
	st := stats.NewResourceStats(now)

	var parentID *ids.ID
	if len(parents) > 0 {
		pid := l.resourceIDs.IDFor(parents[0])
		parentID = &pid
	}

	isInternal, _ := findBool(raw, "is_internal")

	l.mu.Lock()
	l.spans[remote] = &spanState{kind: spanResource, id: id, resource: st}
	l.mu.Unlock()

	l.channel.Emit(events.NewResourceEvent(events.Resource{
		ID:           id,
		ParentID:     parentID,
		Meta:         metaID,
		ResKind:      resourceKindFromString(kindStr),
		ConcreteType: concreteType,
		Location:     loc,
		IsInternal:   isInternal,
		Stats:        st,
	}))
}

func (l *Layer) newAsyncOpSpan(remote ids.Remote, metaID model.MetaID, raw []RawField, parents []ids.Remote, now time.Time) {
	source, _ := FindString(raw, fieldSource)

	if len(parents) == 0 {
		l.log.Warnw("async op span with no parent resource span, dropping", "source", source)
		return
	}
	resourceID := l.resourceIDs.IDFor(parents[0])

	id := l.asyncOpIDs.IDFor(remote)
	st := stats.NewAsyncOpStats(now)

	var parentID *ids.ID
	if len(parents) > 1 {
		pid := l.asyncOpIDs.IDFor(parents[1])
		parentID = &pid
	}

	l.mu.Lock()
	l.spans[remote] = &spanState{kind: spanAsyncOp, id: id, asyncOp: st, ownerResource: resourceID}
	l.mu.Unlock()

	l.channel.Emit(events.NewAsyncResourceOpEvent(events.AsyncResourceOp{
		ID:         id,
		ParentID:   parentID,
		ResourceID: resourceID,
		Meta:       metaID,
		Source:     source,
		Stats:      st,
	}))
}

// OnEnter handles the on_enter lifecycle edge (spec §6.1 item 3):
// starts a poll window on the owning task or async-op stats.
func (l *Layer) OnEnter(remote ids.Remote, now time.Time) {
	st := l.lookup(remote)
	if st == nil {
		return
	}
	switch st.kind {
	case spanTask:
		st.task.StartPoll(now)
	case spanAsyncOp:
		st.asyncOp.StartPoll(now)
	}
}

// OnExit handles the on_exit lifecycle edge.
func (l *Layer) OnExit(remote ids.Remote, now time.Time) {
	st := l.lookup(remote)
	if st == nil {
		return
	}
	var ok bool
	switch st.kind {
	case spanTask:
		ok = st.task.EndPoll(now)
	case spanAsyncOp:
		ok = st.asyncOp.EndPoll(now)
	default:
		return
	}
	if !ok {
		l.log.Warnw("end_poll with current_polls==0", "remote_id", remote)
	}
}

// OnClose handles the on_close lifecycle edge: marks the owning entity
// dropped and retires the span-extension and rewriter state for remote
// so a later reuse of the same runtime span id allocates a fresh
// sequential id (spec §3 "the remote runtime reuses span IDs").
func (l *Layer) OnClose(remote ids.Remote, now time.Time) {
	l.mu.Lock()
	st, ok := l.spans[remote]
	if ok {
		delete(l.spans, remote)
	}
	l.mu.Unlock()
	if !ok {
		return
	}

	switch st.kind {
	case spanTask:
		st.task.Drop(now)
		l.taskIDs.Forget(remote)
		l.mu.Lock()
		delete(l.taskStatsByID, st.id)
		l.mu.Unlock()
	case spanResource:
		st.resource.Drop(now)
		l.resourceIDs.Forget(remote)
	case spanAsyncOp:
		st.asyncOp.Drop(now)
		l.asyncOpIDs.Forget(remote)
	}
}

// RawEvent is one on_event callback occurrence (spec §6.1 item 4):
// waker ops, poll ops, and resource state updates all arrive this way,
// disambiguated by ClassifyEvent against Target/Fields.
type RawEvent struct {
	Target string
	Fields []RawField
	// Parent is the span the event was recorded within: the async-op
	// span for poll ops and state updates, nil for waker events (those
	// identify their task explicitly via the task.id field instead,
	// since a waker can fire from a thread with no such span on its
	// stack at all).
	Parent *ids.Remote
	MetaID model.MetaID
}

// OnEvent handles on_event: classifies by op_type/op and dispatches to
// the poll-op, state-update, or waker handler.
func (l *Layer) OnEvent(ev RawEvent, now time.Time) {
	fieldNames := make([]string, 0, len(ev.Fields))
	for _, f := range ev.Fields {
		fieldNames = append(fieldNames, f.Name)
	}
	opType, _ := FindString(ev.Fields, fieldOpType)
	op, _ := FindString(ev.Fields, fieldOp)

	switch ClassifyEvent(ev.Target, opType, op, fieldNames) {
	case ClassPollOp:
		l.handlePollOp(ev)
	case ClassStateUpdate:
		l.handleStateUpdate(ev)
	case ClassWaker:
		l.handleWaker(ev, op, now)
	default:
		l.log.Debugw("on_event on unclassified callsite", "target", ev.Target, "op", op, "op_type", opType)
	}
}

func (l *Layer) handlePollOp(ev RawEvent) {
	if ev.Parent == nil {
		l.log.Warnw("poll op event with no parent span, dropping")
		return
	}
	st := l.lookup(*ev.Parent)
	if st == nil || st.kind != spanAsyncOp {
		l.log.Warnw("poll op event's parent span is not a tracked async op, dropping")
		return
	}

	opName, _ := FindString(ev.Fields, fieldOpName)
	readiness, _ := FindString(ev.Fields, "readiness")

	var taskID *ids.ID
	if v, ok := FindField(ev.Fields, fieldTaskID); ok && v.Kind == model.FieldU64 {
		id := l.taskIDs.IDFor(ids.Remote(v.U))
		taskID = &id
	}

	asyncOpID := st.id
	l.channel.Emit(events.NewPollOpEvent(events.PollOp{
		Meta:       ev.MetaID,
		ResourceID: st.ownerResource,
		OpName:     opName,
		AsyncOpID:  &asyncOpID,
		TaskID:     taskID,
		IsReady:    readiness == "ready",
	}))
}

// handleStateUpdate applies an attribute update in place on the owning
// entity's stats object. Like waker events, state updates never travel
// through the channel (spec §4.A): the aggregator observes them by
// reading the dirty stats object directly at publish time.
func (l *Layer) handleStateUpdate(ev RawEvent) {
	if ev.Parent == nil {
		return
	}
	st := l.lookup(*ev.Parent)
	if st == nil {
		return
	}

	updates := ExtractAttributeUpdates(ev.Fields)
	for _, u := range updates {
		var ok bool
		switch st.kind {
		case spanResource:
			ok = st.resource.UpdateAttribute(u)
		case spanAsyncOp:
			ok = st.asyncOp.UpdateAttribute(u)
		default:
			continue
		}
		if !ok {
			l.log.Warnw("attribute update type mismatch, dropped", "key", u.Key)
		}
	}
}

func (l *Layer) handleWaker(ev RawEvent, op string, now time.Time) {
	v, ok := FindField(ev.Fields, fieldTaskID)
	if !ok || v.Kind != model.FieldU64 {
		l.log.Warnw("waker event missing task.id field, dropping", "op", op)
		return
	}
	remote := ids.Remote(v.U)
	seqID := l.taskIDs.IDFor(remote)

	l.mu.RLock()
	st, ok := l.taskStatsByID[seqID]
	l.mu.RUnlock()
	if !ok {
		l.log.Debugw("waker event for task not currently tracked", "task_id", seqID.Value)
		return
	}

	self, _ := findBool(ev.Fields, fieldSelf)
	switch op {
	case "waker.clone":
		st.WakerClone()
	case "waker.drop":
		st.WakerDrop()
	case "waker.wake_by_ref":
		st.WakeByRef(now, self)
	case "waker.wake":
		st.Wake(now, self)
	}
}

func (l *Layer) lookup(remote ids.Remote) *spanState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.spans[remote]
}

func (l *Layer) rewriteParents(r *ids.Rewriter, parents []ids.Remote) []ids.ID {
	if len(parents) == 0 {
		return nil
	}
	out := make([]ids.ID, 0, len(parents))
	for _, p := range parents {
		out = append(out, r.IDFor(p))
	}
	return out
}

func findBool(fields []RawField, name string) (bool, bool) {
	v, ok := FindField(fields, name)
	if !ok || v.Kind != model.FieldBool {
		return false, false
	}
	return v.B, true
}

func resourceKindFromString(s string) model.ResourceKind {
	if s == "Timer" {
		return model.ResourceKind{Known: true, Name: "Timer"}
	}
	return model.ResourceKind{Known: false, Other: s}
}
