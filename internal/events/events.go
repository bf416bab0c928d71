// Package events defines the closed set of records the instrumentation
// layer pushes through the bounded channel to the aggregator (spec
// §4.A). Waker operations are deliberately absent: those mutate the
// owning task's stats in place through a shared pointer and never enter
// the channel.
//
// This is a separate package from model, even though every event
// payload wraps a model/stats type, to avoid a cycle: stats needs to
// reference model (attribute values), and an Event type referencing
// both stats and model cannot live inside model itself without model
// importing stats back.
package events

import (
	"github.com/asyncwatch/console/internal/ids"
	"github.com/asyncwatch/console/internal/model"
	"github.com/asyncwatch/console/internal/stats"
)

// Kind tags which variant of the closed event set a value holds.
type Kind uint8

const (
	KindMetadata Kind = iota
	KindSpawn
	KindResource
	KindAsyncResourceOp
	KindPollOp
)

// Metadata announces a newly registered callsite's metadata.
type Metadata struct {
	Meta *model.Metadata
}

// Spawn announces a new task entity.
type Spawn struct {
	ID        ids.ID
	Meta      model.MetaID
	Kind      model.TaskKind
	Fields    []model.Field
	Location  model.Location
	ParentIDs []ids.ID
	Stats     *stats.TaskStats
}

// Resource announces a new resource entity.
type Resource struct {
	ID           ids.ID
	ParentID     *ids.ID
	Meta         model.MetaID
	ResKind      model.ResourceKind
	ConcreteType string
	Location     model.Location
	IsInternal   bool
	Stats        *stats.ResourceStats
}

// AsyncResourceOp announces a new async-op entity bound to a resource.
type AsyncResourceOp struct {
	ID         ids.ID
	ParentID   *ids.ID
	ResourceID ids.ID
	Meta       model.MetaID
	Source     string
	Stats      *stats.AsyncOpStats
}

// PollOp records one poll-op occurrence against a resource (and
// optionally a task/async-op), accumulated between publishes.
type PollOp struct {
	Meta       model.MetaID
	ResourceID ids.ID
	OpName     string
	AsyncOpID  *ids.ID
	TaskID     *ids.ID
	IsReady    bool
}

// Event is the closed union the bounded channel carries. Exactly one of
// the payload fields is populated, selected by Kind.
type Event struct {
	Kind            Kind
	Metadata        *Metadata
	Spawn           *Spawn
	Resource        *Resource
	AsyncResourceOp *AsyncResourceOp
	PollOp          *PollOp
}

func NewMetadataEvent(m *model.Metadata) Event {
	return Event{Kind: KindMetadata, Metadata: &Metadata{Meta: m}}
}

func NewSpawnEvent(s Spawn) Event { return Event{Kind: KindSpawn, Spawn: &s} }

func NewResourceEvent(r Resource) Event { return Event{Kind: KindResource, Resource: &r} }

func NewAsyncResourceOpEvent(a AsyncResourceOp) Event {
	return Event{Kind: KindAsyncResourceOp, AsyncResourceOp: &a}
}

func NewPollOpEvent(p PollOp) Event { return Event{Kind: KindPollOp, PollOp: &p} }
