package model

import "github.com/asyncwatch/console/internal/ids"

// TaskKind distinguishes a task spawned via the normal executor from one
// spawned onto a dedicated blocking-pool thread (spec §3).
type TaskKind uint8

const (
	TaskSpawn TaskKind = iota
	TaskBlocking
)

// Task is the immutable static record for a task entity. Its mutable
// counters live in stats.TaskStats, referenced by ID, not embedded —
// static records and stats are deliberately separate stores (spec §3
// "Ownership & invariants").
type Task struct {
	ID         ids.ID
	Meta       MetaID
	Kind       TaskKind
	SpawnLoc   Location
	Fields     []Field
	Name       string // surfaced separately: the designated "task.name" field
	ParentIDs  []ids.ID
}

// ResourceKind is either one of the runtime's well-known kinds (Timer is
// the only one the source tracks by name) or an arbitrary string kind
// reported by a third-party resource.
type ResourceKind struct {
	Known bool
	Name  string // meaningful when Known; e.g. "Timer"
	Other string // meaningful when !Known
}

// Visibility controls whether a resource is shown to users by default
// (public) or only in a verbose/internal view.
type Visibility uint8

const (
	VisibilityInternal Visibility = iota
	VisibilityPublic
)

// Resource is the immutable static record for a resource entity (e.g. a
// Timer, Mutex, or a user-defined instrumented type).
type Resource struct {
	ID           ids.ID
	ParentID     *ids.ID
	Meta         MetaID
	Kind         ResourceKind
	ConcreteType string
	Location     Location
	Visibility   Visibility
}

// AsyncOp is the immutable static record for an async operation entity
// (e.g. a `Sleep` future polled against a Timer resource).
type AsyncOp struct {
	ID         ids.ID
	ParentID   *ids.ID
	ResourceID ids.ID
	Source     string
	Meta       MetaID
}

// PollEvent is not an entity: it's a record of one poll-op occurrence,
// accumulated between publishes and drained as a list (spec §3).
type PollEvent struct {
	Meta       MetaID
	ResourceID ids.ID
	TaskID     *ids.ID
	AsyncOpID  *ids.ID
	OpName     string
	IsReady    bool
}
