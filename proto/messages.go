// Package proto defines the wire messages for the Instrument service
// (spec §6.2). There is no .proto/protoc-gen-go pipeline behind these
// types — see DESIGN.md for why: the retrieval pack that grounds this
// module never carries the generated *.pb.go output for its own gRPC
// services (plugin/grpc/protocol only keeps hand-written conversion
// helpers, the generated file is gitignored upstream), so hand-faking
// protoc-gen-go's descriptor-reflection machinery here would produce
// bytes that look generated but aren't, which is worse than being
// straightforward about it. These structs travel over a real
// google.golang.org/grpc server/ClientConn, under a custom JSON
// sub-codec (see proto/jsoncodec), so the streaming, backpressure, and
// reconnect semantics are the real thing; only the encoding differs
// from protoc's wire format. Timestamps and durations still use the
// genuine google.golang.org/protobuf well-known types, since those ship
// pre-built and need no codegen.
package proto

import (
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Level mirrors model.Level on the wire.
type Level uint8

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// Kind mirrors model.Kind (span vs event callsite) on the wire.
type Kind uint8

const (
	KindSpan Kind = iota
	KindEvent
)

// Location mirrors model.Location.
type Location struct {
	File   string `json:"file,omitempty"`
	Module string `json:"module,omitempty"`
	Line   uint32 `json:"line,omitempty"`
}

// Metadata mirrors model.Metadata.
type Metadata struct {
	ID         uint64   `json:"id"`
	Name       string   `json:"name"`
	Target     string   `json:"target"`
	Location   Location `json:"location"`
	Level      Level    `json:"level"`
	Kind       Kind     `json:"kind"`
	FieldNames []string `json:"field_names,omitempty"`
}

// FieldValueKind mirrors model.FieldValueKind.
type FieldValueKind uint8

const (
	FieldBool FieldValueKind = iota
	FieldI64
	FieldU64
	FieldString
	FieldDebug
)

// FieldValue mirrors model.FieldValue.
type FieldValue struct {
	Kind FieldValueKind `json:"kind"`
	B    bool           `json:"b,omitempty"`
	I    int64          `json:"i,omitempty"`
	U    uint64         `json:"u,omitempty"`
	S    string         `json:"s,omitempty"`
}

// Field mirrors model.Field, with the field name already resolved (the
// wire never needs the by-index/metadata-relative form clients never
// see — that's purely an instrumentation-layer extraction detail).
type Field struct {
	Name   string     `json:"name"`
	Value  FieldValue `json:"value"`
	MetaID uint64     `json:"meta_id"`
}

// TaskKind mirrors model.TaskKind.
type TaskKind uint8

const (
	TaskSpawn TaskKind = iota
	TaskBlocking
)

// Task is the static record for a new task (spec §3, §6.2).
type Task struct {
	ID        uint64   `json:"id"`
	MetaID    uint64   `json:"meta_id"`
	Kind      TaskKind `json:"kind"`
	Location  Location `json:"location"`
	Fields    []Field  `json:"fields,omitempty"`
	Name      string   `json:"name,omitempty"`
	ParentIDs []uint64 `json:"parent_ids,omitempty"`
}

// TaskStats is the dirty-filtered mutable snapshot of a task (spec §3,
// §4.B). Full poll/scheduled histograms are not carried here — they are
// fetched on demand via WatchTaskDetails — only their cheap summary
// counters are, to keep every publish tick small.
type TaskStats struct {
	CreatedAt         *timestamppb.Timestamp `json:"created_at"`
	DroppedAt         *timestamppb.Timestamp `json:"dropped_at,omitempty"`
	TotalPolls        uint64                 `json:"total_polls"`
	CurrentPolls      int64                  `json:"current_polls"`
	Wakes             uint64                 `json:"wakes"`
	SelfWakes         uint64                 `json:"self_wakes"`
	WakerClones       uint64                 `json:"waker_clones"`
	WakerDrops        uint64                 `json:"waker_drops"`
	LastWake          *timestamppb.Timestamp `json:"last_wake,omitempty"`
	FirstPoll         *timestamppb.Timestamp `json:"first_poll,omitempty"`
	LastPollStarted   *timestamppb.Timestamp `json:"last_poll_started,omitempty"`
	LastPollEnded     *timestamppb.Timestamp `json:"last_poll_ended,omitempty"`
	Busy              *durationpb.Duration   `json:"busy,omitempty"`
	Scheduled         *durationpb.Duration   `json:"scheduled,omitempty"`
}

// TaskUpdate is one Update's task-shaped sub-message.
type TaskUpdate struct {
	NewTasks      []Task               `json:"new_tasks,omitempty"`
	StatsUpdate   map[uint64]TaskStats `json:"stats_update,omitempty"`
	DroppedEvents uint64               `json:"dropped_events"`
}

// ResourceKind mirrors model.ResourceKind.
type ResourceKind struct {
	Known bool   `json:"known"`
	Name  string `json:"name,omitempty"`
	Other string `json:"other,omitempty"`
}

// Visibility mirrors model.Visibility.
type Visibility uint8

const (
	VisibilityInternal Visibility = iota
	VisibilityPublic
)

// Resource is the static record for a new resource.
type Resource struct {
	ID           uint64       `json:"id"`
	ParentID     *uint64      `json:"parent_id,omitempty"`
	MetaID       uint64       `json:"meta_id"`
	Kind         ResourceKind `json:"kind"`
	ConcreteType string       `json:"concrete_type"`
	Location     Location     `json:"location"`
	Visibility   Visibility   `json:"visibility"`
}

// AttributeOp mirrors model.AttributeOp.
type AttributeOp uint8

const (
	AttrOverride AttributeOp = iota
	AttrAdd
	AttrSub
)

// Attribute is one key/value/unit entry of an attribute snapshot.
type Attribute struct {
	Key   string      `json:"key"`
	Value FieldValue  `json:"value"`
	Unit  string      `json:"unit,omitempty"`
	Op    AttributeOp `json:"op"`
}

// ResourceStats is the dirty-filtered mutable snapshot of a resource.
type ResourceStats struct {
	CreatedAt  *timestamppb.Timestamp `json:"created_at"`
	DroppedAt  *timestamppb.Timestamp `json:"dropped_at,omitempty"`
	Attributes []Attribute            `json:"attributes,omitempty"`
}

// PollOp is one accumulated poll-op occurrence (spec §3).
type PollOp struct {
	MetaID     uint64  `json:"meta_id"`
	ResourceID uint64  `json:"resource_id"`
	OpName     string  `json:"op_name"`
	AsyncOpID  *uint64 `json:"async_op_id,omitempty"`
	TaskID     *uint64 `json:"task_id,omitempty"`
	IsReady    bool    `json:"is_ready"`
}

// ResourceUpdate is one Update's resource-shaped sub-message.
type ResourceUpdate struct {
	NewResources  []Resource               `json:"new_resources,omitempty"`
	StatsUpdate   map[uint64]ResourceStats `json:"stats_update,omitempty"`
	NewPollOps    []PollOp                 `json:"new_poll_ops,omitempty"`
	DroppedEvents uint64                   `json:"dropped_events"`
}

// AsyncOp is the static record for a new async operation.
type AsyncOp struct {
	ID         uint64  `json:"id"`
	ParentID   *uint64 `json:"parent_id,omitempty"`
	ResourceID uint64  `json:"resource_id"`
	Source     string  `json:"source"`
	MetaID     uint64  `json:"meta_id"`
}

// AsyncOpStats is the dirty-filtered mutable snapshot of an async op.
type AsyncOpStats struct {
	CreatedAt    *timestamppb.Timestamp `json:"created_at"`
	DroppedAt    *timestamppb.Timestamp `json:"dropped_at,omitempty"`
	TaskID       *uint64                `json:"task_id,omitempty"`
	TotalPolls   uint64                 `json:"total_polls"`
	CurrentPolls int64                  `json:"current_polls"`
	Attributes   []Attribute            `json:"attributes,omitempty"`
}

// AsyncOpUpdate is one Update's async-op-shaped sub-message.
type AsyncOpUpdate struct {
	NewAsyncOps   []AsyncOp               `json:"new_async_ops,omitempty"`
	StatsUpdate   map[uint64]AsyncOpStats `json:"stats_update,omitempty"`
	DroppedEvents uint64                  `json:"dropped_events"`
}

// Update is the periodic delta (or, for Include::All, full snapshot)
// the aggregator publishes to every watcher (spec §4.F, §6.2).
type Update struct {
	Now             *timestamppb.Timestamp `json:"now"`
	NewMetadata     []Metadata             `json:"new_metadata,omitempty"`
	TaskUpdate      *TaskUpdate            `json:"task_update,omitempty"`
	ResourceUpdate  *ResourceUpdate        `json:"resource_update,omitempty"`
	AsyncOpUpdate   *AsyncOpUpdate         `json:"async_op_update,omitempty"`
}

// DurationHistogram is the structured histogram shape in TaskDetails
// (spec §6.2): the legacy "raw HdrHistogram V2 bytes" oneof member is
// represented here as RawHistogram for API shape parity, but this
// implementation always populates the structured fields alongside it
// (see internal/stats.Histogram — there is no legacy-format encoder
// since no client in this module's scope speaks that wire format).
type DurationHistogram struct {
	RawHistogram   []byte  `json:"raw_histogram,omitempty"`
	BucketBounds   []uint64 `json:"bucket_bounds"`
	Buckets        []uint64 `json:"buckets"`
	MaxValue       uint64  `json:"max_value"`
	HighOutliers   uint64  `json:"high_outliers"`
	HighestOutlier *uint64 `json:"highest_outlier,omitempty"`
}

// TaskDetails is the per-task histogram payload streamed to a
// WatchTaskDetails subscriber (spec §4.F, §6.2).
type TaskDetails struct {
	TaskID                  uint64                 `json:"task_id"`
	Now                     *timestamppb.Timestamp `json:"now"`
	PollTimesHistogram      *DurationHistogram     `json:"poll_times_histogram"`
	ScheduledTimesHistogram *DurationHistogram     `json:"scheduled_times_histogram"`
}

// InstrumentRequest is the (empty) request for WatchUpdates.
type InstrumentRequest struct{}

// TaskDetailsRequest identifies the task a WatchTaskDetails stream
// should follow.
type TaskDetailsRequest struct {
	ID uint64 `json:"id"`
}

// PauseRequest is the (empty) request for Pause.
type PauseRequest struct{}

// PauseResponse is the (empty) response for Pause.
type PauseResponse struct{}

// ResumeRequest is the (empty) request for Resume.
type ResumeRequest struct{}

// ResumeResponse is the (empty) response for Resume.
type ResumeResponse struct{}
