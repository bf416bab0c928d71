// Package model defines the canonical event and entity types that flow
// from the instrumentation layer into the aggregator, and mirror back
// out to clients over the wire (spec §3, §4.A).
package model

// MetaID identifies a registered callsite's Metadata. It is the remote
// metadata ID as provided by the tracing framework — metadata is
// registered once per callsite and is never rewritten through the ID
// rewriter, since unlike spans, callsites are not reused with a
// different identity.
type MetaID uint64

// Kind distinguishes a span callsite (something with a lifetime:
// task/resource/async-op) from an event callsite (an instantaneous
// occurrence: waker ops, poll ops, state updates).
type Kind uint8

const (
	KindSpan Kind = iota
	KindEvent
)

// Level mirrors the tracing framework's severity levels, carried through
// so the client can filter or color by level if it chooses to.
type Level uint8

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// Location is a callsite's source position, as reported by the runtime.
type Location struct {
	File   string
	Module string
	Line   uint32
}

// Metadata is an immutable descriptor for one callsite, registered once
// and referenced by every event/entity it produces.
type Metadata struct {
	ID         MetaID
	Name       string
	Target     string
	Location   Location
	Level      Level
	Kind       Kind
	FieldNames []string
}

// Registry is an append-only (from the aggregator's perspective) table
// of Metadata keyed by MetaID. Readers take a point-in-time copy at
// publish time rather than holding a lock across a send.
type Registry struct {
	entries map[MetaID]*Metadata
}

// NewRegistry creates an empty metadata registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[MetaID]*Metadata)}
}

// Register adds meta to the registry. Re-registering the same MetaID is
// a no-op: callsites register exactly once, but a defensive duplicate
// registration (e.g. a race between two instrumentation threads first
// touching a callsite) must not corrupt state.
func (r *Registry) Register(meta *Metadata) (isNew bool) {
	if _, ok := r.entries[meta.ID]; ok {
		return false
	}
	r.entries[meta.ID] = meta
	return true
}

// Get looks up a previously registered Metadata.
func (r *Registry) Get(id MetaID) (*Metadata, bool) {
	m, ok := r.entries[id]
	return m, ok
}

// Snapshot returns a shallow copy of every registered Metadata, safe to
// hand to a publish step without holding the registry's internal lock
// (the registry itself isn't locked — it's only ever mutated from the
// single aggregator goroutine — but Snapshot gives the wire encoder an
// independent slice to range over).
func (r *Registry) Snapshot() []*Metadata {
	out := make([]*Metadata, 0, len(r.entries))
	for _, m := range r.entries {
		out = append(out, m)
	}
	return out
}
