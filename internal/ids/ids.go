// Package ids implements the sequential-ID rewriter (spec §3, §4.C): a
// map from unstable, reusable remote span IDs to stable, monotonically
// increasing sequential IDs, typed per entity kind so a Task ID and a
// Resource ID can never be cross-used even though both wrap a uint64.
package ids

import "sync"

// Kind distinguishes the entity the rewriter is allocating IDs for.
type Kind uint8

const (
	KindTask Kind = iota
	KindResource
	KindAsyncOp
)

// ID is a stable sequential identifier, scoped to one Kind.
type ID struct {
	Kind  Kind
	Value uint64
}

// Remote is the opaque, reusable span ID the runtime hands us.
type Remote uint64

// Rewriter maps remote IDs to sequential IDs for a single entity kind.
// The zero value is not usable; use NewRewriter.
type Rewriter struct {
	kind Kind

	mu      sync.Mutex
	next    uint64
	forward map[Remote]ID
}

// NewRewriter creates a rewriter for one entity kind. Both the
// aggregator and the client maintain independent instances: remote IDs
// from a fresh server session are not comparable to a previous one, so
// each side rewrites from its own session start.
func NewRewriter(kind Kind) *Rewriter {
	return &Rewriter{
		kind:    kind,
		forward: make(map[Remote]ID),
	}
}

// IDFor returns the existing mapping for remote, allocating the next
// sequential ID if this is the first time remote has been seen. The
// counter wraps on overflow rather than panicking — over any session
// lifetime that matters in practice, wrap-around is unreachable, but the
// wrapping add keeps the contract well-defined.
func (r *Rewriter) IDFor(remote Remote) ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.forward[remote]; ok {
		return id
	}

	id := ID{Kind: r.kind, Value: r.next}
	r.next++ // wraps at MaxUint64, by Go's unsigned-overflow semantics
	r.forward[remote] = id
	return id
}

// Forget drops the forward mapping for remote so a future reuse of the
// same remote ID (the runtime recycles span IDs after a span closes)
// allocates a fresh sequential ID rather than resurrecting the old one.
func (r *Rewriter) Forget(remote Remote) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.forward, remote)
}

// Len reports how many remote IDs are currently mapped.
func (r *Rewriter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.forward)
}
