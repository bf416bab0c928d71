// Package instrument implements the runtime integration boundary (spec
// §4.E, §6.1): classifying callsites into the closed set of recognized
// shapes, extracting fields once per span, and handing events to the
// aggregator through a backpressured channel.
package instrument

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Class is the result of classifying one callsite by its target, name,
// and field set (spec §6.1).
type Class uint8

const (
	ClassUnknown Class = iota
	ClassTaskSpawn
	ClassTaskBlockingSpawn
	ClassResource
	ClassAsyncOp
	ClassPollOp
	ClassStateUpdate
	ClassWaker
)

const (
	targetTask        = "tokio::task"
	targetResource    = "runtime.resource"
	targetAsyncOp     = "runtime.resource.async_op"
	spawnName         = "runtime.spawn"
	legacySpawnName   = "tokio::task"
	fieldTaskName     = "task.name"
	fieldFunction     = "function"
	fieldConcreteType = "concrete_type"
	fieldKind         = "kind"
	fieldSource       = "source"
	fieldOpName       = "op_name"
	fieldOpType       = "op_type"
	fieldOp           = "op"
	fieldTaskID       = "task.id"

	opTypePoll        = "poll"
	opTypeStateUpdate = "state_update"
)

// callsiteKey identifies a callsite the way the classifier keys its
// cache: target+name, since field sets are fixed per callsite.
type callsiteKey struct {
	target string
	name   string
}

// Classifier classifies callsites and remembers the result so repeat
// classification of the same hot callsite is a cache lookup rather than
// a re-scan of its field names (spec §4.E "callsite cache").
type Classifier struct {
	cache *lru.Cache[callsiteKey, Class]
}

// callsiteCacheSize bounds the classifier cache at the small size the
// source uses: callsites are a closed, small set per process, so 32
// entries comfortably covers real workloads without unbounded growth.
const callsiteCacheSize = 32

// NewClassifier creates a classifier with the standard bounded cache.
func NewClassifier() *Classifier {
	c, err := lru.New[callsiteKey, Class](callsiteCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// callsiteCacheSize never is.
		panic(err)
	}
	return &Classifier{cache: c}
}

// Classify classifies a span or event callsite given its target, name,
// and the set of field names it carries.
func (c *Classifier) Classify(target, name string, fieldNames []string) Class {
	key := callsiteKey{target: target, name: name}
	if cls, ok := c.cache.Get(key); ok {
		return cls
	}
	cls := classify(target, name, fieldNames)
	c.cache.Add(key, cls)
	return cls
}

func classify(target, name string, fieldNames []string) Class {
	has := func(field string) bool {
		for _, f := range fieldNames {
			if f == field {
				return true
			}
		}
		return false
	}

	if target == targetTask && (name == spawnName || name == legacySpawnName) && has(fieldTaskName) {
		if has(fieldFunction) {
			return ClassTaskBlockingSpawn
		}
		return ClassTaskSpawn
	}
	if target == targetResource && has(fieldConcreteType) && has(fieldKind) {
		return ClassResource
	}
	if target == targetAsyncOp && has(fieldSource) {
		return ClassAsyncOp
	}
	// Span callsites stop here; instantaneous events (poll ops, state
	// updates, waker ops) are classified by ClassifyEvent instead, since
	// op_type's literal value (not just presence) disambiguates them.
	return ClassUnknown
}

// ClassifyEvent classifies an instantaneous event callsite, where
// op_type's actual value (not just its presence) disambiguates poll ops
// from state updates and waker events must be checked by op name
// instead of field presence.
func ClassifyEvent(target, opType, op string, fieldNames []string) Class {
	switch {
	case opType == opTypePoll:
		return ClassPollOp
	case opType == opTypeStateUpdate:
		return ClassStateUpdate
	case op == "waker.wake", op == "waker.wake_by_ref", op == "waker.clone", op == "waker.drop":
		return ClassWaker
	default:
		return ClassUnknown
	}
}
