package model

import "math"

// AttributeOp selects how an attribute update combines with the
// current value (spec §3).
type AttributeOp uint8

const (
	AttrOverride AttributeOp = iota
	AttrAdd
	AttrSub
)

// AttributeUpdate is one incoming update to a keyed, unit-tagged
// attribute on a Resource or AsyncOp.
type AttributeUpdate struct {
	Key   string
	Value FieldValue
	Unit  string
	Op    AttributeOp
}

// AttributeSet is the live set of attributes on one Resource or AsyncOp,
// keyed by name. Updates whose value type doesn't match the attribute's
// current type are logged and dropped by the caller (spec §3) — Apply
// reports that case via ok=false so the caller can do the logging with
// its own context (entity id, callsite).
type AttributeSet struct {
	values map[string]FieldValue
	units  map[string]string
}

// NewAttributeSet creates an empty attribute set.
func NewAttributeSet() *AttributeSet {
	return &AttributeSet{
		values: make(map[string]FieldValue),
		units:  make(map[string]string),
	}
}

// Apply merges an update into the set. Numeric Add/Sub operations
// saturate rather than wrap, per spec §3.
func (a *AttributeSet) Apply(u AttributeUpdate) (ok bool) {
	current, exists := a.values[u.Key]

	if u.Unit != "" {
		a.units[u.Key] = u.Unit
	}

	if u.Op == AttrOverride || !exists {
		a.values[u.Key] = u.Value
		return true
	}

	if current.Kind != u.Value.Kind {
		return false
	}

	switch current.Kind {
	case FieldU64:
		a.values[u.Key] = U64Value(saturatingCombineU64(current.U, u.Value.U, u.Op))
	case FieldI64:
		a.values[u.Key] = I64Value(saturatingCombineI64(current.I, u.Value.I, u.Op))
	default:
		// Add/Sub on a non-numeric type is a type mismatch.
		return false
	}
	return true
}

func saturatingCombineU64(cur, delta uint64, op AttributeOp) uint64 {
	if op == AttrAdd {
		sum := cur + delta
		if sum < cur { // overflow
			return math.MaxUint64
		}
		return sum
	}
	if delta > cur {
		return 0
	}
	return cur - delta
}

func saturatingCombineI64(cur, delta int64, op AttributeOp) int64 {
	if op == AttrSub {
		delta = -delta
	}
	sum := cur + delta
	// overflow check via sign comparison
	if delta > 0 && sum < cur {
		return math.MaxInt64
	}
	if delta < 0 && sum > cur {
		return math.MinInt64
	}
	return sum
}

// Get returns the current value for key.
func (a *AttributeSet) Get(key string) (FieldValue, bool) {
	v, ok := a.values[key]
	return v, ok
}

// Snapshot returns a list of updates describing the current state,
// suitable for a wire publish.
func (a *AttributeSet) Snapshot() []AttributeUpdate {
	out := make([]AttributeUpdate, 0, len(a.values))
	for k, v := range a.values {
		out = append(out, AttributeUpdate{Key: k, Value: v, Unit: a.units[k], Op: AttrOverride})
	}
	return out
}
