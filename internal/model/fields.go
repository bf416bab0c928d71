package model

import "fmt"

// FieldValueKind tags which variant of the value union is populated.
type FieldValueKind uint8

const (
	FieldBool FieldValueKind = iota
	FieldI64
	FieldU64
	FieldString
	FieldDebug // a debug-printed (%+v-style) representation of an arbitrary value
)

// FieldValue is a tagged union over the value types a traced field can
// carry. Only the member matching Kind is meaningful.
type FieldValue struct {
	Kind FieldValueKind
	B    bool
	I    int64
	U    uint64
	S    string
}

func BoolValue(b bool) FieldValue     { return FieldValue{Kind: FieldBool, B: b} }
func I64Value(i int64) FieldValue     { return FieldValue{Kind: FieldI64, I: i} }
func U64Value(u uint64) FieldValue    { return FieldValue{Kind: FieldU64, U: u} }
func StringValue(s string) FieldValue { return FieldValue{Kind: FieldString, S: s} }
func DebugValue(v any) FieldValue     { return FieldValue{Kind: FieldDebug, S: fmt.Sprintf("%+v", v)} }

// String renders the value for display/logging, independent of kind.
func (v FieldValue) String() string {
	switch v.Kind {
	case FieldBool:
		return fmt.Sprintf("%t", v.B)
	case FieldI64:
		return fmt.Sprintf("%d", v.I)
	case FieldU64:
		return fmt.Sprintf("%d", v.U)
	default:
		return v.S
	}
}

// FieldName identifies a field either by its literal name or by index
// into the owning Metadata's FieldNames list — the instrumentation
// layer uses whichever is cheaper at the call site.
type FieldName struct {
	Literal string
	Index   int
	ByIndex bool
}

// Resolve returns the field's literal name, looking it up in meta's
// field-name list when the FieldName was captured by index.
func (n FieldName) Resolve(meta *Metadata) string {
	if !n.ByIndex {
		return n.Literal
	}
	if meta != nil && n.Index >= 0 && n.Index < len(meta.FieldNames) {
		return meta.FieldNames[n.Index]
	}
	return ""
}

// Field is one extracted field value, produced once per span creation
// (spec §4.E).
type Field struct {
	Name     FieldName
	Value    FieldValue
	MetaID   MetaID
}
