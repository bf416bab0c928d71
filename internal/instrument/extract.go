package instrument

import (
	"strings"

	"github.com/asyncwatch/console/internal/model"
)

// RawField is one field as handed to the layer by the tracing
// framework's visitor callback, before it's been resolved into a
// model.Field (which additionally carries a metadata id).
type RawField struct {
	Name  string
	Value model.FieldValue
}

// ExtractFields converts raw visitor output into the Vec<Field> shape
// spec §4.E specifies, produced once per span creation.
func ExtractFields(meta model.MetaID, raw []RawField) []model.Field {
	out := make([]model.Field, 0, len(raw))
	for _, f := range raw {
		out = append(out, model.Field{
			Name:   model.FieldName{Literal: f.Name},
			Value:  f.Value,
			MetaID: meta,
		})
	}
	return out
}

// FindField returns the value of the named field, if present.
func FindField(fields []RawField, name string) (model.FieldValue, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return model.FieldValue{}, false
}

// FindString is FindField specialized for a string-valued field.
func FindString(fields []RawField, name string) (string, bool) {
	v, ok := FindField(fields, name)
	if !ok || v.Kind != model.FieldString {
		return "", false
	}
	return v.S, true
}

// stateAttrPrefix/suffixes match the runtime's flattened encoding of an
// attribute update onto event fields (spec §6.1): for a numeric
// attribute "foo", the event carries state_foo_value, state_foo_op, and
// optionally state_foo_unit; textual attributes carry only
// state_foo_value.
const (
	stateAttrPrefix     = "state_"
	stateValueSuffix    = "_value"
	stateOpSuffix       = "_op"
	stateUnitSuffix     = "_unit"
)

// ExtractAttributeUpdates reconstructs the AttributeUpdate list encoded
// across a state-update event's flattened fields.
func ExtractAttributeUpdates(fields []RawField) []model.AttributeUpdate {
	byAttr := map[string]*model.AttributeUpdate{}
	order := []string{}

	get := func(key string) *model.AttributeUpdate {
		if u, ok := byAttr[key]; ok {
			return u
		}
		u := &model.AttributeUpdate{Key: key, Op: model.AttrOverride}
		byAttr[key] = u
		order = append(order, key)
		return u
	}

	for _, f := range fields {
		if !strings.HasPrefix(f.Name, stateAttrPrefix) {
			continue
		}
		rest := strings.TrimPrefix(f.Name, stateAttrPrefix)
		switch {
		case strings.HasSuffix(rest, stateValueSuffix):
			attr := strings.TrimSuffix(rest, stateValueSuffix)
			get(attr).Value = f.Value
		case strings.HasSuffix(rest, stateOpSuffix):
			attr := strings.TrimSuffix(rest, stateOpSuffix)
			get(attr).Op = decodeAttrOp(f.Value)
		case strings.HasSuffix(rest, stateUnitSuffix):
			attr := strings.TrimSuffix(rest, stateUnitSuffix)
			get(attr).Unit = f.Value.String()
		}
	}

	out := make([]model.AttributeUpdate, 0, len(order))
	for _, k := range order {
		out = append(out, *byAttr[k])
	}
	return out
}

func decodeAttrOp(v model.FieldValue) model.AttributeOp {
	switch v.String() {
	case "add":
		return model.AttrAdd
	case "sub":
		return model.AttrSub
	default:
		return model.AttrOverride
	}
}
