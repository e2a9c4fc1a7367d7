package valueobjects

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// PropertyKind enumerates the shapes a property value can take.
type PropertyKind int

const (
	KindNull PropertyKind = iota
	KindText
	KindNumber
	KindBool
	KindTextList
	KindCollections
	KindObject
)

// Property type names stored alongside each property.
const (
	PropertyTypeString      = "string"
	PropertyTypeNumber      = "number"
	PropertyTypeBoolean     = "boolean"
	PropertyTypeStringArray = "string-array"
	PropertyTypeCollection  = "collection"
	PropertyTypeObject      = "object"
)

// PropertyValue is the value of a single node property.
// The zero value is the null value.
type PropertyValue struct {
	kind        PropertyKind
	text        string
	number      float64
	boolean     bool
	list        []string
	collections Collections
	object      any
}

func NullValue() PropertyValue { return PropertyValue{} }

func TextValue(s string) PropertyValue { return PropertyValue{kind: KindText, text: s} }

func NumberValue(n float64) PropertyValue { return PropertyValue{kind: KindNumber, number: n} }

func BoolValue(b bool) PropertyValue { return PropertyValue{kind: KindBool, boolean: b} }

func TextListValue(items []string) PropertyValue {
	list := make([]string, len(items))
	copy(list, items)
	return PropertyValue{kind: KindTextList, list: list}
}

// CollectionsValue wraps relationship-typed data. A nil argument becomes an empty list.
func CollectionsValue(cs Collections) PropertyValue {
	cloned := cs.Clone()
	if cloned == nil {
		cloned = Collections{}
	}
	return PropertyValue{kind: KindCollections, collections: cloned}
}

// ObjectValue wraps arbitrary structured data that has no dedicated kind.
func ObjectValue(v any) PropertyValue {
	return PropertyValue{kind: KindObject, object: cloneAny(v)}
}

// FromAny builds a property value from untyped decoded data such as the output of
// encoding/json or attributevalue.Unmarshal.
func FromAny(v any) PropertyValue {
	switch t := v.(type) {
	case nil:
		return NullValue()
	case PropertyValue:
		return t.Clone()
	case string:
		return TextValue(t)
	case bool:
		return BoolValue(t)
	case float64:
		return NumberValue(t)
	case float32:
		return NumberValue(float64(t))
	case int:
		return NumberValue(float64(t))
	case int64:
		return NumberValue(float64(t))
	case int32:
		return NumberValue(float64(t))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return NumberValue(f)
		}
		return TextValue(t.String())
	case []string:
		return TextListValue(t)
	case Collections:
		return CollectionsValue(t)
	case []Collection:
		return CollectionsValue(Collections(t))
	case []any:
		return fromSlice(t)
	default:
		return ObjectValue(t)
	}
}

func fromSlice(items []any) PropertyValue {
	if len(items) == 0 {
		return TextListValue(nil)
	}
	if list, ok := stringSlice(items); ok {
		return TextListValue(list)
	}
	if cs, ok := collectionSlice(items); ok {
		return CollectionsValue(cs)
	}
	return ObjectValue(items)
}

func stringSlice(items []any) ([]string, bool) {
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func collectionSlice(items []any) (Collections, bool) {
	out := make(Collections, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		name, hasName := m["collectionName"].(string)
		if !hasName {
			return nil, false
		}
		c := Collection{CollectionName: name, Nodes: []LinkNode{}}
		if rawNodes, ok := m["nodes"].([]any); ok {
			for _, rn := range rawNodes {
				nm, ok := rn.(map[string]any)
				if !ok {
					return nil, false
				}
				id, _ := nm["id"].(string)
				title, _ := nm["title"].(string)
				c.Nodes = append(c.Nodes, LinkNode{ID: id, Title: title})
			}
		}
		out = append(out, c)
	}
	return out, true
}

// Kind returns the variant held by v.
func (v PropertyValue) Kind() PropertyKind { return v.kind }

// IsNull reports whether v is the null value.
func (v PropertyValue) IsNull() bool { return v.kind == KindNull }

// Text returns the string payload.
func (v PropertyValue) Text() (string, bool) { return v.text, v.kind == KindText }

// Number returns the numeric payload.
func (v PropertyValue) Number() (float64, bool) { return v.number, v.kind == KindNumber }

// Bool returns the boolean payload.
func (v PropertyValue) Bool() (bool, bool) { return v.boolean, v.kind == KindBool }

// TextList returns a copy of the string-list payload.
func (v PropertyValue) TextList() ([]string, bool) {
	if v.kind != KindTextList {
		return nil, false
	}
	out := make([]string, len(v.list))
	copy(out, v.list)
	return out, true
}

// Collections returns a copy of the relationship payload.
func (v PropertyValue) Collections() (Collections, bool) {
	if v.kind != KindCollections {
		return nil, false
	}
	return v.collections.Clone(), true
}

// IsEmpty reports whether v carries no information: null, "", an empty list or
// collections that reference no node.
func (v PropertyValue) IsEmpty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindText:
		return v.text == ""
	case KindTextList:
		return len(v.list) == 0
	case KindCollections:
		return len(v.collections.IDs()) == 0
	default:
		return false
	}
}

// Interface returns v as plain Go data suitable for generic encoders.
func (v PropertyValue) Interface() any {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return v.number
	case KindBool:
		return v.boolean
	case KindTextList:
		out := make([]string, len(v.list))
		copy(out, v.list)
		return out
	case KindCollections:
		return v.collections.Clone()
	case KindObject:
		return cloneAny(v.object)
	default:
		return nil
	}
}

// Equal compares two values semantically. Collections compare by names and ids.
func (v PropertyValue) Equal(other PropertyValue) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindText:
		return v.text == other.text
	case KindNumber:
		return v.number == other.number
	case KindBool:
		return v.boolean == other.boolean
	case KindTextList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != other.list[i] {
				return false
			}
		}
		return true
	case KindCollections:
		return v.collections.Equal(other.collections)
	case KindObject:
		return reflect.DeepEqual(normalizeAny(v.object), normalizeAny(other.object))
	default:
		return false
	}
}

// Clone returns a deep copy of v.
func (v PropertyValue) Clone() PropertyValue {
	out := v
	if v.list != nil {
		out.list = make([]string, len(v.list))
		copy(out.list, v.list)
	}
	out.collections = v.collections.Clone()
	out.object = cloneAny(v.object)
	return out
}

// String renders v for changelog entries and log fields.
func (v PropertyValue) String() string {
	if v.kind == KindText {
		return v.text
	}
	data, err := json.Marshal(v.Interface())
	if err != nil {
		return fmt.Sprintf("%v", v.Interface())
	}
	return string(data)
}

// MarshalJSON implements json.Marshaler
func (v PropertyValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler
func (v *PropertyValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// InferPropertyType maps a value to the property type name stored with it.
// Null has no intrinsic type and is recorded as a string property.
func InferPropertyType(v PropertyValue) string {
	switch v.kind {
	case KindText, KindNull:
		return PropertyTypeString
	case KindNumber:
		return PropertyTypeNumber
	case KindBool:
		return PropertyTypeBoolean
	case KindTextList:
		return PropertyTypeStringArray
	case KindCollections:
		return PropertyTypeCollection
	case KindObject:
		return PropertyTypeObject
	default:
		return PropertyTypeString
	}
}

func cloneAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = cloneAny(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneAny(item)
		}
		return out
	default:
		return v
	}
}

// normalizeAny folds numeric types so that values decoded by different codecs compare equal.
func normalizeAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalizeAny(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeAny(item)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
