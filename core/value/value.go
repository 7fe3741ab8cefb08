package value

import (
	"encoding/json"
	"fmt"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	// KindUndefined marks an absent property. It is the zero Kind.
	KindUndefined Kind = iota
	// KindNull marks an explicit null.
	KindNull
	// KindScalar marks a single Go value.
	KindScalar
	// KindComposite marks a multi-column identifier.
	KindComposite
	// KindObject marks a nested object.
	KindObject
	// KindList marks an ordered sequence of values.
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindComposite:
		return "composite"
	case KindObject:
		return "object"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a tagged variant. The zero Value is Undefined.
type Value struct {
	kind   Kind
	scalar any
	record *Record
	items  []Value
}

// Undefined returns the absent value.
func Undefined() Value { return Value{} }

// Null returns an explicit null.
func Null() Value { return Value{kind: KindNull} }

// Scalar wraps a single Go value. A nil argument yields Null.
func Scalar(v any) Value {
	if v == nil {
		return Null()
	}
	return Value{kind: KindScalar, scalar: v}
}

// Composite wraps a multi-column identifier. A nil record yields Null.
func Composite(r *Record) Value {
	if r == nil {
		return Null()
	}
	return Value{kind: KindComposite, record: r}
}

// Object wraps a nested object. A nil record yields Null.
func Object(r *Record) Value {
	if r == nil {
		return Null()
	}
	return Value{kind: KindObject, record: r}
}

// List wraps an ordered sequence of values.
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, items: items}
}

// FromAny converts plain Go data into a Value. Maps become Objects (keys in
// sorted order), slices become Lists, nil becomes Null and everything else is a
// Scalar. []byte stays a Scalar.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case *Record:
		return Object(t)
	case map[string]any:
		return Object(RecordFromMap(t))
	case []any:
		items := make([]Value, len(t))
		for i, it := range t {
			items[i] = FromAny(it)
		}
		return List(items...)
	case []map[string]any:
		items := make([]Value, len(t))
		for i, it := range t {
			items[i] = Object(RecordFromMap(it))
		}
		return List(items...)
	case []string:
		items := make([]Value, len(t))
		for i, it := range t {
			items[i] = Scalar(it)
		}
		return List(items...)
	case json.Number:
		return Scalar(numberValue(t))
	default:
		return Scalar(t)
	}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsDefined reports whether the value is anything but Undefined.
func (v Value) IsDefined() bool { return v.kind != KindUndefined }

// IsNull reports whether the value is an explicit null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsNullish reports whether the value is Undefined or Null.
func (v Value) IsNullish() bool { return v.kind == KindUndefined || v.kind == KindNull }

// IsObject reports whether the value is a nested object.
func (v Value) IsObject() bool { return v.kind == KindObject }

// IsList reports whether the value is a list.
func (v Value) IsList() bool { return v.kind == KindList }

// IsScalar reports whether the value is a scalar.
func (v Value) IsScalar() bool { return v.kind == KindScalar }

// Raw returns the wrapped Go value of a Scalar, or nil.
func (v Value) Raw() any { return v.scalar }

// Record returns the record behind a Composite or Object, or nil.
func (v Value) Record() *Record { return v.record }

// Items returns the elements of a List, or nil.
func (v Value) Items() []Value { return v.items }

// Any converts the value back into plain Go data. Undefined and Null both
// become nil; Composite and Object become map[string]any.
func (v Value) Any() any {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindComposite, KindObject:
		return v.record.Map()
	case KindList:
		out := make([]any, len(v.items))
		for i, it := range v.items {
			out[i] = it.Any()
		}
		return out
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindScalar:
		return fmt.Sprintf("%v", v.scalar)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return v.kind.String()
		}
		return string(b)
	}
}

// MarshalJSON encodes the value. Undefined encodes as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindUndefined, KindNull:
		return []byte("null"), nil
	case KindScalar:
		return json.Marshal(v.scalar)
	case KindComposite, KindObject:
		return v.record.MarshalJSON()
	case KindList:
		return json.Marshal(v.items)
	default:
		return nil, fmt.Errorf("value: cannot marshal %s", v.kind)
	}
}

// UnmarshalJSON decodes any JSON document into the value, preserving object
// key order.
func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := decodeDocument(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}
