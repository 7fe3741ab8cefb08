package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Record is an ordered mapping from property name to Value. Keys keep their
// first insertion order. Records are not safe for concurrent mutation.
type Record struct {
	keys   []string
	values map[string]Value
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[string]Value)}
}

// RecordOf builds a record from alternating key/value pairs. Values are passed
// through FromAny. It panics on an odd argument count or a non-string key.
func RecordOf(pairs ...any) *Record {
	if len(pairs)%2 != 0 {
		panic("value: RecordOf requires key/value pairs")
	}
	r := NewRecord()
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("value: RecordOf key %v is not a string", pairs[i]))
		}
		r.Set(key, FromAny(pairs[i+1]))
	}
	return r
}

// RecordFromMap converts a plain map into a record with sorted keys.
func RecordFromMap(m map[string]any) *Record {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r := NewRecord()
	for _, k := range keys {
		r.Set(k, FromAny(m[k]))
	}
	return r
}

// Set stores v under key. Setting Undefined removes the key.
func (r *Record) Set(key string, v Value) {
	if !v.IsDefined() {
		r.Delete(key)
		return
	}
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Get returns the value under key. Missing keys yield (Undefined, false).
func (r *Record) Get(key string) (Value, bool) {
	if r == nil {
		return Undefined(), false
	}
	v, ok := r.values[key]
	return v, ok
}

// Value returns the value under key, Undefined when missing.
func (r *Record) Value(key string) Value {
	v, _ := r.Get(key)
	return v
}

// Has reports whether key is present.
func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Delete removes key.
func (r *Record) Delete(key string) {
	if _, ok := r.values[key]; !ok {
		return
	}
	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of keys.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := NewRecord()
	for _, k := range r.keys {
		out.Set(k, cloneValue(r.values[k]))
	}
	return out
}

func cloneValue(v Value) Value {
	switch v.kind {
	case KindComposite:
		return Composite(v.record.Clone())
	case KindObject:
		return Object(v.record.Clone())
	case KindList:
		items := make([]Value, len(v.items))
		for i, it := range v.items {
			items[i] = cloneValue(it)
		}
		return List(items...)
	default:
		return v
	}
}

// Map converts the record into a plain map.
func (r *Record) Map() map[string]any {
	if r == nil {
		return nil
	}
	out := make(map[string]any, len(r.keys))
	for _, k := range r.keys {
		out[k] = r.values[k].Any()
	}
	return out
}

// MarshalJSON encodes the record as a JSON object in key order.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into the record, keeping key order.
func (r *Record) UnmarshalJSON(data []byte) error {
	v, err := decodeDocument(data)
	if err != nil {
		return err
	}
	if v.kind != KindObject {
		return fmt.Errorf("value: expected JSON object, got %s", v.kind)
	}
	*r = *v.record
	return nil
}
