package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ParseJSON decodes a JSON document into a Value, preserving object key order.
// Integral numbers become int64, other numbers float64.
func ParseJSON(data []byte) (Value, error) {
	return decodeDocument(data)
}

func decodeDocument(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Undefined(), err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Undefined(), fmt.Errorf("value: trailing data after JSON document")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Undefined(), err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			r := NewRecord()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Undefined(), err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Undefined(), fmt.Errorf("value: unexpected object key %v", keyTok)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return Undefined(), err
				}
				r.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return Undefined(), err
			}
			return Object(r), nil
		case '[':
			items := []Value{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return Undefined(), err
				}
				items = append(items, v)
			}
			if _, err := dec.Token(); err != nil {
				return Undefined(), err
			}
			return List(items...), nil
		default:
			return Undefined(), fmt.Errorf("value: unexpected delimiter %v", t)
		}
	case nil:
		return Null(), nil
	case json.Number:
		return Scalar(numberValue(t)), nil
	default:
		return Scalar(t), nil
	}
}

func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
