package value

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"entity-persister/core/utils"

	"github.com/google/go-cmp/cmp"
)

// Equal reports whether a and b hold the same data. Composite and Object
// values compare as unordered maps; numbers compare numerically whatever their
// Go type; time.Time values compare as instants.
func Equal(a, b Value) bool {
	ak, bk := normalizedKind(a.kind), normalizedKind(b.kind)
	if ak != bk {
		return false
	}
	switch ak {
	case KindUndefined, KindNull:
		return true
	case KindScalar:
		return scalarEqual(a.scalar, b.scalar)
	case KindObject:
		return recordsEqual(a.record, b.record)
	case KindList:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func normalizedKind(k Kind) Kind {
	if k == KindComposite {
		return KindObject
	}
	return k
}

func recordsEqual(a, b *Record) bool {
	if a.Len() != b.Len() {
		return false
	}
	for _, k := range a.keys {
		bv, ok := b.Get(k)
		if !ok || !Equal(a.values[k], bv) {
			return false
		}
	}
	return true
}

func scalarEqual(x, y any) bool {
	if utils.IsNumeric(x) && utils.IsNumeric(y) {
		if utils.IsInteger(x) && utils.IsInteger(y) {
			xi, xok := utils.ToInt64(x)
			yi, yok := utils.ToInt64(y)
			if xok && yok {
				return xi == yi
			}
		}
		xf, _ := utils.ToFloat64(x)
		yf, _ := utils.ToFloat64(y)
		return xf == yf
	}
	xb, xIsBytes := x.([]byte)
	yb, yIsBytes := y.([]byte)
	if xIsBytes || yIsBytes {
		if xIsBytes && yIsBytes {
			return string(xb) == string(yb)
		}
		return utils.ToString(x) == utils.ToString(y) && isTextual(x) && isTextual(y)
	}
	if reflect.TypeOf(x) != reflect.TypeOf(y) {
		return false
	}
	return cmp.Equal(x, y, cmp.Exporter(func(reflect.Type) bool { return true }))
}

func isTextual(v any) bool {
	switch v.(type) {
	case string, []byte:
		return true
	default:
		return false
	}
}

// Key renders a canonical string for v such that Equal values share a key.
// It is used to index subjects and related identifiers.
func Key(v Value) string {
	var b strings.Builder
	writeKey(&b, v)
	return b.String()
}

func writeKey(b *strings.Builder, v Value) {
	switch v.kind {
	case KindUndefined:
		b.WriteString("~")
	case KindNull:
		b.WriteString("null")
	case KindScalar:
		writeScalarKey(b, v.scalar)
	case KindComposite, KindObject:
		keys := v.record.Keys()
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte('=')
			writeKey(b, v.record.values[k])
		}
		b.WriteByte('}')
	case KindList:
		b.WriteByte('[')
		for i, it := range v.items {
			if i > 0 {
				b.WriteByte(',')
			}
			writeKey(b, it)
		}
		b.WriteByte(']')
	}
}

func writeScalarKey(b *strings.Builder, x any) {
	switch t := x.(type) {
	case string:
		b.WriteString(strconv.Quote(t))
	case []byte:
		b.WriteString(strconv.Quote(string(t)))
	case bool:
		b.WriteString(strconv.FormatBool(t))
	case time.Time:
		b.WriteString("t:" + t.UTC().Format(time.RFC3339Nano))
	default:
		if i, ok := utils.ToInt64(x); ok && utils.IsNumeric(x) {
			b.WriteString("n:" + strconv.FormatInt(i, 10))
			return
		}
		if f, ok := utils.ToFloat64(x); ok {
			b.WriteString("n:" + strconv.FormatFloat(f, 'g', -1, 64))
			return
		}
		fmt.Fprintf(b, "%T:%v", x, x)
	}
}
