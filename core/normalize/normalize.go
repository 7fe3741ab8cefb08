package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"entity-persister/core/metadata"
	"entity-persister/core/utils"
	"entity-persister/core/value"
)

const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04:05"
	DateTimeLayout = "2006-01-02 15:04:05.000"
)

// Layouts accepted when parsing textual dates and datetimes. Layouts without a
// zone are interpreted in the column's storage zone, see StorageLocation.
var (
	zonedLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999999Z07:00"}
	naiveLayouts = []string{"2006-01-02 15:04:05.999999999", "2006-01-02T15:04:05.999999999", "2006-01-02 15:04", DateLayout}
	timeLayouts  = []string{"15:04:05.999999999", "15:04"}
)

// Normalizer applies the per-type normalization rules. The zero value uses
// time.Local as its local time zone.
type Normalizer struct {
	// Location is the time zone used for local-time conversions and for
	// parsing strings without an explicit zone.
	Location *time.Location
}

// New returns a normalizer using loc as local time zone. A nil loc means
// time.Local.
func New(loc *time.Location) *Normalizer {
	return &Normalizer{Location: loc}
}

func (n *Normalizer) location() *time.Location {
	if n == nil || n.Location == nil {
		return time.Local
	}
	return n.Location
}

// StorageLocation returns the zone in which zone-less values of col are
// written: UTC for datetime columns not loaded in local time, the local
// location otherwise.
func (n *Normalizer) StorageLocation(col *metadata.Column) *time.Location {
	if col.SemanticType() == metadata.ColumnDateTime && !col.LoadInLocalTimezone {
		return time.UTC
	}
	return n.location()
}

// Pair normalizes an entity value and the matching database value for
// comparison. Null or undefined entity values are returned untouched, as are
// null or undefined database values.
func (n *Normalizer) Pair(col *metadata.Column, entityValue, databaseValue value.Value) (value.Value, value.Value, error) {
	if entityValue.IsNullish() {
		return entityValue, databaseValue, nil
	}

	var err error
	switch col.SemanticType() {
	case metadata.ColumnDate:
		entityValue, err = n.date(col, entityValue)
	case metadata.ColumnTime:
		entityValue, err = n.time(col, entityValue)
	case metadata.ColumnDateTime:
		if entityValue, err = n.datetime(col, entityValue); err != nil {
			return value.Undefined(), value.Undefined(), err
		}
		if !databaseValue.IsNullish() {
			databaseValue, err = n.datetime(col, databaseValue)
		}
	case metadata.ColumnJSON:
		if entityValue, err = jsonString(col, entityValue); err != nil {
			return value.Undefined(), value.Undefined(), err
		}
		if !databaseValue.IsNullish() {
			databaseValue, err = jsonString(col, databaseValue)
		}
	case metadata.ColumnDelimitedArray:
		if entityValue, err = delimited(col, entityValue); err != nil {
			return value.Undefined(), value.Undefined(), err
		}
		if !databaseValue.IsNullish() {
			databaseValue, err = delimited(col, databaseValue)
		}
	}
	if err != nil {
		return value.Undefined(), value.Undefined(), err
	}
	return entityValue, databaseValue, nil
}

// Canonical normalizes a single value the way entity values are normalized.
// Persistence collaborators use it to bind parameters and to canonicalize date
// and time columns read from storage.
func (n *Normalizer) Canonical(col *metadata.Column, v value.Value) (value.Value, error) {
	if v.IsNullish() {
		return v, nil
	}
	switch col.SemanticType() {
	case metadata.ColumnDate:
		return n.date(col, v)
	case metadata.ColumnTime:
		return n.time(col, v)
	case metadata.ColumnDateTime:
		return n.datetime(col, v)
	case metadata.ColumnJSON:
		return jsonString(col, v)
	case metadata.ColumnDelimitedArray:
		return delimited(col, v)
	default:
		return v, nil
	}
}

// Stored normalizes a value read back from storage. Drivers that parse
// temporal columns return a time.Time holding the stored wall clock in the
// driver's zone; that wall clock is re-read in the column's storage zone
// before the value is brought to canonical form.
func (n *Normalizer) Stored(col *metadata.Column, v value.Value) (value.Value, error) {
	if t, ok := v.Raw().(time.Time); ok && v.IsScalar() {
		switch col.SemanticType() {
		case metadata.ColumnDate, metadata.ColumnDateTime, metadata.ColumnTime:
			v = value.Scalar(time.Date(t.Year(), t.Month(), t.Day(),
				t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), n.StorageLocation(col)))
		}
	}
	return n.Canonical(col, v)
}

// Instant parses a date or datetime value into a time.Time, interpreting
// zone-less strings in the column's storage zone.
func (n *Normalizer) Instant(col *metadata.Column, v value.Value) (time.Time, error) {
	return n.instant(col, v)
}

func (n *Normalizer) date(col *metadata.Column, v value.Value) (value.Value, error) {
	t, err := n.instant(col, v)
	if err != nil {
		return value.Undefined(), err
	}
	return value.Scalar(t.In(n.location()).Format(DateLayout)), nil
}

func (n *Normalizer) time(col *metadata.Column, v value.Value) (value.Value, error) {
	raw := v.Raw()
	if s, ok := raw.(string); ok {
		s = strings.TrimSpace(s)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return value.Scalar(t.Format(TimeLayout)), nil
			}
		}
	}
	t, err := n.instant(col, v)
	if err != nil {
		return value.Undefined(), err
	}
	return value.Scalar(t.In(n.location()).Format(TimeLayout)), nil
}

func (n *Normalizer) datetime(col *metadata.Column, v value.Value) (value.Value, error) {
	t, err := n.instant(col, v)
	if err != nil {
		return value.Undefined(), err
	}
	if col.LoadInLocalTimezone {
		return value.Scalar(t.In(n.location()).Format(DateTimeLayout)), nil
	}
	return value.Scalar(t.UTC().Format(DateTimeLayout)), nil
}

func (n *Normalizer) instant(col *metadata.Column, v value.Value) (time.Time, error) {
	if !v.IsScalar() {
		return time.Time{}, malformed(col, v.Any(), "expected a date, got "+v.Kind().String())
	}
	raw := v.Raw()
	switch t := raw.(type) {
	case time.Time:
		return t, nil
	case *time.Time:
		if t == nil {
			return time.Time{}, malformed(col, raw, "nil time")
		}
		return *t, nil
	case string:
		return n.parse(col, t)
	case []byte:
		return n.parse(col, string(t))
	case bool:
		return time.Time{}, malformed(col, raw, "expected a date")
	}
	if ms, ok := utils.ToInt64(raw); ok && utils.IsNumeric(raw) {
		return time.UnixMilli(ms), nil
	}
	return time.Time{}, malformed(col, raw, "expected a date")
}

func (n *Normalizer) parse(col *metadata.Column, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, n.StorageLocation(col)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, malformed(col, s, "unrecognized date format")
}

func jsonString(col *metadata.Column, v value.Value) (value.Value, error) {
	b, err := json.Marshal(v.Any())
	if err != nil {
		return value.Undefined(), &ValueNormalizationError{
			Column: col.PropertyName,
			Type:   col.SemanticType(),
			Value:  v.Any(),
			Err:    err,
		}
	}
	return value.Scalar(string(b)), nil
}

func delimited(col *metadata.Column, v value.Value) (value.Value, error) {
	switch v.Kind() {
	case value.KindList:
		parts := make([]string, 0, len(v.Items()))
		for _, it := range v.Items() {
			if !it.IsScalar() {
				return value.Undefined(), malformed(col, v.Any(), "array elements must be scalars")
			}
			parts = append(parts, scalarString(it.Raw()))
		}
		return value.Scalar(strings.Join(parts, ",")), nil
	case value.KindScalar:
		switch s := v.Raw().(type) {
		case string:
			return value.Scalar(s), nil
		case []byte:
			return value.Scalar(string(s)), nil
		}
	}
	return value.Undefined(), malformed(col, v.Any(), "expected an array")
}

func scalarString(raw any) string {
	if f, ok := raw.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return utils.ToString(raw)
}
