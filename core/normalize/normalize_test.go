package normalize

import (
	"errors"
	"testing"
	"time"

	"entity-persister/core/metadata"
	"entity-persister/core/value"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func column(typ metadata.ColumnType) *metadata.Column {
	return &metadata.Column{PropertyName: "field", Type: typ}
}

func TestPair_NullishEntityValueIsUntouched(t *testing.T) {
	n := New(time.UTC)
	for _, typ := range []metadata.ColumnType{metadata.ColumnDate, metadata.ColumnDateTime, metadata.ColumnJSON, metadata.ColumnDelimitedArray} {
		e, d, err := n.Pair(column(typ), value.Null(), value.Scalar("not-a-date"))
		require.NoError(t, err)
		assert.True(t, e.IsNull())
		assert.Equal(t, "not-a-date", d.Raw())

		e, _, err = n.Pair(column(typ), value.Undefined(), value.Null())
		require.NoError(t, err)
		assert.False(t, e.IsDefined())
	}
}

func TestPair_DateOnlyNormalizesEntitySide(t *testing.T) {
	n := New(time.UTC)
	when := time.Date(2024, 3, 1, 22, 10, 0, 0, time.UTC)

	e, d, err := n.Pair(column(metadata.ColumnDate), value.Scalar(when), value.Scalar("whatever"))
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", e.Raw())
	assert.Equal(t, "whatever", d.Raw())

	e, _, err = n.Pair(column(metadata.ColumnDate), value.Scalar("2024-03-01"), value.Null())
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", e.Raw())
}

func TestPair_DateUsesLocalLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	n := New(tokyo)
	when := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

	e, _, err := n.Pair(column(metadata.ColumnDate), value.Scalar(when), value.Null())
	require.NoError(t, err)
	assert.Equal(t, "2024-03-02", e.Raw())
}

func TestPair_Time(t *testing.T) {
	n := New(time.UTC)
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"short", "09:30", "09:30:00"},
		{"full", "09:30:15", "09:30:15"},
		{"fractional", "09:30:15.250", "09:30:15"},
		{"instant", time.Date(2024, 1, 1, 7, 5, 3, 0, time.UTC), "07:05:03"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, err := n.Pair(column(metadata.ColumnTime), value.Scalar(tt.in), value.Null())
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Raw())
		})
	}
}

func TestPair_DateTimeUTC(t *testing.T) {
	n := New(time.FixedZone("CET", 3600))
	col := column(metadata.ColumnDateTime)

	entity := time.Date(2024, 5, 6, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	db := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

	e, d, err := n.Pair(col, value.Scalar(entity), value.Scalar(db))
	require.NoError(t, err)
	assert.Equal(t, "2024-05-06 10:00:00.000", e.Raw())
	assert.Equal(t, e.Raw(), d.Raw())
}

func TestPair_DateTimeLocalTimezone(t *testing.T) {
	n := New(time.FixedZone("CET", 3600))
	col := column(metadata.ColumnDateTime)
	col.LoadInLocalTimezone = true

	e, d, err := n.Pair(col, value.Scalar(time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)), value.Scalar("2024-05-06 11:00:00"))
	require.NoError(t, err)
	assert.Equal(t, "2024-05-06 11:00:00.000", e.Raw())
	assert.Equal(t, "2024-05-06 11:00:00.000", d.Raw())
}

func TestPair_DateTimeNaiveStringsUseStorageZone(t *testing.T) {
	n := New(time.FixedZone("CET", 3600))

	utc := column(metadata.ColumnDateTime)
	e, d, err := n.Pair(utc, value.Scalar("2024-01-01T10:00:00Z"), value.Scalar("2024-01-01 10:00:00.000"))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01 10:00:00.000", e.Raw())
	assert.Equal(t, e.Raw(), d.Raw())

	local := column(metadata.ColumnDateTime)
	local.LoadInLocalTimezone = true
	e, d, err = n.Pair(local, value.Scalar("2024-01-01T10:00:00Z"), value.Scalar("2024-01-01 11:00:00.000"))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01 11:00:00.000", e.Raw())
	assert.Equal(t, e.Raw(), d.Raw())
}

func TestStorageLocation(t *testing.T) {
	cet := time.FixedZone("CET", 3600)
	n := New(cet)

	local := column(metadata.ColumnDateTime)
	local.LoadInLocalTimezone = true

	assert.Equal(t, time.UTC, n.StorageLocation(column(metadata.ColumnDateTime)))
	assert.Equal(t, cet, n.StorageLocation(local))
	assert.Equal(t, cet, n.StorageLocation(column(metadata.ColumnDate)))
}

func TestStored_ReanchorsDriverTimes(t *testing.T) {
	newYork := time.FixedZone("EST", -5*3600)
	n := New(newYork)

	// Drivers hand back the stored wall clock tagged with their own zone.
	driver := time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)

	local := column(metadata.ColumnDateTime)
	local.LoadInLocalTimezone = true

	tests := []struct {
		name string
		col  *metadata.Column
		want string
	}{
		{"datetime utc", column(metadata.ColumnDateTime), "2024-01-01 10:00:00.000"},
		{"datetime local", local, "2024-01-01 10:00:00.000"},
		{"date", column(metadata.ColumnDate), "2024-01-01"},
		{"time", column(metadata.ColumnTime), "10:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := n.Stored(tt.col, value.Scalar(driver))
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Raw())
		})
	}

	v, err := n.Stored(column(metadata.ColumnDate), value.Scalar(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", v.Raw())

	v, err = n.Stored(column(metadata.ColumnPlain), value.Scalar("x"))
	require.NoError(t, err)
	assert.Equal(t, "x", v.Raw())
}

func TestPair_DateTimeNullDatabaseSide(t *testing.T) {
	n := New(time.UTC)
	e, d, err := n.Pair(column(metadata.ColumnDateTime), value.Scalar(int64(0)), value.Null())
	require.NoError(t, err)
	assert.Equal(t, "1970-01-01 00:00:00.000", e.Raw())
	assert.True(t, d.IsNull())
}

func TestPair_JSON(t *testing.T) {
	n := New(time.UTC)
	col := column(metadata.ColumnJSON)

	entity := value.Object(value.RecordOf("b", value.Scalar(int64(1)), "a", value.Scalar("x")))
	db := value.Object(value.RecordOf("a", value.Scalar("x"), "b", value.Scalar(1.0)))

	e, d, err := n.Pair(col, entity, db)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1}`, e.Raw())
	assert.Equal(t, e.Raw(), d.Raw())

	e, d, err = n.Pair(col, value.Scalar("text"), value.Null())
	require.NoError(t, err)
	assert.Equal(t, `"text"`, e.Raw())
	assert.True(t, d.IsNull())
}

func TestPair_DelimitedArray(t *testing.T) {
	n := New(time.UTC)
	col := column(metadata.ColumnDelimitedArray)

	e, d, err := n.Pair(col, value.FromAny([]any{"a", int64(2), 1.5}), value.FromAny([]string{"a", "2", "1.5"}))
	require.NoError(t, err)
	assert.Equal(t, "a,2,1.5", e.Raw())
	assert.Equal(t, "a,2,1.5", d.Raw())

	e, _, err = n.Pair(col, value.Scalar("x,y"), value.Null())
	require.NoError(t, err)
	assert.Equal(t, "x,y", e.Raw())
}

func TestPair_MalformedValues(t *testing.T) {
	n := New(time.UTC)
	tests := []struct {
		name string
		typ  metadata.ColumnType
		in   value.Value
	}{
		{"date garbage", metadata.ColumnDate, value.Scalar("yesterday")},
		{"date bool", metadata.ColumnDate, value.Scalar(true)},
		{"datetime object", metadata.ColumnDateTime, value.Object(value.NewRecord())},
		{"time garbage", metadata.ColumnTime, value.Scalar("25h")},
		{"array number", metadata.ColumnDelimitedArray, value.Scalar(3)},
		{"array nested", metadata.ColumnDelimitedArray, value.List(value.Object(value.NewRecord()))},
		{"json channel", metadata.ColumnJSON, value.Scalar(make(chan int))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := n.Pair(column(tt.typ), tt.in, value.Null())
			require.Error(t, err)

			var nerr *ValueNormalizationError
			require.True(t, errors.As(err, &nerr))
			assert.Equal(t, "field", nerr.Column)
			assert.Equal(t, tt.typ, nerr.Type)
		})
	}
}

func TestPair_MalformedDatabaseDateTime(t *testing.T) {
	n := New(time.UTC)
	_, _, err := n.Pair(column(metadata.ColumnDateTime), value.Scalar("2024-01-01 00:00:00"), value.Scalar("garbage"))
	assert.ErrorIs(t, err, ErrMalformedValue)
}

func TestPair_PlainColumnPassesThrough(t *testing.T) {
	n := New(time.UTC)
	e, d, err := n.Pair(column(metadata.ColumnPlain), value.Scalar("a"), value.Scalar(2))
	require.NoError(t, err)
	assert.Equal(t, "a", e.Raw())
	assert.Equal(t, 2, d.Raw())
}

func TestCanonical(t *testing.T) {
	var n *Normalizer
	v, err := n.Canonical(column(metadata.ColumnDate), value.Scalar(time.Date(2023, 12, 31, 12, 0, 0, 0, time.Local)))
	require.NoError(t, err)
	assert.Equal(t, "2023-12-31", v.Raw())

	v, err = n.Canonical(column(metadata.ColumnPlain), value.Scalar("x"))
	require.NoError(t, err)
	assert.Equal(t, "x", v.Raw())
}
