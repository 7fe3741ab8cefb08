package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToInt64(t *testing.T) {
	tests := []struct {
		name  string
		in    any
		want  int64
		exact bool
	}{
		{"int", 5, 5, true},
		{"int64", int64(7), 7, true},
		{"uint8", uint8(3), 3, true},
		{"whole float", float64(12), 12, true},
		{"fractional float", 1.5, 0, false},
		{"json number", json.Number("42"), 42, true},
		{"numeric string", "19", 19, true},
		{"bytes", []byte("8"), 8, true},
		{"text", "abc", 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToInt64(tt.in)
			assert.Equal(t, tt.exact, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToFloat64_RejectsStrings(t *testing.T) {
	_, ok := ToFloat64("1")
	assert.False(t, ok)

	f, ok := ToFloat64(int32(4))
	assert.True(t, ok)
	assert.Equal(t, 4.0, f)
}

func TestToBool(t *testing.T) {
	assert.True(t, ToBool(true))
	assert.True(t, ToBool(int64(1)))
	assert.True(t, ToBool("TRUE"))
	assert.True(t, ToBool([]byte("1")))
	assert.False(t, ToBool(2))
	assert.False(t, ToBool(nil))
}

func TestToString(t *testing.T) {
	assert.Equal(t, "abc", ToString([]byte("abc")))
	assert.Equal(t, "12", ToString(12))
	assert.Equal(t, "", ToString(nil))
}
