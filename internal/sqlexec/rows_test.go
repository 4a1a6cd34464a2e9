package sqlexec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInt64(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
		ok   bool
	}{
		{"int64", int64(1000), 1000, true},
		{"int32", int32(7), 7, true},
		{"oid", uint32(42), 42, true},
		{"whole float", float64(3), 3, true},
		{"fractional float", 3.5, 0, false},
		{"json number", json.Number("12"), 12, true},
		{"numeric text", "99", 99, true},
		{"null", nil, 0, false},
		{"garbage", "abc", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Int64(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUint32(t *testing.T) {
	v, ok := Uint32(uint32(16384))
	assert.True(t, ok)
	assert.Equal(t, uint32(16384), v)

	_, ok = Uint32(int64(-1))
	assert.False(t, ok)
}

func TestString(t *testing.T) {
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "x", String("x"))
	assert.Equal(t, "y", String([]byte("y")))
	assert.Equal(t, "5", String(5))
}

func TestDecodeJSON(t *testing.T) {
	type grant struct {
		Grantee string `json:"grantee"`
	}

	var fromMaps []grant
	require.NoError(t, DecodeJSON([]any{map[string]any{"grantee": "anon"}}, &fromMaps))
	assert.Equal(t, []grant{{Grantee: "anon"}}, fromMaps)

	var fromText []grant
	require.NoError(t, DecodeJSON(`[{"grantee":"authenticated"}]`, &fromText))
	assert.Equal(t, []grant{{Grantee: "authenticated"}}, fromText)

	var untouched []grant
	require.NoError(t, DecodeJSON(nil, &untouched))
	assert.Nil(t, untouched)

	assert.Error(t, DecodeJSON("{not json", &untouched))
}
