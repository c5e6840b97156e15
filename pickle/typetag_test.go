package pickle

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagRoundTrip(t *testing.T) {
	tests := []struct {
		typ reflect.Type
		tag string
	}{
		{reflect.TypeOf(false), "bool"},
		{reflect.TypeOf(int(0)), "int"},
		{reflect.TypeOf(int32(0)), "int32"},
		{reflect.TypeOf(uint8(0)), "uint8"},
		{reflect.TypeOf(float64(0)), "float"},
		{reflect.TypeOf(float32(0)), "float32"},
		{reflect.TypeOf(""), "str"},
		{reflect.TypeOf([]byte(nil)), "bytes"},
		{reflect.TypeOf([]any(nil)), "list"},
		{reflect.TypeOf(map[string]any(nil)), "dict"},
		{reflect.TypeOf([]int(nil)), "[]int"},
		{reflect.TypeOf([][]float64(nil)), "[][]float"},
		{reflect.TypeOf([4]string{}), "[4]str"},
		{reflect.TypeOf(map[string]int(nil)), "map[str]int"},
		{reflect.TypeOf(map[int][]string(nil)), "map[int][]str"},
		{reflect.TypeOf(map[string]struct{}(nil)), "set[str]"},
		{reflect.TypeOf((*int)(nil)), "*int"},
		{reflect.TypeOf((*[]int)(nil)), "*[]int"},
		{reflect.TypeOf(map[string]map[int]bool(nil)), "map[str]map[int]bool"},
	}

	reg := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			assert.Equal(t, tt.tag, reg.encodeTag(tt.typ))

			got, err := reg.decodeTag(tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, got)
		})
	}
}

func TestTagNil(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, "None", reg.encodeTag(nil))

	got, err := reg.decodeTag("None")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTagLegacyAliases(t *testing.T) {
	reg := NewRegistry()

	got, err := reg.decodeTag("tuple")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf([]any(nil)), got)

	got, err = reg.decodeTag("set")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(map[any]struct{}(nil)), got)

	got, err = reg.decodeTag("string")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(""), got)
}

func TestTagRegisteredName(t *testing.T) {
	type widget struct {
		ID int
	}

	reg := NewRegistry()
	reg.RegisterName("test.widget", widget{})

	assert.Equal(t, "test.widget", reg.encodeTag(reflect.TypeOf(widget{})))
	assert.Equal(t, "[]test.widget", reg.encodeTag(reflect.TypeOf([]widget(nil))))

	got, err := reg.decodeTag("[]test.widget")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf([]widget(nil)), got)
}

func TestTagUnknownName(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.decodeTag("no.such.Type")
	var trErr *TypeResolutionError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, "no.such.Type", trErr.Tag)
}

func TestTagMalformed(t *testing.T) {
	reg := NewRegistry()
	for _, tag := range []string{"", "[", "[3", "[x]int", "map[", "map[str", "map[str]", "[]"} {
		t.Run(tag, func(t *testing.T) {
			_, err := reg.decodeTag(tag)
			assert.Error(t, err)
		})
	}
}
