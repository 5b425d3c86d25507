package toolbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func descriptor(t *testing.T, name, schema string) ToolDescriptor {
	t.Helper()
	params, err := decodeSchema(raw(schema))
	require.NoError(t, err)
	return ToolDescriptor{name: name, parameters: params}
}

func TestArgumentValidator(t *testing.T) {
	d := descriptor(t, "search", `{"type":"object","properties":{"query":{"type":"string"},"limit":{"type":"integer","minimum":1}},"required":["query"]}`)
	v := newArgumentValidator()

	require.NoError(t, v.validate(d, map[string]any{"query": "foo"}))
	require.NoError(t, v.validate(d, map[string]any{"query": "foo", "limit": 3}))

	err := v.validate(d, map[string]any{"limit": 3})
	require.Error(t, err)
	assert.True(t, IsClientError(err))
	assert.ErrorIs(t, err, ErrValidation)

	err = v.validate(d, map[string]any{"query": 1})
	assert.True(t, IsClientError(err))

	err = v.validate(d, map[string]any{"query": "x", "limit": 0})
	assert.True(t, IsClientError(err))

	err = v.validate(d, nil)
	assert.True(t, IsClientError(err), "nil args validate as {} and miss query")
}

func TestArgumentValidator_CachesCompiled(t *testing.T) {
	d := descriptor(t, "a", `{"type":"object"}`)
	v := newArgumentValidator()
	require.NoError(t, v.validate(d, nil))
	require.Len(t, v.compiled, 1)
	first := v.compiled["a"]
	require.NoError(t, v.validate(d, map[string]any{"x": 1}))
	assert.Same(t, first, v.compiled["a"])
}

func TestArgumentValidator_UncompilableSchema(t *testing.T) {
	d := descriptor(t, "odd", `{"type":"object","properties":{"a":{"$ref":"#/nowhere"}}}`)
	v := newArgumentValidator()
	err := v.validate(d, map[string]any{"a": 1})
	require.ErrorIs(t, err, errSchemaUnavailable)
	assert.False(t, IsClientError(err))
}

func TestJSONValue(t *testing.T) {
	in := map[string]any{"a": 1, "b": []any{int64(2), float32(1.5)}, "c": "s"}
	assert.Equal(t, map[string]any{"a": 1.0, "b": []any{2.0, 1.5}, "c": "s"}, jsonValue(in))
}
