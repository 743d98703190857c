package tools

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInputSchemaFromWireValue(t *testing.T) {
	t.Parallel()

	// Listed tools carry the schema as unmarshalled JSON, not as a typed
	// schema value.
	raw := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "what to search for",
			},
			"limit": map[string]any{
				"type": "integer",
			},
		},
		"required": []any{"query"},
	}

	js := decodeInputSchema(raw)
	require.NotNil(t, js)

	params := paramsFromJSONSchema(js)
	require.Len(t, params, 2)

	require.NotNil(t, params["query"])
	assert.Equal(t, schema.String, params["query"].Type)
	assert.Equal(t, "what to search for", params["query"].Desc)
	assert.True(t, params["query"].Required)

	require.NotNil(t, params["limit"])
	assert.Equal(t, schema.Integer, params["limit"].Type)
	assert.False(t, params["limit"].Required)
}

func TestDecodeInputSchemaPassthroughAndNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, decodeInputSchema(nil))

	typed := &jsonschema.Schema{Type: "object"}
	assert.Same(t, typed, decodeInputSchema(typed))

	// Values that cannot form a schema degrade to no parameters.
	assert.Nil(t, decodeInputSchema(make(chan int)))
}

func TestParamsFromJSONSchema(t *testing.T) {
	t.Parallel()

	assert.Nil(t, paramsFromJSONSchema(nil))
	assert.Nil(t, paramsFromJSONSchema(&jsonschema.Schema{Type: "object"}))

	js := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"tags": {
				Type:  "array",
				Items: &jsonschema.Schema{Type: "string"},
			},
		},
	}
	params := paramsFromJSONSchema(js)
	require.NotNil(t, params["tags"])
	assert.Equal(t, schema.Array, params["tags"].Type)
	require.NotNil(t, params["tags"].ElemInfo)
	assert.Equal(t, schema.String, params["tags"].ElemInfo.Type)
}

func TestDataTypeOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, schema.Number, dataTypeOf("number"))
	assert.Equal(t, schema.Integer, dataTypeOf("integer"))
	assert.Equal(t, schema.Boolean, dataTypeOf("boolean"))
	assert.Equal(t, schema.Array, dataTypeOf("array"))
	assert.Equal(t, schema.Object, dataTypeOf("object"))
	assert.Equal(t, schema.Null, dataTypeOf("null"))
	assert.Equal(t, schema.String, dataTypeOf("string"))
	assert.Equal(t, schema.String, dataTypeOf(""))
}
