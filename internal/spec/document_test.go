package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc() map[string]any {
	return map[string]any{
		"openapi": "3.0.0",
		"paths": map[string]any{
			"/users": map[string]any{
				"post": map[string]any{
					"operationId": "createUser",
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{"$ref": "#/components/schemas/User"},
							},
						},
					},
					"responses": map[string]any{
						"201": map[string]any{
							"content": map[string]any{
								"application/json": map[string]any{
									"schema": map[string]any{"$ref": "#/components/schemas/User"},
								},
							},
						},
					},
				},
			},
			"/users/{id}": map[string]any{
				"get": map[string]any{
					"operationId": "getUser",
					"parameters": []any{
						map[string]any{"name": "id", "in": "path", "required": true, "schema": map[string]any{"type": "string"}},
					},
					"responses": map[string]any{
						"200": map[string]any{
							"content": map[string]any{
								"application/json": map[string]any{
									"schema": map[string]any{"$ref": "#/components/schemas/User"},
								},
							},
						},
						"404": map[string]any{},
					},
				},
			},
		},
		"components": map[string]any{
			"schemas": map[string]any{
				"User": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":   map[string]any{"type": "string"},
						"name": map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}

func TestLoadMapResolvesLocalRefs(t *testing.T) {
	doc, err := LoadMap("", sampleDoc())
	require.NoError(t, err)

	op, _ := doc.FindOperation("POST", "/users")
	require.NotNil(t, op)

	body, ok := op.RequestBody.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", body["type"])
	assert.True(t, op.RequestRequired)
}

func TestLoadMapSynthesizesOperationID(t *testing.T) {
	raw := map[string]any{
		"paths": map[string]any{
			"/foo/bar": map[string]any{
				"get": map[string]any{
					"responses": map[string]any{"200": map[string]any{}},
				},
			},
		},
	}
	doc, err := LoadMap("", raw)
	require.NoError(t, err)
	op, _ := doc.FindOperation("GET", "/foo/bar")
	require.NotNil(t, op)
	assert.Equal(t, "get_foo_bar", op.ID)
}

func TestLoadMapDanglingRefFails(t *testing.T) {
	raw := map[string]any{
		"paths": map[string]any{
			"/x": map[string]any{
				"get": map[string]any{
					"responses": map[string]any{
						"200": map[string]any{
							"content": map[string]any{
								"application/json": map[string]any{
									"schema": map[string]any{"$ref": "#/components/schemas/Missing"},
								},
							},
						},
					},
				},
			},
		},
	}
	_, err := LoadMap("", raw)
	require.Error(t, err)
}

func TestFirstSuccessResponsePrefers200(t *testing.T) {
	op := &Operation{
		Responses: []ResponseDescriptor{
			{Key: "201"},
			{Key: "200"},
			{Key: "404"},
		},
	}
	r := op.FirstSuccessResponse()
	require.NotNil(t, r)
	assert.Equal(t, "200", r.Key)
}
