package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oas-sandbox/engine/internal/template/prng"
)

func mustCompile(t *testing.T, raw map[string]any) *Schema {
	t.Helper()
	c := NewCompiler()
	s, err := c.Compile("t", raw)
	require.NoError(t, err)
	return s
}

func TestValidateRequiredProperty(t *testing.T) {
	s := mustCompile(t, map[string]any{
		"type":       "object",
		"required":   []any{"name"},
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
	})

	details := s.Validate(map[string]any{})
	require.Len(t, details, 1)
	assert.Equal(t, "required", details[0].Keyword)

	details = s.Validate(map[string]any{"name": "ok"})
	assert.Empty(t, details)
}

func TestValidateTypeMismatch(t *testing.T) {
	s := mustCompile(t, map[string]any{"type": "string"})
	details := s.Validate(float64(1))
	require.Len(t, details, 1)
	assert.Equal(t, "type", details[0].Keyword)
}

func TestValidateNumericBounds(t *testing.T) {
	s := mustCompile(t, map[string]any{"type": "number", "minimum": float64(1), "maximum": float64(10)})
	assert.Empty(t, s.Validate(float64(5)))
	assert.NotEmpty(t, s.Validate(float64(0)))
	assert.NotEmpty(t, s.Validate(float64(11)))
}

func TestValidateEnum(t *testing.T) {
	s := mustCompile(t, map[string]any{"enum": []any{"a", "b"}})
	assert.Empty(t, s.Validate("a"))
	assert.NotEmpty(t, s.Validate("c"))
}

func TestValidateOneOfExactlyOne(t *testing.T) {
	s := mustCompile(t, map[string]any{
		"oneOf": []any{
			map[string]any{"type": "string"},
			map[string]any{"type": "number"},
		},
	})
	assert.Empty(t, s.Validate("x"))
	assert.NotEmpty(t, s.Validate(true))
}

func TestGenerateObjectHonorsFormatAndFaker(t *testing.T) {
	s := mustCompile(t, map[string]any{
		"type": "object",
		"properties": map[string]any{
			"email": map[string]any{"type": "string", "format": "email"},
			"name":  map[string]any{"type": "string", "x-sandbox.faker": "fullName"},
		},
	})
	gen := NewGenerator(prng.New(1))
	v, err := gen.Generate(s)
	require.NoError(t, err)

	obj := v.(map[string]any)
	assert.Contains(t, obj["email"].(string), "@")
	assert.NotEmpty(t, obj["name"])
}

func TestGenerateIsDeterministicForSameSeed(t *testing.T) {
	raw := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id": map[string]any{"type": "string", "format": "uuid"},
		},
	}
	s1 := mustCompile(t, raw)

	a, err := NewGenerator(prng.New(123)).Generate(s1)
	require.NoError(t, err)
	b, err := NewGenerator(prng.New(123)).Generate(s1)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateArrayRespectsMinMaxItems(t *testing.T) {
	s := mustCompile(t, map[string]any{
		"type": "array", "minItems": float64(2), "maxItems": float64(2),
		"items": map[string]any{"type": "string"},
	})
	gen := NewGenerator(prng.New(5))
	v, err := gen.Generate(s)
	require.NoError(t, err)
	assert.Len(t, v.([]any), 2)
}

func TestGenerateEnumWeights(t *testing.T) {
	s := mustCompile(t, map[string]any{
		"enum":                  []any{"rare", "common"},
		"x-sandbox.enumWeights": []any{float64(0), float64(1)},
	})
	gen := NewGenerator(prng.New(77))
	for i := 0; i < 20; i++ {
		v, err := gen.Generate(s)
		require.NoError(t, err)
		assert.Equal(t, "common", v)
	}
}
