package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderExactPlaceholderPreservesType(t *testing.T) {
	ctx := BuildContext(ContextInput{
		Req:        map[string]any{"body": map[string]any{"n": float64(3)}},
		GlobalSeed: 1, RequestID: "r1",
	})
	out, err := Render(map[string]any{"count": "{{ req.body.n }}"}, ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(3), out.(map[string]any)["count"])
}

func TestRenderMixedStringInterpolation(t *testing.T) {
	ctx := BuildContext(ContextInput{
		Req:        map[string]any{"body": map[string]any{"name": "Ada"}},
		GlobalSeed: 1, RequestID: "r1",
	})
	out, err := Render("hello {{ req.body.name }}!", ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello Ada!", out)
}

func TestRenderNested(t *testing.T) {
	ctx := BuildContext(ContextInput{Req: map[string]any{}, GlobalSeed: 1, RequestID: "r1"})
	out, err := Render([]any{map[string]any{"id": "{{ 1 + 1 }}"}}, ctx)
	require.NoError(t, err)
	arr := out.([]any)
	assert.Equal(t, float64(2), arr[0].(map[string]any)["id"])
}

func TestPredicateRequiresBoolean(t *testing.T) {
	ctx := BuildContext(ContextInput{GlobalSeed: 1, RequestID: "r1"})
	_, err := Predicate("1 + 1", ctx)
	require.Error(t, err)

	ok, err := Predicate("1 == 1", ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuiltinFakerAndUUIDAreDeterministic(t *testing.T) {
	ctxA := BuildContext(ContextInput{GlobalSeed: 5, RequestID: "same"})
	ctxB := BuildContext(ContextInput{GlobalSeed: 5, RequestID: "same"})

	a, err := Render("{{ uuid() }}", ctxA)
	require.NoError(t, err)
	b, err := Render("{{ uuid() }}", ctxB)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMathAndUtilNamespaces(t *testing.T) {
	ctx := BuildContext(ContextInput{GlobalSeed: 1, RequestID: "r1"})

	out, err := Render("{{ math.ceil(1.2) }}", ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(2), out)

	out, err = Render(`{{ util.string.upper("ok") }}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "OK", out)
}
