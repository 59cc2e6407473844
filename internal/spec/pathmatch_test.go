package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathMatcherRoundTrip(t *testing.T) {
	m := CompilePathTemplate("/users/{id}/posts/{postId}")

	vars := map[string]string{"id": "42", "postId": "abc-123"}
	path := m.Expand(vars)

	got, ok := m.Match(path)
	require.True(t, ok)
	assert.Equal(t, vars, got)
}

func TestPathMatcherNoMatch(t *testing.T) {
	m := CompilePathTemplate("/users/{id}")
	_, ok := m.Match("/users/42/extra")
	assert.False(t, ok)
}

func TestAmbiguityPolicyPrefersFewerVariables(t *testing.T) {
	doc := &Document{
		Operations: []*Operation{
			{Method: "GET", PathTemplate: "/pets/{id}", Matcher: CompilePathTemplate("/pets/{id}")},
			{Method: "GET", PathTemplate: "/pets/mine", Matcher: CompilePathTemplate("/pets/mine")},
		},
	}

	op, _ := doc.FindOperation("GET", "/pets/mine")
	require.NotNil(t, op)
	assert.Equal(t, "/pets/mine", op.PathTemplate)
}

func TestAmbiguityPolicyBreaksTiesByLiteralLength(t *testing.T) {
	doc := &Document{
		Operations: []*Operation{
			{Method: "GET", PathTemplate: "/{p}/1/b", Matcher: CompilePathTemplate("/{p}/1/b")},
			{Method: "GET", PathTemplate: "/ab/{x}/b", Matcher: CompilePathTemplate("/ab/{x}/b")},
		},
	}

	op, vars := doc.FindOperation("GET", "/ab/1/b")
	require.NotNil(t, op)
	assert.Equal(t, "/ab/{x}/b", op.PathTemplate)
	assert.Equal(t, "1", vars["x"])
}
