package faker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oas-sandbox/engine/internal/template/prng"
)

func TestDeterministicAcrossIdenticalSeeds(t *testing.T) {
	a := New(prng.NewForRequest(1, "req"))
	b := New(prng.NewForRequest(1, "req"))

	assert.Equal(t, a.FullName(), b.FullName())
	assert.Equal(t, a.Email(), b.Email())
	assert.Equal(t, a.UUID(), b.UUID())
}

func TestUUIDLooksLikeUUID(t *testing.T) {
	f := New(prng.New(5))
	id := f.UUID()
	assert.Len(t, id, 36)
}

func TestProductPriceIsPositive(t *testing.T) {
	f := New(prng.New(5))
	assert.Greater(t, f.ProductPrice(), 0.0)
}

func TestFuncsTableCovers(t *testing.T) {
	f := New(prng.New(5))
	fns := f.Funcs()
	for _, name := range []string{"faker.email", "faker.uuid", "faker.number"} {
		_, ok := fns[name]
		assert.True(t, ok, name)
	}
}
