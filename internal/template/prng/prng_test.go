package prng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameSeedSameRequestIDReproducesSequence(t *testing.T) {
	a := NewForRequest(7, "req-1")
	b := NewForRequest(7, "req-1")

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
}

func TestDifferentRequestIDsDiverge(t *testing.T) {
	a := NewForRequest(7, "req-1")
	b := NewForRequest(7, "req-2")
	assert.NotEqual(t, a.Float64(), b.Float64())
}

func TestFloat64InUnitRange(t *testing.T) {
	s := New(42)
	for i := 0; i < 1000; i++ {
		v := s.Float64()
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}

func TestRangeInclusiveBounds(t *testing.T) {
	s := New(1)
	for i := 0; i < 200; i++ {
		v := s.Range(3, 5)
		assert.GreaterOrEqual(t, v, 3)
		assert.LessOrEqual(t, v, 5)
	}
}

func TestWeightedIndexRespectsZeroWeights(t *testing.T) {
	s := New(99)
	weights := []float64{0, 1, 0}
	for i := 0; i < 50; i++ {
		assert.Equal(t, 1, s.WeightedIndex(weights))
	}
}
