package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := Open(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", map[string]any{"a": float64(1)}, 0))
	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": float64(1)}, got.Value)
}

func TestGetAbsentReturnsFalse(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelRemovesKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", 0))
	require.NoError(t, s.Del(ctx, "k"))
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTTLExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", 50*time.Millisecond))
	time.Sleep(100 * time.Millisecond)
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIncrementTreatsAbsentAsZero(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.Increment(ctx, "n", 1)
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)

	got, err = s.Increment(ctx, "n", 4)
	require.NoError(t, err)
	assert.Equal(t, float64(5), got)
}

func TestPatchMergesObject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "obj", map[string]any{"a": float64(1)}, 0))
	require.NoError(t, s.Patch(ctx, "obj", map[string]any{"b": float64(2)}))

	got, ok, err := s.Get(ctx, "obj")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": float64(1), "b": float64(2)}, got.Value)
}
