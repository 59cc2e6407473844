package memorystore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := New(Options{})
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", map[string]any{"a": float64(1)}, 0))
	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": float64(1)}, got.Value)
}

func TestSetDelGetAbsent(t *testing.T) {
	s := New(Options{})
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", 0))
	require.NoError(t, s.Del(ctx, "k"))

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTTLExpiryOnRead(t *testing.T) {
	s := New(Options{})
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTTLExpiryViaSweeper(t *testing.T) {
	s := New(Options{SweepInterval: 5 * time.Millisecond, WheelSlots: 4})
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", 5*time.Millisecond))

	require.Eventually(t, func() bool {
		_, ok, _ := s.Get(ctx, "k")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestIncrementTreatsAbsentAsZero(t *testing.T) {
	s := New(Options{})
	defer s.Close()
	ctx := context.Background()

	got, err := s.Increment(ctx, "counter", 1)
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)

	got, err = s.Increment(ctx, "counter", 2.5)
	require.NoError(t, err)
	assert.Equal(t, float64(3.5), got)
}

func TestIncrementPreservesExpiry(t *testing.T) {
	s := New(Options{})
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "counter", float64(0), time.Hour))
	_, err := s.Increment(ctx, "counter", 1)
	require.NoError(t, err)

	got, ok, err := s.Get(ctx, "counter")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotNil(t, got.ExpiresAt)
}

func TestPatchMergesObjectOneLevel(t *testing.T) {
	s := New(Options{})
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "obj", map[string]any{"a": float64(1), "b": float64(2)}, 0))
	require.NoError(t, s.Patch(ctx, "obj", map[string]any{"b": float64(3), "c": float64(4)}))

	got, ok, err := s.Get(ctx, "obj")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": float64(1), "b": float64(3), "c": float64(4)}, got.Value)
}

func TestPatchConcatenatesArrays(t *testing.T) {
	s := New(Options{})
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "arr", []any{float64(1), float64(2)}, 0))
	require.NoError(t, s.Patch(ctx, "arr", []any{float64(3)}))

	got, ok, err := s.Get(ctx, "arr")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{float64(1), float64(2), float64(3)}, got.Value)
}

func TestBoundedSizeEvictsOldestInserted(t *testing.T) {
	s := New(Options{MaxEntries: 2})
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", "1", 0))
	require.NoError(t, s.Set(ctx, "b", "2", 0))
	require.NoError(t, s.Set(ctx, "c", "3", 0))

	_, aOK, _ := s.Get(ctx, "a")
	assert.False(t, aOK, "oldest-inserted key should have been evicted")

	_, bOK, _ := s.Get(ctx, "b")
	assert.True(t, bOK)
	_, cOK, _ := s.Get(ctx, "c")
	assert.True(t, cOK)
}
