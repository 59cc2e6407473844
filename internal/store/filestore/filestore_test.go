package filestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	s, err := Open(Options{Dir: t.TempDir()})
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", map[string]any{"a": float64(1)}, 0))
	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": float64(1)}, got.Value)
}

func TestDelRemovesKey(t *testing.T) {
	s, err := Open(Options{Dir: t.TempDir()})
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", 0))
	require.NoError(t, s.Del(ctx, "k"))
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTTLExpiry(t *testing.T) {
	s, err := Open(Options{Dir: t.TempDir()})
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIncrementAndPatch(t *testing.T) {
	s, err := Open(Options{Dir: t.TempDir()})
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	got, err := s.Increment(ctx, "n", 5)
	require.NoError(t, err)
	assert.Equal(t, float64(5), got)

	require.NoError(t, s.Set(ctx, "obj", map[string]any{"a": float64(1)}, 0))
	require.NoError(t, s.Patch(ctx, "obj", map[string]any{"b": float64(2)}))
	entry, ok, err := s.Get(ctx, "obj")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": float64(1), "b": float64(2)}, entry.Value)
}

func TestReplayAfterReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", "v", 0))
	require.NoError(t, s.Close())

	reopened, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", got.Value)
}

func TestCompactionPreservesStateAndDropsExpired(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(Options{Dir: dir, Compression: AlgorithmSnappy})
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "keep", "v", 0))
	require.NoError(t, s.Set(ctx, "gone", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.Compact())
	require.NoError(t, s.Close())

	reopened, err := Open(Options{Dir: dir, Compression: AlgorithmSnappy})
	require.NoError(t, err)
	defer reopened.Close()

	_, ok, err := reopened.Get(ctx, "keep")
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = reopened.Get(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, ok)
}
