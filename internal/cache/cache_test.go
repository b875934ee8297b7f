package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.fluxrun.dev/flux/internal/cachebackend"
)

func TestManagerGetMiss(t *testing.T) {
	m := NewManager(cachebackend.NewMemory())
	_, ok := m.Get("missing", "")
	require.False(t, ok, "Get() on an empty cache should miss")
}

func TestManagerSetThenGet(t *testing.T) {
	m := NewManager(cachebackend.NewMemory())
	require.NoError(t, m.Set("key", "value", time.Minute, "", nil))
	value, ok := m.Get("key", "")
	require.True(t, ok)
	require.Equal(t, "value", value)
}

func TestManagerVersionMismatchMisses(t *testing.T) {
	m := NewManager(cachebackend.NewMemory())
	require.NoError(t, m.Set("key", "value", time.Minute, "v1", nil))

	_, ok := m.Get("key", "v2")
	require.False(t, ok, "Get() with a mismatched version should miss")

	value, ok := m.Get("key", "v1")
	require.True(t, ok)
	require.Equal(t, "value", value)
}

func TestInvalidateByTag(t *testing.T) {
	m := NewManager(cachebackend.NewMemory())
	require.NoError(t, m.Set("a", 1, 0, "", []string{"group"}))
	require.NoError(t, m.Set("b", 2, 0, "", []string{"group"}))
	require.NoError(t, m.Set("c", 3, 0, "", []string{"other"}))

	require.NoError(t, m.InvalidateByTag("group"))

	_, ok := m.Get("a", "")
	require.False(t, ok, "key a should have been invalidated")
	_, ok = m.Get("b", "")
	require.False(t, ok, "key b should have been invalidated")

	value, ok := m.Get("c", "")
	require.True(t, ok, "key c under a different tag should survive invalidation")
	require.Equal(t, 3, value)
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	backend := cachebackend.NewMemory()
	m := NewManager(backend)
	require.NoError(t, m.Set("key", "value", time.Millisecond, "", nil))
	time.Sleep(5 * time.Millisecond)
	_, ok := m.Get("key", "")
	require.False(t, ok, "entry should have expired")
}
