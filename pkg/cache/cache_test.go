package cache

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodal/kodal/pkg/apierr"
)

func newTestCache(opts Options) *Cache {
	opts.Logger = zerolog.Nop()
	return New(opts)
}

func TestSetThenGet(t *testing.T) {
	c := newTestCache(Options{})

	require.NoError(t, c.Set(TypeAddress, "seoul", map[string]string{"city": "Seoul"}))

	v, ok := c.Get(TypeAddress, "seoul")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"city": "Seoul"}, v)
}

func TestGetMissOnAbsentKey(t *testing.T) {
	c := newTestCache(Options{})

	_, ok := c.Get(TypeAddress, "nope")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestTypesAreDistinctNamespaces(t *testing.T) {
	c := newTestCache(Options{})

	require.NoError(t, c.Set(TypeAddress, "k", "from-address"))
	require.NoError(t, c.Set(TypeBuilding, "k", "from-building"))

	v, ok := c.Get(TypeAddress, "k")
	require.True(t, ok)
	assert.Equal(t, "from-address", v)

	v, ok = c.Get(TypeBuilding, "k")
	require.True(t, ok)
	assert.Equal(t, "from-building", v)
}

func TestTTLPolicy(t *testing.T) {
	tests := []struct {
		cacheType Type
		ttl       time.Duration
	}{
		{TypeAddress, 24 * time.Hour},
		{TypeBuilding, 24 * time.Hour},
		{TypeCoordinate, 7 * 24 * time.Hour},
		{TypeRealtime, 5 * time.Minute},
		{TypeStatic, 30 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(string(tt.cacheType), func(t *testing.T) {
			assert.Equal(t, tt.ttl, TTLFor(tt.cacheType))
		})
	}
}

func TestExpiredEntryIsAMiss(t *testing.T) {
	c := newTestCache(Options{})

	require.NoError(t, c.Set(TypeRealtime, "k", "v", WithTTL(10*time.Millisecond)))

	_, ok := c.Get(TypeRealtime, "k")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	_, ok = c.Get(TypeRealtime, "k")
	assert.False(t, ok)
	assert.False(t, c.Has(TypeRealtime, "k"))
	assert.Equal(t, 0, c.Len())
}

func TestRemainingTTL(t *testing.T) {
	c := newTestCache(Options{})

	require.NoError(t, c.Set(TypeRealtime, "k", "v"))

	remaining := c.RemainingTTL(TypeRealtime, "k")
	assert.Greater(t, remaining, int64(4*time.Minute/time.Millisecond))
	assert.LessOrEqual(t, remaining, int64(5*time.Minute/time.Millisecond))

	assert.Zero(t, c.RemainingTTL(TypeRealtime, "absent"))
}

func TestEntryCountBoundEvictsLRU(t *testing.T) {
	c := newTestCache(Options{MaxEntries: 3})

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Set(TypeStatic, fmt.Sprintf("k%d", i), i))
	}

	// Touch k0 so k1 becomes the least recently used.
	_, ok := c.Get(TypeStatic, "k0")
	require.True(t, ok)

	require.NoError(t, c.Set(TypeStatic, "k3", 3))

	assert.Equal(t, 3, c.Len())
	assert.True(t, c.Has(TypeStatic, "k0"))
	assert.False(t, c.Has(TypeStatic, "k1"))
	assert.True(t, c.Has(TypeStatic, "k2"))
	assert.True(t, c.Has(TypeStatic, "k3"))
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestByteBoundEvictsLRU(t *testing.T) {
	// Each value serializes to a little over 100 bytes.
	payload := strings.Repeat("x", 100)
	c := newTestCache(Options{MaxBytes: 250})

	require.NoError(t, c.Set(TypeStatic, "a", payload))
	require.NoError(t, c.Set(TypeStatic, "b", payload))
	require.NoError(t, c.Set(TypeStatic, "c", payload))

	assert.False(t, c.Has(TypeStatic, "a"))
	assert.True(t, c.Has(TypeStatic, "b"))
	assert.True(t, c.Has(TypeStatic, "c"))

	usage := c.MemoryUsage()
	assert.LessOrEqual(t, usage.Current, usage.Max)
}

func TestOversizedValueRejected(t *testing.T) {
	c := newTestCache(Options{MaxBytes: 64})

	err := c.Set(TypeStatic, "big", strings.Repeat("x", 128))
	require.Error(t, err)
	assert.True(t, apierr.IsCode(err, apierr.CodeCache))
	assert.Equal(t, 0, c.Len())
}

func TestUnserializableValueRejected(t *testing.T) {
	c := newTestCache(Options{})

	err := c.Set(TypeStatic, "chan", make(chan int))
	require.Error(t, err)
	assert.True(t, apierr.IsCode(err, apierr.CodeCache))
}

func TestSetReplacesAndReaccounts(t *testing.T) {
	c := newTestCache(Options{})

	require.NoError(t, c.Set(TypeStatic, "k", strings.Repeat("a", 100)))
	before := c.MemoryUsage().Current

	require.NoError(t, c.Set(TypeStatic, "k", "tiny"))
	after := c.MemoryUsage().Current

	assert.Less(t, after, before)
	assert.Equal(t, 1, c.Len())

	v, ok := c.Get(TypeStatic, "k")
	require.True(t, ok)
	assert.Equal(t, "tiny", v)
}

func TestDelete(t *testing.T) {
	c := newTestCache(Options{})

	require.NoError(t, c.Set(TypeAddress, "k", "v"))
	assert.True(t, c.Delete(TypeAddress, "k"))
	assert.False(t, c.Delete(TypeAddress, "k"))
	assert.False(t, c.Has(TypeAddress, "k"))
	assert.Zero(t, c.MemoryUsage().Current)
}

func TestDeleteByType(t *testing.T) {
	c := newTestCache(Options{})

	require.NoError(t, c.Set(TypeAddress, "a1", 1))
	require.NoError(t, c.Set(TypeAddress, "a2", 2))
	require.NoError(t, c.Set(TypeCoordinate, "c1", 3))

	assert.Equal(t, 2, c.DeleteByType(TypeAddress))
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Has(TypeCoordinate, "c1"))
}

func TestClear(t *testing.T) {
	c := newTestCache(Options{})

	require.NoError(t, c.Set(TypeAddress, "a", 1))
	require.NoError(t, c.Set(TypeBuilding, "b", 2))

	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Zero(t, c.MemoryUsage().Current)
}

func TestGetEntryView(t *testing.T) {
	c := newTestCache(Options{})

	require.NoError(t, c.Set(TypeCoordinate, "k", "v"))

	_, ok := c.Get(TypeCoordinate, "k")
	require.True(t, ok)

	e, ok := c.GetEntry(TypeCoordinate, "k")
	require.True(t, ok)
	assert.Equal(t, "coordinate:k", e.Key)
	assert.Equal(t, int64(1), e.Hits)
	assert.Positive(t, e.Size)
	assert.True(t, e.ExpiresAt.After(e.CreatedAt))

	_, ok = c.GetEntry(TypeCoordinate, "absent")
	assert.False(t, ok)
}

func TestStatsAndReset(t *testing.T) {
	c := newTestCache(Options{})

	require.NoError(t, c.Set(TypeAddress, "k", "v"))
	c.Get(TypeAddress, "k")
	c.Get(TypeAddress, "miss")
	c.Delete(TypeAddress, "k")

	ds := c.DetailedStats()
	assert.Equal(t, int64(1), ds.Hits)
	assert.Equal(t, int64(1), ds.Misses)
	assert.Equal(t, int64(1), ds.Sets)
	assert.Equal(t, int64(1), ds.Deletes)
	assert.InDelta(t, 50.0, ds.HitRate, 0.01)

	c.ResetStats()

	ds = c.DetailedStats()
	assert.Zero(t, ds.Hits)
	assert.Zero(t, ds.Misses)
	assert.Zero(t, ds.Sets)
	assert.Zero(t, ds.Deletes)
	assert.Zero(t, ds.HitRate)
}

func TestHitRateZeroWhenIdle(t *testing.T) {
	c := newTestCache(Options{})
	assert.Zero(t, c.Stats().HitRate)
}

func TestConcurrentAccessHoldsBounds(t *testing.T) {
	c := newTestCache(Options{MaxEntries: 50, MaxBytes: 16 * 1024})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("g%d-k%d", g, i%60)
				_ = c.Set(TypeStatic, key, strings.Repeat("v", 50))
				c.Get(TypeStatic, key)
				if i%17 == 0 {
					c.Delete(TypeStatic, key)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
	usage := c.MemoryUsage()
	assert.LessOrEqual(t, usage.Current, usage.Max)
}
