package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/hupe1980/synapgo/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func posKey(id int) Key {
	return Key{Kind: KindPositions, Path: fmt.Sprintf("circuit/syn/%d/a", id)}
}

func TestLRUBlockCache(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 100})
	c := NewLRUBlockCache(50, rc)
	ctx := context.Background()

	c.Set(ctx, posKey(1), make([]byte, 20))
	c.Set(ctx, posKey(2), make([]byte, 20))
	assert.Equal(t, int64(40), c.Size())
	assert.Equal(t, int64(40), rc.MemoryUsage())

	// Touch 1 so 2 is evicted next.
	_, ok := c.Get(ctx, posKey(1))
	require.True(t, ok)

	c.Set(ctx, posKey(3), make([]byte, 20))
	assert.Equal(t, int64(40), c.Size())
	assert.Equal(t, int64(40), rc.MemoryUsage())

	_, ok = c.Get(ctx, posKey(2))
	assert.False(t, ok)
	_, ok = c.Get(ctx, posKey(1))
	assert.True(t, ok)
	_, ok = c.Get(ctx, posKey(3))
	assert.True(t, ok)

	require.NoError(t, c.Close())
	assert.Equal(t, int64(0), rc.MemoryUsage())
	assert.Equal(t, 0, c.Len())
}

func TestLRUBlockCache_EdgeCases(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 100})
	c := NewLRUBlockCache(50, rc)
	ctx := context.Background()
	k := posKey(1)

	c.Set(ctx, k, make([]byte, 60))
	_, ok := c.Get(ctx, k)
	assert.False(t, ok, "blocks above capacity are not cached")

	c.Set(ctx, k, make([]byte, 10))
	assert.Equal(t, int64(10), c.Size())
	c.Set(ctx, k, make([]byte, 20))
	assert.Equal(t, int64(20), c.Size())
	c.Set(ctx, k, make([]byte, 5))
	assert.Equal(t, int64(5), c.Size())
	assert.Equal(t, int64(5), rc.MemoryUsage())

	rc2 := resource.NewController(resource.Config{MemoryLimitBytes: 10})
	c2 := NewLRUBlockCache(50, rc2)
	c2.Set(ctx, k, make([]byte, 8))
	c2.Set(ctx, k, make([]byte, 12))

	val, ok := c2.Get(ctx, k)
	require.True(t, ok)
	assert.Len(t, val, 8, "growth refused by the controller keeps the old block")

	c2.Set(ctx, posKey(2), make([]byte, 4))
	_, ok = c2.Get(ctx, posKey(2))
	assert.False(t, ok)
}

func TestLRUBlockCache_StatsAndInvalidate(t *testing.T) {
	c := NewLRUBlockCache(100, nil)
	ctx := context.Background()

	c.Set(ctx, Key{Kind: KindTable, Path: "afferent.synt", Offset: 0}, []byte("a"))
	c.Set(ctx, Key{Kind: KindTable, Path: "afferent.synt", Offset: 64}, []byte("b"))
	c.Set(ctx, Key{Kind: KindTable, Path: "efferent.synt", Offset: 0}, []byte("c"))

	c.Invalidate(func(k Key) bool { return k.Path == "afferent.synt" })

	_, ok := c.Get(ctx, Key{Kind: KindTable, Path: "afferent.synt", Offset: 0})
	assert.False(t, ok)
	_, ok = c.Get(ctx, Key{Kind: KindTable, Path: "efferent.synt", Offset: 0})
	assert.True(t, ok)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestShardedLRUBlockCache(t *testing.T) {
	c := NewShardedLRUBlockCache(64<<20, nil)
	ctx := context.Background()

	c.Set(ctx, posKey(1), []byte("rows"))
	got, ok := c.Get(ctx, posKey(1))
	require.True(t, ok)
	assert.Equal(t, "rows", string(got))

	_, ok = c.Get(ctx, posKey(999))
	assert.False(t, ok)

	// Same path, different kind is a different key.
	_, ok = c.Get(ctx, Key{Kind: KindBlob, Path: posKey(1).Path})
	assert.False(t, ok)
}

func TestShardedLRUBlockCache_Distribution(t *testing.T) {
	c := NewShardedLRUBlockCache(64<<20, nil)
	ctx := context.Background()
	data := make([]byte, 1024)

	for i := range 1000 {
		c.Set(ctx, posKey(i), data)
	}
	assert.Equal(t, 1000, c.Len())
	assert.Equal(t, int64(1000*1024), c.Size())
	assert.GreaterOrEqual(t, c.nonEmptyShards(), 30)
}

func TestShardedLRUBlockCache_Concurrent(t *testing.T) {
	c := NewShardedLRUBlockCache(64<<20, nil)
	ctx := context.Background()
	data := make([]byte, 128)

	const goroutines = 32
	const ops = 500

	var wg sync.WaitGroup
	for g := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range ops {
				key := Key{Kind: KindTable, Path: fmt.Sprintf("t%d", g), Offset: uint64(i)}
				c.Set(ctx, key, data)
				c.Get(ctx, key)
			}
		}()
	}
	wg.Wait()

	hits, misses := c.Stats()
	assert.Equal(t, int64(goroutines*ops), hits+misses)
}

func TestShardedLRUBlockCache_Invalidate(t *testing.T) {
	c := NewShardedLRUBlockCache(64<<20, nil)
	ctx := context.Background()

	for i := range 100 {
		c.Set(ctx, posKey(i), []byte("x"))
		c.Set(ctx, Key{Kind: KindTable, Path: "extra.synt", Offset: uint64(i)}, []byte("y"))
	}

	c.Invalidate(func(k Key) bool { return strings.HasPrefix(k.Path, "circuit/") })

	_, ok := c.Get(ctx, posKey(0))
	assert.False(t, ok)
	_, ok = c.Get(ctx, Key{Kind: KindTable, Path: "extra.synt", Offset: 0})
	assert.True(t, ok)
	assert.Equal(t, 100, c.Len())
}

func BenchmarkShardedLRUBlockCache_Get(b *testing.B) {
	c := NewShardedLRUBlockCache(64<<20, nil)
	ctx := context.Background()
	for i := range 1000 {
		c.Set(ctx, posKey(i), make([]byte, 4096))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			c.Get(ctx, posKey(i%1000))
			i++
		}
	})
}
