package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskBlockCache(t *testing.T) {
	dir := t.TempDir()
	c, err := NewDiskBlockCache(DiskCacheConfig{RootDir: dir, MaxSizeBytes: 1024})
	require.NoError(t, err)
	ctx := context.Background()

	k1 := Key{Kind: KindPositions, Path: "circuit/syn/1/a"}
	c.Set(ctx, k1, make([]byte, 400))
	c.Wait()

	rel, ok := relPath(k1)
	require.True(t, ok)
	assert.FileExists(t, filepath.Join(dir, rel))

	got, ok := c.Get(ctx, k1)
	require.True(t, ok)
	assert.Len(t, got, 400)

	k2 := Key{Kind: KindPositions, Path: "circuit/syn/2/a"}
	c.Set(ctx, k2, make([]byte, 400))
	c.Wait()

	// k1 was touched by Get, so k2 is older when k3 needs space.
	_, _ = c.Get(ctx, k1)
	k3 := Key{Kind: KindPositions, Path: "circuit/syn/3/a"}
	c.Set(ctx, k3, make([]byte, 400))
	c.Wait()

	_, ok = c.Get(ctx, k2)
	assert.False(t, ok)
	_, ok = c.Get(ctx, k1)
	assert.True(t, ok)
	assert.Equal(t, int64(800), c.Size())

	require.NoError(t, c.Close())
}

func TestDiskBlockCache_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	c, err := NewDiskBlockCache(DiskCacheConfig{RootDir: dir, MaxSizeBytes: 1 << 20})
	require.NoError(t, err)
	k := Key{Kind: KindTable, Path: "efferent.synt", Offset: 4096}
	c.Set(ctx, k, []byte("block"))
	c.Set(ctx, Key{Kind: KindBlob, Offset: 7}, []byte("misc"))
	require.NoError(t, c.Close())

	c2, err := NewDiskBlockCache(DiskCacheConfig{RootDir: dir, MaxSizeBytes: 1 << 20})
	require.NoError(t, err)
	defer c2.Close()

	got, ok := c2.Get(ctx, k)
	require.True(t, ok)
	assert.Equal(t, "block", string(got))

	got, ok = c2.Get(ctx, Key{Kind: KindBlob, Offset: 7})
	require.True(t, ok)
	assert.Equal(t, "misc", string(got))
}

func TestDiskBlockCache_InvalidateAndMissingFile(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	c, err := NewDiskBlockCache(DiskCacheConfig{RootDir: dir, MaxSizeBytes: 1 << 20})
	require.NoError(t, err)
	defer c.Close()

	a := Key{Kind: KindTable, Path: "a", Offset: 1}
	b := Key{Kind: KindTable, Path: "b", Offset: 1}
	c.Set(ctx, a, []byte("a"))
	c.Set(ctx, b, []byte("b"))
	c.Wait()

	c.Invalidate(func(k Key) bool { return k.Path == "a" })
	_, ok := c.Get(ctx, a)
	assert.False(t, ok)

	rel, _ := relPath(b)
	require.NoError(t, os.Remove(filepath.Join(dir, rel)))
	_, ok = c.Get(ctx, b)
	assert.False(t, ok)
	assert.Equal(t, int64(0), c.Size())
}

func TestDiskBlockCache_RejectsEscapingPaths(t *testing.T) {
	c, err := NewDiskBlockCache(DiskCacheConfig{RootDir: t.TempDir(), MaxSizeBytes: 1 << 20})
	require.NoError(t, err)
	defer c.Close()

	k := Key{Kind: KindBlob, Path: "../outside"}
	c.Set(context.Background(), k, []byte("x"))
	c.Wait()

	_, ok := c.Get(context.Background(), k)
	assert.False(t, ok)
}
