package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DiskCacheConfig holds configuration for the disk cache.
type DiskCacheConfig struct {
	// RootDir is the directory where cache files are stored.
	RootDir string
	// MaxSizeBytes is the maximum size of the cache in bytes.
	MaxSizeBytes int64
	// MaxConcurrentWrites limits background writes. Defaults to 16.
	MaxConcurrentWrites int64
	// Logger receives write failures. Defaults to discarding them.
	Logger *slog.Logger
}

// DiskBlockCache implements BlockCache backed by the local filesystem.
// It maintains an in-memory LRU index of the files on disk.
type DiskBlockCache struct {
	mu          sync.Mutex
	rootDir     string
	maxSize     int64
	currentSize int64
	logger      *slog.Logger

	writeSem *semaphore.Weighted
	wg       sync.WaitGroup

	items   map[Key]*lruEntry
	lruHead *lruEntry
	lruTail *lruEntry

	hits   atomic.Int64
	misses atomic.Int64
}

type lruEntry struct {
	key        Key
	size       int64
	filePath   string
	next, prev *lruEntry
}

// NewDiskBlockCache creates a new disk-backed block cache and indexes the
// blocks already present below RootDir.
func NewDiskBlockCache(config DiskCacheConfig) (*DiskBlockCache, error) {
	if err := os.MkdirAll(config.RootDir, 0o755); err != nil {
		return nil, err
	}

	maxWrites := config.MaxConcurrentWrites
	if maxWrites <= 0 {
		maxWrites = 16
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &DiskBlockCache{
		rootDir:  config.RootDir,
		maxSize:  config.MaxSizeBytes,
		logger:   logger,
		items:    make(map[Key]*lruEntry),
		writeSem: semaphore.NewWeighted(maxWrites),
	}
	c.scanExistingFiles()
	return c, nil
}

func (c *DiskBlockCache) scanExistingFiles() {
	_ = filepath.Walk(c.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if key, ok := c.parsePathToKey(path); ok {
			c.addToLRU(key, path, info.Size())
		}
		return nil
	})
	for c.currentSize > c.maxSize && c.lruTail != nil {
		c.evictOne()
	}
}

// relPath encodes a key as <Path>/<Kind>-<Offset>.blk.
func relPath(key Key) (string, bool) {
	fileName := fmt.Sprintf("%d-%d.blk", key.Kind, key.Offset)
	if key.Path == "" {
		return filepath.Join("_misc", fileName), true
	}
	dir := filepath.FromSlash(key.Path)
	if !filepath.IsLocal(dir) || dir == "_misc" {
		return "", false
	}
	return filepath.Join(dir, fileName), true
}

func (c *DiskBlockCache) parsePathToKey(absPath string) (Key, bool) {
	rel, err := filepath.Rel(c.rootDir, absPath)
	if err != nil {
		return Key{}, false
	}
	dir, file := filepath.Split(rel)

	var kind int
	var off uint64
	if n, err := fmt.Sscanf(file, "%d-%d.blk", &kind, &off); err != nil || n != 2 {
		return Key{}, false
	}

	k := Key{Kind: Kind(kind), Offset: off}
	dir = strings.TrimSuffix(dir, string(filepath.Separator))
	if dir != "_misc" {
		k.Path = filepath.ToSlash(dir)
	}
	return k, true
}

// Get reads a cached block from disk.
func (c *DiskBlockCache) Get(_ context.Context, key Key) ([]byte, bool) {
	c.mu.Lock()
	ent, ok := c.items[key]
	if ok {
		c.moveToFront(ent)
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	data, err := os.ReadFile(ent.filePath)
	if err != nil {
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && cur == ent {
			c.removeEntry(ent)
		}
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return data, true
}

// Set writes the block in the background. Blocks already cached are not
// rewritten, and the write is skipped when all writers are busy.
func (c *DiskBlockCache) Set(_ context.Context, key Key, b []byte) {
	rel, ok := relPath(key)
	if !ok {
		return
	}
	size := int64(len(b))
	if size > c.maxSize {
		return
	}

	c.mu.Lock()
	if ent, ok := c.items[key]; ok {
		c.moveToFront(ent)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if !c.writeSem.TryAcquire(1) {
		return
	}

	absPath := filepath.Join(c.rootDir, rel)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.writeSem.Release(1)

		if err := writeAtomic(absPath, b); err != nil {
			c.logger.Warn("disk cache write failed", "path", absPath, "error", err)
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.items[key]; ok {
			return
		}
		for c.currentSize+size > c.maxSize && c.lruTail != nil {
			c.evictOne()
		}
		c.addToLRU(key, absPath, size)
	}()
}

func writeAtomic(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "tmp-blk-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Invalidate removes entries matching the predicate and their files.
func (c *DiskBlockCache) Invalidate(predicate func(key Key) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*lruEntry
	for k, ent := range c.items {
		if predicate(k) {
			toRemove = append(toRemove, ent)
		}
	}
	for _, ent := range toRemove {
		_ = os.Remove(ent.filePath)
		c.removeEntry(ent)
	}
}

// Wait blocks until pending background writes have finished.
func (c *DiskBlockCache) Wait() { c.wg.Wait() }

// Close waits for all background writes to complete.
func (c *DiskBlockCache) Close() error {
	c.wg.Wait()
	return nil
}

// Stats returns hit and miss counts.
func (c *DiskBlockCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the bytes currently indexed on disk.
func (c *DiskBlockCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSize
}

// LRU helpers; callers hold c.mu.

func (c *DiskBlockCache) addToLRU(key Key, path string, size int64) {
	ent := &lruEntry{key: key, filePath: path, size: size}
	c.items[key] = ent
	c.currentSize += size

	if c.lruHead == nil {
		c.lruHead = ent
		c.lruTail = ent
		return
	}
	ent.next = c.lruHead
	c.lruHead.prev = ent
	c.lruHead = ent
}

func (c *DiskBlockCache) moveToFront(ent *lruEntry) {
	if c.lruHead == ent {
		return
	}
	if ent.prev != nil {
		ent.prev.next = ent.next
	}
	if ent.next != nil {
		ent.next.prev = ent.prev
	}
	if c.lruTail == ent {
		c.lruTail = ent.prev
	}

	ent.next = c.lruHead
	ent.prev = nil
	if c.lruHead != nil {
		c.lruHead.prev = ent
	}
	c.lruHead = ent
	if c.lruTail == nil {
		c.lruTail = ent
	}
}

func (c *DiskBlockCache) removeEntry(ent *lruEntry) {
	if ent.prev != nil {
		ent.prev.next = ent.next
	} else {
		c.lruHead = ent.next
	}
	if ent.next != nil {
		ent.next.prev = ent.prev
	} else {
		c.lruTail = ent.prev
	}
	ent.next, ent.prev = nil, nil

	delete(c.items, ent.key)
	c.currentSize -= ent.size
}

func (c *DiskBlockCache) evictOne() {
	if c.lruTail == nil {
		return
	}
	_ = os.Remove(c.lruTail.filePath)
	c.removeEntry(c.lruTail)
}
