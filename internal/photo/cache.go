package photo

import (
	"container/list"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"sync"

	"github.com/justyntemme/photoframe/internal/debug"
)

// Cache is an LRU of decoded bitmaps in front of another Decoder.
// Entries are keyed by path and bounding box. Failed decodes are not cached,
// and a hit whose file has disappeared is evicted and reported as ErrNotFound.
type Cache struct {
	dec     Decoder
	stat    func(path string) error
	mu      sync.Mutex
	entries map[cacheKey]*list.Element
	lru     *list.List // front = most recent
	maxSize int
}

type cacheKey struct {
	path   string
	bounds image.Point
}

type cacheEntry struct {
	key cacheKey
	img image.Image
}

var _ Decoder = (*Cache)(nil)

// NewCache wraps dec with an LRU holding at most maxEntries bitmaps.
func NewCache(dec Decoder, maxEntries int) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Cache{
		dec:     dec,
		stat:    statFile,
		entries: make(map[cacheKey]*list.Element),
		lru:     list.New(),
		maxSize: maxEntries,
	}
}

// Decode returns the cached bitmap or decodes and caches it.
func (c *Cache) Decode(path string, bounds image.Point) (image.Image, error) {
	key := cacheKey{path: path, bounds: bounds}

	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.lru.MoveToFront(el)
		img := el.Value.(*cacheEntry).img
		c.mu.Unlock()
		if err := c.stat(path); errors.Is(err, fs.ErrNotExist) {
			c.evict(key)
			debug.Log(debug.IMAGE, "cache: %s is gone", path)
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return img, nil
	}
	c.mu.Unlock()

	// Decode outside the lock; two callers may race on the same key and
	// the second put simply refreshes the entry.
	img, err := c.dec.Decode(path, bounds)
	if err != nil {
		return nil, err
	}
	c.put(key, img)
	return img, nil
}

func (c *Cache) put(key cacheKey, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).img = img
		c.lru.MoveToFront(el)
		return
	}

	for c.lru.Len() >= c.maxSize {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		old := oldest.Value.(*cacheEntry)
		delete(c.entries, old.key)
		c.lru.Remove(oldest)
		debug.Log(debug.IMAGE, "cache: evicted %s", old.key.path)
	}

	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, img: img})
}

func (c *Cache) evict(key cacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.lru.Remove(el)
	}
}

func statFile(path string) error {
	_, err := os.Stat(path)
	return err
}

// Clear removes all entries from the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]*list.Element)
	c.lru.Init()
}

// Len returns the current number of cached bitmaps.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
