package server

import (
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// docCache caches parsed result documents keyed by path. An entry is
// valid only while the file's mtime is unchanged, so a rewritten
// document is re-read on the next request.
type docCache struct {
	entries *lru.Cache[string, cacheEntry]
}

type cacheEntry struct {
	modTime time.Time
	value   any
}

func newDocCache(size int) (*docCache, error) {
	if size < 1 {
		size = 16
	}
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &docCache{entries: entries}, nil
}

// load returns the cached value for path when fresh, otherwise invokes
// loader and caches the result against the file's current mtime.
func (c *docCache) load(path string, loader func(string) (any, error)) (any, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if entry, ok := c.entries.Get(path); ok && entry.modTime.Equal(info.ModTime()) {
		return entry.value, nil
	}

	value, err := loader(path)
	if err != nil {
		return nil, err
	}
	c.entries.Add(path, cacheEntry{modTime: info.ModTime(), value: value})
	return value, nil
}
