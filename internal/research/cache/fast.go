package cache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// fastLayer is the in-process LRU bounded by entry count and encoded bytes.
type fastLayer struct {
	// mu serializes mutations so byte accounting matches the LRU contents.
	mu        sync.Mutex
	lru       *lru.Cache[string, *stored]
	maxBytes  int64
	size      int64
	evictions int64
	// explicit marks removals requested by the manager; the evict callback
	// counts everything else as a capacity eviction.
	explicit bool
}

func newFastLayer(maxEntries int, maxBytes int64) (*fastLayer, error) {
	f := &fastLayer{maxBytes: maxBytes}
	c, err := lru.NewWithEvict[string, *stored](maxEntries, f.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create fast layer: %w", err)
	}
	f.lru = c
	return f, nil
}

// onEvict runs synchronously inside the lru call made under f.mu.
func (f *fastLayer) onEvict(_ string, s *stored) {
	f.size -= s.size()
	if !f.explicit {
		f.evictions++
	}
}

func (f *fastLayer) get(key string) (*stored, bool) {
	return f.lru.Get(key)
}

func (f *fastLayer) peek(key string) (*stored, bool) {
	return f.lru.Peek(key)
}

// add stores s, evicting least recently used entries until both budgets
// hold. Entries larger than the byte budget are not kept.
func (f *fastLayer) add(key string, s *stored) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.removeLocked(key)
	if s.size() > f.maxBytes {
		return false
	}

	f.lru.Add(key, s)
	f.size += s.size()
	f.trimLocked(f.maxBytes)
	return true
}

func (f *fastLayer) remove(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removeLocked(key)
}

// removeIf removes key only while it still maps to s.
func (f *fastLayer) removeIf(key string, s *stored) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.lru.Peek(key); !ok || cur != s {
		return false
	}
	return f.removeLocked(key)
}

func (f *fastLayer) removeLocked(key string) bool {
	f.explicit = true
	ok := f.lru.Remove(key)
	f.explicit = false
	return ok
}

// trim evicts oldest entries until size is at most target and returns how
// many were evicted.
func (f *fastLayer) trim(target int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trimLocked(target)
}

func (f *fastLayer) trimLocked(target int64) int {
	n := 0
	for f.size > target {
		if _, _, ok := f.lru.RemoveOldest(); !ok {
			break
		}
		n++
	}
	return n
}

func (f *fastLayer) keys() []string {
	return f.lru.Keys()
}

func (f *fastLayer) stats() (entries int, size, evictions int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lru.Len(), f.size, f.evictions
}

func (f *fastLayer) purge() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.explicit = true
	f.lru.Purge()
	f.explicit = false
}
