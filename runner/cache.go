package runner

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/chazu/botscript/vm"
)

// ---------------------------------------------------------------------------
// CompileCache: hash-keyed store of compiled artifacts
// ---------------------------------------------------------------------------

// CacheStats counts cache activity since creation.
type CacheStats struct {
	Hits      int
	Compiles  int
	Failures  int
	Evictions int
}

// CompileCache maps script content hashes to compiled artifacts.
//
// One mutex covers the whole check-compile-store sequence, so at most one
// compilation runs at a time for every runner sharing the cache. Failed
// compilations are never stored. With a capacity of zero the cache grows
// without bound; a positive capacity evicts the least recently used entry.
//
// The cache is reference counted: the creator holds the first reference,
// Retain adds one and Release drops one. Dropping the last reference
// empties the cache.
type CompileCache struct {
	mu       sync.Mutex
	enabled  bool
	capacity int
	entries  map[uint64]*vm.Artifact
	bounded  *lru.Cache[uint64, *vm.Artifact]
	refs     int
	stats    CacheStats
}

// NewCompileCache creates a cache holding one reference. When enabled is
// false every lookup compiles.
func NewCompileCache(enabled bool, capacity int) (*CompileCache, error) {
	c := &CompileCache{enabled: enabled, capacity: capacity, refs: 1}
	if capacity > 0 {
		bounded, err := lru.NewWithEvict(capacity, func(uint64, *vm.Artifact) {
			c.stats.Evictions++
		})
		if err != nil {
			return nil, err
		}
		c.bounded = bounded
	} else {
		c.entries = make(map[uint64]*vm.Artifact)
	}
	return c, nil
}

// Enabled reports whether artifacts are reused.
func (c *CompileCache) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// SetEnabled switches caching on or off. Stored entries are kept but not
// consulted while caching is off.
func (c *CompileCache) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
}

// GetOrCompile returns the artifact stored under hash, or runs compile and
// stores its result. The lock is held while compile runs and released
// before GetOrCompile returns.
func (c *CompileCache) GetOrCompile(hash uint64, compile func() (*vm.Artifact, error)) (*vm.Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.enabled {
		if a, ok := c.lookup(hash); ok {
			c.stats.Hits++
			return a, nil
		}
	}

	c.stats.Compiles++
	a, err := compile()
	if err != nil {
		c.stats.Failures++
		return nil, err
	}
	if c.enabled {
		c.store(hash, a)
	}
	return a, nil
}

func (c *CompileCache) lookup(hash uint64) (*vm.Artifact, bool) {
	if c.bounded != nil {
		return c.bounded.Get(hash)
	}
	a, ok := c.entries[hash]
	return a, ok
}

func (c *CompileCache) store(hash uint64, a *vm.Artifact) {
	if c.bounded != nil {
		c.bounded.Add(hash, a)
		return
	}
	c.entries[hash] = a
}

// Capacity returns the entry bound, zero when unbounded.
func (c *CompileCache) Capacity() int {
	return c.capacity
}

// Contains reports whether an artifact is stored under hash.
func (c *CompileCache) Contains(hash uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bounded != nil {
		return c.bounded.Contains(hash)
	}
	_, ok := c.entries[hash]
	return ok
}

// Len returns the number of stored artifacts.
func (c *CompileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bounded != nil {
		return c.bounded.Len()
	}
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *CompileCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Purge drops every stored artifact.
func (c *CompileCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeLocked()
}

func (c *CompileCache) purgeLocked() {
	if c.bounded != nil {
		// Purge reports each entry to the eviction callback
		evictions := c.stats.Evictions
		c.bounded.Purge()
		c.stats.Evictions = evictions
		return
	}
	clear(c.entries)
}

// Retain adds a reference and returns c.
func (c *CompileCache) Retain() *CompileCache {
	c.mu.Lock()
	c.refs++
	c.mu.Unlock()
	return c
}

// Release drops a reference. The last release empties the cache; further
// releases are ignored.
func (c *CompileCache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refs == 0 {
		return
	}
	c.refs--
	if c.refs == 0 {
		c.purgeLocked()
	}
}

// Refs returns the current reference count.
func (c *CompileCache) Refs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refs
}
