// Package cache provides a thread-safe cache of linked shader programs.
//
// Programs are context-scoped GPU resources, so entries are keyed by the
// rendering context and the full shader source: the same source linked on
// another context is a miss. There is no eviction; the number of distinct
// sources is bounded by the viz configurations in use.
//
// # Example
//
//	c := cache.New()
//	prog, err := c.GetOrCompile(gl, source, func() (gpu.Program, error) {
//		return gl.CreateProgram(vs, fs)
//	})
package cache

import (
	"sync"

	"github.com/sandrolain/goviz/pkg/gpu"
)

// key identifies a program. gpu.Context implementations are pointers, so
// the interface value compares by context identity.
type key struct {
	ctx gpu.Context
	src string
}

// Cache maps (context, source) pairs to linked programs.
//
// Safe for concurrent use by multiple goroutines.
type Cache struct {
	mu    sync.RWMutex
	items map[key]gpu.Program
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{items: make(map[key]gpu.Program)}
}

// Get retrieves the program linked from src on ctx.
func (c *Cache) Get(ctx gpu.Context, src string) (gpu.Program, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.items[key{ctx, src}]
	return p, ok
}

// Has reports whether a program for src on ctx is cached.
func (c *Cache) Has(ctx gpu.Context, src string) bool {
	_, ok := c.Get(ctx, src)
	return ok
}

// Set inserts or replaces the program for src on ctx.
func (c *Cache) Set(ctx gpu.Context, src string, p gpu.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key{ctx, src}] = p
}

// GetOrCompile returns the cached program for src on ctx, or calls compile
// to create it and caches the result. Errors are not cached. compile runs
// under the cache lock, so a source is linked at most once per context.
func (c *Cache) GetOrCompile(ctx gpu.Context, src string, compile func() (gpu.Program, error)) (gpu.Program, error) {
	if p, ok := c.Get(ctx, src); ok {
		return p, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key{ctx, src}
	if p, ok := c.items[k]; ok {
		return p, nil
	}
	p, err := compile()
	if err != nil {
		return 0, err
	}
	c.items[k] = p
	return p, nil
}

// Len returns the number of cached programs.
func (c *Cache) Len() int {
	c.mu.RLock()
	n := len(c.items)
	c.mu.RUnlock()
	return n
}

// Invalidate removes the program for src on ctx. The program is not deleted.
func (c *Cache) Invalidate(ctx gpu.Context, src string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key{ctx, src})
}

// Release deletes every program cached for ctx and drops the entries. Call
// it before discarding a context.
func (c *Cache) Release(ctx gpu.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, p := range c.items {
		if k.ctx == ctx {
			ctx.DeleteProgram(p)
			delete(c.items, k)
		}
	}
}
