package question

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Cache is the generation state owned by one session: the questions already handed
// out and the pool filled by pre-generation.
type Cache struct {
	mu   sync.Mutex
	used []string
	seen map[string]struct{}

	pool atomic.Pointer[[]string]
}

func NewCache() *Cache {
	return &Cache{
		seen: make(map[string]struct{}),
	}
}

// Add records q as used. Adding a question twice keeps a single entry.
func (c *Cache) Add(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[q]; ok {
		return
	}
	c.seen[q] = struct{}{}
	c.used = append(c.used, q)
}

func (c *Cache) Contains(q string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.seen[q]
	return ok
}

// Used returns the used questions in the order they were added.
func (c *Cache) Used() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.used)
}

// Publish replaces the pre-generated pool in one step.
func (c *Cache) Publish(questions []string) {
	qs := slices.Clone(questions)
	c.pool.Store(&qs)
}

// Pool returns the pre-generated questions, nil until Publish was called.
func (c *Cache) Pool() []string {
	p := c.pool.Load()
	if p == nil {
		return nil
	}
	return *p
}
