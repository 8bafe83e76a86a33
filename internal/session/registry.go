package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/victornm/docquiz/internal/domain"
	"github.com/victornm/docquiz/internal/question"
	"github.com/victornm/docquiz/internal/task"
)

// entry holds one live session. mu serialises every state transition of the
// session; the cache and lastAccess are read without it.
type entry struct {
	mu      sync.Mutex
	session *domain.Session

	cache      atomic.Pointer[question.Cache]
	lastAccess atomic.Int64
}

func (e *entry) touch(now time.Time) {
	e.lastAccess.Store(now.UnixNano())
}

// Registry is the set of live sessions. Sessions never contend on its lock for
// anything but lookup, insertion and removal.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	tasks   *task.Supervisor
}

func NewRegistry(tasks *task.Supervisor) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		tasks:   tasks,
	}
}

func (r *Registry) add(s *domain.Session, c *question.Cache, now time.Time) *entry {
	e := &entry{session: s}
	e.cache.Store(c)
	e.touch(now)

	r.mu.Lock()
	r.entries[s.SessionID] = e
	r.mu.Unlock()

	return e
}

func (r *Registry) get(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	return e, ok
}

// Len returns the number of sessions held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// Cache returns the generation cache of a session. It reports false once the
// session finished or was removed.
func (r *Registry) Cache(id string) (*question.Cache, bool) {
	e, ok := r.get(id)
	if !ok {
		return nil, false
	}

	c := e.cache.Load()
	return c, c != nil
}

// Remove drops a session, its cache and its background work. Removing an unknown
// session is a no-op.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if !ok {
		return false
	}

	e.cache.Store(nil)
	r.tasks.Cancel(id)
	return true
}

// Expire removes every session not accessed within ttl of now and returns their ids.
func (r *Registry) Expire(now time.Time, ttl time.Duration) []string {
	deadline := now.Add(-ttl).UnixNano()

	r.mu.RLock()
	var idle []string
	for id, e := range r.entries {
		if e.lastAccess.Load() < deadline {
			idle = append(idle, id)
		}
	}
	r.mu.RUnlock()

	removed := idle[:0]
	for _, id := range idle {
		if r.Remove(id) {
			removed = append(removed, id)
		}
	}
	return removed
}
