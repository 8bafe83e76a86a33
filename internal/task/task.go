// Package task supervises keyed background work such as question pre-generation.
package task

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
)

type Func func(ctx context.Context) error

type handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor runs at most one task per key. Tasks are cancelled through their context;
// Stop cancels all of them and waits.
type Supervisor struct {
	mu      sync.Mutex
	wg      sync.WaitGroup
	tasks   map[string]*handle
	stopped bool
}

func NewSupervisor() *Supervisor {
	return &Supervisor{
		tasks: make(map[string]*handle),
	}
}

// Go starts fn under key. It reports false when a task for key is still running
// or the supervisor is stopped.
func (s *Supervisor) Go(ctx context.Context, key string, fn Func) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	if _, ok := s.tasks[key]; ok {
		return false
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &handle{cancel: cancel, done: make(chan struct{})}
	s.tasks[key] = h
	s.wg.Add(1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "task: panic",
					"key", key,
					"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
				)
			}

			cancel()
			s.mu.Lock()
			if s.tasks[key] == h {
				delete(s.tasks, key)
			}
			s.mu.Unlock()
			close(h.done)
			s.wg.Done()
		}()

		if err := fn(ctx); err != nil {
			slog.WarnContext(ctx, "task: failed", "key", key, "error", err)
		}
	}()

	return true
}

// Cancel signals the task under key to stop. It is a no-op for unknown keys.
func (s *Supervisor) Cancel(key string) {
	s.mu.Lock()
	h, ok := s.tasks[key]
	s.mu.Unlock()

	if ok {
		h.cancel()
	}
}

// Wait blocks until the task under key has returned or ctx is done.
func (s *Supervisor) Wait(ctx context.Context, key string) error {
	s.mu.Lock()
	h, ok := s.tasks[key]
	s.mu.Unlock()

	if !ok {
		return nil
	}

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running returns the keys of the tasks still running, sorted.
func (s *Supervisor) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.tasks))
	for k := range s.tasks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stop cancels every task, refuses new ones and waits for all of them to return.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.stopped = true
	for _, h := range s.tasks {
		h.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
}
