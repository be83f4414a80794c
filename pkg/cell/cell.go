// Package cell provides Cell, a value guarded by a reader/writer lock.
//
// A Cell serializes access to one mutable resource. Any number of Read calls
// may run concurrently while no writer is active; Write, Update, Replace and
// ReplaceWith are exclusive.
//
// # Reentrancy
//
// The lock is not reentrant. A function passed to Read, Write or Update must
// not call back into the same cell, or the calling goroutine deadlocks.
// Functions may take other, independent locks of their own; connector hooks
// invoked under a registry cell rely on that.
//
// Go methods cannot carry type parameters, so the result-returning accessors
// are package functions:
//
//	n, err := cell.Read(c, func(m map[string]int) (int, error) {
//	    return len(m), nil
//	})
package cell

import "sync"

// Cell guards a single value of type T.
type Cell[T any] struct {
	mu    sync.RWMutex
	value T
}

// New returns a cell holding v.
func New[T any](v T) *Cell[T] {
	return &Cell[T]{value: v}
}

// Read invokes fn on the current value under the shared lock and returns its result.
func Read[T, R any](c *Cell[T], fn func(T) (R, error)) (R, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fn(c.value)
}

// Write invokes fn on the current value under the exclusive lock. fn may
// mutate the value in place (maps, pointers) and returns a result.
func Write[T, R any](c *Cell[T], fn func(T) (R, error)) (R, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.value)
}

// Update invokes fn under the exclusive lock and stores the value it returns.
// The stored value is left untouched when fn fails.
func Update[T any](c *Cell[T], fn func(T) (T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := fn(c.value)
	if err != nil {
		return err
	}
	c.value = next
	return nil
}

// Replace atomically swaps in v and returns the previous value.
func (c *Cell[T]) Replace(v T) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.value
	c.value = v
	return prev
}

// ReplaceWith atomically swaps in the value produced by factory and returns the previous value.
func (c *Cell[T]) ReplaceWith(factory func() T) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.value
	c.value = factory()
	return prev
}

// Load returns the current value under the shared lock. For reference types
// the caller must not mutate the result outside Write.
func (c *Cell[T]) Load() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}
