// Package shared provides an atomically reference-counted owner handle.
//
// Every [Ref] returned by [New] or [Ref.Clone] is one owner of the shared value. The release
// function passed to [New] runs exactly once, when the last owner is released.
package shared

import (
	"context"
	"sync/atomic"
)

type counted[T any] struct {
	val     T
	refs    atomic.Int64
	release func(ctx context.Context, val T) error
}

// Ref is a single owner of a shared value. It is safe for concurrent use.
// The nil *Ref is a valid, empty owner.
type Ref[T any] struct {
	c        *counted[T]
	released atomic.Bool
}

// New creates the first owner of val. release may be nil.
func New[T any](val T, release func(ctx context.Context, val T) error) *Ref[T] {
	c := &counted[T]{val: val, release: release}
	c.refs.Store(1)
	return &Ref[T]{c: c}
}

// Get returns the shared value, false if the owner is empty or already released.
func (r *Ref[T]) Get() (T, bool) {
	if !r.Valid() {
		var zero T
		return zero, false
	}
	return r.c.val, true
}

// Valid reports whether this owner still holds the value.
func (r *Ref[T]) Valid() bool {
	return r != nil && r.c != nil && !r.released.Load()
}

// Clone registers a new owner of the same value. Returns nil if this owner was released
// or the value was already dropped by its last owner.
func (r *Ref[T]) Clone() *Ref[T] {
	if !r.Valid() {
		return nil
	}
	for {
		n := r.c.refs.Load()
		if n <= 0 {
			return nil
		}
		if r.c.refs.CompareAndSwap(n, n+1) {
			return &Ref[T]{c: r.c}
		}
	}
}

// Count returns the current number of owners.
func (r *Ref[T]) Count() int64 {
	if r == nil || r.c == nil {
		return 0
	}
	return r.c.refs.Load()
}

// Release drops this owner. Repeated calls are no-ops. When the last owner is released the
// release function runs and its error is returned.
func (r *Ref[T]) Release(ctx context.Context) error {
	if r == nil || r.c == nil || !r.released.CompareAndSwap(false, true) {
		return nil
	}
	if r.c.refs.Add(-1) != 0 {
		return nil
	}
	if r.c.release == nil {
		return nil
	}
	return r.c.release(ctx, r.c.val)
}
