// Package nodepool wraps sync.Pool to provide a pooled allocator for
// fixed-layout records. Nodes are frequently allocated and released
// (Graph.Clear, repeated Dynamic-node subgraphs) and must never move to a
// new address in the middle of their own lifetime, which rules out a
// pool that might copy or relocate values; sync.Pool recycles pointers,
// not values, so it fits.
package nodepool

import "sync"

// Pool recycles *T values. The zero value is not usable; construct with
// New.
type Pool[T any] struct {
	pool sync.Pool
}

// New builds a Pool whose backing allocator is newFn.
func New[T any](newFn func() *T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any { return newFn() },
		},
	}
}

// Get returns a recycled or freshly allocated *T. Callers are responsible
// for resetting any fields the original owner left set.
func (p *Pool[T]) Get() *T {
	return p.pool.Get().(*T)
}

// Put returns v to the pool for reuse. The caller must not hold any other
// reference to v once Put is called.
func (p *Pool[T]) Put(v *T) {
	p.pool.Put(v)
}
