// Package queue implements a bounded, lock-free, multi-producer/
// multi-consumer ring buffer with non-blocking push/pop, the classic
// Vyukov queue design: an array of cells, each tagged with a sequence
// number that producers and consumers advance via compare-and-swap.
package queue

import "sync/atomic"

type cell[T any] struct {
	sequence atomic.Uint64
	value    T
}

// MPMC is a bounded, lock-free, multi-producer/multi-consumer ring buffer.
// Push and Pop never block: both return false when the queue is full or
// empty, respectively, leaving retry policy to the caller (the scheduler
// spin-retries on push, workers treat a failed pop as "go steal").
type MPMC[T any] struct {
	mask       uint64
	buffer     []cell[T]
	enqueuePos atomic.Uint64
	dequeuePos atomic.Uint64
}

// New creates a queue with at least the requested capacity, rounded up to
// the next power of two (required by the index-masking trick below).
func New[T any](capacity int) *MPMC[T] {
	if capacity < 1 {
		capacity = 1
	}
	size := nextPowerOfTwo(capacity)
	q := &MPMC[T]{
		mask:   uint64(size - 1),
		buffer: make([]cell[T], size),
	}
	for i := range q.buffer {
		q.buffer[i].sequence.Store(uint64(i))
	}
	return q
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Push enqueues v, returning false if the queue is full.
func (q *MPMC[T]) Push(v T) bool {
	pos := q.enqueuePos.Load()
	for {
		c := &q.buffer[pos&q.mask]
		seq := c.sequence.Load()
		diff := int64(seq) - int64(pos)
		switch {
		case diff == 0:
			if q.enqueuePos.CompareAndSwap(pos, pos+1) {
				c.value = v
				c.sequence.Store(pos + 1)
				return true
			}
			pos = q.enqueuePos.Load()
		case diff < 0:
			return false
		default:
			pos = q.enqueuePos.Load()
		}
	}
}

// Pop dequeues a value, returning false if the queue is empty.
func (q *MPMC[T]) Pop() (T, bool) {
	pos := q.dequeuePos.Load()
	for {
		c := &q.buffer[pos&q.mask]
		seq := c.sequence.Load()
		diff := int64(seq) - int64(pos+1)
		switch {
		case diff == 0:
			if q.dequeuePos.CompareAndSwap(pos, pos+1) {
				v := c.value
				var zero T
				c.value = zero
				c.sequence.Store(pos + q.mask + 1)
				return v, true
			}
			pos = q.dequeuePos.Load()
		case diff < 0:
			var zero T
			return zero, false
		default:
			pos = q.dequeuePos.Load()
		}
	}
}

// Len returns an approximate element count; exact only in the absence of
// concurrent producers/consumers. Used by Scheduler.Wait, which does not
// need an exact snapshot.
func (q *MPMC[T]) Len() int {
	enq := q.enqueuePos.Load()
	deq := q.dequeuePos.Load()
	if enq < deq {
		return 0
	}
	return int(enq - deq)
}

// Cap returns the queue's fixed capacity.
func (q *MPMC[T]) Cap() int {
	return len(q.buffer)
}
