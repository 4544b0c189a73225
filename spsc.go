// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgroute

import "code.hybscloud.com/atomix"

// Ring is a single-producer single-consumer bounded queue.
//
// Based on Lamport's ring buffer with one reserved slot: a ring of n slots
// holds at most n-1 elements, so full and empty never share a cursor
// distance. Each slot carries a ready flag published after the payload
// write, which lets the consumer reject a slot whose payload is not yet
// visible even when the cursor says otherwise.
//
// The producer caches the consumer's cursor and vice versa, reducing
// cross-core cache line traffic.
//
// Memory: O(size), no allocation after construction
type Ring[T any] struct {
	_          pad
	head       atomix.Uint64 // Consumer reads from here
	_          pad
	cachedTail uint64 // Consumer's cached view of tail
	_          pad
	tail       atomix.Uint64 // Producer writes here
	_          pad
	cachedHead uint64 // Producer's cached view of head
	_          pad
	slots      []ringSlot[T]
	mask       uint64
}

type ringSlot[T any] struct {
	ready atomix.Bool
	data  T
}

// Queue is the ring type connecting two pipeline stages.
type Queue = Ring[Message]

// NewRing creates a new SPSC ring with size slots.
// Size rounds up to the next power of 2; capacity is size-1.
func NewRing[T any](size int) *Ring[T] {
	if size < 2 {
		panic("msgroute: ring size must be >= 2")
	}

	n := uint64(roundToPow2(size))
	return &Ring[T]{
		slots: make([]ringSlot[T], n),
		mask:  n - 1,
	}
}

// NewQueue creates a message ring with size slots.
func NewQueue(size int) *Queue {
	return NewRing[Message](size)
}

// Enqueue copies elem into the next slot (producer only).
// Returns ErrWouldBlock without touching the ring if it is full.
func (q *Ring[T]) Enqueue(elem *T) error {
	tail := q.tail.LoadRelaxed()
	if tail-q.cachedHead >= q.mask {
		q.cachedHead = q.head.LoadAcquire()
		if tail-q.cachedHead >= q.mask {
			return ErrWouldBlock
		}
	}

	slot := &q.slots[tail&q.mask]
	slot.data = *elem
	slot.ready.StoreRelease(true)
	q.tail.StoreRelease(tail + 1)
	return nil
}

// Dequeue removes and returns the oldest element (consumer only).
// Returns (zero-value, ErrWouldBlock) if the ring is empty or the
// next slot has not been published yet.
func (q *Ring[T]) Dequeue() (T, error) {
	var zero T
	head := q.head.LoadRelaxed()
	if head >= q.cachedTail {
		q.cachedTail = q.tail.LoadAcquire()
		if head >= q.cachedTail {
			return zero, ErrWouldBlock
		}
	}

	slot := &q.slots[head&q.mask]
	if !slot.ready.LoadAcquire() {
		return zero, ErrWouldBlock
	}
	elem := slot.data
	slot.data = zero
	slot.ready.StoreRelease(false)
	q.head.StoreRelease(head + 1)
	return elem, nil
}

// Cap returns the number of elements the ring can hold.
func (q *Ring[T]) Cap() int {
	return int(q.mask)
}

// Len returns a snapshot of the number of queued elements.
// Only meaningful for monitoring: the value may be stale by the time
// the caller looks at it.
func (q *Ring[T]) Len() int {
	head := q.head.LoadAcquire()
	tail := q.tail.LoadAcquire()
	return int(tail - head)
}

// Empty reports whether the ring looked empty at the time of the call.
func (q *Ring[T]) Empty() bool {
	return q.Len() == 0
}
