// Package queue provides a generic binary-heap priority queue.
package queue

// PriorityQueue is a binary heap ordered by a less function: the item for
// which less reports true against every other item is on top.
type PriorityQueue[T any] struct {
	less  func(a, b T) bool
	items []T
}

// New creates an empty queue ordered by less.
func New[T any](less func(a, b T) bool, capacity int) *PriorityQueue[T] {
	return &PriorityQueue[T]{
		less:  less,
		items: make([]T, 0, capacity),
	}
}

// Len returns the number of items in the queue.
func (pq *PriorityQueue[T]) Len() int { return len(pq.items) }

// Top returns the top item without removing it.
func (pq *PriorityQueue[T]) Top() (T, bool) {
	if len(pq.items) == 0 {
		var zero T
		return zero, false
	}
	return pq.items[0], true
}

// Push inserts an item while maintaining the heap invariant.
func (pq *PriorityQueue[T]) Push(item T) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// Pop removes and returns the top item.
func (pq *PriorityQueue[T]) Pop() (T, bool) {
	var zero T
	n := len(pq.items)
	if n == 0 {
		return zero, false
	}
	root := pq.items[0]
	last := pq.items[n-1]
	pq.items[n-1] = zero
	pq.items = pq.items[:n-1]
	if n-1 > 0 {
		pq.items[0] = last
		pq.siftDown(0)
	}
	return root, true
}

// Drain removes and returns all items in heap order.
func (pq *PriorityQueue[T]) Drain() []T {
	out := make([]T, 0, len(pq.items))
	for len(pq.items) > 0 {
		item, _ := pq.Pop()
		out = append(out, item)
	}
	return out
}

// Items returns the backing slice in heap (not sorted) order.
func (pq *PriorityQueue[T]) Items() []T { return pq.items }

func (pq *PriorityQueue[T]) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !pq.less(pq.items[i], pq.items[p]) {
			return
		}
		pq.items[i], pq.items[p] = pq.items[p], pq.items[i]
		i = p
	}
}

func (pq *PriorityQueue[T]) siftDown(i int) {
	n := len(pq.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		r := l + 1
		if r < n && pq.less(pq.items[r], pq.items[l]) {
			best = r
		}
		if !pq.less(pq.items[best], pq.items[i]) {
			return
		}
		pq.items[i], pq.items[best] = pq.items[best], pq.items[i]
		i = best
	}
}
