// Package queue provides a value-based binary heap over (landmark, distance)
// pairs. Ordering is total: equal distances are broken by landmark index, so
// repeated selections over identical input pop in the same order.
package queue

// Item is one heap entry.
type Item struct {
	Landmark uint32
	Dist     float32
}

// PriorityQueue holds Items in either min or max order.
// Value-based storage keeps selection loops allocation-free.
type PriorityQueue struct {
	max   bool
	items []Item
}

// NewMin initializes a queue popping nearest-first.
// A smaller landmark index wins distance ties.
func NewMin(capacity int) *PriorityQueue {
	return &PriorityQueue{items: make([]Item, 0, capacity)}
}

// NewMax initializes a queue popping farthest-first, the shape used to keep
// a bounded set of current-best candidates. A larger landmark index counts
// as farther on distance ties, so ties evict the larger index first.
func NewMax(capacity int) *PriorityQueue {
	return &PriorityQueue{max: true, items: make([]Item, 0, capacity)}
}

// Len returns the number of items in the queue.
func (pq *PriorityQueue) Len() int { return len(pq.items) }

// Top returns the root item without removing it.
func (pq *PriorityQueue) Top() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return pq.items[0], true
}

// Push inserts an item while maintaining the heap invariant.
func (pq *PriorityQueue) Push(item Item) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// Pop removes and returns the root item.
func (pq *PriorityQueue) Pop() (Item, bool) {
	n := len(pq.items)
	if n == 0 {
		return Item{}, false
	}
	root := pq.items[0]
	last := pq.items[n-1]
	pq.items = pq.items[:n-1]
	if n-1 > 0 {
		pq.items[0] = last
		pq.siftDown(0)
	}
	return root, true
}

// Items exposes the backing slice in heap order, valid until the next
// mutation. Callers that need sorted output pop instead.
func (pq *PriorityQueue) Items() []Item {
	return pq.items
}

// Reset clears the queue for reuse without releasing capacity.
func (pq *PriorityQueue) Reset() {
	pq.items = pq.items[:0]
}

func (pq *PriorityQueue) before(a, b Item) bool {
	if pq.max {
		if a.Dist != b.Dist {
			return a.Dist > b.Dist
		}
		return a.Landmark > b.Landmark
	}
	if a.Dist != b.Dist {
		return a.Dist < b.Dist
	}
	return a.Landmark < b.Landmark
}

func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !pq.before(pq.items[i], pq.items[p]) {
			return
		}
		pq.items[i], pq.items[p] = pq.items[p], pq.items[i]
		i = p
	}
}

func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && pq.before(pq.items[r], pq.items[l]) {
			best = r
		}
		if !pq.before(pq.items[best], pq.items[i]) {
			return
		}
		pq.items[i], pq.items[best] = pq.items[best], pq.items[i]
		i = best
	}
}
