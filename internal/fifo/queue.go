// Package fifo provides an allocation-efficient FIFO queue used to collect
// visited stack frames. It is not safe for concurrent access.
package fifo

// Queue is a linked list of small ring buffers. Nodes are recycled through a
// per-queue free list so that repeated collect/drain cycles settle into a
// steady state with no further allocation.
type Queue[T any] struct {
	len        int
	head, tail *node[T]
	free       *node[T]
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	return q.len
}

// PushBack appends t to the queue.
func (q *Queue[T]) PushBack(t T) {
	if q.head == nil {
		q.head = q.getNode()
		q.tail = q.head
	} else if q.tail.full() {
		n := q.getNode()
		q.tail.next = n
		q.tail = n
	}
	q.tail.pushBack(t)
	q.len++
}

// PopFront removes and returns the head of the queue. It is illegal to call
// PopFront on an empty queue.
func (q *Queue[T]) PopFront() T {
	t := q.head.popFront()
	if q.head.len == 0 {
		old := q.head
		q.head = old.next
		q.putNode(old)
	}
	q.len--
	return t
}

func (q *Queue[T]) getNode() *node[T] {
	if q.free == nil {
		return new(node[T])
	}
	n := q.free
	q.free = n.next
	n.next = nil
	return n
}

func (q *Queue[T]) putNode(n *node[T]) {
	n.head = 0
	n.len = 0
	n.next = q.free
	q.free = n
}

// Sized so that a typical stack walk fits in one node.
const nodeSize = 64

type node[T any] struct {
	buf       [nodeSize]T
	head, len int32
	next      *node[T]
}

func (n *node[T]) full() bool {
	return n.len == nodeSize
}

func (n *node[T]) pushBack(t T) {
	n.buf[(n.head+n.len)%nodeSize] = t
	n.len++
}

func (n *node[T]) popFront() T {
	t := n.buf[n.head]
	var zero T
	n.buf[n.head] = zero
	n.head = (n.head + 1) % nodeSize
	n.len--
	return t
}
