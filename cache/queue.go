package cache

// queue is a circular doubly-linked list threaded through the entries'
// own links for one order (access or write). head is a sentinel: the
// first element is head.q[o].next, the last one head.q[o].prev. Entries
// are appended at the tail, so the head is always the oldest.
//
// All methods require the segment lock.
type queue[K comparable, V any] struct {
	order int
	head  entry[K, V]
}

func (q *queue[K, V]) init(order int) {
	q.order = order
	q.head.q[order] = links[K, V]{prev: &q.head, next: &q.head}
}

func (q *queue[K, V]) connect(prev, next *entry[K, V]) {
	prev.q[q.order].next = next
	next.q[q.order].prev = prev
}

// contains reports whether e is linked into this queue.
func (q *queue[K, V]) contains(e *entry[K, V]) bool {
	return e.q[q.order].next != nil
}

// offer moves e to the tail, linking it first if needed.
func (q *queue[K, V]) offer(e *entry[K, V]) {
	l := &e.q[q.order]
	if l.next != nil {
		q.connect(l.prev, l.next)
	}
	q.connect(q.head.q[q.order].prev, e)
	q.connect(e, &q.head)
}

// peek returns the oldest entry, or nil when the queue is empty.
func (q *queue[K, V]) peek() *entry[K, V] {
	if n := q.head.q[q.order].next; n != &q.head {
		return n
	}
	return nil
}

// remove unlinks e and reports whether it was a member.
func (q *queue[K, V]) remove(e *entry[K, V]) bool {
	l := &e.q[q.order]
	if l.next == nil {
		return false
	}
	q.connect(l.prev, l.next)
	*l = links[K, V]{}
	return true
}

// replace puts dst in src's position and unlinks src. Used when a hash
// chain node is copied.
func (q *queue[K, V]) replace(src, dst *entry[K, V]) {
	l := &src.q[q.order]
	if l.next == nil {
		return
	}
	q.connect(l.prev, dst)
	q.connect(dst, l.next)
	*l = links[K, V]{}
}

func (q *queue[K, V]) clear() {
	for e := q.head.q[q.order].next; e != &q.head; {
		next := e.q[q.order].next
		e.q[q.order] = links[K, V]{}
		e = next
	}
	q.head.q[q.order] = links[K, V]{prev: &q.head, next: &q.head}
}

// each calls fn from oldest to newest. fn must not modify the queue.
func (q *queue[K, V]) each(fn func(*entry[K, V])) {
	for e := q.head.q[q.order].next; e != &q.head; e = e.q[q.order].next {
		fn(e)
	}
}

func (q *queue[K, V]) len() int {
	n := 0
	q.each(func(*entry[K, V]) { n++ })
	return n
}
