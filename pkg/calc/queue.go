package calc

// queue is a FIFO consumed strictly in production order.
type queue[T any] struct {
	items []T
	head  int
}

func (q *queue[T]) push(v T) {
	q.items = append(q.items, v)
}

// peekAt returns the element i positions after the head without consuming it.
func (q *queue[T]) peekAt(i int) (T, bool) {
	var zero T
	if q.head+i >= len(q.items) {
		return zero, false
	}
	return q.items[q.head+i], true
}

func (q *queue[T]) peek() (T, bool) {
	return q.peekAt(0)
}

func (q *queue[T]) pop() (T, bool) {
	v, ok := q.peek()
	if ok {
		q.head++
	}
	return v, ok
}

func (q *queue[T]) len() int {
	return len(q.items) - q.head
}

func (q *queue[T]) reset() {
	q.items = nil
	q.head = 0
}

// remaining returns a copy of the unconsumed elements.
func (q *queue[T]) remaining() []T {
	out := make([]T, q.len())
	copy(out, q.items[q.head:])
	return out
}
