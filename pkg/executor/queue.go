package executor

// taskQueue is a fixed-capacity FIFO ring buffer. Callers hold Executor.mu.
type taskQueue struct {
	buf  []func()
	head int
	n    int
}

func newTaskQueue(capacity int) *taskQueue {
	return &taskQueue{buf: make([]func(), capacity)}
}

func (q *taskQueue) len() int   { return q.n }
func (q *taskQueue) full() bool { return q.n == len(q.buf) }

func (q *taskQueue) push(t func()) {
	q.buf[(q.head+q.n)%len(q.buf)] = t
	q.n++
}

func (q *taskQueue) pop() (func(), bool) {
	if q.n == 0 {
		return nil, false
	}
	t := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return t, true
}

func (q *taskQueue) clear() {
	for q.n > 0 {
		q.pop()
	}
	q.head = 0
}
