package vm

import "sync"

// compileTask asks the broker to compile one method at one level.
type compileTask struct {
	method string
	level  int

	// epoch is the method's deoptimization epoch when the task was
	// enqueued. A task from an older epoch is discarded.
	epoch int64
}

// compileQueue is a thread-safe FIFO queue of compile tasks.
//
// The queue is unbounded so an invocation never blocks on the broker.
// It uses a channel for signaling to enable context-aware waiting in the
// broker loop.
type compileQueue struct {
	mu     sync.Mutex
	tasks  []compileTask
	closed bool
	signal chan struct{} // Signals task availability (buffered, size 1)
}

func newCompileQueue() *compileQueue {
	return &compileQueue{
		tasks:  make([]compileTask, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a task to the back of the queue.
// Returns false if the queue is closed.
func (q *compileQueue) Enqueue(t compileTask) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.tasks = append(q.tasks, t)

	// Non-blocking: the buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue attempts to dequeue without blocking.
func (q *compileQueue) TryDequeue() (compileTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return compileTask{}, false
	}

	t := q.tasks[0]
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return t, true
}

// Wait returns a channel that signals when tasks may be available. The
// channel is closed when the queue is closed.
func (q *compileQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *compileQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close signals that no more tasks will be enqueued.
func (q *compileQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
