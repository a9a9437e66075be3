package worker

import "sync"

// Queue is a bounded FIFO of job IDs.
//
// A submitter first reserves a slot with TryReserve and only then pushes, so a
// full queue is detected before any job is created. A slot is freed when a
// worker takes the ID off the queue.
type Queue struct {
	slots     chan struct{}
	items     chan string
	closeOnce sync.Once
}

// NewQueue creates a queue holding at most capacity IDs
func NewQueue(capacity int) *Queue {
	return &Queue{
		slots: make(chan struct{}, capacity),
		items: make(chan string, capacity),
	}
}

// TryReserve claims a slot without blocking. It returns false when the queue
// is at capacity.
func (q *Queue) TryReserve() bool {
	select {
	case q.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Push enqueues an ID for which a slot was reserved. It never blocks.
func (q *Queue) Push(jobID string) {
	q.items <- jobID
}

// Items is the dequeue side. Receiving from it must be followed by Release.
func (q *Queue) Items() <-chan string {
	return q.items
}

// Release frees the slot of a dequeued ID
func (q *Queue) Release() {
	<-q.slots
}

// Len is the number of reserved or queued slots
func (q *Queue) Len() int {
	return len(q.slots)
}

// Cap is the queue capacity
func (q *Queue) Cap() int {
	return cap(q.slots)
}

// Close stops the dequeue side once the remaining IDs are drained.
// Push must not be called after Close.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.items) })
}
