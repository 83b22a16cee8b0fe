package queue

import (
	"context"

	"scribo/internal/job"
)

// JobQueue is a bounded FIFO of transcription jobs. It is the single
// synchronization point between the event handlers that admit work and the
// workers that drain it. Backed by a buffered channel, so Put and Get are
// race-free and strictly ordered without extra locking.
type JobQueue struct {
	jobs chan job.Job
}

func New(capacity int) *JobQueue {
	return &JobQueue{jobs: make(chan job.Job, capacity)}
}

// Put enqueues a job, blocking while the queue is at capacity. Admission
// checks IsFull first, so under the designed flow this does not block, but
// the blocking semantics hold under races.
func (q *JobQueue) Put(ctx context.Context, j job.Job) error {
	select {
	case q.jobs <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get dequeues the oldest job, blocking while the queue is empty.
func (q *JobQueue) Get(ctx context.Context) (job.Job, error) {
	select {
	case j := <-q.jobs:
		return j, nil
	case <-ctx.Done():
		return job.Job{}, ctx.Err()
	}
}

// Size is the number of jobs enqueued and not yet picked up by a worker.
func (q *JobQueue) Size() int {
	return len(q.jobs)
}

// Capacity is the fixed bound set at construction.
func (q *JobQueue) Capacity() int {
	return cap(q.jobs)
}

// IsFull reports whether the queue is at capacity.
func (q *JobQueue) IsFull() bool {
	return len(q.jobs) >= cap(q.jobs)
}
