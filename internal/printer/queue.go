// Package printer queues print jobs and drives the receipt printer serial
// link. A single worker serializes all jobs; nothing else writes to the
// printer.
package printer

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job statuses
const (
	StatusQueued    = "queued"
	StatusPrinting  = "printing"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// historyLimit bounds the in-memory job history. Jobs are never persisted;
// the history exists only for the jobs API.
const historyLimit = 100

// Job represents one print job
type Job struct {
	ID        string
	Text      string
	Status    string // queued, printing, failed, completed
	Error     error
	CreatedAt time.Time
}

// Queue is an unbounded FIFO of print jobs, safe for any number of
// producers (HTTP and WebSocket handlers) and one consumer (the worker).
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []*Job
	history []*Job
	closed  bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue adds a job for text and returns its ID. The caller gets the ID
// back immediately; delivery is attempted later by the worker and never
// reported back through this path.
func (q *Queue) Enqueue(text string) string {
	job := &Job{
		ID:        uuid.New().String(),
		Text:      text,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}

	q.mu.Lock()
	q.pending = append(q.pending, job)
	q.history = append(q.history, job)
	if len(q.history) > historyLimit {
		q.history = q.history[len(q.history)-historyLimit:]
	}
	q.mu.Unlock()

	q.cond.Signal()

	return job.ID
}

// Dequeue blocks until a job is available or Close is called, marking the
// returned job as printing. It returns nil after Close.
func (q *Queue) Dequeue() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) == 0 && !q.closed {
		q.cond.Wait()
	}

	if len(q.pending) == 0 {
		return nil
	}

	job := q.pending[0]
	q.pending = q.pending[1:]
	job.Status = StatusPrinting

	return job
}

// Finish records the outcome of a delivery attempt. Failed jobs are never
// re-queued.
func (q *Queue) Finish(job *Job, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err != nil {
		job.Status = StatusFailed
		job.Error = err
	} else {
		job.Status = StatusCompleted
	}
}

// GetJob returns a copy of a job from the history, or nil if unknown.
func (q *Queue) GetJob(jobID string) *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, job := range q.history {
		if job.ID == jobID {
			jobCopy := *job
			return &jobCopy
		}
	}

	return nil
}

// GetAllJobs returns copies of the recent job history, oldest first.
func (q *Queue) GetAllJobs() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := make([]*Job, len(q.history))
	for i, job := range q.history {
		jobCopy := *job
		jobs[i] = &jobCopy
	}

	return jobs
}

// Pending returns the number of jobs waiting for the worker.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close wakes the worker so it can exit. Pending jobs are abandoned; print
// jobs do not survive a restart.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.cond.Broadcast()
}
