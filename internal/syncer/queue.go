package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// persistQueue serializes all local-store writes through a single worker
// goroutine. CRUD paths enqueue without waiting; pull/push use RunSync to
// get durability before returning. Failed writes are retried a bounded
// number of times, then logged and dropped — the in-memory state stays
// authoritative and a later write of the same slot supersedes the loss.
type persistQueue struct {
	logger      *slog.Logger
	jobs        chan queuedJob
	closeOnce   sync.Once
	mu          sync.Mutex
	wg          sync.WaitGroup
	pending     atomic.Int64
	jobTimeout  time.Duration
	retryDelay  time.Duration
	maxAttempts int
	closed      bool
}

type queuedJob struct {
	run  func(ctx context.Context) error
	done chan error // nil for fire-and-forget jobs
	name string
}

func newPersistQueue(logger *slog.Logger, depth int) *persistQueue {
	if depth <= 0 {
		depth = 64
	}

	q := &persistQueue{
		logger:      logger,
		jobs:        make(chan queuedJob, depth),
		maxAttempts: 3,
		retryDelay:  250 * time.Millisecond,
		jobTimeout:  10 * time.Second,
	}

	q.wg.Add(1)
	go q.worker()

	return q
}

// Enqueue submits a fire-and-forget write. Returns false when the queue
// is full or closed; the caller's in-memory state is unaffected either way.
func (q *persistQueue) Enqueue(name string, run func(ctx context.Context) error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	select {
	case q.jobs <- queuedJob{name: name, run: run}:
		q.pending.Add(1)
		return true
	default:
		q.logger.Warn("persist queue full, dropping write", "job", name)
		return false
	}
}

// RunSync submits a write and waits for it to complete, preserving the
// queue's ordering relative to earlier enqueued writes. The send happens
// under the lock, like Enqueue, so Close cannot close the channel between
// the closed check and the send.
func (q *persistQueue) RunSync(ctx context.Context, name string, run func(ctx context.Context) error) error {
	done := make(chan error, 1)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("persist queue closed")
	}

	select {
	case q.jobs <- queuedJob{name: name, run: run, done: done}:
		q.pending.Add(1)
		q.mu.Unlock()
	case <-ctx.Done():
		q.mu.Unlock()
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of writes not yet completed.
func (q *persistQueue) Pending() int {
	return int(q.pending.Load())
}

// Close stops accepting writes and drains the queue.
func (q *persistQueue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()

		close(q.jobs)
		q.wg.Wait()
	})
}

func (q *persistQueue) worker() {
	defer q.wg.Done()

	for job := range q.jobs {
		err := q.runWithRetry(job)
		q.pending.Add(-1)

		if job.done != nil {
			job.done <- err
		} else if err != nil {
			q.logger.Error("background persist failed, edits may not survive a restart",
				"job", job.name,
				"error", err)
		}
	}
}

func (q *persistQueue) runWithRetry(job queuedJob) error {
	delay := q.retryDelay

	var err error
	for attempt := 1; attempt <= q.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), q.jobTimeout)
		err = job.run(ctx)
		cancel()

		if err == nil {
			return nil
		}

		if attempt < q.maxAttempts {
			q.logger.Warn("persist attempt failed, retrying",
				"job", job.name,
				"attempt", attempt,
				"error", err)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("persist %s failed after %d attempts: %w", job.name, q.maxAttempts, err)
}
