// Package inmemory is a channel-backed queue for single-process deployments
// and tests. Multi-instance deployments swap in a hosted queue behind the
// same Publisher and Consumer interfaces.
package inmemory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/egorv/bankflow/internal/jobs"
)

// Queue is an in-memory job queue safe for concurrent use.
type Queue struct {
	jobChan   chan jobs.Job
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	policy    jobs.RetryPolicy
	workers   int
	closed    bool
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)

// NewQueue creates a queue holding up to bufferSize pending jobs, processed
// by the given number of workers and retried per the policy.
func NewQueue(bufferSize, workers int, policy jobs.RetryPolicy) *Queue {
	if workers < 1 {
		workers = 1
	}
	if policy.MaxAttempts < 1 {
		policy = jobs.DefaultRetryPolicy
	}
	return &Queue{
		jobChan:   make(chan jobs.Job, bufferSize),
		closeChan: make(chan struct{}),
		policy:    policy,
		workers:   workers,
	}
}

// Publish enqueues a job, blocking when the buffer is full.
func (q *Queue) Publish(ctx context.Context, job jobs.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	stampEnvelope(job)

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

func stampEnvelope(job jobs.Job) {
	env := envelopeOf(job)
	if env == nil {
		return
	}
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	if env.CreatedAt.IsZero() {
		env.CreatedAt = time.Now()
	}
}

func envelopeOf(job jobs.Job) *jobs.Envelope {
	switch j := job.(type) {
	case *jobs.IngestFileJob:
		return &j.Envelope
	case *jobs.ProcessImportJob:
		return &j.Envelope
	case *jobs.CategorizeBatchJob:
		return &j.Envelope
	default:
		return nil
	}
}

// Start launches the worker goroutines. It returns immediately; delivery
// continues until Stop or context cancellation.
func (q *Queue) Start(ctx context.Context, handler jobs.Handler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.process(ctx, job, handler)
		}
	}
}

// process runs the handler once and re-enqueues on failure until the retry
// policy is exhausted.
func (q *Queue) process(ctx context.Context, job jobs.Job, handler jobs.Handler) {
	err := handler(ctx, job)
	if err == nil {
		return
	}

	env := envelopeOf(job)
	attempt := 1
	if env != nil {
		env.Attempt++
		attempt = env.Attempt
	}

	if attempt >= q.policy.MaxAttempts {
		slog.Error("Job failed permanently",
			"job_id", job.GetID(),
			"job_type", job.GetType(),
			"attempts", attempt,
			"error", err)
		return
	}

	slog.Warn("Job failed, retrying",
		"job_id", job.GetID(),
		"job_type", job.GetType(),
		"attempt", attempt,
		"error", err)

	backoff := q.policy.Backoff * time.Duration(attempt)
	time.AfterFunc(backoff, func() {
		if err := q.Publish(ctx, job); err != nil {
			slog.Error("Failed to re-enqueue job",
				"job_id", job.GetID(), "error", err)
		}
	})
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}
