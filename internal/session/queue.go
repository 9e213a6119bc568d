package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/abhisek/coursekit/internal/logger"
)

// ErrQueueFull is returned when the update queue cannot take another job.
var ErrQueueFull = errors.New("session update queue is full")

type updateJob struct {
	ctx    context.Context
	source string
	run    func(ctx context.Context) error
}

// queue applies asynchronous assessment updates one at a time, in
// submission order.
type queue struct {
	mu      sync.RWMutex
	closed  bool
	pending chan updateJob
	done    chan struct{}

	drainTimeout time.Duration
	log          *logger.Logger
}

func newQueue(size int, drainTimeout time.Duration, log *logger.Logger) *queue {
	q := &queue{
		pending:      make(chan updateJob, size),
		done:         make(chan struct{}),
		drainTimeout: drainTimeout,
		log:          logger.OrNop(log),
	}
	go q.processLoop()
	return q
}

func (q *queue) submit(ctx context.Context, source string, run func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.pending <- updateJob{ctx: context.WithoutCancel(ctx), source: source, run: run}:
		return nil
	default:
		q.log.Warn("update dropped, queue full", "source", source)
		return ErrQueueFull
	}
}

func (q *queue) processLoop() {
	defer close(q.done)
	for job := range q.pending {
		if err := job.run(job.ctx); err != nil {
			q.log.Error("queued update failed", "source", job.source, "error", err)
		}
	}
}

// close stops accepting jobs and waits for the queued ones to finish, up to
// the drain timeout. It reports false when the queue was already closed.
func (q *queue) close(ctx context.Context) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.closed = true
	close(q.pending)
	q.mu.Unlock()

	timer := time.NewTimer(q.drainTimeout)
	defer timer.Stop()
	select {
	case <-q.done:
	case <-timer.C:
		q.log.Warn("update queue drain timed out", "pending", len(q.pending))
	case <-ctx.Done():
		q.log.Warn("update queue drain canceled", "pending", len(q.pending))
	}
	return true
}
