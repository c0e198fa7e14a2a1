package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Job represents a queued background task. Jobs sharing a non-empty Key
// coalesce while one of them is still waiting in the buffer.
type Job struct {
	ID       string
	Type     string
	Key      string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// DeadLetterFunc receives jobs that exhausted their retries.
type DeadLetterFunc func(Job, error)

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers      int
	BufferSize   int
	MaxRetries   int
	RetryDelay   time.Duration
	Logger       *zap.Logger
	OnDeadLetter DeadLetterFunc
}

// Stats are cumulative counters since the queue was built.
type Stats struct {
	Processed    uint64
	Failed       uint64
	Retried      uint64
	DeadLettered uint64
	Coalesced    uint64
	Pending      int
}

// ErrQueueFull is returned by TryEnqueue when the buffer has no room.
var ErrQueueFull = errors.New("queue full")

const (
	drainTimeout = 5 * time.Second
	maxBackoff   = 30 * time.Second
)

// Queue is an in-memory job dispatcher with keyed coalescing, capped
// exponential retry and a shutdown drain of buffered jobs.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	log     *zap.SugaredLogger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	pending map[string]struct{}

	processed, failed, retried, dead, coalesced atomic.Uint64
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	cfg.Workers = max(cfg.Workers, 1)
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		log:     cfg.Logger.Sugar().With("queue", name),
		jobs:    make(chan Job, cfg.BufferSize),
		pending: make(map[string]struct{}),
	}
}

// Start launches the workers. Later calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 1; i <= q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.started = true
	q.log.Infow("queue started", "workers", q.cfg.Workers)
}

// Stop cancels workers, lets them drain the buffer and waits for them.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.log.Infow("queue stopped", "processed", q.processed.Load(), "dead_lettered", q.dead.Load())
}

// Started reports whether workers are running.
func (q *Queue) Started() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.started
}

// Enqueue pushes a job, waiting for buffer room.
func (q *Queue) Enqueue(job Job) error {
	return q.push(job, true)
}

// TryEnqueue pushes a job without blocking.
func (q *Queue) TryEnqueue(job Job) error {
	return q.push(job, false)
}

// Stats returns a copy of the queue counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Processed:    q.processed.Load(),
		Failed:       q.failed.Load(),
		Retried:      q.retried.Load(),
		DeadLettered: q.dead.Load(),
		Coalesced:    q.coalesced.Load(),
		Pending:      len(q.jobs),
	}
}

func (q *Queue) push(job Job, wait bool) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return fmt.Errorf("queue %s not started", q.name)
	}
	ctx := q.ctx
	if job.Key != "" {
		if _, dup := q.pending[job.Key]; dup {
			q.mu.Unlock()
			q.coalesced.Add(1)
			return nil
		}
		q.pending[job.Key] = struct{}{}
	}
	q.mu.Unlock()

	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	var err error
	if wait {
		select {
		case <-ctx.Done():
			err = fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
		case q.jobs <- job:
		}
	} else {
		select {
		case <-ctx.Done():
			err = fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
		case q.jobs <- job:
		default:
			err = fmt.Errorf("queue %s: %w", q.name, ErrQueueFull)
		}
	}
	if err != nil {
		q.release(job)
	}
	return err
}

func (q *Queue) release(job Job) {
	if job.Key == "" {
		return
	}
	q.mu.Lock()
	delete(q.pending, job.Key)
	q.mu.Unlock()
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			q.drain(id)
			return
		case job := <-q.jobs:
			q.run(q.ctx, job, true)
		}
	}
}

// drain runs jobs still buffered at shutdown once, without retries.
func (q *Queue) drain(id int) {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case job := <-q.jobs:
			q.run(ctx, job, false)
		default:
			return
		}
	}
}

func (q *Queue) run(ctx context.Context, job Job, retry bool) {
	q.release(job)
	err := q.handler(ctx, job)
	if err == nil {
		q.processed.Add(1)
		return
	}
	q.failed.Add(1)
	if !retry {
		q.deadLetter(job, err)
		return
	}
	q.retry(job, err)
}

// backoff doubles the retry delay per attempt up to maxBackoff.
func (q *Queue) backoff(attempt int) time.Duration {
	delay := q.cfg.RetryDelay
	for i := 1; i < attempt && delay < maxBackoff; i++ {
		delay *= 2
	}
	return min(delay, maxBackoff)
}

func (q *Queue) retry(job Job, cause error) {
	job.Attempt++
	if job.Attempt > q.cfg.MaxRetries {
		q.deadLetter(job, cause)
		return
	}
	delay := q.backoff(job.Attempt)
	q.retried.Add(1)
	q.log.Warnw("job failed, retrying", "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "delay", delay, "error", cause)

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.deadLetter(job, cause)
		case <-timer.C:
			if err := q.Enqueue(job); err != nil {
				q.deadLetter(job, err)
			}
		}
	}()
}

func (q *Queue) deadLetter(job Job, cause error) {
	q.dead.Add(1)
	q.log.Errorw("job dead-lettered", "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", cause)
	if q.cfg.OnDeadLetter != nil {
		q.cfg.OnDeadLetter(job, cause)
	}
}
