package async

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/records-pipeline/internal/pipeline"
)

// RunQueue runs many pipeline requests on a fixed pool of workers. Each run
// owns its own container, so workers share nothing but the gateway.
type RunQueue struct {
	runner  Runner
	sink    Sink
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu       sync.Mutex
	closed   bool
	stopping chan struct{}
	senders  sync.WaitGroup
	// base is cancelled when Shutdown gives up waiting.
	base   context.Context
	cancel context.CancelFunc
}

type Option func(*RunQueue)

func WithWorkers(n int) Option {
	return func(q *RunQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *RunQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

// WithRunTimeout bounds each run end to end. Zero leaves runs unbounded.
func WithRunTimeout(d time.Duration) Option {
	return func(q *RunQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithSink(s Sink) Option {
	return func(q *RunQueue) {
		if s != nil {
			q.sink = s
		}
	}
}

func NewRunQueue(runner Runner, logger *slog.Logger, opts ...Option) *RunQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &RunQueue{
		runner:   runner,
		logger:   logger,
		workers:  2,
		ch:       make(chan Job, 64),
		stopping: make(chan struct{}),
		sink:     SinkFunc(func(context.Context, Outcome) {}),
	}
	q.base, q.cancel = context.WithCancel(context.Background())
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *RunQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("async.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.process(workerID, job)
				}
				q.logger.Info("async.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *RunQueue) process(workerID int, job Job) {
	ctx := q.base
	var cancel context.CancelFunc = func() {}
	if q.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
	}
	defer cancel()

	start := time.Now()
	res, err := q.runner.Run(ctx, job.Request)
	if err != nil {
		q.logger.Error("async.run.failed", "worker_id", workerID, "job_id", job.ID, "config", job.Request.ConfigName, "error", err)
	} else {
		q.logger.Info("async.run.done", "worker_id", workerID, "job_id", job.ID, "status", string(res.Status),
			"elapsed_ms", time.Since(start).Milliseconds())
	}
	q.sink.Handle(ctx, Outcome{Job: job, Result: res, Err: err})
}

// Enqueue schedules req and returns its job id. It blocks while the queue is
// full, until ctx is done or Shutdown starts.
func (q *RunQueue) Enqueue(ctx context.Context, req pipeline.Request) (string, error) {
	job := Job{ID: uuid.New().String(), Request: req, SubmittedAt: time.Now()}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("async.enqueue.rejected", "config", req.ConfigName)
		return "", ErrQueueClosed
	}
	// Shutdown closes ch only after every registered sender has returned.
	q.senders.Add(1)
	q.mu.Unlock()
	defer q.senders.Done()

	select {
	case q.ch <- job:
	default:
		q.logger.Warn("async.queue.full", "job_id", job.ID)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			return "", ctx.Err()
		case <-q.stopping:
			q.logger.Warn("async.enqueue.rejected", "job_id", job.ID, "config", req.ConfigName)
			return "", ErrQueueClosed
		}
	}
	q.logger.Info("async.enqueued", "job_id", job.ID, "config", req.ConfigName, "documents", len(req.Documents))
	return job.ID, nil
}

// Shutdown stops accepting jobs and waits for queued runs to finish. If ctx
// ends first, in-flight runs are cancelled.
func (q *RunQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.stopping)
	q.mu.Unlock()
	q.senders.Wait()
	close(q.ch)

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("async.shutdown.interrupted")
		q.cancel()
		<-done
	case <-done:
		q.logger.Info("async.shutdown.drained")
	}
	q.cancel()
}

var _ Queue = (*RunQueue)(nil)
var _ Runner = (*pipeline.Orchestrator)(nil)
