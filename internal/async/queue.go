package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/records-pipeline/internal/pipeline"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one pipeline run waiting for a worker.
type Job struct {
	ID          string
	Request     pipeline.Request
	SubmittedAt time.Time
}

// Outcome pairs a job with what its run produced.
type Outcome struct {
	Job    Job
	Result *pipeline.RunResult
	Err    error
}

// Runner executes one pipeline run. *pipeline.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.RunResult, error)
}

// Sink receives every finished run. It is called from worker goroutines.
type Sink interface {
	Handle(ctx context.Context, out Outcome)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, out Outcome)

func (f SinkFunc) Handle(ctx context.Context, out Outcome) { f(ctx, out) }

type Queue interface {
	Enqueue(ctx context.Context, req pipeline.Request) (string, error)
	Shutdown(ctx context.Context)
}
