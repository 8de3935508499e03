package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/records-pipeline/constants"
	"github.com/joseph-ayodele/records-pipeline/internal/common"
	"github.com/joseph-ayodele/records-pipeline/internal/poll"
)

// Orchestrator drives runs against a Gateway. It keeps no per-run state and
// may serve concurrent runs.
type Orchestrator struct {
	gw          Gateway
	logger      *slog.Logger
	clock       poll.Clock
	concurrency int
	retry       common.RetryPolicy
	defaults    Defaults
	strictPDF   bool
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock swaps the time source used by the wait phases.
func WithClock(c poll.Clock) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithConcurrency bounds parallel uploads and verifications.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithRetry sets the policy for idempotent reads that hit a transport failure.
func WithRetry(p common.RetryPolicy) Option {
	return func(o *Orchestrator) { o.retry = p }
}

func WithDefaults(d Defaults) Option {
	return func(o *Orchestrator) { o.defaults = d }
}

// WithStrictPDF enables structural PDF validation while validating inputs.
func WithStrictPDF(strict bool) Option {
	return func(o *Orchestrator) { o.strictPDF = strict }
}

// WithConfig applies the pipeline section of the app config.
func WithConfig(cfg common.PipelineConfig) Option {
	return func(o *Orchestrator) {
		if cfg.Concurrency > 0 {
			o.concurrency = cfg.Concurrency
		}
		o.retry = common.RetryPolicy{Attempts: cfg.RetryAttempts, Backoff: cfg.RetryBackoff}
		o.defaults = Defaults{
			EmbeddingInterval: cfg.EmbeddingInterval,
			EmbeddingTimeout:  cfg.EmbeddingTimeout,
			PollInterval:      cfg.PollInterval,
			PollTimeout:       cfg.PollTimeout,
		}
	}
}

func NewOrchestrator(gw Gateway, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gw:          gw,
		logger:      slog.Default(),
		clock:       poll.RealClock,
		concurrency: 4,
		retry:       common.RetryPolicy{Attempts: 3, Backoff: 2 * time.Second},
		defaults:    DefaultSettings,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run carries the state of one Run call. logger is scoped to the run;
// the poller and aggregator get the base logger and scope it from ctx.
type run struct {
	*Orchestrator
	req    Request
	res    *RunResult
	logger *slog.Logger
}

// Run executes the pipeline. The result is never nil: on a fatal error it
// holds whatever was already committed remotely, and the error is typed.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*RunResult, error) {
	req = req.withDefaults(o.defaults)
	res := &RunResult{
		RunID:      uuid.New().String(),
		ConfigName: req.ConfigName,
		StartedAt:  o.clock.Now(),
	}
	ctx = common.WithRunID(ctx, res.RunID)
	r := &run{Orchestrator: o, req: req, res: res, logger: common.LoggerFrom(ctx, o.logger)}
	r.logger.Info("pipeline.run.started", "config", req.ConfigName, "documents", len(req.Documents), "wait", req.Wait, "policy", string(req.Policy))

	err := r.execute(ctx)
	if err == nil && res.Container == nil && res.ContainerID != "" {
		r.observeContainer(common.WithContainerID(ctx, res.ContainerID))
	}
	res.FinishedAt = o.clock.Now()
	elapsed := res.FinishedAt.Sub(res.StartedAt).Milliseconds()
	if err != nil {
		r.fail(err)
		r.logger.Error("pipeline.run.failed",
			"status", string(res.Status),
			"failed_at", string(res.FailedAt),
			"container_id", res.ContainerID,
			"error", err,
			"elapsed_ms", elapsed,
		)
		return res, err
	}
	res.enter(constants.StateDone)
	r.logger.Info("pipeline.run.done",
		"status", string(res.Status),
		"container_id", res.ContainerID,
		"job_id", res.JobID,
		"uploaded", len(res.Uploaded),
		"skipped", len(res.Skipped),
		"elapsed_ms", elapsed,
	)
	return res, nil
}

func (r *run) fail(err error) {
	r.res.FailedAt = r.res.State
	r.res.Error = err.Error()
	r.res.Status = constants.RunFailed
	if common.KindOf(err) == common.KindCancelled {
		r.res.Status = constants.RunCancelled
	}
	r.res.enter(constants.StateFailed)
}

func (r *run) execute(ctx context.Context) error {
	valid, err := r.validate(ctx)
	if err != nil {
		return err
	}

	if err := r.createContainer(ctx); err != nil {
		return err
	}
	ctx = common.WithContainerID(ctx, r.res.ContainerID)
	r.logger = r.logger.With("container_id", r.res.ContainerID)

	if err := r.upload(ctx, valid); err != nil {
		return err
	}

	ready, err := r.awaitEmbedding(ctx)
	if err != nil {
		return err
	}
	if len(ready) == 0 {
		r.res.Status = constants.RunEmbeddingIncomplete
		return nil
	}

	if err := r.verify(ctx, ready); err != nil {
		return err
	}

	switch {
	case r.req.Policy == constants.ProcessAlways:
	case r.req.Policy == constants.ProcessNever, !r.res.AllVerified:
		r.res.enter(constants.StateSkipped)
		r.res.Status = constants.RunProcessingSkipped
		if !r.res.AllVerified {
			r.res.Status = constants.RunVerificationFailed
		}
		r.logger.Info("pipeline.job.skipped", "all_verified", r.res.AllVerified, "policy", string(r.req.Policy))
		return nil
	}

	created, err := r.createJob(ctx)
	if err != nil || !created {
		return err
	}
	if !r.req.Wait {
		return nil
	}
	return r.awaitCompletion(ctx)
}

// state enters s and reports it to the caller's progress reporter.
func (r *run) state(s constants.PipelineState) {
	r.res.enter(s)
	r.logger.Debug("pipeline.state", "state", string(s))
	poll.Report(r.logger, r.req.Progress, poll.Progress{
		Phase:   string(s),
		Elapsed: r.clock.Now().Sub(r.res.StartedAt),
	})
}

// read runs an idempotent gateway read under the retry policy.
func (r *run) read(ctx context.Context, op func(ctx context.Context) error) error {
	return r.retry.Do(ctx, op)
}

func cancelledOr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil && common.KindOf(err) != common.KindCancelled {
		return common.Cancelled(op, errors.Join(ctx.Err(), err))
	}
	return err
}
