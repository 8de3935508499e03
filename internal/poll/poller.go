package poll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/records-pipeline/internal/common"
)

// NoTimeout makes a Poller wait until a terminal state, however long it takes.
const NoTimeout = common.NoTimeout

// Outcome is how a wait ended.
type Outcome int

const (
	Completed Outcome = iota
	TimedOut
	Cancelled
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case TimedOut:
		return "timed_out"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Snapshot is what one evaluation of a Check observed.
type Snapshot struct {
	Done     int
	Total    int
	Detail   map[string]string
	Terminal bool
	// State is the raw observation, handed back to the caller in Result.Last.
	State any
}

// Check re-queries remote state once. A returned error ends the wait as Failed.
type Check func(ctx context.Context) (Snapshot, error)

// Result of Await.
type Result struct {
	Outcome Outcome
	Polls   int
	Elapsed time.Duration
	// Last is the most recent snapshot, zero if the check never ran.
	Last Snapshot
	Err  error
}

// Poller evaluates a Check at a fixed interval until it reports a terminal
// state, the timeout elapses, or the context is cancelled.
type Poller struct {
	Phase    string
	Interval time.Duration
	// Timeout must be positive, or NoTimeout to poll until a terminal state.
	// A zero Timeout is rejected.
	Timeout time.Duration
	Clock   Clock
	Logger  *slog.Logger
}

// Await runs the wait loop. The check is never evaluated once the timeout has
// passed, and never more than once per interval.
func (p Poller) Await(ctx context.Context, check Check, reporter ProgressReporter) Result {
	clock := p.Clock
	if clock == nil {
		clock = RealClock
	}
	if reporter == nil {
		reporter = NoProgress
	}
	logger := common.LoggerFrom(ctx, p.Logger).With("phase", p.Phase)
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}

	start := clock.Now()
	var res Result
	indefinite := p.Timeout < 0
	finish := func(o Outcome, err error) Result {
		res.Outcome = o
		res.Err = err
		res.Elapsed = clock.Now().Sub(start)
		logger.Info("poll.finished", "outcome", o.String(), "polls", res.Polls, "elapsed_ms", res.Elapsed.Milliseconds())
		return res
	}

	if p.Timeout == 0 {
		return finish(Failed, common.Validation("", p.Phase+": poll timeout is unset; use NoTimeout to wait indefinitely", nil))
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(Cancelled, common.Cancelled(p.Phase, err))
		}
		elapsed := clock.Now().Sub(start)
		if !indefinite && elapsed >= p.Timeout {
			return finish(TimedOut, nil)
		}

		snap, err := check(ctx)
		res.Polls++
		if err != nil {
			if ctx.Err() != nil || common.KindOf(err) == common.KindCancelled {
				return finish(Cancelled, common.Cancelled(p.Phase, err))
			}
			logger.Warn("poll.check_error", "attempt", res.Polls, "error", err)
			return finish(Failed, err)
		}
		res.Last = snap

		Report(logger, reporter, Progress{
			Phase:   p.Phase,
			Done:    snap.Done,
			Total:   snap.Total,
			Detail:  snap.Detail,
			Elapsed: clock.Now().Sub(start),
			Attempt: res.Polls,
		})

		if snap.Terminal {
			return finish(Completed, nil)
		}

		wait := interval
		if !indefinite {
			remaining := p.Timeout - clock.Now().Sub(start)
			if remaining <= 0 {
				return finish(TimedOut, nil)
			}
			if remaining < wait {
				wait = remaining
			}
		}
		logger.Debug("poll.sleep", "attempt", res.Polls, "done", snap.Done, "total", snap.Total, "sleep_ms", wait.Milliseconds())
		select {
		case <-ctx.Done():
			return finish(Cancelled, common.Cancelled(p.Phase, ctx.Err()))
		case <-clock.After(wait):
		}
	}
}

// Report hands pr to reporter. A panicking reporter is logged and otherwise
// ignored.
func Report(logger *slog.Logger, reporter ProgressReporter, pr Progress) {
	if reporter == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			if logger == nil {
				logger = slog.Default()
			}
			logger.Warn("poll.progress.panic", "panic", fmt.Sprint(r), "phase", pr.Phase, "attempt", pr.Attempt)
		}
	}()
	reporter.OnProgress(pr)
}
