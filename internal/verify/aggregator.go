package verify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/records-pipeline/internal/common"
	"github.com/joseph-ayodele/records-pipeline/internal/entity"
)

// Verifier checks one document's declared type.
type Verifier interface {
	VerifyDocumentType(ctx context.Context, containerID, documentID string) (*entity.VerificationOutcome, error)
}

// Report is the outcome of verifying a batch.
type Report struct {
	// Order is the input order, which is also the reporting order.
	Order     []string
	Results   map[string]entity.VerificationOutcome
	AllPassed bool
}

// Ordered returns the outcomes in input order.
func (r Report) Ordered() []entity.VerificationOutcome {
	out := make([]entity.VerificationOutcome, 0, len(r.Order))
	for _, id := range r.Order {
		out = append(out, r.Results[id])
	}
	return out
}

// Failed returns the ids whose outcome did not match, in input order.
func (r Report) Failed() []string {
	var out []string
	for _, id := range r.Order {
		if !r.Results[id].Match {
			out = append(out, id)
		}
	}
	return out
}

// Aggregator fans verification out over a bounded number of goroutines.
type Aggregator struct {
	verifier    Verifier
	concurrency int
	logger      *slog.Logger
}

func NewAggregator(v Verifier, concurrency int, logger *slog.Logger) *Aggregator {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{verifier: v, concurrency: concurrency, logger: logger}
}

// Verify checks every document in ids. A rejection for one document becomes a
// failed outcome for that document; a transport failure aborts the batch and
// is returned so the caller can retry.
func (a *Aggregator) Verify(ctx context.Context, containerID string, ids []string) (Report, error) {
	logger := common.LoggerFrom(ctx, a.logger)
	start := time.Now()

	order := dedupe(ids)
	report := Report{Order: order, Results: make(map[string]entity.VerificationOutcome, len(order))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, id := range order {
		id := id
		g.Go(func() error {
			outcome, err := a.verifier.VerifyDocumentType(gctx, containerID, id)
			if err != nil {
				switch common.KindOf(err) {
				case common.KindRemoteUnavailable, common.KindCancelled, common.KindTimeout:
					return err
				}
				logger.Warn("verify.document_error", "document_id", id, "error", err)
				outcome = &entity.VerificationOutcome{Match: false, Error: err.Error()}
			}
			if outcome == nil {
				outcome = &entity.VerificationOutcome{}
			}
			mu.Lock()
			report.Results[id] = *outcome
			mu.Unlock()
			logger.Debug("verify.document_done", "document_id", id, "match", outcome.Match, "type_found", outcome.FoundType)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			err = common.Cancelled("verify", ctx.Err())
		}
		logger.Error("verify.batch_failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return Report{Order: order}, err
	}

	report.AllPassed = true
	for _, id := range order {
		if !report.Results[id].Match {
			report.AllPassed = false
			break
		}
	}
	logger.Info("verify.batch_done",
		"documents", len(order),
		"all_passed", report.AllPassed,
		"failed", len(report.Failed()),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
