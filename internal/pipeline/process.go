package pipeline

import (
	"context"

	"github.com/joseph-ayodele/records-pipeline/internal/normalize"
)

// ProcessDocuments runs one pipeline with default orchestrator settings.
func ProcessDocuments(ctx context.Context, gw Gateway, req Request) (*RunResult, error) {
	return NewOrchestrator(gw).Run(ctx, req)
}

// ExtractEntities normalizes the entities of the last container detail the
// run observed. Runs without a completion wait read the container once at
// the end, so entities appear only if processing had already finished.
func ExtractEntities(res *RunResult) normalize.Result {
	if res == nil {
		return normalize.Result{}
	}
	return normalize.Entities(res.Container)
}
