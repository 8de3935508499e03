package pipeline

import (
	"context"

	"github.com/joseph-ayodele/records-pipeline/constants"
	"github.com/joseph-ayodele/records-pipeline/internal/common"
	"github.com/joseph-ayodele/records-pipeline/internal/entity"
	"github.com/joseph-ayodele/records-pipeline/internal/nebuia"
	"github.com/joseph-ayodele/records-pipeline/internal/poll"
)

// awaitEmbedding polls per-document embedding status until every uploaded
// document settles or the embedding timeout passes. It returns the documents
// observed complete; the rest are recorded as skipped.
func (r *run) awaitEmbedding(ctx context.Context) ([]UploadedDocument, error) {
	r.state(constants.StateAwaitingEmbedding)
	statuses := make(map[string]constants.DocumentStatus, len(r.res.Uploaded))

	check := func(ctx context.Context) (poll.Snapshot, error) {
		for _, u := range r.res.Uploaded {
			if statuses[u.DocumentID].IsTerminal() {
				continue
			}
			st, err := r.gw.DocumentStatus(ctx, u.DocumentID)
			if err != nil {
				if ctx.Err() != nil || common.KindOf(err) == common.KindCancelled {
					return poll.Snapshot{}, cancelledOr(ctx, nebuia.OpDocumentStatus, err)
				}
				r.logger.Warn("pipeline.embedding.status_error", "document_id", u.DocumentID, "error", err)
				st = constants.DocumentUnknown
			}
			statuses[u.DocumentID] = st
		}
		return r.embeddingSnapshot(statuses), nil
	}

	p := poll.Poller{
		Phase:    string(constants.StateAwaitingEmbedding),
		Interval: r.req.EmbeddingInterval,
		Timeout:  r.req.EmbeddingTimeout,
		Clock:    r.clock,
		Logger:   r.Orchestrator.logger,
	}
	out := p.Await(ctx, check, r.req.Progress)
	switch out.Outcome {
	case poll.Cancelled:
		return nil, out.Err
	case poll.Failed:
		return nil, out.Err
	case poll.TimedOut:
		r.logger.Warn("pipeline.embedding.timeout", "polls", out.Polls, "done", out.Last.Done, "total", out.Last.Total)
	}

	var ready []UploadedDocument
	for _, u := range r.res.Uploaded {
		st := statuses[u.DocumentID]
		if st == constants.DocumentComplete {
			ready = append(ready, u)
			continue
		}
		if st == "" {
			st = constants.DocumentUnknown
		}
		r.res.skip(SkippedDocument{
			Type:       u.Type,
			Path:       u.Path,
			DocumentID: u.DocumentID,
			Reason:     constants.SkipEmbeddingIncomplete,
			Detail:     "embedding status " + string(st),
		})
	}
	return ready, nil
}

func (r *run) embeddingSnapshot(statuses map[string]constants.DocumentStatus) poll.Snapshot {
	snap := poll.Snapshot{Total: len(r.res.Uploaded), Detail: make(map[string]string, len(r.res.Uploaded)), Terminal: true}
	for _, u := range r.res.Uploaded {
		st := statuses[u.DocumentID]
		snap.Detail[u.Type] = string(st)
		if st == constants.DocumentComplete {
			snap.Done++
		}
		if !st.IsTerminal() {
			snap.Terminal = false
		}
	}
	return snap
}

// awaitCompletion polls the container until the service reports a terminal
// status. A timeout is a normal outcome with status incomplete_timeout.
func (r *run) awaitCompletion(ctx context.Context) error {
	r.state(constants.StateAwaitingCompletion)

	check := func(ctx context.Context) (poll.Snapshot, error) {
		var c *entity.Container
		err := r.read(ctx, func(ctx context.Context) error {
			var err error
			c, err = r.gw.GetContainer(ctx, r.res.ContainerID)
			return err
		})
		if err != nil {
			return poll.Snapshot{}, cancelledOr(ctx, nebuia.OpGetContainer, err)
		}
		r.res.Container = c
		r.res.ContainerStatus = c.Status
		return completionSnapshot(c), nil
	}

	p := poll.Poller{
		Phase:    string(constants.StateAwaitingCompletion),
		Interval: r.req.PollInterval,
		Timeout:  r.req.PollTimeout,
		Clock:    r.clock,
		Logger:   r.Orchestrator.logger,
	}
	out := p.Await(ctx, check, r.req.Progress)
	r.res.Polls = out.Polls
	switch out.Outcome {
	case poll.Cancelled, poll.Failed:
		return out.Err
	case poll.TimedOut:
		r.res.Status = constants.RunIncompleteTimeout
		r.logger.Warn("pipeline.completion.timeout", "polls", out.Polls, "last_status", string(r.res.ContainerStatus))
		return nil
	}

	if r.res.ContainerStatus.IsSuccess() {
		r.res.Status = constants.RunCompleted
		return nil
	}
	r.res.Status = constants.RunProcessingError
	r.res.Error = "record ended with status " + string(r.res.ContainerStatus)
	if msg := r.res.Container.ErrorMessage; msg != "" {
		r.res.Error = msg
	}
	r.logger.Error("pipeline.completion.remote_error", "container_status", string(r.res.ContainerStatus), "error_message", r.res.Error)
	return nil
}

// observeContainer records the container detail once for runs that ended
// without a completion wait. A failed read is logged and leaves the run as is.
func (r *run) observeContainer(ctx context.Context) {
	var c *entity.Container
	err := r.read(ctx, func(ctx context.Context) error {
		var err error
		c, err = r.gw.GetContainer(ctx, r.res.ContainerID)
		return err
	})
	if err != nil {
		r.logger.Warn("pipeline.container.observe_failed", "error", err)
		return
	}
	r.res.Container = c
	r.res.ContainerStatus = c.Status
}

func completionSnapshot(c *entity.Container) poll.Snapshot {
	snap := poll.Snapshot{
		Total:    len(c.Documents),
		Detail:   make(map[string]string, len(c.Documents)+1),
		Terminal: c.Status.IsTerminal(),
		State:    c,
	}
	snap.Detail["container"] = string(c.Status)
	if c.CurrentDocumentID != "" {
		snap.Detail["current_document_id"] = c.CurrentDocumentID
	}
	for _, d := range c.Documents {
		if d.Status != "" {
			snap.Detail[d.Type] = string(d.Status)
		}
		if d.Status == constants.DocumentComplete || len(d.Entities) > 0 {
			snap.Done++
		}
	}
	return snap
}
