package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/records-pipeline/constants"
	"github.com/joseph-ayodele/records-pipeline/internal/common"
	"github.com/joseph-ayodele/records-pipeline/internal/entity"
	"github.com/joseph-ayodele/records-pipeline/internal/nebuia"
	"github.com/joseph-ayodele/records-pipeline/internal/verify"
)

type candidate struct {
	Type string
	Path string
}

// validate drops unusable inputs before any mutating remote call.
func (r *run) validate(ctx context.Context) ([]candidate, error) {
	r.state(constants.StateValidating)
	if r.req.ConfigName == "" {
		e := common.Validation(common.CodeEmptyIdentifier, "configuration name is required", common.ErrEmptyIdentifier)
		e.Op = "validate"
		return nil, e
	}

	allowed, err := r.allowedTypes(ctx)
	if err != nil {
		return nil, err
	}

	var valid []candidate
	for _, t := range r.req.types() {
		path := r.req.Documents[t]
		if allowed != nil {
			if _, ok := allowed[t]; !ok {
				r.res.skip(SkippedDocument{Type: t, Path: path, Reason: constants.SkipUnknownType, Detail: common.ErrUnknownType.Error()})
				continue
			}
		}
		pages, err := nebuia.CheckPDF(path, r.strictPDF)
		if err != nil {
			r.res.skip(SkippedDocument{Type: t, Path: path, Reason: skipReasonFor(err), Detail: err.Error()})
			continue
		}
		r.logger.Debug("pipeline.validate.ok", "document_type", t, "path", path, "pages", pages)
		valid = append(valid, candidate{Type: t, Path: path})
	}

	for _, s := range r.res.Skipped {
		r.logger.Warn("pipeline.validate.dropped", "document_type", s.Type, "path", s.Path, "reason", string(s.Reason))
	}
	if len(valid) == 0 {
		return nil, common.Validation(common.CodeNoValidDocuments,
			fmt.Sprintf("none of %d requested documents is usable", len(r.req.Documents)), nil)
	}
	return valid, nil
}

func skipReasonFor(err error) constants.SkipReason {
	switch {
	case errors.Is(err, common.ErrFileNotFound):
		return constants.SkipFileNotFound
	case errors.Is(err, common.ErrNotPDF):
		return constants.SkipNotPDF
	}
	return constants.SkipUnreadable
}

// allowedTypes returns the permitted type set, or nil when nothing restricts it.
func (r *run) allowedTypes(ctx context.Context) (map[string]struct{}, error) {
	types := r.req.AllowedTypes
	if types == nil {
		var cfg *entity.Configuration
		err := r.read(ctx, func(ctx context.Context) error {
			var err error
			cfg, err = r.gw.GetConfiguration(ctx, r.req.ConfigName)
			return err
		})
		if err != nil {
			return nil, cancelledOr(ctx, nebuia.OpGetConfiguration, err)
		}
		types = cfg.DocumentTypes()
		if len(types) == 0 {
			r.logger.Warn("pipeline.validate.no_type_enumeration", "config", r.req.ConfigName)
			return nil, nil
		}
	}
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set, nil
}

func (r *run) createContainer(ctx context.Context) error {
	r.state(constants.StateCreatingContainer)
	id, err := r.gw.CreateContainer(ctx, entity.CreateContainerRequest{
		ConfigurationRef: r.req.ConfigName,
		WithEmail:        r.req.WithEmail,
		Email:            r.req.Email,
		FlowName:         r.req.FlowName,
	})
	if err != nil {
		err = cancelledOr(ctx, nebuia.OpCreateContainer, err)
		if common.KindOf(err) == common.KindCancelled {
			return err
		}
		var e *common.Error
		if errors.As(err, &e) && e.Code == "" {
			cp := *e
			cp.Code = common.CodeContainerCreateFailed
			return &cp
		}
		return err
	}
	r.res.ContainerID = id
	return nil
}

type uploadSlot struct {
	receipt *entity.UploadReceipt
	err     error
}

// upload sends every valid document, at most concurrency at a time. Individual
// failures are recorded; only a total failure is fatal.
func (r *run) upload(ctx context.Context, docs []candidate) error {
	r.state(constants.StateUploading)
	slots := make([]uploadSlot, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, d := range docs {
		i, d := i, d
		g.Go(func() error {
			rec, err := r.gw.UploadDocument(gctx, entity.UploadRequest{
				ContainerID:     r.res.ContainerID,
				DocumentType:    d.Type,
				Path:            d.Path,
				ProcessDocument: r.req.ProcessOnUpload,
			})
			slots[i] = uploadSlot{receipt: rec, err: err}
			if err != nil && ctx.Err() != nil {
				return common.Cancelled(nebuia.OpUploadDocument, ctx.Err())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.collectUploads(docs, slots)
		return err
	}

	r.collectUploads(docs, slots)
	if err := r.resolveMissingIDs(ctx); err != nil {
		return err
	}
	if len(r.res.Uploaded) == 0 {
		return allUploadsFailed(len(docs), slots)
	}
	return nil
}

// allUploadsFailed takes its kind from the first upload error so callers can
// still tell a retryable outage from a refusal.
func allUploadsFailed(n int, slots []uploadSlot) error {
	kind := common.KindRemoteUnavailable
	var errs []error
	for _, s := range slots {
		if s.err == nil {
			continue
		}
		if len(errs) == 0 {
			kind = common.KindOf(s.err)
		}
		errs = append(errs, s.err)
	}
	return common.NewError(kind, common.CodeAllUploadsFailed,
		fmt.Sprintf("none of %d uploads produced a usable document", n), errors.Join(errs...))
}

func (r *run) collectUploads(docs []candidate, slots []uploadSlot) {
	for i, d := range docs {
		s := slots[i]
		switch {
		case s.err != nil:
			r.logger.Warn("pipeline.upload.failed", "document_type", d.Type, "path", d.Path, "error", s.err)
			r.res.skip(SkippedDocument{Type: d.Type, Path: d.Path, Reason: constants.SkipUploadFailed, Detail: s.err.Error()})
		case s.receipt != nil:
			r.res.Uploaded = append(r.res.Uploaded, UploadedDocument{
				Type:       d.Type,
				Path:       d.Path,
				DocumentID: s.receipt.DocumentID,
				CreatedAt:  s.receipt.CreatedAt,
			})
		}
	}
}

// resolveMissingIDs fills document ids the upload response left out by
// matching the container's documents by type.
func (r *run) resolveMissingIDs(ctx context.Context) error {
	missing := 0
	claimed := map[string]bool{}
	for _, u := range r.res.Uploaded {
		if u.DocumentID == "" {
			missing++
		} else {
			claimed[u.DocumentID] = true
		}
	}
	if missing == 0 {
		return nil
	}

	var detail *entity.Container
	err := r.read(ctx, func(ctx context.Context) error {
		var err error
		detail, err = r.gw.GetContainer(ctx, r.res.ContainerID)
		return err
	})
	if err != nil {
		if err = cancelledOr(ctx, nebuia.OpGetContainer, err); common.KindOf(err) == common.KindCancelled {
			return err
		}
		r.logger.Warn("pipeline.upload.id_lookup_failed", "error", err)
	}

	kept := r.res.Uploaded[:0]
	for _, u := range r.res.Uploaded {
		if u.DocumentID == "" && detail != nil {
			for _, d := range detail.Documents {
				if d.Type == u.Type && d.ID != "" && !claimed[d.ID] {
					u.DocumentID = d.ID
					claimed[d.ID] = true
					break
				}
			}
		}
		if u.DocumentID == "" {
			r.res.skip(SkippedDocument{Type: u.Type, Path: u.Path, Reason: constants.SkipMissingDocumentID})
			continue
		}
		kept = append(kept, u)
	}
	r.res.Uploaded = kept
	return nil
}

// verify runs the aggregator over the embedded documents, retrying the whole
// batch on transport failure since verification is a read.
func (r *run) verify(ctx context.Context, ready []UploadedDocument) error {
	r.state(constants.StateVerifying)
	ids := make([]string, len(ready))
	for i, u := range ready {
		ids[i] = u.DocumentID
	}

	agg := verify.NewAggregator(r.gw, r.concurrency, r.Orchestrator.logger)
	var report verify.Report
	err := r.read(ctx, func(ctx context.Context) error {
		var err error
		report, err = agg.Verify(ctx, r.res.ContainerID, ids)
		return err
	})
	if err != nil {
		return cancelledOr(ctx, nebuia.OpVerifyDocument, err)
	}

	r.res.Verification = make([]DocumentVerification, 0, len(ready))
	for _, u := range ready {
		r.res.Verification = append(r.res.Verification, DocumentVerification{
			Type:       u.Type,
			DocumentID: u.DocumentID,
			Outcome:    report.Results[u.DocumentID],
		})
	}
	r.res.AllVerified = report.AllPassed
	return nil
}

// createJob launches processing. It reports false when the service declined,
// which ends the run normally with status job_rejected.
func (r *run) createJob(ctx context.Context) (bool, error) {
	r.state(constants.StateCreatingJob)
	job, err := r.gw.CreateJob(ctx, r.res.ContainerID)
	if err != nil {
		err = cancelledOr(ctx, nebuia.OpCreateJob, err)
		if common.KindOf(err) == common.KindRemoteRejected {
			r.res.Status = constants.RunJobRejected
			r.res.JobMessage = messageOf(err)
			r.logger.Warn("pipeline.job.rejected", "error", err)
			return false, nil
		}
		return false, err
	}

	r.res.JobID = job.ID
	r.res.JobStatus = job.Status
	r.res.JobMessage = job.Message
	r.res.MissingDocuments = job.MissingDocuments
	if !job.Status.Accepted() {
		r.res.Status = constants.RunJobRejected
		r.logger.Warn("pipeline.job.not_accepted", "job_status", string(job.Status), "missing", job.MissingDocuments, "message", job.Message)
		return false, nil
	}
	r.res.Status = constants.RunJobCreated
	r.logger.Info("pipeline.job.created", "job_id", job.ID, "job_status", string(job.Status))
	return true, nil
}

func messageOf(err error) string {
	var e *common.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
