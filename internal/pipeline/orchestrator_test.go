package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/records-pipeline/constants"
	"github.com/joseph-ayodele/records-pipeline/internal/common"
	"github.com/joseph-ayodele/records-pipeline/internal/entity"
	"github.com/joseph-ayodele/records-pipeline/internal/poll"
	"github.com/joseph-ayodele/records-pipeline/internal/poll/polltest"
)

type fakeGateway struct {
	mu sync.Mutex

	types        []string
	verdicts     map[string]bool // by document type
	uploadErr    map[string]error
	omitIDs      bool
	embedAfter   int // document status polls before "complete"
	neverEmbed   map[string]bool
	finalStatus  constants.ContainerStatus
	finishAfter  int // container polls before finalStatus; <0 never
	jobStatus    constants.JobStatus
	jobErr       error
	detailErrs   []error
	createCalled int
	errorMessage string
	uploadDelay  time.Duration

	docs           []entity.Document
	statusPolls    map[string]int
	containerGets  int
	jobCreated     bool
	onGetContainer func()
	onStatus       func(polls int)
	inFlight       int
	maxInFlight    int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		types:       []string{"ine", "proof_of_address", "statement"},
		verdicts:    map[string]bool{},
		uploadErr:   map[string]error{},
		neverEmbed:  map[string]bool{},
		finalStatus: constants.ContainerCompleted,
		jobStatus:   constants.JobCreated,
		statusPolls: map[string]int{},
	}
}

func (g *fakeGateway) GetConfiguration(_ context.Context, name string) (*entity.Configuration, error) {
	cfg := &entity.Configuration{Name: name, Documents: map[string]entity.DocumentTypeSpec{}}
	for _, t := range g.types {
		cfg.Documents[t] = entity.DocumentTypeSpec{Required: true}
	}
	return cfg, nil
}

func (g *fakeGateway) CreateContainer(_ context.Context, req entity.CreateContainerRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalled++
	return "rec-1", nil
}

func (g *fakeGateway) UploadDocument(_ context.Context, req entity.UploadRequest) (*entity.UploadReceipt, error) {
	g.mu.Lock()
	g.inFlight++
	g.maxInFlight = max(g.maxInFlight, g.inFlight)
	g.mu.Unlock()
	time.Sleep(g.uploadDelay)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight--
	if err := g.uploadErr[req.DocumentType]; err != nil {
		return nil, err
	}
	id := "doc-" + req.DocumentType
	g.docs = append(g.docs, entity.Document{ID: id, Type: req.DocumentType, Status: constants.DocumentWaiting})
	rec := &entity.UploadReceipt{DocumentID: id, DocumentType: req.DocumentType}
	if g.omitIDs {
		rec.DocumentID = ""
	}
	return rec, nil
}

func (g *fakeGateway) GetContainer(_ context.Context, id string) (*entity.Container, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.onGetContainer != nil {
		g.onGetContainer()
	}
	if len(g.detailErrs) > 0 {
		err := g.detailErrs[0]
		g.detailErrs = g.detailErrs[1:]
		return nil, err
	}
	status := constants.ContainerWaiting
	if g.jobCreated {
		g.containerGets++
		status = constants.ContainerProcessing
		if g.finishAfter >= 0 && g.containerGets > g.finishAfter {
			status = g.finalStatus
		}
	}
	c := &entity.Container{ID: id, Status: status}
	if status == constants.ContainerError {
		c.ErrorMessage = g.errorMessage
	}
	for _, d := range g.docs {
		if status.IsSuccess() {
			d.Status = constants.DocumentComplete
			d.Entities = []entity.ExtractedEntity{{Query: "q", Structure: map[string]any{"type": d.Type}}}
		}
		c.Documents = append(c.Documents, d)
	}
	return c, nil
}

func (g *fakeGateway) DocumentStatus(_ context.Context, id string) (constants.DocumentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusPolls[id]++
	if g.onStatus != nil {
		g.onStatus(g.statusPolls[id])
	}
	for _, d := range g.docs {
		if d.ID == id && g.neverEmbed[d.Type] {
			return constants.DocumentWaiting, nil
		}
	}
	if g.statusPolls[id] > g.embedAfter {
		return constants.DocumentComplete, nil
	}
	return constants.DocumentProcessing, nil
}

func (g *fakeGateway) VerifyDocumentType(_ context.Context, _, id string) (*entity.VerificationOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, d := range g.docs {
		if d.ID != id {
			continue
		}
		ok, set := g.verdicts[d.Type]
		if !set || ok {
			return &entity.VerificationOutcome{Match: true}, nil
		}
		return &entity.VerificationOutcome{Match: false, FoundType: "other", Points: []string{"layout differs"}}, nil
	}
	return nil, common.Rejected("verify_document", 404, "unknown document")
}

func (g *fakeGateway) CreateJob(_ context.Context, _ string) (*entity.ProcessingJob, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.jobErr != nil {
		return nil, g.jobErr
	}
	job := &entity.ProcessingJob{ID: "job-1", Status: g.jobStatus}
	if g.jobStatus == constants.JobMissingDocuments {
		job.ID = ""
		job.MissingDocuments = []string{"statement"}
	}
	g.jobCreated = job.Status.Accepted()
	return job, nil
}

func writePDFs(t *testing.T, types ...string) map[string]string {
	t.Helper()
	dir := t.TempDir()
	out := map[string]string{}
	for _, ty := range types {
		p := filepath.Join(dir, ty+".pdf")
		if err := os.WriteFile(p, []byte("%PDF-1.7\n1 0 obj\n%%EOF\n"), 0o600); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
		out[ty] = p
	}
	return out
}

func newTestOrchestrator(g Gateway, clock poll.Clock) *Orchestrator {
	return NewOrchestrator(g,
		WithClock(clock),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRetry(common.RetryPolicy{Attempts: 3}),
		WithConcurrency(2),
	)
}

func TestRunBothVerifiedCreatesJob(t *testing.T) {
	g := newFakeGateway()
	o := newTestOrchestrator(g, polltest.NewClock())

	res, err := o.Run(context.Background(), Request{
		ConfigName: "kyc",
		Documents:  writePDFs(t, "ine", "proof_of_address"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.JobID == "" || res.Status != constants.RunJobCreated {
		t.Fatalf("expected a created job, got status=%s job=%q", res.Status, res.JobID)
	}
	if !res.AllVerified || len(res.Verification) != 2 || res.State != constants.StateDone {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Verification[0].Type != "ine" || res.Verification[1].Type != "proof_of_address" {
		t.Fatalf("verification order %+v", res.Verification)
	}
}

func TestRunOneMismatchStopsBeforeJob(t *testing.T) {
	g := newFakeGateway()
	g.verdicts["proof_of_address"] = false
	o := newTestOrchestrator(g, polltest.NewClock())

	res, err := o.Run(context.Background(), Request{
		ConfigName: "kyc",
		Documents:  writePDFs(t, "ine", "proof_of_address"),
		Policy:     constants.ProcessOnPass,
	})
	if err != nil {
		t.Fatalf("verification failure must not be an error: %v", err)
	}
	if res.Status != constants.RunVerificationFailed || res.JobID != "" || g.jobCreated {
		t.Fatalf("status=%s job=%q", res.Status, res.JobID)
	}
	if len(res.Verification) != 2 {
		t.Fatalf("want both outcomes, got %+v", res.Verification)
	}
	bad, ok := res.Outcome("doc-proof_of_address")
	if !ok || bad.Match || bad.FoundType != "other" {
		t.Fatalf("mismatch outcome %+v", bad)
	}
	if res.States[len(res.States)-2] != constants.StateSkipped {
		t.Fatalf("states %v", res.States)
	}
}

func TestRunForcedProcessingIgnoresVerification(t *testing.T) {
	g := newFakeGateway()
	g.verdicts["ine"] = false
	o := newTestOrchestrator(g, polltest.NewClock())

	res, err := o.Run(context.Background(), Request{ConfigName: "kyc", Documents: writePDFs(t, "ine"), Policy: constants.ProcessAlways})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.JobID == "" || res.AllVerified {
		t.Fatalf("got %+v", res)
	}
}

func TestRunNeverPolicySkipsProcessing(t *testing.T) {
	g := newFakeGateway()
	o := newTestOrchestrator(g, polltest.NewClock())

	res, err := o.Run(context.Background(), Request{ConfigName: "kyc", Documents: writePDFs(t, "ine"), Policy: constants.ProcessNever})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != constants.RunProcessingSkipped || g.jobCreated {
		t.Fatalf("status %s", res.Status)
	}
}

func TestRunCompletionTimeout(t *testing.T) {
	g := newFakeGateway()
	g.finishAfter = -1
	clock := polltest.NewClock()
	o := newTestOrchestrator(g, clock)

	res, err := o.Run(context.Background(), Request{
		ConfigName:   "kyc",
		Documents:    writePDFs(t, "ine", "proof_of_address"),
		Wait:         true,
		PollInterval: time.Second,
		PollTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != constants.RunIncompleteTimeout {
		t.Fatalf("status %s", res.Status)
	}
	if g.containerGets < 5 || g.containerGets > 6 || res.Polls != g.containerGets {
		t.Fatalf("performed %d polls (result says %d)", g.containerGets, res.Polls)
	}
	if res.ContainerStatus != constants.ContainerProcessing || res.JobID == "" {
		t.Fatalf("last observed state lost: %+v", res)
	}
}

func TestRunWaitsForCompletionAndExtracts(t *testing.T) {
	g := newFakeGateway()
	g.finishAfter = 2
	g.embedAfter = 1
	var phases []string
	o := newTestOrchestrator(g, polltest.NewClock())

	res, err := o.Run(context.Background(), Request{
		ConfigName: "kyc",
		Documents:  writePDFs(t, "ine", "statement"),
		Wait:       true,
		Progress:   poll.ProgressFunc(func(p poll.Progress) { phases = append(phases, p.Phase) }),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != constants.RunCompleted || res.Polls != 3 {
		t.Fatalf("status=%s polls=%d", res.Status, res.Polls)
	}
	ents := ExtractEntities(res)
	if len(ents) != 2 || ents.Records("ine")[0]["type"] != "ine" {
		t.Fatalf("entities %v", ents)
	}
	if len(phases) == 0 || phases[0] != string(constants.StateValidating) {
		t.Fatalf("progress phases %v", phases)
	}
}

func TestRunRemoteErrorStatusIsProcessingError(t *testing.T) {
	g := newFakeGateway()
	g.finalStatus = constants.ContainerError
	g.errorMessage = "ocr failed on page 2"
	o := newTestOrchestrator(g, polltest.NewClock())

	res, err := o.Run(context.Background(), Request{ConfigName: "kyc", Documents: writePDFs(t, "ine"), Wait: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != constants.RunProcessingError {
		t.Fatalf("status %s", res.Status)
	}
	if res.Error != "ocr failed on page 2" {
		t.Fatalf("remote error message lost: %q", res.Error)
	}
}

func TestRunWithoutWaitRecordsLastContainerState(t *testing.T) {
	g := newFakeGateway()
	g.finishAfter = 0
	res, err := newTestOrchestrator(g, polltest.NewClock()).Run(context.Background(), Request{
		ConfigName: "kyc",
		Documents:  writePDFs(t, "ine"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != constants.RunJobCreated || res.Polls != 0 {
		t.Fatalf("status=%s polls=%d", res.Status, res.Polls)
	}
	if res.ContainerStatus != constants.ContainerCompleted || res.Container == nil {
		t.Fatalf("container state not recorded: %q %v", res.ContainerStatus, res.Container)
	}
	if ents := ExtractEntities(res); len(ents) != 1 || ents.Records("ine")[0]["type"] != "ine" {
		t.Fatalf("entities %v", ents)
	}
}

func TestRunEndsNormallyWhenLastContainerReadFails(t *testing.T) {
	g := newFakeGateway()
	g.verdicts["ine"] = false
	down := common.Unavailable("get_container", 503, "down", nil)
	g.detailErrs = []error{down, down, down}
	res, err := newTestOrchestrator(g, polltest.NewClock()).Run(context.Background(), Request{
		ConfigName: "kyc",
		Documents:  writePDFs(t, "ine"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != constants.RunVerificationFailed || res.Container != nil || res.ContainerStatus != "" {
		t.Fatalf("got %+v", res)
	}
}

func TestValidationDropsExactlyInvalidEntries(t *testing.T) {
	g := newFakeGateway()
	docs := writePDFs(t, "ine")
	dir := t.TempDir()
	notPDF := filepath.Join(dir, "statement.pdf")
	if err := os.WriteFile(notPDF, []byte("PK\x03\x04"), 0o600); err != nil {
		t.Fatal(err)
	}
	docs["statement"] = notPDF
	docs["proof_of_address"] = filepath.Join(dir, "missing.pdf")
	docs["passport"] = docs["ine"]

	res, err := newTestOrchestrator(g, polltest.NewClock()).Run(context.Background(), Request{ConfigName: "kyc", Documents: docs})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	reasons := map[string]constants.SkipReason{}
	for _, s := range res.Skipped {
		reasons[s.Type] = s.Reason
	}
	want := map[string]constants.SkipReason{
		"statement":        constants.SkipNotPDF,
		"proof_of_address": constants.SkipFileNotFound,
		"passport":         constants.SkipUnknownType,
	}
	for ty, reason := range want {
		if reasons[ty] != reason {
			t.Fatalf("%s: reason %q, want %q (all %v)", ty, reasons[ty], reason, reasons)
		}
	}
	if len(res.Uploaded) != 1 || res.Uploaded[0].Type != "ine" {
		t.Fatalf("uploaded %+v", res.Uploaded)
	}
}

func TestNoValidDocumentsIsFatalBeforeRemoteCalls(t *testing.T) {
	g := newFakeGateway()
	res, err := newTestOrchestrator(g, polltest.NewClock()).Run(context.Background(), Request{
		ConfigName: "kyc",
		Documents:  map[string]string{"ine": "/does/not/exist.pdf"},
	})
	if common.CodeOf(err) != common.CodeNoValidDocuments || common.KindOf(err) != common.KindValidation {
		t.Fatalf("err = %v", err)
	}
	if res == nil || res.Status != constants.RunFailed || res.FailedAt != constants.StateValidating {
		t.Fatalf("result %+v", res)
	}
	if g.createCalled != 0 {
		t.Fatal("container created despite no valid documents")
	}
}

func TestUploadFailuresArePartial(t *testing.T) {
	g := newFakeGateway()
	g.uploadErr["statement"] = common.Rejected("upload_document", 400, "type not allowed")
	res, err := newTestOrchestrator(g, polltest.NewClock()).Run(context.Background(), Request{
		ConfigName: "kyc",
		Documents:  writePDFs(t, "ine", "statement"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Uploaded) != 1 || len(res.Skipped) != 1 || res.Skipped[0].Reason != constants.SkipUploadFailed {
		t.Fatalf("uploaded=%+v skipped=%+v", res.Uploaded, res.Skipped)
	}
}

func TestAllUploadsFailedKeepsContainer(t *testing.T) {
	g := newFakeGateway()
	g.uploadErr["ine"] = common.Unavailable("upload_document", 503, "down", nil)
	res, err := newTestOrchestrator(g, polltest.NewClock()).Run(context.Background(), Request{
		ConfigName: "kyc",
		Documents:  writePDFs(t, "ine"),
	})
	if common.CodeOf(err) != common.CodeAllUploadsFailed || !common.IsRetryable(err) {
		t.Fatalf("err = %v", err)
	}
	if res.ContainerID != "rec-1" || res.FailedAt != constants.StateUploading {
		t.Fatalf("partial state lost: %+v", res)
	}
}

func TestMissingDocumentIDsResolvedFromContainer(t *testing.T) {
	g := newFakeGateway()
	g.omitIDs = true
	res, err := newTestOrchestrator(g, polltest.NewClock()).Run(context.Background(), Request{
		ConfigName: "kyc",
		Documents:  writePDFs(t, "ine", "statement"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, u := range res.Uploaded {
		if u.DocumentID != "doc-"+u.Type {
			t.Fatalf("id not resolved: %+v", u)
		}
	}
}

func TestEmbeddingTimeoutSkipsUnreadyDocuments(t *testing.T) {
	g := newFakeGateway()
	g.neverEmbed["statement"] = true
	res, err := newTestOrchestrator(g, polltest.NewClock()).Run(context.Background(), Request{
		ConfigName:        "kyc",
		Documents:         writePDFs(t, "ine", "statement"),
		EmbeddingInterval: time.Second,
		EmbeddingTimeout:  3 * time.Second,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Verification) != 1 || res.Verification[0].Type != "ine" {
		t.Fatalf("verification %+v", res.Verification)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != constants.SkipEmbeddingIncomplete {
		t.Fatalf("skipped %+v", res.Skipped)
	}
	if g.statusPolls["doc-ine"] != 1 {
		t.Fatalf("completed document re-polled %d times", g.statusPolls["doc-ine"])
	}
}

func TestNothingEmbeddedEndsRunWithoutVerification(t *testing.T) {
	g := newFakeGateway()
	g.neverEmbed["ine"] = true
	res, err := newTestOrchestrator(g, polltest.NewClock()).Run(context.Background(), Request{
		ConfigName:       "kyc",
		Documents:        writePDFs(t, "ine"),
		EmbeddingTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != constants.RunEmbeddingIncomplete || len(res.Verification) != 0 {
		t.Fatalf("got %+v", res)
	}
}

func TestJobNotAcceptedIsData(t *testing.T) {
	g := newFakeGateway()
	g.jobStatus = constants.JobMissingDocuments
	res, err := newTestOrchestrator(g, polltest.NewClock()).Run(context.Background(), Request{
		ConfigName: "kyc",
		Documents:  writePDFs(t, "ine"),
		Wait:       true,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != constants.RunJobRejected || len(res.MissingDocuments) != 1 || res.Polls != 0 {
		t.Fatalf("got %+v", res)
	}
}

func TestJobRejectedByService(t *testing.T) {
	g := newFakeGateway()
	g.jobErr = common.Rejected("create_job", 409, "record already closed")
	res, err := newTestOrchestrator(g, polltest.NewClock()).Run(context.Background(), Request{ConfigName: "kyc", Documents: writePDFs(t, "ine")})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != constants.RunJobRejected || res.JobMessage != "record already closed" {
		t.Fatalf("got %+v", res)
	}
}

func TestTransientContainerReadsAreRetried(t *testing.T) {
	g := newFakeGateway()
	g.detailErrs = []error{
		common.Unavailable("get_container", 502, "bad gateway", nil),
		common.Unavailable("get_container", 502, "bad gateway", nil),
	}
	res, err := newTestOrchestrator(g, polltest.NewClock()).Run(context.Background(), Request{
		ConfigName: "kyc",
		Documents:  writePDFs(t, "ine"),
		Wait:       true,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != constants.RunCompleted {
		t.Fatalf("status %s", res.Status)
	}
}

func TestCancelDuringCompletionWait(t *testing.T) {
	g := newFakeGateway()
	g.finishAfter = -1
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.onGetContainer = func() {
		if g.containerGets >= 2 {
			cancel()
		}
	}
	res, err := newTestOrchestrator(g, polltest.NewClock()).Run(ctx, Request{
		ConfigName:  "kyc",
		Documents:   writePDFs(t, "ine"),
		Wait:        true,
		PollTimeout: poll.NoTimeout,
	})
	if common.KindOf(err) != common.KindCancelled {
		t.Fatalf("err = %v", err)
	}
	if res.Status != constants.RunCancelled || res.FailedAt != constants.StateAwaitingCompletion || res.JobID == "" {
		t.Fatalf("got %+v", res)
	}
}

func TestCancelDuringEmbeddingWait(t *testing.T) {
	g := newFakeGateway()
	g.neverEmbed["ine"] = true
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.onStatus = func(polls int) {
		if polls >= 2 {
			cancel()
		}
	}
	res, err := newTestOrchestrator(g, polltest.NewClock()).Run(ctx, Request{
		ConfigName:       "kyc",
		Documents:        writePDFs(t, "ine"),
		EmbeddingTimeout: poll.NoTimeout,
	})
	if common.KindOf(err) != common.KindCancelled {
		t.Fatalf("err = %v", err)
	}
	if res.Status != constants.RunCancelled || res.FailedAt != constants.StateAwaitingEmbedding {
		t.Fatalf("got status=%s failed_at=%s", res.Status, res.FailedAt)
	}
	if res.ContainerID != "rec-1" || len(res.Uploaded) != 1 || len(res.Verification) != 0 {
		t.Fatalf("committed work lost: %+v", res)
	}
}

func TestUploadsRespectConcurrencyLimit(t *testing.T) {
	g := newFakeGateway()
	g.types = []string{"a", "b", "c", "d", "e", "f"}
	g.uploadDelay = 20 * time.Millisecond
	o := newTestOrchestrator(g, polltest.NewClock()) // concurrency 2

	res, err := o.Run(context.Background(), Request{ConfigName: "kyc", Documents: writePDFs(t, g.types...)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Uploaded) != 6 {
		t.Fatalf("uploaded %d", len(res.Uploaded))
	}
	if g.maxInFlight != 2 {
		t.Fatalf("max uploads in flight = %d, want 2", g.maxInFlight)
	}
}

func TestRunLogsCarryIdentifiersOnce(t *testing.T) {
	var buf bytes.Buffer
	g := newFakeGateway()
	o := NewOrchestrator(g,
		WithClock(polltest.NewClock()),
		WithLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))),
		WithRetry(common.RetryPolicy{Attempts: 1}),
	)
	if _, err := o.Run(context.Background(), Request{ConfigName: "kyc", Documents: writePDFs(t, "ine"), Wait: true}); err != nil {
		t.Fatalf("run: %v", err)
	}

	var pollLines int
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if n := strings.Count(line, `"run_id":`); n > 1 {
			t.Fatalf("run_id repeated %d times: %s", n, line)
		}
		if n := strings.Count(line, `"container_id":`); n > 1 {
			t.Fatalf("container_id repeated %d times: %s", n, line)
		}
		if strings.Contains(line, `"poll.finished"`) || strings.Contains(line, `"verify.batch_done"`) {
			pollLines++
			if !strings.Contains(line, `"run_id":`) || !strings.Contains(line, `"container_id":"rec-1"`) {
				t.Fatalf("identifiers missing: %s", line)
			}
		}
	}
	if pollLines < 3 {
		t.Fatalf("expected poll and verify log lines, got %d", pollLines)
	}
}

func TestMissingConfigNameIsValidationError(t *testing.T) {
	_, err := newTestOrchestrator(newFakeGateway(), polltest.NewClock()).Run(context.Background(), Request{Documents: map[string]string{"a": "b"}})
	if common.KindOf(err) != common.KindValidation {
		t.Fatalf("err = %v", err)
	}
}

func ExampleExtractEntities() {
	res := &RunResult{Container: &entity.Container{Documents: []entity.Document{
		{Type: "ine", Entities: []entity.ExtractedEntity{{Structure: map[string]any{"name": "Ana"}}}},
	}}}
	fmt.Println(ExtractEntities(res)["ine"])
	// Output: map[name:Ana]
}
