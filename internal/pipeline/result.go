package pipeline

import (
	"time"

	"github.com/joseph-ayodele/records-pipeline/constants"
	"github.com/joseph-ayodele/records-pipeline/internal/entity"
)

// UploadedDocument is a document the service accepted.
type UploadedDocument struct {
	Type       string     `json:"document_type"`
	Path       string     `json:"path"`
	DocumentID string     `json:"document_id"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

// SkippedDocument is a requested document that did not reach verification.
type SkippedDocument struct {
	Type       string               `json:"document_type"`
	Path       string               `json:"path"`
	DocumentID string               `json:"document_id,omitempty"`
	Reason     constants.SkipReason `json:"reason"`
	Detail     string               `json:"detail,omitempty"`
}

// DocumentVerification pairs a verified document with its outcome.
type DocumentVerification struct {
	Type       string                     `json:"document_type"`
	DocumentID string                     `json:"document_id"`
	Outcome    entity.VerificationOutcome `json:"outcome"`
}

// RunResult is the envelope of one run. It is returned on every path,
// including fatal ones, so committed remote work is never lost.
type RunResult struct {
	RunID      string `json:"run_id"`
	ConfigName string `json:"config_name"`

	ContainerID     string                    `json:"container_id,omitempty"`
	ContainerStatus constants.ContainerStatus `json:"container_status,omitempty"`

	Status constants.RunStatus     `json:"status"`
	State  constants.PipelineState `json:"state"`
	// FailedAt is the state a fatal error or cancellation interrupted.
	FailedAt constants.PipelineState   `json:"failed_at,omitempty"`
	States   []constants.PipelineState `json:"states"`
	Error    string                    `json:"error,omitempty"`

	Uploaded     []UploadedDocument     `json:"uploaded"`
	Skipped      []SkippedDocument      `json:"skipped"`
	Verification []DocumentVerification `json:"verification"`
	AllVerified  bool                   `json:"all_verified"`

	JobID            string              `json:"job_id,omitempty"`
	JobStatus        constants.JobStatus `json:"job_status,omitempty"`
	JobMessage       string              `json:"job_message,omitempty"`
	MissingDocuments []string            `json:"missing_documents,omitempty"`

	// Container is the last container detail the run observed.
	Container *entity.Container `json:"container,omitempty"`
	Polls     int               `json:"polls"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// DocumentIDs returns the uploaded document ids in upload order.
func (r *RunResult) DocumentIDs() []string {
	out := make([]string, 0, len(r.Uploaded))
	for _, u := range r.Uploaded {
		out = append(out, u.DocumentID)
	}
	return out
}

// Outcome returns the verification outcome recorded for documentID.
func (r *RunResult) Outcome(documentID string) (entity.VerificationOutcome, bool) {
	for _, v := range r.Verification {
		if v.DocumentID == documentID {
			return v.Outcome, true
		}
	}
	return entity.VerificationOutcome{}, false
}

func (r *RunResult) enter(s constants.PipelineState) {
	r.State = s
	r.States = append(r.States, s)
}

func (r *RunResult) skip(d SkippedDocument) {
	r.Skipped = append(r.Skipped, d)
}
