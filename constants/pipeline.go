package constants

// PipelineState is a node in the per-run state machine.
type PipelineState string

const (
	StateValidating         PipelineState = "validating"
	StateCreatingContainer  PipelineState = "creating_container"
	StateUploading          PipelineState = "uploading"
	StateAwaitingEmbedding  PipelineState = "awaiting_embedding"
	StateVerifying          PipelineState = "verifying"
	StateCreatingJob        PipelineState = "creating_job"
	StateAwaitingCompletion PipelineState = "awaiting_completion"
	StateSkipped            PipelineState = "skipped"
	StateDone               PipelineState = "done"
	StateFailed             PipelineState = "failed"
)

// SkipReason explains why a requested document did not reach verification.
type SkipReason string

const (
	SkipFileNotFound        SkipReason = "file_not_found"
	SkipNotPDF              SkipReason = "not_pdf"
	SkipUnreadable          SkipReason = "unreadable"
	SkipUnknownType         SkipReason = "unknown_type"
	SkipUploadFailed        SkipReason = "upload_failed"
	SkipMissingDocumentID   SkipReason = "missing_document_id"
	SkipEmbeddingIncomplete SkipReason = "embedding_incomplete"
)

// ProcessPolicy decides whether a processing job is created after verification.
type ProcessPolicy string

const (
	// ProcessOnPass creates the job only when every document verified.
	ProcessOnPass ProcessPolicy = ""
	// ProcessAlways creates the job regardless of verification outcome.
	ProcessAlways ProcessPolicy = "always"
	// ProcessNever stops after verification.
	ProcessNever ProcessPolicy = "never"
)

// ParseProcessPolicy maps CLI/config spellings to a policy.
func ParseProcessPolicy(s string) (ProcessPolicy, bool) {
	switch s {
	case "", "on-pass", "on_pass", "auto":
		return ProcessOnPass, true
	case "always", "force":
		return ProcessAlways, true
	case "never", "off":
		return ProcessNever, true
	}
	return ProcessOnPass, false
}
