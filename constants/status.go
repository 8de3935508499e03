package constants

// ContainerStatus is the lifecycle status the service reports for a record.
type ContainerStatus string

const (
	ContainerWaiting    ContainerStatus = "waiting"
	ContainerProcessing ContainerStatus = "processing"
	ContainerCompleted  ContainerStatus = "completed"
	ContainerComplete   ContainerStatus = "complete" // older API revisions
	ContainerError      ContainerStatus = "error"
	ContainerFailed     ContainerStatus = "failed"
	ContainerCancelled  ContainerStatus = "cancelled"
	ContainerUnknown    ContainerStatus = "unknown"
)

// IsSuccess reports whether the service finished the record.
func (s ContainerStatus) IsSuccess() bool {
	return s == ContainerCompleted || s == ContainerComplete
}

// IsTerminal reports whether no further server-side transition is expected.
func (s ContainerStatus) IsTerminal() bool {
	switch s {
	case ContainerCompleted, ContainerComplete, ContainerError, ContainerFailed, ContainerCancelled:
		return true
	}
	return false
}

// DocumentStatus is the per-document embedding/processing status.
type DocumentStatus string

const (
	DocumentWaiting    DocumentStatus = "waiting"
	DocumentProcessing DocumentStatus = "processing"
	DocumentComplete   DocumentStatus = "complete"
	DocumentError      DocumentStatus = "error"
	DocumentUnknown    DocumentStatus = "unknown"
)

// IsTerminal reports whether embedding for the document has settled.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentComplete || s == DocumentError
}

// JobStatus is returned by job creation and by job/record status queries.
type JobStatus string

const (
	JobCreated           JobStatus = "created"
	JobAlreadyProcessing JobStatus = "already_processing"
	JobMissingDocuments  JobStatus = "missing_documents"
	JobInvalidStatus     JobStatus = "invalid_status"
	JobProcessing        JobStatus = "processing"
	JobCompleted         JobStatus = "completed"
	JobFailed            JobStatus = "failed"
	JobCancelled         JobStatus = "cancelled"
)

// Accepted reports whether the service has a live (or finished) job for the record.
func (s JobStatus) Accepted() bool {
	switch s {
	case JobCreated, JobAlreadyProcessing, JobProcessing, JobCompleted:
		return true
	}
	return false
}

// RunStatus is the terminal status of one pipeline run as seen by the caller.
type RunStatus string

const (
	RunCompleted           RunStatus = "completed"
	RunProcessingError     RunStatus = "processing_error"
	RunIncompleteTimeout   RunStatus = "incomplete_timeout"
	RunCancelled           RunStatus = "cancelled"
	RunJobCreated          RunStatus = "job_created"
	RunJobRejected         RunStatus = "job_rejected"
	RunVerificationFailed  RunStatus = "verification_failed"
	RunProcessingSkipped   RunStatus = "processing_skipped"
	RunEmbeddingIncomplete RunStatus = "embedding_incomplete"
	RunFailed              RunStatus = "failed"
)
