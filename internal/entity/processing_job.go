package entity

import "github.com/joseph-ayodele/records-pipeline/constants"

// ProcessingJob is the deep-extraction task covering a whole container.
type ProcessingJob struct {
	ID               string              `json:"job_id"`
	Status           constants.JobStatus `json:"status"`
	Message          string              `json:"message,omitempty"`
	MissingDocuments []string            `json:"missing_documents,omitempty"`
}
