package entity

import (
	"encoding/json"
	"time"

	"github.com/joseph-ayodele/records-pipeline/constants"
)

// Document is one uploaded file inside a container.
type Document struct {
	ID           string                   `json:"document_id"`
	Type         string                   `json:"document_type"`
	Status       constants.DocumentStatus `json:"status,omitempty"`
	Predict      json.RawMessage          `json:"document_predict,omitempty"`
	Entities     []ExtractedEntity        `json:"entities,omitempty"`
	Verification *VerificationOutcome     `json:"verification,omitempty"`
}

// UploadRequest describes one local file to attach to a container.
type UploadRequest struct {
	ContainerID     string
	DocumentType    string
	Path            string
	ProcessDocument bool
}

// UploadReceipt is what the service acknowledges after an upload.
type UploadReceipt struct {
	DocumentID   string     `json:"document_id"`
	DocumentType string     `json:"document_type"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	JobID        string     `json:"job_id,omitempty"`
}
