package entity

import (
	"time"

	"github.com/joseph-ayodele/records-pipeline/constants"
)

// Container is the local projection of a remote record: a batch of documents
// processed under one configuration.
type Container struct {
	ID                string                    `json:"id"`
	ConfigurationRef  string                    `json:"configuration_ref,omitempty"`
	Status            constants.ContainerStatus `json:"status"`
	CreatedAt         *time.Time                `json:"created_at,omitempty"`
	Documents         []Document                `json:"documents"`
	IsProcessing      bool                      `json:"is_processing"`
	CurrentDocumentID string                    `json:"current_document_id,omitempty"`
	ErrorMessage      string                    `json:"error_message,omitempty"`
}

// DocumentByID returns the document with the given id, if present.
func (c Container) DocumentByID(id string) (Document, bool) {
	for _, d := range c.Documents {
		if d.ID == id {
			return d, true
		}
	}
	return Document{}, false
}

// CreateContainerRequest is the body of the create-record call.
type CreateContainerRequest struct {
	ConfigurationRef string `json:"configuration_ref"`
	WithEmail        bool   `json:"with_email,omitempty"`
	Email            string `json:"email,omitempty"`
	FlowName         string `json:"flow_name,omitempty"`
}
