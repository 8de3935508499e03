package pipeline

import (
	"context"

	"github.com/joseph-ayodele/records-pipeline/constants"
	"github.com/joseph-ayodele/records-pipeline/internal/entity"
)

// Gateway is the set of remote operations a run issues. *nebuia.Client
// satisfies it.
type Gateway interface {
	GetConfiguration(ctx context.Context, name string) (*entity.Configuration, error)
	CreateContainer(ctx context.Context, req entity.CreateContainerRequest) (string, error)
	UploadDocument(ctx context.Context, req entity.UploadRequest) (*entity.UploadReceipt, error)
	GetContainer(ctx context.Context, containerID string) (*entity.Container, error)
	DocumentStatus(ctx context.Context, documentID string) (constants.DocumentStatus, error)
	VerifyDocumentType(ctx context.Context, containerID, documentID string) (*entity.VerificationOutcome, error)
	CreateJob(ctx context.Context, containerID string) (*entity.ProcessingJob, error)
}
