package nebuia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/records-pipeline/constants"
	"github.com/joseph-ayodele/records-pipeline/internal/common"
	"github.com/joseph-ayodele/records-pipeline/internal/entity"
)

// Operation names, used in errors and logs.
const (
	OpGetConfiguration = "get_configuration"
	OpCreateContainer  = "create_container"
	OpUploadDocument   = "upload_document"
	OpGetContainer     = "get_container"
	OpDocumentStatus   = "document_status"
	OpVerifyDocument   = "verify_document"
	OpCreateJob        = "create_job"
)

type wireDocument struct {
	ID        string                   `json:"document_id"`
	Type      string                   `json:"document_type"`
	Status    constants.DocumentStatus `json:"status"`
	CreatedAt string                   `json:"created_at"`
	Predict   json.RawMessage          `json:"document_predict"`
	Entities  []entity.ExtractedEntity `json:"entities"`
}

type wireContainer struct {
	ID                string                    `json:"id"`
	ConfigurationRef  string                    `json:"configuration_ref"`
	Status            constants.ContainerStatus `json:"status"`
	CreatedAt         string                    `json:"created_at"`
	Documents         []wireDocument            `json:"documents"`
	IsProcessing      bool                      `json:"is_processing"`
	CurrentDocumentID string                    `json:"current_document_id"`
	ErrorMessage      string                    `json:"error_message"`
}

type wireUpload struct {
	Document wireDocument `json:"document"`
	JobID    string       `json:"job_id"`
}

type wireVerify struct {
	Status    bool     `json:"status"`
	TypeFound string   `json:"type_document_found"`
	Points    []string `json:"points"`
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func (w wireContainer) toEntity() entity.Container {
	c := entity.Container{
		ID:                w.ID,
		ConfigurationRef:  w.ConfigurationRef,
		Status:            w.Status,
		CreatedAt:         parseTime(w.CreatedAt),
		IsProcessing:      w.IsProcessing,
		CurrentDocumentID: w.CurrentDocumentID,
		ErrorMessage:      w.ErrorMessage,
		Documents:         make([]entity.Document, 0, len(w.Documents)),
	}
	for _, d := range w.Documents {
		c.Documents = append(c.Documents, entity.Document{
			ID:       d.ID,
			Type:     d.Type,
			Status:   d.Status,
			Predict:  d.Predict,
			Entities: d.Entities,
		})
	}
	return c
}

func requireID(op string, ids ...string) error {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			e := common.Validation(common.CodeEmptyIdentifier, "identifier must not be empty", common.ErrEmptyIdentifier)
			e.Op = op
			return e
		}
	}
	return nil
}

func (c *Client) clientURL(parts ...string) string {
	var b strings.Builder
	b.WriteString(c.cfg.BaseURL)
	b.WriteString("/clients/")
	b.WriteString(url.PathEscape(c.cfg.ClientID))
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(p)
	}
	return b.String()
}

// GetConfiguration fetches the tenant configuration named name.
func (c *Client) GetConfiguration(ctx context.Context, name string) (*entity.Configuration, error) {
	if err := requireID(OpGetConfiguration, name); err != nil {
		return nil, err
	}
	var out entity.Configuration
	u := c.clientURL("configurations", url.PathEscape(name))
	if err := c.getJSON(ctx, OpGetConfiguration, u, c.cfg.Timeout, configurationSchema, &out); err != nil {
		return nil, err
	}
	if out.Name == "" {
		out.Name = name
	}
	return &out, nil
}

// CreateContainer opens a new record under req.ConfigurationRef and returns its id.
func (c *Client) CreateContainer(ctx context.Context, req entity.CreateContainerRequest) (string, error) {
	if err := requireID(OpCreateContainer, req.ConfigurationRef); err != nil {
		return "", err
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, OpCreateContainer, c.clientURL("records", "create"), req, createContainerSchema, &out); err != nil {
		return "", err
	}
	c.logger.Info("nebuia.container.created", "container_id", out.ID, "configuration", req.ConfigurationRef)
	return out.ID, nil
}

// UploadDocument streams one PDF into a container. The local file is checked
// for existence and PDF signature before any bytes go on the wire.
func (c *Client) UploadDocument(ctx context.Context, req entity.UploadRequest) (*entity.UploadReceipt, error) {
	if err := requireID(OpUploadDocument, req.ContainerID, req.DocumentType); err != nil {
		return nil, err
	}
	if _, err := CheckPDF(req.Path, c.cfg.StrictPDF); err != nil {
		return nil, err
	}

	f, err := os.Open(req.Path)
	if err != nil {
		return nil, common.Validation(common.CodeFileNotFound, req.Path, err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, f, req))
	}()

	raw, err := c.send(ctx, request{
		op:          OpUploadDocument,
		method:      http.MethodPost,
		url:         c.clientURL("records", url.PathEscape(req.ContainerID), "documents"),
		body:        pr,
		contentType: mw.FormDataContentType(),
		timeout:     c.cfg.UploadTimeout,
		schema:      uploadSchema,
	})
	// unblock the writer if send returned before draining the body
	_ = pr.Close()
	if err != nil {
		return nil, err
	}

	var w wireUpload
	if err := decode(OpUploadDocument, raw, &w); err != nil {
		return nil, err
	}
	receipt := &entity.UploadReceipt{
		DocumentID:   w.Document.ID,
		DocumentType: w.Document.Type,
		CreatedAt:    parseTime(w.Document.CreatedAt),
		JobID:        w.JobID,
	}
	if receipt.DocumentType == "" {
		receipt.DocumentType = req.DocumentType
	}
	c.logger.Info("nebuia.document.uploaded",
		"container_id", req.ContainerID,
		"document_type", receipt.DocumentType,
		"document_id", receipt.DocumentID,
	)
	return receipt, nil
}

func writeUploadForm(mw *multipart.Writer, f io.Reader, req entity.UploadRequest) error {
	if err := mw.WriteField("document_type", req.DocumentType); err != nil {
		return err
	}
	if req.ProcessDocument {
		if err := mw.WriteField("process_document", "true"); err != nil {
			return err
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(req.Path)))
	h.Set("Content-Type", constants.PDFContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	return mw.Close()
}

// GetContainer fetches the current detail of a container, entities included.
func (c *Client) GetContainer(ctx context.Context, containerID string) (*entity.Container, error) {
	if err := requireID(OpGetContainer, containerID); err != nil {
		return nil, err
	}
	var w wireContainer
	u := c.clientURL("records", url.PathEscape(containerID))
	if err := c.getJSON(ctx, OpGetContainer, u, c.cfg.Timeout, containerSchema, &w); err != nil {
		return nil, err
	}
	out := w.toEntity()
	return &out, nil
}

// DocumentStatus reports the embedding status of one document. It is served
// by a separate host.
func (c *Client) DocumentStatus(ctx context.Context, documentID string) (constants.DocumentStatus, error) {
	if err := requireID(OpDocumentStatus, documentID); err != nil {
		return constants.DocumentUnknown, err
	}
	var out struct {
		Status constants.DocumentStatus `json:"status"`
	}
	u := c.cfg.EmbeddingsURL + "/document/" + url.PathEscape(documentID) + "/status"
	if err := c.getJSON(ctx, OpDocumentStatus, u, c.cfg.Timeout, documentStatusSchema, &out); err != nil {
		return constants.DocumentUnknown, err
	}
	return out.Status, nil
}

// VerifyDocumentType asks the service whether the document matches the type it
// was uploaded as.
func (c *Client) VerifyDocumentType(ctx context.Context, containerID, documentID string) (*entity.VerificationOutcome, error) {
	if err := requireID(OpVerifyDocument, containerID, documentID); err != nil {
		return nil, err
	}
	var w wireVerify
	u := c.clientURL("records", url.PathEscape(containerID), "type", url.PathEscape(documentID))
	if err := c.getJSON(ctx, OpVerifyDocument, u, c.cfg.VerifyTimeout, verifySchema, &w); err != nil {
		return nil, err
	}
	return &entity.VerificationOutcome{Match: w.Status, FoundType: w.TypeFound, Points: w.Points}, nil
}

// CreateJob launches deep extraction over the whole container. Statuses such
// as missing_documents come back as data, not errors.
func (c *Client) CreateJob(ctx context.Context, containerID string) (*entity.ProcessingJob, error) {
	if err := requireID(OpCreateJob, containerID); err != nil {
		return nil, err
	}
	var out entity.ProcessingJob
	u := c.clientURL("records", url.PathEscape(containerID), "process")
	if err := c.postJSON(ctx, OpCreateJob, u, struct{}{}, jobSchema, &out); err != nil {
		return nil, err
	}
	c.logger.Info("nebuia.job.created", "container_id", containerID, "job_id", out.ID, "status", string(out.Status))
	return &out, nil
}
