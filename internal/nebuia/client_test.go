package nebuia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/records-pipeline/constants"
	"github.com/joseph-ayodele/records-pipeline/internal/common"
	"github.com/joseph-ayodele/records-pipeline/internal/entity"
)

type fakeService struct {
	mu        sync.Mutex
	nextID    int
	documents map[string][]map[string]any
	uploads   []http.Header
	fields    []map[string]string
}

func newFakeService(t *testing.T) (*fakeService, *Client) {
	t.Helper()
	fs := &fakeService{documents: map[string][]map[string]any{}}
	srv := httptest.NewServer(http.HandlerFunc(fs.serve))
	t.Cleanup(srv.Close)
	c := NewClient(Config{
		BaseURL:       srv.URL,
		EmbeddingsURL: srv.URL + "/embeddings",
		ClientID:      "tenant",
		APIKey:        "key",
		APISecret:     "secret",
		Timeout:       5 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return fs, c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (fs *fakeService) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-API-Key") != "key" || r.Header.Get("X-API-Secret") != "secret" || r.Header.Get("X-Client-ID") != "tenant" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": true, "message": "bad credentials"})
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 4 && parts[0] == "embeddings" && parts[3] == "status":
		writeJSON(w, http.StatusOK, map[string]any{"status": "complete"})
	case len(parts) == 4 && parts[2] == "records" && parts[3] == "create" && r.Method == http.MethodPost:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["configuration_ref"] == "missing" {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": true, "message": "configuration not found"})
			return
		}
		fs.nextID++
		id := fmt.Sprintf("rec-%d", fs.nextID)
		fs.documents[id] = nil
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "extra": "ignored"})
	case len(parts) == 5 && parts[4] == "documents" && r.Method == http.MethodPost:
		rid := parts[3]
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": true, "message": err.Error()})
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": true, "message": "no file"})
			return
		}
		_ = f.Close()
		fs.uploads = append(fs.uploads, http.Header(hdr.Header))
		fs.fields = append(fs.fields, map[string]string{
			"document_type":    r.FormValue("document_type"),
			"process_document": r.FormValue("process_document"),
		})
		fs.nextID++
		doc := map[string]any{
			"document_id":   fmt.Sprintf("doc-%d", fs.nextID),
			"document_type": r.FormValue("document_type"),
			"created_at":    "2024-05-01T10:00:00Z",
		}
		fs.documents[rid] = append(fs.documents[rid], doc)
		writeJSON(w, http.StatusOK, map[string]any{"document": doc})
	case len(parts) == 4 && parts[2] == "records" && r.Method == http.MethodGet:
		docs, ok := fs.documents[parts[3]]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": true, "message": "record not found"})
			return
		}
		if docs == nil {
			docs = []map[string]any{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": parts[3], "status": "waiting", "documents": docs, "is_processing": false})
	case len(parts) == 6 && parts[4] == "type":
		if parts[5] == "doc-bad" {
			writeJSON(w, http.StatusOK, map[string]any{"status": false, "type_document_found": "invoice", "points": []string{"no photo", "wrong header"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": true})
	case len(parts) == 5 && parts[4] == "process":
		writeJSON(w, http.StatusOK, map[string]any{"job_id": "job-1", "status": "missing_documents", "message": "missing", "missing_documents": []string{"ine"}})
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"error": true, "message": "no route"})
	}
}

func writePDF(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("%PDF-1.4\n%%EOF\n"), 0o600); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return p
}

func TestUploadThenGetContainerListsDocument(t *testing.T) {
	fs, c := newFakeService(t)
	ctx := context.Background()

	rid, err := c.CreateContainer(ctx, entity.CreateContainerRequest{ConfigurationRef: "kyc"})
	if err != nil {
		t.Fatalf("create container: %v", err)
	}
	path := writePDF(t, t.TempDir(), "ine.pdf")
	receipt, err := c.UploadDocument(ctx, entity.UploadRequest{ContainerID: rid, DocumentType: "ine", Path: path, ProcessDocument: true})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if receipt.DocumentID == "" || receipt.CreatedAt == nil {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	detail, err := c.GetContainer(ctx, rid)
	if err != nil {
		t.Fatalf("get container: %v", err)
	}
	if _, ok := detail.DocumentByID(receipt.DocumentID); !ok {
		t.Fatalf("document %s not in container detail %+v", receipt.DocumentID, detail.Documents)
	}

	if got := fs.uploads[0].Get("Content-Type"); got != constants.PDFContentType {
		t.Fatalf("file part content type = %q", got)
	}
	if fs.fields[0]["document_type"] != "ine" || fs.fields[0]["process_document"] != "true" {
		t.Fatalf("unexpected form fields: %v", fs.fields[0])
	}
}

func TestUploadRejectsLocalFilesBeforeNetwork(t *testing.T) {
	fs, c := newFakeService(t)
	dir := t.TempDir()
	notPDF := filepath.Join(dir, "a.pdf")
	if err := os.WriteFile(notPDF, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}

	cases := map[string]struct {
		req  entity.UploadRequest
		code string
	}{
		"missing file":  {entity.UploadRequest{ContainerID: "r", DocumentType: "ine", Path: filepath.Join(dir, "nope.pdf")}, common.CodeFileNotFound},
		"bad signature": {entity.UploadRequest{ContainerID: "r", DocumentType: "ine", Path: notPDF}, common.CodeNotPDF},
		"empty id":      {entity.UploadRequest{DocumentType: "ine", Path: notPDF}, common.CodeEmptyIdentifier},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.UploadDocument(context.Background(), tc.req)
			if common.KindOf(err) != common.KindValidation || common.CodeOf(err) != tc.code {
				t.Fatalf("err = %v, want validation/%s", err, tc.code)
			}
		})
	}
	if len(fs.uploads) != 0 {
		t.Fatalf("expected no uploads, got %d", len(fs.uploads))
	}
}

func TestRemoteErrorsAreTyped(t *testing.T) {
	_, c := newFakeService(t)
	ctx := context.Background()

	_, err := c.CreateContainer(ctx, entity.CreateContainerRequest{ConfigurationRef: "missing"})
	var e *common.Error
	if !errors.As(err, &e) || e.Kind != common.KindRemoteRejected || e.Message != "configuration not found" {
		t.Fatalf("want rejected with service message, got %v", err)
	}

	_, err = c.GetContainer(ctx, "nope")
	if common.KindOf(err) != common.KindRemoteRejected {
		t.Fatalf("want rejected, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   common.Kind
	}{
		{"ok", 200, `{"id":"x"}`, common.KindUnknown},
		{"ok flagged error", 200, `{"error":true,"message":"nope"}`, common.KindRemoteRejected},
		{"ok error false", 200, `{"error":false,"id":"x"}`, common.KindUnknown},
		{"4xx structured", 400, `{"error":true,"message":"bad type"}`, common.KindRemoteRejected},
		{"4xx detail", 422, `{"detail":"bad field"}`, common.KindRemoteRejected},
		{"4xx plain", 404, `not found`, common.KindRemoteUnavailable},
		{"429", 429, `{"error":true,"message":"slow down"}`, common.KindRemoteUnavailable},
		{"5xx structured", 503, `{"error":true,"message":"down"}`, common.KindRemoteUnavailable},
		{"5xx empty", 500, ``, common.KindRemoteUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify("op", tc.status, []byte(tc.body))
			if got := common.KindOf(err); got != tc.want {
				t.Fatalf("kind = %v, want %v (err %v)", got, tc.want, err)
			}
		})
	}
}

func TestMalformedSuccessIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "yes"})
	}))
	defer srv.Close()
	c := NewClient(Config{BaseURL: srv.URL, ClientID: "t"}, nil)

	_, err := c.VerifyDocumentType(context.Background(), "r", "d")
	if common.KindOf(err) != common.KindRemoteUnavailable || common.CodeOf(err) != common.CodeMalformedResponse {
		t.Fatalf("want malformed response, got %v", err)
	}
}

func TestVerifyAndJobPayloads(t *testing.T) {
	_, c := newFakeService(t)
	ctx := context.Background()

	out, err := c.VerifyDocumentType(ctx, "rec", "doc-bad")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.Match || out.FoundType != "invoice" || len(out.Points) != 2 {
		t.Fatalf("unexpected outcome %+v", out)
	}

	job, err := c.CreateJob(ctx, "rec")
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if job.Status != constants.JobMissingDocuments || len(job.MissingDocuments) != 1 {
		t.Fatalf("unexpected job %+v", job)
	}

	st, err := c.DocumentStatus(ctx, "doc-1")
	if err != nil || st != constants.DocumentComplete {
		t.Fatalf("document status = %q, %v", st, err)
	}
}

func TestCancelledCallIsNotUnavailable(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)
	c := NewClient(Config{BaseURL: srv.URL, ClientID: "t"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.GetContainer(ctx, "r")
	if common.KindOf(err) != common.KindCancelled {
		t.Fatalf("want cancelled, got %v", err)
	}
}
