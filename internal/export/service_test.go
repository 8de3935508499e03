package export

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/records-pipeline/constants"
	"github.com/joseph-ayodele/records-pipeline/internal/entity"
	"github.com/joseph-ayodele/records-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/records-pipeline/internal/repository"
)

func sampleResult() *pipeline.RunResult {
	return &pipeline.RunResult{
		RunID:      "run-1",
		ConfigName: "kyc",
		Status:     constants.RunCompleted,
		Verification: []pipeline.DocumentVerification{
			{Type: "ine", DocumentID: "d1", Outcome: entity.VerificationOutcome{Match: true}},
			{Type: "statement", DocumentID: "d2", Outcome: entity.VerificationOutcome{Match: false, FoundType: "invoice", Points: []string{"a", "b"}}},
		},
		Skipped: []pipeline.SkippedDocument{{Type: "passport", Path: "/x.pdf", Reason: constants.SkipNotPDF}},
		Container: &entity.Container{Documents: []entity.Document{
			{Type: "ine", Entities: []entity.ExtractedEntity{{Structure: map[string]any{"name": "Ana", "address": map[string]any{"city": "CDMX"}}}}},
		}},
		StartedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestResultXLSX(t *testing.T) {
	svc := NewService(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	b, err := svc.ResultXLSX(sampleResult())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetVerification)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 || rows[2][0] != "statement" || rows[2][2] != "FALSE" || rows[2][4] != "a; b" {
		t.Fatalf("verification rows %v", rows)
	}

	ents, _ := f.GetRows(sheetEntities)
	if len(ents) != 3 || ents[1][2] != "address.city" || ents[1][3] != "CDMX" || ents[2][2] != "name" {
		t.Fatalf("entity rows %v", ents)
	}

	skipped, _ := f.GetRows(sheetSkipped)
	if len(skipped) != 2 || skipped[1][3] != string(constants.SkipNotPDF) {
		t.Fatalf("skipped rows %v", skipped)
	}
}

func TestHistoryXLSXFromStore(t *testing.T) {
	ctx := context.Background()
	store, err := repository.OpenSQLite(ctx, filepath.Join(t.TempDir(), "h.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	if err := store.Save(ctx, sampleResult()); err != nil {
		t.Fatalf("save: %v", err)
	}

	svc := NewService(store, nil)
	b, err := svc.HistoryXLSX(ctx, repository.ListFilter{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(sheetRuns)
	if len(rows) != 2 || rows[1][1] != "run-1" {
		t.Fatalf("rows %v", rows)
	}

	if _, err := svc.RunXLSX(ctx, "run-1"); err != nil {
		t.Fatalf("run export: %v", err)
	}
}
