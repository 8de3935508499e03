package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/joseph-ayodele/records-pipeline/constants"
	"github.com/joseph-ayodele/records-pipeline/internal/entity"
	"github.com/joseph-ayodele/records-pipeline/internal/pipeline"
)

func openTestStore(t *testing.T) *EntRunStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "runs", "test.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRun(id, config string, status constants.RunStatus, started time.Time) *pipeline.RunResult {
	return &pipeline.RunResult{
		RunID:       id,
		ConfigName:  config,
		ContainerID: "rec-" + id,
		Status:      status,
		State:       constants.StateDone,
		Uploaded:    []pipeline.UploadedDocument{{Type: "ine", Path: "/tmp/ine.pdf", DocumentID: "d1"}},
		Verification: []pipeline.DocumentVerification{
			{Type: "ine", DocumentID: "d1", Outcome: entity.VerificationOutcome{Match: false, FoundType: "passport", Points: []string{"photo"}}},
		},
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	run := sampleRun("r1", "kyc", constants.RunVerificationFailed, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))

	if err := s.Save(ctx, run); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != run.Status || got.ContainerID != run.ContainerID || len(got.Verification) != 1 {
		t.Fatalf("got %+v", got)
	}
	if got.Verification[0].Outcome.FoundType != "passport" {
		t.Fatalf("verification lost: %+v", got.Verification)
	}

	run.Status = constants.RunCompleted
	if err := s.Save(ctx, run); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, _ = s.Get(ctx, "r1")
	if got.Status != constants.RunCompleted {
		t.Fatalf("upsert did not update status: %s", got.Status)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestListFiltersAndOrders(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	runs := []*pipeline.RunResult{
		sampleRun("a", "kyc", constants.RunCompleted, base),
		sampleRun("b", "kyc", constants.RunVerificationFailed, base.Add(time.Hour)),
		sampleRun("c", "loans", constants.RunCompleted, base.Add(2*time.Hour)),
	}
	for _, r := range runs {
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("save %s: %v", r.RunID, err)
		}
	}

	all, err := s.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].RunID != "c" || all[2].RunID != "a" {
		t.Fatalf("order %+v", all)
	}
	if all[0].Uploaded != 1 || !all[0].StartedAt.Equal(base.Add(2*time.Hour)) {
		t.Fatalf("summary %+v", all[0])
	}

	kyc, _ := s.List(ctx, ListFilter{ConfigName: "kyc", Status: string(constants.RunCompleted)})
	if len(kyc) != 1 || kyc[0].RunID != "a" {
		t.Fatalf("filtered %+v", kyc)
	}

	limited, _ := s.List(ctx, ListFilter{Limit: 2})
	if len(limited) != 2 {
		t.Fatalf("limit ignored: %d", len(limited))
	}
}

func TestListOrdersSubSecondStarts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 5, 0, time.UTC)
	for _, r := range []*pipeline.RunResult{
		sampleRun("older", "kyc", constants.RunCompleted, base),
		sampleRun("newer", "kyc", constants.RunCompleted, base.Add(500*time.Millisecond)),
	} {
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("save %s: %v", r.RunID, err)
		}
	}

	got, err := s.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].RunID != "newer" || got[1].RunID != "older" {
		t.Fatalf("order = %v, %v", got[0].RunID, got[1].RunID)
	}
	if !got[0].StartedAt.Equal(base.Add(500 * time.Millisecond)) {
		t.Fatalf("started_at = %s", got[0].StartedAt)
	}
}
