package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/records-pipeline/internal/normalize"
	"github.com/joseph-ayodele/records-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/records-pipeline/internal/repository"
)

const (
	sheetVerification = "Verification"
	sheetSkipped      = "Skipped"
	sheetEntities     = "Entities"
	sheetRuns         = "Runs"
)

// Service produces XLSX bytes for run results and run history.
type Service struct {
	store  repository.RunStore
	logger *slog.Logger
}

func NewService(store repository.RunStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// RunXLSX loads runID from the store and renders it.
func (s *Service) RunXLSX(ctx context.Context, runID string) ([]byte, error) {
	if s.store == nil {
		return nil, fmt.Errorf("no run store configured")
	}
	res, err := s.store.Get(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	return s.ResultXLSX(res)
}

// ResultXLSX renders one run: verification outcomes, skipped inputs, and the
// normalized entities flattened to one row per field.
func (s *Service) ResultXLSX(res *pipeline.RunResult) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer f.Close()

	if err := newSheet(f, sheetVerification, []string{"Document Type", "Document ID", "Match", "Type Found", "Points", "Error"}); err != nil {
		return nil, err
	}
	for i, v := range res.Verification {
		writeRow(f, sheetVerification, i+2,
			v.Type, v.DocumentID, v.Outcome.Match, v.Outcome.FoundType,
			truncate(strings.Join(v.Outcome.Points, "; "), 1000), v.Outcome.Error)
	}
	_ = f.SetColWidth(sheetVerification, "A", "B", 24)
	_ = f.SetColWidth(sheetVerification, "D", "D", 22)
	_ = f.SetColWidth(sheetVerification, "E", "E", 80)

	if err := newSheet(f, sheetSkipped, []string{"Document Type", "Path", "Document ID", "Reason", "Detail"}); err != nil {
		return nil, err
	}
	for i, sk := range res.Skipped {
		writeRow(f, sheetSkipped, i+2, sk.Type, sk.Path, sk.DocumentID, string(sk.Reason), truncate(sk.Detail, 300))
	}
	_ = f.SetColWidth(sheetSkipped, "B", "B", 60)
	_ = f.SetColWidth(sheetSkipped, "E", "E", 60)

	if err := newSheet(f, sheetEntities, []string{"Document Type", "Record", "Field", "Value"}); err != nil {
		return nil, err
	}
	rows := entityRows(pipeline.ExtractEntities(res))
	for i, r := range rows {
		writeRow(f, sheetEntities, i+2, r.docType, r.index, r.field, r.value)
	}
	_ = f.SetColWidth(sheetEntities, "A", "A", 22)
	_ = f.SetColWidth(sheetEntities, "C", "C", 40)
	_ = f.SetColWidth(sheetEntities, "D", "D", 60)

	if idx, err := f.GetSheetIndex(sheetVerification); err == nil {
		f.SetActiveSheet(idx)
	}
	_ = f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"run_id", res.RunID,
		"verification_rows", len(res.Verification),
		"entity_rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// HistoryXLSX renders the run history matching filter.
func (s *Service) HistoryXLSX(ctx context.Context, filter repository.ListFilter) ([]byte, error) {
	if s.store == nil {
		return nil, fmt.Errorf("no run store configured")
	}
	runs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := newSheet(f, sheetRuns, []string{"Started", "Run ID", "Config", "Container ID", "Status", "Job ID", "Verified", "Uploaded", "Skipped", "Error"}); err != nil {
		return nil, err
	}
	for i, r := range runs {
		writeRow(f, sheetRuns, i+2,
			r.StartedAt.Format(time.RFC3339), r.RunID, r.ConfigName, r.ContainerID,
			r.Status, r.JobID, r.AllVerified, r.Uploaded, r.Skipped, truncate(r.Error, 300))
	}
	_ = f.SetColWidth(sheetRuns, "A", "B", 26)
	_ = f.SetColWidth(sheetRuns, "J", "J", 60)
	_ = f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.history.ok", "rows", len(runs))
	return buf.Bytes(), nil
}

func newSheet(f *excelize.File, sheet string, headers []string) error {
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

type entityRow struct {
	docType string
	index   int
	field   string
	value   string
}

// entityRows flattens nested records into dotted field paths.
func entityRows(res normalize.Result) []entityRow {
	types := make([]string, 0, len(res))
	for t := range res {
		types = append(types, t)
	}
	sort.Strings(types)

	var out []entityRow
	for _, t := range types {
		for i, rec := range res.Records(t) {
			flat := map[string]string{}
			flatten("", rec, flat)
			keys := make([]string, 0, len(flat))
			for k := range flat {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				out = append(out, entityRow{docType: t, index: i + 1, field: k, value: flat[k]})
			}
		}
	}
	return out
}

func flatten(prefix string, v any, out map[string]string) {
	switch t := v.(type) {
	case map[string]any:
		for k, vv := range t {
			flatten(join(prefix, k), vv, out)
		}
	case []any:
		for i, vv := range t {
			flatten(join(prefix, fmt.Sprint(i)), vv, out)
		}
	case nil:
		out[prefix] = ""
	default:
		out[prefix] = truncate(fmt.Sprint(t), 1000)
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
