package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/records-pipeline/internal/common"
	"github.com/joseph-ayodele/records-pipeline/internal/pipeline"
)

// ErrNotFound is returned when a run id is unknown to the store.
var ErrNotFound = errors.New("run not found")

// RunSummary is one row of run history.
type RunSummary struct {
	RunID       string
	ConfigName  string
	ContainerID string
	Status      string
	State       string
	JobID       string
	AllVerified bool
	Uploaded    int
	Skipped     int
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	ConfigName string
	Status     string
	Limit      int
}

// RunStore persists finished runs so they can be inspected or resumed by hand.
type RunStore interface {
	Save(ctx context.Context, res *pipeline.RunResult) error
	Get(ctx context.Context, runID string) (*pipeline.RunResult, error)
	List(ctx context.Context, f ListFilter) ([]RunSummary, error)
	Close() error
}

// Open picks a store implementation from cfg. Driver "none" yields a nil store.
func Open(ctx context.Context, cfg common.StoreConfig, logger *slog.Logger) (RunStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case "sqlite", "":
		s, err := OpenSQLite(ctx, cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := OpenPostgres(ctx, Config{
			DSN:             cfg.DSN,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
			DialTimeout:     cfg.DialTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func summarize(res *pipeline.RunResult) RunSummary {
	return RunSummary{
		RunID:       res.RunID,
		ConfigName:  res.ConfigName,
		ContainerID: res.ContainerID,
		Status:      string(res.Status),
		State:       string(res.State),
		JobID:       res.JobID,
		AllVerified: res.AllVerified,
		Uploaded:    len(res.Uploaded),
		Skipped:     len(res.Skipped),
		Error:       res.Error,
		StartedAt:   res.StartedAt.UTC(),
		FinishedAt:  res.FinishedAt.UTC(),
	}
}

func encodeResult(res *pipeline.RunResult) ([]byte, error) {
	b, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode run %s: %w", res.RunID, err)
	}
	return b, nil
}

func decodeResult(runID string, b []byte) (*pipeline.RunResult, error) {
	var res pipeline.RunResult
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &res, nil
}

func limitOf(f ListFilter) int {
	if f.Limit <= 0 {
		return 50
	}
	return f.Limit
}
