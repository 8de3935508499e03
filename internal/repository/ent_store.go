package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/records-pipeline/internal/pipeline"
)

const runsTable = "pipeline_runs"

var summaryColumns = []string{
	"run_id", "config_name", "container_id", "status", "state", "job_id",
	"all_verified", "uploaded", "skipped", "error", "started_at", "finished_at",
}

// EntRunStore keeps run history in any SQL database ent has a dialect for.
// Times are stored as unix nanoseconds so ordering is numeric.
type EntRunStore struct {
	drv     *entsql.Driver
	dialect string
	logger  *slog.Logger
	onClose func()
}

func newEntRunStore(ctx context.Context, db *sql.DB, name string, logger *slog.Logger) (*EntRunStore, error) {
	s := &EntRunStore{
		drv:     entsql.OpenDB(name, db),
		dialect: name,
		logger:  logger,
	}
	if err := s.migrate(ctx); err != nil {
		_ = s.drv.Close()
		return nil, fmt.Errorf("migrate %s: %w", name, err)
	}
	return s, nil
}

func (s *EntRunStore) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

func (s *EntRunStore) migrate(ctx context.Context) error {
	payload := "text"
	if s.dialect == dialect.Postgres {
		payload = "jsonb"
	}
	q, args := s.builder().CreateTable(runsTable).IfNotExists().
		Columns(
			entsql.Column("run_id").Type("varchar(64)").Attr("NOT NULL"),
			entsql.Column("config_name").Type("text").Attr("NOT NULL"),
			entsql.Column("container_id").Type("text").Attr("NOT NULL DEFAULT ''"),
			entsql.Column("status").Type("varchar(32)").Attr("NOT NULL"),
			entsql.Column("state").Type("varchar(32)").Attr("NOT NULL"),
			entsql.Column("job_id").Type("text").Attr("NOT NULL DEFAULT ''"),
			entsql.Column("all_verified").Type("boolean").Attr("NOT NULL DEFAULT false"),
			entsql.Column("uploaded").Type("integer").Attr("NOT NULL DEFAULT 0"),
			entsql.Column("skipped").Type("integer").Attr("NOT NULL DEFAULT 0"),
			entsql.Column("error").Type("text").Attr("NOT NULL DEFAULT ''"),
			entsql.Column("started_at").Type("bigint").Attr("NOT NULL"),
			entsql.Column("finished_at").Type("bigint").Attr("NOT NULL"),
			entsql.Column("result").Type(payload).Attr("NOT NULL"),
		).
		PrimaryKey("run_id").
		Query()
	return s.drv.Exec(ctx, q, args, nil)
}

func (s *EntRunStore) Save(ctx context.Context, res *pipeline.RunResult) error {
	raw, err := encodeResult(res)
	if err != nil {
		return err
	}
	sum := summarize(res)
	q, args := s.builder().Insert(runsTable).
		Columns(append(summaryColumns, "result")...).
		Values(sum.RunID, sum.ConfigName, sum.ContainerID, sum.Status, sum.State, sum.JobID,
			sum.AllVerified, sum.Uploaded, sum.Skipped, sum.Error,
			sum.StartedAt.UnixNano(), sum.FinishedAt.UnixNano(), string(raw)).
		OnConflict(entsql.ConflictColumns("run_id"), entsql.ResolveWithNewValues()).
		Query()
	var result sql.Result
	if err := s.drv.Exec(ctx, q, args, &result); err != nil {
		s.logger.Error("repository.save_error", "dialect", s.dialect, "run_id", res.RunID, "error", err)
		return fmt.Errorf("save run %s: %w", res.RunID, err)
	}
	s.logger.Debug("repository.saved", "dialect", s.dialect, "run_id", res.RunID, "status", sum.Status)
	return nil
}

func (s *EntRunStore) Get(ctx context.Context, runID string) (*pipeline.RunResult, error) {
	b := s.builder()
	q, args := b.Select("result").From(b.Table(runsTable)).
		Where(entsql.EQ("run_id", runID)).
		Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get run %s: %w", runID, err)
		}
		return nil, ErrNotFound
	}
	var raw string
	if err := rows.Scan(&raw); err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return decodeResult(runID, []byte(raw))
}

func (s *EntRunStore) List(ctx context.Context, f ListFilter) ([]RunSummary, error) {
	b := s.builder()
	sel := b.Select(summaryColumns...).From(b.Table(runsTable))
	if f.ConfigName != "" {
		sel.Where(entsql.EQ("config_name", f.ConfigName))
	}
	if f.Status != "" {
		sel.Where(entsql.EQ("status", f.Status))
	}
	q, args := sel.OrderBy(entsql.Desc("started_at"), entsql.Desc("run_id")).Limit(limitOf(f)).Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r                 RunSummary
			started, finished int64
		)
		if err := rows.Scan(&r.RunID, &r.ConfigName, &r.ContainerID, &r.Status, &r.State, &r.JobID,
			&r.AllVerified, &r.Uploaded, &r.Skipped, &r.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started).UTC()
		r.FinishedAt = time.Unix(0, finished).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *EntRunStore) Close() error {
	err := s.drv.Close()
	if s.onClose != nil {
		s.onClose()
	}
	return err
}
