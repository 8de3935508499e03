package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joseph-ayodele/records-pipeline/internal/async"
	"github.com/joseph-ayodele/records-pipeline/internal/manifest"
)

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "batch <manifest.yaml>",
		Short:   "Run every record in a YAML manifest on a worker pool",
		Args:    cobra.ExactArgs(1),
		PreRunE: bindFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			entries, err := manifest.Load(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			var mu sync.Mutex
			names := map[string]string{}
			var outcomes []async.Outcome
			sink := async.SinkFunc(func(ctx context.Context, out async.Outcome) {
				if store != nil && out.Result != nil {
					// ctx may already be cancelled; history is still worth keeping
					if err := store.Save(context.WithoutCancel(ctx), out.Result); err != nil {
						slog.Warn("history.save_failed", "run_id", out.Result.RunID, "error", err)
					}
				}
				mu.Lock()
				outcomes = append(outcomes, out)
				mu.Unlock()
			})

			orch := newOrchestrator(cfg, newClient(cfg))
			q := async.NewRunQueue(orch, slog.Default(),
				async.WithWorkers(viper.GetInt("workers")),
				async.WithRunTimeout(viper.GetDuration("run-timeout")),
				async.WithSink(sink),
			)
			for _, e := range entries {
				id, err := q.Enqueue(ctx, e.Request)
				if err != nil {
					q.Shutdown(ctx)
					return err
				}
				mu.Lock()
				names[id] = e.Name
				mu.Unlock()
			}
			q.Shutdown(ctx)

			if viper.GetBool("json") {
				return printJSON(outcomes)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Name", "Status", "Container", "Job", "Verified", "Error"})
			failed := 0
			for _, o := range outcomes {
				row := table.Row{names[o.Job.ID], "", "", "", "", ""}
				if o.Result != nil {
					row[1], row[2], row[3], row[4] = o.Result.Status, o.Result.ContainerID, o.Result.JobID, o.Result.AllVerified
				}
				if o.Err != nil {
					failed++
					row[5] = o.Err.Error()
				}
				tw.AppendRow(row)
			}
			tw.Render()
			if failed > 0 {
				return fmt.Errorf("%d of %d runs failed", failed, len(outcomes))
			}
			return nil
		},
	}
	cmd.Flags().Int("workers", 2, "concurrent runs")
	cmd.Flags().Duration("run-timeout", 0, "bound on each run (0 = none)")
	return cmd
}
