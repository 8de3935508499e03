package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joseph-ayodele/records-pipeline/internal/async"
	"github.com/joseph-ayodele/records-pipeline/internal/ingest"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <inbox>",
		Short: "Run every record directory dropped into an inbox",
		Long: `watch treats each subdirectory of the inbox as one record. Once a subdirectory
has been quiet for --debounce, its <type>.pdf files are run through the pipeline
with the watch flags as the request template. Stop with Ctrl-C; runs in flight
are allowed --grace to finish.`,
		Args:    cobra.ExactArgs(1),
		PreRunE: bindFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// the template must be valid before anything lands in the inbox
			template, err := requestFromFlags(nil)
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

			sink := async.SinkFunc(func(ctx context.Context, out async.Outcome) {
				if out.Result == nil {
					return
				}
				slog.Info("watch.run.finished", "job_id", out.Job.ID, "run_id", out.Result.RunID, "status", out.Result.Status, "error", out.Err)
				if store != nil {
					if err := store.Save(context.WithoutCancel(ctx), out.Result); err != nil {
						slog.Warn("history.save_failed", "run_id", out.Result.RunID, "error", err)
					}
				}
			})
			orch := newOrchestrator(cfg, newClient(cfg))
			q := async.NewRunQueue(orch, slog.Default(),
				async.WithWorkers(viper.GetInt("workers")),
				async.WithSink(sink),
			)

			ready, errs, err := ingest.WatchInbox(ctx, ingest.WatchConfig{
				Root:        args[0],
				InitialScan: viper.GetBool("initial-scan"),
				Debounce:    viper.GetDuration("debounce"),
				SkipHidden:  true,
			}, slog.Default())
			if err != nil {
				return fmt.Errorf("watch %s: %w", args[0], err)
			}
			slog.Info("watch.started", "inbox", args[0])

			for ready != nil || errs != nil {
				select {
				case dir, ok := <-ready:
					if !ok {
						ready = nil
						continue
					}
					found, err := ingest.DiscoverDirectory(dir, true)
					if err != nil || len(found.Documents) == 0 {
						slog.Warn("watch.record.empty", "dir", dir, "error", err)
						continue
					}
					req := template
					req.Documents = found.Documents
					if req.FlowName == "" {
						req.FlowName = filepath.Base(dir)
					}
					if _, err := q.Enqueue(ctx, req); err != nil {
						slog.Warn("watch.enqueue_failed", "dir", dir, "error", err)
					}
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					slog.Warn("watch.error", "error", err)
				}
			}

			grace, cancel := context.WithTimeout(context.Background(), viper.GetDuration("grace"))
			defer cancel()
			q.Shutdown(grace)
			return nil
		},
	}
	cmd.Flags().Duration("debounce", 3*time.Second, "quiet period before a record directory is run")
	cmd.Flags().Bool("initial-scan", false, "also run record directories already in the inbox")
	cmd.Flags().Int("workers", 2, "concurrent runs")
	cmd.Flags().Duration("grace", 30*time.Second, "time allowed for in-flight runs on shutdown")
	addRequestFlags(cmd)
	return cmd
}
