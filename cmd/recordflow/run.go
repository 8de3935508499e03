package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joseph-ayodele/records-pipeline/constants"
	"github.com/joseph-ayodele/records-pipeline/internal/common"
	"github.com/joseph-ayodele/records-pipeline/internal/export"
	"github.com/joseph-ayodele/records-pipeline/internal/ingest"
	"github.com/joseph-ayodele/records-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/records-pipeline/internal/poll"
)

func runCmd() *cobra.Command {
	var docs []string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one record through the pipeline",
		Example: `  recordflow run --config kyc --doc ine=./ine.pdf --doc proof_of_address=./cfe.pdf --wait
  recordflow run --config kyc --doc ine=./ine.pdf --process always --poll-timeout none
  recordflow run --config kyc --dir ./client-42 --wait --xlsx client-42.xlsx`,
		PreRunE: bindFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			req, err := requestFromFlags(docs)
			if err != nil {
				return err
			}
			req.Progress = progressPrinter()

			ctx := cmd.Context()
			orch := newOrchestrator(cfg, newClient(cfg))
			res, runErr := orch.Run(ctx, req)

			store, err := openStore(context.WithoutCancel(ctx), cfg)
			if err != nil {
				slog.Warn("history.unavailable", "error", err)
			} else if store != nil {
				defer store.Close()
				if err := store.Save(context.WithoutCancel(ctx), res); err != nil {
					slog.Warn("history.save_failed", "run_id", res.RunID, "error", err)
				}
			}

			if out := viper.GetString("xlsx"); out != "" {
				b, err := export.NewService(nil, slog.Default()).ResultXLSX(res)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, b, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
			}

			if viper.GetBool("json") {
				if err := printJSON(res); err != nil {
					return err
				}
			} else {
				printResult(res)
			}
			return runErr
		},
	}
	cmd.Flags().StringArrayVar(&docs, "doc", nil, "document as type=path (repeatable)")
	cmd.Flags().String("dir", "", "take documents from a directory of <type>.pdf files")
	cmd.Flags().String("xlsx", "", "also write the result as an XLSX workbook")
	addRequestFlags(cmd)
	return cmd
}

// addRequestFlags registers the flags requestFromFlags reads.
func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "configuration name")
	cmd.Flags().StringSlice("allowed-types", nil, "restrict document types instead of fetching the configuration")
	cmd.Flags().Bool("wait", false, "wait for the processing job to finish")
	cmd.Flags().String("process", "on-pass", "create the job: on-pass|always|never")
	cmd.Flags().Bool("process-on-upload", false, "ask the service to process each document as it is uploaded")
	cmd.Flags().String("email", "", "notification email for the record")
	cmd.Flags().String("flow", "", "flow name for the record")
	cmd.Flags().String("embed-interval", "", "embedding poll interval (e.g. 5s)")
	cmd.Flags().String("embed-timeout", "", "embedding wait timeout, or none")
	cmd.Flags().String("poll-interval", "", "completion poll interval (e.g. 10s)")
	cmd.Flags().String("poll-timeout", "", "completion wait timeout, or none")
}

func requestFromFlags(docs []string) (pipeline.Request, error) {
	req := pipeline.Request{
		ConfigName:      viper.GetString("config"),
		Documents:       map[string]string{},
		Wait:            viper.GetBool("wait"),
		ProcessOnUpload: viper.GetBool("process-on-upload"),
		Email:           viper.GetString("email"),
		WithEmail:       viper.GetString("email") != "",
		FlowName:        viper.GetString("flow"),
	}
	if types := viper.GetStringSlice("allowed-types"); len(types) > 0 {
		req.AllowedTypes = types
	}
	if dir := viper.GetString("dir"); dir != "" {
		found, err := ingest.DiscoverDirectory(dir, true)
		if err != nil {
			return req, common.Validation(common.CodeFileNotFound, err.Error(), err)
		}
		for _, f := range found.Files {
			if f.Ignored != "" {
				slog.Warn("ingest.file_ignored", "path", f.Path, "reason", f.Ignored)
			}
		}
		for t, p := range found.Documents {
			req.Documents[t] = p
		}
	}
	for _, d := range docs {
		t, p, ok := strings.Cut(d, "=")
		if !ok || t == "" || p == "" {
			return req, common.Validation("", fmt.Sprintf("--doc %q is not type=path", d), nil)
		}
		req.Documents[t] = p
	}
	policy, ok := constants.ParseProcessPolicy(viper.GetString("process"))
	if !ok {
		return req, common.Validation("", fmt.Sprintf("unknown --process %q", viper.GetString("process")), nil)
	}
	req.Policy = policy

	var err error
	if req.EmbeddingInterval, err = parseInterval(viper.GetString("embed-interval")); err != nil {
		return req, err
	}
	if req.EmbeddingTimeout, err = parseWait(viper.GetString("embed-timeout")); err != nil {
		return req, err
	}
	if req.PollInterval, err = parseInterval(viper.GetString("poll-interval")); err != nil {
		return req, err
	}
	if req.PollTimeout, err = parseWait(viper.GetString("poll-timeout")); err != nil {
		return req, err
	}
	return req, nil
}

// parseWait maps "" to the configured default and "none" to no timeout.
func parseWait(s string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return 0, nil
	case "none", "never", "0":
		return poll.NoTimeout, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, common.Validation("", fmt.Sprintf("invalid duration %q", s), err)
	}
	return d, nil
}

func parseInterval(s string) (time.Duration, error) {
	d, err := parseWait(s)
	if err == nil && d < 0 {
		return 0, common.Validation("", fmt.Sprintf("interval %q must be a positive duration", s), nil)
	}
	return d, err
}

func progressPrinter() poll.ProgressReporter {
	return poll.ProgressFunc(func(p poll.Progress) {
		if p.Total == 0 {
			fmt.Fprintf(os.Stderr, "» %s\n", p.Phase)
			return
		}
		fmt.Fprintf(os.Stderr, "  %s %d/%d (poll %d, %s)\n", p.Phase, p.Done, p.Total, p.Attempt, p.Elapsed.Round(time.Second))
	})
}
