package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joseph-ayodele/records-pipeline/internal/export"
	"github.com/joseph-ayodele/records-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/records-pipeline/internal/repository"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Short:   "List recorded runs",
		PreRunE: bindFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("run history is disabled (STORE_DRIVER=none)")
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), repository.ListFilter{
				ConfigName: viper.GetString("config"),
				Status:     viper.GetString("status"),
				Limit:      viper.GetInt("limit"),
			})
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(runs)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Started", "Run", "Config", "Status", "Container", "Job", "Up", "Skip"})
			for _, r := range runs {
				tw.AppendRow(table.Row{r.StartedAt.Local().Format(time.DateTime), r.RunID, r.ConfigName, r.Status, r.ContainerID, r.JobID, r.Uploaded, r.Skipped})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().String("config", "", "only runs of this configuration")
	cmd.Flags().String("status", "", "only runs with this status")
	cmd.Flags().Int("limit", 50, "maximum rows")
	return cmd
}

func entitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entities <run-id>",
		Short: "Print the normalized entities of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("run history is disabled (STORE_DRIVER=none)")
			}
			defer store.Close()
			res, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			b, err := pipeline.ExtractEntities(res).JSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "export [run-id]",
		Short:   "Write one run, or the whole history, to an XLSX workbook",
		Args:    cobra.MaximumNArgs(1),
		PreRunE: bindFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("run history is disabled (STORE_DRIVER=none)")
			}
			defer store.Close()

			svc := export.NewService(store, slog.Default())
			var b []byte
			if len(args) == 1 {
				b, err = svc.RunXLSX(cmd.Context(), args[0])
			} else {
				b, err = svc.HistoryXLSX(cmd.Context(), repository.ListFilter{Limit: viper.GetInt("limit")})
			}
			if err != nil {
				return err
			}
			out := viper.GetString("out")
			if err := os.WriteFile(out, b, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", out)
			return nil
		},
	}
	cmd.Flags().String("out", "recordflow.xlsx", "output file")
	cmd.Flags().Int("limit", 500, "maximum history rows")
	return cmd
}
