package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/joseph-ayodele/records-pipeline/internal/pipeline"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(res *pipeline.RunResult) {
	fmt.Printf("run %s  status=%s  container=%s", res.RunID, res.Status, res.ContainerID)
	if res.JobID != "" {
		fmt.Printf("  job=%s (%s)", res.JobID, res.JobStatus)
	}
	fmt.Println()

	if len(res.Verification) > 0 {
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.SetTitle("Verification")
		tw.AppendHeader(table.Row{"Type", "Document", "Match", "Found", "Points"})
		for _, v := range res.Verification {
			tw.AppendRow(table.Row{v.Type, v.DocumentID, v.Outcome.Match, v.Outcome.FoundType, strings.Join(v.Outcome.Points, "\n")})
		}
		tw.Render()
	}
	if len(res.Skipped) > 0 {
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.SetTitle("Skipped")
		tw.AppendHeader(table.Row{"Type", "Path", "Reason", "Detail"})
		for _, s := range res.Skipped {
			tw.AppendRow(table.Row{s.Type, s.Path, s.Reason, s.Detail})
		}
		tw.Render()
	}
	if len(res.MissingDocuments) > 0 {
		fmt.Println("missing documents:", strings.Join(res.MissingDocuments, ", "))
	}
	if res.Error != "" {
		fmt.Println("error:", res.Error)
	}
}
