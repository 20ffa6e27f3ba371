package cmd

import (
	"fmt"
	"io"

	"github.com/spachava753/actorgen/internal/models"
)

// PrintSummary writes the outcome buckets of a batch.
func PrintSummary(w io.Writer, result *models.BatchResult) {
	fmt.Fprintf(w, "\nRun: %s (%s)\n", result.JobName, result.RunID)
	fmt.Fprintf(w, "Mode: %s\n", result.Mode)
	fmt.Fprintf(w, "Records: %d total, %d processed, %d skipped, %d failed\n",
		result.TotalRecords, result.ProcessedRecords, result.SkippedRecords, result.FailedRecords)
	if result.Cancelled {
		fmt.Fprintln(w, "Cancelled before the task list was exhausted")
	}

	if result.Mode == models.ModeProvision {
		fmt.Fprintf(w, "\nFully generated actors (%d):\n", len(result.FullResults))
		for _, url := range result.FullResults {
			fmt.Fprintf(w, "  %s\n", url)
		}

		fmt.Fprintf(w, "\nPartial results (%d):\n", len(result.PartialResults))
		for _, p := range result.PartialResults {
			fmt.Fprintf(w, "  %s  results=%d\n", p.ActorURL, p.Results)
		}
	}

	if len(result.Failed) > 0 {
		fmt.Fprintf(w, "\nFailed (%d):\n", len(result.Failed))
		for _, f := range result.Failed {
			if f.Error == nil {
				continue
			}
			fmt.Fprintf(w, "  row %d %s: [%s/%s] %s\n", f.Row, f.Name, f.Error.Stage, f.Error.Type, f.Error.Message)
		}
	}

	fmt.Fprintf(w, "\nDuration: %.2fs\n", result.TotalDurationSec)
}
