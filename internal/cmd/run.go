package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spachava753/actorgen/internal/executor"
	"github.com/spachava753/actorgen/internal/models"
)

var (
	runTasks       string
	runName        string
	runResumeFrom  string
	runStopOnError bool
	runOnExisting  string
)

var runCmd = &cobra.Command{
	Use:     "run",
	Aliases: []string{"provision"},
	Short:   "Provision an actor for every row of the task list",
	Long: `Provision an actor for every row of the task list, in order.

Examples:
  actorgen run                                  # creator.yaml in the current directory
  actorgen run --config jobs/news.yaml
  actorgen run --resume-from https://console.apify.com/actors/tasks/abc123`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, models.ModeProvision)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runTasks, "tasks", "", "Task list CSV file or directory (overrides config)")
	runCmd.Flags().StringVar(&runName, "name", "", "Run name; results go to <output_dir>/<name>")
	runCmd.Flags().StringVar(&runResumeFrom, "resume-from", "", "Skip rows until one whose task or actor URL matches")
	runCmd.Flags().BoolVar(&runStopOnError, "stop-on-error", false, "Abort the batch at the first failed row")
	runCmd.Flags().StringVar(&runOnExisting, "on-existing", "", "What to do with an existing actor directory (fail, overwrite)")
}

func runBatch(cmd *cobra.Command, mode models.Mode) error {
	cfg, err := loadJobConfig(cmd, mode, applyRunFlags)
	if err != nil {
		return err
	}

	closer, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	result, err := executor.RunWithConfig(cmd.Context(), cfg)
	if result != nil {
		PrintSummary(cmd.OutOrStdout(), result)
	}
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}

	if result.FailedRecords > 0 || result.Cancelled {
		return ErrIncomplete
	}
	return nil
}

// applyRunFlags copies the batch flags that were set onto cfg.
func applyRunFlags(cfg *models.JobConfig) {
	if runTasks != "" {
		cfg.TasksPath = runTasks
	}
	if runName != "" {
		name := runName
		cfg.Name = &name
	}
	if runResumeFrom != "" {
		cfg.ResumeFrom = runResumeFrom
	}
	if runStopOnError {
		cfg.ContinueOnError = false
	}
	if runOnExisting != "" {
		cfg.OnExisting = models.ExistingPolicy(runOnExisting)
	}
}
