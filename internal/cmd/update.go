package cmd

import (
	"github.com/spf13/cobra"

	"github.com/spachava753/actorgen/internal/models"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Rewrite description and pricing of previously provisioned actors",
	Long: `Rewrite the description and pricing of the actor named in the actor_url
column of every row. Actors on the update.skip_actor_ids list are left alone.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, models.ModeUpdate)
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().StringVar(&runTasks, "tasks", "", "Task list CSV file or directory (overrides config)")
	updateCmd.Flags().StringVar(&runName, "name", "", "Run name; results go to <output_dir>/<name>")
	updateCmd.Flags().StringVar(&runResumeFrom, "resume-from", "", "Skip rows until one whose actor URL matches")
	updateCmd.Flags().BoolVar(&runStopOnError, "stop-on-error", false, "Abort the batch at the first failed row")
}
