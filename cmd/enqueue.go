package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gap-analysis/internal/workflow"
)

var enqueueSite string

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue an analysis on the Temporal worker",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("enqueue"); err != nil {
			return err
		}

		c, err := dialTemporal()
		if err != nil {
			return err
		}
		defer c.Close()

		runID, run, err := workflow.Enqueue(ctx, c, cfg.Temporal.TaskQueue, workflow.AnalyzeSiteInput{
			SiteID:     enqueueSite,
			BudgetSecs: cfg.Pipeline.BudgetSecs,
		})
		if err != nil {
			return eris.Wrap(err, "enqueue")
		}

		zap.L().Info("analysis queued",
			zap.String("site_id", enqueueSite),
			zap.String("run_id", runID),
			zap.String("workflow_id", run.GetID()),
		)
		fmt.Println(runID)
		return nil
	},
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueSite, "site", "", "site ID to analyze (required)")
	_ = enqueueCmd.MarkFlagRequired("site")
	rootCmd.AddCommand(enqueueCmd)
}
