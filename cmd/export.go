package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gap-analysis/internal/report"
)

var (
	exportRunID string
	exportOut   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a completed run to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, exportRunID)
		if err != nil {
			return eris.Wrap(err, "export")
		}
		if run.Result == nil {
			return eris.Errorf("run %s has no result (status %s)", run.ID, run.Status)
		}

		if err := report.SaveXLSX(exportOut, run.Result); err != nil {
			return eris.Wrap(err, "export")
		}

		zap.L().Info("export complete",
			zap.String("run_id", run.ID),
			zap.String("file", exportOut),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportRunID, "run-id", "", "run ID to export (required)")
	exportCmd.Flags().StringVar(&exportOut, "out", "result.xlsx", "output workbook path")
	_ = exportCmd.MarkFlagRequired("run-id")
	rootCmd.AddCommand(exportCmd)
}
