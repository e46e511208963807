package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/gap-analysis/internal/model"
	"github.com/sells-group/gap-analysis/internal/store"
)

var importFile string

// siteImport is the YAML document accepted by the import command.
type siteImport struct {
	Strategy    model.StrategyConfig      `yaml:"strategy"`
	Pages       []model.PageRef           `yaml:"pages"`
	Performance []model.PerformanceRecord `yaml:"performance"`
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a site's strategy, page inventory and performance data",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		doc, err := readSiteImport(importFile)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pages, recs, err := applyImport(ctx, st, doc)
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.String("site_id", doc.Strategy.SiteID),
			zap.Int("pages", pages),
			zap.Int("performance_records", recs),
			zap.String("file", importFile),
		)
		return nil
	},
}

func readSiteImport(path string) (*siteImport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read import file")
	}
	var doc siteImport
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "parse import file")
	}
	if doc.Strategy.SiteID == "" {
		return nil, eris.New("import file: strategy.site_id is required")
	}
	return &doc, nil
}

func applyImport(ctx context.Context, st store.Store, doc *siteImport) (int, int, error) {
	siteID := doc.Strategy.SiteID
	if err := st.PutStrategy(ctx, doc.Strategy); err != nil {
		return 0, 0, eris.Wrap(err, "import strategy")
	}
	pages, err := st.PutOwnPages(ctx, siteID, doc.Pages)
	if err != nil {
		return 0, 0, eris.Wrap(err, "import pages")
	}
	recs, err := st.PutPerformance(ctx, siteID, doc.Performance)
	if err != nil {
		return pages, 0, eris.Wrap(err, "import performance")
	}
	return pages, recs, nil
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to YAML file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
