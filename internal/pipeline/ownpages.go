package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/gap-analysis/internal/analysis"
	"github.com/sells-group/gap-analysis/internal/model"
)

// OwnPagesOutput is the owner's reachable content.
type OwnPagesOutput struct {
	Pages       []model.OwnPage
	Fetched     int
	Unreachable int
}

// OwnPagesPhase resolves the site inventory into page text. Pages with
// stored text are used as-is; the rest are fetched, and unreachable ones
// are skipped.
func OwnPagesPhase(ctx context.Context, refs []model.PageRef, fetcher Fetcher, concurrency int) *OwnPagesOutput {
	out := &OwnPagesOutput{}
	seen := make(map[string]bool, len(refs))
	pages := make([]*model.OwnPage, 0, len(refs))
	var fetchURLs []string
	var fetchIdx []int

	for _, ref := range refs {
		u := analysis.CanonicalURL(ref.URL)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		p := &model.OwnPage{
			URL:         u,
			Title:       ref.Title,
			Text:        ref.Text,
			Headings:    ref.Headings,
			HasHeadings: len(ref.Headings) > 0,
		}
		pages = append(pages, p)
		if strings.TrimSpace(ref.Text) == "" {
			fetchURLs = append(fetchURLs, u)
			fetchIdx = append(fetchIdx, len(pages)-1)
		}
	}

	if len(fetchURLs) > 0 && fetcher != nil {
		for j, oc := range fetcher.ScrapeAll(ctx, fetchURLs, concurrency) {
			p := pages[fetchIdx[j]]
			if oc.Err != nil || oc.Page == nil {
				zap.L().Warn("pipeline: own page unreachable, skipping",
					zap.String("url", p.URL),
					zap.Error(oc.Err),
				)
				continue
			}
			out.Fetched++
			p.Text = oc.Page.Text
			if p.Title == "" {
				p.Title = oc.Page.Title
			}
			if !p.HasHeadings {
				p.Headings = oc.Page.Headings
				p.HasHeadings = oc.Page.HasHeadings
			}
		}
	}

	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			out.Unreachable++
			continue
		}
		p.WordCount = len(strings.Fields(p.Text))
		out.Pages = append(out.Pages, *p)
	}
	return out
}
