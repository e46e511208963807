package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gap-analysis/internal/model"
	"github.com/sells-group/gap-analysis/pkg/firecrawl"
)

// FirecrawlAdapter wraps a Firecrawl client as a Scraper for single-page scrapes.
type FirecrawlAdapter struct {
	client firecrawl.Client
	onCall func(ctx context.Context)
}

// NewFirecrawlAdapter creates a FirecrawlAdapter from a Firecrawl client.
func NewFirecrawlAdapter(client firecrawl.Client) *FirecrawlAdapter {
	return &FirecrawlAdapter{client: client}
}

// WithCallHook registers a function invoked once per billed scrape.
func (f *FirecrawlAdapter) WithCallHook(fn func(ctx context.Context)) *FirecrawlAdapter {
	f.onCall = fn
	return f
}

// Name implements Scraper.
func (f *FirecrawlAdapter) Name() string { return "firecrawl" }

// Supports returns true; Firecrawl can attempt any URL as a fallback.
func (f *FirecrawlAdapter) Supports(_ string) bool { return true }

// Scrape fetches a single URL via Firecrawl's scrape API.
func (f *FirecrawlAdapter) Scrape(ctx context.Context, targetURL string) (*model.PageText, error) {
	resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:             targetURL,
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
	})
	if err != nil {
		return nil, err
	}
	if f.onCall != nil {
		f.onCall(ctx)
	}
	if !resp.Success {
		return nil, eris.New("firecrawl: scrape not successful")
	}
	if code := resp.Data.Metadata.StatusCode; code >= 400 {
		return nil, eris.Errorf("firecrawl: status %d", code)
	}

	pageURL := resp.Data.Metadata.SourceURL
	if pageURL == "" {
		pageURL = targetURL
	}
	return &model.PageText{
		URL:         pageURL,
		Title:       resp.Data.Metadata.Title,
		Text:        resp.Data.Markdown,
		Headings:    MarkdownHeadings(resp.Data.Markdown),
		HasHeadings: true,
		Source:      "firecrawl",
	}, nil
}
