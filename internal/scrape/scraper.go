// Package scrape fetches page text and heading outlines through a chain of
// content extraction providers.
package scrape

import (
	"context"

	"github.com/sells-group/gap-analysis/internal/model"
)

// Scraper fetches the text of a single URL.
type Scraper interface {
	Scrape(ctx context.Context, targetURL string) (*model.PageText, error)
	Name() string
	Supports(targetURL string) bool
}
