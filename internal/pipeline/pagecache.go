package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/gap-analysis/internal/model"
	"github.com/sells-group/gap-analysis/internal/scrape"
)

// PageCache stores fetched page text between runs.
type PageCache interface {
	GetCachedPage(ctx context.Context, url string) (*model.PageText, error)
	SetCachedPage(ctx context.Context, url string, page model.PageText, ttl time.Duration) error
}

// CachedFetcher serves pages from cache and fetches only the misses.
type CachedFetcher struct {
	next  Fetcher
	cache PageCache
	ttl   time.Duration
}

// NewCachedFetcher wraps next. A nil cache or non-positive ttl disables
// caching.
func NewCachedFetcher(next Fetcher, cache PageCache, ttl time.Duration) Fetcher {
	if cache == nil || ttl <= 0 {
		return next
	}
	return &CachedFetcher{next: next, cache: cache, ttl: ttl}
}

// ScrapeAll implements Fetcher.
func (c *CachedFetcher) ScrapeAll(ctx context.Context, urls []string, maxConcurrent int) []scrape.Outcome {
	out := make([]scrape.Outcome, len(urls))
	var missURLs []string
	var missIdx []int
	for i, u := range urls {
		page, err := c.cache.GetCachedPage(ctx, u)
		if err != nil {
			zap.L().Debug("pipeline: page cache lookup failed", zap.String("url", u), zap.Error(err))
		}
		if page != nil {
			out[i] = scrape.Outcome{URL: u, Page: page}
			continue
		}
		missURLs = append(missURLs, u)
		missIdx = append(missIdx, i)
	}
	if len(missURLs) == 0 {
		return out
	}

	fetched := c.next.ScrapeAll(ctx, missURLs, maxConcurrent)
	for j, oc := range fetched {
		out[missIdx[j]] = oc
		if oc.Err != nil || oc.Page == nil {
			continue
		}
		if err := c.cache.SetCachedPage(ctx, missURLs[j], *oc.Page, c.ttl); err != nil {
			zap.L().Warn("pipeline: page cache write failed", zap.String("url", oc.URL), zap.Error(err))
		}
	}
	return out
}
