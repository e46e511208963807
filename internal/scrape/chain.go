package scrape

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/gap-analysis/internal/model"
)

// ErrDisallowed is returned when robots.txt forbids fetching a URL.
var ErrDisallowed = eris.New("scrape: disallowed by robots.txt")

// Chain tries scrapers in priority order, returning the first success.
type Chain struct {
	scrapers []Scraper
	robots   *RobotsChecker
	minChars int
}

// NewChain creates a Chain. Scrapers are tried in order; the first
// successful result is returned.
func NewChain(scrapers ...Scraper) *Chain {
	return &Chain{scrapers: scrapers}
}

// WithRobots makes the chain consult robots.txt before any scraper runs.
func (c *Chain) WithRobots(r *RobotsChecker) *Chain {
	c.robots = r
	return c
}

// WithMinChars rejects results whose text is shorter than n characters and
// moves on to the next scraper.
func (c *Chain) WithMinChars(n int) *Chain {
	c.minChars = n
	return c
}

// Scrape tries each scraper in order for a single URL.
func (c *Chain) Scrape(ctx context.Context, targetURL string) (*model.PageText, error) {
	if c.robots != nil {
		ok, err := c.robots.Allowed(ctx, targetURL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, eris.Wrapf(ErrDisallowed, "scrape: %s", targetURL)
		}
	}

	var lastErr error
	for _, s := range c.scrapers {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "scrape: canceled")
		}
		if !s.Supports(targetURL) {
			continue
		}
		page, err := s.Scrape(ctx, targetURL)
		if err == nil && page != nil && len([]rune(page.Text)) < c.minChars {
			err = eris.Errorf("%s: text too short (%d chars)", s.Name(), len([]rune(page.Text)))
		}
		if err != nil {
			zap.L().Debug("scrape: scraper failed, trying next",
				zap.String("scraper", s.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		if page == nil {
			continue
		}
		if page.URL == "" {
			page.URL = targetURL
		}
		if page.Source == "" {
			page.Source = s.Name()
		}
		if page.FetchedAt.IsZero() {
			page.FetchedAt = time.Now().UTC()
		}
		return page, nil
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all scrapers failed")
	}
	return nil, eris.Errorf("scrape: no suitable scraper for url: %s", targetURL)
}

// Outcome is the settled fetch of one URL. Exactly one of Page and Err is set.
type Outcome struct {
	URL  string
	Page *model.PageText
	Err  error
}

// ScrapeAll fetches urls in parallel with at most maxConcurrent in flight.
// Outcomes are index-aligned with urls; a failure never stops the batch.
func (c *Chain) ScrapeAll(ctx context.Context, urls []string, maxConcurrent int) []Outcome {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	out := make([]Outcome, len(urls))

	var g errgroup.Group
	g.SetLimit(maxConcurrent)
	for i, u := range urls {
		g.Go(func() error {
			page, err := c.Scrape(ctx, u)
			out[i] = Outcome{URL: u, Page: page, Err: err}
			if err != nil {
				zap.L().Debug("scrape: chain failed for url",
					zap.String("url", u),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
