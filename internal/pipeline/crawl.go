package pipeline

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/gap-analysis/internal/analysis"
	"github.com/sells-group/gap-analysis/internal/model"
	"github.com/sells-group/gap-analysis/internal/scrape"
	"github.com/sells-group/gap-analysis/internal/search"
)

// Crawl defaults.
const (
	DefaultCrawlQueries    = 10
	DefaultResultsPerQuery = 10
	DefaultMaxCompetitors  = 8
	DefaultCrawlWorkers    = 4
)

// Fetcher retrieves page text for a batch of URLs. Every URL settles into
// exactly one index-aligned outcome.
type Fetcher interface {
	ScrapeAll(ctx context.Context, urls []string, maxConcurrent int) []scrape.Outcome
}

// CrawlConfig bounds the competitive crawl.
type CrawlConfig struct {
	MaxQueries      int
	ResultsPerQuery int
	MaxCompetitors  int
	Concurrency     int
}

func (c CrawlConfig) withDefaults() CrawlConfig {
	if c.MaxQueries <= 0 {
		c.MaxQueries = DefaultCrawlQueries
	}
	if c.ResultsPerQuery <= 0 {
		c.ResultsPerQuery = DefaultResultsPerQuery
	}
	if c.MaxCompetitors <= 0 {
		c.MaxCompetitors = DefaultMaxCompetitors
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultCrawlWorkers
	}
	return c
}

// CrawlOutput is the competitive landscape for a run.
type CrawlOutput struct {
	Targets []model.CrawlTarget
	Pages   []model.CompetitorPage
	// PageQueries maps a fetched page URL to the queries that surfaced it.
	PageQueries map[string][]model.GeneratedQuery
	Searched    int
	LookupFails int
}

// Failed counts the targets whose fetch failed.
func (o *CrawlOutput) Failed() int {
	n := 0
	for _, t := range o.Targets {
		if t.State == model.FetchFailed {
			n++
		}
	}
	return n
}

// CrawlQueries orders queries by category priority, stable within a
// category, and keeps the first n.
func CrawlQueries(qs []model.GeneratedQuery, n int) []int {
	idx := make([]int, len(qs))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return qs[a].Category.Priority() - qs[b].Category.Priority()
	})
	if len(idx) > n {
		idx = idx[:n]
	}
	return idx
}

// CrawlPhase looks up each priority query, selects the most frequently
// ranking competitor URLs and fetches them. A failed lookup or fetch drops
// only that query or URL.
func CrawlPhase(ctx context.Context, ac model.AnalysisContext, queries []model.GeneratedQuery, provider search.Provider, fetcher Fetcher, cfg CrawlConfig) *CrawlOutput {
	cfg = cfg.withDefaults()
	log := zap.L().With(zap.String("site_id", ac.SiteID))
	ctx = search.WithLocale(ctx, search.LocaleOf(ac.Locale, ac.Region))

	picked := CrawlQueries(queries, cfg.MaxQueries)
	results := make([][]model.RankedResult, len(picked))
	failed := make([]bool, len(picked))

	var g errgroup.Group
	g.SetLimit(cfg.Concurrency)
	for i, qi := range picked {
		g.Go(func() error {
			rs, err := provider.Search(ctx, queries[qi].Text, cfg.ResultsPerQuery)
			if err != nil {
				log.Warn("pipeline: result lookup failed",
					zap.String("query", queries[qi].Text),
					zap.Error(err),
				)
				failed[i] = true
				return nil
			}
			results[i] = rs
			return nil
		})
	}
	_ = g.Wait()

	out := &CrawlOutput{Searched: len(picked), PageQueries: make(map[string][]model.GeneratedQuery)}
	for _, f := range failed {
		if f {
			out.LookupFails++
		}
	}

	cands := selectCompetitors(ac, picked, results)
	if len(cands) > cfg.MaxCompetitors {
		cands = cands[:cfg.MaxCompetitors]
	}

	urls := make([]string, len(cands))
	out.Targets = make([]model.CrawlTarget, len(cands))
	for i, c := range cands {
		urls[i] = c.url
		out.Targets[i] = model.CrawlTarget{
			URL:         c.url,
			Domain:      c.domain,
			Appearances: len(c.queries),
			FirstSeen:   c.first,
			State:       model.FetchPending,
		}
	}
	if len(urls) == 0 {
		return out
	}

	outcomes := fetcher.ScrapeAll(ctx, urls, cfg.Concurrency)
	for i, oc := range outcomes {
		t := &out.Targets[i]
		if oc.Err != nil || oc.Page == nil {
			t.State = model.FetchFailed
			if oc.Err != nil {
				t.Error = oc.Err.Error()
			}
			log.Warn("pipeline: competitor fetch failed, dropping url",
				zap.String("url", t.URL),
				zap.Error(oc.Err),
			)
			continue
		}
		t.State = model.FetchFetched
		t.Source = oc.Page.Source

		c := cands[i]
		out.Pages = append(out.Pages, model.CompetitorPage{
			URL:         t.URL,
			Domain:      t.Domain,
			Title:       oc.Page.Title,
			Text:        oc.Page.Text,
			Headings:    oc.Page.Headings,
			HasHeadings: oc.Page.HasHeadings,
			WordCount:   len(strings.Fields(oc.Page.Text)),
			Appearances: len(c.queries),
			Queries:     c.queries,
		})
		qs := make([]model.GeneratedQuery, len(c.queries))
		for j, qi := range c.queries {
			qs[j] = queries[qi]
		}
		out.PageQueries[t.URL] = qs
	}

	log.Info("pipeline: competitive crawl complete",
		zap.Int("queries", out.Searched),
		zap.Int("lookup_failures", out.LookupFails),
		zap.Int("targets", len(out.Targets)),
		zap.Int("fetched", len(out.Pages)),
	)
	return out
}

type candidate struct {
	url     string
	domain  string
	first   int
	queries []int
}

// selectCompetitors unions the result URLs, dropping the owner's and
// excluded domains, and orders them by the number of queries they ranked
// for, then by first appearance.
func selectCompetitors(ac model.AnalysisContext, picked []int, results [][]model.RankedResult) []candidate {
	byURL := make(map[string]*candidate)
	var order []*candidate
	seq := 0
	for i, rs := range results {
		for _, r := range rs {
			u := analysis.CanonicalURL(r.URL)
			dom := analysis.DomainOf(u)
			if dom == "" || excludedDomain(ac, dom) {
				continue
			}
			c, ok := byURL[u]
			if !ok {
				c = &candidate{url: u, domain: dom, first: seq}
				byURL[u] = c
				order = append(order, c)
			}
			seq++
			if !slices.Contains(c.queries, picked[i]) {
				c.queries = append(c.queries, picked[i])
			}
		}
	}
	slices.SortStableFunc(order, func(a, b *candidate) int {
		if len(a.queries) != len(b.queries) {
			return len(b.queries) - len(a.queries)
		}
		return a.first - b.first
	})
	out := make([]candidate, len(order))
	for i, c := range order {
		out[i] = *c
	}
	return out
}

func excludedDomain(ac model.AnalysisContext, dom string) bool {
	if ac.Domain != "" && dom == ac.Domain {
		return true
	}
	return slices.Contains(ac.ExcludedDomains, dom)
}
