package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gap-analysis/internal/model"
)

func TestCachedFetcher_ServesHitsFetchesMisses(t *testing.T) {
	cache := &memCache{pages: map[string]model.PageText{
		"https://a.com": {URL: "https://a.com", Title: "cached", Text: "from cache"},
	}}
	scraper, chain := newFetcher(map[string]*model.PageText{
		"https://b.com": page("B", "fresh"),
	})
	f := NewCachedFetcher(chain, cache, time.Hour)

	out := f.ScrapeAll(context.Background(), []string{"https://a.com", "https://b.com", "https://down.com"}, 2)
	require.Len(t, out, 3)
	assert.Equal(t, "cached", out[0].Page.Title)
	assert.Equal(t, "fresh", out[1].Page.Text)
	assert.Error(t, out[2].Err)
	assert.Equal(t, "https://down.com", out[2].URL)

	assert.ElementsMatch(t, []string{"https://b.com", "https://down.com"}, scraper.Calls())
	assert.Equal(t, 1, cache.sets)
	assert.Contains(t, cache.pages, "https://b.com")

	// Second pass is served entirely from cache for the reachable pages.
	out = f.ScrapeAll(context.Background(), []string{"https://a.com", "https://b.com"}, 2)
	assert.Equal(t, "fresh", out[1].Page.Text)
	assert.Len(t, scraper.Calls(), 2)
}

func TestNewCachedFetcher_Disabled(t *testing.T) {
	_, chain := newFetcher(nil)
	assert.Same(t, Fetcher(chain), NewCachedFetcher(chain, nil, time.Hour))
	assert.Same(t, Fetcher(chain), NewCachedFetcher(chain, &memCache{}, 0))
}
