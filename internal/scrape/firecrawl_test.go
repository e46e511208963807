package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gap-analysis/pkg/firecrawl"
)

func TestFirecrawlAdapter_Scrape_Success(t *testing.T) {
	fc := &fakeFirecrawl{resp: &firecrawl.ScrapeResponse{
		Success: true,
		Data: firecrawl.PageData{
			Markdown: "# About Acme\n\nFamily owned since 1990.\n\n### History\n",
			Metadata: firecrawl.Metadata{
				Title:      "About Acme",
				SourceURL:  "https://acme.com/about",
				StatusCode: 200,
			},
		},
	}}
	var calls int
	adapter := NewFirecrawlAdapter(fc).WithCallHook(func(context.Context) { calls++ })

	page, err := adapter.Scrape(context.Background(), "https://acme.com/about")

	require.NoError(t, err)
	assert.Equal(t, "firecrawl", adapter.Name())
	assert.True(t, adapter.Supports(""))
	assert.Equal(t, "firecrawl", page.Source)
	assert.Equal(t, "About Acme", page.Title)
	assert.Equal(t, "https://acme.com/about", page.URL)
	require.Len(t, page.Headings, 2)
	assert.Equal(t, 3, page.Headings[1].Level)
	assert.Equal(t, []string{"markdown"}, fc.last.Formats)
	assert.True(t, fc.last.OnlyMainContent)
	assert.Equal(t, 1, calls)
}

func TestFirecrawlAdapter_Scrape_ClientError(t *testing.T) {
	adapter := NewFirecrawlAdapter(&fakeFirecrawl{err: errors.New("api down")})

	_, err := adapter.Scrape(context.Background(), "https://acme.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "api down")
}

func TestFirecrawlAdapter_Scrape_NotSuccessful(t *testing.T) {
	adapter := NewFirecrawlAdapter(&fakeFirecrawl{resp: &firecrawl.ScrapeResponse{Success: false}})

	_, err := adapter.Scrape(context.Background(), "https://acme.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not successful")
}

func TestFirecrawlAdapter_Scrape_UpstreamStatus(t *testing.T) {
	adapter := NewFirecrawlAdapter(&fakeFirecrawl{resp: &firecrawl.ScrapeResponse{
		Success: true,
		Data:    firecrawl.PageData{Metadata: firecrawl.Metadata{StatusCode: 404}},
	}})

	_, err := adapter.Scrape(context.Background(), "https://acme.com/gone")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
