package scrape

import (
	"context"
	"sync/atomic"

	"github.com/sells-group/gap-analysis/internal/model"
	"github.com/sells-group/gap-analysis/pkg/firecrawl"
	"github.com/sells-group/gap-analysis/pkg/jina"
)

// mockScraper implements Scraper for testing.
type mockScraper struct {
	name     string
	supports bool
	page     *model.PageText
	err      error
	calls    atomic.Int32
}

func (m *mockScraper) Name() string           { return m.name }
func (m *mockScraper) Supports(_ string) bool { return m.supports }
func (m *mockScraper) Scrape(_ context.Context, u string) (*model.PageText, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	if m.page == nil {
		return nil, nil
	}
	p := *m.page
	return &p, nil
}

type fakeJina struct {
	resp  *jina.ReadResponse
	err   error
	calls atomic.Int32
}

func (f *fakeJina) Read(_ context.Context, _ string) (*jina.ReadResponse, error) {
	f.calls.Add(1)
	return f.resp, f.err
}

func (f *fakeJina) Search(_ context.Context, _ string, _ ...jina.SearchOption) (*jina.SearchResponse, error) {
	return &jina.SearchResponse{}, nil
}

type fakeFirecrawl struct {
	resp *firecrawl.ScrapeResponse
	err  error
	last firecrawl.ScrapeRequest
}

func (f *fakeFirecrawl) Scrape(_ context.Context, req firecrawl.ScrapeRequest) (*firecrawl.ScrapeResponse, error) {
	f.last = req
	return f.resp, f.err
}
