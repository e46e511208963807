package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gap-analysis/internal/model"
)

func TestChain_Scrape_FirstSuccess(t *testing.T) {
	s1 := &mockScraper{
		name: "primary", supports: true,
		page: &model.PageText{URL: "https://acme.com", Title: "Home", Text: "content"},
	}
	s2 := &mockScraper{name: "fallback", supports: true}

	page, err := NewChain(s1, s2).Scrape(context.Background(), "https://acme.com")

	require.NoError(t, err)
	assert.Equal(t, "primary", page.Source)
	assert.Equal(t, "https://acme.com", page.URL)
	assert.False(t, page.FetchedAt.IsZero())
	assert.EqualValues(t, 0, s2.calls.Load())
}

func TestChain_Scrape_FallbackOnError(t *testing.T) {
	s1 := &mockScraper{name: "primary", supports: true, err: errors.New("failed")}
	s2 := &mockScraper{
		name: "fallback", supports: true,
		page: &model.PageText{Title: "Home", Text: "content"},
	}

	page, err := NewChain(s1, s2).Scrape(context.Background(), "https://acme.com")

	require.NoError(t, err)
	assert.Equal(t, "fallback", page.Source)
	assert.Equal(t, "https://acme.com", page.URL)
}

func TestChain_Scrape_AllFail(t *testing.T) {
	s1 := &mockScraper{name: "a", supports: true, err: errors.New("a down")}
	s2 := &mockScraper{name: "b", supports: true, err: errors.New("b down")}

	_, err := NewChain(s1, s2).Scrape(context.Background(), "https://acme.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "all scrapers failed")
	assert.Contains(t, err.Error(), "b down")
}

func TestChain_Scrape_SkipsUnsupported(t *testing.T) {
	s1 := &mockScraper{name: "a", supports: false}
	s2 := &mockScraper{name: "b", supports: true, page: &model.PageText{Text: "ok"}}

	page, err := NewChain(s1, s2).Scrape(context.Background(), "https://acme.com")

	require.NoError(t, err)
	assert.Equal(t, "b", page.Source)
	assert.EqualValues(t, 0, s1.calls.Load())
}

func TestChain_Scrape_NoScrapers(t *testing.T) {
	_, err := NewChain().Scrape(context.Background(), "https://acme.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no suitable scraper")
}

func TestChain_Scrape_MinChars(t *testing.T) {
	short := &mockScraper{name: "short", supports: true, page: &model.PageText{Text: "tiny"}}
	long := &mockScraper{name: "long", supports: true, page: &model.PageText{Text: strings.Repeat("x", 50)}}

	page, err := NewChain(short, long).WithMinChars(20).Scrape(context.Background(), "https://acme.com")

	require.NoError(t, err)
	assert.Equal(t, "long", page.Source)
}

func TestChain_Scrape_CanceledContext(t *testing.T) {
	s := &mockScraper{name: "a", supports: true, page: &model.PageText{Text: "ok"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewChain(s).Scrape(ctx, "https://acme.com")

	require.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, s.calls.Load())
}

func TestChain_Scrape_RobotsDisallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := &mockScraper{name: "a", supports: true, page: &model.PageText{Text: "ok"}}
	chain := NewChain(s).WithRobots(NewRobotsChecker("", time.Second, time.Minute))

	_, err := chain.Scrape(context.Background(), srv.URL+"/private/page")
	require.ErrorIs(t, err, ErrDisallowed)
	assert.EqualValues(t, 0, s.calls.Load())

	page, err := chain.Scrape(context.Background(), srv.URL+"/public")
	require.NoError(t, err)
	assert.Equal(t, "a", page.Source)
}

func TestChain_ScrapeAll(t *testing.T) {
	s := &switchScraper{fail: map[string]bool{"https://b.com": true}}
	urls := []string{"https://a.com", "https://b.com", "https://c.com"}

	out := NewChain(s).ScrapeAll(context.Background(), urls, 2)

	require.Len(t, out, 3)
	for i, u := range urls {
		assert.Equal(t, u, out[i].URL)
	}
	require.NoError(t, out[0].Err)
	assert.Equal(t, "https://a.com", out[0].Page.URL)
	require.Error(t, out[1].Err)
	assert.Nil(t, out[1].Page)
	require.NoError(t, out[2].Err)
}

func TestChain_ScrapeAll_Empty(t *testing.T) {
	out := NewChain(&mockScraper{name: "a", supports: true}).ScrapeAll(context.Background(), nil, 0)
	assert.Empty(t, out)
}

type switchScraper struct {
	fail map[string]bool
}

func (s *switchScraper) Name() string           { return "switch" }
func (s *switchScraper) Supports(_ string) bool { return true }
func (s *switchScraper) Scrape(_ context.Context, u string) (*model.PageText, error) {
	if s.fail[u] {
		return nil, errors.New("unreachable")
	}
	return &model.PageText{URL: u, Text: "body of " + u}, nil
}
