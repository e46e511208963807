package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gap-analysis/internal/model"
	"github.com/sells-group/gap-analysis/internal/scrape"
	"github.com/sells-group/gap-analysis/internal/search"
	"github.com/sells-group/gap-analysis/internal/textgen"
)

// --- Search ---

type fakeSearch struct {
	mu      sync.Mutex
	results map[string][]model.RankedResult
	errs    map[string]error
	locales []search.Locale
	calls   int
}

func (f *fakeSearch) Name() string { return "fake" }

func (f *fakeSearch) Search(ctx context.Context, query string, count int) ([]model.RankedResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.locales = append(f.locales, search.LocaleFrom(ctx, search.Locale{}))
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	rs := f.results[query]
	if len(rs) > count {
		rs = rs[:count]
	}
	return rs, nil
}

func ranked(urls ...string) []model.RankedResult {
	out := make([]model.RankedResult, len(urls))
	for i, u := range urls {
		out[i] = model.RankedResult{Position: i + 1, URL: u}
	}
	return out
}

// --- Scraper fed to a real scrape.Chain ---

type fakeScraper struct {
	mu    sync.Mutex
	pages map[string]*model.PageText
	calls []string
}

func (f *fakeScraper) Name() string { return "fake" }

func (f *fakeScraper) Supports(string) bool { return true }

func (f *fakeScraper) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (*model.PageText, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	p, ok := f.pages[url]
	if !ok {
		return nil, eris.Errorf("fake: %s unreachable", url)
	}
	cp := *p
	return &cp, nil
}

func newFetcher(pages map[string]*model.PageText) (*fakeScraper, *scrape.Chain) {
	fs := &fakeScraper{pages: pages}
	return fs, scrape.NewChain(fs)
}

func page(title, text string, headings ...model.Heading) *model.PageText {
	return &model.PageText{Title: title, Text: text, Headings: headings, HasHeadings: len(headings) > 0}
}

// --- Page cache ---

type memCache struct {
	mu    sync.Mutex
	pages map[string]model.PageText
	sets  int
}

func (m *memCache) GetCachedPage(_ context.Context, url string) (*model.PageText, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pages[url]; ok {
		return &p, nil
	}
	return nil, nil
}

func (m *memCache) SetCachedPage(_ context.Context, url string, p model.PageText, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pages == nil {
		m.pages = map[string]model.PageText{}
	}
	m.pages[url] = p
	m.sets++
	return nil
}

// --- Text generation ---

// scriptedGen answers by schema, and for fact extraction by the page URL
// found in the prompt.
type scriptedGen struct {
	mu      sync.Mutex
	queries []string
	facts   map[string]string
	block   bool
	prompts []textgen.Request
}

func (g *scriptedGen) Model() string { return "claude-haiku-4-5-20251001" }

func (g *scriptedGen) Generate(ctx context.Context, req textgen.Request) (*textgen.Response, error) {
	if g.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, req)
	usage := model.TokenUsage{InputTokens: 1000, OutputTokens: 200}

	switch req.SchemaName {
	case queryGenSchemaLabel:
		if len(g.queries) == 0 {
			return nil, eris.New("no scripted query answer")
		}
		text := g.queries[0]
		if len(g.queries) > 1 {
			g.queries = g.queries[1:]
		}
		return &textgen.Response{Text: text, Usage: usage}, nil
	case extractSchemaLabel:
		for url, body := range g.facts {
			if strings.Contains(req.Prompt, "Page URL: "+url+"\n") {
				return &textgen.Response{Text: body, Usage: usage}, nil
			}
		}
		return &textgen.Response{Text: `{"facts":[]}`, Usage: usage}, nil
	}
	return nil, eris.Errorf("unexpected schema %s", req.SchemaName)
}

func (g *scriptedGen) Requests(schema string) []textgen.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []textgen.Request
	for _, r := range g.prompts {
		if r.SchemaName == schema {
			out = append(out, r)
		}
	}
	return out
}

// --- Stores ---

type memStore struct {
	mu        sync.Mutex
	strategy  *model.StrategyConfig
	pages     []model.PageRef
	perf      []model.PerformanceRecord
	perfErr   error
	runs      map[string]*model.Run
	statuses  []model.RunStatus
	phases    []model.PhaseResult
	saved     []*model.AnalysisResult
	saveErr   error
	reads     int
	createRun int
}

func newMemStore(sc *model.StrategyConfig) *memStore {
	return &memStore{strategy: sc, runs: map[string]*model.Run{}}
}

func (m *memStore) GetStrategy(_ context.Context, _ string) (*model.StrategyConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	return m.strategy, nil
}

func (m *memStore) GetOwnPages(context.Context, string) ([]model.PageRef, error) {
	return m.pages, nil
}

func (m *memStore) GetQueries(context.Context, string) ([]model.PerformanceRecord, error) {
	return m.perf, m.perfErr
}

func (m *memStore) CreateRun(_ context.Context, runID, siteID string) (*model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createRun++
	r := &model.Run{ID: runID, SiteID: siteID, Status: model.RunStatusQueued}
	m.runs[runID] = r
	return r, nil
}

func (m *memStore) UpdateRunStatus(_ context.Context, runID string, status model.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	m.runs[runID].Status = status
	return nil
}

func (m *memStore) FailRun(_ context.Context, runID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runID].Status = model.RunStatusFailed
	m.runs[runID].Error = reason
	return nil
}

func (m *memStore) CreatePhase(_ context.Context, runID, name string) (*model.RunPhase, error) {
	return &model.RunPhase{ID: runID + "/" + name, RunID: runID, Name: name, Status: model.PhaseStatusRunning}, nil
}

func (m *memStore) CompletePhase(_ context.Context, _ string, pr *model.PhaseResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phases = append(m.phases, *pr)
	return nil
}

func (m *memStore) Save(_ context.Context, res *model.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, res)
	return nil
}
