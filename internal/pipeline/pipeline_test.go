package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gap-analysis/internal/config"
	"github.com/sells-group/gap-analysis/internal/cost"
	"github.com/sells-group/gap-analysis/internal/enrich"
	"github.com/sells-group/gap-analysis/internal/model"
	"github.com/sells-group/gap-analysis/internal/progress"
)

const costQuery = "How much does a roof replacement cost"

func competitorFacts(extra string) string {
	return `{"facts":[
		{"entity":"Roof replacement","attribute":"warranty","value":"10 years","confidence":0.9,"relevant":true},
		{"entity":"Metal roofing","attribute":"lifespan","value":"50 years","confidence":0.8,"relevant":true}` + extra + `
	]}`
}

type fixture struct {
	store    *memStore
	gen      *scriptedGen
	search   *fakeSearch
	scraper  *fakeScraper
	recorder *progress.Recorder
	deps     Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sc := testStrategy()
	store := newMemStore(&sc)
	store.pages = []model.PageRef{{
		URL:   "https://acme-roofing.com/pricing",
		Title: "Pricing",
		Text:  "Every roof replacement carries a 25 year warranty. We serve Austin.",
	}}
	store.perf = []model.PerformanceRecord{{Query: costQuery, Rank: 8, Impressions: 1200, Clicks: 10}}

	gen := &scriptedGen{
		queries: []string{queryJSON(t, goodQueries()...)},
		facts: map[string]string{
			"https://a.com/roof":               competitorFacts(""),
			"https://b.com/roof":               competitorFacts(`,{"entity":"Permit","attribute":"cost","value":"$300","confidence":0.7,"relevant":true}`),
			"https://c.com/roof":               competitorFacts(""),
			"https://acme-roofing.com/pricing": `{"facts":[{"entity":"Roof replacement","attribute":"warranty","value":"25 years","confidence":0.95,"relevant":true}]}`,
		},
	}
	sp := &fakeSearch{results: map[string][]model.RankedResult{
		costQuery:                   ranked("https://a.com/roof", "https://b.com/roof", "https://c.com/roof"),
		"metal vs asphalt shingles": ranked("https://b.com/roof", "https://acme-roofing.com/pricing"),
	}}
	scraper, fetcher := newFetcher(map[string]*model.PageText{
		"https://a.com/roof": page("A roofing", "Roof replacement comes with a ten year warranty. Metal roofing lasts fifty years."),
		"https://b.com/roof": page("B roofing", "Our warranty is ten years. Metal lasts fifty years. Permits cost $300.", model.Heading{Level: 1, Text: "Roofs"}),
		"https://c.com/roof": page("C roofing", "Ten year warranty on every roof. Metal roofs last five decades."),
	})
	rec := &progress.Recorder{}

	return &fixture{
		store:    store,
		gen:      gen,
		search:   sp,
		scraper:  scraper,
		recorder: rec,
		deps: Deps{
			Strategy:    store,
			Inventory:   store,
			Performance: store,
			Tracker:     store,
			Sink:        store,
			Progress:    rec,
			Generator:   gen,
			Search:      sp,
			Fetcher:     fetcher,
		},
	}
}

func testConfig() *config.Config {
	return &config.Config{Pricing: cost.DefaultRates()}
}

func phaseByName(res *model.AnalysisResult, name string) (model.PhaseResult, bool) {
	for _, p := range res.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return model.PhaseResult{}, false
}

func TestRun_HappyPath(t *testing.T) {
	f := newFixture(t)
	p := New(testConfig(), f.deps)

	res, err := p.Run(context.Background(), "acme")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.NotEmpty(t, res.RunID)
	assert.Empty(t, res.Degradations)
	assert.False(t, res.LowConfidence)
	require.Len(t, res.Phases, 7)
	names := make([]string, 0, len(res.Phases))
	for _, ph := range res.Phases {
		names = append(names, ph.Name)
		assert.Equal(t, model.PhaseStatusComplete, ph.Status, ph.Name)
	}
	assert.ElementsMatch(t, []string{PhaseEnrich, PhaseInputs}, names[:2])
	assert.Equal(t, []string{PhaseQueries, PhaseCrawl, PhaseOwnPages, PhaseExtract, PhaseAnalyze}, names[2:])

	assert.Len(t, res.Queries, 5)
	require.NotNil(t, res.Queries[0].Observed, "performance attaches by exact text")
	assert.Len(t, res.Competitors, 3)
	for _, tg := range res.CrawlTargets {
		assert.NotEqual(t, "acme-roofing.com", tg.Domain)
	}
	assert.Equal(t, 1, res.Facts.OwnPages)
	assert.Equal(t, 1, res.Facts.OwnFacts)
	assert.Equal(t, 7, res.Facts.CompetitorFacts)

	var lifespan *model.GapFinding
	for i := range res.Gaps {
		if res.Gaps[i].Assignment.Label.Entity == "Metal roofing" {
			lifespan = &res.Gaps[i]
		}
		assert.NotEqual(t, "Roof replacement", res.Gaps[i].Assignment.Label.Entity, "owner already states the warranty")
	}
	require.NotNil(t, lifespan)
	assert.Equal(t, model.CategoryRoot, lifespan.Assignment.Category)
	assert.Equal(t, model.TierCritical, lifespan.Tier)
	assert.Equal(t, 3, lifespan.Competitors)
	assert.NotEmpty(t, res.Recommendations)

	eav, ok := res.Dimensions.Get(model.DimensionEAVCompleteness)
	require.True(t, ok)
	assert.True(t, eav.Value.IsMeasured())
	assert.True(t, res.Dimensions.Overall.IsMeasured())

	assert.Greater(t, res.Usage.InputTokens, int64(0))
	assert.Greater(t, res.CostUSD, 0.0)
	assert.False(t, res.CompletedAt.Before(res.StartedAt))

	require.Len(t, f.store.saved, 1)
	assert.Same(t, res, f.store.saved[0])
	assert.Equal(t, model.RunStatusComplete, f.store.statuses[len(f.store.statuses)-1])
	assert.Equal(t, model.RunStatusComplete, f.store.runs[res.RunID].Status)
	assert.Len(t, f.store.phases, 7)

	events := f.recorder.Events()
	require.Len(t, events, 14)
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Seq)
		assert.Equal(t, res.RunID, ev.RunID)
	}
	last := events[len(events)-1]
	assert.Equal(t, PhaseAnalyze, last.Phase)
	assert.Equal(t, model.ProgressCompleted, last.Status)
}

func TestRunWithID_UsesGivenID(t *testing.T) {
	f := newFixture(t)
	res, err := New(testConfig(), f.deps).RunWithID(context.Background(), "run-42", "acme")
	require.NoError(t, err)
	assert.Equal(t, "run-42", res.RunID)
	assert.Contains(t, f.store.runs, "run-42")
}

func TestRun_ConfigurationIncomplete(t *testing.T) {
	f := newFixture(t)
	sc := testStrategy()
	sc.SourceContext = ""
	f.store.strategy = &sc

	res, err := New(testConfig(), f.deps).Run(context.Background(), "acme")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, model.KindConfigurationIncomplete, model.KindOf(err))

	assert.Zero(t, f.store.createRun)
	assert.Empty(t, f.gen.prompts)
	assert.Zero(t, f.search.calls)
	assert.Empty(t, f.recorder.Events())
}

func TestRun_MissingStrategy(t *testing.T) {
	f := newFixture(t)
	f.store.strategy = nil

	_, err := New(testConfig(), f.deps).Run(context.Background(), "acme")
	var cie *model.ConfigurationIncompleteError
	require.ErrorAs(t, err, &cie)
	assert.Equal(t, []string{"strategy"}, cie.Missing)
}

func TestRun_BudgetExceeded(t *testing.T) {
	f := newFixture(t)
	f.gen.block = true

	start := time.Now()
	res, err := New(testConfig(), f.deps, WithBudget(50*time.Millisecond)).Run(context.Background(), "acme")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Less(t, time.Since(start), 5*time.Second)

	require.NotEmpty(t, res.Degradations)
	kinds := map[string]model.ErrorKind{}
	for _, d := range res.Degradations {
		kinds[d.Phase] = d.Kind
	}
	assert.Equal(t, model.KindBudgetExceeded, kinds[PhaseQueries])
	assert.Equal(t, model.KindBudgetExceeded, kinds[PhaseCrawl])
	assert.Equal(t, model.KindBudgetExceeded, kinds[PhaseExtract])

	crawl, ok := phaseByName(res, PhaseCrawl)
	require.True(t, ok)
	assert.Equal(t, model.PhaseStatusSkipped, crawl.Status)
	analyze, ok := phaseByName(res, PhaseAnalyze)
	require.True(t, ok)
	assert.Equal(t, model.PhaseStatusComplete, analyze.Status)

	assert.True(t, res.LowConfidence)
	assert.Empty(t, res.Gaps)
	assert.False(t, res.Dimensions.Overall.IsMeasured())
	assert.Zero(t, f.search.calls)
	require.Len(t, f.store.saved, 1)
	assert.Equal(t, model.RunStatusComplete, f.store.runs[res.RunID].Status)
}

func TestRunWithBudget_OverridesConfiguredBudget(t *testing.T) {
	f := newFixture(t)
	f.gen.block = true
	cfg := testConfig()
	cfg.Pipeline.BudgetSecs = 3600

	start := time.Now()
	res, err := New(cfg, f.deps).RunWithBudget(context.Background(), "run-7", "acme", 50*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, "run-7", res.RunID)

	var budgetHit bool
	for _, d := range res.Degradations {
		if d.Kind == model.KindBudgetExceeded {
			budgetHit = true
		}
	}
	assert.True(t, budgetHit)
	require.Len(t, f.store.saved, 1)
}

type failingProvider struct{}

func (failingProvider) Name() string { return "traffic" }

func (failingProvider) Configured() bool { return true }

func (failingProvider) Timeout() time.Duration { return time.Second }

func (failingProvider) Fetch(context.Context, model.AnalysisContext) (model.SignalPayload, error) {
	return model.SignalPayload{}, eris.Wrap(model.ErrProviderUnavailable, "traffic: 503")
}

func TestRun_EnrichmentFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.deps.Gateway = enrich.NewGateway(failingProvider{})

	res, err := New(testConfig(), f.deps).Run(context.Background(), "acme")
	require.NoError(t, err)

	require.Len(t, res.Degradations, 1)
	assert.Equal(t, PhaseEnrich, res.Degradations[0].Phase)
	assert.Equal(t, model.KindProviderUnavailable, res.Degradations[0].Kind)
	require.Len(t, res.Signals, 1)
	assert.Equal(t, model.SignalFailed, res.Signals[0].Status)

	enrichPhase, ok := phaseByName(res, PhaseEnrich)
	require.True(t, ok)
	assert.Equal(t, model.PhaseStatusDegraded, enrichPhase.Status)
	assert.NotEmpty(t, res.Gaps, "later phases still run")
	assert.False(t, res.LowConfidence)
}

func TestRun_NoReachableOwnPages(t *testing.T) {
	f := newFixture(t)
	f.store.pages = []model.PageRef{{URL: "https://acme-roofing.com/gone"}}

	res, err := New(testConfig(), f.deps).Run(context.Background(), "acme")
	require.NoError(t, err)

	assert.True(t, res.Degraded(PhaseOwnPages))
	assert.Zero(t, res.Facts.OwnPages)
	assert.False(t, res.Density.Coverage.IsMeasured())
	for _, ds := range res.Dimensions.Scores {
		assert.False(t, ds.Value.IsMeasured(), ds.Dimension)
	}
	assert.False(t, res.Dimensions.Overall.IsMeasured())

	// Every competitor pair is a gap when the owner states nothing.
	assert.NotEmpty(t, res.Gaps)
	assert.NotEmpty(t, res.Recommendations)
}

func TestRun_PerformanceUnavailable(t *testing.T) {
	f := newFixture(t)
	f.store.perfErr = eris.Wrap(model.ErrProviderUnavailable, "search console down")

	res, err := New(testConfig(), f.deps).Run(context.Background(), "acme")
	require.NoError(t, err)
	assert.True(t, res.Degraded(PhaseInputs))
	assert.Nil(t, res.Queries[0].Observed)
	for _, r := range res.Recommendations {
		assert.NotEqual(t, model.RecommendQuickWin, r.Kind)
		assert.NotEqual(t, model.RecommendLowCTR, r.Kind)
	}
}

func TestRun_SinkFailure(t *testing.T) {
	f := newFixture(t)
	f.store.saveErr = eris.New("disk full")

	res, err := New(testConfig(), f.deps).Run(context.Background(), "acme")
	require.Error(t, err)
	require.NotNil(t, res, "the computed result is still returned")
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, model.RunStatusFailed, f.store.runs[res.RunID].Status)
	assert.Contains(t, f.store.runs[res.RunID].Error, "disk full")
}

func TestRun_CompetitorExtractionFailureLowersConfidence(t *testing.T) {
	f := newFixture(t)
	f.gen.facts["https://b.com/roof"] = "garbage"

	res, err := New(testConfig(), f.deps).Run(context.Background(), "acme")
	require.NoError(t, err)

	assert.True(t, res.Degraded(PhaseExtract))
	assert.Equal(t, 1, res.Facts.FailedPages)
	assert.True(t, res.LowConfidence)
	eav, ok := res.Dimensions.Get(model.DimensionEAVCompleteness)
	require.True(t, ok)
	assert.True(t, eav.LowConfidence)
}

func TestRun_FailedCompetitorExtractionNotCounted(t *testing.T) {
	f := newFixture(t)
	f.gen.facts["https://b.com/roof"] = "garbage"

	res, err := New(testConfig(), f.deps).Run(context.Background(), "acme")
	require.NoError(t, err)

	assert.Len(t, res.Competitors, 3, "the fetched page is still reported")
	assert.Equal(t, 2, res.Facts.CompetitorPages)
	for _, a := range res.Categories {
		assert.Equal(t, 2, a.TotalCompetitors, a.Label)
	}

	var lifespan *model.GapFinding
	for i := range res.Gaps {
		if res.Gaps[i].Assignment.Label.Entity == "Metal roofing" {
			lifespan = &res.Gaps[i]
		}
	}
	require.NotNil(t, lifespan)
	assert.Equal(t, 2, lifespan.Assignment.SourceCount)
	assert.Equal(t, model.CategoryRoot, lifespan.Assignment.Category)
	assert.Equal(t, model.TierCritical, lifespan.Tier)

	for _, pd := range res.Density.PerCompetitor {
		assert.NotEqual(t, "https://b.com/roof", pd.URL)
	}
}

func TestRun_FailedOwnExtractionExcludedFromDensity(t *testing.T) {
	f := newFixture(t)
	f.store.pages = append(f.store.pages, model.PageRef{
		URL:   "https://acme-roofing.com/blog",
		Title: "Blog",
		Text:  strings.Repeat("We install roofs. ", 50),
	})
	f.gen.facts["https://acme-roofing.com/blog"] = "garbage"

	res, err := New(testConfig(), f.deps).Run(context.Background(), "acme")
	require.NoError(t, err)

	assert.True(t, res.Degraded(PhaseExtract))
	assert.Equal(t, 1, res.Facts.OwnPages)
	assert.Equal(t, 1, res.Facts.OwnFacts)
	fps, ok := res.Density.OwnFactsPerSentence.Get()
	require.True(t, ok)
	assert.InDelta(t, 0.5, fps, 0.0001, "one fact over the two sentences of the extracted page")

	eav, ok := res.Dimensions.Get(model.DimensionEAVCompleteness)
	require.True(t, ok)
	assert.True(t, eav.LowConfidence)
}
