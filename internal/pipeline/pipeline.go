// Package pipeline runs a gap analysis for one site: it resolves the
// strategy, gathers signals, maps the query network, crawls the competitive
// landscape, extracts facts and scores the gaps.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/gap-analysis/internal/analysis"
	"github.com/sells-group/gap-analysis/internal/config"
	"github.com/sells-group/gap-analysis/internal/cost"
	"github.com/sells-group/gap-analysis/internal/enrich"
	"github.com/sells-group/gap-analysis/internal/model"
	"github.com/sells-group/gap-analysis/internal/progress"
	"github.com/sells-group/gap-analysis/internal/search"
	"github.com/sells-group/gap-analysis/internal/textgen"
)

// Phase names, in execution order.
const (
	PhaseEnrich   = "enrich"
	PhaseInputs   = "inputs"
	PhaseQueries  = "queries"
	PhaseCrawl    = "crawl"
	PhaseOwnPages = "own_pages"
	PhaseExtract  = "extract"
	PhaseAnalyze  = "analyze"
)

// DefaultBudget bounds a run's wall-clock time.
const DefaultBudget = 10 * time.Minute

// StrategyReader returns a site's strategy, or nil when none is stored.
type StrategyReader interface {
	GetStrategy(ctx context.Context, siteID string) (*model.StrategyConfig, error)
}

// InventoryReader returns the pages of the site under analysis.
type InventoryReader interface {
	GetOwnPages(ctx context.Context, siteID string) ([]model.PageRef, error)
}

// PerformanceProvider returns real search performance for a site.
type PerformanceProvider interface {
	GetQueries(ctx context.Context, siteID string) ([]model.PerformanceRecord, error)
}

// Sink receives the finished result.
type Sink interface {
	Save(ctx context.Context, result *model.AnalysisResult) error
}

// RunTracker records runs and their phases as they execute.
type RunTracker interface {
	CreateRun(ctx context.Context, runID, siteID string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	FailRun(ctx context.Context, runID, reason string) error
	CreatePhase(ctx context.Context, runID, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error
}

// Deps are the collaborators a Pipeline runs against. Performance, Tracker,
// Sink, Progress and Gateway are optional.
type Deps struct {
	Strategy    StrategyReader
	Inventory   InventoryReader
	Performance PerformanceProvider
	Tracker     RunTracker
	Sink        Sink
	Progress    progress.Emitter
	Generator   textgen.Generator
	Search      search.Provider
	Fetcher     Fetcher
	Gateway     *enrich.Gateway
}

// Pipeline orchestrates one analysis per Run call. It holds no state
// between runs and is safe for concurrent use.
type Pipeline struct {
	cfg      *config.Config
	deps     Deps
	costCalc *cost.Calculator
	budget   time.Duration
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBudget overrides pipeline.budget_secs.
func WithBudget(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.budget = d
		}
	}
}

// WithClock sets the time source for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline.
func New(cfg *config.Config, deps Deps, opts ...Option) *Pipeline {
	if deps.Gateway == nil {
		deps.Gateway = enrich.NewGateway()
	}
	if deps.Progress == nil {
		deps.Progress = progress.Nop
	}
	if deps.Tracker == nil {
		deps.Tracker = nopTracker{}
	}
	p := &Pipeline{
		cfg:      cfg,
		deps:     deps,
		costCalc: cost.NewCalculator(cfg.Pricing),
		budget:   DefaultBudget,
		now:      time.Now,
	}
	if cfg.Pipeline.BudgetSecs > 0 {
		p.budget = time.Duration(cfg.Pipeline.BudgetSecs) * time.Second
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Resolve reads and validates a site's strategy. A missing strategy or a
// missing load-bearing field is a *model.ConfigurationIncompleteError.
func (p *Pipeline) Resolve(ctx context.Context, siteID string) (model.AnalysisContext, error) {
	sc, err := p.deps.Strategy.GetStrategy(ctx, siteID)
	if err != nil {
		return model.AnalysisContext{}, eris.Wrapf(err, "pipeline: read strategy for %s", siteID)
	}
	if sc == nil {
		return model.AnalysisContext{}, &model.ConfigurationIncompleteError{SiteID: siteID, Missing: []string{"strategy"}}
	}
	return ResolveContext(siteID, *sc)
}

// Run analyzes a site under a fresh run ID.
func (p *Pipeline) Run(ctx context.Context, siteID string) (*model.AnalysisResult, error) {
	return p.RunWithID(ctx, "", siteID)
}

// RunWithID analyzes a site. Only an incomplete configuration aborts the
// run without a result; every other failure degrades the affected phase
// and is reported on the result. An error returned alongside a result
// means the result could not be saved.
func (p *Pipeline) RunWithID(ctx context.Context, runID, siteID string) (*model.AnalysisResult, error) {
	return p.RunWithBudget(ctx, runID, siteID, 0)
}

// RunWithBudget is RunWithID with a per-run wall-clock budget. A
// non-positive budget uses the configured one.
func (p *Pipeline) RunWithBudget(ctx context.Context, runID, siteID string, budget time.Duration) (*model.AnalysisResult, error) {
	if budget <= 0 {
		budget = p.budget
	}
	ac, err := p.Resolve(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	log := zap.L().With(zap.String("run_id", runID), zap.String("site_id", siteID))
	log.Info("pipeline: starting analysis", zap.String("entity", ac.CentralEntity), zap.Duration("budget", budget))

	// Bookkeeping outlives the budget so a cut-short run is still recorded.
	persistCtx := context.WithoutCancel(ctx)
	tally := &cost.Tally{}
	ctx = cost.WithTally(ctx, tally)
	bctx, cancel := context.WithTimeoutCause(ctx, budget, model.ErrBudgetExceeded)
	defer cancel()

	if _, err := p.deps.Tracker.CreateRun(persistCtx, runID, siteID); err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	r := &run{
		p:      p,
		ctx:    bctx,
		pctx:   persistCtx,
		log:    log,
		seq:    progress.NewSequencer(runID, p.deps.Progress),
		tally:  tally,
		result: &model.AnalysisResult{RunID: runID, Context: ac, StartedAt: p.now().UTC()},
	}
	r.execute(ac, siteID)

	res := r.result
	res.Usage = tally.Usage()
	res.CostUSD = p.costCalc.Total(tally)
	res.CompletedAt = p.now().UTC()

	if p.deps.Sink != nil {
		if err := p.deps.Sink.Save(persistCtx, res); err != nil {
			log.Error("pipeline: save result failed", zap.Error(err))
			if ferr := p.deps.Tracker.FailRun(persistCtx, runID, err.Error()); ferr != nil {
				log.Warn("pipeline: failed to mark run failed", zap.Error(ferr))
			}
			return res, eris.Wrap(err, "pipeline: save result")
		}
	}
	r.setStatus(model.RunStatusComplete)

	log.Info("pipeline: analysis complete",
		zap.Int("gaps", len(res.Gaps)),
		zap.Int("recommendations", len(res.Recommendations)),
		zap.Int("degradations", len(res.Degradations)),
		zap.Float64("cost_usd", res.CostUSD),
		zap.Duration("elapsed", res.CompletedAt.Sub(res.StartedAt)),
	)
	return res, nil
}

// run carries the state of one execution.
type run struct {
	p      *Pipeline
	ctx    context.Context
	pctx   context.Context
	log    *zap.Logger
	seq    *progress.Sequencer
	tally  *cost.Tally
	mu     sync.Mutex
	result *model.AnalysisResult
}

func (r *run) setStatus(status model.RunStatus) {
	if err := r.p.deps.Tracker.UpdateRunStatus(r.pctx, r.result.RunID, status); err != nil {
		r.log.Warn("pipeline: failed to update status", zap.Error(err))
	}
}

func (r *run) degrade(phase string, kind model.ErrorKind, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Degradations = append(r.result.Degradations, model.Degradation{Phase: phase, Kind: kind, Message: msg})
}

// interrupted reports why the run's context ended, or nil.
func (r *run) interrupted() error {
	if r.ctx.Err() == nil {
		return nil
	}
	return context.Cause(r.ctx)
}

// kindOf classifies a phase error, attributing it to the budget when the
// run's context has ended.
func (r *run) kindOf(err error) model.ErrorKind {
	if cause := r.interrupted(); cause != nil {
		return model.KindOf(cause)
	}
	return model.KindOf(err)
}

// trackPhase records a phase's lifecycle. fn may preset Status to degraded
// or skipped; an error fails the phase.
func (r *run) trackPhase(name string, fn func() (*model.PhaseResult, error)) *model.PhaseResult {
	phase, err := r.p.deps.Tracker.CreatePhase(r.pctx, r.result.RunID, name)
	if err != nil {
		r.log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(err))
	}
	r.seq.Emit(r.pctx, name, model.ProgressStarted, "")

	start := time.Now()
	pr, fnErr := fn()
	duration := time.Since(start)

	if pr == nil {
		pr = &model.PhaseResult{}
	}
	pr.Name = name
	pr.Duration = duration.Milliseconds()

	var status model.ProgressStatus
	switch {
	case fnErr != nil:
		pr.Status = model.PhaseStatusFailed
		pr.Error = fnErr.Error()
		status = model.ProgressFailed
		r.degrade(name, r.kindOf(fnErr), fnErr.Error())
		r.log.Error("pipeline: phase failed", zap.String("phase", name), zap.Duration("duration", duration), zap.Error(fnErr))
	case pr.Status == model.PhaseStatusDegraded:
		status = model.ProgressDegraded
		r.log.Warn("pipeline: phase degraded", zap.String("phase", name), zap.Duration("duration", duration), zap.String("reason", pr.Error))
	case pr.Status == model.PhaseStatusSkipped:
		status = model.ProgressSkipped
		r.log.Info("pipeline: phase skipped", zap.String("phase", name), zap.String("reason", pr.Error))
	default:
		pr.Status = model.PhaseStatusComplete
		status = model.ProgressCompleted
		r.log.Info("pipeline: phase complete", zap.String("phase", name), zap.Duration("duration", duration))
	}

	if phase != nil {
		if err := r.p.deps.Tracker.CompletePhase(r.pctx, phase.ID, pr); err != nil {
			r.log.Warn("pipeline: failed to complete phase", zap.String("phase", name), zap.Error(err))
		}
	}
	r.seq.Emit(r.pctx, name, status, pr.Error)

	r.mu.Lock()
	r.result.Phases = append(r.result.Phases, *pr)
	r.mu.Unlock()
	return pr
}

// degraded marks pr degraded and records why.
func (r *run) degraded(pr *model.PhaseResult, phase string, kind model.ErrorKind, msg string) *model.PhaseResult {
	pr.Status = model.PhaseStatusDegraded
	if pr.Error == "" {
		pr.Error = msg
	} else {
		pr.Error += "; " + msg
	}
	r.degrade(phase, kind, msg)
	return pr
}

// skipIfInterrupted returns a skipped phase result once the budget is
// spent, recording the cut.
func (r *run) skipIfInterrupted(phase string) *model.PhaseResult {
	cause := r.interrupted()
	if cause == nil {
		return nil
	}
	pr := &model.PhaseResult{Status: model.PhaseStatusSkipped, Error: cause.Error()}
	r.degrade(phase, model.KindOf(cause), "not started: "+cause.Error())
	return pr
}

func (r *run) execute(ac model.AnalysisContext, siteID string) {
	cfg := r.p.cfg
	deps := r.p.deps
	var (
		signals  []model.EnrichmentSignal
		perf     []model.PerformanceRecord
		ownRefs  []model.PageRef
		queries  *QueryOutput
		crawl    = &CrawlOutput{PageQueries: map[string][]model.GeneratedQuery{}}
		own      = &OwnPagesOutput{}
		compFail bool
		ownFail  bool
	)

	// Signals and stored inputs are independent.
	r.setStatus(model.RunStatusEnriching)
	var g errgroup.Group
	g.Go(func() error {
		r.trackPhase(PhaseEnrich, func() (*model.PhaseResult, error) {
			signals = deps.Gateway.Collect(r.ctx, ac)
			pr := &model.PhaseResult{Metadata: signalCounts(signals)}
			var failed []string
			for _, s := range signals {
				if s.Status == model.SignalFailed {
					failed = append(failed, s.Provider+": "+s.Error)
				}
			}
			if len(failed) > 0 {
				return r.degraded(pr, PhaseEnrich, model.KindProviderUnavailable, strings.Join(failed, "; ")), nil
			}
			return pr, nil
		})
		return nil
	})
	g.Go(func() error {
		r.trackPhase(PhaseInputs, func() (*model.PhaseResult, error) {
			pr := &model.PhaseResult{}
			if deps.Performance != nil {
				recs, err := deps.Performance.GetQueries(r.ctx, siteID)
				if err != nil {
					r.degraded(pr, PhaseInputs, r.kindOf(err), "performance records unavailable: "+err.Error())
				} else {
					perf = recs
				}
			}
			if deps.Inventory != nil {
				refs, err := deps.Inventory.GetOwnPages(r.ctx, siteID)
				if err != nil {
					r.degraded(pr, PhaseInputs, r.kindOf(err), "site inventory unavailable: "+err.Error())
				} else {
					ownRefs = refs
				}
			}
			pr.Metadata = map[string]any{"performance_records": len(perf), "own_pages": len(ownRefs)}
			return pr, nil
		})
		return nil
	})
	_ = g.Wait()
	r.result.Signals = signals

	r.setStatus(model.RunStatusGenerating)
	r.trackPhase(PhaseQueries, func() (*model.PhaseResult, error) {
		if pr := r.skipIfInterrupted(PhaseQueries); pr != nil {
			return pr, nil
		}
		out, err := GenerateQueries(r.ctx, deps.Generator, ac, signals, perf, QueryConfig{
			MinQueries: cfg.Pipeline.MinQueries,
			MaxQueries: cfg.Pipeline.MaxQueries,
		})
		queries = out
		pr := &model.PhaseResult{}
		if out != nil {
			r.tally.AddTokens(out.Model, out.Usage)
			pr.TokenUsage = out.Usage
			r.result.Queries = out.Queries
			r.result.QueryCoverage = out.Coverage
			pr.Metadata = map[string]any{"queries": len(out.Queries), "attempts": out.Coverage.Attempts}
		}
		if err != nil {
			return r.degraded(pr, PhaseQueries, r.kindOf(err), err.Error()), nil
		}
		if out.Coverage.LowCoverage {
			return r.degraded(pr, PhaseQueries, model.KindExtractionParse, "low coverage: "+out.Coverage.Reason), nil
		}
		return pr, nil
	})

	r.setStatus(model.RunStatusCrawling)
	r.trackPhase(PhaseCrawl, func() (*model.PhaseResult, error) {
		if pr := r.skipIfInterrupted(PhaseCrawl); pr != nil {
			return pr, nil
		}
		if queries == nil || len(queries.Queries) == 0 {
			return &model.PhaseResult{Status: model.PhaseStatusSkipped, Error: "no queries to look up"}, nil
		}
		crawl = CrawlPhase(r.ctx, ac, queries.Queries, deps.Search, deps.Fetcher, CrawlConfig{
			MaxQueries:      cfg.Search.MaxQueries,
			ResultsPerQuery: cfg.Search.ResultsPerQuery,
			MaxCompetitors:  cfg.Crawl.MaxCompetitors,
			Concurrency:     cfg.Crawl.Concurrency,
		})
		r.result.CrawlTargets = crawl.Targets
		r.result.Competitors = crawl.Pages
		pr := &model.PhaseResult{Metadata: map[string]any{
			"queries_searched": crawl.Searched,
			"lookup_failures":  crawl.LookupFails,
			"targets":          len(crawl.Targets),
			"fetched":          len(crawl.Pages),
			"failed":           crawl.Failed(),
		}}
		switch {
		case r.interrupted() != nil:
			compFail = true
			return r.degraded(pr, PhaseCrawl, model.KindOf(r.interrupted()), "crawl cut short: "+r.interrupted().Error()), nil
		case crawl.Searched > 0 && crawl.LookupFails == crawl.Searched:
			compFail = true
			return r.degraded(pr, PhaseCrawl, model.KindProviderUnavailable, "every result lookup failed"), nil
		case len(crawl.Targets) > 0 && len(crawl.Pages) == 0:
			compFail = true
			return r.degraded(pr, PhaseCrawl, model.KindProviderUnavailable, "no competitor page could be fetched"), nil
		}
		return pr, nil
	})

	r.trackPhase(PhaseOwnPages, func() (*model.PhaseResult, error) {
		if pr := r.skipIfInterrupted(PhaseOwnPages); pr != nil {
			return pr, nil
		}
		own = OwnPagesPhase(r.ctx, ownRefs, deps.Fetcher, cfg.Crawl.Concurrency)
		pr := &model.PhaseResult{Metadata: map[string]any{
			"inventory":   len(ownRefs),
			"reachable":   len(own.Pages),
			"fetched":     own.Fetched,
			"unreachable": own.Unreachable,
		}}
		if len(ownRefs) > 0 && len(own.Pages) == 0 {
			return r.degraded(pr, PhaseOwnPages, model.KindProviderUnavailable, "no own page is reachable"), nil
		}
		return pr, nil
	})

	var (
		compFacts, ownFacts []model.FactTriple
		compPages           []model.CompetitorPage
	)
	r.setStatus(model.RunStatusExtracting)
	r.trackPhase(PhaseExtract, func() (*model.PhaseResult, error) {
		if pr := r.skipIfInterrupted(PhaseExtract); pr != nil {
			compFail, ownFail = true, true
			own.Pages = nil
			return pr, nil
		}
		inputs := make([]PageInput, 0, len(crawl.Pages)+len(own.Pages))
		for _, cp := range crawl.Pages {
			inputs = append(inputs, PageInput{URL: cp.URL, Domain: cp.Domain, Title: cp.Title, Text: cp.Text, Kind: model.SourceCompetitor})
		}
		for _, op := range own.Pages {
			inputs = append(inputs, PageInput{URL: op.URL, Domain: ac.Domain, Title: op.Title, Text: op.Text, Kind: model.SourceOwn})
		}
		if len(inputs) == 0 {
			return &model.PhaseResult{Status: model.PhaseStatusSkipped, Error: "no pages to extract"}, nil
		}

		outcomes := ExtractAll(r.ctx, deps.Generator, ac, inputs, ExtractConfig{
			MinConfidence: cfg.Extraction.MinConfidence,
			MaxChars:      cfg.Extraction.MaxChars,
			Concurrency:   cfg.Extraction.Concurrency,
		})

		pr := &model.PhaseResult{}
		var (
			firstErr error
			ownPages []model.OwnPage
		)
		for i, oc := range outcomes {
			r.tally.AddTokens(oc.Model, oc.Usage)
			pr.TokenUsage.Add(oc.Usage)
			r.result.Facts.Dropped += oc.Dropped
			if oc.Err != nil {
				r.result.Facts.FailedPages++
				if firstErr == nil {
					firstErr = oc.Err
				}
				if inputs[i].Kind == model.SourceCompetitor {
					compFail = true
				} else {
					ownFail = true
				}
				continue
			}
			// Only pages that extracted count as observed; a failed page
			// says nothing about which facts it carries.
			if inputs[i].Kind == model.SourceOwn {
				ownPages = append(ownPages, own.Pages[i-len(crawl.Pages)])
				ownFacts = append(ownFacts, oc.Facts...)
			} else {
				compPages = append(compPages, crawl.Pages[i])
				compFacts = append(compFacts, oc.Facts...)
			}
		}
		own.Pages = ownPages

		r.result.Facts.OwnFacts = len(ownFacts)
		r.result.Facts.CompetitorFacts = len(compFacts)
		r.result.Facts.OwnPages = len(own.Pages)
		r.result.Facts.CompetitorPages = len(compPages)
		pr.Metadata = map[string]any{
			"pages":            len(inputs),
			"failed_pages":     r.result.Facts.FailedPages,
			"own_facts":        len(ownFacts),
			"competitor_facts": len(compFacts),
			"dropped":          r.result.Facts.Dropped,
		}
		if firstErr != nil {
			msg := fmt.Sprintf("%d of %d pages failed extraction: %v", r.result.Facts.FailedPages, len(inputs), firstErr)
			return r.degraded(pr, PhaseExtract, r.kindOf(firstErr), msg), nil
		}
		return pr, nil
	})

	r.setStatus(model.RunStatusScoring)
	r.trackPhase(PhaseAnalyze, func() (*model.PhaseResult, error) {
		r.analyze(ac, perf, crawl.PageQueries, compPages, own.Pages, compFacts, ownFacts, compFail, ownFail)
		return &model.PhaseResult{Metadata: map[string]any{
			"categories":      len(r.result.Categories),
			"gaps":            len(r.result.Gaps),
			"recommendations": len(r.result.Recommendations),
			"low_confidence":  r.result.LowConfidence,
		}}, nil
	})
}

// analyze runs the pure scoring stages over whatever has settled. compPages
// and ownPages hold only pages whose extraction succeeded.
func (r *run) analyze(ac model.AnalysisContext, perf []model.PerformanceRecord, pageQueries map[string][]model.GeneratedQuery, compPages []model.CompetitorPage, ownPages []model.OwnPage, compFacts, ownFacts []model.FactTriple, compFail, ownFail bool) {
	cfg := r.p.cfg.Analysis
	th := analysis.Thresholds{
		Match:           cfg.MatchThreshold,
		RootRatio:       cfg.RootRatio,
		CommonRatio:     cfg.CommonRatio,
		RareMinSources:  cfg.RareMinSources,
		CommonHighRatio: cfg.CommonHighRatio,
		DemoteUnmapped:  cfg.DemoteUnmappedGaps,
	}
	if th.Match <= 0 {
		th = analysis.DefaultThresholds()
	}
	n := analysis.NewNormalizer(ac.Locale)

	domains := make([]string, 0, len(compPages))
	for _, cp := range compPages {
		domains = append(domains, cp.Domain)
	}
	cat := analysis.Categorize(compFacts, domains, n, th)
	r.result.Categories = cat.Assignments

	r.result.Gaps = analysis.DetectGaps(analysis.GapInput{
		Context:         ac,
		Categories:      cat,
		CompetitorFacts: compFacts,
		OwnFacts:        ownFacts,
		PageQueries:     pageQueries,
	}, n, th)

	ownAnalyzed := len(ownPages) > 0
	r.result.Density = analysis.ScoreDensity(analysis.DensityInput{
		OwnPages:        ownPages,
		OwnFacts:        ownFacts,
		CompetitorPages: compPages,
		CompetitorFacts: compFacts,
		OwnAnalyzed:     ownAnalyzed,
	}, n)

	lowConf := map[model.Dimension]bool{}
	if compFail || ownFail || r.result.Degraded(PhaseQueries) {
		lowConf[model.DimensionEAVCompleteness] = true
		lowConf[model.DimensionSemanticDensity] = true
		lowConf[model.DimensionEntityCoverage] = true
	}
	w := analysis.Weights{EAV: cfg.Weights.EAV, Density: cfg.Weights.Density, Coverage: cfg.Weights.Coverage, Structure: cfg.Weights.Structure}
	if w.EAV+w.Density+w.Coverage+w.Structure <= 0 {
		w = analysis.DefaultWeights()
	}
	r.result.Dimensions = analysis.ScoreDimensions(analysis.DimensionInput{
		Density:         r.result.Density,
		OwnPages:        ownPages,
		OwnFacts:        ownFacts,
		CompetitorFacts: compFacts,
		OwnAnalyzed:     ownAnalyzed,
		LowConfidence:   lowConf,
	}, n, w)

	rc := analysis.DefaultRankConfig()
	if cfg.QuickWinMaxRank > 0 {
		rc.QuickWinMinRank = cfg.QuickWinMinRank
		rc.QuickWinMaxRank = cfg.QuickWinMaxRank
	}
	if cfg.LowCTRMaxRank > 0 {
		rc.LowCTRMaxRank = cfg.LowCTRMaxRank
	}
	if cfg.LowCTRFactor > 0 {
		rc.LowCTRFactor = cfg.LowCTRFactor
	}

	r.result.LowConfidence = cat.LowConfidence || compFail || r.result.Degraded(PhaseQueries) || r.result.Degraded(PhaseCrawl)
	r.result.Recommendations = analysis.Rank(analysis.RankInput{
		Context:       ac,
		Gaps:          r.result.Gaps,
		Performance:   perf,
		Queries:       r.result.Queries,
		LowConfidence: r.result.LowConfidence,
	}, rc)
}

func signalCounts(signals []model.EnrichmentSignal) map[string]any {
	counts := map[model.SignalStatus]int{}
	for _, s := range signals {
		counts[s.Status]++
	}
	return map[string]any{
		"ok":      counts[model.SignalOK],
		"failed":  counts[model.SignalFailed],
		"skipped": counts[model.SignalSkipped],
	}
}

type nopTracker struct{}

func (nopTracker) CreateRun(_ context.Context, runID, siteID string) (*model.Run, error) {
	return &model.Run{ID: runID, SiteID: siteID, Status: model.RunStatusQueued}, nil
}

func (nopTracker) UpdateRunStatus(context.Context, string, model.RunStatus) error {
	return nil
}

func (nopTracker) FailRun(context.Context, string, string) error {
	return nil
}

func (nopTracker) CreatePhase(context.Context, string, string) (*model.RunPhase, error) {
	return nil, nil
}

func (nopTracker) CompletePhase(context.Context, string, *model.PhaseResult) error {
	return nil
}
