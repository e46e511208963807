package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gap-analysis/internal/cost"
	"github.com/sells-group/gap-analysis/internal/enrich"
	"github.com/sells-group/gap-analysis/internal/pipeline"
	"github.com/sells-group/gap-analysis/internal/progress"
	"github.com/sells-group/gap-analysis/internal/resilience"
	"github.com/sells-group/gap-analysis/internal/scrape"
	"github.com/sells-group/gap-analysis/internal/search"
	"github.com/sells-group/gap-analysis/internal/sink"
	"github.com/sells-group/gap-analysis/internal/store"
	"github.com/sells-group/gap-analysis/internal/textgen"
	anthropicpkg "github.com/sells-group/gap-analysis/pkg/anthropic"
	"github.com/sells-group/gap-analysis/pkg/firecrawl"
	"github.com/sells-group/gap-analysis/pkg/google"
	"github.com/sells-group/gap-analysis/pkg/jina"
	"github.com/sells-group/gap-analysis/pkg/notion"
	"github.com/sells-group/gap-analysis/pkg/perplexity"
	"github.com/sells-group/gap-analysis/pkg/traffic"
)

// pipelineEnv holds the store, the pipeline and everything that must be
// released when a command finishes.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	closers  []func() error
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	for i := len(pe.closers) - 1; i >= 0; i-- {
		if err := pe.closers[i](); err != nil {
			zap.L().Warn("close failed", zap.Error(err))
		}
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates the config for mode, opens the store, builds every
// client and assembles the Pipeline. Extra emitters receive progress events
// alongside the store and the log. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string, extra ...progress.Emitter) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &pipelineEnv{Store: st}

	gen, err := initGenerator(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}

	jinaOpts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL)}
	if cfg.Jina.SearchBaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	jinaClient := jina.NewClient(cfg.Jina.Key, jinaOpts...)

	// Google backs lookup, entity, salience and indexation; without a key
	// those providers stay unconfigured.
	var googleClient google.Client
	if cfg.Google.Key != "" {
		googleClient = google.NewClient(cfg.Google.Key, cfg.Google.SearchEngineID)
	} else {
		zap.L().Debug("GAP_GOOGLE_KEY not set, google signals disabled")
	}

	searchProvider, err := initSearch(jinaClient, googleClient)
	if err != nil {
		env.Close()
		return nil, err
	}

	fetcher, browser := initFetcher(jinaClient)
	if browser != nil {
		env.closers = append(env.closers, browser.Close)
	}

	emitters := progress.Multi{progress.Store{Appender: st}, progress.Logger{}}
	emitters = append(emitters, extra...)

	p := pipeline.New(cfg, pipeline.Deps{
		Strategy:    st,
		Inventory:   st,
		Performance: st,
		Tracker:     st,
		Sink:        initSink(st),
		Progress:    emitters,
		Generator:   gen,
		Search:      searchProvider,
		Fetcher:     pipeline.NewCachedFetcher(fetcher, st, time.Duration(cfg.Crawl.CacheTTLHours)*time.Hour),
		Gateway:     initGateway(googleClient),
	})
	env.Pipeline = p
	return env, nil
}

func initGenerator(ctx context.Context) (textgen.Generator, error) {
	switch cfg.TextGen.Provider {
	case "anthropic":
		var opts []anthropicpkg.Option
		if cfg.Anthropic.BaseURL != "" {
			opts = append(opts, anthropicpkg.WithBaseURL(cfg.Anthropic.BaseURL))
		}
		if cfg.Anthropic.MaxRetries > 0 {
			opts = append(opts, anthropicpkg.WithMaxRetries(cfg.Anthropic.MaxRetries))
		}
		client := anthropicpkg.NewClient(cfg.Anthropic.Key, opts...)
		return textgen.NewAnthropicGenerator(client, cfg.Anthropic.Model, cfg.TextGen.MaxTokens, cfg.TextGen.Temperature), nil
	case "openai":
		return textgen.NewOpenAIGenerator(cfg.OpenAI.Key, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.TextGen.MaxTokens, cfg.TextGen.Temperature), nil
	case "gemini":
		g, err := textgen.NewGeminiGenerator(ctx, cfg.Gemini.Key, "", cfg.Gemini.Model, cfg.TextGen.Temperature)
		if err != nil {
			return nil, eris.Wrap(err, "init gemini")
		}
		return g, nil
	default:
		return nil, eris.Errorf("unsupported textgen provider: %s", cfg.TextGen.Provider)
	}
}

func initSearch(jinaClient jina.Client, googleClient google.Client) (search.Provider, error) {
	def := search.LocaleOf(pipeline.DefaultLocale, "")

	var (
		next     search.Provider
		provider string
	)
	switch cfg.Search.Provider {
	case "jina":
		next = search.NewJinaProvider(jinaClient, def)
	case "google":
		if googleClient == nil {
			return nil, eris.New("search provider google requires GAP_GOOGLE_KEY")
		}
		next = search.NewGoogleProvider(googleClient, def)
		provider = cost.ProviderGoogle
	default:
		return nil, eris.Errorf("unsupported search provider: %s", cfg.Search.Provider)
	}

	return search.NewCached(next, time.Duration(cfg.Search.CacheTTLMins)*time.Minute,
		search.WithRateLimit(cfg.Search.RateLimit),
		search.WithCallHook(func(ctx context.Context, _ string) {
			if provider != "" {
				cost.FromContext(ctx).AddCalls(provider, 1)
			}
		}),
	), nil
}

// initFetcher builds the extraction chain: local HTML first, then Jina
// Reader behind a breaker, then Firecrawl, then an optional headless
// browser. The browser is returned so the caller can close it.
func initFetcher(jinaClient jina.Client) (pipeline.Fetcher, *scrape.BrowserScraper) {
	timeout := time.Duration(cfg.Crawl.TimeoutSecs) * time.Second

	breaker := resilience.NewBreaker("jina", cfg.Jina.BreakerThreshold,
		time.Duration(cfg.Jina.BreakerCooldownSecs)*time.Second)
	scrapers := []scrape.Scraper{
		scrape.NewLocalScraper(cfg.Crawl.UserAgent, timeout),
		scrape.NewJinaAdapter(jinaClient, breaker).WithUsageHook(func(ctx context.Context, tokens int) {
			cost.FromContext(ctx).AddJinaTokens(tokens)
		}),
	}
	if cfg.Firecrawl.Key != "" {
		fc := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
		scrapers = append(scrapers, scrape.NewFirecrawlAdapter(fc).WithCallHook(func(ctx context.Context) {
			cost.FromContext(ctx).AddCalls(cost.ProviderFirecrawl, 1)
		}))
	}

	var browser *scrape.BrowserScraper
	if cfg.Crawl.Browser {
		browser = scrape.NewBrowserScraper("", timeout)
		scrapers = append(scrapers, browser)
	}

	chain := scrape.NewChain(scrapers...).WithMinChars(cfg.Crawl.MinTextChars)
	if cfg.Crawl.RespectRobots {
		chain = chain.WithRobots(scrape.NewRobotsChecker(cfg.Crawl.UserAgent, timeout, time.Duration(cfg.Crawl.CacheTTLHours)*time.Hour))
	}
	return chain, browser
}

func initGateway(googleClient google.Client) *enrich.Gateway {
	secs := func(n int) time.Duration { return time.Duration(n) * time.Second }

	var pplx perplexity.Client
	if cfg.Perplexity.Key != "" {
		pplx = perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
	}
	var trafficClient traffic.Client
	if cfg.Traffic.Key != "" {
		trafficClient = traffic.NewClient(cfg.Traffic.Key,
			traffic.WithBaseURL(cfg.Traffic.BaseURL),
			traffic.WithRateLimit(cfg.Traffic.RateLimit),
		)
	}
	var indexClient google.Client
	if googleClient != nil && cfg.Google.SearchEngineID != "" {
		indexClient = googleClient
	}

	return enrich.NewGateway(
		enrich.NewEntityProvider(googleClient, secs(cfg.Enrichment.EntityTimeoutSecs)),
		enrich.NewSalienceProvider(googleClient, secs(cfg.Enrichment.SalienceTimeoutSecs)),
		enrich.NewTrendProvider(pplx, secs(cfg.Enrichment.TrendTimeoutSecs)),
		enrich.NewIndexationProvider(indexClient, secs(cfg.Enrichment.IndexationTimeoutSecs)),
		enrich.NewTrafficProvider(trafficClient, secs(cfg.Enrichment.TrafficTimeoutSecs)),
	)
}

// initSink always saves to the store and publishes to Notion when a
// recommendation database is configured.
func initSink(st store.Store) sink.Sink {
	sinks := []sink.Sink{sink.NewStoreSink(st)}
	if cfg.Notion.Token != "" && cfg.Notion.RecommendationDB != "" {
		client := notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RateLimit))
		sinks = append(sinks, sink.NewNotionSink(client, cfg.Notion.RecommendationDB))
		zap.L().Info("notion publishing enabled")
	}
	return sink.Multi(sinks...)
}
