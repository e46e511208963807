package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/gap-analysis/internal/cost"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	TextGen    TextGenConfig    `yaml:"textgen" mapstructure:"textgen"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Traffic    TrafficConfig    `yaml:"traffic" mapstructure:"traffic"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Temporal   TemporalConfig   `yaml:"temporal" mapstructure:"temporal"`
	Enrichment EnrichmentConfig `yaml:"enrichment" mapstructure:"enrichment"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Crawl      CrawlConfig      `yaml:"crawl" mapstructure:"crawl"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Pricing    cost.Rates       `yaml:"pricing" mapstructure:"pricing"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// TextGenConfig selects the text-generation backend.
type TextGenConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	Model      string `yaml:"model" mapstructure:"model"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	MaxRetries int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// JinaConfig holds Jina Reader and Search settings.
type JinaConfig struct {
	Key                 string `yaml:"key" mapstructure:"key"`
	BaseURL             string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL       string `yaml:"search_base_url" mapstructure:"search_base_url"`
	BreakerThreshold    int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int    `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// FirecrawlConfig holds Firecrawl API settings (fallback only).
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// GoogleConfig holds Google API settings shared by Custom Search, the
// Knowledge Graph and Natural Language.
type GoogleConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	SearchEngineID string `yaml:"search_engine_id" mapstructure:"search_engine_id"`
}

// TrafficConfig holds traffic-estimate API settings.
type TrafficConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// NotionConfig holds Notion credentials and the recommendation database.
type NotionConfig struct {
	Token            string  `yaml:"token" mapstructure:"token"`
	RecommendationDB string  `yaml:"recommendation_db" mapstructure:"recommendation_db"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// TemporalConfig configures the durable worker.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// EnrichmentConfig holds per-provider timeouts for the signal gateway.
type EnrichmentConfig struct {
	EntityTimeoutSecs     int `yaml:"entity_timeout_secs" mapstructure:"entity_timeout_secs"`
	SalienceTimeoutSecs   int `yaml:"salience_timeout_secs" mapstructure:"salience_timeout_secs"`
	TrendTimeoutSecs      int `yaml:"trend_timeout_secs" mapstructure:"trend_timeout_secs"`
	IndexationTimeoutSecs int `yaml:"indexation_timeout_secs" mapstructure:"indexation_timeout_secs"`
	TrafficTimeoutSecs    int `yaml:"traffic_timeout_secs" mapstructure:"traffic_timeout_secs"`
}

// SearchConfig configures the result lookup phase.
type SearchConfig struct {
	Provider        string  `yaml:"provider" mapstructure:"provider"`
	MaxQueries      int     `yaml:"max_queries" mapstructure:"max_queries"`
	ResultsPerQuery int     `yaml:"results_per_query" mapstructure:"results_per_query"`
	CacheTTLMins    int     `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
	RateLimit       float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CrawlConfig configures competitor and own-page fetching.
type CrawlConfig struct {
	MaxCompetitors int    `yaml:"max_competitors" mapstructure:"max_competitors"`
	Concurrency    int    `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CacheTTLHours  int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
	RespectRobots  bool   `yaml:"respect_robots" mapstructure:"respect_robots"`
	Browser        bool   `yaml:"browser" mapstructure:"browser"`
	MinTextChars   int    `yaml:"min_text_chars" mapstructure:"min_text_chars"`
}

// ExtractionConfig configures fact extraction.
type ExtractionConfig struct {
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	MaxChars      int     `yaml:"max_chars" mapstructure:"max_chars"`
	Concurrency   int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// AnalysisConfig holds the categorization, matching and ranking knobs.
type AnalysisConfig struct {
	MatchThreshold     float64       `yaml:"match_threshold" mapstructure:"match_threshold"`
	RootRatio          float64       `yaml:"root_ratio" mapstructure:"root_ratio"`
	CommonRatio        float64       `yaml:"common_ratio" mapstructure:"common_ratio"`
	RareMinSources     int           `yaml:"rare_min_sources" mapstructure:"rare_min_sources"`
	CommonHighRatio    float64       `yaml:"common_high_ratio" mapstructure:"common_high_ratio"`
	DemoteUnmappedGaps bool          `yaml:"demote_unmapped_gaps" mapstructure:"demote_unmapped_gaps"`
	Weights            WeightsConfig `yaml:"weights" mapstructure:"weights"`
	QuickWinMinRank    float64       `yaml:"quick_win_min_rank" mapstructure:"quick_win_min_rank"`
	QuickWinMaxRank    float64       `yaml:"quick_win_max_rank" mapstructure:"quick_win_max_rank"`
	LowCTRMaxRank      float64       `yaml:"low_ctr_max_rank" mapstructure:"low_ctr_max_rank"`
	LowCTRFactor       float64       `yaml:"low_ctr_factor" mapstructure:"low_ctr_factor"`
}

// WeightsConfig holds the dimension weights.
type WeightsConfig struct {
	EAV       float64 `yaml:"eav" mapstructure:"eav"`
	Density   float64 `yaml:"density" mapstructure:"density"`
	Coverage  float64 `yaml:"coverage" mapstructure:"coverage"`
	Structure float64 `yaml:"structure" mapstructure:"structure"`
}

// PipelineConfig configures the run as a whole.
type PipelineConfig struct {
	BudgetSecs int `yaml:"budget_secs" mapstructure:"budget_secs"`
	MinQueries int `yaml:"min_queries" mapstructure:"min_queries"`
	MaxQueries int `yaml:"max_queries" mapstructure:"max_queries"`
}

// MonitoringConfig configures the run health checker started by serve.
type MonitoringConfig struct {
	Enabled                    bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL                 string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs          int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours        int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold       float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	LowConfidenceRateThreshold float64 `yaml:"low_confidence_rate_threshold" mapstructure:"low_confidence_rate_threshold"`
	CostThresholdUSD           float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "gap-analysis.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("textgen.provider", "anthropic")
	v.SetDefault("textgen.max_tokens", 4096)
	v.SetDefault("textgen.temperature", 0.2)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_retries", 2)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.breaker_threshold", 5)
	v.SetDefault("jina.breaker_cooldown_secs", 30)
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("traffic.base_url", "https://api.trafficdata.io")
	v.SetDefault("traffic.rate_limit", 2)
	v.SetDefault("notion.rate_limit", 3)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "gap-analysis")
	v.SetDefault("enrichment.entity_timeout_secs", 10)
	v.SetDefault("enrichment.salience_timeout_secs", 10)
	v.SetDefault("enrichment.trend_timeout_secs", 30)
	v.SetDefault("enrichment.indexation_timeout_secs", 10)
	v.SetDefault("enrichment.traffic_timeout_secs", 15)
	v.SetDefault("search.provider", "jina")
	v.SetDefault("search.max_queries", 10)
	v.SetDefault("search.results_per_query", 10)
	v.SetDefault("search.cache_ttl_mins", 60)
	v.SetDefault("search.rate_limit", 5)
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("crawl.max_competitors", 8)
	v.SetDefault("crawl.concurrency", 4)
	v.SetDefault("crawl.timeout_secs", 45)
	v.SetDefault("crawl.cache_ttl_hours", 24)
	v.SetDefault("crawl.user_agent", "gap-analysis/1.0 (+https://sellsadvisors.com)")
	v.SetDefault("crawl.respect_robots", true)
	v.SetDefault("crawl.browser", false)
	v.SetDefault("crawl.min_text_chars", 200)
	v.SetDefault("extraction.min_confidence", 0.5)
	v.SetDefault("extraction.max_chars", 8000)
	v.SetDefault("extraction.concurrency", 3)
	v.SetDefault("analysis.match_threshold", 0.6)
	v.SetDefault("analysis.root_ratio", 0.8)
	v.SetDefault("analysis.common_ratio", 0.4)
	v.SetDefault("analysis.rare_min_sources", 2)
	v.SetDefault("analysis.common_high_ratio", 0.4)
	v.SetDefault("analysis.demote_unmapped_gaps", false)
	v.SetDefault("analysis.weights.eav", 30)
	v.SetDefault("analysis.weights.density", 25)
	v.SetDefault("analysis.weights.coverage", 25)
	v.SetDefault("analysis.weights.structure", 20)
	v.SetDefault("analysis.quick_win_min_rank", 4)
	v.SetDefault("analysis.quick_win_max_rank", 20)
	v.SetDefault("analysis.low_ctr_max_rank", 5)
	v.SetDefault("analysis.low_ctr_factor", 0.5)
	v.SetDefault("pipeline.budget_secs", 600)
	v.SetDefault("pipeline.min_queries", 5)
	v.SetDefault("pipeline.max_queries", 15)
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.low_confidence_rate_threshold", 0.5)
	v.SetDefault("monitoring.cost_threshold_usd", 50)
	setPricingDefaults(v, cost.DefaultRates())

	// Credentials have no defaults; bind them so the environment alone
	// can supply them.
	for _, key := range []string{
		"anthropic.key", "openai.key", "gemini.key", "jina.key",
		"firecrawl.key", "perplexity.key", "google.key",
		"google.search_engine_id", "traffic.key", "notion.token",
		"notion.recommendation_db", "anthropic.base_url", "openai.base_url",
		"monitoring.webhook_url",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if cfg.Pricing.Models == nil {
		cfg.Pricing.Models = map[string]cost.ModelRate{}
	}
	for model, rate := range cost.DefaultRates().Models {
		if _, ok := cfg.Pricing.Models[model]; !ok {
			cfg.Pricing.Models[model] = rate
		}
	}

	return &cfg, nil
}

// Model names may contain dots, which viper treats as key separators, so
// per-model rates are merged after unmarshalling instead.
func setPricingDefaults(v *viper.Viper, r cost.Rates) {
	v.SetDefault("pricing.jina.per_mtok", r.Jina.PerMTok)
	v.SetDefault("pricing.perplexity.per_query", r.Perplexity.PerQuery)
	v.SetDefault("pricing.firecrawl.per_page", r.Firecrawl.PerPage)
	v.SetDefault("pricing.google.per_query", r.Google.PerQuery)
}

// Validate checks the settings a command mode cannot run without.
func (c *Config) Validate(mode string) error {
	var missing []string
	switch mode {
	case "analyze", "serve", "worker":
		if key := c.TextGenKey(); key == "" {
			missing = append(missing, c.TextGen.Provider+".key")
		}
		switch c.Search.Provider {
		case "google":
			if c.Google.Key == "" || c.Google.SearchEngineID == "" {
				missing = append(missing, "google.key", "google.search_engine_id")
			}
		case "jina":
			if c.Jina.Key == "" {
				missing = append(missing, "jina.key")
			}
		default:
			return eris.Errorf("config: unknown search provider %q", c.Search.Provider)
		}
		if mode == "worker" && c.Temporal.HostPort == "" {
			missing = append(missing, "temporal.host_port")
		}
	case "enqueue":
		if c.Temporal.HostPort == "" {
			missing = append(missing, "temporal.host_port")
		}
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		missing = append(missing, "store.database_url")
	}
	if len(missing) > 0 {
		return eris.Errorf("config: %s requires %s", mode, strings.Join(missing, ", "))
	}
	return nil
}

// TextGenKey returns the API key of the selected text-generation backend.
func (c *Config) TextGenKey() string {
	switch c.TextGen.Provider {
	case "anthropic":
		return c.Anthropic.Key
	case "openai":
		return c.OpenAI.Key
	case "gemini":
		return c.Gemini.Key
	}
	return ""
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
