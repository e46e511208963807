// Package cost prices the provider usage of an analysis run.
package cost

import (
	"context"
	"sync"

	"github.com/sells-group/gap-analysis/internal/model"
)

// Rates holds per-provider pricing configuration.
type Rates struct {
	Models     map[string]ModelRate `yaml:"models" mapstructure:"models"`
	Jina       JinaRate             `yaml:"jina" mapstructure:"jina"`
	Perplexity PerQueryRate         `yaml:"perplexity" mapstructure:"perplexity"`
	Google     PerQueryRate         `yaml:"google" mapstructure:"google"`
	Firecrawl  FirecrawlRate        `yaml:"firecrawl" mapstructure:"firecrawl"`
}

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// JinaRate holds Jina Reader pricing.
type JinaRate struct {
	PerMTok float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// PerQueryRate is a flat price per request.
type PerQueryRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// FirecrawlRate holds Firecrawl pricing.
type FirecrawlRate struct {
	PerPage float64 `yaml:"per_page" mapstructure:"per_page"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Tokens prices text-generation usage for a model. Unknown models cost 0.
func (c *Calculator) Tokens(modelName string, u model.TokenUsage) float64 {
	rate, ok := c.rates.Models[modelName]
	if !ok {
		return 0
	}
	in := (float64(u.InputTokens) / 1e6) * rate.Input
	out := (float64(u.OutputTokens) / 1e6) * rate.Output
	cw := (float64(u.CacheWriteTokens) / 1e6) * rate.Input * rate.CacheWriteMul
	cr := (float64(u.CacheReadTokens) / 1e6) * rate.Input * rate.CacheReadMul
	return in + out + cw + cr
}

// Jina computes the cost for Jina Reader token usage.
func (c *Calculator) Jina(tokens int) float64 {
	return (float64(tokens) / 1e6) * c.rates.Jina.PerMTok
}

// Calls prices flat-rate requests for a provider.
func (c *Calculator) Calls(provider string, n int) float64 {
	switch provider {
	case ProviderPerplexity:
		return float64(n) * c.rates.Perplexity.PerQuery
	case ProviderGoogle:
		return float64(n) * c.rates.Google.PerQuery
	case ProviderFirecrawl:
		return float64(n) * c.rates.Firecrawl.PerPage
	}
	return 0
}

// Total prices everything recorded on t.
func (c *Calculator) Total(t *Tally) float64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var sum float64
	for m, u := range t.tokens {
		sum += c.Tokens(m, u)
	}
	for p, n := range t.calls {
		sum += c.Calls(p, n)
	}
	return sum + c.Jina(t.jinaTokens)
}

// Flat-rate provider names recorded on a Tally.
const (
	ProviderPerplexity = "perplexity"
	ProviderGoogle     = "google"
	ProviderFirecrawl  = "firecrawl"
)

// Tally accumulates provider usage across the concurrent phases of a run.
// The zero value is ready to use and a nil Tally discards everything.
type Tally struct {
	mu         sync.Mutex
	tokens     map[string]model.TokenUsage
	calls      map[string]int
	jinaTokens int
}

// AddTokens records text-generation usage for a model.
func (t *Tally) AddTokens(modelName string, u model.TokenUsage) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tokens == nil {
		t.tokens = make(map[string]model.TokenUsage)
	}
	cur := t.tokens[modelName]
	cur.Add(u)
	t.tokens[modelName] = cur
}

// AddCalls records n flat-rate requests to a provider.
func (t *Tally) AddCalls(provider string, n int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.calls == nil {
		t.calls = make(map[string]int)
	}
	t.calls[provider] += n
}

// AddJinaTokens records Jina Reader token usage.
func (t *Tally) AddJinaTokens(n int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jinaTokens += n
}

// Usage returns the summed text-generation usage across models.
func (t *Tally) Usage() model.TokenUsage {
	if t == nil {
		return model.TokenUsage{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var total model.TokenUsage
	for _, u := range t.tokens {
		total.Add(u)
	}
	return total
}

type tallyKey struct{}

// WithTally returns a context carrying t, so shared clients can attribute
// usage to the run that made the call.
func WithTally(ctx context.Context, t *Tally) context.Context {
	return context.WithValue(ctx, tallyKey{}, t)
}

// FromContext returns the run's Tally, or nil.
func FromContext(ctx context.Context) *Tally {
	t, _ := ctx.Value(tallyKey{}).(*Tally)
	return t
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Models: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
			"gpt-4o-mini":                {Input: 0.15, Output: 0.60},
			"gpt-4o":                     {Input: 2.50, Output: 10.00},
			"gemini-2.5-flash":           {Input: 0.30, Output: 2.50},
		},
		Jina:       JinaRate{PerMTok: 0.02},
		Perplexity: PerQueryRate{PerQuery: 0.005},
		Google:     PerQueryRate{PerQuery: 0.005},
		Firecrawl:  FirecrawlRate{PerPage: 0.00633},
	}
}
