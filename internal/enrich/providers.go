package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"

	"github.com/sells-group/gap-analysis/internal/cost"
	"github.com/sells-group/gap-analysis/internal/model"
	"github.com/sells-group/gap-analysis/internal/textgen"
	"github.com/sells-group/gap-analysis/pkg/google"
	"github.com/sells-group/gap-analysis/pkg/perplexity"
	"github.com/sells-group/gap-analysis/pkg/traffic"
)

// Provider names as they appear on signals.
const (
	NameEntity     = "entity"
	NameSalience   = "salience"
	NameTrend      = "trend"
	NameIndexation = "indexation"
	NameTraffic    = "traffic"
)

// languageOf returns the ISO 639-1 base language of a BCP 47 locale,
// defaulting to English.
func languageOf(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return "en"
	}
	base, _ := tag.Base()
	return base.String()
}

// regionOf prefers the explicit region, then the locale's region.
func regionOf(ac model.AnalysisContext) string {
	if ac.Region != "" {
		return strings.ToUpper(ac.Region)
	}
	tag, err := language.Parse(ac.Locale)
	if err != nil {
		return ""
	}
	if r, conf := tag.Region(); conf != language.No {
		return r.String()
	}
	return ""
}

// EntityProvider looks the central entity up in the Knowledge Graph.
type EntityProvider struct {
	client  google.Client
	timeout time.Duration
}

// NewEntityProvider creates an EntityProvider. A nil client is unconfigured.
func NewEntityProvider(client google.Client, timeout time.Duration) *EntityProvider {
	return &EntityProvider{client: client, timeout: timeout}
}

func (p *EntityProvider) Name() string           { return NameEntity }
func (p *EntityProvider) Configured() bool       { return p.client != nil }
func (p *EntityProvider) Timeout() time.Duration { return p.timeout }

// Fetch returns the best-scoring match. No match yields a zero score.
func (p *EntityProvider) Fetch(ctx context.Context, ac model.AnalysisContext) (model.SignalPayload, error) {
	resp, err := p.client.LookupEntity(ctx, ac.CentralEntity, languageOf(ac.Locale), 3)
	if err != nil {
		return model.SignalPayload{}, eris.Wrap(err, "entity lookup")
	}
	rec := &model.EntityRecognition{Name: ac.CentralEntity}
	best := -1.0
	for _, el := range resp.ItemListElement {
		if el.ResultScore <= best {
			continue
		}
		best = el.ResultScore
		rec = &model.EntityRecognition{
			Name:        el.Result.Name,
			Types:       el.Result.Types,
			Description: el.Result.Description,
			URL:         el.Result.URL,
			Score:       el.ResultScore,
		}
		if d := el.Result.DetailedDescription; d != nil {
			rec.Detail = d.ArticleBody
		}
	}
	return model.SignalPayload{Entity: rec}, nil
}

// SalienceProvider measures how central the entity is in the site's own
// description of itself.
type SalienceProvider struct {
	client  google.Client
	timeout time.Duration
}

// NewSalienceProvider creates a SalienceProvider. A nil client is unconfigured.
func NewSalienceProvider(client google.Client, timeout time.Duration) *SalienceProvider {
	return &SalienceProvider{client: client, timeout: timeout}
}

func (p *SalienceProvider) Name() string           { return NameSalience }
func (p *SalienceProvider) Configured() bool       { return p.client != nil }
func (p *SalienceProvider) Timeout() time.Duration { return p.timeout }

// Fetch analyzes the strategy text. An entity the analysis does not find
// scores zero.
func (p *SalienceProvider) Fetch(ctx context.Context, ac model.AnalysisContext) (model.SignalPayload, error) {
	resp, err := p.client.AnalyzeEntities(ctx, strategyText(ac), languageOf(ac.Locale))
	if err != nil {
		return model.SignalPayload{}, eris.Wrap(err, "entity analysis")
	}

	score := &model.SalienceScore{Entity: ac.CentralEntity}
	want := strings.ToLower(ac.CentralEntity)
	for _, e := range resp.Entities {
		name := strings.ToLower(e.Name)
		if name == "" {
			continue
		}
		if name != want && !strings.Contains(name, want) && !strings.Contains(want, name) {
			continue
		}
		score.Salience += e.Salience
		score.Mentions += len(e.Mentions)
	}
	score.Salience = min(score.Salience, 1)
	return model.SignalPayload{Salience: score}, nil
}

func strategyText(ac model.AnalysisContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s. %s. %s.\n", ac.CentralEntity, ac.SourceContext, ac.CentralSearchIntent)
	for _, a := range ac.ContentAreas {
		fmt.Fprintf(&b, "%s.\n", a.Name)
	}
	for _, f := range ac.DeclaredFacts {
		fmt.Fprintf(&b, "%s %s %s.\n", f.Entity, f.Attribute, f.Value)
	}
	return b.String()
}

// TrendProvider asks Perplexity for the entity's seasonal search interest.
type TrendProvider struct {
	client  perplexity.Client
	timeout time.Duration
}

// NewTrendProvider creates a TrendProvider. A nil client is unconfigured.
func NewTrendProvider(client perplexity.Client, timeout time.Duration) *TrendProvider {
	return &TrendProvider{client: client, timeout: timeout}
}

func (p *TrendProvider) Name() string           { return NameTrend }
func (p *TrendProvider) Configured() bool       { return p.client != nil }
func (p *TrendProvider) Timeout() time.Duration { return p.timeout }

var seasonalitySchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "months": {"type": "array", "items": {"type": "number"}, "minItems": 12, "maxItems": 12},
    "note": {"type": "string"}
  },
  "required": ["months"]
}`)

type seasonalityResponse struct {
	Months []float64 `json:"months"`
	Note   string    `json:"note"`
}

// Fetch returns a 12-month interest curve scaled so the peak is 100.
func (p *TrendProvider) Fetch(ctx context.Context, ac model.AnalysisContext) (model.SignalPayload, error) {
	region := regionOf(ac)
	if region == "" {
		region = "worldwide"
	}
	prompt := fmt.Sprintf(
		"Estimate the relative monthly search interest for %q (%s) in %s over a typical year. "+
			"Return JSON with \"months\": 12 numbers from January to December on a 0-100 scale, "+
			"and a one-sentence \"note\" on what drives the seasonality.",
		ac.CentralEntity, ac.CentralSearchIntent, region,
	)
	resp, err := p.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "system", Content: "You are a search-demand analyst. Respond with JSON only."},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: perplexity.JSONSchemaFormat(seasonalitySchema),
	})
	if err != nil {
		return model.SignalPayload{}, eris.Wrap(err, "seasonality lookup")
	}
	cost.FromContext(ctx).AddCalls(cost.ProviderPerplexity, 1)

	var out seasonalityResponse
	if err := json.Unmarshal([]byte(textgen.CleanJSON(resp.Text())), &out); err != nil {
		return model.SignalPayload{}, eris.Wrap(model.ErrExtractionParse, "seasonality response")
	}
	curve, err := seasonalityCurve(out)
	if err != nil {
		return model.SignalPayload{}, err
	}
	return model.SignalPayload{Seasonality: curve}, nil
}

func seasonalityCurve(r seasonalityResponse) (*model.SeasonalityCurve, error) {
	if len(r.Months) != 12 {
		return nil, eris.Wrapf(model.ErrExtractionParse, "seasonality: want 12 months, got %d", len(r.Months))
	}
	curve := &model.SeasonalityCurve{Note: r.Note}
	var peak float64
	for i, v := range r.Months {
		v = max(v, 0)
		curve.Months[i] = v
		if v > peak {
			peak = v
			curve.Peak = i + 1
		}
	}
	if peak == 0 {
		return nil, eris.Wrap(model.ErrExtractionParse, "seasonality: all months zero")
	}
	for i := range curve.Months {
		curve.Months[i] = curve.Months[i] / peak * 100
	}
	return curve, nil
}

// IndexationProvider counts the site's pages in the search index with a
// site: query.
type IndexationProvider struct {
	client  google.Client
	timeout time.Duration
}

// NewIndexationProvider creates an IndexationProvider. A nil client is
// unconfigured.
func NewIndexationProvider(client google.Client, timeout time.Duration) *IndexationProvider {
	return &IndexationProvider{client: client, timeout: timeout}
}

func (p *IndexationProvider) Name() string           { return NameIndexation }
func (p *IndexationProvider) Configured() bool       { return p.client != nil }
func (p *IndexationProvider) Timeout() time.Duration { return p.timeout }

// Fetch reports the estimated number of indexed pages.
func (p *IndexationProvider) Fetch(ctx context.Context, ac model.AnalysisContext) (model.SignalPayload, error) {
	resp, err := p.client.Search(ctx, google.SearchRequest{
		Query:    "site:" + ac.Domain,
		Num:      1,
		Language: languageOf(ac.Locale),
	})
	if err != nil {
		return model.SignalPayload{}, eris.Wrap(err, "indexation lookup")
	}
	cost.FromContext(ctx).AddCalls(cost.ProviderGoogle, 1)

	total := resp.SearchInformation.Total()
	if total == 0 {
		total = int64(len(resp.Items))
	}
	return model.SignalPayload{Indexation: &model.IndexationStatus{
		Indexed:      total > 0,
		IndexedPages: total,
	}}, nil
}

// TrafficProvider reads third-party traffic estimates for the domain.
type TrafficProvider struct {
	client  traffic.Client
	timeout time.Duration
}

// NewTrafficProvider creates a TrafficProvider. A nil client is unconfigured.
func NewTrafficProvider(client traffic.Client, timeout time.Duration) *TrafficProvider {
	return &TrafficProvider{client: client, timeout: timeout}
}

func (p *TrafficProvider) Name() string           { return NameTraffic }
func (p *TrafficProvider) Configured() bool       { return p.client != nil }
func (p *TrafficProvider) Timeout() time.Duration { return p.timeout }

// Fetch returns the domain's latest traffic metrics.
func (p *TrafficProvider) Fetch(ctx context.Context, ac model.AnalysisContext) (model.SignalPayload, error) {
	m, err := p.client.DomainMetrics(ctx, ac.Domain, regionOf(ac))
	if err != nil {
		return model.SignalPayload{}, eris.Wrap(err, "traffic lookup")
	}
	return model.SignalPayload{Traffic: &model.TrafficMetrics{
		MonthlyVisits: m.MonthlyVisits,
		OrganicShare:  m.OrganicShare,
		BounceRate:    m.BounceRate,
		PagesPerVisit: m.PagesPerVisit,
	}}, nil
}
