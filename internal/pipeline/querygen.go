package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gap-analysis/internal/analysis"
	"github.com/sells-group/gap-analysis/internal/model"
	"github.com/sells-group/gap-analysis/internal/textgen"
)

// Query set bounds and the minimum category spread.
const (
	DefaultMinQueries   = 5
	DefaultMaxQueries   = 15
	minQueryCategories  = 3
	queryGenMaxTokens   = 4096
	queryGenSchemaLabel = "query_network"
)

const queryGenSystem = `You are a search strategist mapping the query network around a business.
You think in entities, attributes and user intents, never in single bare keywords.`

const queryGenPrompt = `%s
%s
Generate between %d and %d search queries real users would type when researching this business's market.
Spread them across these categories:
- attribute_gap: queries about specific attributes of the central entity users compare on
- intent_aligned: queries expressing the central search intent through one of the intent predicates
- comparison: queries comparing options, providers or alternatives
- process_expertise: queries about how something works or how to do it
- trust_authority: queries about credibility, reviews, certifications or guarantees

Use at least %d different categories. Every query must name the content area it belongs to (exactly as listed above)
and the intent predicate it serves. Classify each query's intent as informational, commercial, transactional or navigational.`

var queryGenSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "queries": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "text": {"type": "string"},
          "intent": {"type": "string", "enum": ["informational", "commercial", "transactional", "navigational"]},
          "content_area": {"type": "string"},
          "predicate": {"type": "string"},
          "category": {"type": "string", "enum": ["attribute_gap", "intent_aligned", "process_expertise", "comparison", "trust_authority"]}
        },
        "required": ["text", "intent", "content_area", "predicate", "category"]
      }
    }
  },
  "required": ["queries"]
}`)

type rawQuery struct {
	Text        string `json:"text"`
	Intent      string `json:"intent"`
	ContentArea string `json:"content_area"`
	Predicate   string `json:"predicate"`
	Category    string `json:"category"`
}

type queryEnvelope struct {
	Queries []rawQuery `json:"queries"`
}

// QueryConfig bounds the generated query set.
type QueryConfig struct {
	MinQueries int
	MaxQueries int
}

// QueryOutput is the query network for a run.
type QueryOutput struct {
	Queries  []model.GeneratedQuery
	Coverage model.QueryCoverage
	Usage    model.TokenUsage
	Model    string
}

// GenerateQueries asks gen for the query network in one structured call.
// A set spanning too few categories, too few queries, or carrying queries
// without a content area is retried once; the second answer is accepted
// as-is and flagged low coverage. An error is returned only when no
// answer could be decoded at all.
func GenerateQueries(ctx context.Context, gen textgen.Generator, ac model.AnalysisContext, signals []model.EnrichmentSignal, perf []model.PerformanceRecord, cfg QueryConfig) (*QueryOutput, error) {
	if cfg.MinQueries <= 0 {
		cfg.MinQueries = DefaultMinQueries
	}
	if cfg.MaxQueries < cfg.MinQueries {
		cfg.MaxQueries = max(DefaultMaxQueries, cfg.MinQueries)
	}

	notes := FormatSignals(signals)
	if notes != "" {
		notes = "\nWhat we already know about the market:\n" + notes + "\n"
	}
	req := textgen.Request{
		System:     queryGenSystem,
		Prompt:     fmt.Sprintf(queryGenPrompt, FormatContext(ac), notes, cfg.MinQueries, cfg.MaxQueries, minQueryCategories),
		Schema:     queryGenSchema,
		SchemaName: queryGenSchemaLabel,
		MaxTokens:  queryGenMaxTokens,
	}

	var (
		env      queryEnvelope
		accepted []model.GeneratedQuery
		shortBy  string
	)
	res, err := textgen.GenerateInto(ctx, gen, req, &env, func() error {
		accepted = sanitizeQueries(env.Queries, ac, cfg.MaxQueries)
		shortBy = coverageShortfall(env.Queries, accepted, cfg.MinQueries)
		env = queryEnvelope{}
		if shortBy != "" {
			return eris.New(shortBy)
		}
		return nil
	})
	out := &QueryOutput{Usage: res.Usage, Model: res.Model}
	out.Coverage.Attempts = res.Attempts

	switch {
	case err == nil:
	case accepted != nil || shortBy != "":
		// A decodable answer that missed the coverage bar is still used.
		out.Coverage.LowCoverage = true
		out.Coverage.Reason = shortBy
		zap.L().Warn("pipeline: query network has low coverage",
			zap.String("site_id", ac.SiteID),
			zap.String("reason", shortBy),
			zap.Int("queries", len(accepted)),
		)
	default:
		return out, eris.Wrap(err, "pipeline: generate queries")
	}

	annotateObserved(accepted, perf)
	out.Queries = accepted
	out.Coverage.Categories = categoriesOf(accepted)
	return out, nil
}

// sanitizeQueries canonicalizes tags against the context, drops queries
// with no text or an unknown category, and dedupes by normalized text.
func sanitizeQueries(raw []rawQuery, ac model.AnalysisContext, limit int) []model.GeneratedQuery {
	seen := make(map[string]bool, len(raw))
	out := make([]model.GeneratedQuery, 0, len(raw))
	for _, r := range raw {
		text := strings.Join(strings.Fields(r.Text), " ")
		key := analysis.NormalizeQuery(text)
		cat := model.QueryCategory(strings.ToLower(strings.TrimSpace(r.Category)))
		if key == "" || seen[key] || !cat.Valid() {
			continue
		}
		seen[key] = true

		intent := model.IntentClass(strings.ToLower(strings.TrimSpace(r.Intent)))
		if !intent.Valid() {
			intent = defaultIntent(cat)
		}
		out = append(out, model.GeneratedQuery{
			Text:        text,
			Intent:      intent,
			ContentArea: canonicalArea(ac, r.ContentArea),
			Predicate:   canonicalPredicate(ac, r.Predicate),
			Category:    cat,
		})
		if len(out) == limit {
			break
		}
	}
	return out
}

func coverageShortfall(raw []rawQuery, qs []model.GeneratedQuery, minQueries int) string {
	var reasons []string
	if n := len(categoriesOf(qs)); n < minQueryCategories {
		reasons = append(reasons, fmt.Sprintf("%d of %d required categories", n, minQueryCategories))
	}
	if len(qs) < minQueries {
		reasons = append(reasons, fmt.Sprintf("%d of %d required queries", len(qs), minQueries))
	}
	untagged := 0
	for _, q := range qs {
		if q.ContentArea == "" {
			untagged++
		}
	}
	if untagged > 0 {
		reasons = append(reasons, fmt.Sprintf("%d queries without a content area", untagged))
	}
	if len(raw) == 0 {
		reasons = append(reasons, "no queries returned")
	}
	return strings.Join(reasons, "; ")
}

// canonicalArea maps a returned content-area tag onto the declared area of
// the same name. With no declared areas any non-empty tag stands.
func canonicalArea(ac model.AnalysisContext, tag string) string {
	tag = strings.TrimSpace(tag)
	if len(ac.ContentAreas) == 0 {
		return tag
	}
	if i := ac.AreaIndex(tag); i >= 0 {
		return ac.ContentAreas[i].Name
	}
	return ""
}

func canonicalPredicate(ac model.AnalysisContext, p string) string {
	p = strings.TrimSpace(p)
	for _, want := range ac.Predicates {
		if strings.EqualFold(want, p) {
			return want
		}
	}
	return p
}

func defaultIntent(c model.QueryCategory) model.IntentClass {
	if c == model.QueryComparison {
		return model.IntentCommercial
	}
	return model.IntentInformational
}

func categoriesOf(qs []model.GeneratedQuery) []model.QueryCategory {
	present := make(map[model.QueryCategory]bool)
	for _, q := range qs {
		present[q.Category] = true
	}
	var out []model.QueryCategory
	for _, c := range model.QueryCategories {
		if present[c] {
			out = append(out, c)
		}
	}
	return out
}

// annotateObserved attaches real performance to queries whose normalized
// text equals a record's. No fuzzy matching.
func annotateObserved(qs []model.GeneratedQuery, perf []model.PerformanceRecord) {
	if len(perf) == 0 {
		return
	}
	byText := make(map[string]model.PerformanceRecord, len(perf))
	for _, p := range perf {
		k := analysis.NormalizeQuery(p.Query)
		if _, ok := byText[k]; !ok && k != "" {
			byText[k] = p
		}
	}
	for i := range qs {
		if p, ok := byText[analysis.NormalizeQuery(qs[i].Text)]; ok {
			qs[i].Observed = &model.QueryObservation{Rank: p.Rank, Impressions: p.Impressions, Clicks: p.Clicks}
		}
	}
}
