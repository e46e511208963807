package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/gap-analysis/internal/model"
	"github.com/sells-group/gap-analysis/internal/textgen"
)

// Extraction defaults.
const (
	DefaultMinConfidence    = 0.5
	DefaultExtractChars     = 8000
	DefaultExtractWorkers   = 3
	extractMaxTokens        = 4096
	extractSchemaLabel      = "fact_triples"
	extractTruncationMarker = "\n[truncated]"
)

const extractSystem = `You are a research analyst who turns web page text into entity-attribute-value facts.
You only report facts stated in the text and relevant to the business described.`

const extractPrompt = `%s

Extract every factual statement from the page below as an entity, an attribute of that entity, and the attribute's value.
Use short, generic noun phrases for entity and attribute labels so the same fact gets the same labels on any site.
Facts about the business that publishes the page take the central entity above, or a generic name for the product or service it describes, never the publisher's brand or company name.
Set confidence between 0 and 1 for how clearly the page states the fact.
Set relevant to false for facts outside the business domain described above (navigation, legal boilerplate, unrelated topics).

Page URL: %s
Page title: %s

Page text:
%s`

var extractSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "facts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "entity": {"type": "string"},
          "attribute": {"type": "string"},
          "value": {"type": "string"},
          "confidence": {"type": "number"},
          "relevant": {"type": "boolean"}
        },
        "required": ["entity", "attribute", "value", "confidence", "relevant"]
      }
    }
  },
  "required": ["facts"]
}`)

type rawFact struct {
	Entity     string  `json:"entity"`
	Attribute  string  `json:"attribute"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Relevant   *bool   `json:"relevant"`
}

type factEnvelope struct {
	Facts []rawFact `json:"facts"`
}

// ExtractConfig tunes fact extraction.
type ExtractConfig struct {
	MinConfidence float64
	MaxChars      int
	Concurrency   int
}

func (c ExtractConfig) withDefaults() ExtractConfig {
	if c.MinConfidence <= 0 {
		c.MinConfidence = DefaultMinConfidence
	}
	if c.MaxChars <= 0 {
		c.MaxChars = DefaultExtractChars
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultExtractWorkers
	}
	return c
}

// PageInput is one page handed to the extractor.
type PageInput struct {
	URL    string
	Domain string
	Title  string
	Text   string
	Kind   model.SourceKind
}

// PageFacts is the extraction outcome for one page.
type PageFacts struct {
	URL     string
	Facts   []model.FactTriple
	Dropped int
	Usage   model.TokenUsage
	Model   string
	Err     error
}

// ExtractFacts extracts the relevant facts of one page. Facts below the
// confidence threshold, flagged irrelevant, or missing a label are dropped.
func ExtractFacts(ctx context.Context, gen textgen.Generator, ac model.AnalysisContext, page PageInput, cfg ExtractConfig) PageFacts {
	cfg = cfg.withDefaults()
	pf := PageFacts{URL: page.URL}

	req := textgen.Request{
		System:     extractSystem,
		Prompt:     fmt.Sprintf(extractPrompt, FormatContext(ac), page.URL, page.Title, TruncateRunes(page.Text, cfg.MaxChars)),
		Schema:     extractSchema,
		SchemaName: extractSchemaLabel,
		MaxTokens:  extractMaxTokens,
	}

	var env factEnvelope
	res, err := textgen.GenerateInto(ctx, gen, req, &env, nil)
	pf.Usage = res.Usage
	pf.Model = res.Model
	if err != nil {
		pf.Err = err
		return pf
	}

	for _, rf := range env.Facts {
		f := model.FactTriple{
			Entity:     strings.TrimSpace(rf.Entity),
			Attribute:  strings.TrimSpace(rf.Attribute),
			Value:      strings.TrimSpace(rf.Value),
			Confidence: min(max(rf.Confidence, 0), 1),
			Source:     model.Provenance{Kind: page.Kind, URL: page.URL, Domain: page.Domain},
		}
		if f.Entity == "" || f.Attribute == "" || (rf.Relevant != nil && !*rf.Relevant) || f.Confidence < cfg.MinConfidence {
			pf.Dropped++
			continue
		}
		pf.Facts = append(pf.Facts, f)
	}
	return pf
}

// ExtractAll runs ExtractFacts over pages with bounded concurrency. The
// outcomes are index-aligned with pages, so fact order does not depend on
// scheduling.
func ExtractAll(ctx context.Context, gen textgen.Generator, ac model.AnalysisContext, pages []PageInput, cfg ExtractConfig) []PageFacts {
	cfg = cfg.withDefaults()
	out := make([]PageFacts, len(pages))

	var g errgroup.Group
	g.SetLimit(cfg.Concurrency)
	for i, p := range pages {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i] = PageFacts{URL: p.URL, Err: err}
				return nil
			}
			out[i] = ExtractFacts(ctx, gen, ac, p, cfg)
			if out[i].Err != nil {
				zap.L().Warn("pipeline: fact extraction failed",
					zap.String("url", p.URL),
					zap.String("kind", string(p.Kind)),
					zap.Error(out[i].Err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// TruncateRunes keeps the first n runes of s and marks the cut.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + extractTruncationMarker
		}
		count++
	}
	return s
}
