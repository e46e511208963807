package analysis

import (
	"strings"
	"unicode"

	"github.com/sells-group/gap-analysis/internal/model"
)

// CountSentences counts non-empty fragments of s split at newlines and at
// '.', '?' or '!' followed by whitespace or end of text.
func CountSentences(s string) int {
	rs := []rune(s)
	count := 0
	content := false
	for i, r := range rs {
		switch {
		case r == '\n':
			if content {
				count++
			}
			content = false
		case r == '.' || r == '?' || r == '!':
			if i+1 == len(rs) || unicode.IsSpace(rs[i+1]) {
				if content {
					count++
				}
				content = false
			}
		case !unicode.IsSpace(r):
			content = true
		}
	}
	if content {
		count++
	}
	return count
}

// DensityInput is the page text and facts the density scorer reads.
type DensityInput struct {
	OwnPages        []model.OwnPage
	OwnFacts        []model.FactTriple
	CompetitorPages []model.CompetitorPage
	CompetitorFacts []model.FactTriple
	// OwnAnalyzed is false when no own page was reachable.
	OwnAnalyzed bool
}

// ScoreDensity computes facts-per-sentence and entity coverage. When owner
// content was not analyzed every value is unmeasured.
func ScoreDensity(in DensityInput, n *Normalizer) model.DensityReport {
	var r model.DensityReport
	if !in.OwnAnalyzed {
		return r
	}

	ownSentences := 0
	for _, p := range in.OwnPages {
		ownSentences += CountSentences(p.Text)
	}
	if ownSentences > 0 {
		r.OwnFactsPerSentence = model.Measured(float64(len(in.OwnFacts)) / float64(ownSentences))
	}

	factsByURL := make(map[string]int)
	for _, f := range in.CompetitorFacts {
		factsByURL[CanonicalURL(f.Source.URL)]++
	}
	sum := 0.0
	for _, p := range in.CompetitorPages {
		s := CountSentences(p.Text)
		if s == 0 {
			continue
		}
		pd := model.PageDensity{
			URL:       p.URL,
			Facts:     factsByURL[CanonicalURL(p.URL)],
			Sentences: s,
		}
		pd.FactsPerSentence = float64(pd.Facts) / float64(s)
		sum += pd.FactsPerSentence
		r.PerCompetitor = append(r.PerCompetitor, pd)
	}
	if len(r.PerCompetitor) > 0 {
		r.CompetitorFactsPerSentence = model.Measured(sum / float64(len(r.PerCompetitor)))
	}

	ownEntities := uniqueEntities(in.OwnFacts, n)
	market := uniqueEntities(in.CompetitorFacts, n)
	r.OwnUniqueEntities = model.Measured(float64(len(ownEntities)))
	r.MarketUniqueEntities = model.Measured(float64(len(market)))
	if len(market) > 0 {
		r.Coverage = model.Measured(float64(len(ownEntities)) / float64(len(market)))
	}
	return r
}

func uniqueEntities(facts []model.FactTriple, n *Normalizer) map[string]bool {
	out := make(map[string]bool)
	for _, f := range facts {
		if e := strings.Join(n.Tokens(f.Entity), " "); e != "" {
			out[e] = true
		}
	}
	return out
}
