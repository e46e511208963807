package analysis

import (
	"sort"
	"strings"

	"github.com/sells-group/gap-analysis/internal/model"
)

// GapInput is everything the gap detector reads.
type GapInput struct {
	Context         model.AnalysisContext
	Categories      Categorization
	CompetitorFacts []model.FactTriple
	OwnFacts        []model.FactTriple
	// PageQueries maps a competitor page URL to the queries whose result
	// sets surfaced it. Used to place a gap in a content area.
	PageQueries map[string][]model.GeneratedQuery
}

// DetectGaps returns one finding per categorized pair that has no owner fact
// with token overlap above th.Match. Findings keep the categorization's
// first-seen order so identical inputs always yield identical output.
func DetectGaps(in GapInput, n *Normalizer, th Thresholds) []model.GapFinding {
	own := make([][]string, 0, len(in.OwnFacts))
	for _, f := range in.OwnFacts {
		if t := PairTokens(n.Key(f.Entity, f.Attribute)); len(t) > 0 {
			own = append(own, t)
		}
	}
	declared := make([][]string, len(in.Context.DeclaredFacts))
	for i, d := range in.Context.DeclaredFacts {
		declared[i] = PairTokens(n.Key(d.Entity, d.Attribute))
	}

	byKey := make(map[model.PairKey][]model.FactTriple)
	for _, f := range in.CompetitorFacts {
		if f.Source.Kind != model.SourceCompetitor {
			continue
		}
		k := n.Key(f.Entity, f.Attribute)
		byKey[k] = append(byKey[k], f)
	}

	var out []model.GapFinding
	for _, a := range in.Categories.Assignments {
		tokens := PairTokens(a.Key)
		best := bestOverlap(tokens, own)
		if best > th.Match {
			continue
		}

		g := model.GapFinding{
			Assignment:  a,
			Kind:        model.GapContent,
			Competitors: a.SourceCount,
			BestOverlap: best,
		}
		if i, score := bestIndex(tokens, declared); i >= 0 && score > th.Match {
			g.Kind = model.GapStrategic
			g.DeclaredValue = in.Context.DeclaredFacts[i].Value
		}

		facts := byKey[a.Key]
		g.ExampleValue = exampleValue(facts)
		g.ContentArea, g.Predicate = placeGap(in, facts, tokens, n)
		if g.ContentArea != "" {
			g.ContentAreaType = in.Context.AreaType(g.ContentArea)
		}
		g.Tier = tierFor(a, g.ContentArea != "", th)
		out = append(out, g)
	}
	return out
}

func tierFor(a model.CategoryAssignment, mapped bool, th Thresholds) model.Tier {
	var t model.Tier
	switch a.Category {
	case model.CategoryRoot:
		return model.TierCritical
	case model.CategoryUnique:
		t = model.TierHigh
	case model.CategoryCommon:
		if a.Ratio() >= th.CommonHighRatio {
			t = model.TierHigh
		} else {
			t = model.TierMedium
		}
	default:
		t = model.TierMedium
	}
	if th.DemoteUnmapped && !mapped {
		return model.TierLow
	}
	return t
}

func bestOverlap(tokens []string, against [][]string) float64 {
	_, best := bestIndex(tokens, against)
	return best
}

// bestIndex returns the first index with the highest overlap, or -1.
func bestIndex(tokens []string, against [][]string) (int, float64) {
	idx, best := -1, 0.0
	for i, t := range against {
		if o := Overlap(tokens, t); o > best {
			idx, best = i, o
		}
	}
	return idx, best
}

// exampleValue picks the highest-confidence value, first seen on ties.
func exampleValue(facts []model.FactTriple) string {
	var v string
	best := -1.0
	for _, f := range facts {
		if strings.TrimSpace(f.Value) == "" {
			continue
		}
		if f.Confidence > best {
			best = f.Confidence
			v = f.Value
		}
	}
	return v
}

// placeGap votes on the content area and predicate using the queries that
// surfaced the pages carrying the pair. Without votes it falls back to
// token overlap between the pair and the declared names.
func placeGap(in GapInput, facts []model.FactTriple, tokens []string, n *Normalizer) (string, string) {
	areaVotes := make(map[int]int)
	predVotes := make(map[int]int)
	seenURL := make(map[string]bool)
	for _, f := range facts {
		if seenURL[f.Source.URL] {
			continue
		}
		seenURL[f.Source.URL] = true
		for _, q := range in.PageQueries[f.Source.URL] {
			if i := in.Context.AreaIndex(q.ContentArea); i >= 0 {
				areaVotes[i]++
			}
			if i := predicateIndex(in.Context.Predicates, q.Predicate); i >= 0 {
				predVotes[i]++
			}
		}
	}

	area := ""
	if i := topVote(areaVotes); i >= 0 {
		area = in.Context.ContentAreas[i].Name
	} else {
		names := make([][]string, len(in.Context.ContentAreas))
		for i, a := range in.Context.ContentAreas {
			names[i] = n.Tokens(a.Name)
		}
		if i, score := bestIndex(tokens, names); i >= 0 && score > 0 {
			area = in.Context.ContentAreas[i].Name
		}
	}

	pred := ""
	if i := topVote(predVotes); i >= 0 {
		pred = in.Context.Predicates[i]
	} else {
		preds := make([][]string, len(in.Context.Predicates))
		for i, p := range in.Context.Predicates {
			preds[i] = n.Tokens(p)
		}
		if i, score := bestIndex(tokens, preds); i >= 0 && score > 0 {
			pred = in.Context.Predicates[i]
		}
	}
	return area, pred
}

func predicateIndex(preds []string, p string) int {
	for i, s := range preds {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(p)) {
			return i
		}
	}
	return -1
}

// topVote returns the index with most votes, lowest index on ties, or -1.
func topVote(votes map[int]int) int {
	if len(votes) == 0 {
		return -1
	}
	idx := make([]int, 0, len(votes))
	for i := range votes {
		idx = append(idx, i)
	}
	sort.Slice(idx, func(a, b int) bool {
		if votes[idx[a]] != votes[idx[b]] {
			return votes[idx[a]] > votes[idx[b]]
		}
		return idx[a] < idx[b]
	})
	return idx[0]
}
