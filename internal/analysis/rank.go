package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/sells-group/gap-analysis/internal/model"
)

// Fixed bucket order; lower sorts first.
const (
	bucketCritical = iota
	bucketQuickWin
	bucketHigh
	bucketLowCTR
	bucketMedium
	bucketLow
)

// RankInput is the merged input of the recommendation ranker.
type RankInput struct {
	Context     model.AnalysisContext
	Gaps        []model.GapFinding
	Performance []model.PerformanceRecord
	Queries     []model.GeneratedQuery
	// LowConfidence flags every gap-derived recommendation, set when the
	// categorization had no market signal or extraction degraded.
	LowConfidence bool
}

type candidate struct {
	bucket  int
	support int
	revenue bool
	seq     int
	rec     model.Recommendation
}

// Rank merges gap findings and performance signals into one ordered list.
// Order is by bucket (critical gaps, quick wins, high gaps, low-CTR fixes,
// medium gaps, low gaps), then supporting competitors descending, then
// revenue areas before authority, then input order.
func Rank(in RankInput, cfg RankConfig) []model.Recommendation {
	var cands []candidate

	for i, g := range in.Gaps {
		cands = append(cands, candidate{
			bucket:  gapBucket(g.Tier),
			support: g.Competitors,
			revenue: g.ContentAreaType == model.ContentAreaRevenue,
			seq:     i,
			rec: model.Recommendation{
				Severity:      g.Tier,
				Kind:          gapKind(g.Kind),
				Action:        gapAction(g),
				Gaps:          []model.PairKey{g.Assignment.Label},
				ContentArea:   g.ContentArea,
				Predicate:     g.Predicate,
				Competitors:   g.Competitors,
				LowConfidence: in.LowConfidence,
			},
		})
	}

	queries := make(map[string]model.GeneratedQuery, len(in.Queries))
	for _, q := range in.Queries {
		k := NormalizeQuery(q.Text)
		if _, ok := queries[k]; !ok {
			queries[k] = q
		}
	}

	for i, p := range in.Performance {
		bucket, kind, sev, ok := classifyPerformance(p, cfg)
		if !ok {
			continue
		}
		rec := p
		c := candidate{
			bucket: bucket,
			seq:    i,
			rec: model.Recommendation{
				Severity:    sev,
				Kind:        kind,
				Action:      performanceAction(kind, p),
				Performance: &rec,
			},
		}
		if q, ok := queries[NormalizeQuery(p.Query)]; ok {
			c.rec.ContentArea = q.ContentArea
			c.rec.Predicate = q.Predicate
			c.revenue = in.Context.AreaType(q.ContentArea) == model.ContentAreaRevenue
		}
		cands = append(cands, c)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.bucket != b.bucket {
			return a.bucket < b.bucket
		}
		if a.support != b.support {
			return a.support > b.support
		}
		if a.revenue != b.revenue {
			return a.revenue
		}
		return a.seq < b.seq
	})

	out := make([]model.Recommendation, len(cands))
	for i, c := range cands {
		c.rec.Rank = i + 1
		out[i] = c.rec
	}
	return out
}

// classifyPerformance decides whether a record is a quick win or a low-CTR
// fix. A record that qualifies as both is only a quick win.
func classifyPerformance(p model.PerformanceRecord, cfg RankConfig) (int, model.RecommendationKind, model.Tier, bool) {
	if p.Impressions <= 0 || p.Rank <= 0 {
		return 0, "", "", false
	}
	if p.Rank >= cfg.QuickWinMinRank && p.Rank <= cfg.QuickWinMaxRank {
		return bucketQuickWin, model.RecommendQuickWin, model.TierHigh, true
	}
	if p.Rank <= cfg.LowCTRMaxRank {
		if exp, ok := expectedCTR(p.Rank, cfg.ExpectedCTR); ok && p.CTR() < exp*cfg.LowCTRFactor {
			return bucketLowCTR, model.RecommendLowCTR, model.TierMedium, true
		}
	}
	return 0, "", "", false
}

func expectedCTR(rank float64, curve []float64) (float64, bool) {
	if len(curve) == 0 {
		return 0, false
	}
	pos := int(math.Round(rank))
	if pos < 1 {
		pos = 1
	}
	if pos > len(curve) {
		pos = len(curve)
	}
	return curve[pos-1], true
}

func gapBucket(t model.Tier) int {
	switch t {
	case model.TierCritical:
		return bucketCritical
	case model.TierHigh:
		return bucketHigh
	case model.TierMedium:
		return bucketMedium
	default:
		return bucketLow
	}
}

func gapKind(k model.GapKind) model.RecommendationKind {
	if k == model.GapStrategic {
		return model.RecommendStrategicGap
	}
	return model.RecommendContentGap
}

func gapAction(g model.GapFinding) string {
	label := g.Assignment.Label
	where := ""
	if g.ContentArea != "" {
		where = fmt.Sprintf(" in %s content", g.ContentArea)
	}
	if g.Kind == model.GapStrategic {
		return fmt.Sprintf("Publish the %s of %s you already hold (%q)%s",
			label.Attribute, label.Entity, g.DeclaredValue, where)
	}
	action := fmt.Sprintf("Cover the %s of %s%s; %d of %d competitors state it",
		label.Attribute, label.Entity, where, g.Assignment.SourceCount, g.Assignment.TotalCompetitors)
	if g.ExampleValue != "" {
		action += fmt.Sprintf(" (e.g. %q)", g.ExampleValue)
	}
	return action
}

func performanceAction(kind model.RecommendationKind, p model.PerformanceRecord) string {
	if kind == model.RecommendQuickWin {
		return fmt.Sprintf("Strengthen the page ranking %.1f for %q (%d impressions) to reach the top three",
			p.Rank, p.Query, p.Impressions)
	}
	return fmt.Sprintf("Rewrite the title and description for %q: position %.1f but %.1f%% CTR",
		p.Query, p.Rank, p.CTR()*100)
}
