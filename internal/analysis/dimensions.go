package analysis

import (
	"github.com/sells-group/gap-analysis/internal/model"
)

// DimensionInput is what the dimensional scorer aggregates.
type DimensionInput struct {
	Density         model.DensityReport
	OwnPages        []model.OwnPage
	OwnFacts        []model.FactTriple
	CompetitorFacts []model.FactTriple
	OwnAnalyzed     bool
	// LowConfidence marks dimensions whose inputs came from a degraded phase.
	LowConfidence map[model.Dimension]bool
}

// ScoreDimensions computes the four axes and the overall score. A dimension
// without its inputs is unmeasured and the overall score is the weighted mean
// of the measured ones with weights renormalized.
func ScoreDimensions(in DimensionInput, n *Normalizer, w Weights) model.DimensionScores {
	weights := map[model.Dimension]float64{
		model.DimensionEAVCompleteness:  w.EAV,
		model.DimensionSemanticDensity:  w.Density,
		model.DimensionEntityCoverage:   w.Coverage,
		model.DimensionContentStructure: w.Structure,
	}
	values := map[model.Dimension]model.Measure{
		model.DimensionEAVCompleteness:  eavCompleteness(in, n),
		model.DimensionSemanticDensity:  semanticDensity(in.Density),
		model.DimensionEntityCoverage:   entityCoverage(in.Density),
		model.DimensionContentStructure: contentStructure(in),
	}
	notes := map[model.Dimension]string{
		model.DimensionEAVCompleteness:  "no own or market facts",
		model.DimensionSemanticDensity:  "no sentence data",
		model.DimensionEntityCoverage:   "no market entities",
		model.DimensionContentStructure: "no heading data",
	}

	out := model.DimensionScores{Scores: make([]model.DimensionScore, 0, len(model.Dimensions))}
	var sum, weight float64
	for _, d := range model.Dimensions {
		ds := model.DimensionScore{
			Dimension:     d,
			Value:         values[d],
			Weight:        weights[d],
			LowConfidence: in.LowConfidence[d],
		}
		if v, ok := ds.Value.Get(); ok {
			sum += v * ds.Weight
			weight += ds.Weight
		} else {
			ds.Note = notes[d]
			if !in.OwnAnalyzed {
				ds.Note = "own content not analyzed"
			}
		}
		out.Scores = append(out.Scores, ds)
	}
	if weight > 0 {
		out.Overall = model.Measured(sum / weight)
	}
	return out
}

func eavCompleteness(in DimensionInput, n *Normalizer) model.Measure {
	if !in.OwnAnalyzed {
		return model.Unmeasured()
	}
	own := make(map[model.PairKey]bool)
	for _, f := range in.OwnFacts {
		own[n.Key(f.Entity, f.Attribute)] = true
	}
	perDomain := make(map[string]map[model.PairKey]bool)
	for _, f := range in.CompetitorFacts {
		d := factDomain(f)
		if d == "" {
			continue
		}
		if perDomain[d] == nil {
			perDomain[d] = make(map[model.PairKey]bool)
		}
		perDomain[d][n.Key(f.Entity, f.Attribute)] = true
	}
	if len(perDomain) == 0 {
		return model.Unmeasured()
	}
	total := 0
	for _, pairs := range perDomain {
		total += len(pairs)
	}
	avg := float64(total) / float64(len(perDomain))
	if avg == 0 {
		return model.Unmeasured()
	}
	return model.Measured(clamp(float64(len(own)) / avg * 100))
}

func semanticDensity(r model.DensityReport) model.Measure {
	own, ok1 := r.OwnFactsPerSentence.Get()
	comp, ok2 := r.CompetitorFactsPerSentence.Get()
	if !ok1 || !ok2 || comp == 0 {
		return model.Unmeasured()
	}
	return model.Measured(clamp(own / comp * 100))
}

func entityCoverage(r model.DensityReport) model.Measure {
	c, ok := r.Coverage.Get()
	if !ok {
		return model.Unmeasured()
	}
	return model.Measured(clamp(c * 100))
}

func contentStructure(in DimensionInput) model.Measure {
	if !in.OwnAnalyzed {
		return model.Unmeasured()
	}
	sum, pages := 0.0, 0
	for _, p := range in.OwnPages {
		if !p.HasHeadings {
			continue
		}
		sum += HeadingScore(p.Headings)
		pages++
	}
	if pages == 0 {
		return model.Unmeasured()
	}
	return model.Measured(sum / float64(pages))
}

// HeadingScore rates a page outline from 0 to 100: a single H1 earns 40
// (several earn 20), any H2 earns 30, any H3 earns 30, and each skipped
// level on the way down costs 10.
func HeadingScore(headings []model.Heading) float64 {
	var h1, h2, h3 int
	penalty := 0
	prev := 0
	for _, h := range headings {
		switch h.Level {
		case 1:
			h1++
		case 2:
			h2++
		case 3:
			h3++
		}
		if prev > 0 && h.Level > prev+1 {
			penalty += 10 * (h.Level - prev - 1)
		}
		prev = h.Level
	}
	score := 0
	switch {
	case h1 == 1:
		score += 40
	case h1 > 1:
		score += 20
	}
	if h2 > 0 {
		score += 30
	}
	if h3 > 0 {
		score += 30
	}
	return clamp(float64(score - penalty))
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
