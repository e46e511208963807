package analysis

import (
	"github.com/sells-group/gap-analysis/internal/model"
)

// Categorization is the market view of every competitor pair in a run. It is
// recomputed from facts on every run and never stored on the facts.
type Categorization struct {
	// Assignments are in first-seen order.
	Assignments      []model.CategoryAssignment
	TotalCompetitors int
	// LowConfidence is set when no competitor domain was observed.
	LowConfidence bool

	index map[model.PairKey]int
}

// Lookup returns the assignment for a pair key.
func (c Categorization) Lookup(k model.PairKey) (model.CategoryAssignment, bool) {
	i, ok := c.index[k]
	if !ok {
		return model.CategoryAssignment{}, false
	}
	return c.Assignments[i], true
}

// Classify applies the category cut-offs in order; the first match wins.
func Classify(sourceCount, totalCompetitors int, th Thresholds) model.Category {
	if totalCompetitors <= 0 {
		return model.CategoryUnique
	}
	ratio := float64(sourceCount) / float64(totalCompetitors)
	switch {
	case ratio >= th.RootRatio:
		return model.CategoryRoot
	case ratio >= th.CommonRatio:
		return model.CategoryCommon
	case sourceCount >= th.RareMinSources:
		return model.CategoryRare
	default:
		return model.CategoryUnique
	}
}

// Categorize groups competitor facts by normalized pair and assigns each
// pair a category. competitorDomains lists every competitor domain fetched
// in the run, including ones that yielded no facts; domains found only on
// facts are added to it. Own facts are ignored.
func Categorize(facts []model.FactTriple, competitorDomains []string, n *Normalizer, th Thresholds) Categorization {
	domains := make(map[string]bool, len(competitorDomains))
	for _, d := range competitorDomains {
		if d = DomainOf(d); d != "" {
			domains[d] = true
		}
	}

	type group struct {
		label   model.PairKey
		domains map[string]bool
	}
	groups := make(map[model.PairKey]*group)
	var order []model.PairKey

	for _, f := range facts {
		if f.Source.Kind != model.SourceCompetitor {
			continue
		}
		key := n.Key(f.Entity, f.Attribute)
		if key.Entity == "" && key.Attribute == "" {
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &group{
				label:   model.PairKey{Entity: f.Entity, Attribute: f.Attribute},
				domains: make(map[string]bool),
			}
			groups[key] = g
			order = append(order, key)
		}
		d := factDomain(f)
		if d != "" {
			g.domains[d] = true
			domains[d] = true
		}
	}

	total := len(domains)
	out := Categorization{
		Assignments:      make([]model.CategoryAssignment, 0, len(order)),
		TotalCompetitors: total,
		LowConfidence:    total == 0,
		index:            make(map[model.PairKey]int, len(order)),
	}
	for i, key := range order {
		g := groups[key]
		sc := len(g.domains)
		out.index[key] = len(out.Assignments)
		out.Assignments = append(out.Assignments, model.CategoryAssignment{
			Key:              key,
			Label:            g.label,
			SourceCount:      sc,
			TotalCompetitors: total,
			Category:         Classify(sc, total, th),
			FirstSeen:        i,
		})
	}
	return out
}

func factDomain(f model.FactTriple) string {
	if f.Source.Domain != "" {
		return DomainOf(f.Source.Domain)
	}
	return DomainOf(f.Source.URL)
}
