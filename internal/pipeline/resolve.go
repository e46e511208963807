package pipeline

import (
	"strings"

	"github.com/sells-group/gap-analysis/internal/analysis"
	"github.com/sells-group/gap-analysis/internal/model"
)

// DefaultLocale is used when a strategy declares none.
const DefaultLocale = "en-US"

// ResolveContext builds the immutable AnalysisContext for a site. Central
// entity, source context and central search intent cannot be defaulted, so
// a strategy missing any of them yields a *model.ConfigurationIncompleteError.
func ResolveContext(siteID string, sc model.StrategyConfig) (model.AnalysisContext, error) {
	var missing []string
	if strings.TrimSpace(sc.CentralEntity) == "" {
		missing = append(missing, "central_entity")
	}
	if strings.TrimSpace(sc.SourceContext) == "" {
		missing = append(missing, "source_context")
	}
	if strings.TrimSpace(sc.CentralSearchIntent) == "" {
		missing = append(missing, "central_search_intent")
	}
	if len(missing) > 0 {
		return model.AnalysisContext{}, &model.ConfigurationIncompleteError{SiteID: siteID, Missing: missing}
	}

	ac := model.AnalysisContext{
		SiteID:              siteID,
		Domain:              analysis.DomainOf(sc.Domain),
		CentralEntity:       strings.TrimSpace(sc.CentralEntity),
		SourceContext:       strings.TrimSpace(sc.SourceContext),
		CentralSearchIntent: strings.TrimSpace(sc.CentralSearchIntent),
		Predicates:          cleanList(sc.Predicates),
		ContentAreas:        cleanAreas(sc.ContentAreas),
		Locale:              strings.TrimSpace(sc.Locale),
		Region:              strings.ToUpper(strings.TrimSpace(sc.Region)),
	}
	if ac.Locale == "" {
		ac.Locale = DefaultLocale
	}
	for _, f := range sc.DeclaredFacts {
		if strings.TrimSpace(f.Entity) == "" || strings.TrimSpace(f.Attribute) == "" {
			continue
		}
		ac.DeclaredFacts = append(ac.DeclaredFacts, model.DeclaredFact{
			Entity:    strings.TrimSpace(f.Entity),
			Attribute: strings.TrimSpace(f.Attribute),
			Value:     strings.TrimSpace(f.Value),
		})
	}
	for _, d := range sc.ExcludedDomains {
		if dom := analysis.DomainOf(d); dom != "" {
			ac.ExcludedDomains = append(ac.ExcludedDomains, dom)
		}
	}
	return ac, nil
}

func cleanList(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		k := strings.ToLower(s)
		if s == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

func cleanAreas(in []model.ContentArea) []model.ContentArea {
	seen := make(map[string]bool, len(in))
	var out []model.ContentArea
	for _, a := range in {
		a.Name = strings.TrimSpace(a.Name)
		k := strings.ToLower(a.Name)
		if a.Name == "" || seen[k] {
			continue
		}
		seen[k] = true
		if a.Type != model.ContentAreaRevenue {
			a.Type = model.ContentAreaAuthority
		}
		out = append(out, a)
	}
	return out
}
