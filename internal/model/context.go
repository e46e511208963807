package model

import (
	"slices"
	"strings"
)

// AnalysisContext is the snapshot of strategy every phase reads from. It is
// built once per run by the context resolver and passed by value; slices are
// private copies and must not be mutated by consumers.
type AnalysisContext struct {
	SiteID              string         `json:"site_id"`
	Domain              string         `json:"domain"`
	CentralEntity       string         `json:"central_entity"`
	SourceContext       string         `json:"source_context"`
	CentralSearchIntent string         `json:"central_search_intent"`
	Predicates          []string       `json:"predicates"`
	ContentAreas        []ContentArea  `json:"content_areas"`
	DeclaredFacts       []DeclaredFact `json:"declared_facts"`
	ExcludedDomains     []string       `json:"excluded_domains,omitempty"`
	Locale              string         `json:"locale"`
	Region              string         `json:"region"`
}

// Clone returns a deep copy.
func (c AnalysisContext) Clone() AnalysisContext {
	c.Predicates = slices.Clone(c.Predicates)
	c.ContentAreas = slices.Clone(c.ContentAreas)
	c.DeclaredFacts = slices.Clone(c.DeclaredFacts)
	c.ExcludedDomains = slices.Clone(c.ExcludedDomains)
	return c
}

// AreaIndex returns the declaration position of the named content area
// (case-insensitive), or -1.
func (c AnalysisContext) AreaIndex(name string) int {
	for i, a := range c.ContentAreas {
		if strings.EqualFold(a.Name, name) {
			return i
		}
	}
	return -1
}

// AreaType returns the type of the named content area. Unknown areas are
// treated as authority content.
func (c AnalysisContext) AreaType(name string) ContentAreaType {
	if i := c.AreaIndex(name); i >= 0 {
		return c.ContentAreas[i].Type
	}
	return ContentAreaAuthority
}
