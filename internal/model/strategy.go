// Package model defines the data types shared across the gap analysis pipeline.
package model

// ContentAreaType tags a content area by the business role it plays.
type ContentAreaType string

const (
	ContentAreaRevenue   ContentAreaType = "revenue"
	ContentAreaAuthority ContentAreaType = "authority"
)

// ContentArea is a topical section of the site the strategy targets.
type ContentArea struct {
	Name string          `json:"name" yaml:"name"`
	Type ContentAreaType `json:"type" yaml:"type"`
}

// DeclaredFact is a fact the site owner knows to be true, whether or not it
// has been published yet.
type DeclaredFact struct {
	Entity    string `json:"entity" yaml:"entity"`
	Attribute string `json:"attribute" yaml:"attribute"`
	Value     string `json:"value" yaml:"value"`
}

// StrategyConfig is the previously authored strategy for a site.
type StrategyConfig struct {
	SiteID              string         `json:"site_id" yaml:"site_id"`
	Domain              string         `json:"domain" yaml:"domain"`
	CentralEntity       string         `json:"central_entity" yaml:"central_entity"`
	SourceContext       string         `json:"source_context" yaml:"source_context"`
	CentralSearchIntent string         `json:"central_search_intent" yaml:"central_search_intent"`
	Predicates          []string       `json:"predicates" yaml:"predicates"`
	ContentAreas        []ContentArea  `json:"content_areas" yaml:"content_areas"`
	DeclaredFacts       []DeclaredFact `json:"declared_facts" yaml:"declared_facts"`
	ExcludedDomains     []string       `json:"excluded_domains,omitempty" yaml:"excluded_domains,omitempty"`
	Locale              string         `json:"locale" yaml:"locale"`
	Region              string         `json:"region" yaml:"region"`
}

// PageRef is one page of the owner's crawled site inventory. Text is empty
// when the inventory only recorded the URL.
type PageRef struct {
	URL      string    `json:"url" yaml:"url"`
	Title    string    `json:"title,omitempty" yaml:"title,omitempty"`
	Text     string    `json:"text,omitempty" yaml:"text,omitempty"`
	Headings []Heading `json:"headings,omitempty" yaml:"headings,omitempty"`
}

// PerformanceRecord is one row of real search-performance data for a query.
type PerformanceRecord struct {
	Query       string  `json:"query" yaml:"query"`
	Rank        float64 `json:"rank" yaml:"rank"`
	Impressions int     `json:"impressions" yaml:"impressions"`
	Clicks      int     `json:"clicks" yaml:"clicks"`
}

// CTR returns clicks over impressions, or 0 without impressions.
func (p PerformanceRecord) CTR() float64 {
	if p.Impressions <= 0 {
		return 0
	}
	return float64(p.Clicks) / float64(p.Impressions)
}
