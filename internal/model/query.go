package model

// IntentClass is the inferred search intent of a query.
type IntentClass string

const (
	IntentInformational IntentClass = "informational"
	IntentCommercial    IntentClass = "commercial"
	IntentTransactional IntentClass = "transactional"
	IntentNavigational  IntentClass = "navigational"
)

// Valid reports whether i is a known intent class.
func (i IntentClass) Valid() bool {
	switch i {
	case IntentInformational, IntentCommercial, IntentTransactional, IntentNavigational:
		return true
	}
	return false
}

// QueryCategory is one of the five generation categories.
type QueryCategory string

const (
	QueryAttributeGap     QueryCategory = "attribute_gap"
	QueryIntentAligned    QueryCategory = "intent_aligned"
	QueryProcessExpertise QueryCategory = "process_expertise"
	QueryComparison       QueryCategory = "comparison"
	QueryTrustAuthority   QueryCategory = "trust_authority"
)

// QueryCategories lists the categories in crawl priority order.
var QueryCategories = []QueryCategory{
	QueryAttributeGap,
	QueryIntentAligned,
	QueryComparison,
	QueryProcessExpertise,
	QueryTrustAuthority,
}

// Priority returns the crawl priority of the category (lower first), or
// len(QueryCategories) for unknown values.
func (c QueryCategory) Priority() int {
	for i, qc := range QueryCategories {
		if qc == c {
			return i
		}
	}
	return len(QueryCategories)
}

// Valid reports whether c is one of the five categories.
func (c QueryCategory) Valid() bool { return c.Priority() < len(QueryCategories) }

// GeneratedQuery is a target query produced for the run.
type GeneratedQuery struct {
	Text        string            `json:"text"`
	Intent      IntentClass       `json:"intent"`
	ContentArea string            `json:"content_area"`
	Predicate   string            `json:"predicate"`
	Category    QueryCategory     `json:"category"`
	Observed    *QueryObservation `json:"observed,omitempty"`
}

// QueryObservation is real performance data matched to a query by exact
// normalized text.
type QueryObservation struct {
	Rank        float64 `json:"rank"`
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
}

// QueryCoverage summarizes how well the generated set spans the categories.
type QueryCoverage struct {
	Categories  []QueryCategory `json:"categories"`
	Attempts    int             `json:"attempts"`
	LowCoverage bool            `json:"low_coverage"`
	Reason      string          `json:"reason,omitempty"`
}
