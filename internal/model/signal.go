package model

// SignalStatus is the settled state of one enrichment provider call.
type SignalStatus string

const (
	SignalOK      SignalStatus = "ok"
	SignalFailed  SignalStatus = "failed"
	SignalSkipped SignalStatus = "skipped"
)

// EnrichmentSignal is the outcome of one external signal provider.
type EnrichmentSignal struct {
	Provider   string        `json:"provider"`
	Status     SignalStatus  `json:"status"`
	Payload    SignalPayload `json:"payload"`
	Error      string        `json:"error,omitempty"`
	DurationMs int64         `json:"duration_ms"`
}

// OK reports whether the signal carries usable data.
func (s EnrichmentSignal) OK() bool { return s.Status == SignalOK }

// SignalPayload holds the documented fields a provider may fill. Each
// provider sets only its own field.
type SignalPayload struct {
	Entity      *EntityRecognition `json:"entity,omitempty"`
	Salience    *SalienceScore     `json:"salience,omitempty"`
	Seasonality *SeasonalityCurve  `json:"seasonality,omitempty"`
	Indexation  *IndexationStatus  `json:"indexation,omitempty"`
	Traffic     *TrafficMetrics    `json:"traffic,omitempty"`
}

// EntityRecognition is a knowledge-graph match for the central entity.
type EntityRecognition struct {
	Name        string   `json:"name"`
	Types       []string `json:"types,omitempty"`
	Description string   `json:"description,omitempty"`
	Detail      string   `json:"detail,omitempty"`
	URL         string   `json:"url,omitempty"`
	Score       float64  `json:"score"`
}

// SalienceScore is the NLP salience of the central entity within the
// strategy's own description of the site.
type SalienceScore struct {
	Entity   string  `json:"entity"`
	Salience float64 `json:"salience"`
	Mentions int     `json:"mentions"`
}

// SeasonalityCurve is relative monthly search interest (January first,
// 0-100).
type SeasonalityCurve struct {
	Months [12]float64 `json:"months"`
	Peak   int         `json:"peak_month"`
	Note   string      `json:"note,omitempty"`
}

// IndexationStatus summarizes how much of the site a search index knows.
type IndexationStatus struct {
	Indexed      bool  `json:"indexed"`
	IndexedPages int64 `json:"indexed_pages"`
}

// TrafficMetrics are third-party traffic estimates for the owner's domain.
type TrafficMetrics struct {
	MonthlyVisits float64 `json:"monthly_visits"`
	OrganicShare  float64 `json:"organic_share"`
	BounceRate    float64 `json:"bounce_rate"`
	PagesPerVisit float64 `json:"pages_per_visit"`
}
