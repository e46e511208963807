package model

// RecommendationKind says which input stream justified a recommendation.
type RecommendationKind string

const (
	RecommendContentGap   RecommendationKind = "content_gap"
	RecommendStrategicGap RecommendationKind = "strategic_gap"
	RecommendQuickWin     RecommendationKind = "quick_win"
	RecommendLowCTR       RecommendationKind = "low_ctr"
)

// Recommendation is one ranked action.
type Recommendation struct {
	Rank          int                `json:"rank"`
	Severity      Tier               `json:"severity"`
	Kind          RecommendationKind `json:"kind"`
	Action        string             `json:"action"`
	Gaps          []PairKey          `json:"gaps,omitempty"`
	Performance   *PerformanceRecord `json:"performance,omitempty"`
	ContentArea   string             `json:"content_area,omitempty"`
	Predicate     string             `json:"predicate,omitempty"`
	Competitors   int                `json:"supporting_competitors,omitempty"`
	LowConfidence bool               `json:"low_confidence,omitempty"`
}
