package model

// Category is the market-frequency class of an (entity, attribute) pair.
type Category string

const (
	CategoryRoot   Category = "root"
	CategoryCommon Category = "common"
	CategoryRare   Category = "rare"
	CategoryUnique Category = "unique"
)

// CategoryAssignment is the derived market view of one pair. Label holds the
// first-seen surface form of the pair for display.
type CategoryAssignment struct {
	Key              PairKey  `json:"key"`
	Label            PairKey  `json:"label"`
	SourceCount      int      `json:"source_count"`
	TotalCompetitors int      `json:"total_competitors"`
	Category         Category `json:"category"`
	FirstSeen        int      `json:"first_seen"`
}

// Ratio returns SourceCount/TotalCompetitors, or 0 with no competitors.
func (a CategoryAssignment) Ratio() float64 {
	if a.TotalCompetitors == 0 {
		return 0
	}
	return float64(a.SourceCount) / float64(a.TotalCompetitors)
}

// GapKind separates unknown facts from known-but-unpublished ones.
type GapKind string

const (
	GapContent   GapKind = "content_gap"
	GapStrategic GapKind = "strategic_gap"
)

// Tier is a priority tier shared by gaps and recommendations.
type Tier string

const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
)

// GapFinding is a competitor pair with no semantic match in the owner's facts.
type GapFinding struct {
	Assignment      CategoryAssignment `json:"assignment"`
	Kind            GapKind            `json:"kind"`
	ContentArea     string             `json:"content_area,omitempty"`
	ContentAreaType ContentAreaType    `json:"content_area_type,omitempty"`
	Predicate       string             `json:"predicate,omitempty"`
	ExampleValue    string             `json:"example_value"`
	Competitors     int                `json:"supporting_competitors"`
	Tier            Tier               `json:"tier"`
	BestOverlap     float64            `json:"best_overlap"`
	DeclaredValue   string             `json:"declared_value,omitempty"`
}
