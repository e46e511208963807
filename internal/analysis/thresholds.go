package analysis

// Thresholds are the tunable cut-offs for categorization and matching.
type Thresholds struct {
	// Match is the token overlap a pair must exceed to count as present.
	Match float64
	// RootRatio and CommonRatio are sourceCount/totalCompetitors cut-offs.
	RootRatio   float64
	CommonRatio float64
	// RareMinSources is the minimum distinct domains for a rare pair.
	RareMinSources int
	// CommonHighRatio promotes a missing common pair to the high tier.
	CommonHighRatio float64
	// DemoteUnmapped moves non-root gaps that map to no content area to
	// the low tier.
	DemoteUnmapped bool
}

// DefaultThresholds returns the standard cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Match:           0.6,
		RootRatio:       0.8,
		CommonRatio:     0.4,
		RareMinSources:  2,
		CommonHighRatio: 0.4,
	}
}

// Weights are the relative weights of the four dimensions.
type Weights struct {
	EAV       float64
	Density   float64
	Coverage  float64
	Structure float64
}

// DefaultWeights returns 30/25/25/20.
func DefaultWeights() Weights {
	return Weights{EAV: 30, Density: 25, Coverage: 25, Structure: 20}
}

// RankConfig controls which performance records become recommendations.
type RankConfig struct {
	QuickWinMinRank float64
	QuickWinMaxRank float64
	LowCTRMaxRank   float64
	// LowCTRFactor is the fraction of the expected CTR below which a
	// top-ranked query counts as under-clicked.
	LowCTRFactor float64
	// ExpectedCTR is the expected click-through rate by position, index 0
	// being position 1.
	ExpectedCTR []float64
}

// DefaultRankConfig returns the standard ranking configuration.
func DefaultRankConfig() RankConfig {
	return RankConfig{
		QuickWinMinRank: 4,
		QuickWinMaxRank: 20,
		LowCTRMaxRank:   5,
		LowCTRFactor:    0.5,
		ExpectedCTR:     []float64{0.28, 0.15, 0.11, 0.08, 0.07},
	}
}
