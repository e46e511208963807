package model

import (
	"bytes"
	"encoding/json"
)

// Measure is a value that is either computed from real inputs or explicitly
// unmeasured. The zero value is unmeasured. It encodes to JSON null when
// unmeasured.
type Measure struct {
	value    float64
	measured bool
}

// Measured wraps a computed value.
func Measured(v float64) Measure { return Measure{value: v, measured: true} }

// Unmeasured returns the absent marker.
func Unmeasured() Measure { return Measure{} }

// Get returns the value and whether it was measured.
func (m Measure) Get() (float64, bool) { return m.value, m.measured }

// IsMeasured reports whether a value is present.
func (m Measure) IsMeasured() bool { return m.measured }

// MarshalJSON implements json.Marshaler.
func (m Measure) MarshalJSON() ([]byte, error) {
	if !m.measured {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Measure) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = Measure{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Measured(v)
	return nil
}

// DensityReport is the density and coverage arithmetic for a run.
type DensityReport struct {
	OwnFactsPerSentence        Measure       `json:"own_facts_per_sentence"`
	CompetitorFactsPerSentence Measure       `json:"competitor_average_facts_per_sentence"`
	OwnUniqueEntities          Measure       `json:"own_unique_entities"`
	MarketUniqueEntities       Measure       `json:"market_unique_entities"`
	Coverage                   Measure       `json:"coverage"`
	PerCompetitor              []PageDensity `json:"per_competitor,omitempty"`
}

// PageDensity is the facts-per-sentence ratio of one competitor page.
type PageDensity struct {
	URL              string  `json:"url"`
	Facts            int     `json:"facts"`
	Sentences        int     `json:"sentences"`
	FactsPerSentence float64 `json:"facts_per_sentence"`
}

// Dimension names one scored quality axis.
type Dimension string

const (
	DimensionEAVCompleteness  Dimension = "eav_completeness"
	DimensionSemanticDensity  Dimension = "semantic_density"
	DimensionEntityCoverage   Dimension = "entity_coverage"
	DimensionContentStructure Dimension = "content_structure"
)

// Dimensions lists the axes in reporting order.
var Dimensions = []Dimension{
	DimensionEAVCompleteness,
	DimensionSemanticDensity,
	DimensionEntityCoverage,
	DimensionContentStructure,
}

// DimensionScore is one axis value on a 0-100 scale.
type DimensionScore struct {
	Dimension     Dimension `json:"dimension"`
	Value         Measure   `json:"value"`
	Weight        float64   `json:"weight"`
	LowConfidence bool      `json:"low_confidence,omitempty"`
	Note          string    `json:"note,omitempty"`
}

// DimensionScores is the four axes plus the renormalized overall score.
type DimensionScores struct {
	Scores  []DimensionScore `json:"scores"`
	Overall Measure          `json:"overall"`
}

// Get returns the score for d.
func (s DimensionScores) Get(d Dimension) (DimensionScore, bool) {
	for _, ds := range s.Scores {
		if ds.Dimension == d {
			return ds, true
		}
	}
	return DimensionScore{}, false
}
