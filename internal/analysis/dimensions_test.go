package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gap-analysis/internal/model"
)

func headings(levels ...int) []model.Heading {
	out := make([]model.Heading, len(levels))
	for i, l := range levels {
		out[i] = model.Heading{Level: l, Text: "h"}
	}
	return out
}

func TestHeadingScore(t *testing.T) {
	tests := []struct {
		name   string
		levels []int
		want   float64
	}{
		{"empty", nil, 0},
		{"full outline", []int{1, 2, 3, 2, 3}, 100},
		{"two h1", []int{1, 1}, 20},
		{"h1 to h3 skip", []int{1, 3}, 60},
		{"h2 to h4 skip", []int{2, 4}, 20},
		{"h1 to h4 double skip", []int{1, 4}, 20},
		{"floors at zero", []int{2, 6}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, HeadingScore(headings(tt.levels...)), 1e-9)
		})
	}
}

func TestScoreDimensions_AllUnmeasured(t *testing.T) {
	s := ScoreDimensions(DimensionInput{
		OwnPages:        []model.OwnPage{{URL: "https://owner.com/", HasHeadings: true, Headings: headings(1, 2)}},
		CompetitorFacts: spread("widget", "price", 3),
		OwnAnalyzed:     false,
	}, NewNormalizer("en"), DefaultWeights())

	require.Len(t, s.Scores, 4)
	for _, d := range s.Scores {
		assert.False(t, d.Value.IsMeasured(), d.Dimension)
		assert.Equal(t, "own content not analyzed", d.Note)
	}
	assert.False(t, s.Overall.IsMeasured())
}

func TestScoreDimensions_SingleDimensionIsOverall(t *testing.T) {
	s := ScoreDimensions(DimensionInput{
		OwnPages:    []model.OwnPage{{URL: "https://owner.com/", HasHeadings: true, Headings: headings(1, 2)}},
		OwnAnalyzed: true,
	}, NewNormalizer("en"), DefaultWeights())

	st, ok := s.Get(model.DimensionContentStructure)
	require.True(t, ok)
	v, ok := st.Value.Get()
	require.True(t, ok)
	assert.InDelta(t, 70, v, 1e-9)

	overall, ok := s.Overall.Get()
	require.True(t, ok)
	assert.InDelta(t, v, overall, 1e-9)

	eav, _ := s.Get(model.DimensionEAVCompleteness)
	assert.False(t, eav.Value.IsMeasured())
	assert.Equal(t, "no own or market facts", eav.Note)
}

func TestScoreDimensions_WeightedOverall(t *testing.T) {
	in := DimensionInput{
		Density: model.DensityReport{
			OwnFactsPerSentence:        model.Measured(0.5),
			CompetitorFactsPerSentence: model.Measured(1.0),
			Coverage:                   model.Measured(0.25),
		},
		OwnPages: []model.OwnPage{{URL: "https://owner.com/", HasHeadings: true, Headings: headings(1, 2)}},
		OwnFacts: []model.FactTriple{ownFact("widget", "price", "$9"), ownFact("widget", "weight", "2kg")},
		CompetitorFacts: []model.FactTriple{
			compFact("widget", "price", "$10", "alpha.com"),
			compFact("widget", "color", "red", "alpha.com"),
			compFact("widget", "price", "$11", "beta.com"),
			compFact("widget", "height", "3cm", "beta.com"),
		},
		OwnAnalyzed: true,
	}
	s := ScoreDimensions(in, NewNormalizer("en"), DefaultWeights())

	want := map[model.Dimension]float64{
		model.DimensionEAVCompleteness:  100,
		model.DimensionSemanticDensity:  50,
		model.DimensionEntityCoverage:   25,
		model.DimensionContentStructure: 70,
	}
	for d, w := range want {
		ds, ok := s.Get(d)
		require.True(t, ok)
		v, ok := ds.Value.Get()
		require.True(t, ok, d)
		assert.InDelta(t, w, v, 1e-9, d)
	}
	overall, ok := s.Overall.Get()
	require.True(t, ok)
	assert.InDelta(t, 62.75, overall, 1e-9)
}

func TestScoreDimensions_RenormalizesOverMeasured(t *testing.T) {
	in := DimensionInput{
		Density: model.DensityReport{
			OwnFactsPerSentence:        model.Measured(0.5),
			CompetitorFactsPerSentence: model.Measured(1.0),
			Coverage:                   model.Measured(1.0),
		},
		OwnAnalyzed: true,
	}
	s := ScoreDimensions(in, NewNormalizer("en"), DefaultWeights())
	overall, ok := s.Overall.Get()
	require.True(t, ok)
	// (50*25 + 100*25) / 50
	assert.InDelta(t, 75, overall, 1e-9)
}

func TestScoreDimensions_ClampsToHundred(t *testing.T) {
	in := DimensionInput{
		Density: model.DensityReport{
			OwnFactsPerSentence:        model.Measured(3),
			CompetitorFactsPerSentence: model.Measured(1),
		},
		OwnAnalyzed: true,
	}
	s := ScoreDimensions(in, NewNormalizer("en"), DefaultWeights())
	d, _ := s.Get(model.DimensionSemanticDensity)
	v, _ := d.Value.Get()
	assert.Equal(t, 100.0, v)
}

func TestScoreDimensions_LowConfidenceFlag(t *testing.T) {
	s := ScoreDimensions(DimensionInput{
		OwnAnalyzed:   true,
		LowConfidence: map[model.Dimension]bool{model.DimensionEAVCompleteness: true},
	}, NewNormalizer("en"), DefaultWeights())
	d, _ := s.Get(model.DimensionEAVCompleteness)
	assert.True(t, d.LowConfidence)
	c, _ := s.Get(model.DimensionContentStructure)
	assert.False(t, c.LowConfidence)
}
