package report

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/gap-analysis/internal/model"
)

func testResult() *model.AnalysisResult {
	metal := model.PairKey{Entity: "metal roof", Attribute: "lifespan"}
	return &model.AnalysisResult{
		RunID: "run-1",
		Context: model.AnalysisContext{
			SiteID:        "acme",
			Domain:        "acme-roofing.com",
			CentralEntity: "Roof replacement",
		},
		Queries: []model.GeneratedQuery{
			{Text: "roof cost", Category: model.QueryAttributeGap, Intent: model.IntentInformational, ContentArea: "Pricing",
				Observed: &model.QueryObservation{Rank: 7, Impressions: 900, Clicks: 12}},
			{Text: "metal vs asphalt", Category: model.QueryComparison, Intent: model.IntentCommercial},
		},
		QueryCoverage: model.QueryCoverage{Categories: []model.QueryCategory{model.QueryAttributeGap, model.QueryComparison}, Attempts: 2, LowCoverage: true, Reason: "2 of 3 required categories"},
		CrawlTargets: []model.CrawlTarget{
			{URL: "https://b.com/x", Domain: "b.com", Appearances: 3, State: model.FetchFetched, Source: "local"},
			{URL: "https://down.com", Domain: "down.com", Appearances: 1, State: model.FetchFailed, Error: "unreachable"},
		},
		Competitors: []model.CompetitorPage{{URL: "https://b.com/x", Domain: "b.com"}},
		Facts:       model.FactSummary{OwnFacts: 4, CompetitorFacts: 9, Dropped: 2},
		Gaps: []model.GapFinding{
			{
				Assignment:   model.CategoryAssignment{Key: metal, Label: model.PairKey{Entity: "Metal roofing", Attribute: "lifespan"}, SourceCount: 3, TotalCompetitors: 3, Category: model.CategoryRoot},
				Kind:         model.GapContent,
				Tier:         model.TierCritical,
				ContentArea:  "Materials",
				ExampleValue: "50 years",
				BestOverlap:  0.2,
			},
			{
				Assignment:    model.CategoryAssignment{Key: model.PairKey{Entity: "roof", Attribute: "warranty"}, SourceCount: 2, TotalCompetitors: 3, Category: model.CategoryCommon},
				Kind:          model.GapStrategic,
				Tier:          model.TierHigh,
				DeclaredValue: "25 years",
			},
		},
		Density: model.DensityReport{
			OwnFactsPerSentence:        model.Measured(0.25),
			CompetitorFactsPerSentence: model.Measured(0.4),
			OwnUniqueEntities:          model.Measured(3),
			MarketUniqueEntities:       model.Measured(7),
			Coverage:                   model.Unmeasured(),
		},
		Dimensions: model.DimensionScores{
			Scores: []model.DimensionScore{
				{Dimension: model.DimensionEAVCompleteness, Value: model.Measured(40), Weight: 0.3},
				{Dimension: model.DimensionContentStructure, Value: model.Unmeasured(), Weight: 0.2, Note: "no heading data"},
			},
			Overall: model.Measured(52.5),
		},
		Recommendations: []model.Recommendation{
			{Rank: 1, Severity: model.TierCritical, Kind: model.RecommendContentGap, Action: "Cover metal | roof lifespan",
				Gaps: []model.PairKey{metal}, ContentArea: "Materials", Competitors: 3},
			{Rank: 2, Severity: model.TierHigh, Kind: model.RecommendQuickWin, Action: "Improve roof cost page", LowConfidence: true},
		},
		Phases: []model.PhaseResult{
			{Name: "enrich", Status: model.PhaseStatusComplete, Duration: 120},
			{Name: "crawl", Status: model.PhaseStatusDegraded, Duration: 900, Error: "1 fetch failed"},
		},
		Degradations:  []model.Degradation{{Phase: "queries", Kind: model.KindProviderUnavailable, Message: "low coverage"}},
		LowConfidence: true,
		Usage:         model.TokenUsage{InputTokens: 5000, OutputTokens: 1200, Calls: 6},
		CostUSD:       0.0123,
		CompletedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(testResult())

	assert.Contains(t, md, "# Gap Analysis: Roof replacement\n")
	assert.Contains(t, md, "Site: acme (acme-roofing.com)\n")
	assert.Contains(t, md, "Completed: 2026-03-01 12:00 UTC\n")
	assert.Contains(t, md, "**Low confidence.**")
	assert.Contains(t, md, "- Queries: 2 (low coverage: 2 of 3 required categories)\n")
	assert.Contains(t, md, "- Competitor pages: 1 of 2 targets\n")
	assert.Contains(t, md, "- Overall score: 52.5\n")
	assert.Contains(t, md, "- Estimated cost: $0.0123\n")
	assert.Contains(t, md, `| 1 | critical | content_gap | Cover metal \| roof lifespan | Materials |`)
	assert.Contains(t, md, "Improve roof cost page (low confidence)")
	assert.Contains(t, md, "- **Metal roofing / lifespan** [critical, root] 3/3 competitors, e.g. 50 years\n")
	assert.Contains(t, md, "- **roof / warranty** [high, common] 2/3 competitors, declared: 25 years\n")
	assert.Contains(t, md, "- content_structure: n/a (weight 0.20), no heading data\n")
	assert.Contains(t, md, "- Coverage: n/a\n")
	assert.Contains(t, md, "- crawl: degraded (900ms)\n  Error: 1 fetch failed\n")
	assert.Contains(t, md, "## Degradations\n- queries (")
}

func TestMarkdown_Empty(t *testing.T) {
	md := Markdown(&model.AnalysisResult{RunID: "r"})
	assert.Contains(t, md, "No recommendations.")
	assert.Contains(t, md, "No gaps found.")
	assert.Contains(t, md, "- Overall score: n/a\n")
	assert.NotContains(t, md, "Degradations")
	assert.NotContains(t, md, "Completed:")
}

// readSheet returns every row of the named sheet as strings.
func readSheet(t *testing.T, f *xlsx.File, name string) [][]string {
	t.Helper()
	sheet, ok := f.Sheet[name]
	require.True(t, ok, "sheet %q", name)
	var rows [][]string
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows
}

func TestSaveXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.xlsx")
	require.NoError(t, SaveXLSX(path, testResult()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 6)
	assert.Equal(t, SheetSummary, f.Sheets[0].Name)

	summary := readSheet(t, f, SheetSummary)
	assert.Equal(t, []string{"Run", "run-1"}, summary[0])

	recs := readSheet(t, f, SheetRecommendations)
	require.Len(t, recs, 3)
	assert.Equal(t, "Rank", recs[0][0])
	assert.Equal(t, "1", recs[1][0])
	assert.Equal(t, "Cover metal | roof lifespan", recs[1][3])
	assert.Equal(t, "metal roof / lifespan", recs[1][6])

	gaps := readSheet(t, f, SheetGaps)
	require.Len(t, gaps, 3)
	assert.Equal(t, []string{"Metal roofing", "lifespan", "content_gap", "critical", "root"}, gaps[1][:5])
	assert.Equal(t, "25 years", gaps[2][9])

	queries := readSheet(t, f, SheetQueries)
	require.Len(t, queries, 3)
	assert.Equal(t, "900", queries[1][6])

	comps := readSheet(t, f, SheetCompetitors)
	assert.Equal(t, "unreachable", comps[2][5])

	dims := readSheet(t, f, SheetDimensions)
	assert.Equal(t, "n/a", dims[2][1])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, testResult()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	assert.Len(t, f.Sheets, 6)
}
