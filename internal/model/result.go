package model

import "time"

// Degradation records a phase that completed with partial or no output.
type Degradation struct {
	Phase   string    `json:"phase"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// TokenUsage tracks text-generation token consumption.
type TokenUsage struct {
	InputTokens      int64 `json:"input_tokens"`
	OutputTokens     int64 `json:"output_tokens"`
	CacheWriteTokens int64 `json:"cache_write_tokens,omitempty"`
	CacheReadTokens  int64 `json:"cache_read_tokens,omitempty"`
	Calls            int   `json:"calls"`
}

// Add accumulates another usage record.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheWriteTokens += other.CacheWriteTokens
	u.CacheReadTokens += other.CacheReadTokens
	u.Calls += other.Calls
}

// FactSummary counts what extraction produced.
type FactSummary struct {
	OwnFacts        int `json:"own_facts"`
	CompetitorFacts int `json:"competitor_facts"`
	Dropped         int `json:"dropped"`
	OwnPages        int `json:"own_pages"`
	CompetitorPages int `json:"competitor_pages"`
	FailedPages     int `json:"failed_pages"`
}

// AnalysisResult is the terminal aggregate of one run.
type AnalysisResult struct {
	RunID           string               `json:"run_id"`
	Context         AnalysisContext      `json:"context"`
	Signals         []EnrichmentSignal   `json:"signals"`
	Queries         []GeneratedQuery     `json:"queries"`
	QueryCoverage   QueryCoverage        `json:"query_coverage"`
	CrawlTargets    []CrawlTarget        `json:"crawl_targets"`
	Competitors     []CompetitorPage     `json:"competitors"`
	Facts           FactSummary          `json:"facts"`
	Categories      []CategoryAssignment `json:"categories"`
	Gaps            []GapFinding         `json:"gaps"`
	Density         DensityReport        `json:"density"`
	Dimensions      DimensionScores      `json:"dimensions"`
	Recommendations []Recommendation     `json:"recommendations"`
	Phases          []PhaseResult        `json:"phases"`
	Degradations    []Degradation        `json:"degradations,omitempty"`
	LowConfidence   bool                 `json:"low_confidence"`
	Usage           TokenUsage           `json:"usage"`
	CostUSD         float64              `json:"cost_usd"`
	StartedAt       time.Time            `json:"started_at"`
	CompletedAt     time.Time            `json:"completed_at"`
}

// Degraded reports whether the named phase recorded a degradation.
func (r *AnalysisResult) Degraded(phase string) bool {
	for _, d := range r.Degradations {
		if d.Phase == phase {
			return true
		}
	}
	return false
}
