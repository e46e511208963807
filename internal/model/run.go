package model

import "time"

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusEnriching  RunStatus = "enriching"
	RunStatusGenerating RunStatus = "generating"
	RunStatusCrawling   RunStatus = "crawling"
	RunStatusExtracting RunStatus = "extracting"
	RunStatusScoring    RunStatus = "scoring"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// Run is one analysis invocation for a site.
type Run struct {
	ID        string          `json:"id"`
	SiteID    string          `json:"site_id"`
	Status    RunStatus       `json:"status"`
	Result    *AnalysisResult `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RunPhase is a tracked phase within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseStatus represents the settled state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusDegraded PhaseStatus = "degraded"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name       string         `json:"name"`
	Status     PhaseStatus    `json:"status"`
	Duration   int64          `json:"duration_ms"`
	TokenUsage TokenUsage     `json:"token_usage"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ProgressStatus is the transition a progress event reports.
type ProgressStatus string

const (
	ProgressStarted   ProgressStatus = "started"
	ProgressCompleted ProgressStatus = "completed"
	ProgressDegraded  ProgressStatus = "degraded"
	ProgressFailed    ProgressStatus = "failed"
	ProgressSkipped   ProgressStatus = "skipped"
)

// ProgressEvent is one phase transition of a run.
type ProgressEvent struct {
	RunID   string         `json:"run_id"`
	Seq     int            `json:"seq"`
	Phase   string         `json:"phase"`
	Status  ProgressStatus `json:"status"`
	Message string         `json:"message"`
	At      time.Time      `json:"at"`
}
