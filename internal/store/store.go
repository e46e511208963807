// Package store persists strategies, site inputs, runs and their results.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gap-analysis/internal/model"
)

// ErrNotFound is returned when a run or phase does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	SiteID string          `json:"site_id,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the gap analysis engine.
type Store interface {
	// Strategy and site inputs
	GetStrategy(ctx context.Context, siteID string) (*model.StrategyConfig, error)
	PutStrategy(ctx context.Context, sc model.StrategyConfig) error
	GetOwnPages(ctx context.Context, siteID string) ([]model.PageRef, error)
	PutOwnPages(ctx context.Context, siteID string, pages []model.PageRef) (int, error)
	GetQueries(ctx context.Context, siteID string) ([]model.PerformanceRecord, error)
	PutPerformance(ctx context.Context, siteID string, recs []model.PerformanceRecord) (int, error)

	// Runs
	CreateRun(ctx context.Context, runID, siteID string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	FailRun(ctx context.Context, runID, reason string) error
	SaveResult(ctx context.Context, result *model.AnalysisResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error
	ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error)

	// Progress events
	AppendEvent(ctx context.Context, ev model.ProgressEvent) error
	ListEvents(ctx context.Context, runID string, afterSeq int) ([]model.ProgressEvent, error)

	// Page cache
	GetCachedPage(ctx context.Context, url string) (*model.PageText, error)
	SetCachedPage(ctx context.Context, url string, page model.PageText, ttl time.Duration) error
	DeleteExpiredPages(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func notFound(entity, id string) error {
	return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
}
