package workflow

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/sells-group/gap-analysis/internal/model"
)

// Runner executes one analysis within a wall-clock budget;
// *pipeline.Pipeline satisfies it.
type Runner interface {
	RunWithBudget(ctx context.Context, runID, siteID string, budget time.Duration) (*model.AnalysisResult, error)
}

// Activities holds the activity implementations.
type Activities struct {
	runner   Runner
	interval time.Duration
}

// NewActivities returns activities backed by runner.
func NewActivities(runner Runner) *Activities {
	return &Activities{runner: runner, interval: heartbeatInterval}
}

// AnalyzeSite runs the pipeline, heartbeating until it returns. Retried
// attempts record a fresh run so earlier attempts stay inspectable.
func (a *Activities) AnalyzeSite(ctx context.Context, in AnalyzeSiteInput) (*AnalyzeSiteOutput, error) {
	info := activity.GetInfo(ctx)
	runID := in.RunID
	if info.Attempt > 1 {
		runID = fmt.Sprintf("%s-a%d", in.RunID, info.Attempt)
	}

	log := zap.L().With(
		zap.String("site_id", in.SiteID),
		zap.String("run_id", runID),
		zap.Int32("attempt", info.Attempt),
		zap.Int("budget_secs", in.BudgetSecs),
	)
	log.Info("workflow: analyze site activity started")

	done := make(chan struct{})
	defer close(done)
	go a.heartbeat(ctx, done, runID)

	result, err := a.runner.RunWithBudget(ctx, runID, in.SiteID, time.Duration(in.BudgetSecs)*time.Second)
	if err != nil {
		if model.KindOf(err) == model.KindConfigurationIncomplete {
			log.Warn("workflow: configuration incomplete", zap.Error(err))
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeConfigurationIncomplete, err)
		}
		log.Error("workflow: analysis failed", zap.Error(err))
		return nil, err
	}

	return &AnalyzeSiteOutput{
		RunID:           result.RunID,
		Gaps:            len(result.Gaps),
		Recommendations: len(result.Recommendations),
		Degradations:    len(result.Degradations),
		LowConfidence:   result.LowConfidence,
		CostUSD:         result.CostUSD,
		Attempt:         info.Attempt,
	}, nil
}

func (a *Activities) heartbeat(ctx context.Context, done <-chan struct{}, runID string) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			activity.RecordHeartbeat(ctx, runID)
		}
	}
}

// Heartbeat records each progress event as activity heartbeat details. It
// is a no-op outside an activity.
func Heartbeat(ctx context.Context, ev model.ProgressEvent) {
	if !activity.IsActivity(ctx) {
		return
	}
	activity.RecordHeartbeat(ctx, ev)
}
