// Package workflow runs site analyses as durable Temporal workflows.
package workflow

import (
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Registered names.
const (
	WorkflowAnalyzeSite = "AnalyzeSite"
	ActivityAnalyzeSite = "AnalyzeSiteActivity"
	DefaultTaskQueue    = "gap-analysis"
)

// ErrTypeConfigurationIncomplete marks failures that retrying cannot fix.
const ErrTypeConfigurationIncomplete = "ConfigurationIncomplete"

const (
	defaultBudget     = 10 * time.Minute
	activityGrace     = 5 * time.Minute
	heartbeatTimeout  = 2 * time.Minute
	heartbeatInterval = 20 * time.Second
)

// AnalyzeSiteInput starts one analysis.
type AnalyzeSiteInput struct {
	SiteID     string `json:"site_id"`
	RunID      string `json:"run_id"`
	BudgetSecs int    `json:"budget_secs,omitempty"`
}

// AnalyzeSiteOutput summarizes a finished analysis. The full result is in
// the store under RunID.
type AnalyzeSiteOutput struct {
	RunID           string  `json:"run_id"`
	Gaps            int     `json:"gaps"`
	Recommendations int     `json:"recommendations"`
	Degradations    int     `json:"degradations"`
	LowConfidence   bool    `json:"low_confidence"`
	CostUSD         float64 `json:"cost_usd"`
	Attempt         int32   `json:"attempt"`
}

// Registry is the part of a Temporal worker used to register this package.
type Registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register adds the workflow and its activity to r.
func Register(r Registry, acts *Activities) {
	r.RegisterWorkflowWithOptions(AnalyzeSite, workflow.RegisterOptions{Name: WorkflowAnalyzeSite})
	r.RegisterActivityWithOptions(acts.AnalyzeSite, activity.RegisterOptions{Name: ActivityAnalyzeSite})
}

// AnalyzeSite executes the analysis activity with heartbeats and retries.
// Incomplete configuration fails the workflow without retry.
func AnalyzeSite(ctx workflow.Context, in AnalyzeSiteInput) (*AnalyzeSiteOutput, error) {
	if in.RunID == "" {
		in.RunID = workflow.GetInfo(ctx).WorkflowExecution.RunID
	}

	// The activity runs the pipeline under the same budget that sizes its
	// timeout, so the soft budget always fires first.
	if in.BudgetSecs <= 0 {
		in.BudgetSecs = int(defaultBudget / time.Second)
	}
	budget := time.Duration(in.BudgetSecs) * time.Second

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: budget + activityGrace,
		HeartbeatTimeout:    heartbeatTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        10 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeConfigurationIncomplete},
		},
	})

	logger := workflow.GetLogger(ctx)
	logger.Info("analyze site workflow started", "site_id", in.SiteID, "run_id", in.RunID)

	var out AnalyzeSiteOutput
	if err := workflow.ExecuteActivity(ctx, ActivityAnalyzeSite, in).Get(ctx, &out); err != nil {
		logger.Error("analyze site workflow failed", "site_id", in.SiteID, "error", err)
		return nil, err
	}

	logger.Info("analyze site workflow complete",
		"run_id", out.RunID,
		"recommendations", out.Recommendations,
		"degradations", out.Degradations,
	)
	return &out, nil
}
