package workflow

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
)

// Starter is the part of the Temporal client used to start workflows.
type Starter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// Enqueue starts an AnalyzeSite workflow and returns the run ID the
// analysis will be recorded under.
func Enqueue(ctx context.Context, c Starter, taskQueue string, in AnalyzeSiteInput) (string, client.WorkflowRun, error) {
	if in.SiteID == "" {
		return "", nil, eris.New("workflow: enqueue: site id is required")
	}
	if in.RunID == "" {
		in.RunID = uuid.NewString()
	}
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowID(in.SiteID, in.RunID),
		TaskQueue: taskQueue,
	}, WorkflowAnalyzeSite, in)
	if err != nil {
		return "", nil, eris.Wrapf(err, "workflow: start analysis for %s", in.SiteID)
	}
	return in.RunID, run, nil
}

// WorkflowID is the Temporal workflow ID for an analysis run.
func WorkflowID(siteID, runID string) string {
	return "gap-analysis-" + siteID + "-" + runID
}
