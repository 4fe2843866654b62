package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yourorg/product-catalog/internal/types"
)

// SweepImagesWorkflow removes image blobs no catalog record references.
func SweepImagesWorkflow(ctx workflow.Context, p types.SweepParams) (types.SweepResult, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		HeartbeatTimeout:    1 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var res types.SweepResult
	if err := workflow.ExecuteActivity(ctx, "Activities.SweepOrphanedImages", p).Get(ctx, &res); err != nil {
		return types.SweepResult{}, err
	}
	return res, nil
}
