package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/geosampler/internal/core/domain"
)

// ExtractionInput identifies the grid the statistics are requested for.
type ExtractionInput struct {
	SessionID  string
	Generation int64
}

// ExtractionResult summarises an attached extraction.
type ExtractionResult struct {
	SessionID  string
	Generation int64
	Points     int
}

// ExtractionWorkflow fetches statistics for one grid generation and attaches
// them to the session. The stats call runs once; a grid that changed while it
// was in flight fails the workflow with a StaleStatistics error.
func ExtractionWorkflow(ctx workflow.Context, input ExtractionInput) (ExtractionResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting extraction workflow", "session", input.SessionID, "generation", input.Generation)

	fetchCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})
	attachCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})

	var stats []domain.PointStatistic
	if err := workflow.ExecuteActivity(fetchCtx, "ExtractStats", input.SessionID, input.Generation).Get(ctx, &stats); err != nil {
		return ExtractionResult{}, err
	}

	var attached int
	if err := workflow.ExecuteActivity(attachCtx, "AttachStats", input.SessionID, input.Generation, stats).Get(ctx, &attached); err != nil {
		logger.Warn("attach failed", "session", input.SessionID, "error", err)
		return ExtractionResult{}, err
	}

	logger.Info("Statistics attached", "session", input.SessionID, "points", attached)
	return ExtractionResult{SessionID: input.SessionID, Generation: input.Generation, Points: attached}, nil
}
