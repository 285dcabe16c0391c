package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// RetentionWorkflowID is the fixed id of the scheduled retention run.
const RetentionWorkflowID = "pingsphere-retention"

// RetentionInput is the input for the retention workflow.
type RetentionInput struct {
	PresenceLifetime time.Duration
	PingLifetime     time.Duration
}

// RetentionResult reports how many rows were purged.
type RetentionResult struct {
	Presences int64
	Pings     int64
}

// RetentionWorkflow removes presences and pings older than their lifetimes.
// Both purges run even if the first one fails.
func RetentionWorkflow(ctx workflow.Context, input RetentionInput) (RetentionResult, error) {
	logger := workflow.GetLogger(ctx)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	now := workflow.Now(ctx)
	var res RetentionResult

	presenceErr := workflow.ExecuteActivity(ctx, "PurgeExpiredPresences", now.Add(-input.PresenceLifetime)).Get(ctx, &res.Presences)
	if presenceErr != nil {
		logger.Warn("presence purge failed", "error", presenceErr)
	}

	if err := workflow.ExecuteActivity(ctx, "PurgeExpiredPings", now.Add(-input.PingLifetime)).Get(ctx, &res.Pings); err != nil {
		return res, err
	}

	logger.Info("Retention run finished", "presences", res.Presences, "pings", res.Pings)
	return res, presenceErr
}
