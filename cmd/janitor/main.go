package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/pingsphere/internal/adapters/postgres"
	"github.com/samirrijal/pingsphere/internal/pkg/config"
	"github.com/samirrijal/pingsphere/internal/pkg/logging"
	"github.com/samirrijal/pingsphere/internal/workflows"
)

// janitor hosts the retention worker and makes sure the hourly cron run of
// RetentionWorkflow is scheduled.
func main() {
	cfg, err := config.Load("pingsphere-janitor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	closeLog := logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	defer closeLog()

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 4)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.RetentionWorkflow)
	w.RegisterActivity(&workflows.RetentionActivities{
		Presences: postgres.NewPresenceRepo(db),
		Pings:     postgres.NewPingRepo(db),
	})

	// Starting a cron workflow with a fixed id is idempotent; an already
	// running schedule is reported as an error and left in place.
	_, err = c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:           workflows.RetentionWorkflowID,
		TaskQueue:    cfg.Temporal.TaskQueue,
		CronSchedule: cfg.Temporal.Schedule,
	}, workflows.RetentionWorkflow, workflows.RetentionInput{
		PresenceLifetime: cfg.Engine.PresenceLifetime,
		PingLifetime:     cfg.Engine.Lifetime,
	})
	if err != nil {
		slog.Warn("retention schedule not started", "error", err)
	} else {
		slog.Info("retention scheduled", "cron", cfg.Temporal.Schedule, "queue", cfg.Temporal.TaskQueue)
	}

	slog.Info("janitor worker started")
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
