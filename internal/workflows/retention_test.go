package workflows_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/pingsphere/internal/core/domain"
	"github.com/samirrijal/pingsphere/internal/workflows"
)

type fakePresences struct {
	cutoff time.Time
	n      int64
	err    error
}

func (f *fakePresences) Upsert(context.Context, *domain.Presence) error { return nil }
func (f *fakePresences) GetByID(context.Context, string) (*domain.Presence, error) {
	return nil, domain.ErrNotFound
}
func (f *fakePresences) Delete(context.Context, string) error { return nil }
func (f *fakePresences) ListActive(context.Context, time.Time) ([]domain.Presence, error) {
	return nil, nil
}
func (f *fakePresences) DeleteOfflineBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.n, f.err
}

type fakePings struct {
	cutoff time.Time
	n      int64
}

func (f *fakePings) Insert(context.Context, *domain.Ping) error { return nil }
func (f *fakePings) GetByID(context.Context, string) (*domain.Ping, error) {
	return nil, domain.ErrNotFound
}
func (f *fakePings) ListSince(context.Context, time.Time, int) ([]domain.Ping, error) {
	return nil, nil
}
func (f *fakePings) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.n, nil
}

func TestRetentionWorkflow(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	presences := &fakePresences{n: 4}
	pings := &fakePings{n: 7}
	env.RegisterWorkflow(workflows.RetentionWorkflow)
	env.RegisterActivity(&workflows.RetentionActivities{Presences: presences, Pings: pings})

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	env.SetStartTime(start)
	env.ExecuteWorkflow(workflows.RetentionWorkflow, workflows.RetentionInput{
		PresenceLifetime: 24 * time.Hour,
		PingLifetime:     48 * time.Hour,
	})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}

	var res workflows.RetentionResult
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatalf("result: %v", err)
	}
	if res.Presences != 4 || res.Pings != 7 {
		t.Errorf("result = %+v, want {4 7}", res)
	}
	if !presences.cutoff.Equal(start.Add(-24 * time.Hour)) {
		t.Errorf("presence cutoff = %v", presences.cutoff)
	}
	if !pings.cutoff.Equal(start.Add(-48 * time.Hour)) {
		t.Errorf("ping cutoff = %v", pings.cutoff)
	}
}

func TestRetentionWorkflow_PingPurgeRunsWhenPresencePurgeFails(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	presences := &fakePresences{err: errors.New("db down")}
	pings := &fakePings{n: 2}
	env.RegisterWorkflow(workflows.RetentionWorkflow)
	env.RegisterActivity(&workflows.RetentionActivities{Presences: presences, Pings: pings})

	env.ExecuteWorkflow(workflows.RetentionWorkflow, workflows.RetentionInput{
		PresenceLifetime: time.Hour,
		PingLifetime:     time.Hour,
	})

	if env.GetWorkflowError() == nil {
		t.Fatal("expected workflow error from presence purge")
	}
	if pings.cutoff.IsZero() {
		t.Error("ping purge should still have run")
	}
}
