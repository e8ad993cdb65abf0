package engine_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/seantiz/agentflow/internal/engine"
	"github.com/seantiz/agentflow/internal/errors"
	"github.com/seantiz/agentflow/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRunner(t *testing.T) (*engine.Runner, *engine.MemoryStore) {
	t.Helper()
	store := engine.NewMemoryStore(time.Minute)
	return engine.NewRunner(model.FrameworkLangGraph, store, engine.NewEventBroker(), testLogger()), store
}

func quickPlan(ids ...string) engine.Plan {
	plan := make(engine.Plan, len(ids))
	for i, id := range ids {
		plan[i] = engine.PlanStep{ID: id, Name: "step " + id, Run: engine.Simulated(time.Millisecond, id)}
	}
	return plan
}

func request(id string, plan engine.Plan, timeout time.Duration) engine.Request {
	return engine.Request{
		Context: model.ExecutionContext{ExecutionID: id},
		Plan:    plan,
		Timeout: timeout,
	}
}

func assertAllTerminal(t *testing.T, steps []model.ExecutionStep) {
	t.Helper()
	for _, s := range steps {
		if !s.Status.Terminal() {
			t.Errorf("step %s status = %q, want terminal", s.ID, s.Status)
		}
	}
}

func TestRunCompletesPlanInOrder(t *testing.T) {
	r, _ := newRunner(t)

	out, err := r.Run(context.Background(), request("e1", quickPlan("a", "b", "c"), time.Second))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Err != nil {
		t.Fatalf("Outcome.Err = %v, want nil", out.Err)
	}
	if len(out.Steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(out.Steps))
	}

	var prev time.Time
	for i, s := range out.Steps {
		if s.ID != []string{"a", "b", "c"}[i] {
			t.Errorf("step[%d].ID = %q", i, s.ID)
		}
		if s.Status != model.StepCompleted {
			t.Errorf("step %s status = %q, want completed", s.ID, s.Status)
		}
		if s.Output != s.ID {
			t.Errorf("step %s output = %v", s.ID, s.Output)
		}
		if s.StartedAt == nil || s.CompletedAt == nil || s.DurationMS == nil {
			t.Fatalf("step %s missing timestamps", s.ID)
		}
		if s.StartedAt.Before(prev) {
			t.Errorf("step %s started before its predecessor completed", s.ID)
		}
		prev = *s.CompletedAt
	}
}

func TestRunStepErrorStopsExecution(t *testing.T) {
	r, _ := newRunner(t)
	plan := quickPlan("a", "b", "c")
	plan[1].Run = func(context.Context) (any, error) {
		return nil, fmt.Errorf("tool exploded")
	}

	out, err := r.Run(context.Background(), request("e1", plan, time.Second))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !errors.Is(out.Err, errors.ErrExecution) {
		t.Fatalf("Outcome.Err = %v, want ErrExecution", out.Err)
	}
	if out.Steps[0].Status != model.StepCompleted {
		t.Errorf("step a = %q, want completed", out.Steps[0].Status)
	}
	if out.Steps[1].Status != model.StepFailed || out.Steps[1].Error != "tool exploded" {
		t.Errorf("step b = %+v, want failed with tool exploded", out.Steps[1])
	}
	if out.Steps[2].Status != model.StepFailed || out.Steps[2].Error != "Not executed: step b failed" {
		t.Errorf("step c = %+v, want reconciled failure", out.Steps[2])
	}
}

func TestRunRecoversPanickingUnit(t *testing.T) {
	r, _ := newRunner(t)
	plan := quickPlan("a")
	plan[0].Run = func(context.Context) (any, error) {
		panic("boom")
	}

	out, err := r.Run(context.Background(), request("e1", plan, time.Second))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Err == nil || out.Steps[0].Status != model.StepFailed {
		t.Fatalf("panic not converted to a failed step: %+v", out)
	}
}

func TestRunTimeoutReconcilesSteps(t *testing.T) {
	r, _ := newRunner(t)
	plan := quickPlan("a", "slow", "c")
	plan[1].Run = engine.Simulated(5*time.Second, nil)

	start := time.Now()
	out, err := r.Run(context.Background(), request("e1", plan, 50*time.Millisecond))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Run took %v, want close to the 50ms timeout", elapsed)
	}
	if !errors.Is(out.Err, errors.ErrExecutionTimeout) {
		t.Fatalf("Outcome.Err = %v, want ErrExecutionTimeout", out.Err)
	}
	if errors.Code(out.Err) != errors.CodeTimeout {
		t.Errorf("Code = %q, want %q", errors.Code(out.Err), errors.CodeTimeout)
	}
	assertAllTerminal(t, out.Steps)
	if out.Steps[1].Error != "Execution timeout after 50ms" {
		t.Errorf("slow step error = %q", out.Steps[1].Error)
	}
	if out.Steps[2].Status != model.StepFailed {
		t.Errorf("pending step not reconciled: %+v", out.Steps[2])
	}
}

func TestRunTimeoutAbandonsUnitIgnoringContext(t *testing.T) {
	r, _ := newRunner(t)
	release := make(chan struct{})
	defer close(release)

	plan := engine.Plan{{ID: "stuck", Run: func(context.Context) (any, error) {
		<-release
		return "late", nil
	}}}

	out, err := r.Run(context.Background(), request("e1", plan, 30*time.Millisecond))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !errors.Is(out.Err, errors.ErrExecutionTimeout) {
		t.Fatalf("Outcome.Err = %v, want timeout", out.Err)
	}
	if out.Steps[0].Status != model.StepFailed {
		t.Errorf("stuck step = %q, want failed", out.Steps[0].Status)
	}
}

func TestCancelFailsRunningStep(t *testing.T) {
	r, _ := newRunner(t)
	started := make(chan struct{})

	plan := quickPlan("a", "b", "c")
	plan[1].Run = func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	done := make(chan engine.Outcome, 1)
	go func() {
		out, _ := r.Run(context.Background(), request("e1", plan, 5*time.Second))
		done <- out
	}()

	<-started
	if err := r.Cancel("e1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	steps, err := r.Status("e1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if steps[1].Status != model.StepFailed || steps[1].Error != engine.CancelledMessage {
		t.Errorf("running step after cancel = %+v", steps[1])
	}

	out := <-done
	if !errors.Is(out.Err, errors.ErrCancelled) {
		t.Errorf("Outcome.Err = %v, want ErrCancelled", out.Err)
	}
	assertAllTerminal(t, out.Steps)
	if out.Steps[0].Status != model.StepCompleted {
		t.Errorf("step a = %q, want completed", out.Steps[0].Status)
	}
}

func TestCancelIsAuthoritative(t *testing.T) {
	r, _ := newRunner(t)
	started := make(chan struct{})
	release := make(chan struct{})

	// The unit ignores its context and completes after the cancellation.
	plan := engine.Plan{{ID: "a", Run: func(context.Context) (any, error) {
		close(started)
		<-release
		return "late result", nil
	}}}

	done := make(chan engine.Outcome, 1)
	go func() {
		out, _ := r.Run(context.Background(), request("e1", plan, 5*time.Second))
		done <- out
	}()

	<-started
	if err := r.Cancel("e1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	out := <-done
	close(release)

	// Give the abandoned unit a chance to return.
	time.Sleep(20 * time.Millisecond)

	steps, err := r.Status("e1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if steps[0].Status != model.StepFailed || steps[0].Error != engine.CancelledMessage || steps[0].Output != nil {
		t.Errorf("cancelled step was overwritten: %+v", steps[0])
	}
	if !errors.Is(out.Err, errors.ErrCancelled) {
		t.Errorf("Outcome.Err = %v, want ErrCancelled", out.Err)
	}
}

func TestStatusAndCancelUnknownExecution(t *testing.T) {
	r, _ := newRunner(t)

	if _, err := r.Status("missing"); !errors.IsNotFound(err) {
		t.Errorf("Status error = %v, want not found", err)
	}
	if err := r.Cancel("missing"); !errors.IsNotFound(err) {
		t.Errorf("Cancel error = %v, want not found", err)
	}
}

func TestStatusHidesOtherFrameworksRecords(t *testing.T) {
	store := engine.NewMemoryStore(time.Minute)
	lg := engine.NewRunner(model.FrameworkLangGraph, store, nil, testLogger())
	n8n := engine.NewRunner(model.FrameworkN8n, store, nil, testLogger())

	if _, err := lg.Run(context.Background(), request("e1", quickPlan("a"), time.Second)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := n8n.Status("e1"); !errors.IsNotFound(err) {
		t.Errorf("n8n Status error = %v, want not found", err)
	}
}

func TestRunRejectsDuplicateInFlightID(t *testing.T) {
	r, _ := newRunner(t)
	started := make(chan struct{})
	release := make(chan struct{})

	plan := engine.Plan{{ID: "a", Run: func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return nil, nil
	}}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Run(context.Background(), request("e1", plan, 5*time.Second))
	}()
	<-started

	_, err := r.Run(context.Background(), request("e1", quickPlan("x"), time.Second))
	if !errors.Is(err, errors.ErrDuplicateExecution) {
		t.Errorf("second Run error = %v, want ErrDuplicateExecution", err)
	}
	close(release)
	<-done

	// A finished id may be reused.
	if _, err := r.Run(context.Background(), request("e1", quickPlan("x"), time.Second)); err != nil {
		t.Errorf("rerun after finish: %v", err)
	}
}

func TestRunConcurrentExecutionsAreIsolated(t *testing.T) {
	r, _ := newRunner(t)

	var wg sync.WaitGroup
	outcomes := make([]engine.Outcome, 2)
	plans := []engine.Plan{quickPlan("a1", "a2"), quickPlan("b1", "b2", "b3")}
	for i := range plans {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := r.Run(context.Background(), request(fmt.Sprintf("exec-%d", i), plans[i], time.Second))
			if err != nil {
				t.Errorf("Run %d: %v", i, err)
			}
			outcomes[i] = out
		}(i)
	}
	wg.Wait()

	for i, out := range outcomes {
		if out.Err != nil {
			t.Errorf("execution %d failed: %v", i, out.Err)
		}
		if len(out.Steps) != len(plans[i]) {
			t.Errorf("execution %d has %d steps, want %d", i, len(out.Steps), len(plans[i]))
		}
		steps, err := r.Status(fmt.Sprintf("exec-%d", i))
		if err != nil {
			t.Fatalf("Status %d: %v", i, err)
		}
		for j, s := range steps {
			if s.ID != plans[i][j].ID {
				t.Errorf("execution %d step %d = %q, want %q", i, j, s.ID, plans[i][j].ID)
			}
		}
	}
}

func TestRunPublishesStepEvents(t *testing.T) {
	store := engine.NewMemoryStore(time.Minute)
	broker := engine.NewEventBroker()
	r := engine.NewRunner(model.FrameworkAgno, store, broker, testLogger())

	ch, unsub := broker.Subscribe("e1")
	defer unsub()

	if _, err := r.Run(context.Background(), request("e1", quickPlan("a", "b"), time.Second)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var got []model.StepStatus
	for ev := range ch {
		if ev.Framework != model.FrameworkAgno {
			t.Errorf("event framework = %q", ev.Framework)
		}
		got = append(got, ev.Step.Status)
	}
	want := []model.StepStatus{model.StepRunning, model.StepCompleted, model.StepRunning, model.StepCompleted}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStartRegistersBeforeDrive(t *testing.T) {
	r, _ := newRunner(t)

	e, err := r.Start(context.Background(), request("e1", quickPlan("a", "b"), time.Second))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	steps, err := r.Status("e1")
	if err != nil {
		t.Fatalf("Status before Drive: %v", err)
	}
	for _, s := range steps {
		if s.Status != model.StepPending {
			t.Errorf("step %s status = %q before Drive, want pending", s.ID, s.Status)
		}
	}
	if _, err := r.Start(context.Background(), request("e1", quickPlan("x"), time.Second)); !errors.Is(err, errors.ErrDuplicateExecution) {
		t.Errorf("second Start error = %v, want ErrDuplicateExecution", err)
	}

	out := e.Drive()
	if out.Err != nil {
		t.Fatalf("Outcome.Err = %v, want nil", out.Err)
	}
	if r.Active() != 0 {
		t.Errorf("Active = %d after Drive, want 0", r.Active())
	}
}

func TestCancelBeforeDriveFailsEveryStep(t *testing.T) {
	r, _ := newRunner(t)
	ran := false
	plan := engine.Plan{{ID: "a", Run: func(context.Context) (any, error) {
		ran = true
		return nil, nil
	}}, {ID: "b", Run: engine.Simulated(time.Millisecond, nil)}}

	e, err := r.Start(context.Background(), request("e1", plan, time.Second))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Cancel("e1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	out := e.Drive()
	if !errors.Is(out.Err, errors.ErrCancelled) {
		t.Errorf("Outcome.Err = %v, want ErrCancelled", out.Err)
	}
	if ran {
		t.Error("a step ran after the execution was cancelled")
	}
	for _, s := range out.Steps {
		if s.Status != model.StepFailed || s.Error != engine.CancelledMessage {
			t.Errorf("step %s = %q/%q, want failed/%q", s.ID, s.Status, s.Error, engine.CancelledMessage)
		}
	}
}
