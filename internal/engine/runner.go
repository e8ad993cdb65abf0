package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seantiz/agentflow/internal/errors"
	"github.com/seantiz/agentflow/internal/model"
)

// Request describes one execution to drive.
type Request struct {
	Context  model.ExecutionContext
	Workflow json.RawMessage
	Input    json.RawMessage
	Plan     Plan
	Timeout  time.Duration
}

// Outcome is what a Runner reports once an execution stops. Steps are always
// terminal. Err is nil only when every step completed.
type Outcome struct {
	Steps   []model.ExecutionStep
	Err     error
	Elapsed time.Duration
}

// Runner drives plans for one framework, recording progress in a
// RecordStore and publishing step transitions to an EventBroker.
type Runner struct {
	framework model.FrameworkType
	store     RecordStore
	broker    *EventBroker
	logger    *slog.Logger

	mu     sync.Mutex
	active map[string]*Record
}

// NewRunner creates a Runner. broker may be nil.
func NewRunner(ft model.FrameworkType, store RecordStore, broker *EventBroker, logger *slog.Logger) *Runner {
	return &Runner{
		framework: ft,
		store:     store,
		broker:    broker,
		logger:    logger,
		active:    make(map[string]*Record),
	}
}

// Run registers the execution record and drives req.Plan step by step until
// it completes, a step fails, the timeout fires or the execution is
// cancelled. The only error returned is a failure to create the record;
// every other failure is reported in Outcome.Err.
func (r *Runner) Run(ctx context.Context, req Request) (Outcome, error) {
	e, err := r.Start(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	return e.Drive(), nil
}

// Execution is a registered execution that has not been driven yet.
type Execution struct {
	runner *Runner
	rec    *Record
	req    Request
	ctx    context.Context
	cancel context.CancelFunc
}

// Start creates the execution record without running any step. From the
// moment Start returns, the execution is visible to Status and Cancel. The
// caller must call Drive exactly once.
func (r *Runner) Start(ctx context.Context, req Request) (*Execution, error) {
	id := req.Context.ExecutionID
	rec := NewRecord(r.framework, req.Context, req.Workflow, req.Input, req.Plan)

	runCtx, cancel := context.WithCancel(ctx)
	rec.bind(cancel, r.publisher(id))

	if r.broker != nil {
		r.broker.Open(id)
	}
	if err := r.store.Create(rec); err != nil {
		cancel()
		return nil, err
	}
	r.track(rec)

	return &Execution{runner: r, rec: rec, req: req, ctx: runCtx, cancel: cancel}, nil
}

// Drive runs the plan of a started execution. The timeout starts counting
// when Drive is called. An execution cancelled before Drive fails every
// step without running any.
func (e *Execution) Drive() Outcome {
	r, rec, req := e.runner, e.rec, e.req
	id := req.Context.ExecutionID

	defer e.cancel()
	if r.broker != nil {
		defer r.broker.Close(id)
	}
	defer r.untrack(rec)

	runCtx := e.ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(e.ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()
	var runErr error
	for i, step := range req.Plan {
		if err := runCtx.Err(); err != nil || rec.Cancelled() {
			runErr = r.classify(rec, req.Timeout, err)
			break
		}
		if !rec.start(i) {
			runErr = r.classify(rec, req.Timeout, runCtx.Err())
			break
		}
		r.logger.Debug("step started", "execution_id", id, "step_id", step.ID)

		out, err := race(runCtx, step.Run)
		if err != nil {
			runErr = r.classify(rec, req.Timeout, err)
			rec.fail(i, runErr.Error())
			r.logger.Debug("step failed", "execution_id", id, "step_id", step.ID, "error", runErr)
			break
		}
		if !rec.complete(i, out) {
			runErr = r.classify(rec, req.Timeout, runCtx.Err())
			break
		}
	}

	if runErr != nil {
		rec.reconcile(reconcileMessage(runErr, rec.Steps()))
	}
	rec.finish()

	return Outcome{
		Steps:   rec.Steps(),
		Err:     runErr,
		Elapsed: time.Since(start),
	}
}

// Status returns a snapshot of the steps of execution id.
func (r *Runner) Status(id string) ([]model.ExecutionStep, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return rec.Steps(), nil
}

// Cancel cancels execution id.
func (r *Runner) Cancel(id string) error {
	rec, err := r.lookup(id)
	if err != nil {
		return err
	}
	rec.Cancel()
	r.logger.Info("execution cancelled",
		"execution_id", id,
		"framework", r.framework,
		"correlation_id", rec.ec.CorrelationID,
	)
	return nil
}

// CancelAll cancels every execution this runner is driving and returns how
// many it cancelled.
func (r *Runner) CancelAll() int {
	r.mu.Lock()
	recs := make([]*Record, 0, len(r.active))
	for _, rec := range r.active {
		recs = append(recs, rec)
	}
	r.mu.Unlock()

	for _, rec := range recs {
		rec.Cancel()
	}
	return len(recs)
}

// Active returns the number of executions in flight.
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

func (r *Runner) track(rec *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[rec.ID()] = rec
}

func (r *Runner) untrack(rec *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[rec.ID()] == rec {
		delete(r.active, rec.ID())
	}
}

// lookup hides records owned by other frameworks sharing the same store.
func (r *Runner) lookup(id string) (*Record, error) {
	rec, err := r.store.Get(id)
	if err != nil {
		return nil, err
	}
	if rec.Framework() != r.framework {
		return nil, errors.NewNotFoundError("execution %s not found", id)
	}
	return rec, nil
}

func (r *Runner) publisher(id string) func(model.ExecutionStep) {
	if r.broker == nil {
		return nil
	}
	return func(s model.ExecutionStep) {
		r.broker.Publish(StepEvent{ExecutionID: id, Framework: r.framework, Step: s})
	}
}

// classify maps why a step stopped onto the error taxonomy.
func (r *Runner) classify(rec *Record, timeout time.Duration, err error) error {
	switch {
	case rec.Cancelled():
		return errors.Mark(errors.New(CancelledMessage), errors.ErrCancelled)
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Mark(errors.Newf("Execution timeout after %dms", timeout.Milliseconds()), errors.ErrExecutionTimeout)
	case errors.Is(err, context.Canceled):
		return errors.Mark(errors.New(CancelledMessage), errors.ErrCancelled)
	case err == nil:
		return errors.Mark(errors.New("step transition rejected"), errors.ErrExecution)
	default:
		return errors.Mark(err, errors.ErrExecution)
	}
}

// reconcileMessage is the error given to steps that never reached a
// terminal status.
func reconcileMessage(runErr error, steps []model.ExecutionStep) string {
	if errors.IsAny(runErr, errors.ErrExecutionTimeout, errors.ErrCancelled) {
		return runErr.Error()
	}
	for _, s := range steps {
		if s.Status == model.StepFailed {
			return fmt.Sprintf("Not executed: step %s failed", s.ID)
		}
	}
	return runErr.Error()
}

type unitResult struct {
	out any
	err error
}

// race runs u on its own goroutine and waits for it or for ctx, whichever
// finishes first. The loser is abandoned; its context is already done and
// the buffered channel lets it exit.
func race(ctx context.Context, u Unit) (any, error) {
	ch := make(chan unitResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- unitResult{err: errors.Newf("step panicked: %v", p)}
			}
		}()
		out, err := u(ctx)
		ch <- unitResult{out: out, err: err}
	}()

	select {
	case res := <-ch:
		return res.out, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
