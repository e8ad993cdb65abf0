package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/seantiz/agentflow/internal/model"
)

// CancelledMessage is the error recorded on a step stopped by CancelExecution.
const CancelledMessage = "Execution cancelled"

// Record is the mutable state of one execution: its context, payloads and
// step list. All step mutations go through the record so the state machine
// and the cancellation guard are enforced in one place. It is safe for
// concurrent use.
type Record struct {
	mu sync.Mutex

	framework model.FrameworkType
	ec        model.ExecutionContext
	workflow  json.RawMessage
	input     json.RawMessage
	steps     []model.ExecutionStep

	cancelled bool
	cancel    context.CancelFunc
	notify    func(model.ExecutionStep)

	finishedAt time.Time
	done       bool
}

// NewRecord creates a record with one pending step per plan entry.
func NewRecord(ft model.FrameworkType, ec model.ExecutionContext, workflow, input json.RawMessage, plan Plan) *Record {
	steps := make([]model.ExecutionStep, len(plan))
	for i, p := range plan {
		steps[i] = model.ExecutionStep{ID: p.ID, Name: p.Name, Status: model.StepPending}
	}
	return &Record{
		framework: ft,
		ec:        ec,
		workflow:  workflow,
		input:     input,
		steps:     steps,
	}
}

// ID returns the execution id the record is keyed by.
func (r *Record) ID() string { return r.ec.ExecutionID }

// Framework returns the framework that owns the execution.
func (r *Record) Framework() model.FrameworkType { return r.framework }

// Steps returns a snapshot of the current step list.
func (r *Record) Steps() []model.ExecutionStep {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.ExecutionStep, len(r.steps))
	copy(out, r.steps)
	return out
}

// Cancelled reports whether the execution was cancelled.
func (r *Record) Cancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

// Finished reports whether the execution has stopped and when.
func (r *Record) Finished() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finishedAt, r.done
}

// bind attaches the execution's cancel function and step observer.
func (r *Record) bind(cancel context.CancelFunc, notify func(model.ExecutionStep)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancel = cancel
	r.notify = notify
}

// Cancel marks the execution cancelled, fails the running step and cancels
// the execution's context. Every later step mutation is a no-op. Cancelling a
// finished execution only sets the flag.
func (r *Record) Cancel() {
	r.mu.Lock()
	if r.cancelled {
		r.mu.Unlock()
		return
	}
	r.cancelled = true

	var changed []model.ExecutionStep
	if !r.done {
		for i := range r.steps {
			if r.steps[i].Status == model.StepRunning {
				r.transition(i, model.StepFailed, nil, CancelledMessage)
				changed = append(changed, r.steps[i])
			}
		}
	}
	cancel := r.cancel
	r.mu.Unlock()

	r.emit(changed...)
	if cancel != nil {
		cancel()
	}
}

func (r *Record) start(i int) bool {
	return r.mutate(i, model.StepRunning, nil, "")
}

func (r *Record) complete(i int, output any) bool {
	return r.mutate(i, model.StepCompleted, output, "")
}

func (r *Record) fail(i int, msg string) bool {
	return r.mutate(i, model.StepFailed, nil, msg)
}

// mutate applies one guarded transition. It reports false when the
// execution is cancelled or the transition is not allowed.
func (r *Record) mutate(i int, to model.StepStatus, output any, msg string) bool {
	r.mu.Lock()
	if r.cancelled || i < 0 || i >= len(r.steps) || !model.ValidTransition(r.steps[i].Status, to) {
		r.mu.Unlock()
		return false
	}
	r.transition(i, to, output, msg)
	step := r.steps[i]
	r.mu.Unlock()

	r.emit(step)
	return true
}

// reconcile fails every non-terminal step with msg. It bypasses the
// cancellation guard so a cancelled execution still ends fully terminal.
func (r *Record) reconcile(msg string) {
	r.mu.Lock()
	var changed []model.ExecutionStep
	for i := range r.steps {
		if !r.steps[i].Status.Terminal() {
			r.transition(i, model.StepFailed, nil, msg)
			changed = append(changed, r.steps[i])
		}
	}
	r.mu.Unlock()

	r.emit(changed...)
}

func (r *Record) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = true
	r.finishedAt = time.Now().UTC()
}

// transition must be called with r.mu held.
func (r *Record) transition(i int, to model.StepStatus, output any, msg string) {
	now := time.Now().UTC()
	s := &r.steps[i]
	s.Status = to

	switch to {
	case model.StepRunning:
		s.StartedAt = &now
	case model.StepCompleted, model.StepFailed:
		s.CompletedAt = &now
		if s.StartedAt != nil {
			d := now.Sub(*s.StartedAt).Milliseconds()
			s.DurationMS = &d
		}
		s.Output = output
		s.Error = msg
	}
}

func (r *Record) emit(steps ...model.ExecutionStep) {
	r.mu.Lock()
	notify := r.notify
	r.mu.Unlock()

	if notify == nil {
		return
	}
	for _, s := range steps {
		notify(s)
	}
}
