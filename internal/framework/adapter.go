package framework

import (
	"context"
	"encoding/json"
	"time"

	"github.com/seantiz/agentflow/internal/engine"
	"github.com/seantiz/agentflow/internal/model"
	"github.com/seantiz/agentflow/internal/workflow"
)

// Adapter is the uniform execution contract of one agent framework.
type Adapter interface {
	// Type returns the framework tag the adapter is registered under.
	Type() model.FrameworkType

	// Metadata returns a copy of the adapter's static descriptor.
	Metadata() model.FrameworkMetadata

	// Initialize prepares the adapter with cfg.
	Initialize(ctx context.Context, cfg Config) error

	// Shutdown cancels in-flight executions and releases resources.
	Shutdown(ctx context.Context) error

	// ValidateWorkflow checks payload structure. It never panics and does no
	// I/O; Errors is non-empty iff Valid is false.
	ValidateWorkflow(workflow json.RawMessage) model.ValidationResult

	// ExecuteWorkflow registers an execution record keyed by
	// ec.ExecutionID and drives the workflow's plan to completion or
	// failure. Step failures, timeouts and cancellation are reported in the
	// result; an error is returned only when no execution could start.
	ExecuteWorkflow(ctx context.Context, workflow, input json.RawMessage, ec model.ExecutionContext) (model.ExecutionResult, error)

	// GetExecutionStatus returns the current steps of an execution, or
	// ErrNotFound.
	GetExecutionStatus(ctx context.Context, executionID string) ([]model.ExecutionStep, error)

	// CancelExecution stops an execution, or returns ErrNotFound.
	CancelExecution(ctx context.Context, executionID string) error

	// GetResourceRequirements estimates what the workflow needs without
	// running anything.
	GetResourceRequirements(workflow json.RawMessage) (model.ResourceEstimate, error)
}

// Config is the per-adapter configuration passed to Initialize.
type Config struct {
	// DefaultTimeout bounds executions whose context carries no timeout.
	// Zero selects the adapter's built-in default.
	DefaultTimeout time.Duration

	// TimeScale multiplies simulated unit durations. Zero means 1.
	TimeScale float64
}

// Starter is implemented by adapters that can register an execution
// separately from running it.
type Starter interface {
	// StartWorkflow validates the workflow and registers its execution
	// record. On success the execution is visible to GetExecutionStatus and
	// CancelExecution, and the returned Started must be called exactly once
	// to run it.
	StartWorkflow(ctx context.Context, workflow, input json.RawMessage, ec model.ExecutionContext) (Started, error)
}

// Started runs a registered execution to completion and returns its result.
type Started func() model.ExecutionResult

// Blueprint is the framework-specific half of an adapter. Implementations
// are pure functions of the payload.
type Blueprint interface {
	// Validate returns the framework-specific structural problems of doc.
	Validate(doc workflow.Document) []string

	// Plan builds the ordered steps of one execution of doc.
	Plan(doc workflow.Document, input json.RawMessage, sim Simulator) engine.Plan

	// Estimate predicts the resources doc needs.
	Estimate(doc workflow.Document) model.ResourceEstimate

	// Summarize builds the success output and usage of a completed run.
	Summarize(doc workflow.Document, input json.RawMessage, steps []model.ExecutionStep, elapsed time.Duration) (any, model.ResourceUsage)
}
