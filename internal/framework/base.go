package framework

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/seantiz/agentflow/internal/engine"
	"github.com/seantiz/agentflow/internal/errors"
	"github.com/seantiz/agentflow/internal/model"
	"github.com/seantiz/agentflow/internal/workflow"
)

// Options carries the dependencies shared by every adapter.
type Options struct {
	// Store holds execution records. A private MemoryStore without
	// eviction is used when nil.
	Store engine.RecordStore

	// Broker receives step events. Optional.
	Broker *engine.EventBroker

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Base implements Adapter on top of a Blueprint.
type Base struct {
	ft             model.FrameworkType
	meta           model.FrameworkMetadata
	bp             Blueprint
	defaultTimeout time.Duration
	runner         *engine.Runner
	logger         *slog.Logger

	mu          sync.RWMutex
	cfg         Config
	initialized bool
}

var (
	_ Adapter = (*Base)(nil)
	_ Starter = (*Base)(nil)
)

// NewBase creates the shared adapter for framework ft. defaultTimeout
// applies when neither the execution context nor Config sets one.
func NewBase(ft model.FrameworkType, meta model.FrameworkMetadata, bp Blueprint, defaultTimeout time.Duration, opts Options) *Base {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("framework", string(ft))

	store := opts.Store
	if store == nil {
		store = engine.NewMemoryStore(0)
	}

	return &Base{
		ft:             ft,
		meta:           meta,
		bp:             bp,
		defaultTimeout: defaultTimeout,
		runner:         engine.NewRunner(ft, store, opts.Broker, logger),
		logger:         logger,
	}
}

// Type implements Adapter.
func (b *Base) Type() model.FrameworkType { return b.ft }

// Metadata implements Adapter.
func (b *Base) Metadata() model.FrameworkMetadata { return b.meta.Clone() }

// Initialize implements Adapter.
func (b *Base) Initialize(_ context.Context, cfg Config) error {
	if cfg.DefaultTimeout < 0 {
		return errors.Newf("%s: default timeout must not be negative", b.ft)
	}
	if cfg.TimeScale < 0 {
		return errors.Newf("%s: time scale must not be negative", b.ft)
	}

	b.mu.Lock()
	b.cfg = cfg
	b.initialized = true
	b.mu.Unlock()

	b.logger.Info("adapter initialized",
		"default_timeout", b.timeout(nil).String(),
		"time_scale", cfg.TimeScale,
	)
	return nil
}

// Shutdown implements Adapter.
func (b *Base) Shutdown(_ context.Context) error {
	n := b.runner.CancelAll()

	b.mu.Lock()
	b.initialized = false
	b.mu.Unlock()

	b.logger.Info("adapter shut down", "cancelled_executions", n)
	return nil
}

// Initialized reports whether Initialize succeeded and Shutdown has not
// run since.
func (b *Base) Initialized() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.initialized
}

// ValidateWorkflow implements Adapter.
func (b *Base) ValidateWorkflow(raw json.RawMessage) model.ValidationResult {
	_, problems := b.check(raw)
	return model.NewValidationResult(problems)
}

// ExecuteWorkflow implements Adapter.
func (b *Base) ExecuteWorkflow(ctx context.Context, raw, input json.RawMessage, ec model.ExecutionContext) (model.ExecutionResult, error) {
	run, err := b.StartWorkflow(ctx, raw, input, ec)
	if err != nil {
		return model.ExecutionResult{}, err
	}
	return run(), nil
}

// StartWorkflow implements Starter.
func (b *Base) StartWorkflow(ctx context.Context, raw, input json.RawMessage, ec model.ExecutionContext) (Started, error) {
	if ec.ExecutionID == "" {
		return nil, errors.New("execution id is required")
	}
	doc, problems := b.check(raw)
	if len(problems) > 0 {
		err := errors.Wrapf(errors.ErrInvalidWorkflow, "%s workflow", b.ft)
		return nil, errors.WithDetail(err, strings.Join(problems, "; "))
	}

	b.logStart(ec)

	b.mu.RLock()
	sim := Simulator{Scale: b.cfg.TimeScale}
	b.mu.RUnlock()

	exec, err := b.runner.Start(ctx, engine.Request{
		Context:  ec,
		Workflow: raw,
		Input:    input,
		Plan:     b.bp.Plan(doc, input, sim),
		Timeout:  b.timeout(ec.ResourceLimits),
	})
	if err != nil {
		b.logError(ec, err)
		return nil, err
	}

	return func() model.ExecutionResult {
		out := exec.Drive()
		if out.Err != nil {
			b.logError(ec, out.Err)
			return ErrorResult(out.Err.Error(), b.errorCode(out.Err), out.Elapsed, out.Steps)
		}
		output, usage := b.bp.Summarize(doc, input, out.Steps, out.Elapsed)
		b.logComplete(ec, out.Elapsed)
		return SuccessResult(output, out.Elapsed, out.Steps, usage)
	}, nil
}

// GetExecutionStatus implements Adapter.
func (b *Base) GetExecutionStatus(_ context.Context, executionID string) ([]model.ExecutionStep, error) {
	return b.runner.Status(executionID)
}

// CancelExecution implements Adapter.
func (b *Base) CancelExecution(_ context.Context, executionID string) error {
	return b.runner.Cancel(executionID)
}

// GetResourceRequirements implements Adapter.
func (b *Base) GetResourceRequirements(raw json.RawMessage) (model.ResourceEstimate, error) {
	doc, err := workflow.Parse(raw)
	if err != nil {
		return model.ResourceEstimate{}, err
	}
	return b.bp.Estimate(doc), nil
}

// ActiveExecutions returns the number of executions in flight.
func (b *Base) ActiveExecutions() int {
	return b.runner.Active()
}

func (b *Base) check(raw json.RawMessage) (workflow.Document, []string) {
	doc, problems := workflow.CheckStructure(raw)
	if len(problems) > 0 {
		return nil, problems
	}
	return doc, b.bp.Validate(doc)
}

// timeout resolves the execution deadline: the context's limit, then the
// configured default, then the adapter's built-in default.
func (b *Base) timeout(limits *model.ResourceLimits) time.Duration {
	if d := limits.Timeout(); d > 0 {
		return d
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.cfg.DefaultTimeout > 0 {
		return b.cfg.DefaultTimeout
	}
	return b.defaultTimeout
}

func (b *Base) errorCode(err error) string {
	switch code := errors.Code(err); code {
	case errors.CodeTimeout, errors.CodeCancelled:
		return code
	default:
		return fmt.Sprintf("%s_EXECUTION_ERROR", strings.ToUpper(string(b.ft)))
	}
}

func (b *Base) logStart(ec model.ExecutionContext) {
	b.logger.Info("execution started",
		"execution_id", ec.ExecutionID,
		"workflow_id", ec.WorkflowID,
		"agent_id", ec.AgentID,
		"correlation_id", ec.CorrelationID,
	)
}

func (b *Base) logComplete(ec model.ExecutionContext, elapsed time.Duration) {
	b.logger.Info("execution completed",
		"execution_id", ec.ExecutionID,
		"correlation_id", ec.CorrelationID,
		"success", true,
		"duration_ms", elapsed.Milliseconds(),
	)
}

func (b *Base) logError(ec model.ExecutionContext, err error) {
	b.logger.Error("execution failed",
		"execution_id", ec.ExecutionID,
		"correlation_id", ec.CorrelationID,
		"error", err,
	)
}
