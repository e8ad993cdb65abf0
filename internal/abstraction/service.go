package abstraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/seantiz/agentflow/internal/errors"
	"github.com/seantiz/agentflow/internal/framework"
	"github.com/seantiz/agentflow/internal/model"
	"github.com/seantiz/agentflow/internal/store"
)

// DefaultRequirements is reported when an adapter cannot estimate a
// workflow.
var DefaultRequirements = model.ResourceEstimate{CPU: 1, MemoryMB: 512}

// User-facing messages of normalized failures.
const (
	msgValidation = "Workflow validation failed"
	msgTimeout    = "Execution timed out"
	msgCancelled  = "Execution cancelled"
	msgExecution  = "Workflow execution failed"
)

// Registry is the view of framework.Registry the service depends on.
type Registry interface {
	ValidateFrameworkSupport(ft model.FrameworkType) error
	GetAdapter(ft model.FrameworkType) (framework.Adapter, bool)
	GetSupportedFrameworks() []model.FrameworkType
	GetFrameworkMetadata(ft model.FrameworkType) (model.FrameworkMetadata, bool)
	Status() []framework.AdapterStatus
}

// Archive receives every finished execution.
type Archive interface {
	SaveExecution(ctx context.Context, e *store.Execution) error
}

// FrameworkInfo describes one registered framework.
type FrameworkInfo struct {
	Type     model.FrameworkType     `json:"type"`
	State    framework.State         `json:"state"`
	Error    string                  `json:"error,omitempty"`
	Metadata model.FrameworkMetadata `json:"metadata"`
}

// ErrorDetails is attached to ResultError.Details of normalized failures.
// It carries the raw diagnostics for troubleshooting.
type ErrorDetails struct {
	Framework   model.FrameworkType `json:"framework"`
	Cause       string              `json:"cause"`
	AdapterCode string              `json:"adapter_code,omitempty"`
	Problems    []string            `json:"problems,omitempty"`
}

// Option configures a Service.
type Option func(*Service)

// WithArchive makes the service save every finished execution to a.
func WithArchive(a Archive) Option {
	return func(s *Service) { s.archive = a }
}

// Service is the execution façade over a framework registry.
type Service struct {
	registry Registry
	archive  Archive
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewService creates a Service over reg.
func NewService(reg Registry, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{registry: reg, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateWorkflow validates a workflow payload. A panicking adapter yields
// an invalid result rather than an error.
func (s *Service) ValidateWorkflow(ft model.FrameworkType, workflow json.RawMessage) (model.ValidationResult, error) {
	a, err := s.adapter(ft)
	if err != nil {
		return model.ValidationResult{}, err
	}
	return s.validate(a, ft, workflow), nil
}

// ExecuteWorkflow runs one execution to completion on the calling
// goroutine. Missing execution and correlation ids are generated.
func (s *Service) ExecuteWorkflow(ctx context.Context, ft model.FrameworkType, in model.ExecutionInput, ec model.ExecutionContext) (model.ExecutionResult, error) {
	a, err := s.adapter(ft)
	if err != nil {
		return model.ExecutionResult{}, err
	}
	return s.execute(ctx, a, ft, in, withIDs(ec)), nil
}

// Submit checks the framework and the workflow synchronously, registers
// the execution and returns its id; the workflow then runs on its own
// goroutine. Once Submit returns, the id is visible to GetExecutionStatus
// and CancelExecution. The execution outlives ctx cancellation; use
// CancelExecution to stop it.
func (s *Service) Submit(ctx context.Context, ft model.FrameworkType, in model.ExecutionInput, ec model.ExecutionContext) (string, error) {
	a, err := s.adapter(ft)
	if err != nil {
		return "", err
	}
	if v := s.validate(a, ft, in.WorkflowData); !v.Valid {
		err := errors.Wrapf(errors.ErrInvalidWorkflow, "%s workflow", ft)
		return "", errors.WithDetail(err, strings.Join(v.Errors, "; "))
	}

	ec = withIDs(ec)
	runCtx := context.WithoutCancel(ctx)

	st, ok := a.(framework.Starter)
	if !ok {
		s.wg.Go(func() {
			s.execute(runCtx, a, ft, in, ec)
		})
		return ec.ExecutionID, nil
	}

	x := s.begin(ft, ec)
	run, err := safeStart(runCtx, st, in, ec)
	if err != nil {
		x.reject(err)
		return "", err
	}
	s.wg.Go(func() {
		res, err := safeRun(run)
		x.end(runCtx, res, err)
	})
	return ec.ExecutionID, nil
}

// Wait blocks until every submitted execution has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// GetExecutionStatus returns the current steps of an execution.
func (s *Service) GetExecutionStatus(ctx context.Context, ft model.FrameworkType, executionID string) ([]model.ExecutionStep, error) {
	a, err := s.adapter(ft)
	if err != nil {
		return nil, err
	}
	steps, err := a.GetExecutionStatus(ctx, executionID)
	if err != nil {
		s.logger.Warn("failed to get execution status", "framework", string(ft), "execution_id", executionID, "error", err)
		return nil, err
	}
	return steps, nil
}

// CancelExecution stops an execution.
func (s *Service) CancelExecution(ctx context.Context, ft model.FrameworkType, executionID string) error {
	a, err := s.adapter(ft)
	if err != nil {
		return err
	}
	if err := a.CancelExecution(ctx, executionID); err != nil {
		s.logger.Warn("failed to cancel execution", "framework", string(ft), "execution_id", executionID, "error", err)
		return err
	}
	s.logger.Info("cancelled execution", "framework", string(ft), "execution_id", executionID)
	return nil
}

// GetResourceRequirements estimates what a workflow needs. An adapter that
// cannot estimate yields DefaultRequirements.
func (s *Service) GetResourceRequirements(ft model.FrameworkType, workflow json.RawMessage) (model.ResourceEstimate, error) {
	a, err := s.adapter(ft)
	if err != nil {
		return model.ResourceEstimate{}, err
	}
	est, err := a.GetResourceRequirements(workflow)
	if err != nil {
		s.logger.Warn("failed to get resource requirements", "framework", string(ft), "error", err)
		return DefaultRequirements, nil
	}
	return est, nil
}

// GetSupportedFrameworks returns the registered framework types.
func (s *Service) GetSupportedFrameworks() []model.FrameworkType {
	return s.registry.GetSupportedFrameworks()
}

// ListFrameworks returns metadata and lifecycle state of every registered
// framework.
func (s *Service) ListFrameworks() []FrameworkInfo {
	statuses := s.registry.Status()
	out := make([]FrameworkInfo, 0, len(statuses))
	for _, st := range statuses {
		meta, ok := s.registry.GetFrameworkMetadata(st.Framework)
		if !ok {
			continue
		}
		out = append(out, FrameworkInfo{
			Type:     st.Framework,
			State:    st.State,
			Error:    st.Error,
			Metadata: meta,
		})
	}
	return out
}

// GetFrameworkCapabilities returns the static capabilities of ft.
func (s *Service) GetFrameworkCapabilities(ft model.FrameworkType) (model.Capabilities, error) {
	meta, ok := s.registry.GetFrameworkMetadata(ft)
	if !ok {
		return model.Capabilities{}, errors.Wrapf(errors.ErrUnsupportedFramework, "framework %s not found", ft)
	}
	return meta.Capabilities, nil
}

func (s *Service) adapter(ft model.FrameworkType) (framework.Adapter, error) {
	if err := s.registry.ValidateFrameworkSupport(ft); err != nil {
		return nil, err
	}
	a, ok := s.registry.GetAdapter(ft)
	if !ok {
		return nil, errors.Wrapf(errors.ErrAdapterNotFound, "framework adapter for %s not found", ft)
	}
	return a, nil
}

func (s *Service) validate(a framework.Adapter, ft model.FrameworkType, workflow json.RawMessage) (res model.ValidationResult) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("workflow validation panicked", "framework", string(ft), "panic", p)
			res = model.NewValidationResult([]string{fmt.Sprintf("%s: %v", msgValidation, p)})
		}
	}()
	return a.ValidateWorkflow(workflow)
}

func (s *Service) execute(ctx context.Context, a framework.Adapter, ft model.FrameworkType, in model.ExecutionInput, ec model.ExecutionContext) model.ExecutionResult {
	x := s.begin(ft, ec)
	res, err := safeExecute(ctx, a, in, ec)
	return x.end(ctx, res, err)
}

// execution carries one run through logging, metrics and archiving.
type execution struct {
	s       *Service
	ft      model.FrameworkType
	ec      model.ExecutionContext
	logger  *slog.Logger
	active  prometheus.Gauge
	started time.Time
}

func (s *Service) begin(ft model.FrameworkType, ec model.ExecutionContext) *execution {
	logger := s.logger.With(
		"framework", string(ft),
		"execution_id", ec.ExecutionID,
		"correlation_id", ec.CorrelationID,
	)
	logger.Info("executing workflow", "workflow_id", ec.WorkflowID, "agent_id", ec.AgentID)

	active := activeExecutions.WithLabelValues(string(ft))
	active.Inc()
	return &execution{s: s, ft: ft, ec: ec, logger: logger, active: active, started: time.Now()}
}

// reject closes an execution that could not be registered. Nothing is
// archived: the caller gets err and no execution exists under the id.
func (x *execution) reject(err error) {
	x.active.Dec()
	x.logger.Warn("workflow execution rejected", "error", err)
}

// end turns what the adapter returned into the final result.
func (x *execution) end(ctx context.Context, res model.ExecutionResult, err error) model.ExecutionResult {
	defer x.active.Dec()
	elapsed := time.Since(x.started)

	if err != nil {
		res = failedResult(x.ft, err)
	} else {
		res = normalize(x.ft, res)
	}
	res.ExecutionTimeMS = elapsed.Milliseconds()

	if res.Success {
		x.logger.Info("workflow execution completed", "success", true, "duration_ms", res.ExecutionTimeMS)
	} else {
		x.logger.Error("workflow execution failed",
			"success", false,
			"code", res.Error.Code,
			"error", causeOf(res),
			"duration_ms", res.ExecutionTimeMS,
		)
	}

	observe(x.ft, res, elapsed)
	// A duplicate id belongs to an execution that is still running; its own
	// result will be archived when it finishes.
	if !errors.Is(err, errors.ErrDuplicateExecution) {
		x.s.archiveResult(ctx, x.ft, x.ec, res, x.started)
	}
	return res
}

func (s *Service) archiveResult(ctx context.Context, ft model.FrameworkType, ec model.ExecutionContext, res model.ExecutionResult, started time.Time) {
	if s.archive == nil {
		return
	}
	rec, err := store.NewExecution(ft, ec, res, started)
	if err == nil {
		err = s.archive.SaveExecution(context.WithoutCancel(ctx), rec)
	}
	if err != nil {
		s.logger.Error("failed to archive execution", "framework", string(ft), "execution_id", ec.ExecutionID, "error", err)
	}
}

// safeExecute converts an adapter panic into an execution error.
func safeExecute(ctx context.Context, a framework.Adapter, in model.ExecutionInput, ec model.ExecutionContext) (res model.ExecutionResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Mark(errors.Newf("adapter panicked: %v", p), errors.ErrExecution)
		}
	}()
	return a.ExecuteWorkflow(ctx, in.WorkflowData, in.InputData, ec)
}

// safeStart converts an adapter panic into an execution error.
func safeStart(ctx context.Context, st framework.Starter, in model.ExecutionInput, ec model.ExecutionContext) (run framework.Started, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Mark(errors.Newf("adapter panicked: %v", p), errors.ErrExecution)
		}
	}()
	return st.StartWorkflow(ctx, in.WorkflowData, in.InputData, ec)
}

func safeRun(run framework.Started) (res model.ExecutionResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Mark(errors.Newf("adapter panicked: %v", p), errors.ErrExecution)
		}
	}()
	return run(), nil
}

// failedResult builds the result of an execution whose adapter returned an
// error instead of a result.
func failedResult(ft model.FrameworkType, err error) model.ExecutionResult {
	code := errors.Code(err)
	msg := userMessage(code)
	if code == errors.CodeExecution {
		if t := TranslateError(ft, err); t.Code != errors.CodeFramework {
			code, msg = t.Code, t.Message
		}
	}

	return model.ExecutionResult{
		Success: false,
		Steps:   []model.ExecutionStep{},
		Error: &model.ResultError{
			Message: msg,
			Code:    code,
			Details: ErrorDetails{
				Framework: ft,
				Cause:     err.Error(),
				Problems:  errors.GetAllDetails(err),
			},
		},
	}
}

// normalize enforces the result invariants on what an adapter returned and
// replaces raw failure text with a user-safe message.
func normalize(ft model.FrameworkType, res model.ExecutionResult) model.ExecutionResult {
	if res.Steps == nil {
		res.Steps = []model.ExecutionStep{}
	}
	if res.Success && !model.HasFailedStep(res.Steps) {
		res.Error = nil
		return res
	}

	res.Success = false
	res.Output = nil
	raw, adapterCode := msgExecution, errors.CodeExecution
	if res.Error != nil {
		raw, adapterCode = res.Error.Message, res.Error.Code
	}

	msg, code := raw, adapterCode
	switch adapterCode {
	case errors.CodeTimeout, errors.CodeCancelled:
	default:
		msg = msgExecution
		if t := TranslateError(ft, errors.New(raw)); t.Code != errors.CodeFramework {
			msg, code = t.Message, t.Code
		}
	}

	res.Error = &model.ResultError{
		Message: msg,
		Code:    code,
		Details: ErrorDetails{
			Framework:   ft,
			Cause:       raw,
			AdapterCode: adapterCode,
		},
	}
	return res
}

func userMessage(code string) string {
	switch code {
	case errors.CodeValidation:
		return msgValidation
	case errors.CodeTimeout:
		return msgTimeout
	case errors.CodeCancelled:
		return msgCancelled
	default:
		return msgExecution
	}
}

func causeOf(res model.ExecutionResult) string {
	if d, ok := res.Error.Details.(ErrorDetails); ok {
		return d.Cause
	}
	return res.Error.Message
}

func withIDs(ec model.ExecutionContext) model.ExecutionContext {
	if ec.ExecutionID == "" {
		ec.ExecutionID = model.NewID()
	}
	if ec.CorrelationID == "" {
		ec.CorrelationID = model.NewCorrelationID()
	}
	return ec
}
