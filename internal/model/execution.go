package model

import (
	"encoding/json"
	"time"
)

// StepStatus is the lifecycle state of one execution step.
type StepStatus string

// Step status constants.
const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// validTransitions maps each status to the set of statuses it may transition to.
// A pending step may fail directly when the execution stops before reaching it.
var validTransitions = map[StepStatus]map[StepStatus]bool{
	StepPending: {
		StepRunning: true,
		StepFailed:  true,
	},
	StepRunning: {
		StepCompleted: true,
		StepFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to StepStatus) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Terminal reports whether s is a final status.
func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepFailed
}

// ResourceLimits bounds a single execution. Zero values mean "use the
// adapter default".
type ResourceLimits struct {
	CPU       float64 `json:"cpu,omitempty"`
	MemoryMB  int     `json:"memory,omitempty"`
	TimeoutMS int     `json:"timeout,omitempty"`
}

// Timeout returns the configured timeout, or zero when unset.
func (l *ResourceLimits) Timeout() time.Duration {
	if l == nil || l.TimeoutMS <= 0 {
		return 0
	}
	return time.Duration(l.TimeoutMS) * time.Millisecond
}

// ExecutionContext carries the caller-supplied identifiers and limits of one
// execution request. The core never mutates it.
type ExecutionContext struct {
	ExecutionID    string          `json:"execution_id"`
	WorkflowID     string          `json:"workflow_id"`
	AgentID        string          `json:"agent_id"`
	UserID         string          `json:"user_id"`
	CorrelationID  string          `json:"correlation_id"`
	ContainerID    string          `json:"container_id,omitempty"`
	ResourceLimits *ResourceLimits `json:"resource_limits,omitempty"`
}

// ExecutionStep is one unit of tracked progress within an execution.
type ExecutionStep struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      StepStatus `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMS  *int64     `json:"duration_ms,omitempty"`
	Output      any        `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ResourceUsage aggregates what an execution consumed.
type ResourceUsage struct {
	CPUTimeMS    float64  `json:"cpu_time"`
	MemoryPeakMB float64  `json:"memory_peak"`
	GPUTimeMS    *float64 `json:"gpu_time,omitempty"`
}

// ResultError is the normalized, user-safe error attached to a failed result.
// Raw framework diagnostics live only in Details.
type ResultError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// ExecutionResult is the only value that leaves the core for an execution.
// It is always fully populated: Steps is never nil and numeric fields are
// zeroed on failure.
type ExecutionResult struct {
	Success         bool            `json:"success"`
	Output          any             `json:"output"`
	ExecutionTimeMS int64           `json:"execution_time"`
	ResourceUsage   ResourceUsage   `json:"resource_usage"`
	Steps           []ExecutionStep `json:"steps"`
	Error           *ResultError    `json:"error,omitempty"`
}

// ExecutionInput bundles the opaque payloads of an execution request.
type ExecutionInput struct {
	WorkflowData json.RawMessage `json:"workflow_data"`
	InputData    json.RawMessage `json:"input_data,omitempty"`
}

// HasFailedStep reports whether any step ended in failure.
func HasFailedStep(steps []ExecutionStep) bool {
	for _, s := range steps {
		if s.Status == StepFailed {
			return true
		}
	}
	return false
}

// AllTerminal reports whether every step reached a final status.
func AllTerminal(steps []ExecutionStep) bool {
	for _, s := range steps {
		if !s.Status.Terminal() {
			return false
		}
	}
	return true
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}
