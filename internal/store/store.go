package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/seantiz/agentflow/internal/model"
)

// Execution is the archived outcome of one finished execution.
type Execution struct {
	ID            string          `json:"id"`
	Framework     string          `json:"framework"`
	WorkflowID    string          `json:"workflow_id"`
	AgentID       string          `json:"agent_id"`
	UserID        string          `json:"user_id"`
	CorrelationID string          `json:"correlation_id"`
	Success       bool            `json:"success"`
	ErrorCode     string          `json:"error_code,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	DurationMS    int64           `json:"duration_ms"`
	StepCount     int             `json:"step_count"`
	Result        json.RawMessage `json:"result"`
	CreatedAt     time.Time       `json:"created_at"`
	FinishedAt    time.Time       `json:"finished_at"`
}

// NewExecution builds the archive row for a finished execution. startedAt
// is when the façade accepted the request.
func NewExecution(ft model.FrameworkType, ec model.ExecutionContext, res model.ExecutionResult, startedAt time.Time) (*Execution, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}

	e := &Execution{
		ID:            ec.ExecutionID,
		Framework:     string(ft),
		WorkflowID:    ec.WorkflowID,
		AgentID:       ec.AgentID,
		UserID:        ec.UserID,
		CorrelationID: ec.CorrelationID,
		Success:       res.Success,
		DurationMS:    res.ExecutionTimeMS,
		StepCount:     len(res.Steps),
		Result:        raw,
		CreatedAt:     startedAt.UTC(),
		FinishedAt:    startedAt.UTC().Add(time.Duration(res.ExecutionTimeMS) * time.Millisecond),
	}
	if res.Error != nil {
		e.ErrorCode = res.Error.Code
		e.ErrorMessage = res.Error.Message
	}
	return e, nil
}

// ListFilter narrows ListExecutions. An empty Framework matches all.
type ListFilter struct {
	Framework string
	Limit     int
	Offset    int
}

// ExecutionStats holds aggregate execution statistics.
type ExecutionStats struct {
	Total            int            `json:"total"`
	CountByFramework map[string]int `json:"count_by_framework"`
	CountByOutcome   map[string]int `json:"count_by_outcome"`
	CountByErrorCode map[string]int `json:"count_by_error_code"`
	AvgDurationMS    float64        `json:"avg_duration_ms"`
}

// Outcome labels used in ExecutionStats.CountByOutcome.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Store defines the persistence operations of the execution archive.
type Store interface {
	SaveExecution(ctx context.Context, e *Execution) error
	GetExecution(ctx context.Context, id string) (*Execution, error)
	ListExecutions(ctx context.Context, f ListFilter) ([]*Execution, int, error)
	GetExecutionStats(ctx context.Context) (*ExecutionStats, error)
	Close() error
}
