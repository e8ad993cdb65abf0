package framework

import (
	"time"

	"github.com/seantiz/agentflow/internal/model"
)

// SuccessResult builds the result of a run whose every step completed.
func SuccessResult(output any, elapsed time.Duration, steps []model.ExecutionStep, usage model.ResourceUsage) model.ExecutionResult {
	return model.ExecutionResult{
		Success:         true,
		Output:          output,
		ExecutionTimeMS: elapsed.Milliseconds(),
		ResourceUsage:   usage,
		Steps:           nonNil(steps),
	}
}

// ErrorResult builds a failed result with zeroed usage.
func ErrorResult(message, code string, elapsed time.Duration, steps []model.ExecutionStep) model.ExecutionResult {
	return model.ExecutionResult{
		Success:         false,
		ExecutionTimeMS: elapsed.Milliseconds(),
		Steps:           nonNil(steps),
		Error: &model.ResultError{
			Message: message,
			Code:    code,
		},
	}
}

func nonNil(steps []model.ExecutionStep) []model.ExecutionStep {
	if steps == nil {
		return []model.ExecutionStep{}
	}
	return steps
}
