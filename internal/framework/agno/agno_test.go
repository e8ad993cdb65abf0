package agno_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/agentflow/internal/framework"
	"github.com/seantiz/agentflow/internal/framework/agno"
	"github.com/seantiz/agentflow/internal/model"
)

func newAdapter(t *testing.T) *agno.Adapter {
	t.Helper()
	a := agno.New(framework.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, a.Initialize(context.Background(), framework.Config{TimeScale: 0.01}))
	return a
}

func TestValidateMinimalAgent(t *testing.T) {
	a := newAdapter(t)
	res := a.ValidateWorkflow(json.RawMessage(`{"agent": {"model": "gpt-4o"}}`))
	assert.True(t, res.Valid, "errors: %v", res.Errors)
}

func TestValidateRejectsBadShapes(t *testing.T) {
	a := newAdapter(t)

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"no agent", `{}`, "Workflow must contain an agent configuration"},
		{"no model", `{"agent": {}}`, "Agent must specify a model"},
		{"tools not array", `{"agent": {"model": "m"}, "tools": {"a": 1}}`, "Tools must be an array"},
		{"tool not object", `{"agent": {"model": "m"}, "tools": ["search"]}`, "Tool 0 must be an object"},
		{"memory not object", `{"agent": {"model": "m"}, "memory": "vector"}`, "Memory configuration must be an object"},
		{"multiModal not bool", `{"agent": {"model": "m"}, "multiModal": "yes"}`, "multiModal must be a boolean"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := a.ValidateWorkflow(json.RawMessage(tt.payload))
			assert.False(t, res.Valid)
			assert.Contains(t, res.Errors, tt.want)
		})
	}
}

func TestExecutePipeline(t *testing.T) {
	a := newAdapter(t)
	payload := `{"agent": {"model": "m"}, "tools": [{"name": "search"}, {"name": "calc"}], "multiModal": true}`

	res, err := a.ExecuteWorkflow(context.Background(), json.RawMessage(payload), json.RawMessage(`{"vectorQuery": "cats"}`),
		model.ExecutionContext{ExecutionID: "agno-1"})
	require.NoError(t, err)
	require.True(t, res.Success, "error: %+v", res.Error)

	var ids []string
	for _, s := range res.Steps {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"init", "load_model", "process_input", "tool_0", "tool_1", "reason", "generate_output"}, ids)

	out := res.Output.(map[string]any)
	assert.Equal(t, []string{"text", "image", "audio"}, out["modalities"])
	assert.NotNil(t, out["vector_search"])
	require.NotNil(t, res.ResourceUsage.GPUTimeMS)
	assert.Equal(t, float64(2048), res.ResourceUsage.MemoryPeakMB)
}

func TestExecuteToolFailureStopsPipeline(t *testing.T) {
	a := newAdapter(t)
	payload := `{"agent": {"model": "m"}, "tools": [{"name": "search", "simulate": {"error": "agent instantiation failed"}}]}`

	res, err := a.ExecuteWorkflow(context.Background(), json.RawMessage(payload), nil,
		model.ExecutionContext{ExecutionID: "agno-2"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "AGNO_EXECUTION_ERROR", res.Error.Code)
	assert.Equal(t, "agent instantiation failed", res.Error.Message)

	for _, s := range res.Steps {
		switch s.ID {
		case "init", "load_model", "process_input":
			assert.Equal(t, model.StepCompleted, s.Status, s.ID)
		default:
			assert.Equal(t, model.StepFailed, s.Status, s.ID)
		}
	}
}

func TestResourceRequirements(t *testing.T) {
	a := newAdapter(t)

	tests := []struct {
		name    string
		payload string
		want    model.ResourceEstimate
	}{
		{"base", `{"agent": {"model": "m"}}`, model.ResourceEstimate{CPU: 4, MemoryMB: 4096, GPU: 1}},
		{"multi modal", `{"multiModal": true}`, model.ResourceEstimate{CPU: 6, MemoryMB: 6144, GPU: 2}},
		{"many tools", `{"tools": [{},{},{},{},{},{}]}`, model.ResourceEstimate{CPU: 5, MemoryMB: 5120, GPU: 1}},
		{"vector memory", `{"memory": {"type": "vector"}}`, model.ResourceEstimate{CPU: 4, MemoryMB: 6144, GPU: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, err := a.GetResourceRequirements(json.RawMessage(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, est)
		})
	}
}
