package n8n_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/agentflow/internal/framework"
	"github.com/seantiz/agentflow/internal/framework/n8n"
	"github.com/seantiz/agentflow/internal/model"
)

const minimalWorkflow = `{
	"id": "wf-7",
	"name": "Inbound lead",
	"nodes": [
		{"id": "1", "name": "Webhook", "type": "n8n-nodes-base.webhook", "parameters": {}},
		{"id": "2", "name": "Shape", "type": "n8n-nodes-base.set", "parameters": {"values": {}}}
	],
	"connections": {
		"Webhook": [{"node": "Shape", "type": "main", "index": 0}]
	}
}`

func newAdapter(t *testing.T) *n8n.Adapter {
	t.Helper()
	a := n8n.New(framework.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, a.Initialize(context.Background(), framework.Config{TimeScale: 0.01}))
	return a
}

func TestValidateMinimalWorkflow(t *testing.T) {
	a := newAdapter(t)
	res := a.ValidateWorkflow(json.RawMessage(minimalWorkflow))
	assert.True(t, res.Valid, "errors: %v", res.Errors)
}

func TestValidateRejectsBadWorkflows(t *testing.T) {
	a := newAdapter(t)
	trigger := `{"id": "1", "type": "n8n-nodes-base.manual", "parameters": {}}`

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"no nodes", `{"connections": {}}`, "Workflow must contain a nodes array"},
		{"no connections", `{"nodes": [` + trigger + `]}`, "Workflow must contain connections object"},
		{"no trigger", `{"nodes": [{"id": "1", "type": "n8n-nodes-base.set", "parameters": {}}], "connections": {}}`,
			"Workflow must have a start node (webhook, schedule, or manual trigger)"},
		{"node fields", `{"nodes": [` + trigger + `, {"id": "2"}], "connections": {}}`, "Node 2 is missing required fields"},
		{"ai without key", `{"nodes": [` + trigger + `, {"id": "3", "type": "@n8n/n8n-nodes-langchain.openAi", "parameters": {}}], "connections": {}}`,
			"AI node 3 is missing API key"},
		{"connection fields", `{"nodes": [` + trigger + `], "connections": {"A": [{"node": "B", "type": "main"}]}}`,
			"Connection from A is missing required fields"},
		{"duplicate node", `{"nodes": [` + trigger + `, {"id": "1", "type": "n8n-nodes-base.set", "parameters": {}}], "connections": {}}`,
			"Duplicate node id 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := a.ValidateWorkflow(json.RawMessage(tt.payload))
			assert.False(t, res.Valid)
			assert.Contains(t, res.Errors, tt.want)
		})
	}
}

func TestValidateAcceptsZeroConnectionIndex(t *testing.T) {
	a := newAdapter(t)
	res := a.ValidateWorkflow(json.RawMessage(minimalWorkflow))
	assert.NotContains(t, res.Errors, "Connection from Webhook is missing required fields")
}

func TestExecuteRunsNodesInOrder(t *testing.T) {
	a := newAdapter(t)

	res, err := a.ExecuteWorkflow(context.Background(), json.RawMessage(minimalWorkflow), json.RawMessage(`{"email": "x@y.z"}`),
		model.ExecutionContext{ExecutionID: "n8n-1"})
	require.NoError(t, err)
	require.True(t, res.Success, "error: %+v", res.Error)

	var ids []string
	for _, s := range res.Steps {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"workflow_init", "node_1", "node_2"}, ids)

	out := res.Output.(map[string]any)
	wf := out["workflow"].(map[string]any)
	assert.Equal(t, "Inbound lead", wf["name"])
	assert.Equal(t, 1, wf["connectionCount"])
	summary := out["summary"].(map[string]any)
	assert.Equal(t, 2, summary["executedNodes"])
	assert.Equal(t, float64(1024), res.ResourceUsage.MemoryPeakMB)
}

func TestAINodesNeverLowerEstimate(t *testing.T) {
	a := newAdapter(t)

	base := map[string]any{
		"nodes": []map[string]any{
			{"id": "1", "type": "n8n-nodes-base.webhook", "parameters": map[string]any{}},
			{"id": "2", "type": "n8n-nodes-base.itemLists", "parameters": map[string]any{}},
		},
		"connections": map[string]any{},
	}
	withAI := map[string]any{
		"nodes": append(base["nodes"].([]map[string]any),
			map[string]any{"id": "3", "type": "@n8n/n8n-nodes-langchain.openAi", "parameters": map[string]any{"apiKey": "k"}},
			map[string]any{"id": "4", "type": "n8n-nodes-base.aiTransform", "parameters": map[string]any{"apiKey": "k"}},
		),
		"connections": map[string]any{},
	}

	rawBase, _ := json.Marshal(base)
	rawAI, _ := json.Marshal(withAI)

	plain, err := a.GetResourceRequirements(rawBase)
	require.NoError(t, err)
	ai, err := a.GetResourceRequirements(rawAI)
	require.NoError(t, err)

	assert.Equal(t, model.ResourceEstimate{CPU: 2, MemoryMB: 2048, GPU: 0}, plain)
	assert.GreaterOrEqual(t, ai.CPU, plain.CPU)
	assert.GreaterOrEqual(t, ai.MemoryMB, plain.MemoryMB)
	assert.GreaterOrEqual(t, ai.GPU, plain.GPU)
	// AI adds 1 cpu and 1024 MB; aiTransform is also heavy: +0.5 cpu rounded up, +256 MB.
	assert.Equal(t, model.ResourceEstimate{CPU: 4, MemoryMB: 3328, GPU: 1}, ai)
}

func TestEmailNodeIsNotAI(t *testing.T) {
	a := newAdapter(t)
	payload := `{"nodes": [
		{"id": "1", "type": "n8n-nodes-base.manual", "parameters": {}},
		{"id": "2", "type": "n8n-nodes-base.emailSend", "parameters": {}}
	], "connections": {}}`

	res := a.ValidateWorkflow(json.RawMessage(payload))
	assert.True(t, res.Valid, "errors: %v", res.Errors)

	est, err := a.GetResourceRequirements(json.RawMessage(payload))
	require.NoError(t, err)
	assert.Zero(t, est.GPU)
}
