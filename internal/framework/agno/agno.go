// Package agno adapts single-agent workflows of a multi-modal agent SDK: one
// agent with a model, optional tools, memory and multi-modal input.
package agno

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/seantiz/agentflow/internal/engine"
	"github.com/seantiz/agentflow/internal/framework"
	"github.com/seantiz/agentflow/internal/model"
	"github.com/seantiz/agentflow/internal/workflow"
)

// DefaultTimeout bounds an execution whose context sets no timeout.
const DefaultTimeout = 30 * time.Second

// Adapter runs agent workflows.
type Adapter struct {
	*framework.Base
}

// New creates an agent workflow adapter.
func New(opts framework.Options) *Adapter {
	return &Adapter{framework.NewBase(model.FrameworkAgno, Metadata(), agent{}, DefaultTimeout, opts)}
}

// Metadata returns the static descriptor of the adapter.
func Metadata() model.FrameworkMetadata {
	return model.FrameworkMetadata{
		Name:        "Agno",
		Version:     "0.1.0",
		Description: "High-performance SDK for multi-agent systems with multi-modality support",
		Capabilities: model.Capabilities{
			SupportsMultiAgent:       true,
			SupportsCodeEditor:       true,
			SupportsAsyncExecution:   true,
			SupportsStatePersistence: true,
			GPURequired:              true,
			MaxConcurrentExecutions:  5,
			ResourceRequirements:     model.ResourceEstimate{CPU: 4, MemoryMB: 4096, GPU: 1},
		},
		SupportedLanguages: []string{"python"},
		Dependencies:       []string{"agno", "torch", "transformers", "vector-db"},
	}
}

type agent struct{}

func (agent) Validate(doc workflow.Document) []string {
	var p workflow.Problems

	cfg, ok := doc.Object("agent")
	if !ok {
		p.Addf("Workflow must contain an agent configuration")
	} else if !cfg.Truthy("model") {
		p.Addf("Agent must specify a model")
	}

	if doc.Truthy("tools") {
		if tools, ok := doc.Array("tools"); !ok {
			p.Addf("Tools must be an array")
		} else {
			for i, t := range tools {
				if _, ok := t.(map[string]any); !ok {
					p.Addf("Tool %d must be an object", i)
				}
			}
		}
	}
	if doc.Truthy("memory") {
		if _, ok := doc.Object("memory"); !ok {
			p.Addf("Memory configuration must be an object")
		}
	}
	if doc.Truthy("multiModal") {
		if _, ok := doc.Bool("multiModal"); !ok {
			p.Addf("multiModal must be a boolean")
		}
	}
	return p
}

func (agent) Plan(doc workflow.Document, _ json.RawMessage, sim framework.Simulator) engine.Plan {
	cfg, _ := doc.Object("agent")
	modalities := modalitiesOf(doc)

	plan := engine.Plan{
		{ID: "init", Name: "Initialize Agent", Run: sim.Unit(nil, 50*time.Millisecond, nil)},
		{ID: "load_model", Name: "Load Multi-Modal Model", Run: sim.Unit(nil, 200*time.Millisecond,
			map[string]any{"model": cfg.Label("unknown", "model")})},
		{ID: "process_input", Name: "Process Multi-Modal Input", Run: sim.Unit(nil, 300*time.Millisecond,
			map[string]any{"modalities": modalities, "processed": true})},
	}

	for i, tool := range doc.Objects("tools") {
		name := tool.Label(fmt.Sprintf("tool %d", i), "name", "type")
		plan = append(plan, engine.PlanStep{
			ID:   fmt.Sprintf("tool_%d", i),
			Name: "Invoke " + name,
			Run:  sim.Unit(tool, 150*time.Millisecond, map[string]any{"tool": name, "invoked": true}),
		})
	}

	return append(plan,
		engine.PlanStep{ID: "reason", Name: "Execute Reasoning Pipeline", Run: sim.Unit(cfg, 500*time.Millisecond,
			map[string]any{"reasoning_steps": 3, "confidence": 0.95})},
		engine.PlanStep{ID: "generate_output", Name: "Generate Response", Run: sim.Unit(nil, 200*time.Millisecond,
			map[string]any{
				"response":   "Agno agent response with high performance",
				"modalities": modalities,
			})},
	)
}

func (agent) Estimate(doc workflow.Document) model.ResourceEstimate {
	est := model.ResourceEstimate{CPU: 4, MemoryMB: 4096, GPU: 1}
	if multi, _ := doc.Bool("multiModal"); multi {
		est.CPU += 2
		est.MemoryMB += 2048
		est.GPU++
	}
	if doc.Len("tools") > 5 {
		est.CPU++
		est.MemoryMB += 1024
	}
	if mem, ok := doc.Object("memory"); ok && mem.String("type") == "vector" {
		est.MemoryMB += 2048
	}
	return est
}

func (agent) Summarize(doc workflow.Document, input json.RawMessage, _ []model.ExecutionStep, elapsed time.Duration) (any, model.ResourceUsage) {
	var vectorSearch any
	if in, err := workflow.Parse(input); err == nil && in.Truthy("vectorQuery") {
		vectorSearch = map[string]any{"results": []any{}}
	}

	output := map[string]any{
		"message":    "Agno agent executed successfully",
		"response":   "High-performance multi-modal response",
		"modalities": modalitiesOf(doc),
		"reasoning": map[string]any{
			"steps":      3,
			"confidence": 0.95,
			"tools_used": doc.Len("tools"),
		},
		"vector_search": vectorSearch,
	}

	ms := float64(elapsed.Milliseconds())
	return output, model.ResourceUsage{
		CPUTimeMS:    ms * 0.3,
		MemoryPeakMB: 2048,
		GPUTimeMS:    model.Float64(ms * 0.7),
	}
}

func modalitiesOf(doc workflow.Document) []string {
	if multi, _ := doc.Bool("multiModal"); multi {
		return []string{"text", "image", "audio"}
	}
	return []string{"text"}
}
