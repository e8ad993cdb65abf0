// Package n8n adapts visual node-based automation workflows: nodes wired by
// a connections map and entered through a trigger node.
package n8n

import (
	"encoding/json"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/seantiz/agentflow/internal/engine"
	"github.com/seantiz/agentflow/internal/framework"
	"github.com/seantiz/agentflow/internal/model"
	"github.com/seantiz/agentflow/internal/workflow"
)

// DefaultTimeout bounds an execution whose context sets no timeout.
const DefaultTimeout = 30 * time.Second

// triggerTypes are the node types that can start a workflow.
var triggerTypes = []string{
	"n8n-nodes-base.webhook",
	"n8n-nodes-base.schedule",
	"n8n-nodes-base.scheduleTrigger",
	"n8n-nodes-base.manual",
	"n8n-nodes-base.manualTrigger",
}

// Adapter runs node automation workflows.
type Adapter struct {
	*framework.Base
}

// New creates a node automation adapter.
func New(opts framework.Options) *Adapter {
	return &Adapter{framework.NewBase(model.FrameworkN8n, Metadata(), automation{}, DefaultTimeout, opts)}
}

// Metadata returns the static descriptor of the adapter.
func Metadata() model.FrameworkMetadata {
	return model.FrameworkMetadata{
		Name:        "n8n",
		Version:     "0.1.0",
		Description: "Visual workflow automation platform with AI capabilities",
		Capabilities: model.Capabilities{
			SupportsVisualBuilder:    true,
			SupportsAsyncExecution:   true,
			SupportsStatePersistence: true,
			MaxConcurrentExecutions:  15,
			ResourceRequirements:     model.ResourceEstimate{CPU: 2, MemoryMB: 2048},
		},
		SupportedLanguages: []string{"typescript", "javascript"},
		Dependencies:       []string{"n8n-core", "n8n-nodes-base"},
	}
}

type automation struct{}

func (automation) Validate(doc workflow.Document) []string {
	var p workflow.Problems

	if _, ok := doc.Array("nodes"); !ok {
		p.Addf("Workflow must contain a nodes array")
	}
	conns, hasConns := doc.Object("connections")
	if !hasConns {
		p.Addf("Workflow must contain connections object")
	}

	nodes := doc.Objects("nodes")
	if !slices.ContainsFunc(nodes, isTrigger) {
		p.Addf("Workflow must have a start node (webhook, schedule, or manual trigger)")
	}

	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		label := n.Label("unknown", "id")
		params, hasParams := n.Object("parameters")
		id := n.ID()
		if id == "" || len(workflow.MissingFields(n, "type")) > 0 || !hasParams {
			p.Addf("Node %s is missing required fields", label)
		}
		if id != "" {
			if seen[id] {
				p.Addf("Duplicate node id %s", id)
			}
			seen[id] = true
		}
		if isAI(n) && !params.Truthy("apiKey") {
			p.Addf("AI node %s is missing API key", label)
		}
	}

	if hasConns {
		sources := make([]string, 0, len(conns))
		for src := range conns {
			sources = append(sources, src)
		}
		slices.Sort(sources)

		for _, src := range sources {
			entries, ok := conns.Array(src)
			if !ok {
				continue
			}
			for _, item := range entries {
				c, ok := item.(map[string]any)
				if !ok {
					p.Addf("Connection from %s is missing required fields", src)
					continue
				}
				conn := workflow.Document(c)
				if _, numeric := conn.Int("index"); !conn.Truthy("node") || !conn.Truthy("type") || !numeric {
					p.Addf("Connection from %s is missing required fields", src)
				}
			}
		}
	}
	return p
}

func (automation) Plan(doc workflow.Document, input json.RawMessage, sim framework.Simulator) engine.Plan {
	nodes := doc.Objects("nodes")
	plan := engine.Plan{{
		ID:   "workflow_init",
		Name: "Initialize Workflow",
		Run: sim.Unit(nil, 150*time.Millisecond, map[string]any{
			"nodeCount":       len(nodes),
			"connectionCount": connectionCount(doc),
		}),
	}}

	for _, n := range nodes {
		plan = append(plan, engine.PlanStep{
			ID:   "node_" + n.ID(),
			Name: "Execute " + n.Label(n.ID(), "name", "type"),
			Run: sim.Unit(n, nodeDuration(n), map[string]any{
				"nodeType":      n.String("type"),
				"result":        "Node " + n.Label(n.ID(), "name") + " executed successfully",
				"dataProcessed": input,
			}),
		})
	}
	return plan
}

func (automation) Estimate(doc workflow.Document) model.ResourceEstimate {
	nodes := doc.Len("nodes")
	conns := connectionCount(doc)

	cpu := 2.0
	memory := 2048
	if nodes > 10 {
		cpu++
	}
	if nodes > 20 {
		cpu++
	}
	if conns > 15 {
		memory += 512
	}
	if conns > 30 {
		memory += 512
	}

	all := doc.Objects("nodes")
	gpu := 0
	if slices.ContainsFunc(all, isAI) {
		cpu++
		memory += 1024
		gpu = 1
	}
	if slices.ContainsFunc(all, isHeavy) {
		cpu += 0.5
		memory += 256
	}
	return model.ResourceEstimate{CPU: int(math.Ceil(cpu)), MemoryMB: memory, GPU: gpu}
}

func (automation) Summarize(doc workflow.Document, input json.RawMessage, steps []model.ExecutionStep, elapsed time.Duration) (any, model.ResourceUsage) {
	nodeCount := doc.Len("nodes")

	results := make([]any, 0, len(steps))
	executed := 0
	for _, s := range steps {
		if !strings.HasPrefix(s.ID, "node_") {
			continue
		}
		results = append(results, s.Output)
		if s.Status == model.StepCompleted {
			executed++
		}
	}

	output := map[string]any{
		"message": "n8n workflow executed successfully",
		"workflow": map[string]any{
			"id":              doc.Label("unknown", "id"),
			"name":            doc.Label("Unnamed Workflow", "name"),
			"nodeCount":       nodeCount,
			"connectionCount": connectionCount(doc),
			"executionTime":   elapsed.Milliseconds(),
		},
		"results": results,
		"summary": map[string]any{
			"totalNodes":    nodeCount,
			"executedNodes": executed,
			"dataFlow":      input,
		},
	}
	return output, model.ResourceUsage{
		CPUTimeMS:    float64(elapsed.Milliseconds()),
		MemoryPeakMB: 1024,
		GPUTimeMS:    model.Float64(0),
	}
}

func connectionCount(doc workflow.Document) int {
	conns, _ := doc.Object("connections")
	return len(conns)
}

func nodeDuration(n workflow.Document) time.Duration {
	switch {
	case isAI(n):
		return framework.Between(time.Second, 3*time.Second)
	case strings.Contains(strings.ToLower(n.String("type")), "http"):
		return framework.Between(500*time.Millisecond, 1500*time.Millisecond)
	default:
		return 200 * time.Millisecond
	}
}

func isTrigger(n workflow.Document) bool {
	return slices.Contains(triggerTypes, n.String("type"))
}

// isAI reports whether a node calls a model provider. Only the node name
// after the package prefix is checked for the "ai" prefix, so types such as
// "n8n-nodes-base.emailSend" do not match.
func isAI(n workflow.Document) bool {
	t := strings.ToLower(n.String("type"))
	if t == "" {
		return false
	}
	name := t
	if i := strings.LastIndex(t, "."); i >= 0 {
		name = t[i+1:]
	}
	return strings.HasPrefix(name, "ai") ||
		strings.Contains(t, "openai") ||
		strings.Contains(t, "anthropic") ||
		strings.Contains(t, "langchain")
}

func isHeavy(n workflow.Document) bool {
	t := strings.ToLower(n.String("type"))
	return strings.Contains(t, "transform") || strings.Contains(t, "aggregate")
}
