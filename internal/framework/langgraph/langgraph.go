// Package langgraph adapts graph-based stateful agent workflows. A workflow
// is a set of nodes joined by directed edges and entered at startNode.
package langgraph

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/seantiz/agentflow/internal/engine"
	"github.com/seantiz/agentflow/internal/framework"
	"github.com/seantiz/agentflow/internal/model"
	"github.com/seantiz/agentflow/internal/workflow"
)

// DefaultTimeout bounds an execution whose context sets no timeout.
const DefaultTimeout = 30 * time.Second

const (
	initDuration = 100 * time.Millisecond
	nodeDuration = 100 * time.Millisecond
	llmDuration  = 400 * time.Millisecond
)

// Adapter runs graph workflows.
type Adapter struct {
	*framework.Base
}

// New creates a graph workflow adapter.
func New(opts framework.Options) *Adapter {
	return &Adapter{framework.NewBase(model.FrameworkLangGraph, Metadata(), graph{}, DefaultTimeout, opts)}
}

// Metadata returns the static descriptor of the adapter.
func Metadata() model.FrameworkMetadata {
	return model.FrameworkMetadata{
		Name:        "LangGraph",
		Version:     "0.1.0",
		Description: "Stateful multi-step AI agents with graph-based architecture",
		Capabilities: model.Capabilities{
			SupportsCodeEditor:       true,
			SupportsAsyncExecution:   true,
			SupportsStatePersistence: true,
			MaxConcurrentExecutions:  10,
			ResourceRequirements:     model.ResourceEstimate{CPU: 2, MemoryMB: 2048},
		},
		SupportedLanguages: []string{"python"},
		Dependencies:       []string{"langchain", "langgraph", "python"},
	}
}

type graph struct{}

func (graph) Validate(doc workflow.Document) []string {
	var p workflow.Problems

	nodes, hasNodes := doc.Array("nodes")
	if !hasNodes {
		p.Addf("Workflow must contain a nodes array")
	}
	edges, hasEdges := doc.Array("edges")
	if !hasEdges {
		p.Addf("Workflow must contain an edges array")
	}
	start := doc.Label("", "startNode")
	if start == "" {
		p.Addf("Workflow must specify a startNode")
	}

	ids := make(map[string]bool, len(nodes))
	for _, item := range nodes {
		node, ok := item.(map[string]any)
		if !ok {
			p.Addf("Node unknown is missing required fields")
			continue
		}
		n := workflow.Document(node)
		id := n.ID()
		if id == "" || len(workflow.MissingFields(n, "type", "data")) > 0 {
			p.Addf("Node %s is missing required fields", n.Label("unknown", "id"))
		}
		if id == "" {
			continue
		}
		if ids[id] {
			p.Addf("Duplicate node id %s", id)
		}
		ids[id] = true
	}

	for _, item := range edges {
		edge, ok := item.(map[string]any)
		if !ok {
			p.Addf("Edge is missing source or target")
			continue
		}
		e := workflow.Document(edge)
		src, dst := e.Label("", "source"), e.Label("", "target")
		if src == "" || dst == "" {
			p.Addf("Edge is missing source or target")
			continue
		}
		if hasNodes {
			for _, end := range []string{src, dst} {
				if !ids[end] {
					p.Addf("Edge references unknown node %s", end)
				}
			}
		}
	}

	if start != "" && hasNodes && !ids[start] {
		p.Addf("startNode %s does not match any node", start)
	}
	return p
}

func (graph) Plan(doc workflow.Document, _ json.RawMessage, sim framework.Simulator) engine.Plan {
	nodes := doc.Objects("nodes")
	plan := engine.Plan{{
		ID:   "init",
		Name: "Initialize Graph",
		Run:  sim.Unit(nil, initDuration, map[string]any{"nodeCount": len(nodes), "edgeCount": doc.Len("edges")}),
	}}

	for _, n := range traversal(doc) {
		d := nodeDuration
		if isLLM(n) {
			d = llmDuration
		}
		plan = append(plan, engine.PlanStep{
			ID:   "node_" + n.ID(),
			Name: "Execute " + nodeLabel(n),
			Run: sim.Unit(n, d, map[string]any{
				"node":   n.ID(),
				"type":   n.String("type"),
				"result": "Node " + n.ID() + " executed successfully",
			}),
		})
	}
	return plan
}

func (graph) Estimate(doc workflow.Document) model.ResourceEstimate {
	nodes := doc.Len("nodes")
	edges := doc.Len("edges")

	est := model.ResourceEstimate{CPU: 2, MemoryMB: 2048}
	if nodes > 10 {
		est.CPU++
	}
	if nodes > 20 {
		est.CPU++
	}
	if edges > 15 {
		est.MemoryMB += 1024
	}
	if edges > 30 {
		est.MemoryMB += 1024
	}
	for _, n := range doc.Objects("nodes") {
		if isLLM(n) {
			est.GPU = 1
			break
		}
	}
	return est
}

func (graph) Summarize(doc workflow.Document, input json.RawMessage, steps []model.ExecutionStep, elapsed time.Duration) (any, model.ResourceUsage) {
	visited := make([]string, 0, len(steps))
	for _, s := range steps {
		if id, ok := strings.CutPrefix(s.ID, "node_"); ok {
			visited = append(visited, id)
		}
	}
	state := map[string]any{"visited": visited}
	if len(visited) > 0 {
		state["lastNode"] = visited[len(visited)-1]
	}

	output := map[string]any{
		"message":    "LangGraph workflow executed successfully",
		"output":     input,
		"graphState": state,
	}
	return output, model.ResourceUsage{
		CPUTimeMS:    float64(elapsed.Milliseconds()),
		MemoryPeakMB: 512,
		GPUTimeMS:    model.Float64(0),
	}
}

// traversal orders nodes breadth-first from startNode along the edges.
// Nodes unreachable from startNode follow in declaration order.
func traversal(doc workflow.Document) []workflow.Document {
	byID := make(map[string]workflow.Document)
	var order []string
	for _, n := range doc.Objects("nodes") {
		id := n.ID()
		if id == "" {
			continue
		}
		if _, dup := byID[id]; !dup {
			order = append(order, id)
		}
		byID[id] = n
	}

	next := make(map[string][]string)
	for _, e := range doc.Objects("edges") {
		src, dst := e.Label("", "source"), e.Label("", "target")
		next[src] = append(next[src], dst)
	}

	seen := make(map[string]bool, len(byID))
	out := make([]workflow.Document, 0, len(byID))
	visit := func(id string) {
		if n, ok := byID[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, n)
		}
	}

	if start := doc.Label("", "startNode"); start != "" {
		visit(start)
		for i := 0; i < len(out); i++ {
			for _, dst := range next[out[i].ID()] {
				visit(dst)
			}
		}
	}
	for _, id := range order {
		visit(id)
	}
	return out
}

func isLLM(n workflow.Document) bool {
	t := n.String("type")
	return strings.Contains(t, "llm") || strings.Contains(t, "openai")
}

func nodeLabel(n workflow.Document) string {
	if data, ok := n.Object("data"); ok {
		if l := data.String("label"); l != "" {
			return l
		}
	}
	return n.Label(n.ID(), "name", "type")
}
