// Package crewai adapts multi-agent crew workflows: a crew of role-playing
// agents working through a list of tasks, optionally ordered by task
// dependencies.
package crewai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/seantiz/agentflow/internal/engine"
	"github.com/seantiz/agentflow/internal/framework"
	"github.com/seantiz/agentflow/internal/model"
	"github.com/seantiz/agentflow/internal/workflow"
)

// DefaultTimeout bounds an execution whose context sets no timeout.
// Multi-agent runs get a longer budget than the other frameworks.
const DefaultTimeout = 60 * time.Second

const (
	taskMinDuration = 500 * time.Millisecond
	taskMaxDuration = 1500 * time.Millisecond
)

// Adapter runs crew workflows.
type Adapter struct {
	*framework.Base
}

// New creates a crew workflow adapter.
func New(opts framework.Options) *Adapter {
	return &Adapter{framework.NewBase(model.FrameworkCrewAI, Metadata(), crew{}, DefaultTimeout, opts)}
}

// Metadata returns the static descriptor of the adapter.
func Metadata() model.FrameworkMetadata {
	return model.FrameworkMetadata{
		Name:        "CrewAI",
		Version:     "0.1.0",
		Description: "Multi-agent collaboration and orchestration framework",
		Capabilities: model.Capabilities{
			SupportsMultiAgent:       true,
			SupportsCodeEditor:       true,
			SupportsAsyncExecution:   true,
			SupportsStatePersistence: true,
			MaxConcurrentExecutions:  8,
			ResourceRequirements:     model.ResourceEstimate{CPU: 3, MemoryMB: 3072},
		},
		SupportedLanguages: []string{"python"},
		Dependencies:       []string{"crewai", "langchain"},
	}
}

type crew struct{}

func (crew) Validate(doc workflow.Document) []string {
	var p workflow.Problems

	c, ok := doc.Object("crew")
	if !ok {
		p.Addf("Workflow must contain a crew configuration")
		return p
	}

	if agents, ok := c.Array("agents"); !ok {
		p.Addf("Crew must contain an agents array")
	} else if len(agents) == 0 {
		p.Addf("Crew must have at least one agent")
	}
	if tasks, ok := c.Array("tasks"); !ok {
		p.Addf("Crew must contain a tasks array")
	} else if len(tasks) == 0 {
		p.Addf("Crew must have at least one task")
	}

	for _, a := range c.Objects("agents") {
		if len(workflow.MissingFields(a, "role", "goal", "backstory")) > 0 {
			p.Addf("Agent %s is missing required fields (role, goal, backstory)", a.Label("unknown", "name"))
		}
	}
	for _, t := range c.Objects("tasks") {
		if !t.Truthy("description") {
			p.Addf("Task %s is missing description", t.Label("unknown", "name"))
		}
	}

	if c.Truthy("taskDependencies") {
		p.Add(validateDependencies(c)...)
	}
	return p
}

func validateDependencies(c workflow.Document) []string {
	var p workflow.Problems
	deps, ok := c.Array("taskDependencies")
	if !ok {
		p.Addf("taskDependencies must be an array")
		return p
	}

	known := make(map[string]bool)
	for i, t := range c.Objects("tasks") {
		known[taskKey(t, i)] = true
	}

	for _, item := range deps {
		dep, ok := item.(map[string]any)
		if !ok {
			p.Addf("Task dependency is missing task or dependsOn field")
			continue
		}
		d := workflow.Document(dep)
		task, on := d.Label("", "task"), dependsOn(d)
		if task == "" || len(on) == 0 {
			p.Addf("Task dependency is missing task or dependsOn field")
			continue
		}
		for _, name := range append([]string{task}, on...) {
			if !known[name] {
				p.Addf("Task dependency references unknown task %s", name)
			}
		}
	}

	if len(p) == 0 {
		if _, acyclic := taskOrder(c); !acyclic {
			p.Addf("Task dependencies contain a cycle")
		}
	}
	return p
}

func (crew) Plan(doc workflow.Document, _ json.RawMessage, sim framework.Simulator) engine.Plan {
	c, _ := doc.Object("crew")
	agents := c.Objects("agents")
	tasks := c.Objects("tasks")

	plan := engine.Plan{{
		ID:   "init_crew",
		Name: "Initialize Crew",
		Run:  sim.Unit(nil, 200*time.Millisecond, map[string]any{"agentCount": len(agents), "taskCount": len(tasks)}),
	}}

	for i, a := range agents {
		role := a.Label(fmt.Sprintf("agent %d", i), "role", "name")
		plan = append(plan, engine.PlanStep{
			ID:   fmt.Sprintf("init_agent_%d", i),
			Name: "Initialize " + role,
			Run:  sim.Unit(a, 100*time.Millisecond, map[string]any{"role": role, "status": "ready"}),
		})
	}

	order, _ := taskOrder(c)
	for _, i := range order {
		t := tasks[i]
		desc := t.String("description")
		out := map[string]any{
			"task":   desc,
			"result": fmt.Sprintf("Task %d completed successfully", i+1),
		}
		if a := assignee(t, agents, i); a != "" {
			out["agent"] = a
		}
		plan = append(plan, engine.PlanStep{
			ID:   fmt.Sprintf("task_%d", i),
			Name: "Execute: " + truncate(desc, 50),
			Run:  sim.Unit(t, framework.Between(taskMinDuration, taskMaxDuration), out),
		})
	}
	return plan
}

func (crew) Estimate(doc workflow.Document) model.ResourceEstimate {
	c, _ := doc.Object("crew")
	agentCount := max(c.Len("agents"), 1)
	taskCount := max(c.Len("tasks"), 1)

	est := model.ResourceEstimate{
		CPU:      3 + agentCount/2,
		MemoryMB: 3072 + agentCount*512,
	}
	if taskCount > 5 {
		est.CPU++
	}
	if taskCount > 10 {
		est.CPU++
		est.MemoryMB += 1024
	}

	for _, a := range c.Objects("agents") {
		for _, tool := range a.Objects("tools") {
			if containsAny(tool.String("type"), "gpu", "llm") {
				est.GPU = 1
			}
		}
	}
	return est
}

func (crew) Summarize(doc workflow.Document, _ json.RawMessage, steps []model.ExecutionStep, elapsed time.Duration) (any, model.ResourceUsage) {
	c, _ := doc.Object("crew")
	agentCount := c.Len("agents")
	taskCount := c.Len("tasks")

	results := make([]any, 0, taskCount)
	for _, s := range steps {
		if strings.HasPrefix(s.ID, "task_") {
			results = append(results, s.Output)
		}
	}

	deps, _ := c.Array("taskDependencies")
	if deps == nil {
		deps = []any{}
	}
	utilization := 0.0
	if taskCount > 0 {
		utilization = float64(agentCount) / float64(taskCount)
	}

	output := map[string]any{
		"message": "CrewAI execution completed successfully",
		"crew": map[string]any{
			"name":               c.Label("Unnamed Crew", "name"),
			"agentCount":         agentCount,
			"taskCount":          taskCount,
			"totalExecutionTime": elapsed.Milliseconds(),
		},
		"results": results,
		"coordination": map[string]any{
			"communicationRounds": taskCount,
			"agentUtilization":    utilization,
			"taskDependencies":    deps,
		},
	}
	return output, model.ResourceUsage{
		CPUTimeMS:    float64(elapsed.Milliseconds()),
		MemoryPeakMB: float64(1536 + agentCount*256),
		GPUTimeMS:    model.Float64(0),
	}
}
