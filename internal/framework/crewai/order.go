package crewai

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/seantiz/agentflow/internal/workflow"
)

// taskKey names task i for dependency references.
func taskKey(t workflow.Document, i int) string {
	if name := t.Label("", "name"); name != "" {
		return name
	}
	return "task_" + strconv.Itoa(i)
}

// dependsOn accepts a single task name or a list of names.
func dependsOn(d workflow.Document) []string {
	if s := d.Label("", "dependsOn"); s != "" {
		return []string{s}
	}
	arr, _ := d.Array("dependsOn")
	var out []string
	for _, v := range arr {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// taskOrder returns task indexes in an order that respects the crew's
// dependencies. Among ready tasks the earliest declared runs first. When
// the dependencies form a cycle the remaining tasks follow in declaration
// order and acyclic is false.
func taskOrder(c workflow.Document) (order []int, acyclic bool) {
	tasks := c.Objects("tasks")
	index := make(map[string]int, len(tasks))
	for i, t := range tasks {
		index[taskKey(t, i)] = i
	}

	pending := make([]int, len(tasks))
	dependents := make([][]int, len(tasks))
	for _, d := range c.Objects("taskDependencies") {
		ti, ok := index[d.Label("", "task")]
		if !ok {
			continue
		}
		for _, name := range dependsOn(d) {
			if pi, ok := index[name]; ok && pi != ti {
				pending[ti]++
				dependents[pi] = append(dependents[pi], ti)
			} else if ok {
				// A task that depends on itself can never become ready.
				pending[ti]++
			}
		}
	}

	done := make([]bool, len(tasks))
	for len(order) < len(tasks) {
		next := -1
		for i := range tasks {
			if !done[i] && pending[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			for i := range tasks {
				if !done[i] {
					order = append(order, i)
				}
			}
			return order, false
		}
		done[next] = true
		order = append(order, next)
		for _, dep := range dependents[next] {
			pending[dep]--
		}
	}
	return order, true
}

// assignee picks the agent responsible for task i: the task's own "agent"
// field, or round-robin over the crew.
func assignee(t workflow.Document, agents []workflow.Document, i int) string {
	if a := t.Label("", "agent"); a != "" {
		return a
	}
	if len(agents) == 0 {
		return ""
	}
	return agents[i%len(agents)].Label("", "role", "name")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
