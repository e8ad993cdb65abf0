package workflow_test

import (
	"encoding/json"
	"testing"

	"github.com/seantiz/agentflow/internal/errors"
	"github.com/seantiz/agentflow/internal/workflow"
)

func TestParseRejectsNonObjects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"null", "null"},
		{"array", "[1,2]"},
		{"string", `"graph"`},
		{"garbage", "{not json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := workflow.Parse(json.RawMessage(tt.raw))
			if !errors.Is(err, errors.ErrInvalidWorkflow) {
				t.Errorf("Parse(%q) error = %v, want ErrInvalidWorkflow", tt.raw, err)
			}
		})
	}
}

func TestDocumentAccessors(t *testing.T) {
	doc, err := workflow.Parse(json.RawMessage(`{
		"name": "demo",
		"nodes": [{"id": 1}, "junk", {"id": "b"}],
		"crew": {"agents": []},
		"multiModal": true,
		"count": 7,
		"empty": ""
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if doc.String("name") != "demo" {
		t.Errorf("String(name) = %q", doc.String("name"))
	}
	if doc.Len("nodes") != 3 {
		t.Errorf("Len(nodes) = %d, want 3", doc.Len("nodes"))
	}
	nodes := doc.Objects("nodes")
	if len(nodes) != 2 {
		t.Fatalf("Objects(nodes) = %d entries, want 2", len(nodes))
	}
	if nodes[0].ID() != "1" || nodes[1].ID() != "b" {
		t.Errorf("IDs = %q, %q", nodes[0].ID(), nodes[1].ID())
	}
	if _, ok := doc.Object("crew"); !ok {
		t.Error("Object(crew) not found")
	}
	if b, ok := doc.Bool("multiModal"); !ok || !b {
		t.Error("Bool(multiModal) should be true")
	}
	if n, ok := doc.Int("count"); !ok || n != 7 {
		t.Errorf("Int(count) = %d, %v", n, ok)
	}
	if doc.Truthy("empty") || doc.Truthy("missing") {
		t.Error("empty and missing values should not be truthy")
	}
	if !doc.Truthy("nodes") {
		t.Error("nodes should be truthy")
	}
}

func TestAccessorsToleratesWrongShapes(t *testing.T) {
	doc, err := workflow.Parse(json.RawMessage(`{"nodes": "oops", "crew": 3}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := doc.Array("nodes"); ok {
		t.Error("Array should reject a string")
	}
	if _, ok := doc.Object("crew"); ok {
		t.Error("Object should reject a number")
	}
	if len(doc.Objects("nodes")) != 0 {
		t.Error("Objects should be empty for a non-array")
	}
}

func TestMissingFields(t *testing.T) {
	doc := workflow.Document{"nodes": []any{}, "startNode": "", "data": map[string]any{}}
	missing := workflow.MissingFields(doc, "nodes", "edges", "startNode", "data")
	if len(missing) != 2 || missing[0] != "edges" || missing[1] != "startNode" {
		t.Errorf("missing = %v, want [edges startNode]", missing)
	}
	if missing := workflow.MissingFields(doc); missing != nil {
		t.Errorf("no fields: missing = %v, want nil", missing)
	}
}

func TestCheckStructure(t *testing.T) {
	if _, problems := workflow.CheckStructure(nil); len(problems) != 1 || problems[0] != "Workflow data is required" {
		t.Errorf("nil payload problems = %v", problems)
	}
	if _, problems := workflow.CheckStructure(json.RawMessage(`[]`)); len(problems) != 1 || problems[0] != "Workflow data must be an object" {
		t.Errorf("array payload problems = %v", problems)
	}
	doc, problems := workflow.CheckStructure(json.RawMessage(`{"a":1}`))
	if len(problems) != 0 || doc == nil {
		t.Errorf("object payload: doc=%v problems=%v", doc, problems)
	}
}
