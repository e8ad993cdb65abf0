package model

import "slices"

// FrameworkType identifies a supported agent runtime. New runtimes are added
// by registering an adapter under a new tag.
type FrameworkType string

// Framework type constants.
const (
	FrameworkLangGraph FrameworkType = "langgraph"
	FrameworkAgno      FrameworkType = "agno"
	FrameworkCrewAI    FrameworkType = "crewai"
	FrameworkN8n       FrameworkType = "n8n"
)

// KnownFrameworks lists the framework types shipped with reference adapters.
var KnownFrameworks = []FrameworkType{
	FrameworkLangGraph,
	FrameworkAgno,
	FrameworkCrewAI,
	FrameworkN8n,
}

// ResourceEstimate is a static prediction of what a workflow needs to run.
type ResourceEstimate struct {
	CPU      int `json:"cpu"`
	MemoryMB int `json:"memory"`
	GPU      int `json:"gpu"`
}

// Capabilities describes what a framework supports.
type Capabilities struct {
	SupportsMultiAgent       bool             `json:"supports_multi_agent"`
	SupportsVisualBuilder    bool             `json:"supports_visual_builder"`
	SupportsCodeEditor       bool             `json:"supports_code_editor"`
	SupportsAsyncExecution   bool             `json:"supports_async_execution"`
	SupportsStatePersistence bool             `json:"supports_state_persistence"`
	GPURequired              bool             `json:"gpu_required"`
	MaxConcurrentExecutions  int              `json:"max_concurrent_executions"`
	ResourceRequirements     ResourceEstimate `json:"resource_requirements"`
}

// FrameworkMetadata is the static descriptor of a framework adapter.
type FrameworkMetadata struct {
	Name               string       `json:"name"`
	Version            string       `json:"version"`
	Description        string       `json:"description"`
	Capabilities       Capabilities `json:"capabilities"`
	SupportedLanguages []string     `json:"supported_languages"`
	Dependencies       []string     `json:"dependencies"`
}

// Clone returns a deep copy so callers cannot mutate an adapter's descriptor.
func (m FrameworkMetadata) Clone() FrameworkMetadata {
	m.SupportedLanguages = slices.Clone(m.SupportedLanguages)
	m.Dependencies = slices.Clone(m.Dependencies)
	return m
}

// ValidationResult reports the structural validity of a workflow payload.
// Errors is non-empty iff Valid is false.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// NewValidationResult builds a ValidationResult from a list of problems.
func NewValidationResult(problems []string) ValidationResult {
	if len(problems) == 0 {
		return ValidationResult{Valid: true}
	}
	return ValidationResult{Valid: false, Errors: problems}
}
