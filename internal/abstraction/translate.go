package abstraction

import (
	"strings"

	"github.com/seantiz/agentflow/internal/errors"
	"github.com/seantiz/agentflow/internal/model"
)

// TranslatedError is a framework error expressed in the shared vocabulary.
// FrameworkSpecific keeps the raw diagnostic text for troubleshooting and
// must not be shown to end users.
type TranslatedError struct {
	Message           string `json:"message"`
	Code              string `json:"code"`
	FrameworkSpecific string `json:"framework_specific,omitempty"`
}

// Framework-specific error codes.
const (
	CodeLangGraphState     = "LANGGRAPH_STATE_ERROR"
	CodeAgnoInstantiation  = "AGNO_INSTANTIATION_ERROR"
	CodeCrewAICoordination = "CREWAI_COORDINATION_ERROR"
	CodeN8nWorkflow        = "N8N_WORKFLOW_ERROR"
)

type heuristic struct {
	keyword string
	message string
	code    string
}

var heuristics = map[model.FrameworkType]heuristic{
	model.FrameworkLangGraph: {"state", "Workflow state management error", CodeLangGraphState},
	model.FrameworkAgno:      {"instantiation", "Agent instantiation failed", CodeAgnoInstantiation},
	model.FrameworkCrewAI:    {"coordination", "Multi-agent coordination failed", CodeCrewAICoordination},
	model.FrameworkN8n:       {"workflow", "Workflow validation or execution error", CodeN8nWorkflow},
}

// TranslateError classifies a raw framework error. Timeouts and
// cancellations keep their taxonomy codes. Otherwise the framework's
// keyword heuristic applies, and anything unmatched becomes FRAMEWORK_ERROR
// carrying the raw message.
func TranslateError(ft model.FrameworkType, err error) TranslatedError {
	if err == nil {
		return TranslatedError{}
	}
	raw := err.Error()

	switch {
	case errors.Is(err, errors.ErrExecutionTimeout):
		return TranslatedError{Message: "Execution timed out", Code: errors.CodeTimeout, FrameworkSpecific: raw}
	case errors.Is(err, errors.ErrCancelled):
		return TranslatedError{Message: "Execution cancelled", Code: errors.CodeCancelled, FrameworkSpecific: raw}
	}

	if h, ok := heuristics[ft]; ok && strings.Contains(strings.ToLower(raw), h.keyword) {
		return TranslatedError{Message: h.message, Code: h.code, FrameworkSpecific: raw}
	}

	msg := raw
	if msg == "" {
		msg = "Unknown error occurred"
	}
	return TranslatedError{Message: msg, Code: errors.CodeFramework, FrameworkSpecific: raw}
}
