package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/agentflow/internal/model"
	"github.com/seantiz/agentflow/internal/store"
)

// executeRequest is the JSON body for POST /v1/executions and
// POST /v1/executions/async.
type executeRequest struct {
	Framework    model.FrameworkType    `json:"framework"`
	WorkflowData json.RawMessage        `json:"workflow_data"`
	InputData    json.RawMessage        `json:"input_data"`
	Context      model.ExecutionContext `json:"context"`
}

// submitResponse is the JSON response for POST /v1/executions/async.
type submitResponse struct {
	ExecutionID string              `json:"execution_id"`
	Framework   model.FrameworkType `json:"framework"`
}

// stepsResponse is the JSON response for GET /v1/executions/{id}/steps.
type stepsResponse struct {
	ExecutionID string                `json:"execution_id"`
	Framework   model.FrameworkType   `json:"framework"`
	Steps       []model.ExecutionStep `json:"steps"`
}

// listExecutionsResponse wraps the paginated archive list.
type listExecutionsResponse struct {
	Executions []*store.Execution `json:"executions"`
	Total      int                `json:"total"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

func (s *Server) decodeExecuteRequest(w http.ResponseWriter, r *http.Request) (executeRequest, bool) {
	var req executeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	if req.Framework == "" {
		s.writeError(w, http.StatusBadRequest, "framework is required")
		return req, false
	}
	if len(req.WorkflowData) == 0 {
		s.writeError(w, http.StatusBadRequest, "workflow_data is required")
		return req, false
	}
	return req, true
}

// handleExecute runs an execution synchronously. A failed execution is
// still a 200: the result carries the failure.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeExecuteRequest(w, r)
	if !ok {
		return
	}

	// Executions may outlast the server write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("clear write deadline for execution", "error", err)
	}

	in := model.ExecutionInput{WorkflowData: req.WorkflowData, InputData: req.InputData}
	res, err := s.service.ExecuteWorkflow(r.Context(), req.Framework, in, req.Context)
	if err != nil {
		s.writeServiceError(w, "execute workflow", err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExecuteAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeExecuteRequest(w, r)
	if !ok {
		return
	}

	in := model.ExecutionInput{WorkflowData: req.WorkflowData, InputData: req.InputData}
	id, err := s.service.Submit(r.Context(), req.Framework, in, req.Context)
	if err != nil {
		s.writeServiceError(w, "submit workflow", err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, submitResponse{ExecutionID: id, Framework: req.Framework})
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	executions, total, err := s.archive.ListExecutions(r.Context(), store.ListFilter{
		Framework: r.URL.Query().Get("framework"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		s.writeServiceError(w, "list executions", err)
		return
	}

	s.writeJSON(w, http.StatusOK, listExecutionsResponse{
		Executions: executions,
		Total:      total,
		Limit:      limit,
		Offset:     offset,
	})
}

// handleGetExecution serves a finished execution from the archive.
func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	e, err := s.archive.GetExecution(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, "get execution", err)
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

// handleGetSteps serves the live step list of an execution that is running
// or recently finished.
func (s *Server) handleGetSteps(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ft := frameworkParam(r)
	if ft == "" {
		s.writeError(w, http.StatusBadRequest, "framework query parameter is required")
		return
	}

	steps, err := s.service.GetExecutionStatus(r.Context(), ft, id)
	if err != nil {
		s.writeServiceError(w, "get execution status", err)
		return
	}
	s.writeJSON(w, http.StatusOK, stepsResponse{ExecutionID: id, Framework: ft, Steps: steps})
}

func (s *Server) handleCancelExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ft := frameworkParam(r)
	if ft == "" {
		s.writeError(w, http.StatusBadRequest, "framework query parameter is required")
		return
	}

	if err := s.service.CancelExecution(r.Context(), ft, id); err != nil {
		s.writeServiceError(w, "cancel execution", err)
		return
	}

	steps, err := s.service.GetExecutionStatus(r.Context(), ft, id)
	if err != nil {
		s.writeServiceError(w, "get execution status", err)
		return
	}
	s.writeJSON(w, http.StatusOK, stepsResponse{ExecutionID: id, Framework: ft, Steps: steps})
}
