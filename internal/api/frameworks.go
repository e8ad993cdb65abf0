package api

import (
	"encoding/json"
	"net/http"

	"github.com/seantiz/agentflow/internal/abstraction"
	"github.com/seantiz/agentflow/internal/model"
)

// listFrameworksResponse is the JSON response for GET /v1/frameworks.
type listFrameworksResponse struct {
	Frameworks []abstraction.FrameworkInfo `json:"frameworks"`
}

// requirementsResponse is the JSON response for POST
// /v1/frameworks/{framework}/requirements.
type requirementsResponse struct {
	Framework    model.FrameworkType    `json:"framework"`
	Requirements model.ResourceEstimate `json:"requirements"`
	Host         *hostCapacity          `json:"host,omitempty"`
	FitsHost     *bool                  `json:"fits_host,omitempty"`
}

func (s *Server) handleListFrameworks(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, listFrameworksResponse{
		Frameworks: s.service.ListFrameworks(),
	})
}

func (s *Server) handleGetCapabilities(w http.ResponseWriter, r *http.Request) {
	caps, err := s.service.GetFrameworkCapabilities(frameworkParam(r))
	if err != nil {
		s.writeServiceError(w, "get capabilities", err)
		return
	}
	s.writeJSON(w, http.StatusOK, caps)
}

// handleValidateWorkflow takes the raw workflow payload as the body. An
// invalid workflow is a 200 with valid=false.
func (s *Server) handleValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	var workflow json.RawMessage
	if err := decodeBody(w, r, &workflow); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.service.ValidateWorkflow(frameworkParam(r), workflow)
	if err != nil {
		s.writeServiceError(w, "validate workflow", err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetRequirements(w http.ResponseWriter, r *http.Request) {
	var workflow json.RawMessage
	if err := decodeBody(w, r, &workflow); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ft := frameworkParam(r)
	est, err := s.service.GetResourceRequirements(ft, workflow)
	if err != nil {
		s.writeServiceError(w, "get resource requirements", err)
		return
	}

	resp := requirementsResponse{Framework: ft, Requirements: est}
	if host, err := s.host(); err != nil {
		s.logger.Warn("probe host capacity", "error", err)
	} else {
		fits := host.fits(est)
		resp.Host = &host
		resp.FitsHost = &fits
	}
	s.writeJSON(w, http.StatusOK, resp)
}
