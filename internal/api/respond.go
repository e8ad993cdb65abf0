package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/agentflow/internal/errors"
	"github.com/seantiz/agentflow/internal/model"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// errorResponse is the JSON body of every error response.
type errorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details []string `json:"details,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps an error from the execution service onto an HTTP
// status. Unclassified errors are logged and reported as 500.
func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	var status int
	switch {
	case errors.Is(err, errors.ErrInvalidWorkflow):
		status = http.StatusBadRequest
	case errors.Is(err, errors.ErrUnsupportedFramework):
		status = http.StatusBadRequest
	case errors.Is(err, errors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errors.ErrDuplicateExecution):
		status = http.StatusConflict
	case errors.Is(err, errors.ErrAdapterNotFound):
		status = http.StatusServiceUnavailable
	default:
		s.logger.Error(op, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to "+op)
		return
	}

	s.writeJSON(w, status, errorResponse{
		Error:   err.Error(),
		Code:    errors.Code(err),
		Details: errors.GetAllDetails(err),
	})
}

// decodeBody decodes a size-limited JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}

// frameworkParam reads the framework from the route, falling back to the
// "framework" query parameter.
func frameworkParam(r *http.Request) model.FrameworkType {
	if ft := chi.URLParam(r, "framework"); ft != "" {
		return model.FrameworkType(ft)
	}
	return model.FrameworkType(r.URL.Query().Get("framework"))
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
