package api

import (
	"net/http"

	"github.com/seantiz/agentflow/internal/framework"
)

type healthResponse struct {
	Status     string            `json:"status"`
	Frameworks map[string]string `json:"frameworks"`
	Host       *hostCapacity     `json:"host,omitempty"`
}

// handleHealthz reports "degraded" when any framework adapter failed its
// lifecycle. It always answers 200.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Frameworks: map[string]string{}}
	for _, info := range s.service.ListFrameworks() {
		resp.Frameworks[string(info.Type)] = string(info.State)
		if info.State == framework.StateDegraded {
			resp.Status = "degraded"
		}
	}

	if host, err := s.host(); err != nil {
		s.logger.Warn("probe host capacity", "error", err)
	} else {
		resp.Host = &host
	}

	s.writeJSON(w, http.StatusOK, resp)
}
