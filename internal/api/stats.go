package api

import (
	"net/http"
)

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.archive.GetExecutionStats(r.Context())
	if err != nil {
		s.writeServiceError(w, "get stats", err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}
