package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// handleStreamEvents streams the step transitions of an execution as SSE.
// The stream opens with a "snapshot" event holding the current steps, then
// one "step" event per transition, and ends with "done" when the execution
// finishes.
func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ft := frameworkParam(r)
	if ft == "" {
		s.writeError(w, http.StatusBadRequest, "framework query parameter is required")
		return
	}
	if s.broker == nil {
		s.writeError(w, http.StatusNotImplemented, "step streaming is not enabled")
		return
	}

	if _, err := s.service.GetExecutionStatus(r.Context(), ft, id); err != nil {
		s.writeServiceError(w, "get execution status", err)
		return
	}

	// The snapshot is read after subscribing so no transition falls between
	// the two. A finished execution yields a closed channel.
	ch, unsub := s.broker.Subscribe(id)
	defer unsub()

	steps, err := s.service.GetExecutionStatus(r.Context(), ft, id)
	if err != nil {
		s.writeServiceError(w, "get execution status", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	eventStreamsActive.Inc()
	defer eventStreamsActive.Dec()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)

	if err := writeSSEJSON(w, "snapshot", stepsResponse{ExecutionID: id, Framework: ft, Steps: steps}); err != nil {
		return
	}
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if err := writeSSEJSON(w, "step", ev.Step); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// writeSSEJSON writes v as a named SSE event with a single JSON data line.
func writeSSEJSON(w http.ResponseWriter, eventType string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return writeSSEEvent(w, eventType, string(data))
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
