package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Job submission
	mux.HandleFunc("/api/jobs/single", s.app.JobHandler.SubmitSingleHandler) // POST
	mux.HandleFunc("/api/jobs/batch", s.app.JobHandler.SubmitBatchHandler)   // POST
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes)                          // /{id}/status, /{id}/cancel, /{id}/polling/stop

	// API routes - Application status
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler) // GET

	return mux
}

// handleJobRoutes dispatches /api/jobs/{id}/... sub-routes.
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case strings.HasSuffix(path, "/status"):
		s.app.JobHandler.JobStatusHandler(w, r)
	case strings.HasSuffix(path, "/cancel"):
		s.app.JobHandler.CancelJobHandler(w, r)
	case strings.HasSuffix(path, "/polling/stop"):
		s.app.JobHandler.StopPollingHandler(w, r)
	default:
		http.NotFound(w, r)
	}
}
