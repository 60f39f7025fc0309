package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/services/jobs"
)

// StatusHandler reports application status.
type StatusHandler struct {
	service   *jobs.Service
	logger    arbor.ILogger
	startTime time.Time
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(service *jobs.Service, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		service:   service,
		logger:    logger,
		startTime: time.Now(),
	}
}

// GetStatusHandler handles GET /api/status.
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	active := h.service.ActivePolls()

	status := map[string]interface{}{
		"status":       "online",
		"version":      common.GetVersion(),
		"uptime":       time.Since(h.startTime).Round(time.Second).String(),
		"active_polls": len(active),
		"polled_jobs":  active,
		"timestamp":    time.Now().Format(time.RFC3339),
	}

	WriteJSON(w, http.StatusOK, status)
}
