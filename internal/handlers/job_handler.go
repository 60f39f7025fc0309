// -----------------------------------------------------------------------
// Job Handler - Submit, status, cancel, and polling control endpoints
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/models"
	"github.com/ternarybob/vigil/internal/services/jobs"
)

// JobHandler exposes job submission and status lookups over HTTP.
type JobHandler struct {
	service *jobs.Service
	logger  arbor.ILogger
}

// NewJobHandler creates a job handler.
func NewJobHandler(service *jobs.Service, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		service: service,
		logger:  logger,
	}
}

// SubmitSingleHandler handles POST /api/jobs/single.
func (h *JobHandler) SubmitSingleHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.SingleJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	handle, err := h.service.SubmitSingle(r.Context(), &req)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Single job submission rejected")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, handle)
}

// SubmitBatchHandler handles POST /api/jobs/batch.
func (h *JobHandler) SubmitBatchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.BatchJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	handle, err := h.service.SubmitBatch(r.Context(), &req)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Batch job submission rejected")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, handle)
}

// JobStatusHandler handles GET /api/jobs/{id}/status.
func (h *JobHandler) JobStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	jobID := extractJobID(r.URL.Path, "/status")
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	status, ok := h.service.Status(jobID)
	if !ok {
		WriteError(w, http.StatusNotFound, "Job not found: "+jobID)
		return
	}

	WriteJSON(w, http.StatusOK, status)
}

// CancelJobHandler handles POST /api/jobs/{id}/cancel.
func (h *JobHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	jobID := extractJobID(r.URL.Path, "/cancel")
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	result, err := h.service.Cancel(r.Context(), jobID)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Job cancel failed")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// StopPollingHandler handles POST /api/jobs/{id}/polling/stop. The job
// keeps running on the backend; only status polling stops.
func (h *JobHandler) StopPollingHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	jobID := extractJobID(r.URL.Path, "/polling/stop")
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	h.service.StopPolling(jobID)
	WriteSuccess(w, "Polling stopped for job "+jobID)
}

// extractJobID pulls the job id out of paths shaped like
// /api/jobs/{id}{suffix}.
func extractJobID(path, suffix string) string {
	if !strings.HasSuffix(path, suffix) {
		return ""
	}
	id := strings.TrimSuffix(path, suffix)
	id = strings.TrimPrefix(id, "/api/jobs/")
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}
