// -----------------------------------------------------------------------
// Jobs Service - Submission facade over the automation backend + poller
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// jobRecord is the in-memory bookkeeping for one submitted job. Recent
// records are kept only for UI lookups; long-term storage of outcomes is
// deliberately out of scope.
type jobRecord struct {
	handle     models.JobHandle
	lastStatus models.UnifiedStatus
	finishedAt *time.Time
}

// Service submits jobs to the automation backend, starts status polling,
// and fans results out to the notifier and an in-memory recent-status map.
type Service struct {
	client   interfaces.AutomationClient
	poller   interfaces.StatusPoller
	notifier interfaces.StatusNotifier // optional: may be nil in tests
	validate *validator.Validate
	logger   arbor.ILogger

	mu      sync.RWMutex
	records map[string]*jobRecord
}

// NewService creates the jobs service.
func NewService(client interfaces.AutomationClient, poller interfaces.StatusPoller, notifier interfaces.StatusNotifier, logger arbor.ILogger) *Service {
	return &Service{
		client:   client,
		poller:   poller,
		notifier: notifier,
		validate: validator.New(),
		logger:   logger,
		records:  make(map[string]*jobRecord),
	}
}

// SubmitSingle validates and submits a one-visit form-fill job, then
// starts status polling for it.
func (s *Service) SubmitSingle(ctx context.Context, req *models.SingleJobRequest) (*models.JobHandle, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid single job request: %w", err)
	}
	if req.Mode == "" {
		req.Mode = "auto"
	}
	if req.ContextID == "" {
		req.ContextID = uuid.New().String()
	}

	jobID, err := s.client.SubmitSingleJob(ctx, req)
	if err != nil {
		return nil, err
	}

	handle := s.track(jobID, models.JobKindSingle)

	s.logger.Info().
		Str("job_id", jobID).
		Str("context_id", req.ContextID).
		Str("mode", req.Mode).
		Msg("Single job submitted")

	s.poller.Start(jobID, models.JobKindSingle, s.callbacksFor(jobID))
	return handle, nil
}

// SubmitBatch validates and submits a multi-visit job, then starts
// status polling for it.
func (s *Service) SubmitBatch(ctx context.Context, req *models.BatchJobRequest) (*models.JobHandle, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid batch job request: %w", err)
	}
	if req.Mode == "" {
		req.Mode = "auto"
	}

	jobID, err := s.client.SubmitBatchJob(ctx, req)
	if err != nil {
		return nil, err
	}

	handle := s.track(jobID, models.JobKindBatch)

	s.logger.Info().
		Str("job_id", jobID).
		Str("file_ref", req.FileRef).
		Str("mode", req.Mode).
		Msg("Batch job submitted")

	s.poller.Start(jobID, models.JobKindBatch, s.callbacksFor(jobID))
	return handle, nil
}

// Status returns the last unified status seen for a job.
func (s *Service) Status(jobID string) (models.UnifiedStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[jobID]
	if !ok {
		return models.UnifiedStatus{}, false
	}
	return record.lastStatus, true
}

// Cancel asks the backend to abort the job and stops its poll. The
// record is marked terminal so the UI stops waiting on it.
func (s *Service) Cancel(ctx context.Context, jobID string) (*models.CancelResult, error) {
	result, err := s.client.CancelJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	s.poller.Stop(jobID)

	now := time.Now()
	s.mu.Lock()
	if record, ok := s.records[jobID]; ok {
		record.lastStatus.Status = record.lastStatus.Status.Advance(models.JobStatusError)
		record.lastStatus.Message = "Job cancelled"
		record.lastStatus.Timestamp = now
		record.lastStatus.EndTime = &now
		record.finishedAt = &now
	}
	s.mu.Unlock()

	s.logger.Info().
		Str("job_id", jobID).
		Bool("success", result.Success).
		Msg("Job cancel requested")

	return result, nil
}

// StopPolling stops status polling for one job without cancelling it on
// the backend.
func (s *Service) StopPolling(jobID string) {
	s.poller.Stop(jobID)
}

// StopAllPolling stops every active poll. Used at shutdown.
func (s *Service) StopAllPolling() {
	s.poller.StopAll()
}

// ActivePolls returns the ids of jobs currently being polled.
func (s *Service) ActivePolls() []string {
	return s.poller.ActiveJobs()
}

// PruneHistory drops finished job records older than maxAge and returns
// how many were removed. Called by the scheduler sweep.
func (s *Service) PruneHistory(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, record := range s.records {
		if record.finishedAt != nil && record.finishedAt.Before(cutoff) {
			delete(s.records, id)
			pruned++
		}
	}
	return pruned
}

// track registers a fresh record for a submitted job.
func (s *Service) track(jobID string, kind models.JobKind) *models.JobHandle {
	now := time.Now()
	handle := models.JobHandle{
		JobID:     jobID,
		Kind:      kind,
		CreatedAt: now,
	}

	s.mu.Lock()
	s.records[jobID] = &jobRecord{
		handle: handle,
		lastStatus: models.UnifiedStatus{
			JobID:     jobID,
			Kind:      kind,
			Status:    models.JobStatusRunning,
			Message:   "Job submitted",
			Timestamp: now,
			StartTime: &now,
		},
	}
	s.mu.Unlock()

	return &handle
}

// callbacksFor wires poll callbacks to the record map and the notifier.
func (s *Service) callbacksFor(jobID string) interfaces.PollCallbacks {
	return interfaces.PollCallbacks{
		OnUpdate: func(status models.UnifiedStatus) {
			s.record(jobID, status, false)
		},
		OnComplete: func(status models.UnifiedStatus) {
			s.record(jobID, status, true)
			s.logger.Info().
				Str("job_id", jobID).
				Str("status", string(status.Status)).
				Msg("Job finished")
		},
		OnError: func(status models.UnifiedStatus, err error) {
			s.record(jobID, status, true)
			s.logger.Warn().
				Err(err).
				Str("job_id", jobID).
				Msg("Job polling failed")
		},
	}
}

// record stores the latest status and pushes it to the notifier.
func (s *Service) record(jobID string, status models.UnifiedStatus, terminal bool) {
	s.mu.Lock()
	if rec, ok := s.records[jobID]; ok {
		rec.lastStatus = status
		if terminal && rec.finishedAt == nil {
			now := time.Now()
			rec.finishedAt = &now
		}
	}
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.NotifyStatus(status)
	}
}
