package interfaces

import (
	"context"

	"github.com/ternarybob/vigil/internal/models"
)

// AutomationClient is the contract to the remote browser-automation
// backend. The backend executes the actual form-fill work; this layer
// only submits jobs and reads back raw status reports.
type AutomationClient interface {
	// SubmitSingleJob starts a one-visit form-fill job and returns the job id.
	SubmitSingleJob(ctx context.Context, req *models.SingleJobRequest) (string, error)

	// SubmitBatchJob starts a multi-visit job from an uploaded file reference.
	SubmitBatchJob(ctx context.Context, req *models.BatchJobRequest) (string, error)

	// FetchSingleStatus reads the backend's global single-job status slot.
	// The backend runs at most one single job at a time, so no id is taken.
	FetchSingleStatus(ctx context.Context) (*models.RawStatusReport, error)

	// FetchBatchStatus reads the status report for a batch job.
	FetchBatchStatus(ctx context.Context, jobID string) (*models.RawStatusReport, error)

	// CancelJob asks the backend to abort a job.
	CancelJob(ctx context.Context, jobID string) (*models.CancelResult, error)
}

// PollCallbacks carries the caller's callbacks for one polled job.
//
// OnUpdate may fire many times. OnComplete fires exactly once per job.
// OnError fires only on a transport-level fetch failure and receives a
// synthesized terminal record alongside the error, so callers always get
// a well-formed status regardless of failure mode.
type PollCallbacks struct {
	OnUpdate   func(status models.UnifiedStatus)
	OnComplete func(status models.UnifiedStatus)
	OnError    func(status models.UnifiedStatus, err error)
}

// StatusPoller owns per-job polling state and completion inference.
type StatusPoller interface {
	// Start begins polling jobID. Duplicate starts for an active job are
	// logged no-ops - at most one poll loop exists per job.
	Start(jobID string, kind models.JobKind, callbacks PollCallbacks)

	// Stop cancels polling for jobID. Idempotent. After Stop returns no
	// callback fires for that job, even from a fetch already in flight.
	Stop(jobID string)

	// StopAll stops every active poll. Used at shutdown.
	StopAll()

	// ActiveJobs returns the ids of jobs currently being polled.
	ActiveJobs() []string
}
