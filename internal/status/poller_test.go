package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// testPolicy shrinks the production thresholds to milliseconds while
// preserving their relative ordering.
func testPolicy() PollPolicy {
	return PollPolicy{
		FetchInterval:       20 * time.Millisecond,
		SilentChannel:       100 * time.Millisecond,
		StuckCheckAt:        150 * time.Millisecond,
		StuckThreshold:      100 * time.Millisecond,
		EscalationCheckAt:   300 * time.Millisecond,
		EscalationThreshold: 200 * time.Millisecond,
		HardCeiling:         600 * time.Millisecond,
	}
}

// fakeClient scripts raw status reports for the poller. When the script
// runs out the last report repeats. A nil report entry returns fetchErr.
type fakeClient struct {
	mu       sync.Mutex
	script   []*models.RawStatusReport
	fetchErr error
	fetches  int
	blockCtx bool // when true, fetch blocks until the context is cancelled
}

func (f *fakeClient) SubmitSingleJob(ctx context.Context, req *models.SingleJobRequest) (string, error) {
	return "job-single", nil
}

func (f *fakeClient) SubmitBatchJob(ctx context.Context, req *models.BatchJobRequest) (string, error) {
	return "job-batch", nil
}

func (f *fakeClient) FetchSingleStatus(ctx context.Context) (*models.RawStatusReport, error) {
	return f.next(ctx)
}

func (f *fakeClient) FetchBatchStatus(ctx context.Context, jobID string) (*models.RawStatusReport, error) {
	return f.next(ctx)
}

func (f *fakeClient) CancelJob(ctx context.Context, jobID string) (*models.CancelResult, error) {
	return &models.CancelResult{Success: true}, nil
}

func (f *fakeClient) next(ctx context.Context) (*models.RawStatusReport, error) {
	f.mu.Lock()
	f.fetches++
	idx := f.fetches - 1
	block := f.blockCtx
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.script) == 0 {
		return nil, f.fetchErr
	}
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	report := f.script[idx]
	if report == nil {
		return nil, f.fetchErr
	}
	clone := *report
	return &clone, nil
}

func (f *fakeClient) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// recorder collects poll callbacks for assertions.
type recorder struct {
	mu        sync.Mutex
	updates   []models.UnifiedStatus
	completes []models.UnifiedStatus
	errs      []error
	done      chan struct{}
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{})}
}

func (r *recorder) callbacks() interfaces.PollCallbacks {
	return interfaces.PollCallbacks{
		OnUpdate: func(status models.UnifiedStatus) {
			r.mu.Lock()
			r.updates = append(r.updates, status)
			r.mu.Unlock()
		},
		OnComplete: func(status models.UnifiedStatus) {
			r.mu.Lock()
			r.completes = append(r.completes, status)
			r.mu.Unlock()
			close(r.done)
		},
		OnError: func(status models.UnifiedStatus, err error) {
			r.mu.Lock()
			r.completes = append(r.completes, status)
			r.errs = append(r.errs, err)
			r.mu.Unlock()
			close(r.done)
		},
	}
}

func (r *recorder) waitDone(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(timeout):
		t.Fatal("poll did not finish in time")
	}
}

func (r *recorder) snapshot() (updates, completes []models.UnifiedStatus, errs []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.UnifiedStatus{}, r.updates...),
		append([]models.UnifiedStatus{}, r.completes...),
		append([]error{}, r.errs...)
}

func newTestPoller(client *fakeClient) *Poller {
	return NewPoller(client, testPolicy(), arbor.NewLogger())
}

func runningReport(message string) *models.RawStatusReport {
	return &models.RawStatusReport{
		Status:  models.JobStatusRunning,
		Message: message,
	}
}

func TestPoller_CompletesOnKeyword(t *testing.T) {
	client := &fakeClient{script: []*models.RawStatusReport{
		runningReport("Dispenser #1 of 2"),
		runningReport("All forms processed"),
	}}
	poller := newTestPoller(client)
	rec := newRecorder()

	poller.Start("job-1", models.JobKindSingle, rec.callbacks())
	rec.waitDone(t, 2*time.Second)

	updates, completes, errs := rec.snapshot()
	require.Len(t, completes, 1)
	assert.Equal(t, models.JobStatusCompleted, completes[0].Status)
	assert.Empty(t, errs)
	assert.NotEmpty(t, updates)
	assert.Empty(t, poller.ActiveJobs())
}

func TestPoller_CompletesOnCompletedStatus(t *testing.T) {
	client := &fakeClient{script: []*models.RawStatusReport{
		runningReport("Dispenser #1 of 2"),
		{Status: models.JobStatusCompleted, Message: "wrapped up"},
	}}
	poller := newTestPoller(client)
	rec := newRecorder()

	poller.Start("job-1", models.JobKindSingle, rec.callbacks())
	rec.waitDone(t, 2*time.Second)

	_, completes, _ := rec.snapshot()
	require.Len(t, completes, 1)
	assert.Equal(t, models.JobStatusCompleted, completes[0].Status)
	require.NotNil(t, completes[0].EndTime)
}

func TestPoller_IdleOnFirstFetchCompletesOnce(t *testing.T) {
	client := &fakeClient{script: []*models.RawStatusReport{
		{Status: models.JobStatusIdle},
	}}
	poller := newTestPoller(client)
	rec := newRecorder()

	poller.Start("job-1", models.JobKindSingle, rec.callbacks())
	rec.waitDone(t, 2*time.Second)

	// Let any ghost timer fire if one survived.
	time.Sleep(300 * time.Millisecond)

	_, completes, errs := rec.snapshot()
	require.Len(t, completes, 1)
	assert.Equal(t, models.JobStatusCompleted, completes[0].Status)
	assert.Empty(t, errs)
	assert.Empty(t, poller.ActiveJobs())
}

func TestPoller_IdleWithErrorTextDoesNotComplete(t *testing.T) {
	client := &fakeClient{script: []*models.RawStatusReport{
		{Status: models.JobStatusIdle, Message: "error: login rejected"},
	}}
	poller := newTestPoller(client)
	rec := newRecorder()

	poller.Start("job-1", models.JobKindSingle, rec.callbacks())

	// Identical reports repeat, so the silent-channel inference finishes
	// the job instead of the clean-idle path.
	rec.waitDone(t, 2*time.Second)

	_, completes, _ := rec.snapshot()
	require.Len(t, completes, 1)
	assert.Contains(t, completes[0].Message, "no further updates")
}

func TestPoller_BusinessErrorViaUpdateThenComplete(t *testing.T) {
	client := &fakeClient{script: []*models.RawStatusReport{
		{Status: models.JobStatusError, Message: "form rejected", Error: "validation failed"},
	}}
	poller := newTestPoller(client)
	rec := newRecorder()

	poller.Start("job-1", models.JobKindSingle, rec.callbacks())
	rec.waitDone(t, 2*time.Second)

	updates, completes, errs := rec.snapshot()
	require.NotEmpty(t, updates)
	assert.Equal(t, models.JobStatusError, updates[len(updates)-1].Status)
	require.Len(t, completes, 1)
	assert.Equal(t, models.JobStatusError, completes[0].Status)
	assert.Equal(t, "validation failed", completes[0].Message)
	assert.Empty(t, errs, "business errors must not reach OnError")
}

func TestPoller_TransportErrorFiresOnError(t *testing.T) {
	client := &fakeClient{fetchErr: errors.New("connection refused")}
	poller := newTestPoller(client)
	rec := newRecorder()

	poller.Start("job-1", models.JobKindSingle, rec.callbacks())
	rec.waitDone(t, 2*time.Second)

	_, completes, errs := rec.snapshot()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "connection refused")
	require.Len(t, completes, 1)
	assert.Equal(t, models.JobStatusError, completes[0].Status)
	require.NotNil(t, completes[0].EndTime)
	assert.Empty(t, poller.ActiveJobs())
}

func TestPoller_DuplicateStartIsNoOp(t *testing.T) {
	client := &fakeClient{script: []*models.RawStatusReport{
		runningReport("Dispenser #1 of 9"),
	}}
	poller := newTestPoller(client)
	rec := newRecorder()
	second := newRecorder()

	poller.Start("job-1", models.JobKindSingle, rec.callbacks())
	poller.Start("job-1", models.JobKindSingle, second.callbacks())

	assert.Len(t, poller.ActiveJobs(), 1)

	poller.Stop("job-1")

	_, completes, _ := second.snapshot()
	assert.Empty(t, completes, "duplicate start must not register callbacks")
}

func TestPoller_StopDiscardsInFlightFetch(t *testing.T) {
	client := &fakeClient{blockCtx: true}
	poller := newTestPoller(client)
	rec := newRecorder()

	poller.Start("job-1", models.JobKindSingle, rec.callbacks())

	// Wait for the first fetch to be in flight, then stop.
	require.Eventually(t, func() bool { return client.fetchCount() > 0 },
		time.Second, 5*time.Millisecond)
	poller.Stop("job-1")

	time.Sleep(100 * time.Millisecond)

	updates, completes, errs := rec.snapshot()
	assert.Empty(t, updates)
	assert.Empty(t, completes)
	assert.Empty(t, errs)
	assert.Empty(t, poller.ActiveJobs())
}

func TestPoller_StopIsIdempotent(t *testing.T) {
	client := &fakeClient{script: []*models.RawStatusReport{
		runningReport("Dispenser #1 of 9"),
	}}
	poller := newTestPoller(client)
	rec := newRecorder()

	poller.Start("job-1", models.JobKindSingle, rec.callbacks())
	poller.Stop("job-1")
	poller.Stop("job-1")
	poller.Stop("never-started")

	assert.Empty(t, poller.ActiveJobs())
}

func TestPoller_StuckMessageForcesCompletion(t *testing.T) {
	// The report changes every fetch (counter advances) so the silent
	// channel never fires, but the message itself never changes. Tier one
	// must force completion.
	script := make([]*models.RawStatusReport, 40)
	for i := range script {
		n := i
		script[i] = &models.RawStatusReport{
			Status:           models.JobStatusRunning,
			Message:          "working",
			DispenserCurrent: &n,
		}
	}
	client := &fakeClient{script: script}
	poller := newTestPoller(client)
	rec := newRecorder()

	start := time.Now()
	poller.Start("job-1", models.JobKindSingle, rec.callbacks())
	rec.waitDone(t, 2*time.Second)

	elapsed := time.Since(start)
	_, completes, errs := rec.snapshot()
	require.Len(t, completes, 1)
	assert.Equal(t, models.JobStatusCompleted, completes[0].Status)
	assert.Contains(t, completes[0].Message, "stuck")
	assert.Empty(t, errs)
	// Fired by tier one, well before the escalation check.
	assert.Less(t, elapsed, testPolicy().EscalationCheckAt)
}

func TestPoller_HardCeilingForcesCompletion(t *testing.T) {
	// Every fetch changes the message, so neither stuck tier nor the
	// silent channel fires. Only the hard ceiling ends the poll.
	script := make([]*models.RawStatusReport, 80)
	for i := range script {
		script[i] = runningReport(fmt.Sprintf("visiting page %d", i))
	}
	client := &fakeClient{script: script}
	poller := newTestPoller(client)
	rec := newRecorder()

	start := time.Now()
	poller.Start("job-1", models.JobKindBatch, rec.callbacks())
	rec.waitDone(t, 3*time.Second)

	elapsed := time.Since(start)
	policy := testPolicy()
	_, completes, _ := rec.snapshot()
	require.Len(t, completes, 1)
	assert.Equal(t, models.JobStatusCompleted, completes[0].Status)
	assert.Contains(t, completes[0].Message, "Maximum processing time")
	assert.GreaterOrEqual(t, elapsed, policy.HardCeiling-policy.FetchInterval)
}

func TestPoller_FinalRecordCarriesAccumulatedFacts(t *testing.T) {
	client := &fakeClient{script: []*models.RawStatusReport{
		runningReport("Dispenser #1 of 4"),
		runningReport("Fuel type: Diesel (1/2)"),
		runningReport("Processing complete"),
	}}
	poller := newTestPoller(client)
	rec := newRecorder()

	poller.Start("job-1", models.JobKindSingle, rec.callbacks())
	rec.waitDone(t, 2*time.Second)

	_, completes, _ := rec.snapshot()
	require.Len(t, completes, 1)
	final := completes[0]
	require.NotNil(t, final.DispenserCurrent)
	assert.Equal(t, 1, *final.DispenserCurrent)
	require.NotNil(t, final.DispenserTotal)
	assert.Equal(t, 4, *final.DispenserTotal)
	assert.Equal(t, "Diesel", final.FuelType)
}

func TestPoller_StatusNeverMovesBackward(t *testing.T) {
	client := &fakeClient{script: []*models.RawStatusReport{
		runningReport("Dispenser #1 of 3"),
		{Status: models.JobStatusIdle, Message: "error: transient glitch"},
		runningReport("Dispenser #2 of 3"),
		{Status: models.JobStatusCompleted, Message: "done"},
	}}
	poller := newTestPoller(client)
	rec := newRecorder()

	poller.Start("job-1", models.JobKindSingle, rec.callbacks())
	rec.waitDone(t, 2*time.Second)

	updates, _, _ := rec.snapshot()
	for _, u := range updates {
		assert.NotEqual(t, models.JobStatusIdle, u.Status,
			"a running job must never report idle to the caller")
	}
}

func TestPolicyFromConfig(t *testing.T) {
	policy := PolicyFromConfig(&common.PollingConfig{
		FetchInterval: "1s",
		HardCeiling:   "90s",
		SilentChannel: "garbage",
	})

	assert.Equal(t, time.Second, policy.FetchInterval)
	assert.Equal(t, 90*time.Second, policy.HardCeiling)
	// Malformed and missing values fall back to defaults.
	assert.Equal(t, DefaultPollPolicy().SilentChannel, policy.SilentChannel)
	assert.Equal(t, DefaultPollPolicy().StuckCheckAt, policy.StuckCheckAt)

	assert.Equal(t, DefaultPollPolicy(), PolicyFromConfig(nil))
}

func TestPoller_StopAll(t *testing.T) {
	client := &fakeClient{script: []*models.RawStatusReport{
		runningReport("Dispenser #1 of 9"),
	}}
	poller := newTestPoller(client)

	poller.Start("job-1", models.JobKindSingle, newRecorder().callbacks())
	poller.Start("job-2", models.JobKindBatch, newRecorder().callbacks())
	require.Len(t, poller.ActiveJobs(), 2)

	poller.StopAll()
	assert.Empty(t, poller.ActiveJobs())
}
