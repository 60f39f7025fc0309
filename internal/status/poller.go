// -----------------------------------------------------------------------
// Job Status Poller - Per-job fetch cycles, stuck detection, completion
// -----------------------------------------------------------------------

package status

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// PollPolicy holds the timing thresholds for polling and stuck-job
// inference. These encode a business policy, not a protocol guarantee;
// tests shrink them to milliseconds.
type PollPolicy struct {
	// FetchInterval is the recurring fetch cycle cadence.
	FetchInterval time.Duration
	// SilentChannel forces completion when the raw report has not changed
	// at all for this long - the worker likely exited without a final
	// callback.
	SilentChannel time.Duration
	// StuckCheckAt arms the first stuck-detection timer after job start.
	StuckCheckAt time.Duration
	// StuckThreshold is the message age that counts as stuck at tier one.
	StuckThreshold time.Duration
	// EscalationCheckAt arms the second stuck-detection timer.
	EscalationCheckAt time.Duration
	// EscalationThreshold is the message age that counts as stuck at tier two.
	EscalationThreshold time.Duration
	// HardCeiling is the absolute deadline after which completion is
	// forced unconditionally, so the UI never waits indefinitely.
	HardCeiling time.Duration
}

// DefaultPollPolicy returns the production thresholds.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		FetchInterval:       2 * time.Second,
		SilentChannel:       10 * time.Second,
		StuckCheckAt:        15 * time.Second,
		StuckThreshold:      15 * time.Second,
		EscalationCheckAt:   30 * time.Second,
		EscalationThreshold: 20 * time.Second,
		HardCeiling:         60 * time.Second,
	}
}

// PolicyFromConfig builds a PollPolicy from configuration, falling back
// to the production defaults for missing or malformed values.
func PolicyFromConfig(cfg *common.PollingConfig) PollPolicy {
	def := DefaultPollPolicy()
	if cfg == nil {
		return def
	}
	return PollPolicy{
		FetchInterval:       common.ParseDurationOr(cfg.FetchInterval, def.FetchInterval),
		SilentChannel:       common.ParseDurationOr(cfg.SilentChannel, def.SilentChannel),
		StuckCheckAt:        common.ParseDurationOr(cfg.StuckCheckAt, def.StuckCheckAt),
		StuckThreshold:      common.ParseDurationOr(cfg.StuckThreshold, def.StuckThreshold),
		EscalationCheckAt:   common.ParseDurationOr(cfg.EscalationCheckAt, def.EscalationCheckAt),
		EscalationThreshold: common.ParseDurationOr(cfg.EscalationThreshold, def.EscalationThreshold),
		HardCeiling:         common.ParseDurationOr(cfg.HardCeiling, def.HardCeiling),
	}
}

// completionKeywords in a status message mean the worker finished even if
// the backend's status field is stale.
var completionKeywords = []string{
	"completed",
	"finished",
	"done",
	"all forms processed",
	"processing complete",
}

// Poller owns per-job polling state. Each started job runs one goroutine
// that serializes fetch cycles, timer firings, and callback delivery -
// the Go rendering of the original's single cooperative event loop.
// Independent Pollers can be instantiated in tests; there is no global
// registry.
type Poller struct {
	client interfaces.AutomationClient
	policy PollPolicy
	logger arbor.ILogger

	mu     sync.Mutex
	active map[string]*pollState
}

// pollState is the bookkeeping for one polled job. Fields below ctx are
// touched only by the job's run goroutine.
type pollState struct {
	jobID     string
	kind      models.JobKind
	callbacks interfaces.PollCallbacks
	startedAt time.Time
	logger    arbor.ILogger
	ctx       context.Context
	cancel    context.CancelFunc

	lastMessage          string
	lastMessageChangedAt time.Time
	lastReport           *models.RawStatusReport
	lastReportChangedAt  time.Time
	facts                models.ProgressFacts
	status               models.JobStatus
	forcedComplete       bool
	timers               []*time.Timer
}

// NewPoller creates a poller against the given automation client.
func NewPoller(client interfaces.AutomationClient, policy PollPolicy, logger arbor.ILogger) *Poller {
	return &Poller{
		client: client,
		policy: policy,
		logger: logger,
		active: make(map[string]*pollState),
	}
}

// Start begins polling jobID. A duplicate start for an already-active job
// is a synchronous no-op: a second poll loop would double-fire timers and
// double-invoke completion callbacks.
func (p *Poller) Start(jobID string, kind models.JobKind, callbacks interfaces.PollCallbacks) {
	p.mu.Lock()
	if _, exists := p.active[jobID]; exists {
		p.mu.Unlock()
		p.logger.Info().
			Str("job_id", jobID).
			Msg("Polling already active for job - ignoring duplicate start")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	st := &pollState{
		jobID:                jobID,
		kind:                 kind,
		callbacks:            callbacks,
		startedAt:            now,
		logger:               p.logger.WithCorrelationId(jobID),
		ctx:                  ctx,
		cancel:               cancel,
		lastMessageChangedAt: now,
		lastReportChangedAt:  now,
		status:               models.JobStatusRunning,
	}
	p.active[jobID] = st
	p.mu.Unlock()

	p.logger.Info().
		Str("job_id", jobID).
		Str("kind", string(kind)).
		Msg("Status polling started")

	common.SafeGo(p.logger, "poll:"+jobID, func() {
		p.run(st)
	})
}

// Stop cancels polling for jobID and removes its state. Idempotent. The
// job's context is cancelled before the registry entry is gone, so a
// fetch already in flight has its eventual result discarded.
func (p *Poller) Stop(jobID string) {
	p.mu.Lock()
	st, exists := p.active[jobID]
	if exists {
		delete(p.active, jobID)
	}
	p.mu.Unlock()

	if !exists {
		p.logger.Debug().Str("job_id", jobID).Msg("Stop requested for job with no active poll")
		return
	}

	st.cancel()
	p.logger.Info().Str("job_id", jobID).Msg("Status polling stopped")
}

// StopAll stops every active poll. Used at shutdown.
func (p *Poller) StopAll() {
	p.mu.Lock()
	states := make([]*pollState, 0, len(p.active))
	for id, st := range p.active {
		states = append(states, st)
		delete(p.active, id)
	}
	p.mu.Unlock()

	for _, st := range states {
		st.cancel()
	}

	if len(states) > 0 {
		p.logger.Info().Int("count", len(states)).Msg("All status polling stopped")
	}
}

// ActiveJobs returns the ids of jobs currently being polled.
func (p *Poller) ActiveJobs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.active))
	for id := range p.active {
		ids = append(ids, id)
	}
	return ids
}

// run is the per-job event loop. All callbacks for the job are invoked
// from this goroutine, so fetch cycles and timer firings never race each
// other. Returns when the job completes, errors, or is stopped.
func (p *Poller) run(st *pollState) {
	defer func() {
		for _, t := range st.timers {
			t.Stop()
		}
	}()

	ticker := time.NewTicker(p.policy.FetchInterval)
	defer ticker.Stop()

	tierOne := time.NewTimer(p.policy.StuckCheckAt)
	tierTwo := time.NewTimer(p.policy.EscalationCheckAt)
	st.timers = append(st.timers, tierOne, tierTwo)

	// Armed at tier two only if the job still looks alive then.
	var ceilingC <-chan time.Time

	for {
		select {
		case <-st.ctx.Done():
			return

		case <-ticker.C:
			if p.fetchCycle(st) {
				return
			}

		case <-tierOne.C:
			if st.forcedComplete {
				return
			}
			if since := time.Since(st.lastMessageChangedAt); since > p.policy.StuckThreshold {
				st.logger.Warn().
					Str("job_id", st.jobID).
					Dur("message_age", since).
					Msg("No progress since job start - forcing completion")
				p.complete(st, models.JobStatusCompleted, "Processing appears stuck - assuming the job finished")
				return
			}

		case <-tierTwo.C:
			if st.forcedComplete {
				return
			}
			if since := time.Since(st.lastMessageChangedAt); since > p.policy.EscalationThreshold {
				st.logger.Warn().
					Str("job_id", st.jobID).
					Dur("message_age", since).
					Msg("Progress stalled - forcing completion")
				p.complete(st, models.JobStatusCompleted, "Processing appears stuck - assuming the job finished")
				return
			}
			// Still progressing - arm the unconditional ceiling so the UI
			// never waits past the hard deadline.
			ceiling := time.NewTimer(p.policy.HardCeiling - p.policy.EscalationCheckAt)
			st.timers = append(st.timers, ceiling)
			ceilingC = ceiling.C

		case <-ceilingC:
			if st.forcedComplete {
				return
			}
			st.logger.Warn().
				Str("job_id", st.jobID).
				Dur("ceiling", p.policy.HardCeiling).
				Msg("Maximum polling window reached - forcing completion")
			p.complete(st, models.JobStatusCompleted, "Maximum processing time reached - job assumed complete")
			return
		}
	}
}

// fetchCycle performs one fetch of the raw status report, delivers an
// update, and applies the per-cycle completion heuristics. Returns true
// when the poll is terminal.
func (p *Poller) fetchCycle(st *pollState) bool {
	if st.forcedComplete {
		return true
	}

	report, err := p.fetch(st)

	// Stopped while the fetch was in flight: the result no longer has an
	// owner, discard it. This is the subsystem's cancellation mechanism.
	if st.ctx.Err() != nil {
		return true
	}

	if err != nil {
		st.logger.Warn().
			Err(err).
			Str("job_id", st.jobID).
			Msg("Status fetch failed - stopping poll")

		// Transport failure bypasses the unifier: synthesize a terminal
		// record so the caller still receives a well-formed status.
		now := time.Now()
		final := models.UnifiedStatus{
			JobID:     st.jobID,
			Kind:      st.kind,
			Status:    models.JobStatusError,
			Message:   err.Error(),
			Timestamp: now,
			StartTime: &st.startedAt,
			EndTime:   &now,
		}
		st.forcedComplete = true
		p.remove(st)
		common.SafeCall(p.logger, "onError:"+st.jobID, func() {
			if st.callbacks.OnError != nil {
				st.callbacks.OnError(final, err)
			}
		})
		return true
	}

	now := time.Now()
	st.facts.Merge(Interpret(report.Message))

	if !reflect.DeepEqual(report, st.lastReport) {
		st.lastReportChangedAt = now
	}
	st.lastReport = report

	// The server's status field is often stale; a changed message is the
	// only trusted progress signal.
	if report.Message != st.lastMessage {
		st.lastMessage = report.Message
		st.lastMessageChangedAt = now
	}

	unified := Unify(st.jobID, st.kind, report, st.facts)
	unified.StartTime = &st.startedAt
	st.status = st.status.Advance(unified.Status)
	unified.Status = st.status

	common.SafeCall(p.logger, "onUpdate:"+st.jobID, func() {
		if st.callbacks.OnUpdate != nil {
			st.callbacks.OnUpdate(unified)
		}
	})

	// Business-level error is terminal: surfaced via the update above,
	// then auto-completed. It never reaches OnError.
	if report.Status == models.JobStatusError {
		p.complete(st, models.JobStatusError, firstNonEmpty(report.Error, report.Message, "Automation job failed"))
		return true
	}

	switch {
	case containsCompletionKeyword(report.Message):
		p.complete(st, models.JobStatusCompleted, report.Message)
		return true

	case report.Status == models.JobStatusCompleted:
		p.complete(st, models.JobStatusCompleted, firstNonEmpty(report.Message, "Processing complete"))
		return true

	case report.Status == models.JobStatusIdle && report.Error == "" && !containsErrorText(report.Message):
		// Risk: idle also describes a job that never started. Preserve
		// the completion behavior but make premature cases visible.
		age := time.Since(st.startedAt)
		if age < 2*p.policy.FetchInterval {
			st.logger.Warn().
				Str("job_id", st.jobID).
				Dur("job_age", age).
				Msg("Idle status on an early fetch cycle - job may never have started")
		}
		p.complete(st, models.JobStatusCompleted, firstNonEmpty(report.Message, "Processing complete"))
		return true

	case time.Since(st.lastReportChangedAt) > p.policy.SilentChannel:
		st.logger.Warn().
			Str("job_id", st.jobID).
			Dur("silent_for", time.Since(st.lastReportChangedAt)).
			Msg("Raw status unchanged past silent-channel threshold - worker likely exited")
		p.complete(st, models.JobStatusCompleted, "Processing complete (no further updates from worker)")
		return true
	}

	return false
}

// fetch reads the raw status report for the job's kind.
func (p *Poller) fetch(st *pollState) (*models.RawStatusReport, error) {
	if st.kind == models.JobKindBatch {
		return p.client.FetchBatchStatus(st.ctx, st.jobID)
	}
	return p.client.FetchSingleStatus(st.ctx)
}

// complete finalizes the job exactly once: marks the state terminal,
// builds the final record from the last known report and facts, invokes
// OnComplete, then tears the state down. Every timer and cycle checks
// forcedComplete first, so completions never race each other.
func (p *Poller) complete(st *pollState, final models.JobStatus, message string) {
	if st.forcedComplete {
		return
	}
	st.forcedComplete = true

	unified := Unify(st.jobID, st.kind, st.lastReport, st.facts)
	unified.Status = st.status.Advance(final)
	if message != "" {
		unified.Message = SanitizeMessage(message)
	}
	now := time.Now()
	unified.Timestamp = now
	unified.StartTime = &st.startedAt
	unified.EndTime = &now

	st.logger.Info().
		Str("job_id", st.jobID).
		Str("status", string(unified.Status)).
		Dur("duration", now.Sub(st.startedAt)).
		Msg("Job polling complete")

	common.SafeCall(p.logger, "onComplete:"+st.jobID, func() {
		if st.callbacks.OnComplete != nil {
			st.callbacks.OnComplete(unified)
		}
	})

	p.remove(st)
}

// remove deletes the registry entry and cancels the job context. Safe to
// call for an already-removed state.
func (p *Poller) remove(st *pollState) {
	p.mu.Lock()
	if current, ok := p.active[st.jobID]; ok && current == st {
		delete(p.active, st.jobID)
	}
	p.mu.Unlock()
	st.cancel()
}

func containsCompletionKeyword(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range completionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func containsErrorText(message string) bool {
	return strings.Contains(strings.ToLower(message), "error")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
