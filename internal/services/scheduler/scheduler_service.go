package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/services/jobs"
)

// Service runs the background sweep: it logs how many polls are active
// and prunes finished entries from the jobs service's recent-status map.
type Service struct {
	jobService    *jobs.Service
	cron          *cron.Cron
	logger        arbor.ILogger
	historyMaxAge time.Duration
	running       bool
}

// NewService creates a new scheduler service.
func NewService(jobService *jobs.Service, config *common.SchedulerConfig, logger arbor.ILogger) *Service {
	return &Service{
		jobService:    jobService,
		cron:          cron.New(),
		logger:        logger,
		historyMaxAge: common.ParseDurationOr(config.HistoryMaxAge, time.Hour),
	}
}

// Start begins the sweep with the given cron expression.
func (s *Service) Start(cronExpr string) error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if cronExpr == "" {
		cronExpr = "*/1 * * * *" // Default: every 1 minute
	}

	if _, err := s.cron.AddFunc(cronExpr, s.sweep); err != nil {
		return fmt.Errorf("failed to add sweep job: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("cron_expr", cronExpr).
		Dur("history_max_age", s.historyMaxAge).
		Msg("Scheduler sweep started")

	return nil
}

// Stop halts the sweep.
func (s *Service) Stop() {
	if !s.running {
		return
	}
	s.cron.Stop()
	s.running = false
	s.logger.Info().Msg("Scheduler sweep stopped")
}

// sweep is one sweep pass.
func (s *Service) sweep() {
	active := s.jobService.ActivePolls()
	pruned := s.jobService.PruneHistory(s.historyMaxAge)

	s.logger.Debug().
		Int("active_polls", len(active)).
		Int("pruned_records", pruned).
		Msg("Sweep pass complete")
}
