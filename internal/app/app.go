// -----------------------------------------------------------------------
// App - Dependency wiring for the status orchestration service
// -----------------------------------------------------------------------

package app

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/automation"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/handlers"
	"github.com/ternarybob/vigil/internal/services/jobs"
	"github.com/ternarybob/vigil/internal/services/scheduler"
	"github.com/ternarybob/vigil/internal/status"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	AutomationClient *automation.Client
	Poller           *status.Poller
	JobService       *jobs.Service
	SchedulerService *scheduler.Service

	JobHandler    *handlers.JobHandler
	StatusHandler *handlers.StatusHandler
	WSHandler     *handlers.WebSocketHandler
}

// New wires the application together from configuration.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: config,
		Logger: logger,
	}

	a.AutomationClient = automation.NewClient(
		config.Automation.BaseURL,
		automation.WithLogger(logger),
		automation.WithTimeout(common.ParseDurationOr(config.Automation.Timeout, automation.DefaultTimeout)),
		automation.WithRateLimit(config.Automation.RateLimit),
	)

	a.Poller = status.NewPoller(a.AutomationClient, status.PolicyFromConfig(&config.Polling), logger)

	a.WSHandler = handlers.NewWebSocketHandler(logger, &config.WebSocket)

	a.JobService = jobs.NewService(a.AutomationClient, a.Poller, a.WSHandler, logger)

	a.JobHandler = handlers.NewJobHandler(a.JobService, logger)
	a.StatusHandler = handlers.NewStatusHandler(a.JobService, logger)

	a.SchedulerService = scheduler.NewService(a.JobService, &config.Scheduler, logger)
	if config.Scheduler.Enabled {
		if err := a.SchedulerService.Start(config.Scheduler.SweepSchedule); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("automation_url", config.Automation.BaseURL).
		Msg("Application initialized")

	return a, nil
}

// Shutdown stops polling and background services. The context bounds how
// long we wait for in-flight work to drain.
func (a *App) Shutdown(ctx context.Context) {
	a.Logger.Info().Msg("Shutting down application...")

	a.JobService.StopAllPolling()
	a.SchedulerService.Stop()

	select {
	case <-ctx.Done():
	case <-time.After(100 * time.Millisecond):
	}

	a.Logger.Info().Msg("Application stopped")
}
