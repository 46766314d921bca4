package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/username/lotfolio/src/logger"
)

// MatchScheduler runs incremental matching over all accounts on a cron schedule.
type MatchScheduler struct {
	cron       *cron.Cron
	lotService LotService
	timeout    time.Duration
}

func NewMatchScheduler(lotService LotService, timeout time.Duration) *MatchScheduler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &MatchScheduler{
		cron:       cron.New(),
		lotService: lotService,
		timeout:    timeout,
	}
}

// Start registers the job under spec (standard 5-field cron or "@every 1h") and starts the scheduler.
func (m *MatchScheduler) Start(spec string) error {
	if _, err := m.cron.AddFunc(spec, m.runOnce); err != nil {
		return err
	}
	m.cron.Start()
	logger.L.Info("Match scheduler started", "schedule", spec)
	return nil
}

// Stop waits for a running job to finish.
func (m *MatchScheduler) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	logger.L.Info("Match scheduler stopped")
}

func (m *MatchScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	result, err := m.lotService.MatchAll(ctx, nil)
	if err != nil {
		logger.L.Error("Scheduled match run failed", "error", err)
		return
	}
	logger.L.Info("Scheduled match run finished", "runID", result.RunID, "created", result.Created)
}
