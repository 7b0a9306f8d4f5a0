// Package scheduler runs the recurring balance-sync job.
package scheduler

import (
	"context"

	"merchant-payout-platform/internal/core/ports"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler triggers balance-sync cycles on a cron schedule. Overlap
// between instances is prevented by the sync guard inside SyncAll, not
// here.
type Scheduler struct {
	cron       *cron.Cron
	balanceSvc ports.BalanceService
	schedule   string
	log        zerolog.Logger
}

// New creates a Scheduler. schedule is a standard 5-field cron expression.
func New(balanceSvc ports.BalanceService, schedule string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		balanceSvc: balanceSvc,
		schedule:   schedule,
		log:        log,
	}
}

// Start registers the sync job and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.log.Info().Str("schedule", s.schedule).Msg("balance sync cycle triggered")
		if err := s.balanceSvc.SyncAll(ctx); err != nil {
			s.log.Error().Err(err).Msg("balance sync cycle failed")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().Str("schedule", s.schedule).Msg("scheduler started")
	return nil
}

// Stop stops the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Info().Msg("scheduler stopped")
}
