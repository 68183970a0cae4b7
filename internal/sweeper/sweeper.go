// Package sweeper runs the overdue and default sweeps on a cron schedule.
package sweeper

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/strata-service/internal/models"
	"github.com/Dan9191/strata-service/internal/service"
)

// Runner performs one full sweep.
type Runner interface {
	SweepAll(ctx context.Context, asOf models.Date) (*service.SweepReport, error)
}

type Sweeper struct {
	cron   *cron.Cron
	runner Runner
	log    *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New schedules SweepAll with a standard five-field cron spec.
// Overlapping runs are skipped and a panicking run is recovered.
func New(runner Runner, log *logrus.Logger, schedule string) (*Sweeper, error) {
	logger := cron.PrintfLogger(log)
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sweeper{cron: c, runner: runner, log: log, ctx: ctx, cancel: cancel}
	if _, err := c.AddFunc(schedule, func() { s.RunOnce(s.ctx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.log.Info("Sweeper started")
	s.cron.Start()
}

// Stop cancels a running sweep and waits for it to return or ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("Sweeper did not stop in time")
	}
	s.log.Info("Sweeper stopped")
}

// RunOnce sweeps as of today. Errors are logged, the next tick retries.
func (s *Sweeper) RunOnce(ctx context.Context) (*service.SweepReport, error) {
	report, err := s.runner.SweepAll(ctx, models.Date{})
	if err != nil {
		s.log.Errorf("Sweep failed: %v", err)
		return nil, err
	}
	return report, nil
}
