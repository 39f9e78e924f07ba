package services

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler runs the nightly credit sweep and, when a sender is wired, the
// birthday greetings.
type Scheduler struct {
	cron      *cron.Cron
	logger    *logrus.Logger
	credits   *CreditService
	greetings *GreetingService
}

func NewScheduler(logger *logrus.Logger, credits *CreditService, greetings *GreetingService) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithLogger(cron.PrintfLogger(logger))),
		logger:    logger,
		credits:   credits,
		greetings: greetings,
	}
}

// Register adds the jobs. An empty schedule disables that job.
func (s *Scheduler) Register(sweepSchedule, greetingSchedule string) error {
	if sweepSchedule != "" {
		if _, err := s.cron.AddFunc(sweepSchedule, s.runSweep); err != nil {
			return fmt.Errorf("sweep schedule %q: %w", sweepSchedule, err)
		}
	}
	if greetingSchedule != "" && s.greetings != nil {
		if _, err := s.cron.AddFunc(greetingSchedule, s.runGreetings); err != nil {
			return fmt.Errorf("greeting schedule %q: %w", greetingSchedule, err)
		}
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.WithField("jobs", len(s.cron.Entries())).Info("Scheduler started")
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduler stopped before jobs finished")
	}
}

func (s *Scheduler) runSweep() {
	n, err := s.credits.SweepExpired(context.Background())
	if err != nil {
		s.logger.WithError(err).Error("Credit expiry sweep failed")
		return
	}
	s.logger.WithField("expired", n).Info("Credit expiry sweep completed")
}

func (s *Scheduler) runGreetings() {
	ctx, cancel := context.WithTimeout(context.Background(), greetingWindow)
	defer cancel()
	if _, err := s.greetings.SendDailyGreetings(ctx); err != nil {
		s.logger.WithError(err).Error("Birthday greetings failed")
	}
}
