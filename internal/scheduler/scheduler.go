// Package scheduler provides scheduling logic for LeadChat.
//
// It allows recurring operator jobs, such as pushing the daily analytics
// digest to the team channel, to be scheduled using cron expressions.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/folkode/leadchat/internal/analytics"
	"github.com/folkode/leadchat/internal/messaging"
)

// DefaultDigestSchedule pushes the analytics digest every morning at 08:00.
const DefaultDigestSchedule = "0 8 * * *"

// DefaultJobTimeout bounds one scheduled job run.
const DefaultJobTimeout = 30 * time.Second

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Standard 5-field cron parser (min, hour, dom, month, dow) with panic recovery
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// ScheduleAnalyticsDigest registers a recurring job that renders the
// analytics digest and pushes it to the operator channel.
func (s *Scheduler) ScheduleAnalyticsDigest(expr string, metrics *analytics.Aggregator, svc messaging.Service, to string) error {
	if expr == "" {
		expr = DefaultDigestSchedule
	}
	return s.AddJob(expr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultJobTimeout)
		defer cancel()

		digest := metrics.DigestText()
		if err := svc.SendMessage(ctx, to, digest); err != nil {
			slog.Error("Scheduler: failed to deliver analytics digest", "error", err, "to", to)
			return
		}
		slog.Info("Scheduler: analytics digest delivered", "to", to)
	})
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
