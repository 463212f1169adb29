// Package scheduler runs the periodic background jobs: the start reminder
// sweep and the resumption of interrupted family closes.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/yaruyo/internal/services"
	"github.com/charlesng35/yaruyo/pkg/logger"
)

const (
	defaultReminderSpec = "0,30 * * * *"
	defaultCloseSpec    = "@hourly"
)

// ReminderSweeper sends start reminders for plans near their start slot.
type ReminderSweeper interface {
	Sweep(ctx context.Context, now time.Time) (services.SweepStats, error)
}

// CloseResumer finishes family closes left half done.
type CloseResumer interface {
	ResumePendingCloses(ctx context.Context) (int, error)
}

// Scheduler owns the cron instance and the jobs registered on it.
type Scheduler struct {
	reminders ReminderSweeper
	closes    CloseResumer
	cron      *cron.Cron
	loc       *time.Location
	now       func() time.Time
	log       *zap.Logger

	reminderSchedule string
	closeSchedule    string
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock handed to the reminder sweep.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone cron specs are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithReminderSchedule overrides the cron spec of the reminder sweep.
func WithReminderSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.reminderSchedule = spec
		}
	}
}

// WithCloseSchedule overrides the cron spec of the close resumption job.
func WithCloseSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.closeSchedule = spec
		}
	}
}

// New constructs a Scheduler. A nil dependency disables its job.
func New(reminders ReminderSweeper, closes CloseResumer, opts ...Option) *Scheduler {
	s := &Scheduler{
		reminders:        reminders,
		closes:           closes,
		loc:              time.UTC,
		now:              time.Now,
		log:              logger.WithModule("scheduler"),
		reminderSchedule: defaultReminderSpec,
		closeSchedule:    defaultCloseSpec,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(cron.WithLocation(s.loc), cron.WithLogger(cron.DiscardLogger))
	}
	return s
}

// Start registers the jobs and launches the cron loop.
func (s *Scheduler) Start() error {
	if s.reminders == nil && s.closes == nil {
		return errors.New("scheduler: no jobs configured")
	}

	if s.reminders != nil {
		if _, err := s.cron.AddFunc(s.reminderSchedule, func() {
			if err := s.sweepReminders(context.Background()); err != nil {
				s.log.Warn("reminder sweep failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if s.closes != nil {
		if _, err := s.cron.AddFunc(s.closeSchedule, func() {
			if err := s.resumeCloses(context.Background()); err != nil {
				s.log.Warn("close resumption failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.log.Info("scheduler started",
		zap.String("reminder_schedule", s.reminderSchedule),
		zap.String("close_schedule", s.closeSchedule),
		zap.String("timezone", s.loc.String()),
	)
	return nil
}

// Stop halts the cron loop. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return s.cron.Stop()
}

// RunOnce executes every configured job synchronously.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if s.reminders != nil {
		errs = multierr.Append(errs, s.sweepReminders(ctx))
	}
	if s.closes != nil {
		errs = multierr.Append(errs, s.resumeCloses(ctx))
	}
	return errs
}

func (s *Scheduler) sweepReminders(ctx context.Context) error {
	stats, err := s.reminders.Sweep(ctx, s.now())
	s.log.Info("reminder sweep finished",
		zap.String("from", stats.Window.From),
		zap.String("to", stats.Window.To),
		zap.Int("scanned", stats.Scanned),
		zap.Int("sent", stats.Sent),
		zap.Int("failed", stats.Failed),
		zap.Int("duplicate", stats.Duplicate),
		zap.Int("opted_out", stats.OptedOut),
	)
	return err
}

func (s *Scheduler) resumeCloses(ctx context.Context) error {
	resumed, err := s.closes.ResumePendingCloses(ctx)
	if resumed > 0 {
		s.log.Info("resumed family closes", zap.Int("count", resumed))
	}
	return err
}
