package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/yaruyo/internal/models"
	"github.com/charlesng35/yaruyo/internal/timeslot"
	"github.com/charlesng35/yaruyo/pkg/logger"
	"github.com/charlesng35/yaruyo/pkg/metrics"
)

const (
	reminderOptedOut    = "opted_out"
	reminderInvalidSlot = "invalid_slot"
)

// SweepStats summarises one reminder sweep.
type SweepStats struct {
	Window      timeslot.Window
	Scanned     int
	Sent        int
	Failed      int
	Duplicate   int
	OptedOut    int
	InvalidSlot int
}

// ReminderOption customises ReminderService behaviour.
type ReminderOption func(*ReminderService)

// WithReminderWindow sets the sweep buffer, slot grid and zone.
func WithReminderWindow(buffer, grid time.Duration, loc *time.Location) ReminderOption {
	return func(s *ReminderService) {
		if buffer >= 0 {
			s.buffer = buffer
		}
		if grid > 0 {
			s.grid = grid
		}
		if loc != nil {
			s.loc = loc
		}
	}
}

// ReminderService sends start reminders for plans about to begin.
type ReminderService struct {
	db       *gorm.DB
	dispatch *DispatchService
	buffer   time.Duration
	grid     time.Duration
	loc      *time.Location
	log      *zap.Logger
}

// NewReminderService constructs a ReminderService.
func NewReminderService(db *gorm.DB, dispatch *DispatchService, opts ...ReminderOption) (*ReminderService, error) {
	if db == nil {
		return nil, errors.New("reminder service: db is required")
	}
	if dispatch == nil {
		return nil, errors.New("reminder service: dispatch service is required")
	}

	loc, err := time.LoadLocation(timeslot.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("reminder service: load timezone: %w", err)
	}

	svc := &ReminderService{
		db:       db,
		dispatch: dispatch,
		buffer:   timeslot.DefaultBuffer,
		grid:     timeslot.DefaultGrid,
		loc:      loc,
		log:      logger.WithModule("reminders"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Sweep reminds the owners of declared plans whose start slot falls inside
// the window around now. Failures on one plan do not stop the sweep; storage
// errors are returned together once every plan was visited.
func (s *ReminderService) Sweep(ctx context.Context, now time.Time) (SweepStats, error) {
	ctx = ensureContext(ctx)
	window := timeslot.WindowAround(now, s.buffer, s.grid, s.loc)
	stats := SweepStats{Window: window}

	var plans []models.Plan
	err := s.db.WithContext(ctx).
		Where("status = ? AND start_slot >= ? AND start_slot <= ? AND start_reminder_sent_at IS NULL",
			models.PlanStatusDeclared, window.From, window.To).
		Order("start_slot ASC").
		Find(&plans).Error
	if err != nil {
		metrics.ReminderSweeps.WithLabelValues("error").Inc()
		return stats, fmt.Errorf("reminder service: query plans: %w", err)
	}
	stats.Scanned = len(plans)

	owners, err := s.loadOwners(ctx, plans)
	if err != nil {
		metrics.ReminderSweeps.WithLabelValues("error").Inc()
		return stats, err
	}

	var errs error
	for i := range plans {
		plan := &plans[i]
		outcome, err := s.remind(ctx, plan, owners[plan.UserID], now)
		errs = multierr.Append(errs, err)
		metrics.ReminderPlans.WithLabelValues(outcome).Inc()

		switch outcome {
		case OutcomeSent:
			stats.Sent++
		case OutcomeFailed:
			stats.Failed++
		case OutcomeDuplicate:
			stats.Duplicate++
		case reminderOptedOut:
			stats.OptedOut++
		case reminderInvalidSlot:
			stats.InvalidSlot++
		}
	}

	result := "success"
	if errs != nil {
		result = "error"
	}
	metrics.ReminderSweeps.WithLabelValues(result).Inc()

	s.log.Info("reminder sweep finished",
		zap.String("from", window.From),
		zap.String("to", window.To),
		zap.Int("scanned", stats.Scanned),
		zap.Int("sent", stats.Sent),
		zap.Int("failed", stats.Failed),
		zap.Int("duplicate", stats.Duplicate),
	)
	return stats, errs
}

func (s *ReminderService) remind(ctx context.Context, plan *models.Plan, owner *models.User, now time.Time) (string, error) {
	if plan.StartSlot == nil || !timeslot.IsKey(*plan.StartSlot) {
		return reminderInvalidSlot, nil
	}
	if owner == nil {
		return OutcomeFailed, fmt.Errorf("plan %s: %w", plan.ID, ErrUserNotFound)
	}
	if !owner.StartReminderEnabled {
		return reminderOptedOut, nil
	}

	claim := Claim{
		DedupeKey:   fmt.Sprintf("start_reminder:%s:%s", owner.ID, plan.ID),
		Type:        models.NotificationReminder,
		RecipientID: owner.ID,
		FamilyID:    plan.FamilyID,
	}
	outcome := s.dispatch.Dispatch(ctx, claim, startReminderMessage(plan.Subjects, *plan.StartSlot))
	if outcome.Status != OutcomeSent {
		if outcome.Err != nil && !outcome.Claimed {
			return outcome.Status, fmt.Errorf("plan %s: %w", plan.ID, outcome.Err)
		}
		return outcome.Status, nil
	}

	sentAt := now.UTC()
	err := s.db.WithContext(ctx).
		Model(&models.Plan{}).
		Where("id = ? AND start_reminder_sent_at IS NULL", plan.ID).
		Update("start_reminder_sent_at", &sentAt).Error
	if err != nil {
		return OutcomeSent, fmt.Errorf("plan %s: mark reminded: %w", plan.ID, err)
	}
	return OutcomeSent, nil
}

func (s *ReminderService) loadOwners(ctx context.Context, plans []models.Plan) (map[string]*models.User, error) {
	ids := make([]string, 0, len(plans))
	for _, p := range plans {
		ids = append(ids, p.UserID)
	}
	ids = normaliseIDs(ids)

	owners := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return owners, nil
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("reminder service: load owners: %w", err)
	}
	for i := range users {
		owners[users[i].ID] = &users[i]
	}
	return owners, nil
}
