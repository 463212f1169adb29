package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/charlesng35/yaruyo/internal/models"
	"github.com/charlesng35/yaruyo/internal/push"
	"github.com/charlesng35/yaruyo/pkg/logger"
	"github.com/charlesng35/yaruyo/pkg/metrics"
)

const defaultDispatchConcurrency = 4

// Dispatch outcome statuses.
const (
	OutcomeSent      = "sent"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
)

// Claim identifies one notification opportunity.
type Claim struct {
	DedupeKey   string
	Type        string
	RecipientID string
	FamilyID    string
	EventID     *string
}

// Delivery pairs a claim with the text to send once it is won.
type Delivery struct {
	Claim Claim
	Text  string
}

// Outcome is the per-recipient result of a dispatch.
type Outcome struct {
	RecipientID string
	DedupeKey   string
	Claimed     bool
	Status      string
	Err         error
}

// DispatchOption customises DispatchService behaviour.
type DispatchOption func(*DispatchService)

// WithDispatchClock overrides the clock used for sent_at timestamps.
func WithDispatchClock(clock func() time.Time) DispatchOption {
	return func(s *DispatchService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithDispatchConcurrency bounds the number of parallel sends per fan-out.
func WithDispatchConcurrency(n int) DispatchOption {
	return func(s *DispatchService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// DispatchService sends notifications at most once per dedupe key.
type DispatchService struct {
	db          *gorm.DB
	sender      push.Sender
	now         func() time.Time
	concurrency int
	log         *zap.Logger
}

// NewDispatchService constructs a DispatchService.
func NewDispatchService(db *gorm.DB, sender push.Sender, opts ...DispatchOption) (*DispatchService, error) {
	if db == nil {
		return nil, errors.New("dispatch service: db is required")
	}
	if sender == nil {
		return nil, errors.New("dispatch service: sender is required")
	}

	svc := &DispatchService{
		db:          db,
		sender:      sender,
		now:         time.Now,
		concurrency: defaultDispatchConcurrency,
		log:         logger.WithModule("dispatch"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// TryClaim records the claim if no log row exists for its dedupe key. It
// returns false when another caller already claimed the key.
func (s *DispatchService) TryClaim(ctx context.Context, claim Claim) (bool, error) {
	ctx = ensureContext(ctx)
	if claim.DedupeKey == "" {
		return false, errors.New("dispatch service: dedupe key is required")
	}

	id := models.NotificationLogID(claim.DedupeKey)
	claimed := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.NotificationLog{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		entry := &models.NotificationLog{
			ID:          id,
			DedupeKey:   claim.DedupeKey,
			Type:        claim.Type,
			RecipientID: claim.RecipientID,
			FamilyID:    claim.FamilyID,
			EventID:     claim.EventID,
			Status:      models.NotificationStatusSkipped,
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return false, nil
		}
		return false, fmt.Errorf("dispatch service: claim %s: %w", claim.DedupeKey, err)
	}
	return claimed, nil
}

// MarkSent flags a claimed log row as delivered. Failures are only logged.
func (s *DispatchService) MarkSent(ctx context.Context, dedupeKey string) {
	now := s.now().UTC()
	s.mark(ctx, dedupeKey, map[string]any{
		"status":  models.NotificationStatusSent,
		"sent_at": &now,
		"error":   "",
	})
}

// MarkFailed flags a claimed log row as failed with cause. Failures are only logged.
func (s *DispatchService) MarkFailed(ctx context.Context, dedupeKey string, cause error) {
	msg := ""
	if cause != nil {
		msg = truncateRunes(cause.Error(), 500, "")
	}
	s.mark(ctx, dedupeKey, map[string]any{
		"status": models.NotificationStatusFailed,
		"error":  msg,
	})
}

func (s *DispatchService) mark(ctx context.Context, dedupeKey string, updates map[string]any) {
	ctx = ensureContext(ctx)
	err := s.db.WithContext(ctx).
		Model(&models.NotificationLog{}).
		Where("id = ?", models.NotificationLogID(dedupeKey)).
		Updates(updates).Error
	if err != nil {
		s.log.Warn("failed to update notification log",
			zap.String("dedupe_key", dedupeKey),
			zap.Any("status", updates["status"]),
			zap.Error(err),
		)
	}
}

// Dispatch claims the key and, if won, sends text to the recipient.
func (s *DispatchService) Dispatch(ctx context.Context, claim Claim, text string) Outcome {
	ctx = ensureContext(ctx)
	outcome := Outcome{RecipientID: claim.RecipientID, DedupeKey: claim.DedupeKey}

	claimed, err := s.TryClaim(ctx, claim)
	if err != nil {
		outcome.Status = OutcomeFailed
		outcome.Err = err
		metrics.Dispatches.WithLabelValues(claim.Type, OutcomeFailed).Inc()
		return outcome
	}
	if !claimed {
		outcome.Status = OutcomeDuplicate
		metrics.Dispatches.WithLabelValues(claim.Type, OutcomeDuplicate).Inc()
		return outcome
	}
	outcome.Claimed = true

	if err := s.sender.Push(ctx, claim.RecipientID, text); err != nil {
		s.log.Warn("notification send failed",
			zap.String("type", claim.Type),
			zap.String("recipient", claim.RecipientID),
			zap.Error(err),
		)
		s.MarkFailed(ctx, claim.DedupeKey, err)
		outcome.Status = OutcomeFailed
		outcome.Err = err
		metrics.Dispatches.WithLabelValues(claim.Type, OutcomeFailed).Inc()
		return outcome
	}

	s.MarkSent(ctx, claim.DedupeKey)
	outcome.Status = OutcomeSent
	metrics.Dispatches.WithLabelValues(claim.Type, OutcomeSent).Inc()
	return outcome
}

// FanOut dispatches every delivery with bounded concurrency. One recipient's
// failure never stops the others. Outcomes keep the input order.
func (s *DispatchService) FanOut(ctx context.Context, deliveries []Delivery) []Outcome {
	ctx = ensureContext(ctx)
	outcomes := make([]Outcome, len(deliveries))
	if len(deliveries) == 0 {
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, d := range deliveries {
		i, d := i, d
		g.Go(func() error {
			outcomes[i] = s.Dispatch(ctx, d.Claim, d.Text)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// Broadcast sends text to every recipient without dedupe bookkeeping.
func (s *DispatchService) Broadcast(ctx context.Context, recipients []string, text string) []Outcome {
	ctx = ensureContext(ctx)
	recipients = normaliseIDs(recipients)
	outcomes := make([]Outcome, len(recipients))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, to := range recipients {
		i, to := i, to
		g.Go(func() error {
			outcome := Outcome{RecipientID: to, Claimed: true, Status: OutcomeSent}
			if err := s.sender.Push(ctx, to, text); err != nil {
				s.log.Warn("broadcast send failed", zap.String("recipient", to), zap.Error(err))
				outcome.Status = OutcomeFailed
				outcome.Err = err
			}
			outcomes[i] = outcome
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// CountSent returns how many outcomes ended in a successful send.
func CountSent(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Status == OutcomeSent {
			n++
		}
	}
	return n
}
