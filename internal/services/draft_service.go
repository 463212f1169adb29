package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/charlesng35/yaruyo/internal/models"
	apperrors "github.com/charlesng35/yaruyo/pkg/errors"
)

const maxDraftTextLen = 200

// Draft resolution statuses.
const (
	DraftSent             = "sent"
	DraftCancelled        = "cancelled"
	DraftAlreadySent      = "already_sent"
	DraftAlreadyCancelled = "already_cancelled"
	DraftNotFound         = "not_found"
)

// ErrDraftTextEmpty is returned when an inbound message has no usable text.
var ErrDraftTextEmpty = apperrors.InvalidArgument("Draft text is empty")

// DraftResult reports how a confirm or cancel resolved.
type DraftResult struct {
	Status    string
	Broadcast []Outcome
}

// DraftOption customises DraftService behaviour.
type DraftOption func(*DraftService)

// WithDraftClock overrides the clock used for sent and cancelled timestamps.
func WithDraftClock(clock func() time.Time) DraftOption {
	return func(s *DraftService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// DraftService holds chat messages until their author confirms the family broadcast.
type DraftService struct {
	db       *gorm.DB
	dispatch *DispatchService
	now      func() time.Time
}

// NewDraftService constructs a DraftService.
func NewDraftService(db *gorm.DB, dispatch *DispatchService, opts ...DraftOption) (*DraftService, error) {
	if db == nil {
		return nil, errors.New("draft service: db is required")
	}
	if dispatch == nil {
		return nil, errors.New("draft service: dispatch service is required")
	}
	svc := &DraftService{db: db, dispatch: dispatch, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// NormaliseDraftText trims text and shortens it to the draft limit.
func NormaliseDraftText(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= maxDraftTextLen {
		return text
	}
	return truncateRunes(text, maxDraftTextLen-1, "…")
}

// CreateFromMessage stores a pending draft for the sender's family.
func (s *DraftService) CreateFromMessage(ctx context.Context, fromUID, text string) (*models.MessageDraft, error) {
	ctx = ensureContext(ctx)

	text = NormaliseDraftText(text)
	if text == "" {
		return nil, ErrDraftTextEmpty
	}

	db := s.db.WithContext(ctx)
	user, err := loadUser(db, fromUID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrNotInFamily
	}
	if err != nil {
		return nil, fmt.Errorf("draft service: load user: %w", err)
	}
	if user.FamilyID == nil {
		return nil, ErrNotInFamily
	}

	draft := &models.MessageDraft{
		FamilyID:   *user.FamilyID,
		FromUserID: fromUID,
		Text:       text,
	}
	if err := db.Create(draft).Error; err != nil {
		return nil, fmt.Errorf("draft service: create draft: %w", err)
	}
	return draft, nil
}

// Confirm marks the draft sent and broadcasts it to the other active members.
// Only the first confirm broadcasts; later calls report the terminal state.
func (s *DraftService) Confirm(ctx context.Context, draftID, fromUID string) (*DraftResult, error) {
	ctx = ensureContext(ctx)

	status, draft, err := s.resolve(ctx, draftID, fromUID, "sent_at", DraftSent)
	if err != nil {
		return nil, err
	}
	result := &DraftResult{Status: status}
	if status != DraftSent {
		return result, nil
	}

	db := s.db.WithContext(ctx)
	senderName := fromUID
	if sender, err := loadUser(db, fromUID); err == nil {
		senderName = sender.DisplayName()
	}

	members, err := activeMembers(db, draft.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("draft service: load members: %w", err)
	}
	recipients := make([]string, 0, len(members))
	for _, m := range members {
		if m.ID != fromUID {
			recipients = append(recipients, m.ID)
		}
	}

	result.Broadcast = s.dispatch.Broadcast(context.WithoutCancel(ctx), recipients, familyBroadcastMessage(senderName, draft.Text))
	return result, nil
}

// Cancel marks the draft cancelled. Nothing is sent.
func (s *DraftService) Cancel(ctx context.Context, draftID, fromUID string) (*DraftResult, error) {
	ctx = ensureContext(ctx)

	status, _, err := s.resolve(ctx, draftID, fromUID, "cancelled_at", DraftCancelled)
	if err != nil {
		return nil, err
	}
	return &DraftResult{Status: status}, nil
}

// resolve sets column on a pending draft owned by fromUID. Drafts that are
// missing or owned by someone else resolve to not_found.
func (s *DraftService) resolve(ctx context.Context, draftID, fromUID, column, success string) (string, *models.MessageDraft, error) {
	var (
		status string
		draft  models.MessageDraft
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Take(&draft, "id = ?", draftID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			status = DraftNotFound
			return nil
		}
		if err != nil {
			return err
		}

		switch {
		case draft.FromUserID != fromUID:
			status = DraftNotFound
			return nil
		case draft.SentAt != nil:
			status = DraftAlreadySent
			return nil
		case draft.CancelledAt != nil:
			status = DraftAlreadyCancelled
			return nil
		}

		now := s.now().UTC()
		res := tx.Model(&models.MessageDraft{}).
			Where("id = ? AND sent_at IS NULL AND cancelled_at IS NULL", draft.ID).
			Update(column, &now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			status = DraftNotFound
			return nil
		}
		status = success
		return nil
	})
	if err != nil {
		return "", nil, fmt.Errorf("draft service: resolve draft: %w", err)
	}
	return status, &draft, nil
}
