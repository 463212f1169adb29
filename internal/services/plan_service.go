package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/yaruyo/internal/models"
	"github.com/charlesng35/yaruyo/internal/timeslot"
	apperrors "github.com/charlesng35/yaruyo/pkg/errors"
)

const (
	maxSubjects      = 10
	maxSubjectLen    = 32
	maxPlanMemoLen   = 200
	maxRecordMemoLen = 200
)

// DeclareInput describes a new plan.
type DeclareInput struct {
	Subjects    []string
	StartAt     *time.Time
	AmountType  *string
	AmountValue *float64
	ContentMemo *string
}

// DeclareResult is returned by Declare.
type DeclareResult struct {
	Plan     *models.Plan `json:"plan"`
	Notified int          `json:"notified"`
}

// RecordResult is returned by Record.
type RecordResult struct {
	Record   *models.Record `json:"record"`
	Existing bool           `json:"existing"`
	Notified int            `json:"notified"`
}

// PlanOption customises PlanService behaviour.
type PlanOption func(*PlanService)

// WithPlanClock overrides the clock used for recorded and cancelled timestamps.
func WithPlanClock(clock func() time.Time) PlanOption {
	return func(s *PlanService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSlotGrid sets the grid and zone start times are quantized to.
func WithSlotGrid(grid time.Duration, loc *time.Location) PlanOption {
	return func(s *PlanService) {
		if grid > 0 {
			s.grid = grid
		}
		if loc != nil {
			s.loc = loc
		}
	}
}

// PlanService declares, records and cancels study plans.
type PlanService struct {
	db       *gorm.DB
	dispatch *DispatchService
	now      func() time.Time
	grid     time.Duration
	loc      *time.Location
}

// NewPlanService constructs a PlanService.
func NewPlanService(db *gorm.DB, dispatch *DispatchService, opts ...PlanOption) (*PlanService, error) {
	if db == nil {
		return nil, errors.New("plan service: db is required")
	}
	if dispatch == nil {
		return nil, errors.New("plan service: dispatch service is required")
	}

	loc, err := time.LoadLocation(timeslot.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("plan service: load timezone: %w", err)
	}

	svc := &PlanService{
		db:       db,
		dispatch: dispatch,
		now:      time.Now,
		grid:     timeslot.DefaultGrid,
		loc:      loc,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Declare stores a plan and notifies the family.
func (s *PlanService) Declare(ctx context.Context, uid string, input DeclareInput) (*DeclareResult, error) {
	ctx = ensureContext(ctx)

	subjects, err := normaliseSubjects(input.Subjects)
	if err != nil {
		return nil, err
	}

	plan := &models.Plan{
		UserID:   uid,
		Subjects: datatypes.JSONSlice[string](subjects),
		Status:   models.PlanStatusDeclared,
	}

	if input.AmountType != nil {
		amountType := strings.TrimSpace(*input.AmountType)
		if amountType != "" {
			if !models.IsValidAmountType(amountType) {
				return nil, apperrors.InvalidArgument("amount type must be time or page")
			}
			plan.AmountType = &amountType
		}
	}
	if input.AmountValue != nil {
		v := *input.AmountValue
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, apperrors.InvalidArgument("amount value must be a non-negative number")
		}
		plan.AmountValue = &v
	}
	if memo := optionalText(input.ContentMemo); memo != nil {
		if utf8.RuneCountInString(*memo) > maxPlanMemoLen {
			return nil, apperrors.InvalidArgument(fmt.Sprintf("memo must be at most %d characters", maxPlanMemoLen))
		}
		plan.ContentMemo = memo
	}
	if input.StartAt != nil {
		slot := timeslot.Quantize(*input.StartAt, s.grid, s.loc)
		startAt := slot.At.UTC()
		key := slot.Key
		plan.StartAt = &startAt
		plan.StartSlot = &key
	}

	var actor *models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := loadUser(tx, uid)
		if err != nil {
			return err
		}
		if user.FamilyID == nil {
			return ErrNotInFamily
		}
		family, err := loadFamily(tx, *user.FamilyID)
		if err != nil {
			return err
		}
		if family.IsClosed() {
			return ErrFamilyClosed
		}
		actor = user
		plan.FamilyID = family.ID

		if err := tx.Create(plan).Error; err != nil {
			return err
		}
		return createActivityEvent(tx, models.ActivityPlanDeclared, plan, map[string]any{
			"subjects":   subjects,
			"start_slot": plan.StartSlot,
		})
	})
	if err != nil {
		return nil, wrapInternal("plan service: declare", err)
	}

	eventID := models.ActivityEventID(models.ActivityPlanDeclared, plan.ID)
	text := planDeclaredMessage(actor.DisplayName(), subjects, plan.StartSlot)
	outcomes, err := s.notifyFamily(ctx, plan.FamilyID, models.NotificationActivityPlan, eventID, text,
		func(u *models.User) bool { return u.NotifyOnPlan })
	if err != nil {
		return nil, err
	}

	return &DeclareResult{Plan: plan, Notified: CountSent(outcomes)}, nil
}

// Record completes a declared plan. Recording the same plan again returns the
// stored record without notifying anyone.
func (s *PlanService) Record(ctx context.Context, uid, planID, result string, memo *string) (*RecordResult, error) {
	ctx = ensureContext(ctx)

	if !models.IsValidResult(result) {
		return nil, apperrors.InvalidArgument("result must be light, as_planned or extra")
	}
	memo = optionalText(memo)
	if memo != nil && utf8.RuneCountInString(*memo) > maxRecordMemoLen {
		return nil, apperrors.InvalidArgument(fmt.Sprintf("memo must be at most %d characters", maxRecordMemoLen))
	}

	var (
		plan     *models.Plan
		actor    *models.User
		record   *models.Record
		existing bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		plan, err = loadPlan(tx, planID)
		if err != nil {
			return err
		}
		actor, err = loadUser(tx, uid)
		if err != nil {
			return err
		}
		if plan.UserID != uid {
			return ErrPlanNotOwned
		}
		if !actor.InFamily(plan.FamilyID) {
			return ErrFamilyMismatch
		}

		var stored models.Record
		err = tx.Take(&stored, "id = ?", plan.ID).Error
		if err == nil {
			record = &stored
			existing = true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if plan.Status != models.PlanStatusDeclared {
			return ErrPlanNotDeclared
		}

		now := s.now().UTC()
		record = &models.Record{
			ID:       plan.ID,
			FamilyID: plan.FamilyID,
			UserID:   uid,
			PlanID:   plan.ID,
			Result:   result,
			Memo:     memo,
		}
		if err := tx.Create(record).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Plan{}).
			Where("id = ? AND status = ?", plan.ID, models.PlanStatusDeclared).
			Updates(map[string]any{
				"status":      models.PlanStatusRecorded,
				"recorded_at": &now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPlanNotDeclared
		}
		plan.Status = models.PlanStatusRecorded
		plan.RecordedAt = &now

		return createActivityEvent(tx, models.ActivityPlanRecorded, plan, map[string]any{
			"result": result,
			"memo":   memo,
		})
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return s.existingRecord(ctx, planID)
		}
		return nil, wrapInternal("plan service: record", err)
	}
	if existing {
		return &RecordResult{Record: record, Existing: true}, nil
	}

	eventID := models.ActivityEventID(models.ActivityPlanRecorded, plan.ID)
	text := planRecordedMessage(actor.DisplayName(), plan.Subjects, result, memo)
	outcomes, err := s.notifyFamily(ctx, plan.FamilyID, models.NotificationActivityRecord, eventID, text,
		func(u *models.User) bool { return u.NotifyOnRecord })
	if err != nil {
		return nil, err
	}

	return &RecordResult{Record: record, Notified: CountSent(outcomes)}, nil
}

// Cancel withdraws a declared plan. Cancelling twice is a no-op.
func (s *PlanService) Cancel(ctx context.Context, uid, planID string) (*models.Plan, error) {
	ctx = ensureContext(ctx)

	var plan *models.Plan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		plan, err = loadPlan(tx, planID)
		if err != nil {
			return err
		}
		if plan.UserID != uid {
			return ErrPlanNotOwned
		}
		switch plan.Status {
		case models.PlanStatusCancelled:
			return nil
		case models.PlanStatusDeclared:
		default:
			return ErrPlanNotDeclared
		}

		now := s.now().UTC()
		res := tx.Model(&models.Plan{}).
			Where("id = ? AND status = ?", plan.ID, models.PlanStatusDeclared).
			Updates(map[string]any{
				"status":       models.PlanStatusCancelled,
				"cancelled_at": &now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPlanNotDeclared
		}
		plan.Status = models.PlanStatusCancelled
		plan.CancelledAt = &now
		return nil
	})
	if err != nil {
		return nil, wrapInternal("plan service: cancel", err)
	}
	return plan, nil
}

func (s *PlanService) existingRecord(ctx context.Context, planID string) (*RecordResult, error) {
	var stored models.Record
	if err := s.db.WithContext(ctx).Take(&stored, "id = ?", planID).Error; err != nil {
		return nil, fmt.Errorf("plan service: load record: %w", err)
	}
	return &RecordResult{Record: &stored, Existing: true}, nil
}

// notifyFamily fans text out to every active member accepted by wants. Sends
// run on a context detached from the caller's cancellation.
func (s *PlanService) notifyFamily(ctx context.Context, familyID, notificationType, eventID, text string, wants func(*models.User) bool) ([]Outcome, error) {
	members, err := activeMembers(s.db.WithContext(ctx), familyID)
	if err != nil {
		return nil, fmt.Errorf("plan service: load members: %w", err)
	}

	deliveries := make([]Delivery, 0, len(members))
	for i := range members {
		member := &members[i]
		if !wants(member) {
			continue
		}
		id := eventID
		deliveries = append(deliveries, Delivery{
			Claim: Claim{
				DedupeKey:   notificationType + ":" + member.ID + ":" + eventID,
				Type:        notificationType,
				RecipientID: member.ID,
				FamilyID:    familyID,
				EventID:     &id,
			},
			Text: text,
		})
	}
	return s.dispatch.FanOut(context.WithoutCancel(ctx), deliveries), nil
}

func normaliseSubjects(values []string) ([]string, error) {
	subjects := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || utf8.RuneCountInString(v) > maxSubjectLen {
			return nil, apperrors.InvalidArgument(fmt.Sprintf("each subject must be 1-%d characters", maxSubjectLen))
		}
		subjects = append(subjects, v)
	}
	if len(subjects) == 0 || len(subjects) > maxSubjects {
		return nil, apperrors.InvalidArgument(fmt.Sprintf("subjects must contain 1-%d entries", maxSubjects))
	}
	return subjects, nil
}

func loadPlan(tx *gorm.DB, planID string) (*models.Plan, error) {
	var plan models.Plan
	err := tx.Take(&plan, "id = ?", planID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func createActivityEvent(tx *gorm.DB, eventType string, plan *models.Plan, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := &models.ActivityEvent{
		ID:          models.ActivityEventID(eventType, plan.ID),
		FamilyID:    plan.FamilyID,
		ActorUserID: plan.UserID,
		Type:        eventType,
		ResourceID:  plan.ID,
		Payload:     datatypes.JSON(raw),
	}
	return tx.Create(event).Error
}
