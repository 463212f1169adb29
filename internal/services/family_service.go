package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/yaruyo/internal/models"
	apperrors "github.com/charlesng35/yaruyo/pkg/errors"
	"github.com/charlesng35/yaruyo/pkg/logger"
	"github.com/charlesng35/yaruyo/pkg/validator"
)

const (
	defaultCloseBatchSize = 400
	maxFamilyNameLen      = 20
)

// FamilyCreated is returned by Create.
type FamilyCreated struct {
	FamilyID   string `json:"family_id"`
	Role       string `json:"my_role"`
	ParentCode string `json:"parent_code"`
	ChildCode  string `json:"child_code"`
}

// JoinResult is returned by JoinByCode.
type JoinResult struct {
	FamilyID string `json:"family_id"`
	Role     string `json:"role"`
}

// CloseResult summarises a close or a resumed close.
type CloseResult struct {
	FamilyID           string `json:"family_id"`
	AlreadyClosed      bool   `json:"already_closed"`
	UsersCleared       int    `json:"users_cleared"`
	CodesDeactivated   int    `json:"codes_deactivated"`
	MembershipsDeleted int    `json:"memberships_deleted"`
}

// FamilyMember is a member entry in FamilyView.
type FamilyMember struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	PictureURL  *string   `json:"picture_url,omitempty"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

// FamilyView is the caller's view of their family.
type FamilyView struct {
	Family      *models.Family      `json:"family"`
	MyRole      string              `json:"my_role"`
	Members     []FamilyMember      `json:"members"`
	InviteCodes []models.InviteCode `json:"invite_codes,omitempty"`
}

// FamilyOption customises FamilyService behaviour.
type FamilyOption func(*FamilyService)

// WithFamilyClock overrides the clock used for close timestamps.
func WithFamilyClock(clock func() time.Time) FamilyOption {
	return func(s *FamilyService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithCloseBatchSize overrides the number of rows cleared per close batch.
func WithCloseBatchSize(n int) FamilyOption {
	return func(s *FamilyService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// FamilyService runs the family membership state machine.
type FamilyService struct {
	db        *gorm.DB
	codes     *InviteCodeService
	now       func() time.Time
	batchSize int
	log       *zap.Logger
}

// NewFamilyService constructs a FamilyService.
func NewFamilyService(db *gorm.DB, codes *InviteCodeService, opts ...FamilyOption) (*FamilyService, error) {
	if db == nil {
		return nil, errors.New("family service: db is required")
	}
	if codes == nil {
		return nil, errors.New("family service: invite code service is required")
	}

	svc := &FamilyService{
		db:        db,
		codes:     codes,
		now:       time.Now,
		batchSize: defaultCloseBatchSize,
		log:       logger.WithModule("family"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create founds a family with the caller as its first parent and issues a
// parent and a child invite code.
func (s *FamilyService) Create(ctx context.Context, uid string) (*FamilyCreated, error) {
	ctx = ensureContext(ctx)

	var family *models.Family
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := loadUser(tx, uid)
		if err != nil {
			return err
		}
		if user.FamilyID != nil {
			return ErrAlreadyInFamily
		}

		family = &models.Family{
			Name:      defaultFamilyName(user.DisplayName()),
			Status:    models.FamilyStatusActive,
			CreatedBy: uid,
		}
		if err := tx.Create(family).Error; err != nil {
			return err
		}

		membership := &models.Membership{
			FamilyID: family.ID,
			UserID:   uid,
			Role:     models.RoleParent,
			Status:   models.MembershipStatusActive,
			JoinedAt: s.now().UTC(),
		}
		if err := tx.Create(membership).Error; err != nil {
			return err
		}

		return assignFamily(tx, uid, family.ID)
	})
	if err != nil {
		return nil, wrapInternal("family service: create", err)
	}

	parentCode, err := s.codes.Issue(ctx, family.ID, models.RoleParent, uid)
	if err != nil {
		return nil, wrapInternal("family service: issue parent code", err)
	}
	childCode, err := s.codes.Issue(ctx, family.ID, models.RoleChild, uid)
	if err != nil {
		return nil, wrapInternal("family service: issue child code", err)
	}

	s.log.Info("family created", zap.String("family_id", family.ID), zap.String("user_id", uid))

	return &FamilyCreated{
		FamilyID:   family.ID,
		Role:       models.RoleParent,
		ParentCode: parentCode,
		ChildCode:  childCode,
	}, nil
}

// JoinByCode adds the caller to the family owning an active invite code.
func (s *FamilyService) JoinByCode(ctx context.Context, uid, code string) (*JoinResult, error) {
	ctx = ensureContext(ctx)
	code = strings.TrimSpace(code)
	if !validator.IsInviteCode(code) {
		return nil, apperrors.InvalidArgument("invite code must be 6 digits")
	}

	user, err := loadUser(s.db.WithContext(ctx), uid)
	if err != nil {
		return nil, wrapInternal("family service: join", err)
	}
	if user.FamilyID != nil {
		return nil, ErrAlreadyInFamily
	}

	invite, err := s.codes.FindActive(ctx, code)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := touchFamily(tx, invite.FamilyID, s.now()); err != nil {
			return err
		}

		var current models.InviteCode
		err := tx.Take(&current, "family_id = ? AND code = ?", invite.FamilyID, invite.Code).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !current.Active) {
			return ErrInviteCodeInactive
		}
		if err != nil {
			return err
		}

		family, err := loadFamily(tx, invite.FamilyID)
		if err != nil {
			return err
		}
		if family.IsClosed() {
			return ErrFamilyClosed
		}

		user, err := loadUser(tx, uid)
		if err != nil {
			return err
		}
		if user.FamilyID != nil {
			return ErrAlreadyInFamily
		}

		if current.Role == models.RoleChild {
			parents, err := countActiveParents(tx, family.ID)
			if err != nil {
				return err
			}
			if parents == 0 {
				return ErrNoActiveParent
			}
		}

		_, err = loadMembership(tx, family.ID, uid)
		switch {
		case errors.Is(err, ErrMembershipNotFound):
			membership := &models.Membership{
				FamilyID: family.ID,
				UserID:   uid,
				Role:     current.Role,
				Status:   models.MembershipStatusActive,
				JoinedAt: s.now().UTC(),
			}
			if err := tx.Create(membership).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		}

		return assignFamily(tx, uid, family.ID)
	})
	if err != nil {
		return nil, wrapInternal("family service: join", err)
	}

	s.log.Info("family joined",
		zap.String("family_id", invite.FamilyID),
		zap.String("user_id", uid),
		zap.String("role", invite.Role),
	)
	return &JoinResult{FamilyID: invite.FamilyID, Role: invite.Role}, nil
}

// Leave removes the caller from their family. The last active parent cannot leave.
func (s *FamilyService) Leave(ctx context.Context, uid string) error {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := loadUser(tx, uid)
		if err != nil {
			return err
		}
		if user.FamilyID == nil {
			return ErrNotInFamily
		}
		familyID := *user.FamilyID

		if err := touchFamily(tx, familyID, s.now()); err != nil {
			return err
		}

		membership, err := loadMembership(tx, familyID, uid)
		if err != nil {
			return err
		}
		if membership.IsActiveParent() {
			parents, err := countActiveParents(tx, familyID)
			if err != nil {
				return err
			}
			if parents <= 1 {
				return ErrLastParent
			}
		}

		if err := tx.Where("family_id = ? AND user_id = ?", familyID, uid).Delete(&models.Membership{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("id = ? AND family_id = ?", uid, familyID).
			Update("family_id", nil).Error
	})
	if err != nil {
		return wrapInternal("family service: leave", err)
	}
	return nil
}

// Close marks the caller's family closed and detaches every member. A family
// that is already closed reports AlreadyClosed and has any leftover rows cleared.
func (s *FamilyService) Close(ctx context.Context, uid string) (*CloseResult, error) {
	ctx = ensureContext(ctx)

	var familyID string
	alreadyClosed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := loadUser(tx, uid)
		if err != nil {
			return err
		}
		if user.FamilyID == nil {
			return ErrNotInFamily
		}
		familyID = *user.FamilyID

		family, err := loadFamily(tx, familyID)
		if err != nil {
			return err
		}
		if family.IsClosed() {
			alreadyClosed = true
			return nil
		}

		membership, err := loadMembership(tx, familyID, uid)
		if err != nil {
			return err
		}
		if !membership.IsActiveParent() {
			return ErrParentRequired
		}

		closedAt := s.now().UTC()
		return tx.Model(&models.Family{}).
			Where("id = ? AND status = ?", familyID, models.FamilyStatusActive).
			Updates(map[string]any{
				"status":    models.FamilyStatusClosed,
				"closed_at": &closedAt,
				"closed_by": uid,
			}).Error
	})
	if err != nil {
		return nil, wrapInternal("family service: close", err)
	}

	result, err := s.ResumeClose(ctx, familyID)
	if err != nil {
		return nil, err
	}
	result.AlreadyClosed = alreadyClosed

	s.log.Info("family closed",
		zap.String("family_id", familyID),
		zap.String("user_id", uid),
		zap.Bool("already_closed", alreadyClosed),
		zap.Int("members", result.MembershipsDeleted),
	)
	return result, nil
}

// ResumeClose runs the close cascade for a family that is already closed:
// detach users, deactivate invite codes, then delete memberships, each in
// batches. Every step only touches rows that still need it.
func (s *FamilyService) ResumeClose(ctx context.Context, familyID string) (*CloseResult, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	family, err := loadFamily(db, familyID)
	if err != nil {
		return nil, wrapInternal("family service: resume close", err)
	}
	if !family.IsClosed() {
		return nil, apperrors.FailedPrecondition("Family is not closed")
	}

	result := &CloseResult{FamilyID: familyID, AlreadyClosed: true}

	result.UsersCleared, err = s.inBatches(db, func(tx *gorm.DB) (int, error) {
		var ids []string
		if err := tx.Model(&models.User{}).Where("family_id = ?", familyID).Limit(s.batchSize).Pluck("id", &ids).Error; err != nil {
			return 0, err
		}
		if len(ids) == 0 {
			return 0, nil
		}
		res := tx.Model(&models.User{}).
			Where("id IN ? AND family_id = ?", ids, familyID).
			Update("family_id", nil)
		return int(res.RowsAffected), res.Error
	})
	if err != nil {
		return nil, fmt.Errorf("family service: clear users: %w", err)
	}

	result.CodesDeactivated, err = s.inBatches(db, func(tx *gorm.DB) (int, error) {
		var codes []string
		if err := tx.Model(&models.InviteCode{}).Where("family_id = ? AND active = ?", familyID, true).Limit(s.batchSize).Pluck("code", &codes).Error; err != nil {
			return 0, err
		}
		if len(codes) == 0 {
			return 0, nil
		}
		n, err := deactivateInviteCodes(tx, familyID, codes)
		return int(n), err
	})
	if err != nil {
		return nil, fmt.Errorf("family service: deactivate codes: %w", err)
	}

	result.MembershipsDeleted, err = s.inBatches(db, func(tx *gorm.DB) (int, error) {
		var userIDs []string
		if err := tx.Model(&models.Membership{}).Where("family_id = ?", familyID).Limit(s.batchSize).Pluck("user_id", &userIDs).Error; err != nil {
			return 0, err
		}
		if len(userIDs) == 0 {
			return 0, nil
		}
		res := tx.Where("family_id = ? AND user_id IN ?", familyID, userIDs).Delete(&models.Membership{})
		return int(res.RowsAffected), res.Error
	})
	if err != nil {
		return nil, fmt.Errorf("family service: delete memberships: %w", err)
	}

	return result, nil
}

// ResumePendingCloses finishes the cascade of every closed family that still
// has attached users, memberships or active codes.
func (s *FamilyService) ResumePendingCloses(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)

	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.Family{}).
		Where("status = ?", models.FamilyStatusClosed).
		Where("(EXISTS (SELECT 1 FROM users WHERE users.family_id = families.id)"+
			" OR EXISTS (SELECT 1 FROM memberships WHERE memberships.family_id = families.id)"+
			" OR EXISTS (SELECT 1 FROM invite_codes WHERE invite_codes.family_id = families.id AND invite_codes.active = ?))", true).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("family service: find pending closes: %w", err)
	}

	resumed := 0
	for _, id := range ids {
		if _, err := s.ResumeClose(ctx, id); err != nil {
			return resumed, err
		}
		resumed++
	}
	return resumed, nil
}

// UpdateName renames the caller's family. Only parents may rename.
func (s *FamilyService) UpdateName(ctx context.Context, uid, name string) (*models.Family, error) {
	ctx = ensureContext(ctx)

	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxFamilyNameLen {
		return nil, apperrors.InvalidArgument(fmt.Sprintf("family name must be 1-%d characters", maxFamilyNameLen))
	}

	var family *models.Family
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := loadUser(tx, uid)
		if err != nil {
			return err
		}
		if user.FamilyID == nil {
			return ErrNotInFamily
		}

		family, err = loadFamily(tx, *user.FamilyID)
		if err != nil {
			return err
		}
		if family.IsClosed() {
			return ErrFamilyClosed
		}

		membership, err := loadMembership(tx, family.ID, uid)
		if err != nil {
			return err
		}
		if !membership.IsActiveParent() {
			return ErrParentRequired
		}

		family.Name = name
		return tx.Model(family).Update("name", name).Error
	})
	if err != nil {
		return nil, wrapInternal("family service: update name", err)
	}
	return family, nil
}

// Current returns the caller's family, their role, the active members and,
// for parents, the active invite codes.
func (s *FamilyService) Current(ctx context.Context, uid string) (*FamilyView, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	user, err := loadUser(db, uid)
	if err != nil {
		return nil, wrapInternal("family service: current", err)
	}
	if user.FamilyID == nil {
		return nil, ErrNotInFamily
	}

	family, err := loadFamily(db, *user.FamilyID)
	if err != nil {
		return nil, wrapInternal("family service: current", err)
	}
	membership, err := loadMembership(db, family.ID, uid)
	if err != nil {
		return nil, wrapInternal("family service: current", err)
	}

	var memberships []models.Membership
	if err := db.Where("family_id = ? AND status = ?", family.ID, models.MembershipStatusActive).
		Order("joined_at ASC").
		Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("family service: list members: %w", err)
	}

	userIDs := make([]string, 0, len(memberships))
	for _, m := range memberships {
		userIDs = append(userIDs, m.UserID)
	}
	var users []models.User
	if len(userIDs) > 0 {
		if err := db.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return nil, fmt.Errorf("family service: load members: %w", err)
		}
	}
	byID := make(map[string]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	view := &FamilyView{Family: family, MyRole: membership.Role}
	for _, m := range memberships {
		member := FamilyMember{UserID: m.UserID, DisplayName: m.UserID, Role: m.Role, JoinedAt: m.JoinedAt}
		if u, ok := byID[m.UserID]; ok {
			member.DisplayName = u.DisplayName()
			member.PictureURL = u.PictureURL
		}
		view.Members = append(view.Members, member)
	}

	if membership.IsActiveParent() {
		view.InviteCodes, err = s.codes.ListActive(ctx, family.ID)
		if err != nil {
			return nil, err
		}
	}
	return view, nil
}

func (s *FamilyService) inBatches(db *gorm.DB, step func(tx *gorm.DB) (int, error)) (int, error) {
	total := 0
	for {
		var affected int
		err := db.Transaction(func(tx *gorm.DB) error {
			n, err := step(tx)
			affected = n
			return err
		})
		if err != nil {
			return total, err
		}
		total += affected
		if affected == 0 {
			return total, nil
		}
	}
}

// touchFamily bumps the family row so concurrent membership changes of the
// same family serialise on it.
func touchFamily(tx *gorm.DB, familyID string, now time.Time) error {
	res := tx.Model(&models.Family{}).Where("id = ?", familyID).Update("updated_at", now.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFamilyNotFound
	}
	return nil
}

// assignFamily sets the user's family only while it is still unset.
func assignFamily(tx *gorm.DB, uid, familyID string) error {
	res := tx.Model(&models.User{}).
		Where("id = ? AND family_id IS NULL", uid).
		Update("family_id", familyID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyInFamily
	}
	return nil
}

func countActiveParents(tx *gorm.DB, familyID string) (int64, error) {
	var count int64
	err := tx.Model(&models.Membership{}).
		Where("family_id = ? AND role = ? AND status = ?", familyID, models.RoleParent, models.MembershipStatusActive).
		Count(&count).Error
	return count, err
}
