package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"gorm.io/gorm"

	"github.com/charlesng35/yaruyo/internal/models"
	apperrors "github.com/charlesng35/yaruyo/pkg/errors"
	"github.com/charlesng35/yaruyo/pkg/validator"
)

const maxInviteCodeAttempts = 10

var inviteCodeSpace = big.NewInt(1_000_000)

// InviteCodeOption customises InviteCodeService behaviour.
type InviteCodeOption func(*InviteCodeService)

// WithCodeGenerator overrides the random code source.
func WithCodeGenerator(gen func() (string, error)) InviteCodeOption {
	return func(s *InviteCodeService) {
		if gen != nil {
			s.generate = gen
		}
	}
}

// InviteCodeService allocates six digit family invite codes.
type InviteCodeService struct {
	db       *gorm.DB
	generate func() (string, error)
}

// NewInviteCodeService constructs an InviteCodeService.
func NewInviteCodeService(db *gorm.DB, opts ...InviteCodeOption) (*InviteCodeService, error) {
	if db == nil {
		return nil, errors.New("invite code service: db is required")
	}
	svc := &InviteCodeService{db: db, generate: randomInviteCode}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Issue allocates a code that is not active in any family and stores it
// under familyID with role.
func (s *InviteCodeService) Issue(ctx context.Context, familyID, role, createdBy string) (string, error) {
	ctx = ensureContext(ctx)
	if familyID == "" {
		return "", apperrors.InvalidArgument("family id is required")
	}
	if !models.IsValidRole(role) {
		return "", apperrors.InvalidArgument("role must be parent or child")
	}

	db := s.db.WithContext(ctx)
	for attempt := 0; attempt < maxInviteCodeAttempts; attempt++ {
		code, err := s.generate()
		if err != nil {
			return "", fmt.Errorf("invite code service: generate: %w", err)
		}

		var count int64
		if err := db.Model(&models.InviteCode{}).
			Where("code = ? AND active = ?", code, true).
			Count(&count).Error; err != nil {
			return "", fmt.Errorf("invite code service: check code: %w", err)
		}
		if count > 0 {
			continue
		}

		row := &models.InviteCode{
			FamilyID:   familyID,
			Code:       code,
			Role:       role,
			Active:     true,
			ActiveCode: &code,
			CreatedBy:  createdBy,
		}
		if err := db.Create(row).Error; err != nil {
			if isUniqueConstraintError(err) {
				continue
			}
			return "", fmt.Errorf("invite code service: store code: %w", err)
		}
		return code, nil
	}

	return "", ErrInviteCodeExhausted
}

// deactivateInviteCodes retires codes of one family and frees their values
// for reuse.
func deactivateInviteCodes(tx *gorm.DB, familyID string, codes []string) (int64, error) {
	res := tx.Model(&models.InviteCode{}).
		Where("family_id = ? AND code IN ?", familyID, codes).
		Updates(map[string]any{"active": false, "active_code": nil})
	return res.RowsAffected, res.Error
}

// FindActive looks up an active code across all families.
func (s *InviteCodeService) FindActive(ctx context.Context, code string) (*models.InviteCode, error) {
	ctx = ensureContext(ctx)
	if !validator.IsInviteCode(code) {
		return nil, apperrors.InvalidArgument("invite code must be 6 digits")
	}

	var row models.InviteCode
	err := s.db.WithContext(ctx).
		Where("code = ? AND active = ?", code, true).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInviteCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invite code service: find code: %w", err)
	}
	return &row, nil
}

// ListActive returns the family's active codes, parent first.
func (s *InviteCodeService) ListActive(ctx context.Context, familyID string) ([]models.InviteCode, error) {
	ctx = ensureContext(ctx)

	var rows []models.InviteCode
	err := s.db.WithContext(ctx).
		Where("family_id = ? AND active = ?", familyID, true).
		Order("role DESC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("invite code service: list codes: %w", err)
	}
	return rows, nil
}

func randomInviteCode() (string, error) {
	n, err := rand.Int(rand.Reader, inviteCodeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
