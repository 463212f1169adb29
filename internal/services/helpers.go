package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/charlesng35/yaruyo/internal/models"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func normaliseIDs(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

// truncateRunes keeps the first limit runes of s, appending suffix when it cut.
func truncateRunes(s string, limit int, suffix string) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + suffix
}

// optionalText trims s and returns nil when nothing is left.
func optionalText(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func loadUser(tx *gorm.DB, userID string) (*models.User, error) {
	var user models.User
	err := tx.Take(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func loadFamily(tx *gorm.DB, familyID string) (*models.Family, error) {
	var family models.Family
	err := tx.Take(&family, "id = ?", familyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFamilyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &family, nil
}

func loadMembership(tx *gorm.DB, familyID, userID string) (*models.Membership, error) {
	var membership models.Membership
	err := tx.Take(&membership, "family_id = ? AND user_id = ?", familyID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// activeMembers returns the users holding an active membership of familyID.
func activeMembers(tx *gorm.DB, familyID string) ([]models.User, error) {
	var users []models.User
	err := tx.
		Joins("JOIN memberships ON memberships.user_id = users.id").
		Where("memberships.family_id = ? AND memberships.status = ?", familyID, models.MembershipStatusActive).
		Order("memberships.joined_at ASC").
		Find(&users).Error
	return users, err
}
