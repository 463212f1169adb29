package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/yaruyo/internal/models"
	"github.com/charlesng35/yaruyo/internal/push"
	apperrors "github.com/charlesng35/yaruyo/pkg/errors"
)

const maxAppDisplayNameLen = 20

// Profile is the caller identity asserted by a verified token.
type Profile struct {
	UserID      string
	DisplayName string
	PictureURL  string
}

// SettingsInput describes mutable user preferences. Nil fields are left untouched.
type SettingsInput struct {
	AppDisplayName       *string
	NotifyOnPlan         *bool
	NotifyOnRecord       *bool
	StartReminderEnabled *bool
	PushToken            *string
}

// UserService manages user rows and their notification preferences.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// Ensure returns the user row for the profile, creating it on first sight and
// refreshing the LINE profile fields when they changed.
func (s *UserService) Ensure(ctx context.Context, profile Profile) (*models.User, error) {
	ctx = ensureContext(ctx)
	uid := strings.TrimSpace(profile.UserID)
	if uid == "" {
		return nil, apperrors.Unauthenticated("missing user id")
	}

	user := models.NewUser(uid, profile.DisplayName)
	if pic := strings.TrimSpace(profile.PictureURL); pic != "" {
		user.PictureURL = &pic
	}

	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(user).Error; err != nil {
		return nil, fmt.Errorf("user service: ensure: %w", err)
	}

	stored, err := loadUser(db, uid)
	if err != nil {
		return nil, wrapInternal("user service: ensure", err)
	}

	updates := map[string]any{}
	if user.LineDisplayName != "" && user.LineDisplayName != stored.LineDisplayName {
		updates["line_display_name"] = user.LineDisplayName
	}
	if user.PictureURL != nil && (stored.PictureURL == nil || *stored.PictureURL != *user.PictureURL) {
		updates["picture_url"] = *user.PictureURL
	}
	if len(updates) > 0 {
		if err := db.Model(stored).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("user service: refresh profile: %w", err)
		}
		if name, ok := updates["line_display_name"].(string); ok {
			stored.LineDisplayName = name
		}
		if _, ok := updates["picture_url"]; ok {
			stored.PictureURL = user.PictureURL
		}
	}
	return stored, nil
}

// Get loads a user by id.
func (s *UserService) Get(ctx context.Context, uid string) (*models.User, error) {
	ctx = ensureContext(ctx)
	user, err := loadUser(s.db.WithContext(ctx), uid)
	if err != nil {
		return nil, wrapInternal("user service: get", err)
	}
	return user, nil
}

// UpdateSettings applies the provided preference changes.
func (s *UserService) UpdateSettings(ctx context.Context, uid string, input SettingsInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	updates := map[string]any{}
	if input.AppDisplayName != nil {
		name := strings.TrimSpace(*input.AppDisplayName)
		if utf8.RuneCountInString(name) > maxAppDisplayNameLen {
			return nil, apperrors.InvalidArgument(fmt.Sprintf("display name must be at most %d characters", maxAppDisplayNameLen))
		}
		if name == "" {
			updates["app_display_name"] = nil
		} else {
			updates["app_display_name"] = name
		}
	}
	if input.NotifyOnPlan != nil {
		updates["notify_on_plan"] = *input.NotifyOnPlan
	}
	if input.NotifyOnRecord != nil {
		updates["notify_on_record"] = *input.NotifyOnRecord
	}
	if input.StartReminderEnabled != nil {
		updates["start_reminder_enabled"] = *input.StartReminderEnabled
	}
	if input.PushToken != nil {
		if token := strings.TrimSpace(*input.PushToken); token == "" {
			updates["push_token"] = nil
		} else {
			updates["push_token"] = token
		}
	}

	db := s.db.WithContext(ctx)
	user, err := loadUser(db, uid)
	if err != nil {
		return nil, wrapInternal("user service: update settings", err)
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := db.Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user service: update settings: %w", err)
	}
	return loadUser(db, uid)
}

// PushToken resolves the FCM registration token of uid.
func (s *UserService) PushToken(ctx context.Context, uid string) (string, error) {
	user, err := s.Get(ctx, uid)
	if err != nil {
		return "", err
	}
	if user.PushToken == nil || *user.PushToken == "" {
		return "", push.ErrNoPushToken
	}
	return *user.PushToken, nil
}
