package models

import (
	"strings"
	"time"
)

// User is a LINE account known to the service. The ID is the LINE user id,
// which doubles as the push recipient id.
type User struct {
	ID       string  `gorm:"primaryKey;size:64" json:"id"`
	FamilyID *string `gorm:"size:36;index" json:"family_id"`

	LineDisplayName string  `gorm:"size:128" json:"line_display_name"`
	AppDisplayName  *string `gorm:"size:64" json:"app_display_name"`
	PictureURL      *string `gorm:"type:text" json:"picture_url"`

	NotifyOnPlan         bool `gorm:"not null" json:"notify_on_plan"`
	NotifyOnRecord       bool `gorm:"not null" json:"notify_on_record"`
	StartReminderEnabled bool `gorm:"not null" json:"start_reminder_enabled"`

	// PushToken is the FCM registration token when the FCM provider is used.
	PushToken *string `gorm:"size:255" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser returns a user row with every notification preference enabled.
func NewUser(id, lineDisplayName string) *User {
	return &User{
		ID:                   id,
		LineDisplayName:      strings.TrimSpace(lineDisplayName),
		NotifyOnPlan:         true,
		NotifyOnRecord:       true,
		StartReminderEnabled: true,
	}
}

// DisplayName resolves the name shown to other family members: the in-app
// name, then the LINE profile name, then the raw id.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.AppDisplayName != nil {
		if name := strings.TrimSpace(*u.AppDisplayName); name != "" {
			return name
		}
	}
	if name := strings.TrimSpace(u.LineDisplayName); name != "" {
		return name
	}
	return u.ID
}

// InFamily reports whether the user currently belongs to familyID.
func (u *User) InFamily(familyID string) bool {
	return u != nil && u.FamilyID != nil && *u.FamilyID == familyID
}
