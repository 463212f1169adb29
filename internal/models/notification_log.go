package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const (
	NotificationStatusSkipped = "skipped"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"

	NotificationActivityPlan   = "activity_plan"
	NotificationActivityRecord = "activity_record"
	NotificationReminder       = "reminder"
	NotificationReactionLike   = "reaction_like"
)

// NotificationLog records a claimed notification opportunity. A row exists at
// most once per dedupe key and is never deleted.
type NotificationLog struct {
	ID          string     `gorm:"primaryKey;size:64" json:"id"`
	DedupeKey   string     `gorm:"size:255;not null;uniqueIndex" json:"dedupe_key"`
	Type        string     `gorm:"size:32;not null" json:"type"`
	RecipientID string     `gorm:"size:64;not null;index" json:"recipient_id"`
	FamilyID    string     `gorm:"size:36" json:"family_id"`
	EventID     *string    `gorm:"size:80" json:"event_id,omitempty"`
	Status      string     `gorm:"size:16;not null" json:"status"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	Error       string     `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NotificationLogID hashes a dedupe key into a path-safe primary key.
func NotificationLogID(dedupeKey string) string {
	sum := sha256.Sum256([]byte(dedupeKey))
	return hex.EncodeToString(sum[:])
}
