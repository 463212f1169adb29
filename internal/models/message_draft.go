package models

import "time"

// MessageDraft is a chat message waiting for its author to confirm the
// family broadcast. SentAt and CancelledAt are write-once and exclusive.
type MessageDraft struct {
	BaseModel

	FamilyID    string     `gorm:"size:36;not null;index" json:"family_id"`
	FromUserID  string     `gorm:"size:64;not null;index" json:"from_user_id"`
	Text        string     `gorm:"type:text;not null" json:"text"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// IsPending reports whether the draft is still awaiting confirmation.
func (d *MessageDraft) IsPending() bool {
	return d != nil && d.SentAt == nil && d.CancelledAt == nil
}
