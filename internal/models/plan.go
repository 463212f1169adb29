package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PlanStatusDeclared  = "declared"
	PlanStatusRecorded  = "recorded"
	PlanStatusCancelled = "cancelled"

	AmountTypeTime = "time"
	AmountTypePage = "page"

	ResultLight     = "light"
	ResultAsPlanned = "as_planned"
	ResultExtra     = "extra"
)

// Plan is a declared study intention (やるよ).
type Plan struct {
	BaseModel

	FamilyID string                      `gorm:"size:36;not null;index" json:"family_id"`
	UserID   string                      `gorm:"size:64;not null;index" json:"user_id"`
	Subjects datatypes.JSONSlice[string] `json:"subjects"`

	ContentMemo *string    `gorm:"type:text" json:"content_memo,omitempty"`
	StartAt     *time.Time `json:"start_at,omitempty"`
	StartSlot   *string    `gorm:"size:12;index:idx_plans_reminder,priority:2" json:"start_slot,omitempty"`
	AmountType  *string    `gorm:"size:8" json:"amount_type,omitempty"`
	AmountValue *float64   `json:"amount_value,omitempty"`

	Status              string     `gorm:"size:16;not null;index:idx_plans_reminder,priority:1" json:"status"`
	RecordedAt          *time.Time `json:"recorded_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	StartReminderSentAt *time.Time `json:"start_reminder_sent_at,omitempty"`
}

// Record is the completion of a plan (やったよ). Its ID equals the plan ID so
// a plan can be recorded at most once.
type Record struct {
	ID       string  `gorm:"primaryKey;size:36" json:"id"`
	FamilyID string  `gorm:"size:36;not null;index" json:"family_id"`
	UserID   string  `gorm:"size:64;not null;index" json:"user_id"`
	PlanID   string  `gorm:"size:36;not null;uniqueIndex" json:"plan_id"`
	Result   string  `gorm:"size:16;not null" json:"result"`
	Memo     *string `gorm:"type:text" json:"memo,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsValidResult reports whether result is a supported record result.
func IsValidResult(result string) bool {
	switch result {
	case ResultLight, ResultAsPlanned, ResultExtra:
		return true
	}
	return false
}

// IsValidAmountType reports whether amountType is a supported amount unit.
func IsValidAmountType(amountType string) bool {
	return amountType == AmountTypeTime || amountType == AmountTypePage
}
