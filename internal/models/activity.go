package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ActivityPlanDeclared = "plan_declared"
	ActivityPlanRecorded = "plan_recorded"

	ReactionTargetPlan   = "plan"
	ReactionTargetRecord = "record"
	ReactionTypeLike     = "like"
)

// ActivityEvent is the family timeline entry written alongside plan changes.
// IDs are derived from the resource so a retried write cannot duplicate it.
type ActivityEvent struct {
	ID          string         `gorm:"primaryKey;size:80" json:"id"`
	FamilyID    string         `gorm:"size:36;not null;index" json:"family_id"`
	ActorUserID string         `gorm:"size:64;not null" json:"actor_user_id"`
	Type        string         `gorm:"size:32;not null" json:"type"`
	ResourceID  string         `gorm:"size:36;not null" json:"resource_id"`
	Payload     datatypes.JSON `json:"payload"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
}

// ActivityEventID builds the deterministic event id for a plan transition.
func ActivityEventID(eventType, planID string) string {
	return eventType + "_" + planID
}

// Reaction is a like left on a plan or record. One per target and actor.
type Reaction struct {
	ID         string    `gorm:"primaryKey;size:160" json:"id"`
	FamilyID   string    `gorm:"size:36;not null" json:"family_id"`
	TargetType string    `gorm:"size:16;not null;index:idx_reactions_target,priority:1" json:"target_type"`
	TargetID   string    `gorm:"size:36;not null;index:idx_reactions_target,priority:2" json:"target_id"`
	FromUserID string    `gorm:"size:64;not null;index:idx_reactions_target,priority:3" json:"from_user_id"`
	Type       string    `gorm:"size:16;not null" json:"type"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReactionID builds the deterministic reaction id.
func ReactionID(targetType, targetID, fromUserID string) string {
	return targetType + "_" + targetID + "_" + fromUserID
}

// IsValidReactionTarget reports whether targetType can receive reactions.
func IsValidReactionTarget(targetType string) bool {
	return targetType == ReactionTargetPlan || targetType == ReactionTargetRecord
}
