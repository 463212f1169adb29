package models

import "time"

const (
	FamilyStatusActive = "active"
	FamilyStatusClosed = "closed"

	RoleParent = "parent"
	RoleChild  = "child"

	MembershipStatusActive = "active"
)

// Family groups the users that see each other's plans and records.
type Family struct {
	BaseModel

	Name      string     `gorm:"size:64;not null" json:"name"`
	Status    string     `gorm:"size:16;not null;index" json:"status"`
	CreatedBy string     `gorm:"size:64;not null" json:"created_by"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	ClosedBy  *string    `gorm:"size:64" json:"closed_by,omitempty"`
}

// IsClosed reports whether the family has been closed.
func (f *Family) IsClosed() bool {
	return f != nil && f.Status == FamilyStatusClosed
}

// Membership links a user to a family with a role.
type Membership struct {
	FamilyID string    `gorm:"primaryKey;size:36" json:"family_id"`
	UserID   string    `gorm:"primaryKey;size:64;index" json:"user_id"`
	Role     string    `gorm:"size:16;not null" json:"role"`
	Status   string    `gorm:"size:16;not null" json:"status"`
	JoinedAt time.Time `json:"joined_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActiveParent reports whether the membership grants parent rights.
func (m *Membership) IsActiveParent() bool {
	return m != nil && m.Role == RoleParent && m.Status == MembershipStatusActive
}

// InviteCode is a six digit code granting a role in a family. Codes live
// under their family but are looked up across families by value.
type InviteCode struct {
	FamilyID  string `gorm:"primaryKey;size:36" json:"family_id"`
	Code      string `gorm:"primaryKey;size:6;index:idx_invite_codes_lookup,priority:1" json:"code"`
	Role      string `gorm:"size:16;not null" json:"role"`
	Active    bool   `gorm:"not null;index:idx_invite_codes_lookup,priority:2" json:"active"`
	// ActiveCode mirrors Code while the code is active and is NULL otherwise,
	// so the unique index covers active codes only.
	ActiveCode *string `gorm:"size:6;uniqueIndex:idx_invite_codes_active_code" json:"-"`
	CreatedBy string `gorm:"size:64" json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsValidRole reports whether role is one of the supported membership roles.
func IsValidRole(role string) bool {
	return role == RoleParent || role == RoleChild
}
