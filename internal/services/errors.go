package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/yaruyo/pkg/errors"
)

var (
	// ErrUserNotFound indicates the caller has no user row yet.
	ErrUserNotFound = apperrors.NotFound("User not found")
	// ErrFamilyNotFound indicates the referenced family does not exist.
	ErrFamilyNotFound = apperrors.NotFound("Family not found")
	// ErrMembershipNotFound indicates the caller has no membership row.
	ErrMembershipNotFound = apperrors.NotFound("Membership not found")
	// ErrInviteCodeNotFound indicates no active invite code matches.
	ErrInviteCodeNotFound = apperrors.NotFound("Invite code not found")
	// ErrPlanNotFound indicates the referenced plan does not exist.
	ErrPlanNotFound = apperrors.NotFound("Plan not found")
	// ErrTargetNotFound indicates the reaction target does not exist.
	ErrTargetNotFound = apperrors.NotFound("Target not found")

	// ErrAlreadyInFamily is returned when a user tries to create or join a second family.
	ErrAlreadyInFamily = apperrors.FailedPrecondition("User already belongs to a family")
	// ErrNotInFamily is returned when an operation needs a family the user does not have.
	ErrNotInFamily = apperrors.FailedPrecondition("User does not belong to a family")
	// ErrInviteCodeInactive is returned when the code was deactivated before the join committed.
	ErrInviteCodeInactive = apperrors.FailedPrecondition("Invite code is no longer active")
	// ErrFamilyClosed is returned for operations on a closed family.
	ErrFamilyClosed = apperrors.FailedPrecondition("Family is closed")
	// ErrNoActiveParent is returned when a child tries to join a family without parents.
	ErrNoActiveParent = apperrors.FailedPrecondition("Family has no active parent")
	// ErrLastParent is returned when the sole active parent tries to leave.
	ErrLastParent = apperrors.FailedPrecondition("最後の親は家族をぬけられません")
	// ErrParentRequired is returned when a parent-only operation is called by a child.
	ErrParentRequired = apperrors.FailedPrecondition("Only a parent can do this")
	// ErrFamilyMismatch is returned when actor and target belong to different families.
	ErrFamilyMismatch = apperrors.FailedPrecondition("Family mismatch")
	// ErrPlanNotOwned is returned when recording or cancelling someone else's plan.
	ErrPlanNotOwned = apperrors.FailedPrecondition("Plan belongs to another user")
	// ErrPlanNotDeclared is returned when the plan is no longer in the declared state.
	ErrPlanNotDeclared = apperrors.FailedPrecondition("Plan is not recordable")

	// ErrInviteCodeExhausted is returned when no free code was found within the retry bound.
	ErrInviteCodeExhausted = apperrors.Internal("Failed to allocate a unique invite code")
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate")
}

// wrapInternal keeps AppErrors intact and annotates anything else with the
// operation that failed.
func wrapInternal(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
