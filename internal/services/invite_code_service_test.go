package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/yaruyo/internal/database/testutil"
	"github.com/charlesng35/yaruyo/internal/models"
	apperrors "github.com/charlesng35/yaruyo/pkg/errors"
	"github.com/charlesng35/yaruyo/pkg/validator"
)

func TestInviteCodeIssueRetriesCollisions(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	codes := []string{"123456", "123456", "654321"}
	svc, err := NewInviteCodeService(db, WithCodeGenerator(func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}))
	require.NoError(t, err)
	ctx := context.Background()

	first, err := svc.Issue(ctx, "f1", models.RoleParent, "U1")
	require.NoError(t, err)
	require.Equal(t, "123456", first)

	second, err := svc.Issue(ctx, "f2", models.RoleChild, "U2")
	require.NoError(t, err)
	require.Equal(t, "654321", second)

	found, err := svc.FindActive(ctx, "654321")
	require.NoError(t, err)
	require.Equal(t, "f2", found.FamilyID)
	require.Equal(t, models.RoleChild, found.Role)
}

func TestInviteCodeIssueExhaustion(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	attempts := 0
	svc, err := NewInviteCodeService(db, WithCodeGenerator(func() (string, error) {
		attempts++
		return "000001", nil
	}))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Issue(ctx, "f1", models.RoleParent, "U1")
	require.NoError(t, err)

	attempts = 0
	_, err = svc.Issue(ctx, "f2", models.RoleParent, "U2")
	require.ErrorIs(t, err, ErrInviteCodeExhausted)
	require.Equal(t, apperrors.CodeInternal, apperrors.KindOf(err))
	require.Equal(t, maxInviteCodeAttempts, attempts)
}

func TestInviteCodeIssueValidatesInput(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewInviteCodeService(db)
	require.NoError(t, err)

	_, err = svc.Issue(context.Background(), "f1", "admin", "U1")
	require.Equal(t, apperrors.CodeInvalidArgument, apperrors.KindOf(err))

	_, err = svc.FindActive(context.Background(), "12345")
	require.Equal(t, apperrors.CodeInvalidArgument, apperrors.KindOf(err))
}

func TestRandomInviteCodeShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := randomInviteCode()
		require.NoError(t, err)
		require.True(t, validator.IsInviteCode(code), code)
	}
}

func TestInviteCodeActiveValueIsUniqueAcrossFamilies(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewInviteCodeService(db, WithCodeGenerator(func() (string, error) {
		return "123456", nil
	}))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Issue(ctx, "f1", models.RoleParent, "U1")
	require.NoError(t, err)

	code := "123456"
	err = db.Create(&models.InviteCode{
		FamilyID:   "f2",
		Code:       code,
		Role:       models.RoleChild,
		Active:     true,
		ActiveCode: &code,
	}).Error
	require.Error(t, err)
	require.True(t, isUniqueConstraintError(err), err.Error())

	n, err := deactivateInviteCodes(db, "f1", []string{code})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	reused, err := svc.Issue(ctx, "f2", models.RoleChild, "U2")
	require.NoError(t, err)
	require.Equal(t, code, reused)

	found, err := svc.FindActive(ctx, code)
	require.NoError(t, err)
	require.Equal(t, "f2", found.FamilyID)

	var retired models.InviteCode
	require.NoError(t, db.Where("family_id = ? AND code = ?", "f1", code).First(&retired).Error)
	require.False(t, retired.Active)
	require.Nil(t, retired.ActiveCode)
}
