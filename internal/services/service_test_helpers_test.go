package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/yaruyo/internal/database/testutil"
	"github.com/charlesng35/yaruyo/internal/models"
	"github.com/charlesng35/yaruyo/internal/push"
)

var testNow = time.Date(2025, 1, 10, 10, 28, 0, 0, time.UTC) // 19:28 JST

type testEnv struct {
	db        *gorm.DB
	sender    *push.Recorder
	users     *UserService
	codes     *InviteCodeService
	dispatch  *DispatchService
	families  *FamilyService
	plans     *PlanService
	reactions *ReactionService
	reminders *ReminderService
	drafts    *DraftService
}

// sequentialCodes hands out 100000, 100001, ... so tests never collide.
func sequentialCodes() func() (string, error) {
	var (
		mu   sync.Mutex
		next = 100000
	)
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := fmt.Sprintf("%06d", next)
		next++
		return code, nil
	}
}

func newTestEnv(t *testing.T, familyOpts ...FamilyOption) *testEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	sender := push.NewRecorder()
	clock := func() time.Time { return testNow }

	users, err := NewUserService(db)
	require.NoError(t, err)
	codes, err := NewInviteCodeService(db, WithCodeGenerator(sequentialCodes()))
	require.NoError(t, err)
	dispatch, err := NewDispatchService(db, sender, WithDispatchClock(clock), WithDispatchConcurrency(2))
	require.NoError(t, err)
	families, err := NewFamilyService(db, codes, append([]FamilyOption{WithFamilyClock(clock)}, familyOpts...)...)
	require.NoError(t, err)
	plans, err := NewPlanService(db, dispatch, WithPlanClock(clock))
	require.NoError(t, err)
	reactions, err := NewReactionService(db, dispatch)
	require.NoError(t, err)
	reminders, err := NewReminderService(db, dispatch)
	require.NoError(t, err)
	drafts, err := NewDraftService(db, dispatch, WithDraftClock(clock))
	require.NoError(t, err)

	return &testEnv{
		db:        db,
		sender:    sender,
		users:     users,
		codes:     codes,
		dispatch:  dispatch,
		families:  families,
		plans:     plans,
		reactions: reactions,
		reminders: reminders,
		drafts:    drafts,
	}
}

func (e *testEnv) mustUser(t *testing.T, id, name string) *models.User {
	t.Helper()
	user, err := e.users.Ensure(context.Background(), Profile{UserID: id, DisplayName: name})
	require.NoError(t, err)
	return user
}

// mustFamily creates a family owned by parentID and joins childIDs as children.
func (e *testEnv) mustFamily(t *testing.T, parentID string, childIDs ...string) *FamilyCreated {
	t.Helper()
	ctx := context.Background()

	created, err := e.families.Create(ctx, parentID)
	require.NoError(t, err)
	for _, child := range childIDs {
		_, err := e.families.JoinByCode(ctx, child, created.ChildCode)
		require.NoError(t, err)
	}
	return created
}

func (e *testEnv) reloadUser(t *testing.T, id string) *models.User {
	t.Helper()
	var user models.User
	require.NoError(t, e.db.Take(&user, "id = ?", id).Error)
	return &user
}

func (e *testEnv) logStatus(t *testing.T, dedupeKey string) string {
	t.Helper()
	var entry models.NotificationLog
	require.NoError(t, e.db.Take(&entry, "id = ?", models.NotificationLogID(dedupeKey)).Error)
	return entry.Status
}
