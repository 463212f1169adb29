package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/yaruyo/internal/handlers/testutil"
	"github.com/charlesng35/yaruyo/internal/models"
)

type profilePayload struct {
	ID                   string  `json:"id"`
	DisplayName          string  `json:"display_name"`
	AppDisplayName       *string `json:"app_display_name"`
	FamilyID             *string `json:"family_id"`
	NotifyOnPlan         bool    `json:"notify_on_plan"`
	NotifyOnRecord       bool    `json:"notify_on_record"`
	StartReminderEnabled bool    `json:"start_reminder_enabled"`
	HasPushToken         bool    `json:"has_push_token"`
}

func TestProfileHandler_MeEnsuresUser(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Token("U1", "たろう")

	w := env.Request(http.MethodGet, "/api/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var me profilePayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &me)
	require.Equal(t, "U1", me.ID)
	require.Equal(t, "たろう", me.DisplayName)
	require.Nil(t, me.FamilyID)
	require.True(t, me.NotifyOnPlan)
	require.True(t, me.NotifyOnRecord)
	require.True(t, me.StartReminderEnabled)
	require.False(t, me.HasPushToken)

	var count int64
	require.NoError(t, env.DB.Model(&models.User{}).Where("id = ?", "U1").Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestProfileHandler_UpdateSettings(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Token("U1", "たろう")

	w := env.Request(http.MethodPatch, "/api/me/settings", map[string]any{
		"app_display_name": " パパ ",
		"notify_on_plan":   false,
		"push_token":       "fcm-token",
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var me profilePayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &me)
	require.Equal(t, "パパ", me.DisplayName)
	require.False(t, me.NotifyOnPlan)
	require.True(t, me.NotifyOnRecord)
	require.True(t, me.HasPushToken)
	require.NotContains(t, w.Body.String(), "fcm-token")

	w = env.Request(http.MethodPatch, "/api/me/settings", map[string]any{"app_display_name": ""}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &me)
	require.Nil(t, me.AppDisplayName)
	require.Equal(t, "たろう", me.DisplayName)
}

func TestProfileHandler_RejectsLongDisplayName(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Token("U1", "")

	w := env.Request(http.MethodPatch, "/api/me/settings", map[string]any{
		"app_display_name": strings.Repeat("あ", 21),
	}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfileHandler_InvalidJSON(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Token("U1", "")

	w := env.Request(http.MethodPatch, "/api/me/settings", "not-an-object", token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid JSON payload", testutil.DecodeResponse(t, w).Error.Message)
}
