package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/yaruyo/internal/models"
	"github.com/charlesng35/yaruyo/internal/services"
	"github.com/charlesng35/yaruyo/pkg/response"
)

// ProfileHandler exposes the caller's own account and notification settings.
type ProfileHandler struct {
	users *services.UserService
}

// NewProfileHandler configures a profile handler.
func NewProfileHandler(users *services.UserService) *ProfileHandler {
	return &ProfileHandler{users: users}
}

type updateSettingsRequest struct {
	AppDisplayName       *string `json:"app_display_name" validate:"omitempty,max=64"`
	NotifyOnPlan         *bool   `json:"notify_on_plan"`
	NotifyOnRecord       *bool   `json:"notify_on_record"`
	StartReminderEnabled *bool   `json:"start_reminder_enabled"`
	PushToken            *string `json:"push_token" validate:"omitempty,max=255"`
}

type profileResponse struct {
	ID                   string    `json:"id"`
	DisplayName          string    `json:"display_name"`
	LineDisplayName      string    `json:"line_display_name"`
	AppDisplayName       *string   `json:"app_display_name"`
	PictureURL           *string   `json:"picture_url"`
	FamilyID             *string   `json:"family_id"`
	NotifyOnPlan         bool      `json:"notify_on_plan"`
	NotifyOnRecord       bool      `json:"notify_on_record"`
	StartReminderEnabled bool      `json:"start_reminder_enabled"`
	HasPushToken         bool      `json:"has_push_token"`
	CreatedAt            time.Time `json:"created_at"`
}

func newProfileResponse(u *models.User) profileResponse {
	return profileResponse{
		ID:                   u.ID,
		DisplayName:          u.DisplayName(),
		LineDisplayName:      u.LineDisplayName,
		AppDisplayName:       u.AppDisplayName,
		PictureURL:           u.PictureURL,
		FamilyID:             u.FamilyID,
		NotifyOnPlan:         u.NotifyOnPlan,
		NotifyOnRecord:       u.NotifyOnRecord,
		StartReminderEnabled: u.StartReminderEnabled,
		HasPushToken:         u.PushToken != nil && *u.PushToken != "",
		CreatedAt:            u.CreatedAt,
	}
}

// GET /api/me
func (h *ProfileHandler) Me(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.users.Get(requestContext(c), uid)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, newProfileResponse(user))
}

// PATCH /api/me/settings
func (h *ProfileHandler) UpdateSettings(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	var req updateSettingsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.UpdateSettings(requestContext(c), uid, services.SettingsInput{
		AppDisplayName:       req.AppDisplayName,
		NotifyOnPlan:         req.NotifyOnPlan,
		NotifyOnRecord:       req.NotifyOnRecord,
		StartReminderEnabled: req.StartReminderEnabled,
		PushToken:            req.PushToken,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, newProfileResponse(user))
}
