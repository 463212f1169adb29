package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/yaruyo/internal/services"
	"github.com/charlesng35/yaruyo/pkg/response"
)

// ReactionHandler exposes likes on plans and records.
type ReactionHandler struct {
	reactions *services.ReactionService
}

// NewReactionHandler configures a reaction handler.
func NewReactionHandler(reactions *services.ReactionService) *ReactionHandler {
	return &ReactionHandler{reactions: reactions}
}

type likeRequest struct {
	TargetType string `json:"target_type" validate:"required,oneof=plan record"`
	TargetID   string `json:"target_id" validate:"required,notblank"`
}

type myReactionsRequest struct {
	TargetType string   `json:"target_type" validate:"required,oneof=plan record"`
	TargetIDs  []string `json:"target_ids"`
}

// POST /api/reactions/like
func (h *ReactionHandler) Like(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	var req likeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.reactions.Like(requestContext(c), uid, req.TargetType, req.TargetID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// POST /api/reactions/mine
func (h *ReactionHandler) Mine(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	var req myReactionsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	liked, err := h.reactions.ListMine(requestContext(c), uid, req.TargetType, req.TargetIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"liked_ids": liked})
}
