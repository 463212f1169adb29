package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/yaruyo/internal/services"
	"github.com/charlesng35/yaruyo/pkg/response"
)

// FamilyHandler exposes family lifecycle endpoints.
type FamilyHandler struct {
	families *services.FamilyService
}

// NewFamilyHandler configures a family handler.
func NewFamilyHandler(families *services.FamilyService) *FamilyHandler {
	return &FamilyHandler{families: families}
}

type joinFamilyRequest struct {
	Code string `json:"code" validate:"required,invitecode"`
}

type renameFamilyRequest struct {
	Name string `json:"name" validate:"required,notblank"`
}

// GET /api/family
func (h *FamilyHandler) Current(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	view, err := h.families.Current(requestContext(c), uid)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// POST /api/family
func (h *FamilyHandler) Create(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	created, err := h.families.Create(requestContext(c), uid)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, created)
}

// POST /api/family/join
func (h *FamilyHandler) Join(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	var req joinFamilyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	joined, err := h.families.JoinByCode(requestContext(c), uid, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, joined)
}

// POST /api/family/leave
func (h *FamilyHandler) Leave(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.families.Leave(requestContext(c), uid); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"left": true})
}

// POST /api/family/close
func (h *FamilyHandler) Close(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	result, err := h.families.Close(requestContext(c), uid)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// PATCH /api/family/name
func (h *FamilyHandler) Rename(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	var req renameFamilyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	family, err := h.families.UpdateName(requestContext(c), uid, req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, family)
}
