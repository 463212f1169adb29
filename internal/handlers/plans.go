package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/yaruyo/internal/services"
	"github.com/charlesng35/yaruyo/pkg/response"
)

// PlanHandler exposes the declare / record / cancel lifecycle of plans.
type PlanHandler struct {
	plans *services.PlanService
}

// NewPlanHandler configures a plan handler.
func NewPlanHandler(plans *services.PlanService) *PlanHandler {
	return &PlanHandler{plans: plans}
}

type declarePlanRequest struct {
	Subjects    []string   `json:"subjects" validate:"required,min=1,max=10,dive,notblank,max=32"`
	StartAt     *time.Time `json:"start_at"`
	AmountType  *string    `json:"amount_type" validate:"omitempty,oneof=time page"`
	AmountValue *float64   `json:"amount_value" validate:"omitempty,min=0"`
	ContentMemo *string    `json:"content_memo"`
}

type recordPlanRequest struct {
	Result string  `json:"result" validate:"required,oneof=light as_planned extra"`
	Memo   *string `json:"memo"`
}

// POST /api/plans
func (h *PlanHandler) Declare(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	var req declarePlanRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.plans.Declare(requestContext(c), uid, services.DeclareInput{
		Subjects:    req.Subjects,
		StartAt:     req.StartAt,
		AmountType:  req.AmountType,
		AmountValue: req.AmountValue,
		ContentMemo: req.ContentMemo,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, result)
}

// POST /api/plans/:id/record
func (h *PlanHandler) Record(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	var req recordPlanRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.plans.Record(requestContext(c), uid, c.Param("id"), req.Result, req.Memo)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if result.Existing {
		status = http.StatusOK
	}
	response.Success(c, status, result)
}

// POST /api/plans/:id/cancel
func (h *PlanHandler) Cancel(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	plan, err := h.plans.Cancel(requestContext(c), uid, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, plan)
}
