package handler

import (
	"merchant-payout-platform/internal/adapter/http/dto"
	"merchant-payout-platform/internal/adapter/http/middleware"
	"merchant-payout-platform/internal/core/ports"
	"merchant-payout-platform/pkg/apperror"
	"merchant-payout-platform/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PayoutHandler handles payout lifecycle endpoints.
type PayoutHandler struct {
	payoutSvc ports.PayoutService
}

// NewPayoutHandler creates a new PayoutHandler.
func NewPayoutHandler(payoutSvc ports.PayoutService) *PayoutHandler {
	return &PayoutHandler{payoutSvc: payoutSvc}
}

// merchantID returns the authenticated merchant id set by the JWT middleware.
func merchantID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(middleware.CtxMerchantID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// Create handles POST /api/v1/payouts.
func (h *PayoutHandler) Create(c *gin.Context) {
	mid, ok := merchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreatePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	params, err := req.ToParams(mid)
	if err != nil {
		response.Error(c, err)
		return
	}

	payout, err := h.payoutSvc.Create(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewPayoutResponse(payout))
}

// Get handles GET /api/v1/payouts/:id.
func (h *PayoutHandler) Get(c *gin.Context) {
	mid, ok := merchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	payoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("payout id must be a valid UUID"))
		return
	}

	payout, err := h.payoutSvc.Get(c.Request.Context(), payoutID, mid)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewPayoutResponse(payout))
}

// List handles GET /api/v1/payouts.
func (h *PayoutHandler) List(c *gin.Context) {
	mid, ok := merchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var q dto.ListPayoutsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	params, err := q.ToParams(mid)
	if err != nil {
		response.Error(c, err)
		return
	}

	payouts, total, err := h.payoutSvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.PayoutResponse, 0, len(payouts))
	for i := range payouts {
		items = append(items, dto.NewPayoutResponse(&payouts[i]))
	}
	response.OK(c, dto.NewListResponse(items, total, params.Page, params.PageSize))
}

// QueryStatus handles GET /api/v1/payouts/:id/status — forces a live
// gateway query and reconciles the stored payout.
func (h *PayoutHandler) QueryStatus(c *gin.Context) {
	mid, ok := merchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	payoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("payout id must be a valid UUID"))
		return
	}

	payout, err := h.payoutSvc.QueryStatus(c.Request.Context(), payoutID, mid)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewPayoutResponse(payout))
}
