package handler

import (
	"merchant-payout-platform/internal/adapter/http/dto"
	"merchant-payout-platform/internal/core/ports"
	"merchant-payout-platform/pkg/apperror"
	"merchant-payout-platform/pkg/response"

	"github.com/gin-gonic/gin"
)

// BalanceHandler handles balance read and sync endpoints.
type BalanceHandler struct {
	balanceSvc ports.BalanceService
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(balanceSvc ports.BalanceService) *BalanceHandler {
	return &BalanceHandler{balanceSvc: balanceSvc}
}

// Get handles GET /api/v1/balance.
func (h *BalanceHandler) Get(c *gin.Context) {
	mid, ok := merchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	merchant, err := h.balanceSvc.GetBalance(c.Request.Context(), mid)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewBalanceResponse(merchant))
}

// Sync handles POST /api/v1/balance/sync — on-demand reconciliation
// against the gateway's authoritative balance.
func (h *BalanceHandler) Sync(c *gin.Context) {
	mid, ok := merchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	balance, err := h.balanceSvc.SyncMerchant(c.Request.Context(), mid)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{
		"available": balance.Available.StringFixed(2),
		"pending":   balance.Pending.StringFixed(2),
		"total":     balance.Total.StringFixed(2),
	})
}
