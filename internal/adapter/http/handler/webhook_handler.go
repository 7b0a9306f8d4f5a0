package handler

import (
	"bytes"
	"io"
	"net/http"

	"merchant-payout-platform/internal/adapter/http/dto"
	"merchant-payout-platform/internal/core/ports"
	"merchant-payout-platform/pkg/apperror"
	"merchant-payout-platform/pkg/response"

	"github.com/gin-gonic/gin"
)

// WebhookHandler receives SilkPay status callbacks.
type WebhookHandler struct {
	payoutSvc ports.PayoutService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(payoutSvc ports.PayoutService) *WebhookHandler {
	return &WebhookHandler{payoutSvc: payoutSvc}
}

// Receive handles POST /api/webhook/silkpay. The gateway retries until it
// reads the literal body "OK", so every accepted callback must answer
// exactly that.
func (h *WebhookHandler) Receive(c *gin.Context) {
	// The raw body is stored alongside the payout, so capture it before
	// binding consumes the reader.
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("unreadable request body"))
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	var payload dto.WebhookPayload
	if err := c.ShouldBind(&payload); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	err = h.payoutSvc.HandleWebhook(c.Request.Context(), ports.WebhookParams{
		MerchantNo: payload.MerchantNo,
		OutTradeNo: payload.OutTradeNo,
		Amount:     payload.Amount,
		Timestamp:  payload.Timestamp.String(),
		Status:     payload.Status,
		Message:    payload.Message,
		Sign:       payload.Sign,
		Raw:        raw,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.String(http.StatusOK, "OK")
}
