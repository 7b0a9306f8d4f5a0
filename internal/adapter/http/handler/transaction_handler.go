package handler

import (
	"merchant-payout-platform/internal/adapter/http/dto"
	"merchant-payout-platform/internal/core/ports"
	"merchant-payout-platform/pkg/apperror"
	"merchant-payout-platform/pkg/response"

	"github.com/gin-gonic/gin"
)

// TransactionHandler serves the merchant's ledger history.
type TransactionHandler struct {
	txRepo ports.TransactionRepository
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(txRepo ports.TransactionRepository) *TransactionHandler {
	return &TransactionHandler{txRepo: txRepo}
}

// List handles GET /api/v1/transactions.
func (h *TransactionHandler) List(c *gin.Context) {
	mid, ok := merchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var q dto.ListTransactionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	params, err := q.ToParams(mid)
	if err != nil {
		response.Error(c, err)
		return
	}

	transactions, total, err := h.txRepo.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(transactions))
	for i := range transactions {
		items = append(items, dto.NewTransactionResponse(&transactions[i]))
	}
	response.OK(c, dto.NewListResponse(items, total, params.Page, params.PageSize))
}
