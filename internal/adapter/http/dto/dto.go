package dto

import (
	"encoding/json"
	"time"

	"merchant-payout-platform/internal/core/domain"
	"merchant-payout-platform/internal/core/ports"
	"merchant-payout-platform/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoginRequest is the request body for dashboard login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"` // Unix timestamp
}

// CreatePayoutRequest is the request body for payout creation.
// Amount is a decimal string ("2500.00") to avoid float rounding on the wire.
type CreatePayoutRequest struct {
	BeneficiaryID string  `json:"beneficiary_id" binding:"required,uuid"`
	Amount        string  `json:"amount" binding:"required"`
	Currency      string  `json:"currency" binding:"omitempty,len=3"`
	Purpose       *string `json:"purpose,omitempty" binding:"omitempty,max=200"`
	Notes         *string `json:"notes,omitempty" binding:"omitempty,max=500"`
}

// ToParams validates and converts the request into service input.
func (r *CreatePayoutRequest) ToParams(merchantID uuid.UUID) (ports.CreatePayoutParams, error) {
	beneficiaryID, err := uuid.Parse(r.BeneficiaryID)
	if err != nil {
		return ports.CreatePayoutParams{}, apperror.Validation("beneficiary_id must be a valid UUID")
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return ports.CreatePayoutParams{}, apperror.Validation("amount must be a decimal string")
	}
	if amount.Exponent() < -2 {
		return ports.CreatePayoutParams{}, apperror.Validation("amount must have at most 2 decimal places")
	}
	currency := r.Currency
	if currency == "" {
		currency = "INR"
	}
	return ports.CreatePayoutParams{
		MerchantID:    merchantID,
		BeneficiaryID: beneficiaryID,
		Amount:        amount,
		Currency:      currency,
		Purpose:       r.Purpose,
		Notes:         r.Notes,
	}, nil
}

// WebhookPayload is a SilkPay status callback. The gateway posts JSON, but
// form-encoded deliveries bind too. Timestamp is a json.Number so the
// gateway's numeric millisecond epoch and a form string both decode; its
// wire text feeds signature verification unchanged.
type WebhookPayload struct {
	MerchantNo string      `json:"mId" form:"mId" binding:"required"`
	OutTradeNo string      `json:"mOrderId" form:"mOrderId" binding:"required"`
	Amount     string      `json:"amount" form:"amount" binding:"required"`
	Timestamp  json.Number `json:"timestamp" form:"timestamp" binding:"required"`
	Status     string      `json:"status" form:"status" binding:"required"`
	Message    string      `json:"message" form:"message"`
	Sign       string      `json:"sign" form:"sign" binding:"required"`
}

// ListPayoutsQuery holds filter + pagination query params for payout listing.
type ListPayoutsQuery struct {
	Status        string `form:"status"`
	BeneficiaryID string `form:"beneficiary_id" binding:"omitempty,uuid"`
	Search        string `form:"search" binding:"omitempty,max=100"`
	Page          int    `form:"page,default=1" binding:"omitempty,min=1"`
	PageSize      int    `form:"page_size,default=20" binding:"omitempty,min=1,max=100"`
}

// ToParams validates and converts the query into repository input.
func (q *ListPayoutsQuery) ToParams(merchantID uuid.UUID) (ports.PayoutListParams, error) {
	params := ports.PayoutListParams{
		MerchantID: merchantID,
		Search:     q.Search,
		Page:       q.Page,
		PageSize:   q.PageSize,
	}
	if q.Status != "" {
		status, ok := domain.ParsePayoutStatus(q.Status)
		if !ok {
			return ports.PayoutListParams{}, apperror.Validation("unknown payout status")
		}
		params.Status = &status
	}
	if q.BeneficiaryID != "" {
		id, err := uuid.Parse(q.BeneficiaryID)
		if err != nil {
			return ports.PayoutListParams{}, apperror.Validation("beneficiary_id must be a valid UUID")
		}
		params.BeneficiaryID = &id
	}
	return params, nil
}

// ListTransactionsQuery holds filter + pagination for the ledger listing.
// From/To are RFC 3339 timestamps.
type ListTransactionsQuery struct {
	Type     string `form:"type"`
	From     string `form:"from"`
	To       string `form:"to"`
	Page     int    `form:"page,default=1" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size,default=20" binding:"omitempty,min=1,max=100"`
}

// ToParams validates and converts the query into repository input.
func (q *ListTransactionsQuery) ToParams(merchantID uuid.UUID) (ports.TransactionListParams, error) {
	params := ports.TransactionListParams{
		MerchantID: merchantID,
		Page:       q.Page,
		PageSize:   q.PageSize,
	}
	if q.Type != "" {
		switch t := domain.TransactionType(q.Type); t {
		case domain.TransactionTypePayout, domain.TransactionTypeRefund,
			domain.TransactionTypeFee, domain.TransactionTypeAdjustment:
			params.Type = &t
		default:
			return ports.TransactionListParams{}, apperror.Validation("unknown transaction type")
		}
	}
	if q.From != "" {
		from, err := time.Parse(time.RFC3339, q.From)
		if err != nil {
			return ports.TransactionListParams{}, apperror.Validation("from must be an RFC 3339 timestamp")
		}
		params.From = &from
	}
	if q.To != "" {
		to, err := time.Parse(time.RFC3339, q.To)
		if err != nil {
			return ports.TransactionListParams{}, apperror.Validation("to must be an RFC 3339 timestamp")
		}
		params.To = &to
	}
	return params, nil
}

// PayoutResponse is the API projection of a payout.
type PayoutResponse struct {
	ID              string                     `json:"id"`
	OutTradeNo      string                     `json:"out_trade_no"`
	GatewayOrderID  *string                    `json:"gateway_order_id,omitempty"`
	Amount          string                     `json:"amount"`
	Currency        string                     `json:"currency"`
	Status          string                     `json:"status"`
	Beneficiary     domain.BeneficiarySnapshot `json:"beneficiary"`
	WebhookReceived bool                       `json:"webhook_received"`
	FailureReason   *string                    `json:"failure_reason,omitempty"`
	Purpose         *string                    `json:"purpose,omitempty"`
	Notes           *string                    `json:"notes,omitempty"`
	CreatedAt       time.Time                  `json:"created_at"`
	CompletedAt     *time.Time                 `json:"completed_at,omitempty"`
}

// NewPayoutResponse maps a domain payout to its API projection.
func NewPayoutResponse(p *domain.Payout) PayoutResponse {
	return PayoutResponse{
		ID:              p.ID.String(),
		OutTradeNo:      p.OutTradeNo,
		GatewayOrderID:  p.GatewayOrderID,
		Amount:          p.Amount.StringFixed(2),
		Currency:        p.Currency,
		Status:          string(p.Status),
		Beneficiary:     p.Beneficiary,
		WebhookReceived: p.WebhookReceived,
		FailureReason:   p.FailureReason,
		Purpose:         p.Purpose,
		Notes:           p.Notes,
		CreatedAt:       p.CreatedAt,
		CompletedAt:     p.CompletedAt,
	}
}

// TransactionResponse is the API projection of a ledger entry.
type TransactionResponse struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	PayoutID      *string   `json:"payout_id,omitempty"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	BalanceBefore string    `json:"balance_before"`
	BalanceAfter  string    `json:"balance_after"`
	Description   string    `json:"description"`
	ReferenceNo   *string   `json:"reference_no,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewTransactionResponse maps a domain transaction to its API projection.
func NewTransactionResponse(t *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:            t.ID.String(),
		Type:          string(t.Type),
		Amount:        t.Amount.StringFixed(2),
		Currency:      t.Currency,
		BalanceBefore: t.BalanceBefore.StringFixed(2),
		BalanceAfter:  t.BalanceAfter.StringFixed(2),
		Description:   t.Description,
		ReferenceNo:   t.ReferenceNo,
		CreatedAt:     t.CreatedAt,
	}
	if t.PayoutID != nil {
		id := t.PayoutID.String()
		resp.PayoutID = &id
	}
	return resp
}

// BalanceResponse is the API projection of a merchant balance snapshot.
type BalanceResponse struct {
	Available    string     `json:"available"`
	Pending      string     `json:"pending"`
	Total        string     `json:"total"`
	Currency     string     `json:"currency"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// NewBalanceResponse maps a merchant's balance to its API projection.
func NewBalanceResponse(m *domain.Merchant) BalanceResponse {
	return BalanceResponse{
		Available:    m.Balance.Available.StringFixed(2),
		Pending:      m.Balance.Pending.StringFixed(2),
		Total:        m.Balance.Total.StringFixed(2),
		Currency:     "INR",
		LastSyncedAt: m.LastSyncedAt,
	}
}

// ListResponse wraps a paginated collection.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewListResponse builds the pagination envelope.
func NewListResponse[T any](items []T, total int64, page, pageSize int) ListResponse[T] {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return ListResponse[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
