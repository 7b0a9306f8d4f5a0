package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayoutStatus represents the lifecycle state of a payout.
//
// PENDING -> PROCESSING -> SUCCESS | FAILED | REVERSED.
// Terminal states are final; no transition leaves them.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "PENDING"
	PayoutStatusProcessing PayoutStatus = "PROCESSING"
	PayoutStatusSuccess    PayoutStatus = "SUCCESS"
	PayoutStatusFailed     PayoutStatus = "FAILED"
	PayoutStatusReversed   PayoutStatus = "REVERSED"
)

// ParsePayoutStatus normalizes a gateway-reported status string.
func ParsePayoutStatus(s string) (PayoutStatus, bool) {
	switch PayoutStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case PayoutStatusPending:
		return PayoutStatusPending, true
	case PayoutStatusProcessing:
		return PayoutStatusProcessing, true
	case PayoutStatusSuccess:
		return PayoutStatusSuccess, true
	case PayoutStatusFailed:
		return PayoutStatusFailed, true
	case PayoutStatusReversed:
		return PayoutStatusReversed, true
	}
	return "", false
}

// IsTerminal returns true for final payout states.
func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutStatusSuccess || s == PayoutStatusFailed || s == PayoutStatusReversed
}

// BeneficiarySnapshot freezes the payee details at creation time, so a
// later beneficiary edit cannot change what a historical payout shows.
type BeneficiarySnapshot struct {
	Name          string  `json:"name"`
	MaskedAccount string  `json:"masked_account"`
	IFSCCode      string  `json:"ifsc_code"`
	UPIID         *string `json:"upi_id,omitempty"`
}

// Payout is a single transfer request tracked through gateway processing.
type Payout struct {
	ID              uuid.UUID           `json:"id"`
	MerchantID      uuid.UUID           `json:"merchant_id"`
	BeneficiaryID   *uuid.UUID          `json:"beneficiary_id,omitempty"`
	OutTradeNo      string              `json:"out_trade_no"` // merchant-generated idempotency key
	GatewayOrderID  *string             `json:"gateway_order_id,omitempty"`
	Amount          decimal.Decimal     `json:"amount"`
	Currency        string              `json:"currency"`
	Status          PayoutStatus        `json:"status"`
	Beneficiary     BeneficiarySnapshot `json:"beneficiary"`
	GatewayResponse []byte              `json:"-"` // raw last gateway payload, stored verbatim
	WebhookReceived bool                `json:"webhook_received"`
	WebhookCount    int                 `json:"webhook_count"`
	LastWebhookAt   *time.Time          `json:"last_webhook_at,omitempty"`
	FailureReason   *string             `json:"failure_reason,omitempty"`
	Purpose         *string             `json:"purpose,omitempty"`
	Notes           *string             `json:"notes,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
}

// IsTerminal returns true if the payout reached a final state.
func (p *Payout) IsTerminal() bool {
	return p.Status.IsTerminal()
}
