package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BeneficiaryStatus represents the state of a registered payee.
type BeneficiaryStatus string

const (
	BeneficiaryStatusActive   BeneficiaryStatus = "ACTIVE"
	BeneficiaryStatusInactive BeneficiaryStatus = "INACTIVE"
)

// Beneficiary is a payee registered by a merchant.
// The bank account number is stored encrypted; AccountLast4 allows masking
// without a decrypt round-trip.
type Beneficiary struct {
	ID            uuid.UUID         `json:"id"`
	MerchantID    uuid.UUID         `json:"merchant_id"`
	Name          string            `json:"name"`
	AccountNoEnc  string            `json:"-"`
	AccountLast4  string            `json:"account_last4"`
	IFSCCode      string            `json:"ifsc_code"`
	UPIID         *string           `json:"upi_id,omitempty"`
	Status        BeneficiaryStatus `json:"status"`
	TotalPayouts  int64             `json:"total_payouts"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
	LastPayoutAt  *time.Time        `json:"last_payout_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// IsActive returns true if the beneficiary can receive payouts.
func (b *Beneficiary) IsActive() bool {
	return b.Status == BeneficiaryStatusActive
}

// MaskedAccount returns the account number with all but the last four
// digits hidden.
func (b *Beneficiary) MaskedAccount() string {
	return "****" + b.AccountLast4
}
