package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of ledger movement.
type TransactionType string

const (
	TransactionTypePayout     TransactionType = "PAYOUT"
	TransactionTypeRefund     TransactionType = "REFUND"
	TransactionTypeFee        TransactionType = "FEE"
	TransactionTypeAdjustment TransactionType = "ADJUSTMENT"
)

// Transaction is an append-only audit record of a single balance change.
// BalanceBefore and BalanceAfter snapshot the affected balance field around
// the mutation; the row is immutable once written.
type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	MerchantID    uuid.UUID       `json:"merchant_id"`
	Type          TransactionType `json:"type"`
	PayoutID      *uuid.UUID      `json:"payout_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Description   string          `json:"description"`
	ReferenceNo   *string         `json:"reference_no,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
