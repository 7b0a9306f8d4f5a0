package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MerchantStatus represents the state of a merchant account.
type MerchantStatus string

const (
	MerchantStatusActive   MerchantStatus = "ACTIVE"
	MerchantStatusInactive MerchantStatus = "INACTIVE"
)

// Balance is a merchant's three-part ledger snapshot.
// Invariant: Total == Available + Pending after every mutation.
type Balance struct {
	Available decimal.Decimal `json:"available"`
	Pending   decimal.Decimal `json:"pending"`
	Total     decimal.Decimal `json:"total"`
}

// Check verifies the balance invariant and that no field is negative.
func (b Balance) Check() error {
	if b.Available.IsNegative() {
		return fmt.Errorf("available balance is negative: %s", b.Available)
	}
	if b.Pending.IsNegative() {
		return fmt.Errorf("pending balance is negative: %s", b.Pending)
	}
	if b.Total.IsNegative() {
		return fmt.Errorf("total balance is negative: %s", b.Total)
	}
	if !b.Total.Equal(b.Available.Add(b.Pending)) {
		return fmt.Errorf("total %s != available %s + pending %s", b.Total, b.Available, b.Pending)
	}
	return nil
}

// Reserve moves amount from available into pending (payout creation).
func (b Balance) Reserve(amount decimal.Decimal) (Balance, error) {
	next := Balance{
		Available: b.Available.Sub(amount),
		Pending:   b.Pending.Add(amount),
		Total:     b.Total,
	}
	if err := next.Check(); err != nil {
		return Balance{}, err
	}
	return next, nil
}

// Settle removes a reserved amount permanently (payout succeeded).
// Available is untouched: the funds already left it at reserve time.
func (b Balance) Settle(amount decimal.Decimal) (Balance, error) {
	next := Balance{
		Available: b.Available,
		Pending:   b.Pending.Sub(amount),
		Total:     b.Total.Sub(amount),
	}
	if err := next.Check(); err != nil {
		return Balance{}, err
	}
	return next, nil
}

// Refund returns a reserved amount to available (payout failed or reversed).
func (b Balance) Refund(amount decimal.Decimal) (Balance, error) {
	next := Balance{
		Available: b.Available.Add(amount),
		Pending:   b.Pending.Sub(amount),
		Total:     b.Total,
	}
	if err := next.Check(); err != nil {
		return Balance{}, err
	}
	return next, nil
}

// Adjust applies a signed correction to available (balance-sync reconciliation).
func (b Balance) Adjust(delta decimal.Decimal) (Balance, error) {
	next := Balance{
		Available: b.Available.Add(delta),
		Pending:   b.Pending,
		Total:     b.Total.Add(delta),
	}
	if err := next.Check(); err != nil {
		return Balance{}, err
	}
	return next, nil
}

// Merchant represents a platform tenant owning beneficiaries, payouts and a ledger.
type Merchant struct {
	ID               uuid.UUID      `json:"id"`
	MerchantNo       string         `json:"merchant_no"` // SilkPay mId
	Name             string         `json:"name"`
	Email            string         `json:"email"`
	PasswordHash     string         `json:"-"` // Never expose
	GatewaySecretEnc string         `json:"-"` // Encrypted SilkPay secret, never expose
	Status           MerchantStatus `json:"status"`
	Balance          Balance        `json:"balance"`
	WhitelistIPs     []string       `json:"whitelist_ips,omitempty"`
	LastSyncedAt     *time.Time     `json:"last_synced_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// IsActive returns true if the merchant account is active.
func (m *Merchant) IsActive() bool {
	return m.Status == MerchantStatusActive
}

// IPAllowed reports whether ip may call dashboard endpoints.
// An empty whitelist allows all addresses.
func (m *Merchant) IPAllowed(ip string) bool {
	if len(m.WhitelistIPs) == 0 {
		return true
	}
	for _, allowed := range m.WhitelistIPs {
		if allowed == ip {
			return true
		}
	}
	return false
}
