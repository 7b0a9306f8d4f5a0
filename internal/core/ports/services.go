package ports

import (
	"context"
	"time"

	"merchant-payout-platform/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService computes and verifies SilkPay request signatures.
// Fields are concatenated in the operation-specific order, the secret is
// appended last, and the result is hashed to a lowercase hex digest.
type SignatureService interface {
	// Sign returns the digest for the ordered fields. Fails with a
	// validation error when any required field is empty.
	Sign(secret string, fields ...string) (string, error)
	// Verify recomputes the digest and compares it to provided,
	// case-insensitively and in constant time.
	Verify(secret string, provided string, fields ...string) (bool, error)
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(merchantID uuid.UUID, email string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	MerchantID uuid.UUID
	Email      string
}

// SyncGuard is the single-flight guard for the balance-sync cycle.
// Only one holder at a time; a second TryAcquire returns false until the
// lease is released or expires.
type SyncGuard interface {
	TryAcquire(ctx context.Context, ttl time.Duration) (bool, error)
	Release(ctx context.Context) error
}

// --- Gateway Port ---

// GatewayCredentials identifies the calling merchant to SilkPay.
type GatewayCredentials struct {
	MerchantNo string // mId
	SecretKey  string // plaintext signing secret, decrypted just for the call
}

// GatewayPayoutRequest holds the payout-creation parameters.
type GatewayPayoutRequest struct {
	OutTradeNo string
	Amount     decimal.Decimal
	BankNo     string
	IFSCCode   string
	UPIID      string
	Name       string
}

// GatewayData is the data envelope inside a gateway response.
type GatewayData struct {
	PayOrderID string `json:"payOrderId,omitempty"`
	Status     string `json:"status,omitempty"`
	Balance    string `json:"balance,omitempty"`
}

// GatewayResponse is a SilkPay response body. Business-level failure is
// carried in Status; only transport failure surfaces as an error.
type GatewayResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    GatewayData `json:"data"`
	Raw     []byte      `json:"-"`
}

// Accepted reports whether the gateway acknowledged the request.
func (r *GatewayResponse) Accepted() bool {
	return r.Status == "200"
}

// GatewayClient issues payout, status-query and balance calls to SilkPay.
// Transport failures (timeout, connection error, non-2xx) return
// GATEWAY_UNAVAILABLE; the client never retries on its own.
type GatewayClient interface {
	CreatePayout(ctx context.Context, creds GatewayCredentials, req GatewayPayoutRequest) (*GatewayResponse, error)
	QueryPayout(ctx context.Context, creds GatewayCredentials, outTradeNo string) (*GatewayResponse, error)
	GetBalance(ctx context.Context, creds GatewayCredentials) (*GatewayResponse, error)
}

// --- Service Ports (Business Logic) ---

// LedgerService owns all merchant balance mutations. Every method runs
// inside the caller's transaction, locks the merchant row, asserts the
// balance invariant and writes the paired ledger entry.
type LedgerService interface {
	Reserve(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, payoutID uuid.UUID, amount decimal.Decimal, referenceNo string) (domain.Balance, error)
	Settle(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, payoutID uuid.UUID, amount decimal.Decimal, referenceNo string) (domain.Balance, error)
	Refund(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, payoutID uuid.UUID, amount decimal.Decimal, referenceNo string) (domain.Balance, error)
	Adjust(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, delta decimal.Decimal, description string) (domain.Balance, error)
}

// CreatePayoutParams holds validated input for payout creation.
type CreatePayoutParams struct {
	MerchantID    uuid.UUID
	BeneficiaryID uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	Purpose       *string
	Notes         *string
}

// WebhookParams carries a parsed SilkPay status callback.
type WebhookParams struct {
	MerchantNo string
	OutTradeNo string
	Amount     string // 2-decimal string exactly as received (signed material)
	Timestamp  string
	Status     string
	Message    string
	Sign       string
	Raw        []byte
}

// PayoutService owns the payout lifecycle state machine.
type PayoutService interface {
	Create(ctx context.Context, params CreatePayoutParams) (*domain.Payout, error)
	Get(ctx context.Context, payoutID uuid.UUID, merchantID uuid.UUID) (*domain.Payout, error)
	List(ctx context.Context, params PayoutListParams) ([]domain.Payout, int64, error)
	// QueryStatus forces a live gateway query and reconciles the stored
	// payout if the status moved.
	QueryStatus(ctx context.Context, payoutID uuid.UUID, merchantID uuid.UUID) (*domain.Payout, error)
	// ApplyStatusUpdate is the compare-and-transition entry point shared by
	// the webhook and poll paths. Safe under concurrent invocation for the
	// same payout.
	ApplyStatusUpdate(ctx context.Context, payoutID uuid.UUID, newStatus domain.PayoutStatus, gatewayPayload []byte, message string) (*domain.Payout, error)
	// HandleWebhook verifies the callback signature, bumps receipt counters
	// and delegates to ApplyStatusUpdate.
	HandleWebhook(ctx context.Context, params WebhookParams) error
}

// BalanceService reads and reconciles merchant balances.
type BalanceService interface {
	GetBalance(ctx context.Context, merchantID uuid.UUID) (*domain.Merchant, error)
	// SyncMerchant pulls the authoritative gateway balance for one merchant
	// and reconciles the local snapshot through an ADJUSTMENT entry.
	SyncMerchant(ctx context.Context, merchantID uuid.UUID) (domain.Balance, error)
	// SyncAll runs one sync cycle over all active merchants under the
	// single-flight guard.
	SyncAll(ctx context.Context) error
}

// AuthService defines dashboard authentication.
type AuthService interface {
	Login(ctx context.Context, email, password string) (string, time.Time, error) // token, expiry, error
}
