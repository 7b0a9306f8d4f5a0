package ports

import (
	"context"
	"time"

	"merchant-payout-platform/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// MerchantRepository defines persistence operations for merchants.
// Methods accepting pgx.Tx are used inside transaction blocks for
// pessimistic locking.
type MerchantRepository interface {
	Create(ctx context.Context, merchant *domain.Merchant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
	GetByEmail(ctx context.Context, email string) (*domain.Merchant, error)
	GetByMerchantNo(ctx context.Context, merchantNo string) (*domain.Merchant, error)
	ListActive(ctx context.Context) ([]domain.Merchant, error)
	// GetByIDForUpdate locks the merchant row (SELECT ... FOR UPDATE) to
	// serialize ledger mutations per merchant.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Merchant, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance domain.Balance) error
	SetLastSyncedAt(ctx context.Context, id uuid.UUID, at time.Time) error
}

// BeneficiaryRepository defines persistence operations for beneficiaries.
type BeneficiaryRepository interface {
	Create(ctx context.Context, b *domain.Beneficiary) error
	// GetByID is scoped by merchant: a beneficiary is never visible to
	// another merchant.
	GetByID(ctx context.Context, id uuid.UUID, merchantID uuid.UUID) (*domain.Beneficiary, error)
	IncrementStats(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal, at time.Time) error
}

// PayoutRepository defines persistence operations for payouts.
type PayoutRepository interface {
	Create(ctx context.Context, tx pgx.Tx, p *domain.Payout) error
	GetByID(ctx context.Context, id uuid.UUID, merchantID uuid.UUID) (*domain.Payout, error)
	GetByOutTradeNo(ctx context.Context, outTradeNo string) (*domain.Payout, error)
	// GetByIDForUpdate locks the payout row so a webhook and a poll cannot
	// interleave a status transition.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payout, error)
	ExistsByOutTradeNo(ctx context.Context, outTradeNo string) (bool, error)
	Update(ctx context.Context, tx pgx.Tx, p *domain.Payout) error
	// RecordWebhook bumps the webhook receipt counters unconditionally,
	// outside any status transition.
	RecordWebhook(ctx context.Context, id uuid.UUID, at time.Time) error
	List(ctx context.Context, params PayoutListParams) ([]domain.Payout, int64, error)
}

// PayoutListParams holds filter + pagination for listing payouts.
type PayoutListParams struct {
	MerchantID    uuid.UUID
	Status        *domain.PayoutStatus
	BeneficiaryID *uuid.UUID
	Search        string // matches out_trade_no or snapshotted beneficiary name
	Page          int
	PageSize      int
}

// TransactionRepository defines persistence for ledger entries.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// TransactionListParams holds filter + pagination for listing ledger entries.
type TransactionListParams struct {
	MerchantID uuid.UUID
	Type       *domain.TransactionType
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
