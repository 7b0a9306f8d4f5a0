package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"merchant-payout-platform/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const beneficiaryColumns = `id, merchant_id, name, account_number_enc, account_last4, ifsc_code, upi_id,
	status, total_payouts, total_amount, last_payout_at, created_at, updated_at`

// BeneficiaryRepo implements ports.BeneficiaryRepository.
type BeneficiaryRepo struct {
	pool Pool
}

// NewBeneficiaryRepo creates a new BeneficiaryRepo.
func NewBeneficiaryRepo(pool Pool) *BeneficiaryRepo {
	return &BeneficiaryRepo{pool: pool}
}

// Create inserts a new beneficiary into the database.
func (r *BeneficiaryRepo) Create(ctx context.Context, b *domain.Beneficiary) error {
	query := `INSERT INTO beneficiaries (id, merchant_id, name, account_number_enc, account_last4, ifsc_code, upi_id,
		status, total_payouts, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		b.ID, b.MerchantID, b.Name, b.AccountNoEnc, b.AccountLast4,
		b.IFSCCode, b.UPIID, b.Status, b.TotalPayouts, b.TotalAmount,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert beneficiary: %w", err)
	}
	return nil
}

// GetByID fetches a beneficiary scoped to its owning merchant.
func (r *BeneficiaryRepo) GetByID(ctx context.Context, id, merchantID uuid.UUID) (*domain.Beneficiary, error) {
	query := fmt.Sprintf(`SELECT %s FROM beneficiaries WHERE id = $1 AND merchant_id = $2`, beneficiaryColumns)

	b := &domain.Beneficiary{}
	err := r.pool.QueryRow(ctx, query, id, merchantID).Scan(
		&b.ID, &b.MerchantID, &b.Name, &b.AccountNoEnc, &b.AccountLast4,
		&b.IFSCCode, &b.UPIID, &b.Status, &b.TotalPayouts, &b.TotalAmount,
		&b.LastPayoutAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get beneficiary by id: %w", err)
	}
	return b, nil
}

// IncrementStats bumps the payout aggregates after a successful payout.
func (r *BeneficiaryRepo) IncrementStats(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal, at time.Time) error {
	query := `UPDATE beneficiaries
		SET total_payouts = total_payouts + 1,
		    total_amount = total_amount + $1,
		    last_payout_at = $2,
		    updated_at = NOW()
		WHERE id = $3`

	tag, err := tx.Exec(ctx, query, amount, at, id)
	if err != nil {
		return fmt.Errorf("increment beneficiary stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("beneficiary not found: %s", id)
	}
	return nil
}
