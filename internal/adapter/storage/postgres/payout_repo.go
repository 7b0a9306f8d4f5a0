package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"merchant-payout-platform/internal/core/domain"
	"merchant-payout-platform/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const payoutColumns = `id, merchant_id, beneficiary_id, out_trade_no, gateway_order_id, amount, currency, status,
	beneficiary_name, beneficiary_account_masked, beneficiary_ifsc, beneficiary_upi,
	gateway_response, webhook_received, webhook_count, last_webhook_at,
	failure_reason, purpose, notes, created_at, updated_at, completed_at`

// PayoutRepo implements ports.PayoutRepository.
type PayoutRepo struct {
	pool Pool
}

// NewPayoutRepo creates a new PayoutRepo.
func NewPayoutRepo(pool Pool) *PayoutRepo {
	return &PayoutRepo{pool: pool}
}

// Create inserts a new payout within a database transaction.
func (r *PayoutRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Payout) error {
	query := `INSERT INTO payouts (id, merchant_id, beneficiary_id, out_trade_no, gateway_order_id, amount, currency, status,
		beneficiary_name, beneficiary_account_masked, beneficiary_ifsc, beneficiary_upi,
		gateway_response, webhook_received, webhook_count, failure_reason, purpose, notes, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	_, err := tx.Exec(ctx, query,
		p.ID, p.MerchantID, p.BeneficiaryID, p.OutTradeNo, p.GatewayOrderID,
		p.Amount, p.Currency, p.Status,
		p.Beneficiary.Name, p.Beneficiary.MaskedAccount, p.Beneficiary.IFSCCode, p.Beneficiary.UPIID,
		p.GatewayResponse, p.WebhookReceived, p.WebhookCount,
		p.FailureReason, p.Purpose, p.Notes,
		p.CreatedAt, p.UpdatedAt, p.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

// GetByID fetches a payout scoped to its owning merchant.
func (r *PayoutRepo) GetByID(ctx context.Context, id, merchantID uuid.UUID) (*domain.Payout, error) {
	query := fmt.Sprintf(`SELECT %s FROM payouts WHERE id = $1 AND merchant_id = $2`, payoutColumns)
	return scanPayout(r.pool.QueryRow(ctx, query, id, merchantID), "get payout by id")
}

// GetByOutTradeNo fetches a payout by its idempotency key.
func (r *PayoutRepo) GetByOutTradeNo(ctx context.Context, outTradeNo string) (*domain.Payout, error) {
	query := fmt.Sprintf(`SELECT %s FROM payouts WHERE out_trade_no = $1`, payoutColumns)
	return scanPayout(r.pool.QueryRow(ctx, query, outTradeNo), "get payout by out_trade_no")
}

// GetByIDForUpdate fetches a payout with pessimistic locking.
// This MUST be called within a transaction.
func (r *PayoutRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payout, error) {
	query := fmt.Sprintf(`SELECT %s FROM payouts WHERE id = $1 FOR UPDATE`, payoutColumns)
	return scanPayout(tx.QueryRow(ctx, query, id), "get payout for update")
}

// ExistsByOutTradeNo reports whether a payout already uses the key.
func (r *PayoutRepo) ExistsByOutTradeNo(ctx context.Context, outTradeNo string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM payouts WHERE out_trade_no = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, outTradeNo).Scan(&exists); err != nil {
		return false, fmt.Errorf("check out_trade_no exists: %w", err)
	}
	return exists, nil
}

// Update rewrites the mutable payout fields within a database transaction.
func (r *PayoutRepo) Update(ctx context.Context, tx pgx.Tx, p *domain.Payout) error {
	query := `UPDATE payouts
		SET status = $1, gateway_order_id = $2, gateway_response = $3,
		    failure_reason = $4, updated_at = $5, completed_at = $6
		WHERE id = $7`

	tag, err := tx.Exec(ctx, query,
		p.Status, p.GatewayOrderID, p.GatewayResponse,
		p.FailureReason, p.UpdatedAt, p.CompletedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update payout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout not found: %s", p.ID)
	}
	return nil
}

// RecordWebhook bumps the webhook receipt counters. Runs outside the status
// transaction so the receipt is kept even when the update is a no-op.
func (r *PayoutRepo) RecordWebhook(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE payouts
		SET webhook_received = TRUE, webhook_count = webhook_count + 1, last_webhook_at = $1
		WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("record webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout not found: %s", id)
	}
	return nil
}

// List fetches payouts with filtering and pagination.
func (r *PayoutRepo) List(ctx context.Context, params ports.PayoutListParams) ([]domain.Payout, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("merchant_id = $%d", argIdx))
	args = append(args, params.MerchantID)
	argIdx++

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.BeneficiaryID != nil {
		conditions = append(conditions, fmt.Sprintf("beneficiary_id = $%d", argIdx))
		args = append(args, *params.BeneficiaryID)
		argIdx++
	}
	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(out_trade_no ILIKE $%d OR beneficiary_name ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+params.Search+"%")
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM payouts %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payouts: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM payouts %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		payoutColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []domain.Payout
	for rows.Next() {
		var p domain.Payout
		if err := scanPayoutInto(rows, &p); err != nil {
			return nil, 0, fmt.Errorf("scan payout row: %w", err)
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate payout rows: %w", err)
	}
	return payouts, total, nil
}

func scanPayout(row pgx.Row, op string) (*domain.Payout, error) {
	p := &domain.Payout{}
	err := row.Scan(
		&p.ID, &p.MerchantID, &p.BeneficiaryID, &p.OutTradeNo, &p.GatewayOrderID,
		&p.Amount, &p.Currency, &p.Status,
		&p.Beneficiary.Name, &p.Beneficiary.MaskedAccount, &p.Beneficiary.IFSCCode, &p.Beneficiary.UPIID,
		&p.GatewayResponse, &p.WebhookReceived, &p.WebhookCount, &p.LastWebhookAt,
		&p.FailureReason, &p.Purpose, &p.Notes,
		&p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func scanPayoutInto(rows pgx.Rows, p *domain.Payout) error {
	return rows.Scan(
		&p.ID, &p.MerchantID, &p.BeneficiaryID, &p.OutTradeNo, &p.GatewayOrderID,
		&p.Amount, &p.Currency, &p.Status,
		&p.Beneficiary.Name, &p.Beneficiary.MaskedAccount, &p.Beneficiary.IFSCCode, &p.Beneficiary.UPIID,
		&p.GatewayResponse, &p.WebhookReceived, &p.WebhookCount, &p.LastWebhookAt,
		&p.FailureReason, &p.Purpose, &p.Notes,
		&p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
}
