package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"merchant-payout-platform/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const merchantColumns = `id, merchant_no, name, email, password_hash, gateway_secret_enc, status,
	balance_available, balance_pending, balance_total, whitelist_ips, last_synced_at, created_at, updated_at`

// MerchantRepo implements ports.MerchantRepository.
type MerchantRepo struct {
	pool Pool
}

// NewMerchantRepo creates a new MerchantRepo.
func NewMerchantRepo(pool Pool) *MerchantRepo {
	return &MerchantRepo{pool: pool}
}

// Create inserts a new merchant into the database.
func (r *MerchantRepo) Create(ctx context.Context, m *domain.Merchant) error {
	query := `INSERT INTO merchants (id, merchant_no, name, email, password_hash, gateway_secret_enc, status,
		balance_available, balance_pending, balance_total, whitelist_ips, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		m.ID, m.MerchantNo, m.Name, m.Email,
		m.PasswordHash, m.GatewaySecretEnc, m.Status,
		m.Balance.Available, m.Balance.Pending, m.Balance.Total,
		m.WhitelistIPs, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert merchant: %w", err)
	}
	return nil
}

// GetByID fetches a merchant by its UUID.
func (r *MerchantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	query := fmt.Sprintf(`SELECT %s FROM merchants WHERE id = $1`, merchantColumns)
	return scanMerchant(r.pool.QueryRow(ctx, query, id), "get merchant by id")
}

// GetByEmail fetches a merchant by its login email.
func (r *MerchantRepo) GetByEmail(ctx context.Context, email string) (*domain.Merchant, error) {
	query := fmt.Sprintf(`SELECT %s FROM merchants WHERE email = $1`, merchantColumns)
	return scanMerchant(r.pool.QueryRow(ctx, query, email), "get merchant by email")
}

// GetByMerchantNo fetches a merchant by its gateway merchant number.
func (r *MerchantRepo) GetByMerchantNo(ctx context.Context, merchantNo string) (*domain.Merchant, error) {
	query := fmt.Sprintf(`SELECT %s FROM merchants WHERE merchant_no = $1`, merchantColumns)
	return scanMerchant(r.pool.QueryRow(ctx, query, merchantNo), "get merchant by merchant_no")
}

// ListActive fetches all ACTIVE merchants ordered by merchant number.
func (r *MerchantRepo) ListActive(ctx context.Context) ([]domain.Merchant, error) {
	query := fmt.Sprintf(`SELECT %s FROM merchants WHERE status = 'ACTIVE' ORDER BY merchant_no`, merchantColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active merchants: %w", err)
	}
	defer rows.Close()

	var merchants []domain.Merchant
	for rows.Next() {
		var m domain.Merchant
		if err := scanMerchantRow(rows, &m); err != nil {
			return nil, fmt.Errorf("scan merchant row: %w", err)
		}
		merchants = append(merchants, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate merchant rows: %w", err)
	}
	return merchants, nil
}

// GetByIDForUpdate fetches a merchant by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *MerchantRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Merchant, error) {
	query := fmt.Sprintf(`SELECT %s FROM merchants WHERE id = $1 FOR UPDATE`, merchantColumns)
	return scanMerchant(tx.QueryRow(ctx, query, id), "get merchant for update")
}

// UpdateBalance writes a new ledger snapshot within a transaction.
func (r *MerchantRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance domain.Balance) error {
	query := `UPDATE merchants
		SET balance_available = $1, balance_pending = $2, balance_total = $3, updated_at = NOW()
		WHERE id = $4`

	tag, err := tx.Exec(ctx, query, balance.Available, balance.Pending, balance.Total, id)
	if err != nil {
		return fmt.Errorf("update merchant balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("merchant not found: %s", id)
	}
	return nil
}

// SetLastSyncedAt records when the merchant's balance was last reconciled.
func (r *MerchantRepo) SetLastSyncedAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE merchants SET last_synced_at = $1 WHERE id = $2`

	_, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("set last_synced_at: %w", err)
	}
	return nil
}

func scanMerchant(row pgx.Row, op string) (*domain.Merchant, error) {
	m := &domain.Merchant{}
	err := row.Scan(
		&m.ID, &m.MerchantNo, &m.Name, &m.Email,
		&m.PasswordHash, &m.GatewaySecretEnc, &m.Status,
		&m.Balance.Available, &m.Balance.Pending, &m.Balance.Total,
		&m.WhitelistIPs, &m.LastSyncedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

func scanMerchantRow(rows pgx.Rows, m *domain.Merchant) error {
	return rows.Scan(
		&m.ID, &m.MerchantNo, &m.Name, &m.Email,
		&m.PasswordHash, &m.GatewaySecretEnc, &m.Status,
		&m.Balance.Available, &m.Balance.Pending, &m.Balance.Total,
		&m.WhitelistIPs, &m.LastSyncedAt, &m.CreatedAt, &m.UpdatedAt,
	)
}
