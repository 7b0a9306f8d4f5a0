package service

import (
	"context"
	"fmt"
	"time"

	"merchant-payout-platform/internal/core/domain"
	"merchant-payout-platform/internal/core/ports"
	"merchant-payout-platform/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultCurrency = "INR"

// LedgerServiceImpl implements ports.LedgerService.
//
// All mutations run inside a caller-supplied transaction and lock the
// merchant row first, so ledger updates for one merchant are serialized.
type LedgerServiceImpl struct {
	merchantRepo ports.MerchantRepository
	txRepo       ports.TransactionRepository
	log          zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	merchantRepo ports.MerchantRepository,
	txRepo ports.TransactionRepository,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		merchantRepo: merchantRepo,
		txRepo:       txRepo,
		log:          log,
	}
}

// Reserve moves amount from available to pending and writes a PAYOUT entry.
func (s *LedgerServiceImpl) Reserve(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, payoutID uuid.UUID, amount decimal.Decimal, referenceNo string) (domain.Balance, error) {
	merchant, err := s.lockMerchant(ctx, tx, merchantID)
	if err != nil {
		return domain.Balance{}, err
	}

	next, err := merchant.Balance.Reserve(amount)
	if err != nil {
		return domain.Balance{}, apperror.ErrLedgerInvariantViolation(err.Error())
	}

	entry := &domain.Transaction{
		ID:            uuid.New(),
		MerchantID:    merchantID,
		Type:          domain.TransactionTypePayout,
		PayoutID:      &payoutID,
		Amount:        amount,
		Currency:      defaultCurrency,
		BalanceBefore: merchant.Balance.Available,
		BalanceAfter:  next.Available,
		Description:   "Payout amount reserved",
		ReferenceNo:   &referenceNo,
		CreatedAt:     time.Now().UTC(),
	}

	return s.apply(ctx, tx, merchantID, next, entry)
}

// Settle converts the reserved pending amount into a permanent debit and
// writes a PAYOUT entry.
func (s *LedgerServiceImpl) Settle(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, payoutID uuid.UUID, amount decimal.Decimal, referenceNo string) (domain.Balance, error) {
	merchant, err := s.lockMerchant(ctx, tx, merchantID)
	if err != nil {
		return domain.Balance{}, err
	}

	next, err := merchant.Balance.Settle(amount)
	if err != nil {
		return domain.Balance{}, apperror.ErrLedgerInvariantViolation(err.Error())
	}

	entry := &domain.Transaction{
		ID:            uuid.New(),
		MerchantID:    merchantID,
		Type:          domain.TransactionTypePayout,
		PayoutID:      &payoutID,
		Amount:        amount,
		Currency:      defaultCurrency,
		BalanceBefore: merchant.Balance.Pending,
		BalanceAfter:  next.Pending,
		Description:   "Payout settled",
		ReferenceNo:   &referenceNo,
		CreatedAt:     time.Now().UTC(),
	}

	return s.apply(ctx, tx, merchantID, next, entry)
}

// Refund returns a reserved amount to available and writes a REFUND entry.
func (s *LedgerServiceImpl) Refund(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, payoutID uuid.UUID, amount decimal.Decimal, referenceNo string) (domain.Balance, error) {
	merchant, err := s.lockMerchant(ctx, tx, merchantID)
	if err != nil {
		return domain.Balance{}, err
	}

	next, err := merchant.Balance.Refund(amount)
	if err != nil {
		return domain.Balance{}, apperror.ErrLedgerInvariantViolation(err.Error())
	}

	entry := &domain.Transaction{
		ID:            uuid.New(),
		MerchantID:    merchantID,
		Type:          domain.TransactionTypeRefund,
		PayoutID:      &payoutID,
		Amount:        amount,
		Currency:      defaultCurrency,
		BalanceBefore: merchant.Balance.Available,
		BalanceAfter:  next.Available,
		Description:   "Payout reservation refunded",
		ReferenceNo:   &referenceNo,
		CreatedAt:     time.Now().UTC(),
	}

	return s.apply(ctx, tx, merchantID, next, entry)
}

// Adjust applies a signed correction from balance-sync reconciliation and
// writes an ADJUSTMENT entry.
func (s *LedgerServiceImpl) Adjust(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, delta decimal.Decimal, description string) (domain.Balance, error) {
	merchant, err := s.lockMerchant(ctx, tx, merchantID)
	if err != nil {
		return domain.Balance{}, err
	}

	next, err := merchant.Balance.Adjust(delta)
	if err != nil {
		return domain.Balance{}, apperror.ErrLedgerInvariantViolation(err.Error())
	}

	entry := &domain.Transaction{
		ID:            uuid.New(),
		MerchantID:    merchantID,
		Type:          domain.TransactionTypeAdjustment,
		Amount:        delta.Abs(),
		Currency:      defaultCurrency,
		BalanceBefore: merchant.Balance.Available,
		BalanceAfter:  next.Available,
		Description:   description,
		CreatedAt:     time.Now().UTC(),
	}

	return s.apply(ctx, tx, merchantID, next, entry)
}

func (s *LedgerServiceImpl) lockMerchant(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID) (*domain.Merchant, error) {
	merchant, err := s.merchantRepo.GetByIDForUpdate(ctx, tx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("Merchant")
	}
	return merchant, nil
}

func (s *LedgerServiceImpl) apply(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, next domain.Balance, entry *domain.Transaction) (domain.Balance, error) {
	if err := s.merchantRepo.UpdateBalance(ctx, tx, merchantID, next); err != nil {
		return domain.Balance{}, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}
	if err := s.txRepo.Create(ctx, tx, entry); err != nil {
		return domain.Balance{}, apperror.InternalError(fmt.Errorf("create ledger entry: %w", err))
	}

	s.log.Debug().
		Str("merchant_id", merchantID.String()).
		Str("type", string(entry.Type)).
		Str("amount", entry.Amount.String()).
		Str("available", next.Available.String()).
		Str("pending", next.Pending.String()).
		Msg("ledger entry applied")

	return next, nil
}
