package service

import (
	"context"
	"fmt"
	"time"

	"merchant-payout-platform/internal/core/domain"
	"merchant-payout-platform/internal/core/ports"
	"merchant-payout-platform/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// BalanceServiceImpl implements ports.BalanceService.
type BalanceServiceImpl struct {
	merchantRepo  ports.MerchantRepository
	ledger        ports.LedgerService
	gateway       ports.GatewayClient
	encSvc        ports.EncryptionService
	transactor    ports.DBTransactor
	syncGuard     ports.SyncGuard
	merchantDelay time.Duration
	lockTTL       time.Duration
	log           zerolog.Logger
}

// NewBalanceService creates a new BalanceServiceImpl.
func NewBalanceService(
	merchantRepo ports.MerchantRepository,
	ledger ports.LedgerService,
	gateway ports.GatewayClient,
	encSvc ports.EncryptionService,
	transactor ports.DBTransactor,
	syncGuard ports.SyncGuard,
	merchantDelay time.Duration,
	lockTTL time.Duration,
	log zerolog.Logger,
) *BalanceServiceImpl {
	return &BalanceServiceImpl{
		merchantRepo:  merchantRepo,
		ledger:        ledger,
		gateway:       gateway,
		encSvc:        encSvc,
		transactor:    transactor,
		syncGuard:     syncGuard,
		merchantDelay: merchantDelay,
		lockTTL:       lockTTL,
		log:           log,
	}
}

// GetBalance returns the merchant with its current ledger snapshot.
func (s *BalanceServiceImpl) GetBalance(ctx context.Context, merchantID uuid.UUID) (*domain.Merchant, error) {
	merchant, err := s.merchantRepo.GetByID(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("Merchant")
	}
	return merchant, nil
}

// SyncMerchant pulls the authoritative balance from the gateway and, when
// it drifts from the local available figure, reconciles through an
// ADJUSTMENT ledger entry.
func (s *BalanceServiceImpl) SyncMerchant(ctx context.Context, merchantID uuid.UUID) (domain.Balance, error) {
	merchant, err := s.GetBalance(ctx, merchantID)
	if err != nil {
		return domain.Balance{}, err
	}
	if !merchant.IsActive() {
		return domain.Balance{}, apperror.ErrMerchantInactive()
	}

	secret, err := s.encSvc.Decrypt(merchant.GatewaySecretEnc)
	if err != nil {
		return domain.Balance{}, apperror.InternalError(fmt.Errorf("decrypt gateway secret: %w", err))
	}

	creds := ports.GatewayCredentials{MerchantNo: merchant.MerchantNo, SecretKey: secret}
	resp, err := s.gateway.GetBalance(ctx, creds)
	if err != nil {
		return domain.Balance{}, err
	}
	if !resp.Accepted() {
		return domain.Balance{}, apperror.ErrGatewayUnavailable(fmt.Errorf("balance query rejected: status %s: %s", resp.Status, resp.Message))
	}

	authoritative, err := decimal.NewFromString(resp.Data.Balance)
	if err != nil {
		return domain.Balance{}, apperror.InternalError(fmt.Errorf("parse gateway balance %q: %w", resp.Data.Balance, err))
	}

	balance := merchant.Balance
	delta := authoritative.Sub(balance.Available)
	if !delta.IsZero() {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return domain.Balance{}, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		desc := fmt.Sprintf("Balance sync adjustment: gateway reports %s available", authoritative.StringFixed(2))
		balance, err = s.ledger.Adjust(ctx, dbTx, merchant.ID, delta, desc)
		if err != nil {
			return domain.Balance{}, err
		}

		if err := dbTx.Commit(ctx); err != nil {
			return domain.Balance{}, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}

		s.log.Info().
			Str("merchant_id", merchant.ID.String()).
			Str("delta", delta.String()).
			Str("gateway_balance", authoritative.String()).
			Msg("balance discrepancy reconciled")
	}

	if err := s.merchantRepo.SetLastSyncedAt(ctx, merchant.ID, time.Now().UTC()); err != nil {
		s.log.Warn().Err(err).Str("merchant_id", merchant.ID.String()).Msg("failed to record sync time")
	}

	return balance, nil
}

// SyncAll runs one sync cycle over all active merchants. Cycles are
// single-flight: if one is already running the trigger is skipped, not
// queued. Merchants are processed sequentially with a fixed delay, and a
// failure on one merchant does not abort the rest.
func (s *BalanceServiceImpl) SyncAll(ctx context.Context) error {
	acquired, err := s.syncGuard.TryAcquire(ctx, s.lockTTL)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("acquire sync lock: %w", err))
	}
	if !acquired {
		s.log.Info().Msg("balance sync already running, skipping cycle")
		return nil
	}
	defer func() {
		if err := s.syncGuard.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn().Err(err).Msg("failed to release sync lock")
		}
	}()

	merchants, err := s.merchantRepo.ListActive(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("list active merchants: %w", err))
	}

	s.log.Info().Int("merchants", len(merchants)).Msg("balance sync cycle started")

	for i, m := range merchants {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.merchantDelay):
			}
		}

		if _, err := s.SyncMerchant(ctx, m.ID); err != nil {
			s.log.Error().Err(err).
				Str("merchant_id", m.ID.String()).
				Str("merchant_no", m.MerchantNo).
				Msg("merchant balance sync failed")
		}
	}

	s.log.Info().Msg("balance sync cycle finished")
	return nil
}
