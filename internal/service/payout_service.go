package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"merchant-payout-platform/internal/core/domain"
	"merchant-payout-platform/internal/core/ports"
	"merchant-payout-platform/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Bounded attempts for out_trade_no generation before giving up.
const maxKeyAttempts = 5

// PayoutServiceImpl implements ports.PayoutService — the payout lifecycle
// state machine invoked from the create, webhook and poll entry points.
type PayoutServiceImpl struct {
	merchantRepo    ports.MerchantRepository
	beneficiaryRepo ports.BeneficiaryRepository
	payoutRepo      ports.PayoutRepository
	ledger          ports.LedgerService
	gateway         ports.GatewayClient
	encSvc          ports.EncryptionService
	sigSvc          ports.SignatureService
	transactor      ports.DBTransactor
	log             zerolog.Logger
}

// NewPayoutService creates a new PayoutServiceImpl.
func NewPayoutService(
	merchantRepo ports.MerchantRepository,
	beneficiaryRepo ports.BeneficiaryRepository,
	payoutRepo ports.PayoutRepository,
	ledger ports.LedgerService,
	gateway ports.GatewayClient,
	encSvc ports.EncryptionService,
	sigSvc ports.SignatureService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *PayoutServiceImpl {
	return &PayoutServiceImpl{
		merchantRepo:    merchantRepo,
		beneficiaryRepo: beneficiaryRepo,
		payoutRepo:      payoutRepo,
		ledger:          ledger,
		gateway:         gateway,
		encSvc:          encSvc,
		sigSvc:          sigSvc,
		transactor:      transactor,
		log:             log,
	}
}

// Create validates preconditions, calls the gateway, and persists the
// payout together with the ledger reservation in one transaction.
//
// A gateway transport failure leaves no partial state: no payout row, no
// balance change.
func (s *PayoutServiceImpl) Create(ctx context.Context, params ports.CreatePayoutParams) (*domain.Payout, error) {
	if !params.Amount.IsPositive() {
		return nil, apperror.Validation("amount must be positive")
	}
	currency := params.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	beneficiary, err := s.beneficiaryRepo.GetByID(ctx, params.BeneficiaryID, params.MerchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load beneficiary: %w", err))
	}
	if beneficiary == nil || !beneficiary.IsActive() {
		return nil, apperror.ErrBeneficiaryNotFound()
	}

	merchant, err := s.merchantRepo.GetByID(ctx, params.MerchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("Merchant")
	}
	if !merchant.IsActive() {
		return nil, apperror.ErrMerchantInactive()
	}

	// Full-precision comparison; the authoritative check repeats under the
	// row lock inside the ledger reservation.
	if merchant.Balance.Available.LessThan(params.Amount) {
		return nil, apperror.ErrInsufficientBalance()
	}

	outTradeNo, err := s.generateOutTradeNo(ctx, merchant.MerchantNo)
	if err != nil {
		return nil, err
	}

	secret, err := s.encSvc.Decrypt(merchant.GatewaySecretEnc)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("decrypt gateway secret: %w", err))
	}
	accountNo, err := s.encSvc.Decrypt(beneficiary.AccountNoEnc)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("decrypt account number: %w", err))
	}

	creds := ports.GatewayCredentials{MerchantNo: merchant.MerchantNo, SecretKey: secret}
	gwReq := ports.GatewayPayoutRequest{
		OutTradeNo: outTradeNo,
		Amount:     params.Amount,
		BankNo:     accountNo,
		IFSCCode:   beneficiary.IFSCCode,
		Name:       beneficiary.Name,
	}
	if beneficiary.UPIID != nil {
		gwReq.UPIID = *beneficiary.UPIID
	}

	resp, err := s.gateway.CreatePayout(ctx, creds, gwReq)
	if err != nil {
		// Retryable for the caller; nothing was persisted.
		return nil, err
	}

	now := time.Now().UTC()
	status := domain.PayoutStatusPending
	if resp.Accepted() {
		status = domain.PayoutStatusProcessing
	}

	payout := &domain.Payout{
		ID:            uuid.New(),
		MerchantID:    merchant.ID,
		BeneficiaryID: &beneficiary.ID,
		OutTradeNo:    outTradeNo,
		Amount:        params.Amount,
		Currency:      currency,
		Status:        status,
		Beneficiary: domain.BeneficiarySnapshot{
			Name:          beneficiary.Name,
			MaskedAccount: beneficiary.MaskedAccount(),
			IFSCCode:      beneficiary.IFSCCode,
			UPIID:         beneficiary.UPIID,
		},
		GatewayResponse: resp.Raw,
		Purpose:         params.Purpose,
		Notes:           params.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if resp.Data.PayOrderID != "" {
		payout.GatewayOrderID = &resp.Data.PayOrderID
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.payoutRepo.Create(ctx, dbTx, payout); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create payout: %w", err))
	}
	if _, err := s.ledger.Reserve(ctx, dbTx, merchant.ID, payout.ID, payout.Amount, outTradeNo); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("payout_id", payout.ID.String()).
		Str("merchant_id", merchant.ID.String()).
		Str("out_trade_no", outTradeNo).
		Str("amount", payout.Amount.String()).
		Str("status", string(payout.Status)).
		Msg("payout created")

	return payout, nil
}

// Get returns a merchant-scoped payout.
func (s *PayoutServiceImpl) Get(ctx context.Context, payoutID uuid.UUID, merchantID uuid.UUID) (*domain.Payout, error) {
	payout, err := s.payoutRepo.GetByID(ctx, payoutID, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payout: %w", err))
	}
	if payout == nil {
		return nil, apperror.ErrPayoutNotFound()
	}
	return payout, nil
}

// List returns merchant-scoped payouts with filters and pagination.
func (s *PayoutServiceImpl) List(ctx context.Context, params ports.PayoutListParams) ([]domain.Payout, int64, error) {
	payouts, total, err := s.payoutRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list payouts: %w", err))
	}
	return payouts, total, nil
}

// QueryStatus queries the gateway for the current status and reconciles the
// stored payout when it moved. Transport failure is surfaced to the caller
// and leaves the stored payout untouched.
func (s *PayoutServiceImpl) QueryStatus(ctx context.Context, payoutID uuid.UUID, merchantID uuid.UUID) (*domain.Payout, error) {
	payout, err := s.Get(ctx, payoutID, merchantID)
	if err != nil {
		return nil, err
	}

	merchant, err := s.merchantRepo.GetByID(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("Merchant")
	}

	secret, err := s.encSvc.Decrypt(merchant.GatewaySecretEnc)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("decrypt gateway secret: %w", err))
	}

	creds := ports.GatewayCredentials{MerchantNo: merchant.MerchantNo, SecretKey: secret}
	resp, err := s.gateway.QueryPayout(ctx, creds, payout.OutTradeNo)
	if err != nil {
		return nil, err
	}

	newStatus, ok := domain.ParsePayoutStatus(resp.Data.Status)
	if ok && newStatus != payout.Status {
		return s.ApplyStatusUpdate(ctx, payout.ID, newStatus, resp.Raw, resp.Message)
	}
	return payout, nil
}

// ApplyStatusUpdate performs an atomic compare-and-transition under the
// payout row lock.
//
// Rules: same status is a no-op; a terminal payout accepts only a matching
// terminal status (idempotent no-op) and rejects a differing one as an
// anomaly without mutation. Ledger effects fire exactly once, on the
// transition into a terminal state.
func (s *PayoutServiceImpl) ApplyStatusUpdate(ctx context.Context, payoutID uuid.UUID, newStatus domain.PayoutStatus, gatewayPayload []byte, message string) (*domain.Payout, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payout, err := s.payoutRepo.GetByIDForUpdate(ctx, dbTx, payoutID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock payout: %w", err))
	}
	if payout == nil {
		return nil, apperror.ErrPayoutNotFound()
	}

	if newStatus == payout.Status {
		return payout, nil
	}
	if payout.IsTerminal() {
		s.log.Warn().
			Str("payout_id", payout.ID.String()).
			Str("current_status", string(payout.Status)).
			Str("reported_status", string(newStatus)).
			Msg("terminal payout received conflicting status update, rejected")
		return payout, nil
	}

	now := time.Now().UTC()
	payout.Status = newStatus
	payout.GatewayResponse = gatewayPayload
	payout.UpdatedAt = now

	switch newStatus {
	case domain.PayoutStatusSuccess:
		payout.CompletedAt = &now
		if _, err := s.ledger.Settle(ctx, dbTx, payout.MerchantID, payout.ID, payout.Amount, payout.OutTradeNo); err != nil {
			return nil, err
		}
		if payout.BeneficiaryID != nil {
			if err := s.beneficiaryRepo.IncrementStats(ctx, dbTx, *payout.BeneficiaryID, payout.Amount, now); err != nil {
				return nil, apperror.InternalError(fmt.Errorf("increment beneficiary stats: %w", err))
			}
		}

	case domain.PayoutStatusFailed, domain.PayoutStatusReversed:
		payout.CompletedAt = &now
		reason := message
		if reason == "" {
			reason = "Payout rejected by gateway"
		}
		payout.FailureReason = &reason
		if _, err := s.ledger.Refund(ctx, dbTx, payout.MerchantID, payout.ID, payout.Amount, payout.OutTradeNo); err != nil {
			return nil, err
		}

	default:
		// PENDING/PROCESSING: status only, no ledger effect.
	}

	if err := s.payoutRepo.Update(ctx, dbTx, payout); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update payout: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("payout_id", payout.ID.String()).
		Str("status", string(newStatus)).
		Msg("payout status updated")

	return payout, nil
}

// HandleWebhook verifies the callback signature against the originating
// merchant's secret, records the receipt, and routes the status through
// ApplyStatusUpdate.
func (s *PayoutServiceImpl) HandleWebhook(ctx context.Context, params ports.WebhookParams) error {
	merchant, err := s.merchantRepo.GetByMerchantNo(ctx, params.MerchantNo)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("load merchant: %w", err))
	}
	if merchant == nil {
		return apperror.ErrInvalidSignature()
	}

	secret, err := s.encSvc.Decrypt(merchant.GatewaySecretEnc)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("decrypt gateway secret: %w", err))
	}

	ok, err := s.sigSvc.Verify(secret, params.Sign, params.MerchantNo, params.OutTradeNo, params.Amount, params.Timestamp)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Warn().
			Str("merchant_no", params.MerchantNo).
			Str("out_trade_no", params.OutTradeNo).
			Msg("webhook signature mismatch")
		return apperror.ErrInvalidSignature()
	}

	payout, err := s.payoutRepo.GetByOutTradeNo(ctx, params.OutTradeNo)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get payout: %w", err))
	}
	if payout == nil || payout.MerchantID != merchant.ID {
		return apperror.ErrPayoutNotFound()
	}

	// Receipt counters bump even when the update turns out to be a no-op.
	if err := s.payoutRepo.RecordWebhook(ctx, payout.ID, time.Now().UTC()); err != nil {
		return apperror.InternalError(fmt.Errorf("record webhook: %w", err))
	}

	newStatus, ok := domain.ParsePayoutStatus(params.Status)
	if !ok {
		return apperror.Validation(fmt.Sprintf("unknown payout status %q", params.Status))
	}

	_, err = s.ApplyStatusUpdate(ctx, payout.ID, newStatus, params.Raw, params.Message)
	return err
}

// generateOutTradeNo derives a collision-free idempotency key from the
// merchant number plus a millisecond timestamp and a random suffix.
func (s *PayoutServiceImpl) generateOutTradeNo(ctx context.Context, merchantNo string) (string, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		candidate := fmt.Sprintf("%s%d%04d", merchantNo, time.Now().UnixMilli(), rand.Intn(10000))
		exists, err := s.payoutRepo.ExistsByOutTradeNo(ctx, candidate)
		if err != nil {
			return "", apperror.InternalError(fmt.Errorf("check out_trade_no: %w", err))
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", apperror.ErrKeyGenerationExhausted()
}
