package service

import (
	"context"
	"testing"
	"time"

	"merchant-payout-platform/internal/core/domain"
	"merchant-payout-platform/internal/core/ports"
	"merchant-payout-platform/internal/core/ports/mocks"
	"merchant-payout-platform/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type balanceServiceMocks struct {
	merchantRepo *mocks.MockMerchantRepository
	ledger       *mocks.MockLedgerService
	gateway      *mocks.MockGatewayClient
	encSvc       *mocks.MockEncryptionService
	transactor   *mocks.MockDBTransactor
	syncGuard    *mocks.MockSyncGuard
}

func newBalanceService(t *testing.T) (*BalanceServiceImpl, balanceServiceMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := balanceServiceMocks{
		merchantRepo: mocks.NewMockMerchantRepository(ctrl),
		ledger:       mocks.NewMockLedgerService(ctrl),
		gateway:      mocks.NewMockGatewayClient(ctrl),
		encSvc:       mocks.NewMockEncryptionService(ctrl),
		transactor:   mocks.NewMockDBTransactor(ctrl),
		syncGuard:    mocks.NewMockSyncGuard(ctrl),
	}
	svc := NewBalanceService(
		m.merchantRepo,
		m.ledger,
		m.gateway,
		m.encSvc,
		m.transactor,
		m.syncGuard,
		time.Millisecond,
		30*time.Minute,
		zerolog.Nop(),
	)
	return svc, m
}

func TestBalanceService_GetBalance_NotFound(t *testing.T) {
	svc, m := newBalanceService(t)

	id := uuid.New()
	m.merchantRepo.EXPECT().GetByID(gomock.Any(), id).Return(nil, nil)

	_, err := svc.GetBalance(context.Background(), id)
	assert.Equal(t, "NOT_FOUND", appCode(t, err))
}

func TestBalanceService_SyncMerchant_ReconcilesDrift(t *testing.T) {
	svc, m := newBalanceService(t)

	merchant := testMerchant(domain.Balance{
		Available: dec("9000"),
		Pending:   dec("1000"),
		Total:     dec("10000"),
	})
	merchant.GatewaySecretEnc = "enc-secret"
	tx := &stubTx{}

	m.merchantRepo.EXPECT().GetByID(gomock.Any(), merchant.ID).Return(merchant, nil)
	m.encSvc.EXPECT().Decrypt("enc-secret").Return("secret123", nil)
	m.gateway.EXPECT().
		GetBalance(gomock.Any(), ports.GatewayCredentials{MerchantNo: "M1001", SecretKey: "secret123"}).
		Return(&ports.GatewayResponse{
			Status: "200",
			Data:   ports.GatewayData{Balance: "9500.00"},
		}, nil)

	m.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	m.ledger.EXPECT().
		Adjust(gomock.Any(), tx, merchant.ID, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, _ uuid.UUID, delta decimal.Decimal, desc string) (domain.Balance, error) {
			assert.True(t, delta.Equal(dec("500")))
			assert.Contains(t, desc, "9500.00")
			return domain.Balance{
				Available: dec("9500"),
				Pending:   dec("1000"),
				Total:     dec("10500"),
			}, nil
		})
	m.merchantRepo.EXPECT().SetLastSyncedAt(gomock.Any(), merchant.ID, gomock.Any()).Return(nil)

	balance, err := svc.SyncMerchant(context.Background(), merchant.ID)
	require.NoError(t, err)

	assert.True(t, balance.Available.Equal(dec("9500")))
	assert.Equal(t, 1, tx.commits)
}

func TestBalanceService_SyncMerchant_NoDrift(t *testing.T) {
	svc, m := newBalanceService(t)

	merchant := testMerchant(domain.Balance{
		Available: dec("9000"),
		Pending:   dec("1000"),
		Total:     dec("10000"),
	})
	merchant.GatewaySecretEnc = "enc-secret"

	m.merchantRepo.EXPECT().GetByID(gomock.Any(), merchant.ID).Return(merchant, nil)
	m.encSvc.EXPECT().Decrypt("enc-secret").Return("secret123", nil)
	m.gateway.EXPECT().
		GetBalance(gomock.Any(), gomock.Any()).
		Return(&ports.GatewayResponse{
			Status: "200",
			Data:   ports.GatewayData{Balance: "9000.00"},
		}, nil)
	m.merchantRepo.EXPECT().SetLastSyncedAt(gomock.Any(), merchant.ID, gomock.Any()).Return(nil)

	balance, err := svc.SyncMerchant(context.Background(), merchant.ID)
	require.NoError(t, err)

	assert.True(t, balance.Available.Equal(dec("9000")))
}

func TestBalanceService_SyncMerchant_GatewayRejects(t *testing.T) {
	svc, m := newBalanceService(t)

	merchant := testMerchant(domain.Balance{})
	merchant.GatewaySecretEnc = "enc-secret"

	m.merchantRepo.EXPECT().GetByID(gomock.Any(), merchant.ID).Return(merchant, nil)
	m.encSvc.EXPECT().Decrypt("enc-secret").Return("secret123", nil)
	m.gateway.EXPECT().
		GetBalance(gomock.Any(), gomock.Any()).
		Return(&ports.GatewayResponse{Status: "500", Message: "internal"}, nil)

	_, err := svc.SyncMerchant(context.Background(), merchant.ID)
	assert.Equal(t, "GATEWAY_UNAVAILABLE", appCode(t, err))
}

func TestBalanceService_SyncMerchant_Inactive(t *testing.T) {
	svc, m := newBalanceService(t)

	merchant := testMerchant(domain.Balance{})
	merchant.Status = domain.MerchantStatusInactive

	m.merchantRepo.EXPECT().GetByID(gomock.Any(), merchant.ID).Return(merchant, nil)

	_, err := svc.SyncMerchant(context.Background(), merchant.ID)
	assert.Equal(t, "MERCHANT_INACTIVE", appCode(t, err))
}

func TestBalanceService_SyncAll_SkipsWhenLockHeld(t *testing.T) {
	svc, m := newBalanceService(t)

	m.syncGuard.EXPECT().TryAcquire(gomock.Any(), 30*time.Minute).Return(false, nil)

	err := svc.SyncAll(context.Background())
	require.NoError(t, err)
}

// One failing merchant must not abort the rest of the cycle.
func TestBalanceService_SyncAll_ContinuesPastFailures(t *testing.T) {
	svc, m := newBalanceService(t)

	broken := testMerchant(domain.Balance{
		Available: dec("100"),
		Pending:   dec("0"),
		Total:     dec("100"),
	})
	broken.GatewaySecretEnc = "enc-a"
	healthy := testMerchant(domain.Balance{
		Available: dec("9000"),
		Pending:   dec("0"),
		Total:     dec("9000"),
	})
	healthy.MerchantNo = "M1002"
	healthy.GatewaySecretEnc = "enc-b"

	m.syncGuard.EXPECT().TryAcquire(gomock.Any(), 30*time.Minute).Return(true, nil)
	m.syncGuard.EXPECT().Release(gomock.Any()).Return(nil)
	m.merchantRepo.EXPECT().ListActive(gomock.Any()).Return([]domain.Merchant{*broken, *healthy}, nil)

	m.merchantRepo.EXPECT().GetByID(gomock.Any(), broken.ID).Return(broken, nil)
	m.encSvc.EXPECT().Decrypt("enc-a").Return("secret-a", nil)
	m.gateway.EXPECT().
		GetBalance(gomock.Any(), ports.GatewayCredentials{MerchantNo: "M1001", SecretKey: "secret-a"}).
		Return(nil, apperror.ErrGatewayUnavailable(context.DeadlineExceeded))

	m.merchantRepo.EXPECT().GetByID(gomock.Any(), healthy.ID).Return(healthy, nil)
	m.encSvc.EXPECT().Decrypt("enc-b").Return("secret-b", nil)
	m.gateway.EXPECT().
		GetBalance(gomock.Any(), ports.GatewayCredentials{MerchantNo: "M1002", SecretKey: "secret-b"}).
		Return(&ports.GatewayResponse{
			Status: "200",
			Data:   ports.GatewayData{Balance: "9000.00"},
		}, nil)
	m.merchantRepo.EXPECT().SetLastSyncedAt(gomock.Any(), healthy.ID, gomock.Any()).Return(nil)

	err := svc.SyncAll(context.Background())
	require.NoError(t, err)
}

func TestBalanceService_SyncAll_ReleasesLockOnListFailure(t *testing.T) {
	svc, m := newBalanceService(t)

	m.syncGuard.EXPECT().TryAcquire(gomock.Any(), 30*time.Minute).Return(true, nil)
	m.syncGuard.EXPECT().Release(gomock.Any()).Return(nil)
	m.merchantRepo.EXPECT().ListActive(gomock.Any()).Return(nil, context.DeadlineExceeded)

	err := svc.SyncAll(context.Background())
	assert.Equal(t, "INTERNAL_ERROR", appCode(t, err))
}
