package service

import (
	"context"
	"testing"

	"merchant-payout-platform/internal/core/domain"
	"merchant-payout-platform/internal/core/ports/mocks"
	"merchant-payout-platform/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// stubTx satisfies pgx.Tx for service tests that only need Begin/Commit/
// Rollback accounting.
type stubTx struct {
	commits   int
	rollbacks int
}

func (t *stubTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *stubTx) Commit(ctx context.Context) error          { t.commits++; return nil }
func (t *stubTx) Rollback(ctx context.Context) error        { t.rollbacks++; return nil }
func (t *stubTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *stubTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *stubTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *stubTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *stubTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t *stubTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *stubTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *stubTx) Conn() *pgx.Conn                                              { return nil }

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func appCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	return appErr.Code
}

func testMerchant(balance domain.Balance) *domain.Merchant {
	return &domain.Merchant{
		ID:         uuid.New(),
		MerchantNo: "M1001",
		Name:       "Acme Traders",
		Email:      "ops@acme.example",
		Status:     domain.MerchantStatusActive,
		Balance:    balance,
	}
}

func TestLedgerService_Reserve(t *testing.T) {
	ctrl := gomock.NewController(t)
	merchantRepo := mocks.NewMockMerchantRepository(ctrl)
	txRepo := mocks.NewMockTransactionRepository(ctrl)
	svc := NewLedgerService(merchantRepo, txRepo, zerolog.Nop())

	tx := &stubTx{}
	merchant := testMerchant(domain.Balance{
		Available: dec("10000"),
		Pending:   dec("0"),
		Total:     dec("10000"),
	})
	payoutID := uuid.New()

	merchantRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, merchant.ID).Return(merchant, nil)

	var savedBalance domain.Balance
	merchantRepo.EXPECT().
		UpdateBalance(gomock.Any(), tx, merchant.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, _ uuid.UUID, b domain.Balance) error {
			savedBalance = b
			return nil
		})

	var entry *domain.Transaction
	txRepo.EXPECT().
		Create(gomock.Any(), tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, e *domain.Transaction) error {
			entry = e
			return nil
		})

	next, err := svc.Reserve(context.Background(), tx, merchant.ID, payoutID, dec("2500"), "ORD-1")
	require.NoError(t, err)

	assert.True(t, next.Available.Equal(dec("7500")))
	assert.True(t, next.Pending.Equal(dec("2500")))
	assert.True(t, next.Total.Equal(dec("10000")))
	assert.True(t, savedBalance.Available.Equal(dec("7500")))

	require.NotNil(t, entry)
	assert.Equal(t, domain.TransactionTypePayout, entry.Type)
	assert.Equal(t, merchant.ID, entry.MerchantID)
	require.NotNil(t, entry.PayoutID)
	assert.Equal(t, payoutID, *entry.PayoutID)
	assert.True(t, entry.Amount.Equal(dec("2500")))
	assert.True(t, entry.BalanceBefore.Equal(dec("10000")))
	assert.True(t, entry.BalanceAfter.Equal(dec("7500")))
	require.NotNil(t, entry.ReferenceNo)
	assert.Equal(t, "ORD-1", *entry.ReferenceNo)
}

func TestLedgerService_Reserve_Insufficient(t *testing.T) {
	ctrl := gomock.NewController(t)
	merchantRepo := mocks.NewMockMerchantRepository(ctrl)
	txRepo := mocks.NewMockTransactionRepository(ctrl)
	svc := NewLedgerService(merchantRepo, txRepo, zerolog.Nop())

	tx := &stubTx{}
	merchant := testMerchant(domain.Balance{
		Available: dec("100"),
		Pending:   dec("0"),
		Total:     dec("100"),
	})

	merchantRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, merchant.ID).Return(merchant, nil)

	_, err := svc.Reserve(context.Background(), tx, merchant.ID, uuid.New(), dec("250"), "ORD-2")
	assert.Equal(t, "LEDGER_INVARIANT_VIOLATION", appCode(t, err))
}

func TestLedgerService_Reserve_MerchantMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	merchantRepo := mocks.NewMockMerchantRepository(ctrl)
	txRepo := mocks.NewMockTransactionRepository(ctrl)
	svc := NewLedgerService(merchantRepo, txRepo, zerolog.Nop())

	tx := &stubTx{}
	id := uuid.New()
	merchantRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, id).Return(nil, nil)

	_, err := svc.Reserve(context.Background(), tx, id, uuid.New(), dec("10"), "ORD-3")
	assert.Equal(t, "NOT_FOUND", appCode(t, err))
}

func TestLedgerService_Settle(t *testing.T) {
	ctrl := gomock.NewController(t)
	merchantRepo := mocks.NewMockMerchantRepository(ctrl)
	txRepo := mocks.NewMockTransactionRepository(ctrl)
	svc := NewLedgerService(merchantRepo, txRepo, zerolog.Nop())

	tx := &stubTx{}
	merchant := testMerchant(domain.Balance{
		Available: dec("7500"),
		Pending:   dec("2500"),
		Total:     dec("10000"),
	})

	merchantRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, merchant.ID).Return(merchant, nil)
	merchantRepo.EXPECT().UpdateBalance(gomock.Any(), tx, merchant.ID, gomock.Any()).Return(nil)

	var entry *domain.Transaction
	txRepo.EXPECT().
		Create(gomock.Any(), tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, e *domain.Transaction) error {
			entry = e
			return nil
		})

	next, err := svc.Settle(context.Background(), tx, merchant.ID, uuid.New(), dec("2500"), "ORD-4")
	require.NoError(t, err)

	assert.True(t, next.Available.Equal(dec("7500")))
	assert.True(t, next.Pending.Equal(dec("0")))
	assert.True(t, next.Total.Equal(dec("7500")))

	require.NotNil(t, entry)
	assert.Equal(t, domain.TransactionTypePayout, entry.Type)
	assert.True(t, entry.BalanceBefore.Equal(dec("2500")))
	assert.True(t, entry.BalanceAfter.Equal(dec("0")))
}

func TestLedgerService_Settle_ExceedsPending(t *testing.T) {
	ctrl := gomock.NewController(t)
	merchantRepo := mocks.NewMockMerchantRepository(ctrl)
	txRepo := mocks.NewMockTransactionRepository(ctrl)
	svc := NewLedgerService(merchantRepo, txRepo, zerolog.Nop())

	tx := &stubTx{}
	merchant := testMerchant(domain.Balance{
		Available: dec("7500"),
		Pending:   dec("2500"),
		Total:     dec("10000"),
	})

	merchantRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, merchant.ID).Return(merchant, nil)

	_, err := svc.Settle(context.Background(), tx, merchant.ID, uuid.New(), dec("2500.01"), "ORD-5")
	assert.Equal(t, "LEDGER_INVARIANT_VIOLATION", appCode(t, err))
}

func TestLedgerService_Refund(t *testing.T) {
	ctrl := gomock.NewController(t)
	merchantRepo := mocks.NewMockMerchantRepository(ctrl)
	txRepo := mocks.NewMockTransactionRepository(ctrl)
	svc := NewLedgerService(merchantRepo, txRepo, zerolog.Nop())

	tx := &stubTx{}
	merchant := testMerchant(domain.Balance{
		Available: dec("7500"),
		Pending:   dec("2500"),
		Total:     dec("10000"),
	})

	merchantRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, merchant.ID).Return(merchant, nil)
	merchantRepo.EXPECT().UpdateBalance(gomock.Any(), tx, merchant.ID, gomock.Any()).Return(nil)

	var entry *domain.Transaction
	txRepo.EXPECT().
		Create(gomock.Any(), tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, e *domain.Transaction) error {
			entry = e
			return nil
		})

	next, err := svc.Refund(context.Background(), tx, merchant.ID, uuid.New(), dec("2500"), "ORD-6")
	require.NoError(t, err)

	assert.True(t, next.Available.Equal(dec("10000")))
	assert.True(t, next.Pending.Equal(dec("0")))
	assert.True(t, next.Total.Equal(dec("10000")))

	require.NotNil(t, entry)
	assert.Equal(t, domain.TransactionTypeRefund, entry.Type)
}

func TestLedgerService_Adjust(t *testing.T) {
	ctrl := gomock.NewController(t)
	merchantRepo := mocks.NewMockMerchantRepository(ctrl)
	txRepo := mocks.NewMockTransactionRepository(ctrl)
	svc := NewLedgerService(merchantRepo, txRepo, zerolog.Nop())

	tx := &stubTx{}
	merchant := testMerchant(domain.Balance{
		Available: dec("9000"),
		Pending:   dec("1000"),
		Total:     dec("10000"),
	})

	merchantRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, merchant.ID).Return(merchant, nil)
	merchantRepo.EXPECT().UpdateBalance(gomock.Any(), tx, merchant.ID, gomock.Any()).Return(nil)

	var entry *domain.Transaction
	txRepo.EXPECT().
		Create(gomock.Any(), tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, e *domain.Transaction) error {
			entry = e
			return nil
		})

	next, err := svc.Adjust(context.Background(), tx, merchant.ID, dec("-500"), "Balance sync adjustment")
	require.NoError(t, err)

	assert.True(t, next.Available.Equal(dec("8500")))
	assert.True(t, next.Pending.Equal(dec("1000")))
	assert.True(t, next.Total.Equal(dec("9500")))

	require.NotNil(t, entry)
	assert.Equal(t, domain.TransactionTypeAdjustment, entry.Type)
	assert.True(t, entry.Amount.Equal(dec("500")))
	assert.Nil(t, entry.PayoutID)
}

func TestLedgerService_Adjust_DrivesAvailableNegative(t *testing.T) {
	ctrl := gomock.NewController(t)
	merchantRepo := mocks.NewMockMerchantRepository(ctrl)
	txRepo := mocks.NewMockTransactionRepository(ctrl)
	svc := NewLedgerService(merchantRepo, txRepo, zerolog.Nop())

	tx := &stubTx{}
	merchant := testMerchant(domain.Balance{
		Available: dec("100"),
		Pending:   dec("0"),
		Total:     dec("100"),
	})

	merchantRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, merchant.ID).Return(merchant, nil)

	_, err := svc.Adjust(context.Background(), tx, merchant.ID, dec("-150"), "Balance sync adjustment")
	assert.Equal(t, "LEDGER_INVARIANT_VIOLATION", appCode(t, err))
}
