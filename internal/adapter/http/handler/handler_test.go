package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"merchant-payout-platform/internal/adapter/http/middleware"
	"merchant-payout-platform/internal/core/domain"
	"merchant-payout-platform/internal/core/ports"
	"merchant-payout-platform/internal/core/ports/mocks"
	"merchant-payout-platform/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// authedRouter wires a single route behind a stub that injects the
// authenticated merchant id, standing in for the JWT middleware.
func authedRouter(method, path string, mid uuid.UUID, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Handle(method, path, func(c *gin.Context) {
		c.Set(middleware.CtxMerchantID, mid)
		c.Next()
	}, h)
	return r
}

func samplePayout(merchantID uuid.UUID) *domain.Payout {
	now := time.Now()
	gatewayOrderID := "P900001"
	return &domain.Payout{
		ID:             uuid.New(),
		MerchantID:     merchantID,
		OutTradeNo:     "M100117000000000000042",
		GatewayOrderID: &gatewayOrderID,
		Amount:         decimal.RequireFromString("2500"),
		Currency:       "INR",
		Status:         domain.PayoutStatusProcessing,
		Beneficiary: domain.BeneficiarySnapshot{
			Name:          "Ravi Kumar",
			MaskedAccount: "****4321",
			IFSCCode:      "HDFC0001234",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestAuthHandler_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	authSvc := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(authSvc)

	r := gin.New()
	r.POST("/login", h.Login)

	t.Run("success", func(t *testing.T) {
		expiry := time.Now().Add(24 * time.Hour)
		authSvc.EXPECT().Login(gomock.Any(), "ops@acme.example", "hunter22").Return("jwt-token", expiry, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"ops@acme.example","password":"hunter22"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "jwt-token")
	})

	t.Run("wrong password", func(t *testing.T) {
		authSvc.EXPECT().Login(gomock.Any(), "ops@acme.example", "nope").Return("", time.Time{}, apperror.ErrInvalidCredentials())

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"ops@acme.example","password":"nope"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_CREDENTIALS")
	})

	t.Run("missing email", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"password":"hunter22"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPayoutHandler_Create(t *testing.T) {
	merchantID := uuid.New()
	beneficiaryID := uuid.New()

	t.Run("created", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		payoutSvc := mocks.NewMockPayoutService(ctrl)
		r := authedRouter(http.MethodPost, "/payouts", merchantID, NewPayoutHandler(payoutSvc).Create)

		payoutSvc.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ any, params ports.CreatePayoutParams) (*domain.Payout, error) {
				assert.Equal(t, merchantID, params.MerchantID)
				assert.Equal(t, beneficiaryID, params.BeneficiaryID)
				assert.True(t, params.Amount.Equal(decimal.RequireFromString("2500")))
				return samplePayout(merchantID), nil
			})

		w := httptest.NewRecorder()
		body := `{"beneficiary_id":"` + beneficiaryID.String() + `","amount":"2500.00"}`
		req := httptest.NewRequest(http.MethodPost, "/payouts", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), "PROCESSING")
		assert.Contains(t, w.Body.String(), "****4321")
	})

	t.Run("insufficient balance", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		payoutSvc := mocks.NewMockPayoutService(ctrl)
		r := authedRouter(http.MethodPost, "/payouts", merchantID, NewPayoutHandler(payoutSvc).Create)

		payoutSvc.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInsufficientBalance())

		w := httptest.NewRecorder()
		body := `{"beneficiary_id":"` + beneficiaryID.String() + `","amount":"999999.00"}`
		req := httptest.NewRequest(http.MethodPost, "/payouts", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "INSUFFICIENT_BALANCE")
	})

	t.Run("malformed amount never reaches the service", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		payoutSvc := mocks.NewMockPayoutService(ctrl)
		r := authedRouter(http.MethodPost, "/payouts", merchantID, NewPayoutHandler(payoutSvc).Create)

		w := httptest.NewRecorder()
		body := `{"beneficiary_id":"` + beneficiaryID.String() + `","amount":"ten"}`
		req := httptest.NewRequest(http.MethodPost, "/payouts", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPayoutHandler_Get(t *testing.T) {
	merchantID := uuid.New()
	ctrl := gomock.NewController(t)
	payoutSvc := mocks.NewMockPayoutService(ctrl)
	r := authedRouter(http.MethodGet, "/payouts/:id", merchantID, NewPayoutHandler(payoutSvc).Get)

	t.Run("found", func(t *testing.T) {
		payout := samplePayout(merchantID)
		payoutSvc.EXPECT().Get(gomock.Any(), payout.ID, merchantID).Return(payout, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payouts/"+payout.ID.String(), nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), payout.OutTradeNo)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New()
		payoutSvc.EXPECT().Get(gomock.Any(), id, merchantID).Return(nil, apperror.ErrPayoutNotFound())

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payouts/"+id.String(), nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payouts/banana", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPayoutHandler_List(t *testing.T) {
	merchantID := uuid.New()
	ctrl := gomock.NewController(t)
	payoutSvc := mocks.NewMockPayoutService(ctrl)
	r := authedRouter(http.MethodGet, "/payouts", merchantID, NewPayoutHandler(payoutSvc).List)

	payoutSvc.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, params ports.PayoutListParams) ([]domain.Payout, int64, error) {
			assert.Equal(t, merchantID, params.MerchantID)
			assert.NotNil(t, params.Status)
			assert.Equal(t, domain.PayoutStatusSuccess, *params.Status)
			return []domain.Payout{*samplePayout(merchantID)}, 1, nil
		})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payouts?status=SUCCESS&page=1&page_size=20", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
}

func TestWebhookHandler_Receive(t *testing.T) {
	postForm := func(r *gin.Engine, form url.Values) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/webhook/silkpay", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r.ServeHTTP(w, req)
		return w
	}

	validForm := url.Values{
		"mId":       {"M1001"},
		"mOrderId":  {"M100117000000000000042"},
		"amount":    {"2500.00"},
		"timestamp": {"1700000000000"},
		"status":    {"SUCCESS"},
		"sign":      {"abc123"},
	}

	t.Run("accepted callbacks answer the literal OK", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		payoutSvc := mocks.NewMockPayoutService(ctrl)
		r := gin.New()
		r.POST("/api/webhook/silkpay", NewWebhookHandler(payoutSvc).Receive)

		payoutSvc.EXPECT().HandleWebhook(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ any, params ports.WebhookParams) error {
				assert.Equal(t, "M1001", params.MerchantNo)
				assert.Equal(t, "2500.00", params.Amount)
				assert.Equal(t, "SUCCESS", params.Status)
				return nil
			})

		w := postForm(r, validForm)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "OK", w.Body.String())
	})

	t.Run("JSON delivery with numeric timestamp", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		payoutSvc := mocks.NewMockPayoutService(ctrl)
		r := gin.New()
		r.POST("/api/webhook/silkpay", NewWebhookHandler(payoutSvc).Receive)

		body := `{"mId":"M1001","mOrderId":"M100117000000000000042","amount":"2500.00","timestamp":1700000000000,"status":"SUCCESS","sign":"abc123"}`
		payoutSvc.EXPECT().HandleWebhook(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ any, params ports.WebhookParams) error {
				assert.Equal(t, "M1001", params.MerchantNo)
				assert.Equal(t, "1700000000000", params.Timestamp)
				assert.Equal(t, body, string(params.Raw), "raw payload stored verbatim")
				return nil
			})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/webhook/silkpay", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "OK", w.Body.String())
	})

	t.Run("tampered signature", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		payoutSvc := mocks.NewMockPayoutService(ctrl)
		r := gin.New()
		r.POST("/api/webhook/silkpay", NewWebhookHandler(payoutSvc).Receive)

		payoutSvc.EXPECT().HandleWebhook(gomock.Any(), gomock.Any()).Return(apperror.ErrInvalidSignature())

		w := postForm(r, validForm)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_SIGNATURE")
		assert.NotEqual(t, "OK", w.Body.String())
	})

	t.Run("missing fields rejected before the service", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		payoutSvc := mocks.NewMockPayoutService(ctrl)
		r := gin.New()
		r.POST("/api/webhook/silkpay", NewWebhookHandler(payoutSvc).Receive)

		w := postForm(r, url.Values{"mId": {"M1001"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBalanceHandler(t *testing.T) {
	merchantID := uuid.New()

	t.Run("get", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		balanceSvc := mocks.NewMockBalanceService(ctrl)
		r := authedRouter(http.MethodGet, "/balance", merchantID, NewBalanceHandler(balanceSvc).Get)

		balanceSvc.EXPECT().GetBalance(gomock.Any(), merchantID).Return(&domain.Merchant{
			ID:     merchantID,
			Status: domain.MerchantStatusActive,
			Balance: domain.Balance{
				Available: decimal.RequireFromString("7500"),
				Pending:   decimal.RequireFromString("2500"),
				Total:     decimal.RequireFromString("10000"),
			},
		}, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/balance", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"available":"7500.00"`)
		assert.Contains(t, w.Body.String(), `"total":"10000.00"`)
	})

	t.Run("sync", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		balanceSvc := mocks.NewMockBalanceService(ctrl)
		r := authedRouter(http.MethodPost, "/balance/sync", merchantID, NewBalanceHandler(balanceSvc).Sync)

		balanceSvc.EXPECT().SyncMerchant(gomock.Any(), merchantID).Return(domain.Balance{
			Available: decimal.RequireFromString("8000"),
			Pending:   decimal.RequireFromString("0"),
			Total:     decimal.RequireFromString("8000"),
		}, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/balance/sync", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"available":"8000.00"`)
	})

	t.Run("sync while gateway is down", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		balanceSvc := mocks.NewMockBalanceService(ctrl)
		r := authedRouter(http.MethodPost, "/balance/sync", merchantID, NewBalanceHandler(balanceSvc).Sync)

		balanceSvc.EXPECT().SyncMerchant(gomock.Any(), merchantID).Return(domain.Balance{}, apperror.ErrGatewayUnavailable(assert.AnError))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/balance/sync", nil))

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestTransactionHandler_List(t *testing.T) {
	merchantID := uuid.New()
	ctrl := gomock.NewController(t)
	txRepo := mocks.NewMockTransactionRepository(ctrl)
	r := authedRouter(http.MethodGet, "/transactions", merchantID, NewTransactionHandler(txRepo).List)

	ref := "M100117000000000000042"
	txRepo.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
			assert.Equal(t, merchantID, params.MerchantID)
			return []domain.Transaction{{
				ID:            uuid.New(),
				MerchantID:    merchantID,
				Type:          domain.TransactionTypePayout,
				Amount:        decimal.RequireFromString("2500"),
				Currency:      "INR",
				BalanceBefore: decimal.RequireFromString("10000"),
				BalanceAfter:  decimal.RequireFromString("7500"),
				Description:   "Payout reserved",
				ReferenceNo:   &ref,
				CreatedAt:     time.Now(),
			}}, 1, nil
		})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transactions", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"balance_after":"7500.00"`)
}

func TestHealthCheck(t *testing.T) {
	healthy := stubChecker{name: "postgresql"}
	broken := stubChecker{name: "redis", err: assert.AnError}

	t.Run("all healthy", func(t *testing.T) {
		r := gin.New()
		r.GET("/health", HealthCheck(healthy))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	})

	t.Run("degraded", func(t *testing.T) {
		r := gin.New()
		r.GET("/health", HealthCheck(healthy, broken))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"degraded"`)
	})
}

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Ping(ctx context.Context) error { return s.err }

func (s stubChecker) Name() string { return s.name }
