// Package integration exercises the payout lifecycle end to end against
// in-memory adapters: real services, real signature and encryption code,
// fake storage and gateway.
package integration

import (
	"context"
	"sync"
	"time"

	"merchant-payout-platform/internal/core/domain"
	"merchant-payout-platform/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// --- transaction fake ---

// memTx implements pgx.Tx over in-memory state. Row locks taken during the
// transaction are held until commit or rollback, mirroring SELECT ... FOR
// UPDATE semantics. Writes register undo closures that run on rollback.
type memTx struct {
	mu      sync.Mutex
	unlocks []func()
	undos   []func()
	done    bool
}

func (t *memTx) lockRow(mu *sync.Mutex) {
	mu.Lock()
	t.mu.Lock()
	t.unlocks = append(t.unlocks, mu.Unlock)
	t.mu.Unlock()
}

func (t *memTx) onRollback(undo func()) {
	t.mu.Lock()
	t.undos = append(t.undos, undo)
	t.mu.Unlock()
}

func (t *memTx) finish(rollback bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	if rollback {
		for i := len(t.undos) - 1; i >= 0; i-- {
			t.undos[i]()
		}
	}
	for i := len(t.unlocks) - 1; i >= 0; i-- {
		t.unlocks[i]()
	}
	return nil
}

func (t *memTx) Commit(ctx context.Context) error   { return t.finish(false) }
func (t *memTx) Rollback(ctx context.Context) error { return t.finish(true) }

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *memTx) Conn() *pgx.Conn                                               { return nil }

type memTransactor struct{}

func (memTransactor) Begin(ctx context.Context) (pgx.Tx, error) { return &memTx{}, nil }

// --- merchant repository ---

type memMerchantRepo struct {
	mu       sync.RWMutex
	rows     map[uuid.UUID]domain.Merchant
	rowLocks map[uuid.UUID]*sync.Mutex
}

func newMemMerchantRepo() *memMerchantRepo {
	return &memMerchantRepo{
		rows:     make(map[uuid.UUID]domain.Merchant),
		rowLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (r *memMerchantRepo) Create(ctx context.Context, m *domain.Merchant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[m.ID] = *m
	r.rowLocks[m.ID] = &sync.Mutex{}
	return nil
}

func (r *memMerchantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.rows[id]; ok {
		return &m, nil
	}
	return nil, nil
}

func (r *memMerchantRepo) GetByEmail(ctx context.Context, email string) (*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.rows {
		if m.Email == email {
			m := m
			return &m, nil
		}
	}
	return nil, nil
}

func (r *memMerchantRepo) GetByMerchantNo(ctx context.Context, merchantNo string) (*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.rows {
		if m.MerchantNo == merchantNo {
			m := m
			return &m, nil
		}
	}
	return nil, nil
}

func (r *memMerchantRepo) ListActive(ctx context.Context) ([]domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Merchant
	for _, m := range r.rows {
		if m.Status == domain.MerchantStatusActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMerchantRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Merchant, error) {
	r.mu.RLock()
	rowMu, ok := r.rowLocks[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	tx.(*memTx).lockRow(rowMu)
	return r.GetByID(ctx, id)
}

func (r *memMerchantRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance domain.Balance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.rows[id]
	prev := m.Balance
	m.Balance = balance
	m.UpdatedAt = time.Now().UTC()
	r.rows[id] = m
	tx.(*memTx).onRollback(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		m := r.rows[id]
		m.Balance = prev
		r.rows[id] = m
	})
	return nil
}

func (r *memMerchantRepo) SetLastSyncedAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.rows[id]
	m.LastSyncedAt = &at
	r.rows[id] = m
	return nil
}

// --- beneficiary repository ---

type memBeneficiaryRepo struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]domain.Beneficiary
}

func newMemBeneficiaryRepo() *memBeneficiaryRepo {
	return &memBeneficiaryRepo{rows: make(map[uuid.UUID]domain.Beneficiary)}
}

func (r *memBeneficiaryRepo) Create(ctx context.Context, b *domain.Beneficiary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[b.ID] = *b
	return nil
}

func (r *memBeneficiaryRepo) GetByID(ctx context.Context, id uuid.UUID, merchantID uuid.UUID) (*domain.Beneficiary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.rows[id]; ok && b.MerchantID == merchantID {
		return &b, nil
	}
	return nil, nil
}

func (r *memBeneficiaryRepo) IncrementStats(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.rows[id]
	prev := b
	b.TotalPayouts++
	b.TotalAmount = b.TotalAmount.Add(amount)
	b.LastPayoutAt = &at
	r.rows[id] = b
	tx.(*memTx).onRollback(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.rows[id] = prev
	})
	return nil
}

// --- payout repository ---

type memPayoutRepo struct {
	mu       sync.RWMutex
	rows     map[uuid.UUID]domain.Payout
	rowLocks map[uuid.UUID]*sync.Mutex
}

func newMemPayoutRepo() *memPayoutRepo {
	return &memPayoutRepo{
		rows:     make(map[uuid.UUID]domain.Payout),
		rowLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (r *memPayoutRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := p.ID
	r.rows[id] = *p
	r.rowLocks[id] = &sync.Mutex{}
	tx.(*memTx).onRollback(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.rows, id)
		delete(r.rowLocks, id)
	})
	return nil
}

func (r *memPayoutRepo) GetByID(ctx context.Context, id uuid.UUID, merchantID uuid.UUID) (*domain.Payout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.rows[id]; ok && p.MerchantID == merchantID {
		return &p, nil
	}
	return nil, nil
}

func (r *memPayoutRepo) GetByOutTradeNo(ctx context.Context, outTradeNo string) (*domain.Payout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.rows {
		if p.OutTradeNo == outTradeNo {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (r *memPayoutRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Payout, error) {
	r.mu.RLock()
	rowMu, ok := r.rowLocks[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	tx.(*memTx).lockRow(rowMu)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.rows[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (r *memPayoutRepo) ExistsByOutTradeNo(ctx context.Context, outTradeNo string) (bool, error) {
	p, err := r.GetByOutTradeNo(ctx, outTradeNo)
	return p != nil, err
}

func (r *memPayoutRepo) Update(ctx context.Context, tx pgx.Tx, p *domain.Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.rows[p.ID]
	r.rows[p.ID] = *p
	tx.(*memTx).onRollback(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.rows[p.ID] = prev
	})
	return nil
}

func (r *memPayoutRepo) RecordWebhook(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.rows[id]
	p.WebhookReceived = true
	p.WebhookCount++
	p.LastWebhookAt = &at
	r.rows[id] = p
	return nil
}

func (r *memPayoutRepo) List(ctx context.Context, params ports.PayoutListParams) ([]domain.Payout, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Payout
	for _, p := range r.rows {
		if p.MerchantID != params.MerchantID {
			continue
		}
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		if params.BeneficiaryID != nil && (p.BeneficiaryID == nil || *p.BeneficiaryID != *params.BeneficiaryID) {
			continue
		}
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

// --- transaction repository ---

type memTransactionRepo struct {
	mu   sync.RWMutex
	rows []domain.Transaction
}

func newMemTransactionRepo() *memTransactionRepo {
	return &memTransactionRepo{}
}

func (r *memTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := t.ID
	r.rows = append(r.rows, *t)
	tx.(*memTx).onRollback(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i := range r.rows {
			if r.rows[i].ID == id {
				r.rows = append(r.rows[:i], r.rows[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (r *memTransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Transaction
	for _, t := range r.rows {
		if t.MerchantID != params.MerchantID {
			continue
		}
		if params.Type != nil && t.Type != *params.Type {
			continue
		}
		out = append(out, t)
	}
	return out, int64(len(out)), nil
}

// forMerchant returns all ledger entries for a merchant, oldest first.
func (r *memTransactionRepo) forMerchant(merchantID uuid.UUID) []domain.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Transaction
	for _, t := range r.rows {
		if t.MerchantID == merchantID {
			out = append(out, t)
		}
	}
	return out
}

// --- gateway fake ---

// fakeGateway scripts SilkPay behaviour per call type.
type fakeGateway struct {
	mu sync.Mutex

	createResp *ports.GatewayResponse
	createErr  error
	queryResp  *ports.GatewayResponse
	queryErr   error
	balance    string
	balanceErr error

	createdRequests []ports.GatewayPayoutRequest
}

func (g *fakeGateway) CreatePayout(ctx context.Context, creds ports.GatewayCredentials, req ports.GatewayPayoutRequest) (*ports.GatewayResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.createdRequests = append(g.createdRequests, req)
	if g.createResp != nil {
		return g.createResp, nil
	}
	return &ports.GatewayResponse{
		Status:  "200",
		Message: "accepted",
		Data:    ports.GatewayData{PayOrderID: "P" + req.OutTradeNo, Status: "PROCESSING"},
	}, nil
}

func (g *fakeGateway) QueryPayout(ctx context.Context, creds ports.GatewayCredentials, outTradeNo string) (*ports.GatewayResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.queryErr != nil {
		return nil, g.queryErr
	}
	if g.queryResp != nil {
		return g.queryResp, nil
	}
	return &ports.GatewayResponse{Status: "200", Data: ports.GatewayData{Status: "PROCESSING"}}, nil
}

func (g *fakeGateway) GetBalance(ctx context.Context, creds ports.GatewayCredentials) (*ports.GatewayResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.balanceErr != nil {
		return nil, g.balanceErr
	}
	return &ports.GatewayResponse{Status: "200", Data: ports.GatewayData{Balance: g.balance}}, nil
}
