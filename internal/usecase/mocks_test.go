//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"legal-docs-platform/internal/domain"
	"legal-docs-platform/internal/domain/model"
	"legal-docs-platform/internal/domain/ports/adapter"
	"legal-docs-platform/internal/domain/ports/repository"
)

func now() time.Time { return time.Now().Truncate(time.Millisecond) }

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// =============================
// Transaction manager
// =============================

type noTx struct{}

type mockTxManager struct{}

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, noTx{})
}

// =============================
// Repositories
// =============================

type memPaymentRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Payment

	errSave error
}

var _ repository.PaymentRepository = (*memPaymentRepo)(nil)

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{byID: map[string]*model.Payment{}}
}

func (m *memPaymentRepo) Save(ctx context.Context, _ repository.Tx, p *model.Payment) error {
	if m.errSave != nil {
		return m.errSave
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Status == model.PaymentStatusPending {
		for _, ex := range m.byID {
			if ex.ID != p.ID && ex.DocumentID == p.DocumentID && ex.Status == model.PaymentStatusPending {
				return domain.ErrDuplicatePendingPayment
			}
		}
	}
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) findOne(match func(*model.Payment) bool) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) FindByPublicCode(ctx context.Context, _ repository.Tx, code string) (*model.Payment, error) {
	return m.findOne(func(p *model.Payment) bool { return p.PublicCode == code })
}

func (m *memPaymentRepo) FindByTransactionRef(ctx context.Context, _ repository.Tx, ref string) (*model.Payment, error) {
	return m.findOne(func(p *model.Payment) bool { return p.TransactionRef != nil && *p.TransactionRef == ref })
}

func (m *memPaymentRepo) FindPendingByDocument(ctx context.Context, _ repository.Tx, documentID string) (*model.Payment, error) {
	return m.findOne(func(p *model.Payment) bool {
		return p.DocumentID == documentID && p.Status == model.PaymentStatusPending
	})
}

func (m *memPaymentRepo) FindSuccessByDocument(ctx context.Context, _ repository.Tx, documentID string) (*model.Payment, error) {
	return m.findOne(func(p *model.Payment) bool {
		return p.DocumentID == documentID && p.Status == model.PaymentStatusSuccess
	})
}

func (m *memPaymentRepo) FindLatestByDocument(ctx context.Context, _ repository.Tx, documentID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.Payment
	for _, p := range m.byID {
		if p.DocumentID != documentID {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memPaymentRepo) ListByUser(ctx context.Context, _ repository.Tx, userID string) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.byID {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPaymentRepo) UpdateStatusIfPending(ctx context.Context, _ repository.Tx, id string, status model.PaymentStatus, transactionRef *string, paidAt *time.Time, adminNote *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	if transactionRef != nil {
		p.TransactionRef = transactionRef
	}
	if paidAt != nil {
		p.PaidAt = paidAt
	}
	if adminNote != nil {
		p.AdminNote = adminNote
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *memPaymentRepo) MarkRefunded(ctx context.Context, _ repository.Tx, id string, refundedAt time.Time, reason *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok || p.Status != model.PaymentStatusSuccess {
		return false, nil
	}
	p.Status = model.PaymentStatusRefunded
	p.RefundedAt = &refundedAt
	if reason != nil {
		p.RefundReason = reason
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *memPaymentRepo) CountRecentSuccessesByUser(ctx context.Context, _ repository.Tx, userID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.byID {
		if p.UserID == userID && p.Status == model.PaymentStatusSuccess && p.PaidAt != nil && !p.PaidAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type memDocumentRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Document
}

var _ repository.DocumentRepository = (*memDocumentRepo)(nil)

func newMemDocumentRepo() *memDocumentRepo {
	return &memDocumentRepo{byID: map[string]*model.Document{}}
}

func (m *memDocumentRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	cp.RefundHistory = append([]model.RefundRecord(nil), d.RefundHistory...)
	return &cp, nil
}

func (m *memDocumentRepo) Save(ctx context.Context, _ repository.Tx, d *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	cp.RefundHistory = append([]model.RefundRecord(nil), d.RefundHistory...)
	m.byID[d.ID] = &cp
	return nil
}

func (m *memDocumentRepo) ListPendingRefunds(ctx context.Context, _ repository.Tx) ([]*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Document
	for _, d := range m.byID {
		if d.RefundRequested {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memUserRepo struct {
	mu   sync.Mutex
	byID map[string]*model.User
}

var _ repository.UserRepository = (*memUserRepo)(nil)

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: map[string]*model.User{}}
}

func (m *memUserRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) Save(ctx context.Context, _ repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUserRepo) UpdateTier(ctx context.Context, _ repository.Tx, id string, tier, weeklyPayments int, recalcAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Tier = tier
	u.WeeklyPayments = weeklyPayments
	u.TierRecalcAt = &recalcAt
	return nil
}

func (m *memUserRepo) AddBonusCredits(ctx context.Context, _ repository.Tx, id string, credits int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.BonusCreditsToday += credits
	return nil
}

func (m *memUserRepo) ResetBonusCredits(ctx context.Context, _ repository.Tx) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.byID {
		if u.BonusCreditsToday != 0 {
			u.BonusCreditsToday = 0
			n++
		}
	}
	return n, nil
}

func (m *memUserRepo) ListIDs(ctx context.Context, _ repository.Tx) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.byID))
	for id := range m.byID {
		out = append(out, id)
	}
	return out, nil
}

type memAuditRepo struct {
	mu      sync.Mutex
	Entries []*model.AuditLogEntry

	errAppend error
}

var _ repository.AuditLogRepository = (*memAuditRepo)(nil)

func (m *memAuditRepo) Append(ctx context.Context, _ repository.Tx, e *model.AuditLogEntry) error {
	if m.errAppend != nil {
		return m.errAppend
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.Entries = append(m.Entries, &cp)
	return nil
}

func (m *memAuditRepo) ListByEntity(ctx context.Context, _ repository.Tx, entity, entityID string, limit int) ([]*model.AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AuditLogEntry
	for _, e := range m.Entries {
		if e.Entity == entity && e.EntityID == entityID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// =============================
// Adapters
// =============================

type mockGateway struct {
	mu sync.Mutex

	CreateOrderFunc      func(ctx context.Context, amount int64, documentID string, kind model.DocumentKind, description string) (*adapter.PaymentOrder, error)
	ListRecentEventsFunc func(ctx context.Context) ([]model.GatewayEvent, error)

	CreateCalls int
	ListCalls   int
}

var _ adapter.PaymentGateway = (*mockGateway)(nil)

func (m *mockGateway) Name() string { return "mock" }

func (m *mockGateway) CreateOrder(ctx context.Context, amount int64, documentID string, kind model.DocumentKind, description string) (*adapter.PaymentOrder, error) {
	m.mu.Lock()
	m.CreateCalls++
	m.mu.Unlock()
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, amount, documentID, kind, description)
	}
	return &adapter.PaymentOrder{
		GatewayOrderID: "order-" + documentID,
		PublicCode:     "PC-" + documentID,
		CheckoutURL:    "https://gateway.test/checkout/" + documentID,
		Status:         "started",
	}, nil
}

func (m *mockGateway) ListRecentEvents(ctx context.Context) ([]model.GatewayEvent, error) {
	m.mu.Lock()
	m.ListCalls++
	m.mu.Unlock()
	if m.ListRecentEventsFunc != nil {
		return m.ListRecentEventsFunc(ctx)
	}
	return nil, nil
}

type mockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	Fails bool
	Err   error // returned as-is, simulating a lock service outage
}

var _ adapter.Locker = (*mockLocker)(nil)

func newMockLocker() *mockLocker { return &mockLocker{held: map[string]string{}} }

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if m.Fails {
		return "", domain.ErrLockNotAcquired
	}
	if _, taken := m.held[key]; taken {
		return "", domain.ErrLockNotAcquired
	}
	m.held[key] = key + "-token"
	return m.held[key], nil
}

func (m *mockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
	}
	return nil
}

type mockAlerter struct {
	mu       sync.Mutex
	Messages []string
}

func (m *mockAlerter) Alert(ctx context.Context, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, message)
}

type mockDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMockDeduper() *mockDeduper { return &mockDeduper{seen: map[string]bool{}} }

func (m *mockDeduper) Seen(ctx context.Context, eventID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[eventID]
}

func (m *mockDeduper) MarkSeen(ctx context.Context, eventID string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[eventID] = true
}
