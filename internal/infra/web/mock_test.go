//go:build !integration

package web

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"legal-docs-platform/internal/domain"
	"legal-docs-platform/internal/domain/model"
	"legal-docs-platform/internal/usecase"
)

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

// ---- mock use cases with per-method hooks ----

type mockPaymentUC struct {
	usecase.PaymentUseCase // Embed interface for forward compatibility

	StartFunc      func(ctx context.Context, userID, documentID string) (*model.Payment, string, error)
	SimulateFunc   func(ctx context.Context, userID, documentID string) (*model.Payment, error)
	StatusFunc     func(ctx context.Context, documentID string) (*usecase.PaymentStatusInfo, error)
	CancelFunc     func(ctx context.Context, userID, documentID string) (*model.Payment, error)
	ListByUserFunc func(ctx context.Context, userID string) ([]*model.Payment, error)
}

func (m *mockPaymentUC) Start(ctx context.Context, userID, documentID string) (*model.Payment, string, error) {
	return m.StartFunc(ctx, userID, documentID)
}

func (m *mockPaymentUC) StartSimulated(ctx context.Context, userID, documentID string) (*model.Payment, error) {
	return m.SimulateFunc(ctx, userID, documentID)
}

func (m *mockPaymentUC) Status(ctx context.Context, documentID string) (*usecase.PaymentStatusInfo, error) {
	return m.StatusFunc(ctx, documentID)
}

func (m *mockPaymentUC) Cancel(ctx context.Context, userID, documentID string) (*model.Payment, error) {
	return m.CancelFunc(ctx, userID, documentID)
}

func (m *mockPaymentUC) ListByUser(ctx context.Context, userID string) ([]*model.Payment, error) {
	return m.ListByUserFunc(ctx, userID)
}

type mockRefundUC struct {
	usecase.RefundUseCase

	RequestFunc     func(ctx context.Context, userID, documentID, reason string, evidenceRef *string) (*model.Document, error)
	DecideFunc      func(ctx context.Context, actor *model.User, documentID string, approve bool, adminComment, sourceIP string) (*usecase.RefundDecisionResult, error)
	ListPendingFunc func(ctx context.Context) ([]*model.Document, error)
}

func (m *mockRefundUC) Request(ctx context.Context, userID, documentID, reason string, evidenceRef *string) (*model.Document, error) {
	return m.RequestFunc(ctx, userID, documentID, reason, evidenceRef)
}

func (m *mockRefundUC) Decide(ctx context.Context, actor *model.User, documentID string, approve bool, adminComment, sourceIP string) (*usecase.RefundDecisionResult, error) {
	return m.DecideFunc(ctx, actor, documentID, approve, adminComment, sourceIP)
}

func (m *mockRefundUC) ListPending(ctx context.Context) ([]*model.Document, error) {
	return m.ListPendingFunc(ctx)
}

type mockWebhookUC struct {
	ProcessFunc func(ctx context.Context, rawBody []byte, authorization, xDate string) (*usecase.WebhookResult, error)
}

func (m *mockWebhookUC) Process(ctx context.Context, rawBody []byte, authorization, xDate string) (*usecase.WebhookResult, error) {
	return m.ProcessFunc(ctx, rawBody, authorization, xDate)
}

type mockUserUC struct {
	usecase.UserUseCase

	users map[string]*model.User
}

func (m *mockUserUC) FindByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

type mockAuditUC struct {
	Entries []*model.AuditLogEntry
	ListErr error
}

func (m *mockAuditUC) Record(ctx context.Context, actorID, actorEmail string, action model.AuditAction, entity, entityID string, detail map[string]any, sourceIP string) {
	m.Entries = append(m.Entries, &model.AuditLogEntry{
		ActorID:    actorID,
		ActorEmail: actorEmail,
		Action:     action,
		Entity:     entity,
		EntityID:   entityID,
		Detail:     detail,
		SourceIP:   sourceIP,
		CreatedAt:  time.Now(),
	})
}

func (m *mockAuditUC) ListByEntity(ctx context.Context, entity, entityID string, limit int) ([]*model.AuditLogEntry, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []*model.AuditLogEntry
	for _, e := range m.Entries {
		if e.Entity == entity && e.EntityID == entityID {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
