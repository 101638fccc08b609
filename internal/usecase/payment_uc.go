package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"legal-docs-platform/internal/domain"
	"legal-docs-platform/internal/domain/model"
	"legal-docs-platform/internal/domain/ports/adapter"
	"legal-docs-platform/internal/domain/ports/repository"
	"legal-docs-platform/internal/infra/metrics"
)

// createLockTTL bounds how long a racing start request waits behind the
// gateway call of the first one (gateway timeout is 30s).
const createLockTTL = 45 * time.Second

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// PaymentStatusInfo is the answer to a client status poll.
type PaymentStatusInfo struct {
	PaymentID  string
	Status     model.PaymentStatus
	Unlocked   bool
	Reconciled bool // true when this very poll advanced the payment
}

type PaymentUseCase interface {
	// Start creates a gateway order and a PENDING payment for a document.
	// Rejects with ErrDuplicatePendingPayment while one is in flight.
	Start(ctx context.Context, userID, documentID string) (*model.Payment, string, error)
	// StartSimulated records an immediately-successful payment (dev only).
	StartSimulated(ctx context.Context, userID, documentID string) (*model.Payment, error)
	// Status reports the current payment state for a document, running the
	// reconciliation poll first when the payment is still pending.
	Status(ctx context.Context, documentID string) (*PaymentStatusInfo, error)
	// Cancel marks the in-flight payment FAILED at the user's request.
	Cancel(ctx context.Context, userID, documentID string) (*model.Payment, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Payment, error)

	// State machine entry points. Both the webhook receiver and the
	// reconciliation poll funnel through these; whichever lands first does
	// the real transition, the other observes it and no-ops.
	MarkSuccess(ctx context.Context, paymentID string, transactionRef *string, paidAt time.Time) (won bool, err error)
	MarkFailed(ctx context.Context, paymentID string, reason string) (won bool, err error)

	// FindByEvent locates the payment a gateway event refers to, trying the
	// public code, then the transaction ref, then the document reference
	// recovered from the description.
	FindByEvent(ctx context.Context, ev model.GatewayEvent) (*model.Payment, error)
	// ApplyEvent dispatches a settling event into the state machine.
	ApplyEvent(ctx context.Context, p *model.Payment, ev model.GatewayEvent) (won bool, err error)
}

type paymentUC struct {
	payments  repository.PaymentRepository
	documents repository.DocumentRepository
	users     repository.UserRepository
	tx        repository.TransactionManager
	gateway   adapter.PaymentGateway
	locker    adapter.Locker
	userUC    UserUseCase
	priceCOP  int64
	log       *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	documents repository.DocumentRepository,
	users repository.UserRepository,
	tx repository.TransactionManager,
	gw adapter.PaymentGateway,
	locker adapter.Locker,
	userUC UserUseCase,
	priceCOP int64,
	logger *zerolog.Logger,
) *paymentUC {
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{
		payments:  payments,
		documents: documents,
		users:     users,
		tx:        tx,
		gateway:   gw,
		locker:    locker,
		userUC:    userUC,
		priceCOP:  priceCOP,
		log:       &l,
	}
}

func (u *paymentUC) Start(ctx context.Context, userID, documentID string) (*model.Payment, string, error) {
	doc, err := u.documents.FindByID(ctx, nil, documentID)
	if err != nil {
		return nil, "", err
	}
	if doc.UserID != userID {
		return nil, "", domain.ErrInvalidArgument
	}

	// Advisory lock around check+create so racing requests don't both hit
	// the gateway. The partial unique index is the hard guarantee.
	if u.locker != nil {
		token, err := u.locker.TryLock(ctx, "payment:create:"+documentID, createLockTTL)
		switch {
		case err == nil:
			defer func() { _ = u.locker.Unlock(context.WithoutCancel(ctx), "payment:create:"+documentID, token) }()
		case errors.Is(err, domain.ErrLockNotAcquired):
			return nil, "", domain.ErrDuplicatePendingPayment
		default:
			// Lock service outage. Proceed without the lock: the pending
			// check below and the unique index still close the race.
			u.log.Warn().Err(err).Str("document_id", documentID).Msg("create lock unavailable, relying on unique index")
		}
	}

	if _, err := u.payments.FindPendingByDocument(ctx, nil, documentID); err == nil {
		return nil, "", domain.ErrDuplicatePendingPayment
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, "", err
	}

	order, err := u.gateway.CreateOrder(ctx, u.priceCOP, documentID, doc.Kind, "")
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	p := &model.Payment{
		ID:             uuid.NewString(),
		UserID:         userID,
		DocumentID:     documentID,
		Amount:         u.priceCOP,
		Method:         model.PaymentMethodVita,
		Status:         model.PaymentStatusPending,
		GatewayOrderID: order.GatewayOrderID,
		PublicCode:     order.PublicCode,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := u.payments.Save(ctx, nil, p); err != nil {
		return nil, "", err
	}

	metrics.IncPayment(string(model.PaymentStatusPending))
	u.log.Info().
		Str("payment_id", p.ID).
		Str("document_id", documentID).
		Str("public_code", p.PublicCode).
		Int64("amount", p.Amount).
		Msg("payment order created")
	return p, order.CheckoutURL, nil
}

func (u *paymentUC) StartSimulated(ctx context.Context, userID, documentID string) (*model.Payment, error) {
	doc, err := u.documents.FindByID(ctx, nil, documentID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, domain.ErrInvalidArgument
	}
	if _, err := u.payments.FindPendingByDocument(ctx, nil, documentID); err == nil {
		return nil, domain.ErrDuplicatePendingPayment
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	ref := fmt.Sprintf("SIM-%d", now.UnixNano())
	p := &model.Payment{
		ID:         uuid.NewString(),
		UserID:     userID,
		DocumentID: documentID,
		Amount:     u.priceCOP,
		Method:     model.PaymentMethodSimulated,
		Status:     model.PaymentStatusPending,
		PublicCode: ref,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := u.payments.Save(ctx, nil, p); err != nil {
		return nil, err
	}
	if _, err := u.MarkSuccess(ctx, p.ID, &ref, now); err != nil {
		return nil, err
	}
	return u.payments.FindByID(ctx, nil, p.ID)
}

func (u *paymentUC) Status(ctx context.Context, documentID string) (*PaymentStatusInfo, error) {
	p, err := u.payments.FindLatestByDocument(ctx, nil, documentID)
	if err != nil {
		return nil, err
	}

	reconciled := false
	if p.Status == model.PaymentStatusPending && p.PublicCode != "" {
		reconciled = u.reconcile(ctx, p)
		if reconciled {
			if p, err = u.payments.FindByID(ctx, nil, p.ID); err != nil {
				return nil, err
			}
		}
	}

	doc, err := u.documents.FindByID(ctx, nil, documentID)
	if err != nil {
		return nil, err
	}
	return &PaymentStatusInfo{
		PaymentID:  p.ID,
		Status:     p.Status,
		Unlocked:   doc.Unlocked,
		Reconciled: reconciled,
	}, nil
}

// reconcile scans the gateway event feed for a settling event matching p and
// applies it. Gateway failure degrades to the local state: a status poll must
// never fail because the feed was unreachable.
func (u *paymentUC) reconcile(ctx context.Context, p *model.Payment) bool {
	events, err := u.gateway.ListRecentEvents(ctx)
	if err != nil {
		metrics.IncReconciliationPoll("gateway_error")
		u.log.Warn().Err(err).Str("payment_id", p.ID).Msg("reconciliation poll failed, returning local state")
		return false
	}
	metrics.IncReconciliationPoll("ok")
	for _, ev := range events {
		if !ev.Settles() || !u.eventMatches(p, ev) {
			continue
		}
		won, err := u.ApplyEvent(ctx, p, ev)
		if err != nil {
			u.log.Error().Err(err).Str("payment_id", p.ID).Str("event_id", ev.EventID).Msg("reconciliation apply failed")
			return false
		}
		metrics.IncReconciliation(string(ev.Kind))
		u.log.Info().
			Str("payment_id", p.ID).
			Str("event_id", ev.EventID).
			Str("kind", string(ev.Kind)).
			Bool("won", won).
			Msg("payment reconciled from event feed")
		return true
	}
	return false
}

func (u *paymentUC) eventMatches(p *model.Payment, ev model.GatewayEvent) bool {
	if ev.PublicCode != "" && ev.PublicCode == p.PublicCode {
		return true
	}
	if ev.TransactionRef != "" && p.TransactionRef != nil && ev.TransactionRef == *p.TransactionRef {
		return true
	}
	return ev.DocumentRef != "" && ev.DocumentRef == p.DocumentID
}

func (u *paymentUC) Cancel(ctx context.Context, userID, documentID string) (*model.Payment, error) {
	p, err := u.payments.FindPendingByDocument(ctx, nil, documentID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, domain.ErrInvalidArgument
	}
	note := "cancelled by user"
	won, err := u.markFailedTx(ctx, p.ID, note)
	if err != nil {
		return nil, err
	}
	if !won {
		// Settled concurrently; surface the post-transition state.
		return u.payments.FindByID(ctx, nil, p.ID)
	}
	return u.payments.FindByID(ctx, nil, p.ID)
}

func (u *paymentUC) ListByUser(ctx context.Context, userID string) ([]*model.Payment, error) {
	return u.payments.ListByUser(ctx, nil, userID)
}

// MarkSuccess flips PENDING -> SUCCESS and applies the benefits in the same
// transaction: unlock the document, recompute the owner's tier, grant the
// bonus session credits. The conditional update makes redelivery a no-op:
// only the caller that actually flipped the row runs the benefit block.
func (u *paymentUC) MarkSuccess(ctx context.Context, paymentID string, transactionRef *string, paidAt time.Time) (bool, error) {
	var won bool
	var amount int64
	err := u.tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		won, err = u.payments.UpdateStatusIfPending(ctx, tx, paymentID, model.PaymentStatusSuccess, transactionRef, &paidAt, nil)
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		p, err := u.payments.FindByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		amount = p.Amount
		return u.unlockBenefits(ctx, tx, p)
	})
	if err != nil {
		return false, err
	}
	if won {
		metrics.IncPayment(string(model.PaymentStatusSuccess))
		metrics.AddPaymentRevenue("COP", amount)
	}
	return won, nil
}

// unlockBenefits runs inside the MarkSuccess transaction so a crash between
// steps cannot leave a SUCCESS payment with a still-locked document.
func (u *paymentUC) unlockBenefits(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	doc, err := u.documents.FindByID(ctx, tx, p.DocumentID)
	if err != nil {
		return err
	}
	now := time.Now()
	doc.Unlocked = true
	doc.UnlockedAt = &now
	if err := u.documents.Save(ctx, tx, doc); err != nil {
		return err
	}

	if _, _, err := u.userUC.RecalculateTier(ctx, tx, p.UserID); err != nil {
		return err
	}
	if err := u.users.AddBonusCredits(ctx, tx, p.UserID, model.BonusCreditsPerPayment); err != nil {
		return err
	}

	u.log.Info().
		Str("payment_id", p.ID).
		Str("document_id", p.DocumentID).
		Str("user_id", p.UserID).
		Msg("document unlocked, benefits granted")
	return nil
}

func (u *paymentUC) MarkFailed(ctx context.Context, paymentID string, reason string) (bool, error) {
	return u.markFailedTx(ctx, paymentID, reason)
}

func (u *paymentUC) markFailedTx(ctx context.Context, paymentID, reason string) (bool, error) {
	var won bool
	err := u.tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		won, err = u.payments.UpdateStatusIfPending(ctx, tx, paymentID, model.PaymentStatusFailed, nil, nil, &reason)
		return err
	})
	if err != nil {
		return false, err
	}
	if won {
		metrics.IncPayment(string(model.PaymentStatusFailed))
	}
	return won, nil
}

func (u *paymentUC) FindByEvent(ctx context.Context, ev model.GatewayEvent) (*model.Payment, error) {
	if ev.PublicCode != "" {
		if p, err := u.payments.FindByPublicCode(ctx, nil, ev.PublicCode); err == nil {
			return p, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	if ev.TransactionRef != "" {
		if p, err := u.payments.FindByTransactionRef(ctx, nil, ev.TransactionRef); err == nil {
			return p, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	if ev.DocumentRef != "" {
		if p, err := u.payments.FindPendingByDocument(ctx, nil, ev.DocumentRef); err == nil {
			return p, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, domain.ErrNotFound
}

func (u *paymentUC) ApplyEvent(ctx context.Context, p *model.Payment, ev model.GatewayEvent) (bool, error) {
	switch {
	case ev.Paid():
		var ref *string
		if ev.TransactionRef != "" {
			r := ev.TransactionRef
			ref = &r
		}
		return u.MarkSuccess(ctx, p.ID, ref, time.Now())
	case ev.Kind == model.EventOrderFailed:
		reason := fmt.Sprintf("failed via gateway event: %s - %s", ev.Status, ev.RawType)
		return u.MarkFailed(ctx, p.ID, reason)
	default:
		return false, nil
	}
}
