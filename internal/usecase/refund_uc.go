package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"legal-docs-platform/internal/domain"
	"legal-docs-platform/internal/domain/model"
	"legal-docs-platform/internal/domain/ports/repository"
	"legal-docs-platform/internal/infra/metrics"
)

// Compile-time check
var _ RefundUseCase = (*refundUC)(nil)

type RefundDecisionResult struct {
	Approved   bool
	DocumentID string
	PaymentID  string
	DecidedAt  time.Time
}

type RefundUseCase interface {
	// Request opens a refund request on an unlocked, paid document.
	// Fails with ErrRefundNotEligible when the document is locked, has no
	// SUCCESS payment, or a request is already pending.
	Request(ctx context.Context, userID, documentID, reason string, evidenceRef *string) (*model.Document, error)
	// Decide resolves the pending request. Approval refunds the payment and
	// re-locks the document; rejection clears the pending flag so the user
	// may resubmit. Either way one record is appended to the history and
	// one audit entry is written.
	Decide(ctx context.Context, actor *model.User, documentID string, approve bool, adminComment, sourceIP string) (*RefundDecisionResult, error)
	ListPending(ctx context.Context) ([]*model.Document, error)
}

type refundUC struct {
	documents repository.DocumentRepository
	payments  repository.PaymentRepository
	tx        repository.TransactionManager
	userUC    UserUseCase
	audit     AuditUseCase
	log       *zerolog.Logger
}

func NewRefundUseCase(
	documents repository.DocumentRepository,
	payments repository.PaymentRepository,
	tx repository.TransactionManager,
	userUC UserUseCase,
	audit AuditUseCase,
	logger *zerolog.Logger,
) *refundUC {
	l := logger.With().Str("component", "RefundUC").Logger()
	return &refundUC{
		documents: documents,
		payments:  payments,
		tx:        tx,
		userUC:    userUC,
		audit:     audit,
		log:       &l,
	}
}

func (u *refundUC) Request(ctx context.Context, userID, documentID, reason string, evidenceRef *string) (*model.Document, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", domain.ErrInvalidArgument)
	}
	doc, err := u.documents.FindByID(ctx, nil, documentID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, domain.ErrInvalidArgument
	}
	if !doc.Unlocked {
		return nil, fmt.Errorf("%w: document is not unlocked", domain.ErrRefundNotEligible)
	}
	if doc.RefundRequested {
		return nil, fmt.Errorf("%w: a refund request is already pending", domain.ErrRefundNotEligible)
	}
	if _, err := u.payments.FindSuccessByDocument(ctx, nil, documentID); err != nil {
		return nil, fmt.Errorf("%w: no successful payment found", domain.ErrRefundNotEligible)
	}

	now := time.Now()
	doc.RefundRequested = true
	doc.RefundRequestedAt = &now
	doc.RejectionReason = &reason
	doc.EvidenceRef = evidenceRef
	doc.AdminComment = nil
	if err := u.documents.Save(ctx, nil, doc); err != nil {
		return nil, err
	}

	metrics.IncRefund("requested")
	u.log.Info().
		Str("document_id", documentID).
		Str("user_id", userID).
		Bool("resubmission", len(doc.RefundHistory) > 0).
		Msg("refund requested")
	return doc, nil
}

func (u *refundUC) Decide(ctx context.Context, actor *model.User, documentID string, approve bool, adminComment, sourceIP string) (*RefundDecisionResult, error) {
	var result *RefundDecisionResult

	err := u.tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		doc, err := u.documents.FindByID(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if !doc.RefundRequested {
			return domain.ErrNoPendingRefund
		}
		payment, err := u.payments.FindSuccessByDocument(ctx, tx, documentID)
		if err != nil {
			return fmt.Errorf("%w: no successful payment found", domain.ErrRefundNotEligible)
		}

		now := time.Now()
		record := model.RefundRecord{
			RequestedAt:  doc.RefundRequestedAt,
			UserMotive:   deref(doc.RejectionReason),
			EvidenceRef:  doc.EvidenceRef,
			AdminComment: adminComment,
			DecidedAt:    now,
		}

		if approve {
			won, err := u.payments.MarkRefunded(ctx, tx, payment.ID, now, doc.RejectionReason)
			if err != nil {
				return err
			}
			if !won {
				return domain.ErrInvalidTransition
			}
			record.Decision = model.RefundDecisionApproved
			doc.Unlocked = false
			doc.UnlockedAt = nil
			// The user lost a successful payment from the rolling window.
			if _, _, err := u.userUC.RecalculateTier(ctx, tx, doc.UserID); err != nil {
				return err
			}
		} else {
			record.Decision = model.RefundDecisionRejected
		}

		doc.RefundRequested = false
		doc.AdminComment = &adminComment
		doc.RefundHistory = append(doc.RefundHistory, record)
		if err := u.documents.Save(ctx, tx, doc); err != nil {
			return err
		}

		result = &RefundDecisionResult{
			Approved:   approve,
			DocumentID: documentID,
			PaymentID:  payment.ID,
			DecidedAt:  now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	action := model.AuditRejectRefund
	outcome := "rejected"
	if approve {
		action = model.AuditApproveRefund
		outcome = "approved"
		metrics.IncPayment(string(model.PaymentStatusRefunded))
	}
	metrics.IncRefund(outcome)

	// Best-effort by contract: an audit failure never rolls back the
	// decision itself.
	u.audit.Record(ctx, actor.ID, actor.Email, action, "document", documentID, map[string]any{
		"decision":   outcome,
		"comment":    adminComment,
		"payment_id": result.PaymentID,
	}, sourceIP)
	if approve {
		// The refunded payment gets its own trail entry so its history can
		// be listed without joining through the document.
		u.audit.Record(ctx, actor.ID, actor.Email, model.AuditProcessRefund, "payment", result.PaymentID, map[string]any{
			"document_id": documentID,
			"comment":     adminComment,
		}, sourceIP)
	}

	u.log.Info().
		Str("document_id", documentID).
		Str("payment_id", result.PaymentID).
		Bool("approved", approve).
		Str("admin", actor.Email).
		Msg("refund decision applied")
	return result, nil
}

func (u *refundUC) ListPending(ctx context.Context) ([]*model.Document, error) {
	return u.documents.ListPendingRefunds(ctx, nil)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
