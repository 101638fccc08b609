package repository

import (
	"context"
	"time"

	"legal-docs-platform/internal/domain/model"
)

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByPublicCode(ctx context.Context, tx Tx, publicCode string) (*model.Payment, error)
	FindByTransactionRef(ctx context.Context, tx Tx, ref string) (*model.Payment, error)
	// FindPendingByDocument returns the in-flight payment for a document,
	// or domain.ErrNotFound when none is pending.
	FindPendingByDocument(ctx context.Context, tx Tx, documentID string) (*model.Payment, error)
	FindSuccessByDocument(ctx context.Context, tx Tx, documentID string) (*model.Payment, error)
	FindLatestByDocument(ctx context.Context, tx Tx, documentID string) (*model.Payment, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Payment, error)

	// UpdateStatusIfPending flips status only when the row is still PENDING,
	// in one statement, and reports whether this caller won the transition.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.PaymentStatus, transactionRef *string, paidAt *time.Time, adminNote *string) (bool, error)
	// MarkRefunded advances a SUCCESS payment to REFUNDED.
	MarkRefunded(ctx context.Context, tx Tx, id string, refundedAt time.Time, reason *string) (bool, error)

	// CountRecentSuccessesByUser counts successful payments with paid_at
	// inside the trailing window, the input of the tier function.
	CountRecentSuccessesByUser(ctx context.Context, tx Tx, userID string, since time.Time) (int, error)
}
