package repository

import (
	"context"

	"legal-docs-platform/internal/domain/model"
)

type DocumentRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Document, error)
	// Save persists the full unlock/refund sub-state including the
	// append-only refund history (stored as JSONB).
	Save(ctx context.Context, tx Tx, d *model.Document) error
	ListPendingRefunds(ctx context.Context, tx Tx) ([]*model.Document, error)
}
