package repository

import (
	"context"

	"legal-docs-platform/internal/domain/model"
)

type AuditLogRepository interface {
	// Append inserts one immutable entry. There is no update or delete.
	Append(ctx context.Context, tx Tx, e *model.AuditLogEntry) error
	ListByEntity(ctx context.Context, tx Tx, entity, entityID string, limit int) ([]*model.AuditLogEntry, error)
}
