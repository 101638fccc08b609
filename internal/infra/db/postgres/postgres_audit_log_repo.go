package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"legal-docs-platform/internal/domain"
	"legal-docs-platform/internal/domain/model"
	"legal-docs-platform/internal/domain/ports/repository"
)

var _ repository.AuditLogRepository = (*auditLogRepo)(nil)

type auditLogRepo struct{ pool *pgxpool.Pool }

func NewAuditLogRepo(pool *pgxpool.Pool) *auditLogRepo {
	return &auditLogRepo{pool: pool}
}

// Append inserts one entry. There is no ON CONFLICT clause: the table is
// append-only and a ULID collision is an error worth surfacing.
func (r *auditLogRepo) Append(ctx context.Context, tx repository.Tx, e *model.AuditLogEntry) error {
	detail, err := json.Marshal(e.Detail)
	if err != nil {
		return domain.ErrInvalidArgument
	}

	const q = `
INSERT INTO audit_log (
  id, actor_id, actor_email, action, entity, entity_id, detail, source_ip, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
);`

	_, err = execSQL(ctx, r.pool, tx, q,
		e.ID, e.ActorID, e.ActorEmail, string(e.Action),
		e.Entity, e.EntityID, detail, e.SourceIP, e.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *auditLogRepo) ListByEntity(ctx context.Context, tx repository.Tx, entity, entityID string, limit int) ([]*model.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT id, actor_id, actor_email, action, entity, entity_id, detail, source_ip, created_at FROM audit_log WHERE entity=$1 AND entity_id=$2 ORDER BY id DESC LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, entity, entityID, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.AuditLogEntry
	for rows.Next() {
		e := &model.AuditLogEntry{}
		var detail []byte
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorEmail, &e.Action, &e.Entity, &e.EntityID, &detail, &e.SourceIP, &e.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, domain.ErrReadDatabaseRow
			}
		}
		out = append(out, e)
	}
	return out, nil
}
