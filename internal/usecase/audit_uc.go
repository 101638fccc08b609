package usecase

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"legal-docs-platform/internal/domain/model"
	"legal-docs-platform/internal/domain/ports/repository"
)

// Compile-time check
var _ AuditUseCase = (*auditUC)(nil)

type AuditUseCase interface {
	// Record appends one audit entry. It never returns an error: a logging
	// failure must not abort the admin action being recorded.
	Record(ctx context.Context, actorID, actorEmail string, action model.AuditAction, entity, entityID string, detail map[string]any, sourceIP string)
	ListByEntity(ctx context.Context, entity, entityID string, limit int) ([]*model.AuditLogEntry, error)
}

type auditUC struct {
	entries repository.AuditLogRepository
	log     *zerolog.Logger
}

func NewAuditUseCase(entries repository.AuditLogRepository, logger *zerolog.Logger) *auditUC {
	l := logger.With().Str("component", "AuditUC").Logger()
	return &auditUC{entries: entries, log: &l}
}

func (u *auditUC) Record(ctx context.Context, actorID, actorEmail string, action model.AuditAction, entity, entityID string, detail map[string]any, sourceIP string) {
	entry := &model.AuditLogEntry{
		ID:         ulid.Make().String(),
		ActorID:    actorID,
		ActorEmail: actorEmail,
		Action:     action,
		Entity:     entity,
		EntityID:   entityID,
		Detail:     detail,
		SourceIP:   sourceIP,
		CreatedAt:  time.Now(),
	}
	if err := u.entries.Append(ctx, nil, entry); err != nil {
		// Swallowed on purpose: auditing is best-effort from the caller's
		// point of view. The failure itself is logged for follow-up.
		u.log.Error().Err(err).
			Str("action", string(action)).
			Str("actor", actorEmail).
			Str("entity", entity).
			Str("entity_id", entityID).
			Msg("audit append failed")
		return
	}
	u.log.Info().
		Str("action", string(action)).
		Str("actor", actorEmail).
		Str("entity", entity).
		Str("entity_id", entityID).
		Str("ip", sourceIP).
		Msg("audit")
}

func (u *auditUC) ListByEntity(ctx context.Context, entity, entityID string, limit int) ([]*model.AuditLogEntry, error) {
	return u.entries.ListByEntity(ctx, nil, entity, entityID, limit)
}
