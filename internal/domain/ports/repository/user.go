package repository

import (
	"context"
	"time"

	"legal-docs-platform/internal/domain/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	Save(ctx context.Context, tx Tx, u *model.User) error
	// UpdateTier writes the recomputed tier and its inputs in one statement.
	UpdateTier(ctx context.Context, tx Tx, id string, tier, weeklyPayments int, recalcAt time.Time) error
	AddBonusCredits(ctx context.Context, tx Tx, id string, credits int) error
	ResetBonusCredits(ctx context.Context, tx Tx) (int, error)
	ListIDs(ctx context.Context, tx Tx) ([]string, error)
}
